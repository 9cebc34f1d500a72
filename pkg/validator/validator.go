// MIT License
//
// Copyright (c) 2023 kache.io
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package validator decides whether a routed path is admissible for a route
// that requests validation.
package validator

import (
	"net/url"
	"strings"
)

// literalPaths are accepted outright, independent of the resource-reference
// grammar.
var literalPaths = map[string]struct{}{
	"":               {},
	"/":              {},
	"/manifest.json": {},
}

var literalPrefixes = []string{"/public", "/images"}

// Valid reports whether path (the routed suffix, leading slash preserved) is
// admissible: one of the literal bypass paths, a public/images asset, or a
// well-formed upstream addon resource reference.
func Valid(path string) bool {
	if _, ok := literalPaths[path]; ok {
		return true
	}
	for _, prefix := range literalPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return isResourceRef(path)
}

// isResourceRef checks the resource-reference grammar: three slash-delimited
// URL-encoded segments, type/id/extra, optionally suffixed ".json". Leading
// slash is stripped before splitting.
func isResourceRef(path string) bool {
	trimmed := strings.TrimPrefix(path, "/")
	trimmed = strings.TrimSuffix(trimmed, ".json")

	parts := strings.Split(trimmed, "/")
	if len(parts) != 3 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
		if _, err := url.QueryUnescape(part); err != nil {
			return false
		}
	}
	return true
}
