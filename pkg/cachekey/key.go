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

// Package cachekey derives the fingerprint used to key cache entries.
package cachekey

import (
	"encoding/binary"

	xxhash "github.com/cespare/xxhash/v2"
)

// Fingerprint is the 8-byte big-endian cache key.
type Fingerprint [8]byte

// Key identifies the request a cache entry was written for. URI must be the
// outbound, post-routing URI string — lookup happens after routing, so
// entries are keyed by the target resource, not the inbound path.
type Key struct {
	Method string
	URI    string
	Body   []byte
}

// Fingerprint hashes (method, uri, body) with a stable non-cryptographic
// 64-bit hash and returns its big-endian encoding. Collisions at 2^64 are
// accepted as negligible; no per-entry verification is performed.
func (k Key) Fingerprint() Fingerprint {
	h := xxhash.New()
	_, _ = h.WriteString(k.Method)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(k.URI)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(k.Body)

	var fp Fingerprint
	binary.BigEndian.PutUint64(fp[:], h.Sum64())
	return fp
}

// Bytes returns the fingerprint as a byte slice suitable for a store key.
func (f Fingerprint) Bytes() []byte {
	return f[:]
}
