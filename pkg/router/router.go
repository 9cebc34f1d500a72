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

// Package router selects a configured route for an inbound request, by
// first prefix match (in configuration order) on host+path+query, and rewrites the
// outbound URI and Host header.
package router

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/kacheio/proxycache/pkg/config"
	"github.com/kacheio/proxycache/pkg/reply"
	"github.com/kacheio/proxycache/pkg/validator"
)

// landingHTML is served for GET / when no route matches.
const landingHTML = `<!DOCTYPE html>
<html>
<head><title>proxycache</title></head>
<body><h1>proxycache</h1><p>No route matched this request.</p></body>
</html>
`

// Result is the outcome of routing a request: either a rewritten request
// ready for the next pipeline stage, or a short-circuit response.
type Result struct {
	Request  *http.Request
	Response *http.Response
	Matched  bool
}

// Route selects a route from cfg.Routes, rewrites req's URI and Host header,
// and validates the routed suffix unless the route opts out.
func Route(req *http.Request, cfg *config.Configuration) Result {
	host := requestHost(req)
	fromStr := host + req.URL.Path + rawQuerySuffix(req.URL)

	route, suffix, ok := match(cfg.Routes, fromStr)
	if !ok {
		if req.URL.Path == "/" {
			return Result{Response: reply.HTML(http.StatusOK, landingHTML)}
		}
		return Result{Response: reply.Text(http.StatusNotFound, "The requested URL was not found on this server.")}
	}

	if route.ValidateRequest() && !validator.Valid(suffix) {
		return Result{Response: reply.Text(http.StatusBadRequest, "Invalid request.")}
	}

	outboundURI := route.To + strings.TrimPrefix(suffix, "/")
	parsed, err := url.Parse(outboundURI)
	if err != nil {
		return Result{Response: reply.Text(http.StatusInternalServerError, "Cannot route to invalid URI.")}
	}
	if parsed.Host == "" {
		return Result{Response: reply.Text(http.StatusInternalServerError, "Cannot route to URI without host.")}
	}

	req.URL = parsed
	req.Host = parsed.Host
	req.Header.Set("Host", parsed.Host)

	return Result{Request: req, Matched: true}
}

// requestHost resolves the host: the request URI's host if present, else
// the Host header, else empty.
func requestHost(req *http.Request) string {
	if req.URL.Host != "" {
		return req.URL.Host
	}
	return req.Host
}

// rawQuerySuffix returns the raw query string with no leading separator —
// callers concatenate host+path+query verbatim before matching it against
// route prefixes.
func rawQuerySuffix(u *url.URL) string {
	return u.RawQuery
}

// match finds the first route whose From is a prefix of fromStr, returning
// the remaining suffix with any leading slash preserved.
func match(routes []config.Route, fromStr string) (config.Route, string, bool) {
	for _, route := range routes {
		if strings.HasPrefix(fromStr, route.From) {
			return route, strings.TrimPrefix(fromStr, route.From), true
		}
	}
	return config.Route{}, "", false
}
