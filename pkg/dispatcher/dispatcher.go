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

// Package dispatcher sends a routed request to its origin, forks and
// validates the response, drives the cache-insert and stale-fallback paths.
// It buffers and forks the response so it can be both cached and forwarded.
package dispatcher

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/kacheio/proxycache/pkg/cacheengine"
	"github.com/kacheio/proxycache/pkg/cachekey"
	"github.com/kacheio/proxycache/pkg/metrics"
	"github.com/rs/zerolog/log"
)

// Dispatcher sends requests to their origin and reconciles the result with
// the cache engine.
type Dispatcher struct {
	client       *http.Client
	cache        *cacheengine.Engine
	cacheEnabled bool
	collectors   *metrics.Collectors
}

// New builds a Dispatcher. client must already be configured with the
// desired origin read timeout; this package does not set it.
func New(client *http.Client, cache *cacheengine.Engine, cacheEnabled bool) *Dispatcher {
	return &Dispatcher{client: client, cache: cache, cacheEnabled: cacheEnabled}
}

// WithCollectors attaches Prometheus collectors updated around every origin
// round trip. Optional.
func (d *Dispatcher) WithCollectors(c *metrics.Collectors) *Dispatcher {
	d.collectors = c
	return d
}

// Dispatch sends req (already routed) to its origin and returns the response
// to deliver to the client. On send failure or a non-2xx response it falls
// back to the stale cache entry for key.
func (d *Dispatcher) Dispatch(ctx context.Context, req *http.Request, key cachekey.Key) *http.Response {
	// A request received by the server carries RequestURI, which
	// http.Client refuses to send.
	req.RequestURI = ""

	start := time.Now()
	resp, err := d.client.Do(req)
	if d.collectors != nil {
		d.collectors.OriginLatency.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		log.Error().Err(err).Str("uri", req.URL.String()).Msg("origin send failed")
		return d.cache.StaleFallback(ctx, key)
	}

	if !isValidResponse(resp) {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		return d.cache.StaleFallback(ctx, key)
	}

	if !d.cacheEnabled {
		return resp
	}
	return d.forkAndCache(ctx, resp, key)
}

// isValidResponse reports whether resp's status is in the 2xx range.
func isValidResponse(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// forkAndCache buffers the response body once, writes a cache entry from
// one copy, and returns an independent response for the client — per the
// response-forking.
func (d *Dispatcher) forkAndCache(ctx context.Context, resp *http.Response, key cachekey.Key) *http.Response {
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		log.Error().Err(err).Msg("failed to buffer origin response body")
		return d.cache.StaleFallback(ctx, key)
	}

	d.cache.Insert(ctx, key, resp.StatusCode, resp.Header.Clone(), body)

	return &http.Response{
		StatusCode:    resp.StatusCode,
		Status:        resp.Status,
		Proto:         resp.Proto,
		ProtoMajor:    resp.ProtoMajor,
		ProtoMinor:    resp.ProtoMinor,
		Header:        resp.Header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
	}
}
