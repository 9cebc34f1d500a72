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

// Package cacheengine implements lookup-with-freshness, insert-with-TTL,
// clear, and stale-on-failure fallback over a store.Store. Only
// Cache-Control: max-age is honored — ETag, Vary, conditional requests and
// revalidation are out of scope.
package cacheengine

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/kacheio/proxycache/pkg/cachekey"
	"github.com/kacheio/proxycache/pkg/cacheval"
	"github.com/kacheio/proxycache/pkg/clock"
	"github.com/kacheio/proxycache/pkg/metrics"
	"github.com/kacheio/proxycache/pkg/reply"
	"github.com/kacheio/proxycache/pkg/store"
	"github.com/rs/zerolog/log"
)

// Engine backs the pipeline's cache lookup stage and the dispatcher's
// cache-insert and stale-fallback steps.
type Engine struct {
	store                     store.Store
	defaultCacheValidity      int64
	cacheStaleThresholdOnFail int64
	collectors                *metrics.Collectors
}

// New builds an Engine over s, with the given default validity and stale
// threshold.
func New(s store.Store, defaultCacheValidity, cacheStaleThresholdOnFail int64) *Engine {
	return &Engine{
		store:                     s,
		defaultCacheValidity:      defaultCacheValidity,
		cacheStaleThresholdOnFail: cacheStaleThresholdOnFail,
	}
}

// WithCollectors attaches Prometheus collectors the engine updates on every
// lookup, insert, and stale fallback. Optional: a nil or never-called
// WithCollectors leaves the engine fully functional, just unobserved.
func (e *Engine) WithCollectors(c *metrics.Collectors) *Engine {
	e.collectors = c
	return e
}

// LookupOutcome is the result of a cache lookup.
type LookupOutcome struct {
	// Response is set on a fresh hit (serve immediately) or an error (500).
	Response *http.Response
	// Hit is true when Response came from the cache (as opposed to an error).
	Hit bool
}

// Lookup reads a cache entry for key: miss passes through (nil outcome),
// a fresh hit short-circuits with the cached response, a stale hit passes
// through as if it were a miss, and store/decode errors short-circuit with
// a 500.
func (e *Engine) Lookup(ctx context.Context, key cachekey.Key) *LookupOutcome {
	raw, err := e.store.Get(ctx, key.Fingerprint().Bytes())
	if err != nil {
		if err == store.ErrNotFound {
			e.countMiss()
			return nil
		}
		log.Error().Err(err).Msg("cache store read failed")
		e.countStoreError()
		return &LookupOutcome{Response: reply.Text(http.StatusInternalServerError, "Cannot read from the cache.")}
	}

	value, err := cacheval.Decode(raw)
	if err != nil {
		log.Error().Err(err).Msg("cache entry decode failed")
		e.countStoreError()
		return &LookupOutcome{Response: reply.Text(http.StatusInternalServerError, "Cannot deserialize a cached response.")}
	}

	now := clock.Now()
	if !value.Fresh(now) {
		e.countMiss()
		return nil
	}
	e.countHit()
	return &LookupOutcome{Response: responseFromValue(value), Hit: true}
}

// Insert computes validity from the response's Cache-Control max-age if
// present and parseable, else the configured default; encodes and writes
// the entry under key. Failures are logged and swallowed.
func (e *Engine) Insert(ctx context.Context, key cachekey.Key, status int, headers http.Header, body []byte) {
	value := cacheval.Value{
		Status:    status,
		Headers:   headers,
		Body:      body,
		Timestamp: clock.Now(),
		Validity:  e.validityFor(headers),
	}

	encoded, err := cacheval.Encode(value)
	if err != nil {
		log.Error().Err(err).Msg("cache entry encode failed")
		return
	}
	if err := e.store.Insert(ctx, key.Fingerprint().Bytes(), encoded); err != nil {
		log.Error().Err(err).Msg("cache store write failed")
		e.countStoreError()
	}
}

// Clear wipes every cache entry.
func (e *Engine) Clear(ctx context.Context) *http.Response {
	if err := e.store.Clear(ctx); err != nil {
		log.Error().Err(err).Msg("cache clearing failed")
		return reply.Text(http.StatusInternalServerError, "Cache clearing failed.")
	}
	return reply.Text(http.StatusOK, "Cache cleared.")
}

// StaleFallback is invoked on origin send error or response-validation
// failure. It consults the store even when cache_enabled is false, so a
// previously cached entry can still rescue a request the origin can't serve.
func (e *Engine) StaleFallback(ctx context.Context, key cachekey.Key) *http.Response {
	raw, err := e.store.Get(ctx, key.Fingerprint().Bytes())
	if err != nil {
		if err != store.ErrNotFound {
			log.Error().Err(err).Msg("cache store read failed during stale fallback")
			e.countStoreError()
		}
		return reply.Text(http.StatusInternalServerError, "No valid response.")
	}

	value, err := cacheval.Decode(raw)
	if err != nil {
		log.Error().Err(err).Msg("cache entry decode failed during stale fallback")
		e.countStoreError()
		return reply.Text(http.StatusInternalServerError, "No valid response.")
	}

	now := clock.Now()
	if !value.StaleUsable(now, e.cacheStaleThresholdOnFail) {
		return reply.Text(http.StatusInternalServerError, "No valid response. Cached response too old.")
	}
	e.countStaleServe()
	return responseFromValue(value)
}

func (e *Engine) countHit() {
	if e.collectors != nil {
		e.collectors.CacheHits.Inc()
	}
}

func (e *Engine) countMiss() {
	if e.collectors != nil {
		e.collectors.CacheMisses.Inc()
	}
}

func (e *Engine) countStaleServe() {
	if e.collectors != nil {
		e.collectors.CacheStaleServe.Inc()
	}
}

func (e *Engine) countStoreError() {
	if e.collectors != nil {
		e.collectors.StoreErrors.Inc()
	}
}

// validityFor derives the TTL from Cache-Control: max-age when present and
// parseable as a non-negative 32-bit integer, else the configured default.
func (e *Engine) validityFor(headers http.Header) int64 {
	cc := headers.Get("Cache-Control")
	if cc == "" {
		return e.defaultCacheValidity
	}
	for _, directive := range strings.Split(cc, ",") {
		directive = strings.TrimSpace(directive)
		name, value, found := strings.Cut(directive, "=")
		if !found || !strings.EqualFold(strings.TrimSpace(name), "max-age") {
			continue
		}
		seconds, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32)
		if err != nil {
			continue
		}
		return int64(seconds)
	}
	return e.defaultCacheValidity
}

func responseFromValue(v cacheval.Value) *http.Response {
	body := v.Body
	return &http.Response{
		StatusCode:    v.Status,
		Status:        http.StatusText(v.Status),
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        v.Headers.Clone(),
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
	}
}
