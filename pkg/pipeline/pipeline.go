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

// Package pipeline orchestrates the ordered, short-circuiting middleware
// chain every inbound request passes through: ingest, reload-config,
// clear-cache, status, routes, cache lookup. Order is significant — the
// administrative endpoints are matched by exact path equality ahead of any
// routing or caching.
package pipeline

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/kacheio/proxycache/pkg/cacheengine"
	"github.com/kacheio/proxycache/pkg/cachekey"
	"github.com/kacheio/proxycache/pkg/config"
	"github.com/kacheio/proxycache/pkg/reply"
	"github.com/kacheio/proxycache/pkg/router"
)

// Outcome is the result of running the pipeline over a request.
type Outcome struct {
	// Request is set when every stage passed the request through; the
	// dispatcher should send it to the origin.
	Request *http.Request
	// Response is set when a stage short-circuited.
	Response *http.Response
	// Key is set alongside Request, once routing has rewritten the URI —
	// the dispatcher and cache-insert step reuse it rather than recomputing.
	Key cachekey.Key
}

// Reloader schedules an asynchronous config reload.
type Reloader interface {
	Reload()
}

// ClusterBroadcaster fans a clear-cache request out to sibling pods, once
// the local store has already been cleared. Optional.
type ClusterBroadcaster interface {
	BroadcastClear(ctx context.Context, clearCacheURLPath string)
}

// Pipeline holds the collaborators each stage needs.
type Pipeline struct {
	cache     *cacheengine.Engine
	broadcast ClusterBroadcaster
}

// New builds a Pipeline backed by the given cache engine.
func New(cache *cacheengine.Engine) *Pipeline {
	return &Pipeline{cache: cache}
}

// WithCluster attaches a cluster broadcaster so a clear-cache admin call
// drains sibling pods too. Optional.
func (p *Pipeline) WithCluster(b ClusterBroadcaster) *Pipeline {
	p.broadcast = b
	return p
}

// Run executes the ordered stage chain for one request against the given
// configuration snapshot.
func (p *Pipeline) Run(req *http.Request, cfg *config.Configuration, reloader Reloader) Outcome {
	body, err := ingest(req)
	if err != nil {
		return Outcome{Response: reply.Text(http.StatusBadRequest, "Invalid request.")}
	}

	if req.URL.Path == cfg.ReloadConfigURLPath {
		reloader.Reload()
		return Outcome{Response: reply.Text(http.StatusOK, "Proxy config reload scheduled.")}
	}

	if req.URL.Path == cfg.ClearCacheURLPath {
		resp := p.cache.Clear(req.Context())
		if p.broadcast != nil && resp.StatusCode == http.StatusOK {
			p.broadcast.BroadcastClear(req.Context(), cfg.ClearCacheURLPath)
		}
		return Outcome{Response: resp}
	}

	if req.URL.Path == cfg.StatusURLPath {
		return Outcome{Response: reply.Text(http.StatusOK, "Proxy is ready.")}
	}

	routed := router.Route(req, cfg)
	if !routed.Matched {
		return Outcome{Response: routed.Response}
	}
	req = routed.Request

	key := cachekey.Key{Method: req.Method, URI: req.URL.String(), Body: body}

	if cfg.CacheEnabled {
		if outcome := p.cache.Lookup(req.Context(), key); outcome != nil {
			return Outcome{Response: outcome.Response}
		}
	}

	return Outcome{Request: req, Key: key}
}

// ingest buffers the full request body into bytes so it participates in the
// cache key, and restores it onto the request for the origin send.
func ingest(req *http.Request) ([]byte, error) {
	if req.Body == nil {
		return nil, nil
	}
	defer req.Body.Close()

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.ContentLength = int64(len(body))
	return body, nil
}
