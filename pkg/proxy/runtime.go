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

// Package proxy wires config, store, cache engine, pipeline, dispatcher and
// the debug/admin listener into one process: ProxyRuntime.
package proxy

import (
	"net/http"
	"os"
	"strconv"

	"github.com/kacheio/proxycache/pkg/cacheengine"
	"github.com/kacheio/proxycache/pkg/cluster"
	"github.com/kacheio/proxycache/pkg/config"
	"github.com/kacheio/proxycache/pkg/dispatcher"
	"github.com/kacheio/proxycache/pkg/metrics"
	"github.com/kacheio/proxycache/pkg/pipeline"
	"github.com/kacheio/proxycache/pkg/store"
	"github.com/kacheio/proxycache/pkg/utils/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	apidbg "github.com/kacheio/proxycache/pkg/api"
)

// ClientFactory builds the shared HTTP client used for every origin send,
// given the loaded configuration — letting callers set TLS and timeouts.
type ClientFactory func(cfg *config.Configuration) *http.Client

// Callback is an optional lifecycle hook.
type Callback func()

// Option configures a ProxyRuntime at construction time.
type Option func(*ProxyRuntime)

// WithOnServerStart registers a callback fired once the listener is bound.
func WithOnServerStart(cb Callback) Option {
	return func(r *ProxyRuntime) { r.onServerStart = cb }
}

// WithOnServerStop registers a callback fired after graceful shutdown
// completes, just before Run returns.
func WithOnServerStop(cb Callback) Option {
	return func(r *ProxyRuntime) { r.onServerStop = cb }
}

// ProxyRuntime owns the shared HTTP client, the atomically-replaceable
// config snapshot, the persistent store, and the listener. Its lifetime runs
// from process start to graceful shutdown completion.
type ProxyRuntime struct {
	loader *config.Loader
	client *http.Client
	store  store.Store

	collectors *metrics.Collectors
	cache      *cacheengine.Engine
	dispatcher *dispatcher.Dispatcher
	pipeline   *pipeline.Pipeline
	cluster    cluster.Connection
	debug      *apidbg.API

	srv *httpServer

	onServerStart Callback
	onServerStop  Callback
}

// New loads the configuration at path and wires every collaborator around
// it, opening the persistent store. Both loading the config and opening the
// store panic on failure: the runtime cannot usefully exist without either,
// and both are fatal-at-startup conditions.
func New(path string, clientFactory ClientFactory, opts ...Option) *ProxyRuntime {
	loader, err := config.NewLoader(path)
	if err != nil {
		panic("proxy: failed to load config: " + err.Error())
	}
	cfg := loader.Config()
	logger.InitLogger(&cfg.Logging)

	s, err := store.Open(cfg.Store)
	if err != nil {
		panic("proxy: failed to open store: " + err.Error())
	}

	reg := prometheus.NewRegistry()
	collectors := metrics.New(reg)

	cache := cacheengine.New(s, cfg.DefaultCacheValidity, cfg.CacheStaleThresholdOnFail).WithCollectors(collectors)

	client := clientFactory(cfg)
	dsp := dispatcher.New(client, cache, cfg.CacheEnabled).WithCollectors(collectors)

	p := pipeline.New(cache)

	var cc cluster.Connection
	if cfg.Cluster != nil {
		cc, err = cluster.NewConnection(cfg.Cluster)
		if err != nil {
			log.Error().Err(err).Msg("cluster connection unavailable, clear-cache broadcast disabled")
		} else {
			p.WithCluster(cc)
		}
	}

	r := &ProxyRuntime{
		loader:     loader,
		client:     client,
		store:      s,
		collectors: collectors,
		cache:      cache,
		dispatcher: dsp,
		pipeline:   p,
		cluster:    cc,
		debug:      apidbg.New(cfg.Metrics, reg),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run resolves the listen address, binds the listener, and serves until a
// shutdown signal is received. It blocks until shutdown has fully drained.
func (r *ProxyRuntime) Run() error {
	cfg := r.loader.Config()
	addr := listenAddr(cfg)

	go r.loader.Run()
	defer r.loader.Close()

	r.debug.Start()
	defer r.debug.Shutdown(bgContext())

	r.srv = newHTTPServer(addr, r.handler)
	if err := r.srv.Listen(); err != nil {
		return err
	}

	if r.onServerStart != nil {
		r.onServerStart()
	}

	log.Info().Str("addr", addr).Msg("proxy listening")

	r.srv.Serve()

	r.srv.AwaitShutdown()

	if err := r.store.Flush(bgContext()); err != nil {
		log.Error().Err(err).Msg("store flush failed during shutdown")
	}
	if r.cluster != nil {
		r.cluster.Close()
	}

	if r.onServerStop != nil {
		r.onServerStop()
	}

	return nil
}

// Shutdown requests a graceful stop. Safe to call from a signal handler.
func (r *ProxyRuntime) Shutdown() {
	if r.srv != nil {
		r.srv.Shutdown()
	}
}

// handler runs the pipeline, then the dispatcher, against the live config
// snapshot for a single request.
func (r *ProxyRuntime) handler(w http.ResponseWriter, req *http.Request) {
	cfg := r.loader.Config()

	outcome := r.pipeline.Run(req, cfg, r.loader)
	resp := outcome.Response
	if resp == nil {
		resp = r.dispatcher.Dispatch(req.Context(), outcome.Request, outcome.Key)
	}
	defer resp.Body.Close()

	for name, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = copyBody(w, resp)
}

// listenAddr resolves the listen address: the PORT env var overrides
// default_port when it parses as an unsigned 16-bit integer.
func listenAddr(cfg *config.Configuration) string {
	port := cfg.DefaultPort
	if raw := os.Getenv("PORT"); raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 16); err == nil {
			port = uint16(parsed)
		}
	}
	return cfg.IP + ":" + strconv.FormatUint(uint64(port), 10)
}
