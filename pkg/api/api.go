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

// Package api serves the separate debug/admin listener: /metrics,
// /debug/pprof/*, /version. It is intentionally distinct from the three
// admin endpoints (reload/clear/status), which stay on the main proxy
// listener and are matched by exact path equality inside the request
// pipeline.
package api

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/kacheio/proxycache/pkg/config"
	"github.com/kacheio/proxycache/pkg/utils/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const errMsgUnauthorized = "Not authorized to access the requested resource"

// API is the debug/admin HTTP surface.
type API struct {
	cfg        config.MetricsConfig
	router     *mux.Router
	server     *http.Server
	allowedIPs map[string]struct{}
}

// New builds an API bound to cfg.ListenAddr. Returns nil if ListenAddr is
// empty — the debug listener is optional.
func New(cfg config.MetricsConfig, reg *prometheus.Registry) *API {
	if cfg.ListenAddr == "" {
		return nil
	}

	a := &API{
		cfg:        cfg,
		router:     mux.NewRouter(),
		allowedIPs: make(map[string]struct{}),
	}

	if ips := strings.Trim(cfg.ACL, ","); len(ips) > 0 {
		for _, ip := range strings.Split(ips, ",") {
			if parsed := net.ParseIP(strings.TrimSpace(ip)); parsed != nil {
				a.allowedIPs[parsed.String()] = struct{}{}
			}
		}
	}

	a.router.Methods(http.MethodGet).Path("/metrics").Handler(
		a.ipFilter(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP))
	a.router.Methods(http.MethodGet).Path("/version").HandlerFunc(a.ipFilter(version.Handler))
	appendPprof(a.router, a.ipFilter)

	a.server = &http.Server{Addr: cfg.ListenAddr, Handler: a.router}
	return a
}

// Start binds the listener and begins serving in the background. A bind
// failure is logged as a warning — the debug listener is operability, not
// correctness, and the proxy listener must still start.
func (a *API) Start() {
	if a == nil {
		return
	}
	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn().Err(err).Str("addr", a.cfg.ListenAddr).Msg("debug listener failed to start")
		}
	}()
}

// Shutdown gracefully stops the debug listener.
func (a *API) Shutdown(ctx context.Context) {
	if a == nil {
		return
	}
	_ = a.server.Shutdown(ctx)
}

// ipFilter blocks requests from IPs not in the configured allowlist. An
// empty allowlist disables filtering entirely.
func (a *API) ipFilter(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(a.allowedIPs) == 0 {
			next(w, r)
			return
		}
		if _, ok := a.allowedIPs[originalIP(r)]; !ok {
			http.Error(w, errMsgUnauthorized, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// originalIP finds the originating client IP, preferring forwarding headers
// over RemoteAddr.
func originalIP(req *http.Request) string {
	addr := ""
	if host, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
		addr = host
	}
	if xff := strings.Trim(req.Header.Get("X-Forwarded-For"), ","); len(xff) > 0 {
		addrs := strings.Split(xff, ",")
		last := addrs[len(addrs)-1]
		if ip := net.ParseIP(strings.TrimSpace(last)); ip != nil {
			return ip.String()
		}
	}
	if xri := req.Header.Get("X-Real-Ip"); len(xri) > 0 {
		if ip := net.ParseIP(xri); ip != nil {
			return ip.String()
		}
	}
	return addr
}
