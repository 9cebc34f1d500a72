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

// Package metrics registers the Prometheus collectors exposed on the
// separate debug/admin listener. Never mounted on the public proxy port.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors groups every collector the proxy updates while handling
// requests.
type Collectors struct {
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	CacheStaleServe prometheus.Counter
	StoreErrors     prometheus.Counter
	OriginLatency   prometheus.Histogram
}

// New creates and registers Collectors against reg.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "proxycache",
			Name:      "cache_hits_total",
			Help:      "Number of requests served from a fresh cache entry.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "proxycache",
			Name:      "cache_misses_total",
			Help:      "Number of requests that missed the cache and were sent to origin.",
		}),
		CacheStaleServe: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "proxycache",
			Name:      "cache_stale_serves_total",
			Help:      "Number of requests served from a stale-usable entry after origin failure.",
		}),
		StoreErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "proxycache",
			Name:      "store_errors_total",
			Help:      "Number of persistent-store read/write failures.",
		}),
		OriginLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "proxycache",
			Name:      "origin_request_duration_seconds",
			Help:      "Origin round-trip latency.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(c.CacheHits, c.CacheMisses, c.CacheStaleServe, c.StoreErrors, c.OriginLatency)
	return c
}
