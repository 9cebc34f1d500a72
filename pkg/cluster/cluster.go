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

// Package cluster broadcasts cache-clear requests to sibling pods so a
// clear-cache admin call against one instance drains every instance's store,
// not just the one that received the request.
package cluster

import (
	"context"
	"fmt"

	"github.com/kacheio/proxycache/pkg/config"
	"github.com/rs/zerolog/log"
)

// Endpoint is a single sibling pod reachable for cache-clear broadcast.
type Endpoint struct {
	Name string
	Host string
	Port int
}

// Connection discovers sibling pods and broadcasts clear-cache requests to
// them.
type Connection interface {
	// Endpoints returns the currently known sibling pods.
	Endpoints() []Endpoint
	// BroadcastClear sends a clear-cache request to every sibling pod at
	// clearCacheURLPath. Best-effort: failures are logged, not returned.
	BroadcastClear(ctx context.Context, clearCacheURLPath string)
	// Close releases resources held by the connection.
	Close()
}

// NewConnection creates a cluster connection for the configured discovery
// provider.
func NewConnection(cfg *config.ClusterConfig) (Connection, error) {
	if cfg.Discovery == "kubernetes" {
		kc, err := NewKubernetesClient(cfg.Namespace, cfg.Service, cfg.PortName)
		if err != nil {
			log.Error().Err(err).Str("cluster", cfg.Discovery).Msg("error creating cluster connection")
		}
		return kc, err
	}
	return nil, fmt.Errorf("unknown cluster discovery provider: %v", cfg.Discovery)
}
