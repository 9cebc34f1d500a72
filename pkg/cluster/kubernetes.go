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

package cluster

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	v1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// client is the kubernetes-backed Connection.
type client struct {
	clientset kubernetes.Interface
	broadcast *RequestQueue

	namespace string
	service   string
	portname  string
}

// NewKubernetesClient creates a Connection backed by the in-cluster (or
// local kubeconfig) API server, discovering sibling pods through the
// endpoints of service in namespace.
func NewKubernetesClient(namespace, service, portname string) (Connection, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		// Unable to load cluster config, fallback to kube config.
		kubeconfig := filepath.Join(os.Getenv("HOME"), ".kube", "config")
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("failed to load kubernetes config: %v", err)
		}
	}

	cs, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %v", err)
	}

	q := NewRequestQueue(RequestQueueOpts{
		Size:       30,
		MaxWorkers: 6,
		MaxRetries: 5,
		Backoff:    7 * time.Second,
	})

	return &client{
		clientset: cs,
		broadcast: q,
		namespace: namespace,
		service:   service,
		portname:  portname,
	}, nil
}

// Close closes the connection.
func (c *client) Close() {
	c.broadcast.Stop()
}

// Endpoints returns the addresses of the service's endpoint port named
// c.portname.
func (c *client) Endpoints() []Endpoint {
	eps, err := c.clientset.CoreV1().Endpoints(c.namespace).
		Get(context.Background(), c.service, v1.GetOptions{})
	if err != nil {
		log.Error().Err(err).Msg("error getting kubernetes endpoints")
		return nil
	}

	var (
		port      int32
		endpoints []Endpoint
	)

	for _, e := range eps.Subsets {
		port = 0
		for _, p := range e.Ports {
			if p.Name != c.portname {
				continue
			}
			port = p.Port
		}
		if port == 0 {
			continue
		}
		for _, addr := range e.Addresses {
			endpoints = append(endpoints, Endpoint{
				Name: addr.TargetRef.Name,
				Host: addr.IP,
				Port: int(port),
			})
		}
	}

	return endpoints
}

// BroadcastClear sends a clear-cache request to every sibling pod.
func (c *client) BroadcastClear(ctx context.Context, clearCacheURLPath string) {
	endpoints := c.Endpoints()
	log.Debug().Msgf("cluster clear-cache broadcast to: %v", endpoints)

	for _, ep := range endpoints {
		url := fmt.Sprintf("http://%s:%d%s", ep.Host, ep.Port, clearCacheURLPath)
		out, err := http.NewRequestWithContext(ctx, http.MethodPost, url, http.NoBody)
		if err != nil {
			log.Error().Err(err).Send()
			continue
		}
		out.Header.Set("X-Proxycache-Cluster", "broadcast")
		c.broadcast.Queue <- Message{out, 0}
	}
}
