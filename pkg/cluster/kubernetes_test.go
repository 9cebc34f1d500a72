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
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

// fakeEndpoints builds an Endpoints object with a single subset exposing
// portName on every given pod IP.
func fakeEndpoints(namespace, service, portName string, port int32, podIPs ...string) *v1.Endpoints {
	addrs := make([]v1.EndpointAddress, len(podIPs))
	for i, ip := range podIPs {
		name := ip
		addrs[i] = v1.EndpointAddress{IP: ip, TargetRef: &v1.ObjectReference{Name: name}}
	}
	return &v1.Endpoints{
		ObjectMeta: metav1.ObjectMeta{Name: service, Namespace: namespace},
		Subsets: []v1.EndpointSubset{{
			Addresses: addrs,
			Ports:     []v1.EndpointPort{{Name: portName, Port: port}},
		}},
	}
}

func TestClientEndpointsFiltersByPortName(t *testing.T) {
	eps := fakeEndpoints("test", "proxycache-service", "api", 1338, "10.0.0.1", "10.0.0.2", "10.0.0.3")
	cs := fake.NewSimpleClientset(eps)

	c := &client{clientset: cs, namespace: "test", service: "proxycache-service", portname: "api"}

	got := c.Endpoints()
	require.Len(t, got, 3)
	for _, e := range got {
		assert.Equal(t, 1338, e.Port)
	}
}

func TestClientEndpointsNoMatchingPortName(t *testing.T) {
	eps := fakeEndpoints("test", "proxycache-service", "admin", 9090, "10.0.0.1")
	cs := fake.NewSimpleClientset(eps)

	c := &client{clientset: cs, namespace: "test", service: "proxycache-service", portname: "api"}

	assert.Empty(t, c.Endpoints())
}

func TestClientEndpointsMissingService(t *testing.T) {
	cs := fake.NewSimpleClientset()
	c := &client{clientset: cs, namespace: "test", service: "absent", portname: "api"}

	assert.Empty(t, c.Endpoints())
}

func TestClientBroadcastClearQueuesRequestPerEndpoint(t *testing.T) {
	received := make(chan *http.Request, 3)
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r
		w.WriteHeader(http.StatusOK)
	}))
	defer origin.Close()

	parsed, err := url.Parse(origin.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(parsed.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	eps := fakeEndpoints("test", "proxycache-service", "api", int32(port), host)
	cs := fake.NewSimpleClientset(eps)

	q := NewRequestQueue(RequestQueueOpts{Size: 4, MaxWorkers: 1, MaxRetries: 1, Backoff: time.Millisecond})
	defer q.Stop()

	c := &client{clientset: cs, broadcast: q, namespace: "test", service: "proxycache-service", portname: "api"}
	c.BroadcastClear(context.Background(), "/clear-cache")

	select {
	case req := <-received:
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "/clear-cache", req.URL.Path)
	case <-time.After(time.Second):
		t.Fatal("broadcast request was not delivered")
	}
}
