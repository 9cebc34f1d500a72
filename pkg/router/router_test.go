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

package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kacheio/proxycache/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// httptest.NewRequest sets Host to example.com, and routes match against
// host+path+query, so a matching From carries that host.
func cfgWithRoutes(routes ...config.Route) *config.Configuration {
	return &config.Configuration{Routes: routes}
}

func TestRouteMatchesPrefixAndRewrites(t *testing.T) {
	cfg := cfgWithRoutes(config.Route{From: "example.com/origin", To: "http://127.0.0.1:5005/"})

	req := httptest.NewRequest(http.MethodGet, "/origin/catalog/movie/top.json", nil)
	result := Route(req, cfg)

	require.True(t, result.Matched)
	assert.Equal(t, "127.0.0.1:5005", result.Request.URL.Host)
	assert.Equal(t, "/catalog/movie/top.json", result.Request.URL.Path)
	assert.Equal(t, "127.0.0.1:5005", result.Request.Header.Get("Host"))
}

func TestRouteFirstMatchWins(t *testing.T) {
	cfg := cfgWithRoutes(
		config.Route{From: "example.com/a", To: "http://first/"},
		config.Route{From: "example.com/a/b", To: "http://second/"},
	)

	req := httptest.NewRequest(http.MethodGet, "/a/b/c/d", nil)
	result := Route(req, cfg)

	require.True(t, result.Matched)
	assert.Equal(t, "first", result.Request.URL.Host)
}

func TestRouteNoMatchOnRootReturnsLanding(t *testing.T) {
	cfg := cfgWithRoutes(config.Route{From: "/origin", To: "http://127.0.0.1:5005/"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	result := Route(req, cfg)

	require.False(t, result.Matched)
	require.NotNil(t, result.Response)
	assert.Equal(t, http.StatusOK, result.Response.StatusCode)
}

func TestRouteNoMatchElsewhereReturns404(t *testing.T) {
	cfg := cfgWithRoutes(config.Route{From: "/origin", To: "http://127.0.0.1:5005/"})

	req := httptest.NewRequest(http.MethodGet, "/bogus", nil)
	result := Route(req, cfg)

	require.False(t, result.Matched)
	require.NotNil(t, result.Response)
	assert.Equal(t, http.StatusNotFound, result.Response.StatusCode)
}

func TestRouteValidationFailureReturns400(t *testing.T) {
	cfg := cfgWithRoutes(config.Route{From: "example.com/origin", To: "http://127.0.0.1:5005/"})

	req := httptest.NewRequest(http.MethodGet, "/origin/bogus", nil)
	result := Route(req, cfg)

	require.False(t, result.Matched)
	require.NotNil(t, result.Response)
	assert.Equal(t, http.StatusBadRequest, result.Response.StatusCode)
}

func TestRouteValidationBypass(t *testing.T) {
	noValidate := false
	cfg := cfgWithRoutes(config.Route{From: "example.com/origin", To: "http://127.0.0.1:5005/", Validate: &noValidate})

	req := httptest.NewRequest(http.MethodGet, "/origin/bogus", nil)
	result := Route(req, cfg)

	require.True(t, result.Matched)
}

func TestRouteInvalidOutboundURI(t *testing.T) {
	cfg := cfgWithRoutes(config.Route{From: "example.com/origin", To: "http://%zz/"})

	req := httptest.NewRequest(http.MethodGet, "/origin/manifest.json", nil)
	result := Route(req, cfg)

	require.False(t, result.Matched)
	require.NotNil(t, result.Response)
	assert.Equal(t, http.StatusInternalServerError, result.Response.StatusCode)
}

func TestRouteOutboundURIWithoutHost(t *testing.T) {
	cfg := cfgWithRoutes(config.Route{From: "example.com/origin", To: "/local/"})

	req := httptest.NewRequest(http.MethodGet, "/origin/manifest.json", nil)
	result := Route(req, cfg)

	require.False(t, result.Matched)
	require.NotNil(t, result.Response)
	assert.Equal(t, http.StatusInternalServerError, result.Response.StatusCode)
}
