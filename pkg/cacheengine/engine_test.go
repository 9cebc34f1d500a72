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

package cacheengine

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/kacheio/proxycache/pkg/cachekey"
	"github.com/kacheio/proxycache/pkg/clock"
	"github.com/kacheio/proxycache/pkg/config"
	"github.com/kacheio/proxycache/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	s, err := store.Open(config.StoreConfig{Backend: "inmemory"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return New(s, 600, 172800)
}

func TestLookupMissPassesThrough(t *testing.T) {
	e := newTestEngine(t)
	key := cachekey.Key{Method: "GET", URI: "http://origin/catalog/movie/top.json"}

	outcome := e.Lookup(context.Background(), key)
	assert.Nil(t, outcome)
}

func TestInsertThenLookupFreshHit(t *testing.T) {
	e := newTestEngine(t)
	advance := clock.Freeze(1_700_000_000)
	defer clock.Set(nil)

	key := cachekey.Key{Method: "GET", URI: "http://origin/catalog/movie/top.json"}
	e.Insert(context.Background(), key, 200, http.Header{"X-Test": {"1"}}, []byte("hello"))

	advance(60)
	outcome := e.Lookup(context.Background(), key)
	require.NotNil(t, outcome)
	assert.True(t, outcome.Hit)
	assert.Equal(t, 200, outcome.Response.StatusCode)

	body, _ := io.ReadAll(outcome.Response.Body)
	assert.Equal(t, "hello", string(body))
}

func TestLookupStaleAtLookupTimeIsTreatedAsMiss(t *testing.T) {
	e := newTestEngine(t)
	advance := clock.Freeze(1_700_000_000)
	defer clock.Set(nil)

	key := cachekey.Key{Method: "GET", URI: "http://origin/x"}
	e.Insert(context.Background(), key, 200, http.Header{}, []byte("body"))

	advance(601) // default validity is 600
	outcome := e.Lookup(context.Background(), key)
	assert.Nil(t, outcome)
}

func TestInsertHonorsMaxAge(t *testing.T) {
	e := newTestEngine(t)
	advance := clock.Freeze(1_700_000_000)
	defer clock.Set(nil)

	key := cachekey.Key{Method: "GET", URI: "http://origin/y"}
	e.Insert(context.Background(), key, 200, http.Header{"Cache-Control": {"max-age=300"}}, []byte("body"))

	advance(299)
	outcome := e.Lookup(context.Background(), key)
	require.NotNil(t, outcome)
	assert.True(t, outcome.Hit)

	advance(2) // total 301s, past max-age=300
	outcome = e.Lookup(context.Background(), key)
	assert.Nil(t, outcome)
}

func TestStaleFallbackUsableWithinThreshold(t *testing.T) {
	e := newTestEngine(t)
	advance := clock.Freeze(1_700_000_000)
	defer clock.Set(nil)

	key := cachekey.Key{Method: "GET", URI: "http://origin/z"}
	e.Insert(context.Background(), key, 200, http.Header{}, []byte("cached"))

	advance(172800) // exactly at threshold
	resp := e.StaleFallback(context.Background(), key)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestStaleFallbackTooOld(t *testing.T) {
	e := newTestEngine(t)
	advance := clock.Freeze(1_700_000_000)
	defer clock.Set(nil)

	key := cachekey.Key{Method: "GET", URI: "http://origin/z"}
	e.Insert(context.Background(), key, 200, http.Header{}, []byte("cached"))

	advance(172801)
	resp := e.StaleFallback(context.Background(), key)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestStaleFallbackNoEntry(t *testing.T) {
	e := newTestEngine(t)
	key := cachekey.Key{Method: "GET", URI: "http://origin/never-cached"}

	resp := e.StaleFallback(context.Background(), key)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestClearMakesSubsequentLookupsMisses(t *testing.T) {
	e := newTestEngine(t)
	key := cachekey.Key{Method: "GET", URI: "http://origin/w"}
	e.Insert(context.Background(), key, 200, http.Header{}, []byte("x"))

	resp := e.Clear(context.Background())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	outcome := e.Lookup(context.Background(), key)
	assert.Nil(t, outcome)
}
