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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validTOML = `
reload_config_url_path = "/reload"
clear_cache_url_path = "/clear"
status_url_path = "/status"
db_directory = "/tmp/proxycache-db"
ip = "127.0.0.1"
default_port = 5000
cache_enabled = true
default_cache_validity = 600
cache_stale_threshold_on_fail = 172800
timeout = 5
verbose = false

[[routes]]
from = "/origin"
to = "http://127.0.0.1:5005"
`

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoaderLoadsValidConfig(t *testing.T) {
	path := writeTemp(t, validTOML)

	l, err := NewLoader(path)
	require.NoError(t, err)

	cfg := l.Config()
	assert.Equal(t, "/status", cfg.StatusURLPath)
	assert.Equal(t, uint16(5000), cfg.DefaultPort)
	assert.Len(t, cfg.Routes, 1)
	assert.True(t, cfg.Routes[0].ValidateRequest())
	assert.Equal(t, "leveldb", cfg.Store.Backend)
}

func TestLoaderRejectsMissingRoutes(t *testing.T) {
	path := writeTemp(t, `
reload_config_url_path = "/reload"
clear_cache_url_path = "/clear"
status_url_path = "/status"
db_directory = "/tmp/x"
ip = "127.0.0.1"
default_port = 5000
`)

	_, err := NewLoader(path)
	assert.Error(t, err)
}

func TestLoaderReloadKeepsPriorSnapshotOnFailure(t *testing.T) {
	path := writeTemp(t, validTOML)

	l, err := NewLoader(path)
	require.NoError(t, err)
	go l.Run()
	defer l.Close()

	original := l.Config()

	require.NoError(t, os.WriteFile(path, []byte("not valid toml {{{"), 0o600))
	l.Reload()

	// give the background goroutine a moment to process the signal.
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	assert.Same(t, original, l.Config())
}
