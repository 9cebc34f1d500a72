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

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/kacheio/proxycache/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelDBStoreGetInsertClear(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	s, err := Open(config.StoreConfig{Backend: "leveldb", LevelDB: config.LevelDBConfig{Directory: dir}})
	require.NoError(t, err)
	defer s.Close()

	runStoreContract(t, s)
}

func TestMemoryStoreGetInsertClear(t *testing.T) {
	s, err := Open(config.StoreConfig{Backend: "inmemory", InMemory: config.InMemoryConfig{MaxEntries: 10}})
	require.NoError(t, err)
	defer s.Close()

	runStoreContract(t, s)
}

func TestRedisStoreGetInsertClear(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := Open(config.StoreConfig{Backend: "redis", Redis: config.RedisConfig{Endpoint: mr.Addr()}})
	require.NoError(t, err)
	defer s.Close()

	runStoreContract(t, s)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(config.StoreConfig{Backend: "bogus"})
	assert.Error(t, err)
}

func runStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, []byte("missing"))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Insert(ctx, []byte("key-1"), []byte("value-1")))

	got, err := s.Get(ctx, []byte("key-1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("value-1"), got)

	require.NoError(t, s.Clear(ctx))

	_, err = s.Get(ctx, []byte("key-1"))
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, s.Flush(ctx))
}
