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

// Package store defines the persistent key-value boundary the cache engine
// writes through, and the concrete backends a deployment can select.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/kacheio/proxycache/pkg/config"
)

// ErrNotFound is returned by Get when key is absent.
var ErrNotFound = errors.New("store: not found")

// Store is an ordered, thread-safe, persistent byte-keyed store. The cache
// engine treats keys and values as opaque; encoding is its concern, not the
// store's.
type Store interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	Insert(ctx context.Context, key, value []byte) error
	Clear(ctx context.Context) error
	Flush(ctx context.Context) error
	Close() error
}

// Open opens the backend selected by cfg.Store.Backend.
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "", "leveldb":
		return openLevelDB(cfg.LevelDB)
	case "inmemory":
		return openInMemory(cfg.InMemory)
	case "redis":
		return openRedis(cfg.Redis)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
}
