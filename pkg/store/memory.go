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

	"github.com/kacheio/proxycache/pkg/config"
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMaxEntries = 10_000

// memoryStore is a bounded in-memory LRU store, for deployments that accept
// losing the cache across restarts.
type memoryStore struct {
	inner *lru.Cache[string, []byte]
}

func openInMemory(cfg config.InMemoryConfig) (Store, error) {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	c, err := lru.New[string, []byte](maxEntries)
	if err != nil {
		return nil, err
	}
	return &memoryStore{inner: c}, nil
}

func (s *memoryStore) Get(_ context.Context, key []byte) ([]byte, error) {
	v, ok := s.inner.Get(string(key))
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (s *memoryStore) Insert(_ context.Context, key, value []byte) error {
	s.inner.Add(string(key), value)
	return nil
}

func (s *memoryStore) Clear(_ context.Context) error {
	s.inner.Purge()
	return nil
}

func (s *memoryStore) Flush(_ context.Context) error {
	return nil
}

func (s *memoryStore) Close() error {
	return nil
}
