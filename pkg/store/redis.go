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
	"strings"

	"github.com/kacheio/proxycache/pkg/config"
	"github.com/redis/go-redis/v9"
)

// redisStore is a thin wrapper around a Redis universal client, storing the
// encoded cache value blob under the fingerprint bytes (hex-encoded, since
// Redis keys are conventionally printable).
type redisStore struct {
	client redis.UniversalClient
}

func openRedis(cfg config.RedisConfig) (Store, error) {
	opts := &redis.UniversalOptions{
		Addrs:    strings.Split(cfg.Endpoint, ","),
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	client := redis.NewUniversalClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &redisStore{client: client}, nil
}

func (s *redisStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	v, err := s.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *redisStore) Insert(ctx context.Context, key, value []byte) error {
	return s.client.Set(ctx, redisKey(key), value, 0).Err()
}

func (s *redisStore) Clear(ctx context.Context) error {
	return s.client.FlushDB(ctx).Err()
}

func (s *redisStore) Flush(_ context.Context) error {
	// Redis persists entries per its own configured policy (RDB/AOF); there
	// is no client-side flush-to-disk operation to trigger here.
	return nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

func redisKey(key []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(key)*2)
	for i, b := range key {
		out[i*2] = hexDigits[b>>4]
		out[i*2+1] = hexDigits[b&0x0f]
	}
	return string(out)
}
