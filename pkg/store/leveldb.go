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

	"github.com/kacheio/proxycache/pkg/config"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// leveldbStore is the default, embedded persistent store backend.
type leveldbStore struct {
	db *leveldb.DB
}

func openLevelDB(cfg config.LevelDBConfig) (Store, error) {
	db, err := leveldb.OpenFile(cfg.Directory, nil)
	if err != nil {
		return nil, err
	}
	return &leveldbStore{db: db}, nil
}

func (s *leveldbStore) Get(_ context.Context, key []byte) ([]byte, error) {
	value, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *leveldbStore) Insert(_ context.Context, key, value []byte) error {
	return s.db.Put(key, value, nil)
}

func (s *leveldbStore) Clear(_ context.Context) error {
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	for iter.Next() {
		batch.Delete(append([]byte(nil), iter.Key()...))
	}
	if err := iter.Error(); err != nil {
		return err
	}
	return s.db.Write(batch, nil)
}

func (s *leveldbStore) Flush(_ context.Context) error {
	// goleveldb has no explicit flush; writing with Sync forces data to disk.
	return s.db.Write(new(leveldb.Batch), &opt.WriteOptions{Sync: true})
}

func (s *leveldbStore) Close() error {
	return s.db.Close()
}
