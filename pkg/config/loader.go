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
	"sync/atomic"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog/log"
)

// Loader owns the configuration file path and the atomically-swappable
// snapshot every request handler reads from. Unlike a filesystem watcher,
// reload here is triggered explicitly by the reload-config admin endpoint:
// a caller publishes to Reload() and a background goroutine re-reads the
// file and swaps the snapshot on success, logging and keeping the prior
// snapshot on failure.
type Loader struct {
	path   string
	config atomic.Pointer[Configuration]

	reload chan struct{}
	done   chan struct{}
}

// NewLoader reads path once and returns a Loader primed with that snapshot.
func NewLoader(path string) (*Loader, error) {
	l := &Loader{
		path:   path,
		reload: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	if err := l.load(); err != nil {
		return nil, err
	}
	return l, nil
}

// Config returns the current configuration snapshot. Safe for concurrent use.
func (l *Loader) Config() *Configuration {
	return l.config.Load()
}

// Path returns the configured file path.
func (l *Loader) Path() string {
	return l.path
}

// Reload schedules an asynchronous reload. Non-blocking: a reload already
// pending absorbs this signal.
func (l *Loader) Reload() {
	select {
	case l.reload <- struct{}{}:
	default:
	}
}

// Run processes reload signals until Close is called. Intended to run in its
// own goroutine for the lifetime of the process.
func (l *Loader) Run() {
	for {
		select {
		case <-l.reload:
			if err := l.load(); err != nil {
				log.Error().Err(err).Str("path", l.path).Msg("config reload failed, keeping prior snapshot")
			}
		case <-l.done:
			return
		}
	}
}

// Close stops Run.
func (l *Loader) Close() {
	close(l.done)
}

func (l *Loader) load() error {
	cfg := &Configuration{}
	if _, err := toml.DecodeFile(l.path, cfg); err != nil {
		return err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	l.config.Store(cfg)
	return nil
}
