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

// Package clock provides a replaceable source of the current wall-clock
// timestamp, so that cache expiry can be tested deterministically.
package clock

import (
	"sync"
	"time"
)

// Source returns the current time as seconds since the epoch.
type Source func() int64

var (
	mu  sync.RWMutex
	src Source = systemNow
)

// systemNow is the default, real wall-clock source.
func systemNow() int64 {
	return time.Now().UTC().Unix()
}

// Now returns the current time as seconds since the epoch, using whichever
// source is currently installed. Safe to call from concurrent request
// handlers; reads are uncontended in the common case.
func Now() int64 {
	mu.RLock()
	defer mu.RUnlock()
	return src()
}

// Set installs a replacement time source. Tests use this to advance the
// clock deterministically instead of sleeping.
func Set(fn Source) {
	mu.Lock()
	defer mu.Unlock()
	if fn == nil {
		src = systemNow
		return
	}
	src = fn
}

// Freeze installs a fixed-time source pinned at t, returning a setter the
// caller can use to move the frozen clock forward without reinstalling a
// whole new closure.
func Freeze(t int64) (advance func(deltaSeconds int64)) {
	var mu2 sync.Mutex
	now := t
	Set(func() int64 {
		mu2.Lock()
		defer mu2.Unlock()
		return now
	})
	return func(deltaSeconds int64) {
		mu2.Lock()
		now += deltaSeconds
		mu2.Unlock()
	}
}
