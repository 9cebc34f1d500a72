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

package api

import (
	"net/http"
	"net/http/pprof"
	"runtime"

	"github.com/gorilla/mux"
)

// appendPprof mounts the standard net/http/pprof handlers behind filter,
// gated by the same IP allowlist as the rest of the debug listener.
func appendPprof(router *mux.Router, filter func(http.HandlerFunc) http.HandlerFunc) {
	runtime.SetBlockProfileRate(1)
	runtime.SetMutexProfileFraction(5)

	router.Methods(http.MethodGet).Path("/debug/pprof/cmdline").HandlerFunc(filter(pprof.Cmdline))
	router.Methods(http.MethodGet).Path("/debug/pprof/profile").HandlerFunc(filter(pprof.Profile))
	router.Methods(http.MethodGet).Path("/debug/pprof/symbol").HandlerFunc(filter(pprof.Symbol))
	router.Methods(http.MethodGet).Path("/debug/pprof/trace").HandlerFunc(filter(pprof.Trace))
	router.Methods(http.MethodGet).PathPrefix("/debug/pprof/").HandlerFunc(filter(pprof.Index))
}
