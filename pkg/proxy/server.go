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

package proxy

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	readTimeout            = 30 * time.Second
	writeTimeout           = 30 * time.Second
	idleTimeout            = 60 * time.Second
	gracefulShutdownWindow = 5 * time.Second
)

// httpServer binds a single listener and drains it gracefully on Shutdown.
// Mirrors the bind/serve/drain shape of the proxy listener, stripped down to
// the one listener this runtime needs.
type httpServer struct {
	addr     string
	listener net.Listener
	server   *http.Server

	stopCh chan struct{}
}

func newHTTPServer(addr string, handler http.HandlerFunc) *httpServer {
	return &httpServer{
		addr: addr,
		server: &http.Server{
			Handler:      handler,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  idleTimeout,
		},
		stopCh: make(chan struct{}),
	}
}

// Listen binds the listener. Serve and the request handler only start
// accepting once this returns without error.
func (s *httpServer) Listen() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = l
	return nil
}

// Serve starts accepting connections in the background.
func (s *httpServer) Serve() {
	go func() {
		if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("proxy listener stopped unexpectedly")
		}
	}()
}

// Shutdown stops accepting new connections and drains in-flight ones, up to
// gracefulShutdownWindow before forcing the remainder closed.
func (s *httpServer) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownWindow)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown window exceeded, forcing close")
		_ = s.server.Close()
	}
	close(s.stopCh)
}

// AwaitShutdown blocks until Shutdown has been called and has completed.
func (s *httpServer) AwaitShutdown() {
	<-s.stopCh
}

func bgContext() context.Context {
	return context.Background()
}

func copyBody(w io.Writer, resp *http.Response) (int64, error) {
	if resp.Body == nil {
		return 0, nil
	}
	return io.Copy(w, resp.Body)
}
