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

package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kacheio/proxycache/pkg/config"
	"github.com/kacheio/proxycache/pkg/proxy"
	"github.com/kacheio/proxycache/pkg/utils/logger"
	"github.com/kacheio/proxycache/pkg/utils/version"
	"github.com/rs/zerolog/log"
)

const (
	configFileName = "proxycache.toml"

	configFileOption = "config.file"
	versionOption    = "version"
	versionUsage     = "Print application version and exit."
)

func main() {
	// Cleanup all flags registered via init() methods of 3rd-party libraries.
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	var printVersion bool
	flag.BoolVar(&printVersion, versionOption, false, versionUsage)

	var configFile string
	flag.StringVar(&configFile, configFileOption, configFileName, "")

	flag.Parse()

	if printVersion {
		_, _ = fmt.Fprintln(os.Stdout, version.Print("proxycache"))
		return
	}

	rt := proxy.New(configFile, buildClient,
		proxy.WithOnServerStart(func() {
			log.Info().Str("version", version.Info()).Msg("proxycache just started")
		}),
		proxy.WithOnServerStop(func() {
			log.Info().Msg("proxycache stopped")
		}),
	)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-signals
		log.Info().Str("signal", s.String()).Msg("received shutdown signal")
		rt.Shutdown()
	}()

	log.Info().Str("config", configFile).Msg("proxycache is starting")

	if err := rt.Run(); err != nil {
		log.Fatal().Err(err).Msg("running proxy runtime")
	}
}

// buildClient constructs the shared HTTP client used for every origin send,
// honoring the configured origin read timeout.
func buildClient(cfg *config.Configuration) *http.Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func init() {
	logger.InitLogger(nil)
}
