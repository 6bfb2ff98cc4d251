//
// Copyright 2018-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// Command zipfetch downloads a zip archive and extracts it in a directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.bug.st/zipfetch"
)

// Exit codes
const (
	ExitSuccess          = 0
	ExitGeneralError     = 1
	ExitInvalidArgs      = 2
	ExitSourceNotAccess  = 3
	ExitExtractionFailed = 4
	ExitCanceled         = 5
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

type headerFlags map[string]string

func (h headerFlags) String() string {
	var parts []string
	for k, v := range h {
		parts = append(parts, k+": "+v)
	}
	return strings.Join(parts, ", ")
}

func (h headerFlags) Set(value string) error {
	k, v, ok := strings.Cut(value, ":")
	if !ok {
		return fmt.Errorf("header must be 'Name: value': %s", value)
	}
	h[strings.TrimSpace(k)] = strings.TrimSpace(v)
	return nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("zipfetch", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "YAML configuration file")
	envFile := fs.String("env-file", ".env", "Environment file loaded before reading ZIPFETCH_* variables")
	redirects := fs.Int("redirects", zipfetch.DefaultMaxRedirects, "Number of 301/302 hops to follow (0 disables)")
	connectTimeout := fs.Duration("connect-timeout", 0, "Timeout for connecting to the server")
	inactivity := fs.Duration("inactivity-timeout", 0, "Abort when no data is received for this long")
	interval := fs.Duration("progress-interval", 0, "Minimum time between progress lines")
	atomic := fs.Bool("atomic", false, "Extract into a staging directory and move in place only on success")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error")
	metricsAddr := fs.String("metrics-addr", "", "Serve Prometheus metrics on this address while running")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	headers := headerFlags{}
	fs.Var(headers, "header", "Extra request header 'Name: value' (repeatable)")

	fs.Usage = func() {
		fmt.Fprintln(stderr, `Usage: zipfetch [options] <url> <dir>

Download a zip archive over HTTP(S) and extract it into dir.
Hidden entries are skipped.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		return ExitInvalidArgs
	}

	cfg := Default()
	if *configPath != "" {
		loaded, err := LoadFromFile(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return ExitInvalidArgs
		}
		cfg = loaded
	}
	if err := LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	if err := cfg.LoadFromEnv(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	// explicit flags win over file and environment
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "redirects":
			cfg.MaxRedirects = *redirects
		case "connect-timeout":
			cfg.ConnectTimeout = *connectTimeout
		case "inactivity-timeout":
			cfg.InactivityTimeout = *inactivity
		case "progress-interval":
			cfg.ProgressInterval = *interval
		case "atomic":
			cfg.AtomicCommit = *atomic
		case "log-level":
			cfg.LogLevel = *logLevel
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		case "no-color":
			cfg.NoColor = *noColor
		}
	})
	if len(headers) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for k, v := range headers {
			cfg.Headers[k] = v
		}
	}
	switch fs.NArg() {
	case 0:
	case 2:
		cfg.URL = fs.Arg(0)
		cfg.Dir = fs.Arg(1)
	default:
		fs.Usage()
		return ExitInvalidArgs
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		fs.Usage()
		return ExitInvalidArgs
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return fetch(ctx, cfg, stdout, stderr)
}

func fetch(ctx context.Context, cfg Config, stdout, stderr io.Writer) int {
	fetcherConfig := cfg.FetcherConfig()
	fetcherConfig.Logger = newLogger(stderr, cfg.LogLevel)

	reg := prometheus.NewRegistry()
	fetcherConfig.Metrics = zipfetch.NewMetrics(reg)
	if cfg.MetricsAddr != "" {
		server := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fetcherConfig.Logger.Error("Metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	out := newConsole(stdout, cfg.URL, cfg.NoColor)
	f := zipfetch.NewWithConfig(cfg.URL, cfg.Dir, out, fetcherConfig)
	return exitCode(f.Run(ctx))
}

func exitCode(err error) int {
	var (
		connErr   *zipfetch.ConnectionError
		statusErr *zipfetch.StatusError
		streamErr *zipfetch.StreamError
	)
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, context.Canceled), errors.Is(err, zipfetch.ErrCanceled):
		return ExitCanceled
	case errors.As(err, &connErr), errors.As(err, &statusErr):
		return ExitSourceNotAccess
	case errors.As(err, &streamErr):
		return ExitExtractionFailed
	default:
		return ExitGeneralError
	}
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
