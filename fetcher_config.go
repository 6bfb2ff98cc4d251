//
// Copyright 2018-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package zipfetch

import (
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	// DefaultProgressInterval is the minimum time between two progress
	// notifications of the same run.
	DefaultProgressInterval = 2000 * time.Millisecond

	// DefaultBufferSize is the size of the buffer used to copy each entry.
	DefaultBufferSize = 2048

	// DefaultMaxRedirects is the number of redirect hops followed.
	DefaultMaxRedirects = 1
)

// Config contains the configuration for the fetcher
type Config struct {
	// HttpClient to use to perform HTTP requests. If nil a client is built
	// from the timeouts below. Automatic redirects of a provided client are
	// disabled on a copy, redirects are always followed by the fetcher.
	HttpClient *http.Client
	// ExtraHeaders to add to the HTTP requests.
	ExtraHeaders map[string]string
	// MaxRedirects is the number of 301/302 hops followed before the
	// response is treated as a failure. Zero means DefaultMaxRedirects,
	// a negative value disables redirects.
	MaxRedirects int
	// ConnectTimeout bounds dialing the server. If set to 0 the platform
	// default applies.
	ConnectTimeout time.Duration
	// ResponseHeaderTimeout bounds the wait for the response headers once
	// the request is written. If set to 0, no timeout is applied.
	ResponseHeaderTimeout time.Duration
	// InactivityTimeout is the duration after which, if no data is received,
	// the run is aborted. If set to 0, no timeout is applied.
	InactivityTimeout time.Duration
	// ProgressInterval is the minimum time between progress notifications.
	// Zero means DefaultProgressInterval.
	ProgressInterval time.Duration
	// BufferSize is the size of the copy buffer. Zero means DefaultBufferSize.
	BufferSize int
	// AtomicCommit extracts into a staging directory next to the target and
	// moves the result in place only on success. Partial output of a failed
	// run is removed.
	AtomicCommit bool
	// Dispatcher receives the observer callbacks. If nil each fetcher uses
	// its own serial dispatcher.
	Dispatcher Dispatcher
	// Logger receives diagnostic messages. If nil logging is disabled.
	Logger *slog.Logger
	// Metrics is updated by every run when not nil.
	Metrics *Metrics
	// Now returns the current time, used for timestamps and throttling.
	Now func() time.Time
}

var defaultConfig Config = Config{}
var defaultConfigLock sync.Mutex

// SetDefaultConfig sets the configuration that will be used by the New
// function.
func SetDefaultConfig(newConfig Config) {
	defaultConfigLock.Lock()
	defer defaultConfigLock.Unlock()
	defaultConfig = newConfig
}

// GetDefaultConfig returns a copy of the default configuration. The default
// configuration can be changed using the SetDefaultConfig function.
func GetDefaultConfig() Config {
	defaultConfigLock.Lock()
	defer defaultConfigLock.Unlock()

	// deep copy struct
	return defaultConfig
}

// withDefaults fills the zero fields of c.
func (c Config) withDefaults() Config {
	if c.MaxRedirects == 0 {
		c.MaxRedirects = DefaultMaxRedirects
	} else if c.MaxRedirects < 0 {
		c.MaxRedirects = 0
	}
	if c.ProgressInterval <= 0 {
		c.ProgressInterval = DefaultProgressInterval
	}
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}
