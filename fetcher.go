//
// Copyright 2018-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package zipfetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// ErrAlreadyStarted is returned by Run when the fetcher has already run.
var ErrAlreadyStarted = errors.New("zipfetch: fetcher already started")

// ErrCanceled is the cause reported when Cancel stops a run.
var ErrCanceled = errors.New("zipfetch: run canceled")

// State is the lifecycle state of a Fetcher.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateStarted
	StateExtracting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStarted:
		return "started"
	case StateExtracting:
		return "extracting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Request identifies what to fetch and where to extract it.
type Request struct {
	SourceURL string
	// TargetDir always ends with a path separator.
	TargetDir string
}

// Fetcher downloads one archive and extracts it in a directory. A Fetcher
// runs only once.
type Fetcher struct {
	req           Request
	observer      Observer
	config        Config
	client        *http.Client
	log           *slog.Logger
	dispatcher    Dispatcher
	ownDispatcher *SerialDispatcher

	done chan struct{}

	mu        sync.Mutex
	began     bool
	state     State
	outcome   Outcome
	wd        *watchdog
	cancelled bool
}

// New creates a fetcher that will download the archive at sourceURL and
// extract it into targetDir, reporting to observer (which may be nil).
// The target directory is created if missing; a failure is only logged.
func New(sourceURL, targetDir string, observer Observer) *Fetcher {
	return NewWithConfig(sourceURL, targetDir, observer, GetDefaultConfig())
}

// NewWithConfig is like New with an explicit configuration.
func NewWithConfig(sourceURL, targetDir string, observer Observer, config Config) *Fetcher {
	config = config.withDefaults()
	f := &Fetcher{
		req: Request{
			SourceURL: sourceURL,
			TargetDir: normalizeDir(targetDir),
		},
		observer:   observer,
		config:     config,
		client:     newHTTPClient(config),
		log:        config.Logger.With("url", sourceURL),
		dispatcher: config.Dispatcher,
		done:       make(chan struct{}),
	}
	if f.dispatcher == nil {
		f.ownDispatcher = NewSerialDispatcher()
		f.dispatcher = f.ownDispatcher
	}

	if err := os.MkdirAll(f.req.TargetDir, 0755); err != nil {
		f.log.Warn("Could not create target directory", "dir", f.req.TargetDir, "error", err)
	}
	return f
}

func normalizeDir(dir string) string {
	sep := string(os.PathSeparator)
	if dir == "" {
		return "." + sep
	}
	if !strings.HasSuffix(dir, sep) && !strings.HasSuffix(dir, "/") {
		return dir + sep
	}
	return dir
}

// Request returns the normalized request of the fetcher.
func (f *Fetcher) Request() Request {
	return f.req
}

// State returns the current lifecycle state.
func (f *Fetcher) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Done is closed when the run has terminated. When the fetcher owns its
// dispatcher, the terminal callback has been delivered by then.
func (f *Fetcher) Done() <-chan struct{} {
	return f.done
}

// Outcome returns the outcome of the run, or nil while it is running.
func (f *Fetcher) Outcome() Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outcome
}

// Wait blocks until the run terminates and returns its outcome. It must not
// be called from an observer callback of the same fetcher: when the fetcher
// owns its dispatcher, Done is closed only after the callbacks have run.
func (f *Fetcher) Wait() Outcome {
	<-f.done
	return f.Outcome()
}

// Cancel requests the run to stop. The check happens before each archive
// entry and each buffer read; the run then fails with ErrCanceled.
func (f *Fetcher) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = true
	if f.wd != nil {
		f.wd.Stop(ErrCanceled)
	}
}

// Start runs the fetcher on a new goroutine. Use Done, Wait or the observer
// to learn about its termination.
func (f *Fetcher) Start(ctx context.Context) {
	go f.Run(ctx)
}

// Run downloads and extracts the archive on the calling goroutine. It
// returns nil on success or the *Failure delivered to the observer. Run
// must not be called from the goroutine that serves the dispatcher.
func (f *Fetcher) Run(ctx context.Context) error {
	f.mu.Lock()
	if f.began {
		f.mu.Unlock()
		return ErrAlreadyStarted
	}
	f.began = true
	f.mu.Unlock()

	outcome := f.run(ctx)
	f.finish(outcome)
	if failure, ok := outcome.(*Failure); ok {
		return failure
	}
	return nil
}

func (f *Fetcher) run(ctx context.Context) Outcome {
	begin := f.config.Now()
	f.config.Metrics.runStarted()
	defer func() {
		f.config.Metrics.runFinished(f.State() != StateFailed, f.config.Now().Sub(begin))
	}()

	ctx, wd := newWatchdog(ctx, f.config.InactivityTimeout)
	defer wd.Stop(nil)
	f.mu.Lock()
	f.wd = wd
	if f.cancelled {
		wd.Stop(ErrCanceled)
	}
	f.mu.Unlock()

	f.setState(StateConnecting)
	f.log.Info("Starting download")
	resp, err := f.connect(ctx)
	if err != nil {
		if cause := context.Cause(ctx); cause != nil {
			err = &ConnectionError{URL: f.req.SourceURL, Err: cause}
		}
		return f.failure("download failed: "+err.Error(), err)
	}
	defer resp.Body.Close()

	f.setState(StateStarted)
	started := f.config.Now()
	f.post(func() { f.observer.OnStarted(started) })

	dir := f.req.TargetDir
	staging := ""
	if f.config.AtomicCommit {
		if staging, err = createStaging(f.req.TargetDir); err != nil {
			err = &StreamError{Err: err}
			return f.failure("extraction failed: "+err.Error(), err)
		}
		dir = staging
	}

	f.setState(StateExtracting)
	if err := f.extract(ctx, wd.Reader(resp.Body), resp.ContentLength, dir); err != nil {
		f.removeStaging(staging)
		return f.failure("extraction failed: "+err.Error(), err)
	}

	if staging != "" {
		if err := commitStaging(staging, f.req.TargetDir); err != nil {
			f.removeStaging(staging)
			err = &StreamError{Err: err}
			return f.failure("extraction failed: "+err.Error(), err)
		}
	}

	f.log.Info("Download complete", "dir", f.req.TargetDir)
	f.setState(StateSucceeded)
	return &Success{Timestamp: f.config.Now(), Dir: f.req.TargetDir}
}

func (f *Fetcher) removeStaging(staging string) {
	if staging == "" {
		return
	}
	if err := os.RemoveAll(staging); err != nil {
		f.log.Warn("Could not remove staging directory", "dir", staging, "error", err)
	}
}

func (f *Fetcher) failure(message string, err error) *Failure {
	f.log.Error("Download failed", "error", err)
	f.setState(StateFailed)
	return &Failure{Timestamp: f.config.Now(), Message: message, Err: err}
}

// finish records the outcome, delivers the terminal callback and closes
// the done channel.
func (f *Fetcher) finish(outcome Outcome) {
	f.mu.Lock()
	f.outcome = outcome
	f.mu.Unlock()

	switch o := outcome.(type) {
	case *Success:
		f.post(func() { f.observer.OnFinished(o.Timestamp, o.Dir) })
	case *Failure:
		f.post(func() { f.observer.OnFailed(o.Timestamp, o.Message) })
	}
	if f.ownDispatcher != nil {
		f.ownDispatcher.Close()
	}
	close(f.done)
}

func (f *Fetcher) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

// post hands fn over to the dispatcher, never calling the observer from
// the worker goroutine.
func (f *Fetcher) post(fn func()) {
	if f.observer == nil {
		return
	}
	f.dispatcher.Post(fn)
}

// warn logs a non-fatal problem and reports it to a WarningObserver.
func (f *Fetcher) warn(err error) {
	f.log.Warn("Continuing after error", "error", err)
	wo, ok := f.observer.(WarningObserver)
	if !ok {
		return
	}
	ts := f.config.Now()
	msg := err.Error()
	f.post(func() { wo.OnWarning(ts, msg) })
}

// elapsedSince is used by the progress throttle.
func (f *Fetcher) elapsedSince(t time.Time) (time.Time, time.Duration) {
	now := f.config.Now()
	return now, now.Sub(t)
}
