//
// Copyright 2018-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package zipfetch

import (
	"errors"
	"time"
)

// Observer receives the state changes of a run. OnStarted is called at most
// once, OnProgress only after OnStarted, and exactly one of OnFinished or
// OnFailed is called as the last event. Callbacks must not block on Wait or
// Done of the fetcher that calls them.
type Observer interface {
	OnStarted(ts time.Time)
	OnProgress(ts time.Time, bytesProcessed, totalBytes int64)
	OnFinished(ts time.Time, dir string)
	OnFailed(ts time.Time, message string)
}

// WarningObserver is implemented by observers that want to be told about
// non-fatal problems, like a directory entry that could not be created.
type WarningObserver interface {
	OnWarning(ts time.Time, message string)
}

// ObserverFuncs adapts a set of functions to the Observer and
// WarningObserver interfaces. Nil functions are ignored.
type ObserverFuncs struct {
	Started  func(ts time.Time)
	Progress func(ts time.Time, bytesProcessed, totalBytes int64)
	Finished func(ts time.Time, dir string)
	Failed   func(ts time.Time, message string)
	Warning  func(ts time.Time, message string)
}

func (o ObserverFuncs) OnStarted(ts time.Time) {
	if o.Started != nil {
		o.Started(ts)
	}
}

func (o ObserverFuncs) OnProgress(ts time.Time, bytesProcessed, totalBytes int64) {
	if o.Progress != nil {
		o.Progress(ts, bytesProcessed, totalBytes)
	}
}

func (o ObserverFuncs) OnFinished(ts time.Time, dir string) {
	if o.Finished != nil {
		o.Finished(ts, dir)
	}
}

func (o ObserverFuncs) OnFailed(ts time.Time, message string) {
	if o.Failed != nil {
		o.Failed(ts, message)
	}
}

func (o ObserverFuncs) OnWarning(ts time.Time, message string) {
	if o.Warning != nil {
		o.Warning(ts, message)
	}
}

// ProgressSample is a snapshot of the bytes extracted so far. TotalBytes is
// the Content-Length of the archive, or -1 if the server did not send it.
type ProgressSample struct {
	Timestamp      time.Time
	BytesProcessed int64
	TotalBytes     int64
}

// Outcome is the terminal result of a run: either *Success or *Failure.
type Outcome interface {
	// Time is when the run terminated.
	Time() time.Time
	outcome()
}

// Success is the outcome of a run that extracted the whole archive.
type Success struct {
	Timestamp time.Time
	// Dir is the normalized target directory, with a trailing separator.
	Dir string
}

func (s *Success) Time() time.Time { return s.Timestamp }
func (*Success) outcome()          {}

// Failure is the outcome of a run that was aborted.
type Failure struct {
	Timestamp time.Time
	Message   string
	// Err is the underlying cause, usable with errors.As.
	Err error
}

func (f *Failure) Time() time.Time { return f.Timestamp }
func (*Failure) outcome()          {}

func (f *Failure) Error() string {
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// ChannelObserver is an Observer that forwards events to channels, for
// callers that prefer to select over a progress stream and a single result.
// Progress samples are dropped when the progress buffer is full; the start
// and result channels never block the dispatcher.
type ChannelObserver struct {
	started  chan time.Time
	progress chan ProgressSample
	warnings chan string
	result   chan Outcome
}

// NewChannelObserver creates a ChannelObserver whose progress and warning
// channels hold up to buffer pending values.
func NewChannelObserver(buffer int) *ChannelObserver {
	return &ChannelObserver{
		started:  make(chan time.Time, 1),
		progress: make(chan ProgressSample, buffer),
		warnings: make(chan string, buffer),
		result:   make(chan Outcome, 1),
	}
}

// Started receives the start time, if the run gets to start.
func (c *ChannelObserver) Started() <-chan time.Time { return c.started }

// Progress receives progress samples. It is closed after the run terminates.
func (c *ChannelObserver) Progress() <-chan ProgressSample { return c.progress }

// Warnings receives non-fatal warnings. It is closed after the run terminates.
func (c *ChannelObserver) Warnings() <-chan string { return c.warnings }

// Result receives the outcome of the run.
func (c *ChannelObserver) Result() <-chan Outcome { return c.result }

func (c *ChannelObserver) OnStarted(ts time.Time) {
	c.started <- ts
}

func (c *ChannelObserver) OnProgress(ts time.Time, bytesProcessed, totalBytes int64) {
	select {
	case c.progress <- ProgressSample{Timestamp: ts, BytesProcessed: bytesProcessed, TotalBytes: totalBytes}:
	default:
	}
}

func (c *ChannelObserver) OnWarning(_ time.Time, message string) {
	select {
	case c.warnings <- message:
	default:
	}
}

func (c *ChannelObserver) OnFinished(ts time.Time, dir string) {
	c.finish(&Success{Timestamp: ts, Dir: dir})
}

func (c *ChannelObserver) OnFailed(ts time.Time, message string) {
	c.finish(&Failure{Timestamp: ts, Message: message, Err: errors.New(message)})
}

func (c *ChannelObserver) finish(o Outcome) {
	close(c.progress)
	close(c.warnings)
	c.result <- o
	close(c.result)
	close(c.started)
}
