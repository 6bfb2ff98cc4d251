//
// Copyright 2018-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package zipfetch

import (
	"context"
	"io"
	"os"
	"time"
)

// watchdog cancels its context when no data has been received for the
// configured timeout, or when the run is cancelled explicitly.
type watchdog struct {
	cancel  context.CancelCauseFunc
	timer   *time.Timer
	timeout time.Duration
}

func newWatchdog(parent context.Context, timeout time.Duration) (context.Context, *watchdog) {
	ctx, cancel := context.WithCancelCause(parent)
	wd := &watchdog{
		cancel:  cancel,
		timeout: timeout,
	}
	if timeout > 0 {
		wd.timer = time.AfterFunc(timeout, func() {
			cancel(os.ErrDeadlineExceeded)
		})
	}
	return ctx, wd
}

// Kick postpones the inactivity deadline.
func (wd *watchdog) Kick() {
	if wd.timer != nil {
		wd.timer.Reset(wd.timeout)
	}
}

// Stop releases the timer and the context. cause is reported by
// context.Cause, nil means context.Canceled.
func (wd *watchdog) Stop(cause error) {
	if wd.timer != nil {
		wd.timer.Stop()
	}
	wd.cancel(cause)
}

// Reader returns r wrapped so that every successful read kicks the watchdog.
func (wd *watchdog) Reader(r io.Reader) io.Reader {
	return &kickingReader{r: r, wd: wd}
}

type kickingReader struct {
	r  io.Reader
	wd *watchdog
}

func (k *kickingReader) Read(p []byte) (int, error) {
	n, err := k.r.Read(p)
	if n > 0 {
		k.wd.Kick()
	}
	return n, err
}
