//
// Copyright 2018-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package zipfetch

import (
	"fmt"
	"net/http"
)

// ConnectionError is returned when the server cannot be reached, the URL is
// invalid or a redirect cannot be followed. It happens before the run starts.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connecting to %s: %s", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// StatusError is returned when the final response status is not 200 OK.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP code %d (%s) from %s", e.Code, http.StatusText(e.Code), e.URL)
}

// StreamError is returned when reading the archive or writing an entry fails
// after the run has started. Entry is empty when the failure is not bound to
// a specific entry.
type StreamError struct {
	Entry string
	Err   error
}

func (e *StreamError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("reading archive: %s", e.Err)
	}
	return fmt.Sprintf("extracting %s: %s", e.Entry, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// DirectoryError describes a directory that could not be created. It never
// aborts a run: it is logged and reported to a WarningObserver.
type DirectoryError struct {
	Path string
	Err  error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("could not create directory %s: %s", e.Path, e.Err)
}

func (e *DirectoryError) Unwrap() error {
	return e.Err
}
