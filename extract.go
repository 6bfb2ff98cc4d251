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
	"io"
	"os"
	"path/filepath"
	"time"
)

// ErrPathTraversal is returned for entries whose name would be extracted
// outside of the target directory.
var ErrPathTraversal = errors.New("zipfetch: entry escapes the target directory")

// progressThrottle emits progress at most once per interval.
type progressThrottle struct {
	f         *Fetcher
	total     int64
	processed int64
	last      time.Time
}

func (p *progressThrottle) add(n int) {
	p.processed += int64(n)
	now, elapsed := p.f.elapsedSince(p.last)
	if elapsed < p.f.config.ProgressInterval {
		return
	}
	p.last = now
	processed, total := p.processed, p.total
	p.f.post(func() { p.f.observer.OnProgress(now, processed, total) })
}

// extract streams the archive entries from body into dir. total is the
// Content-Length of the body, -1 if unknown.
func (f *Fetcher) extract(ctx context.Context, body io.Reader, total int64, dir string) error {
	zs := newZipStream(body)
	buf := make([]byte, f.config.BufferSize)
	progress := &progressThrottle{f: f, total: total}

	for {
		if ctx.Err() != nil {
			return &StreamError{Err: context.Cause(ctx)}
		}
		entry, content, err := zs.Next()
		if err == io.EOF {
			f.log.Debug("Processed archive", "bytes", progress.processed)
			return nil
		}
		if err != nil {
			return &StreamError{Err: interrupted(ctx, err)}
		}

		f.log.Debug("Extracting entry", "name", entry.Name)
		dest, err := destination(dir, entry.Name)
		if err != nil {
			return &StreamError{Entry: entry.Name, Err: err}
		}

		if isHiddenEntry(entry.Name, dest) {
			f.log.Debug("Skipping hidden entry", "name", entry.Name)
			f.config.Metrics.entry("hidden")
			continue
		}

		if isDirName(entry.Name) {
			f.config.Metrics.entry("dir")
			if info, err := os.Stat(dest); err == nil && info.IsDir() {
				continue
			}
			f.log.Debug("Creating folder", "path", dest)
			if err := os.MkdirAll(dest, 0755); err != nil {
				f.warn(&DirectoryError{Path: dest, Err: err})
			}
			continue
		}

		f.config.Metrics.entry("file")
		if err := f.extractFile(ctx, content, dest, buf, progress); err != nil {
			return &StreamError{Entry: entry.Name, Err: interrupted(ctx, err)}
		}
		f.log.Debug("Processed bytes", "total", progress.processed)
	}
}

// extractFile copies one entry into a new (or truncated) file at dest.
func (f *Fetcher) extractFile(ctx context.Context, content io.Reader, dest string, buf []byte, progress *progressThrottle) error {
	if parent := filepath.Dir(dest); parent != "" {
		if err := os.MkdirAll(parent, 0755); err != nil {
			f.warn(&DirectoryError{Path: parent, Err: err})
		}
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			_ = out.Close()
			return context.Cause(ctx)
		}
		n, readErr := content.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				_ = out.Close()
				return fmt.Errorf("writing %s: %w", dest, err)
			}
			f.config.Metrics.bytesWritten(n)
			progress.add(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			_ = out.Close()
			return readErr
		}
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", dest, err)
	}
	return nil
}

// destination resolves the path of an entry inside dir, which ends with a
// separator.
func destination(dir, name string) (string, error) {
	local := filepath.FromSlash(name)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("%w: %s", ErrPathTraversal, name)
	}
	return dir + local, nil
}

// interrupted replaces err with the cancellation cause when the run was
// stopped, since the read error is then only a consequence.
func interrupted(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); cause != nil {
		return cause
	}
	return err
}
