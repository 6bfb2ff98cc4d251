//
// Copyright 2018-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// Package zipfetch downloads a ZIP archive over HTTP(S) and streams its
// entries into a local directory, reporting start, throttled progress and
// a single terminal outcome to an Observer.
//
// The archive is never stored on disk nor held in memory as a whole: local
// file headers are decoded directly from the response body and each entry
// is written as soon as it is read. Hidden entries are skipped.
//
// Observer callbacks are never invoked on the worker goroutine; they are
// posted to a Dispatcher, by default a serial queue owned by the Fetcher.
//
//	f := zipfetch.New("https://example.com/content.zip", "/var/lib/app/content", observer)
//	f.Start(ctx)
//	outcome := f.Wait()
package zipfetch
