//
// Copyright 2018-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package zipfetch

import (
	"archive/zip"
	"bytes"
	"hash/crc32"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testEntry struct {
	name   string
	body   []byte
	stored bool
}

func buildZip(t *testing.T, entries ...testEntry) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		if e.stored {
			// sizes in the local header, no data descriptor
			hdr := &zip.FileHeader{
				Name:               e.name,
				Method:             zip.Store,
				CRC32:              crc32.ChecksumIEEE(e.body),
				CompressedSize64:   uint64(len(e.body)),
				UncompressedSize64: uint64(len(e.body)),
			}
			fw, err := w.CreateRaw(hdr)
			require.NoError(t, err)
			_, err = fw.Write(e.body)
			require.NoError(t, err)
			continue
		}
		fw, err := w.Create(e.name)
		require.NoError(t, err)
		_, err = fw.Write(e.body)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// randomBytes returns n bytes that deflate cannot shrink much.
func randomBytes(n int, seed int64) []byte {
	data := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(data)
	return data
}

// archiveServer serves data at /archive.zip and a few redirecting or
// failing routes around it.
func archiveServer(t *testing.T, data []byte) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/archive.zip", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		_, _ = w.Write(data)
	})
	mux.HandleFunc("/chunked.zip", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		_, _ = w.Write(data)
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/archive.zip", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/found", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/moved", http.StatusFound)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// stallingServer sends the first half of data, then waits until the client
// goes away.
func stallingServer(t *testing.T, data []byte) *httptest.Server {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		_, _ = w.Write(data[:len(data)/2])
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })
	return server
}

type event struct {
	kind      string
	ts        time.Time
	processed int64
	total     int64
	message   string
}

// recorder is an Observer that keeps every event it receives.
type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) add(e event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) OnStarted(ts time.Time) {
	r.add(event{kind: "started", ts: ts})
}

func (r *recorder) OnProgress(ts time.Time, processed, total int64) {
	r.add(event{kind: "progress", ts: ts, processed: processed, total: total})
}

func (r *recorder) OnFinished(ts time.Time, dir string) {
	r.add(event{kind: "finished", ts: ts, message: dir})
}

func (r *recorder) OnFailed(ts time.Time, message string) {
	r.add(event{kind: "failed", ts: ts, message: message})
}

func (r *recorder) OnWarning(ts time.Time, message string) {
	r.add(event{kind: "warning", ts: ts, message: message})
}

func (r *recorder) all() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event(nil), r.events...)
}

func (r *recorder) kinds() []string {
	var res []string
	for _, e := range r.all() {
		if e.kind != "progress" && e.kind != "warning" {
			res = append(res, e.kind)
		}
	}
	return res
}

func (r *recorder) filter(kind string) []event {
	var res []event
	for _, e := range r.all() {
		if e.kind == kind {
			res = append(res, e)
		}
	}
	return res
}

func (r *recorder) last() event {
	events := r.all()
	return events[len(events)-1]
}

type headerRecorder struct {
	got *atomic.Value
}

func (h headerRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	h.got.Store(req.Header.Get("X-Device"))
	return http.DefaultTransport.RoundTrip(req)
}

// recordingClient stores the X-Device header of the last request in got.
func recordingClient(got *atomic.Value) *http.Client {
	return &http.Client{Transport: headerRecorder{got: got}}
}

// steppingClock returns a Now function advancing by step at every call.
func steppingClock(step time.Duration) func() time.Time {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var calls atomic.Int64
	return func() time.Time {
		return base.Add(time.Duration(calls.Add(1)) * step)
	}
}
