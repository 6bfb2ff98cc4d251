//
// Copyright 2018-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package zipfetch

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSerialDispatcherOrder(t *testing.T) {
	d := NewSerialDispatcher()
	var got []int
	for i := 0; i < 1000; i++ {
		d.Post(func() { got = append(got, i) })
	}
	d.Close()

	require.Len(t, got, 1000)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}

func TestSerialDispatcherConcurrentPost(t *testing.T) {
	d := NewSerialDispatcher()
	var mu sync.Mutex
	count := 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				d.Post(func() {
					mu.Lock()
					count++
					mu.Unlock()
				})
			}
		}()
	}
	wg.Wait()
	d.Close()
	require.Equal(t, 800, count)
}

func TestSerialDispatcherPostNeverBlocks(t *testing.T) {
	d := NewSerialDispatcher()
	release := make(chan struct{})
	d.Post(func() { <-release })
	for i := 0; i < 100; i++ {
		d.Post(func() {})
	}
	close(release)
	d.Close()
}

func TestSerialDispatcherDropsAfterClose(t *testing.T) {
	d := NewSerialDispatcher()
	d.Close()
	called := false
	d.Post(func() { called = true })
	d.Close()
	require.False(t, called)
}

func TestDispatcherFunc(t *testing.T) {
	var posted int
	d := DispatcherFunc(func(fn func()) {
		posted++
		fn()
	})
	ran := false
	d.Post(func() { ran = true })
	require.Equal(t, 1, posted)
	require.True(t, ran)
}
