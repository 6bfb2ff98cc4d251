//
// Copyright 2018-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
)

// console prints the events of a run. It is used as the fetcher observer.
type console struct {
	out   io.Writer
	url   string
	start time.Time

	green  func(a ...interface{}) string
	yellow func(a ...interface{}) string
	cyan   func(a ...interface{}) string
	red    func(a ...interface{}) string
}

func newConsole(out io.Writer, url string, noColor bool) *console {
	if noColor {
		plain := func(a ...interface{}) string { return fmt.Sprint(a...) }
		return &console{out: out, url: url, green: plain, yellow: plain, cyan: plain, red: plain}
	}
	return &console{
		out:    out,
		url:    url,
		green:  color.New(color.FgGreen, color.Bold).SprintFunc(),
		yellow: color.New(color.FgYellow).SprintFunc(),
		cyan:   color.New(color.FgCyan).SprintFunc(),
		red:    color.New(color.FgRed).SprintFunc(),
	}
}

func (c *console) OnStarted(ts time.Time) {
	c.start = ts
	fmt.Fprintf(c.out, "%s Downloading: %s\n", c.cyan("[zipfetch]"), c.url)
}

func (c *console) OnProgress(ts time.Time, processed, total int64) {
	if total < 0 {
		fmt.Fprintf(c.out, "%s Extracted: %s\n", c.cyan("[zipfetch]"), formatBytes(processed))
		return
	}
	// processed counts decompressed bytes, total is the compressed size
	fmt.Fprintf(c.out, "%s Extracted: %s | Archive size: %s\n", c.cyan("[zipfetch]"), formatBytes(processed), formatBytes(total))
}

func (c *console) OnWarning(_ time.Time, message string) {
	fmt.Fprintf(c.out, "%s %s\n", c.yellow("[zipfetch] Warning:"), message)
}

func (c *console) OnFinished(ts time.Time, dir string) {
	fmt.Fprintf(c.out, "%s Extracted to %s in %s\n", c.green("[zipfetch] Done!"), dir, formatDuration(ts.Sub(c.start)))
}

func (c *console) OnFailed(_ time.Time, message string) {
	fmt.Fprintf(c.out, "%s %s\n", c.red("[zipfetch] Error:"), message)
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case b >= GB:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", m, s)
}
