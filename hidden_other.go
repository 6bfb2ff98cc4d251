//
// Copyright 2018-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build !windows

package zipfetch

// hasHiddenAttribute is always false outside Windows, where hidden files
// are only identified by their leading dot.
func hasHiddenAttribute(string) bool {
	return false
}
