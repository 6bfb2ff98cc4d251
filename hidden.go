//
// Copyright 2018-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package zipfetch

import (
	"path/filepath"
	"strings"
)

// isHiddenEntry reports whether an archive entry must be skipped. An entry
// is hidden when any component of its name is hidden, so that the content
// of a hidden directory is skipped together with the directory itself.
// dest is the resolved destination of the entry.
func isHiddenEntry(name, dest string) bool {
	for _, part := range strings.Split(name, "/") {
		if len(part) > 1 && part[0] == '.' && part != ".." {
			return true
		}
	}
	return hasHiddenAttribute(filepath.Clean(dest))
}
