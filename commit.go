//
// Copyright 2018-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package zipfetch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrCommitConflict is returned when the extracted tree cannot be merged
// into the target directory because a file and a directory share a path.
var ErrCommitConflict = errors.New("zipfetch: file and directory conflict in target")

// createStaging creates an empty directory next to target, to extract into
// when AtomicCommit is enabled. The returned path ends with a separator.
func createStaging(target string) (string, error) {
	base := strings.TrimRight(target, `/\`)
	staging := base + ".zipfetch-" + uuid.NewString()
	if err := os.MkdirAll(staging, 0755); err != nil {
		return "", fmt.Errorf("creating staging directory: %w", err)
	}
	return staging + string(os.PathSeparator), nil
}

// commitStaging moves the content of staging into target, replacing
// existing files and merging directories, then removes staging. Nothing is
// moved when a file in staging would replace a directory in target, or the
// other way round.
func commitStaging(staging, target string) error {
	if err := checkConflicts(staging, target); err != nil {
		return err
	}
	err := filepath.WalkDir(staging, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(staging, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		dest := filepath.Join(target, rel)
		if d.IsDir() {
			if err := os.MkdirAll(dest, 0755); err != nil {
				return fmt.Errorf("committing %s: %w", rel, err)
			}
			return nil
		}
		if err := os.Rename(path, dest); err != nil {
			return fmt.Errorf("committing %s: %w", rel, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("removing staging directory: %w", err)
	}
	return nil
}

// checkConflicts reports the first path whose kind (file or directory) in
// staging differs from the one already present in target.
func checkConflicts(staging, target string) error {
	return filepath.WalkDir(staging, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(staging, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		info, err := os.Lstat(filepath.Join(target, rel))
		if errors.Is(err, fs.ErrNotExist) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("committing %s: %w", rel, err)
		}
		if info.IsDir() != d.IsDir() {
			return fmt.Errorf("committing %s: %w", rel, ErrCommitConflict)
		}
		return nil
	})
}
