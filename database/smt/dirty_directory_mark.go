// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package smt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const dirtyFileName = "~dirty"

// isDirty checks whether the given directory is marked as dirty. An error is
// returned if the directory does not exist or the path is not a directory.
func isDirty(directory string) (bool, error) {
	info, err := os.Stat(directory)
	if err != nil {
		return false, err
	}
	if !info.IsDir() {
		return false, fmt.Errorf("%s is not a directory", directory)
	}

	stat, err := os.Stat(filepath.Join(directory, dirtyFileName))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil && !stat.IsDir(), err
}

// markDirty marks the given directory as potentially inconsistent. Trees mark
// their directory while being open and clear the mark once successfully
// closed.
func markDirty(directory string) error {
	return os.WriteFile(filepath.Join(directory, dirtyFileName), []byte{}, 0600)
}

// markClean removes the dirty mark of a directory.
func markClean(directory string) error {
	return os.Remove(filepath.Join(directory, dirtyFileName))
}
