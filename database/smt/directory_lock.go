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
	"strconv"
)

const lockFileName = "~lock"

// DirectoryLock is an exclusive, inter-process lock on a tree directory. It
// is represented by a lock file in the directory holding the id of the owning
// process.
type DirectoryLock struct {
	path string
	file *os.File
}

// LockDirectory acquires an exclusive lock on a tree directory, creating the
// directory if needed. It fails if another tree instance, in this or another
// process, holds the lock.
//
// The lock is not released when the process terminates, it needs to be
// released explicitly or removed using ForceUnlockDirectory.
func LockDirectory(directory string) (*DirectoryLock, error) {
	if err := os.MkdirAll(directory, 0700); err != nil {
		return nil, err
	}
	path := filepath.Join(directory, lockFileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("unable to gain exclusive access to %s: %w", directory, err)
	}
	if _, err := file.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		return nil, errors.Join(
			fmt.Errorf("unable to gain exclusive access to %s: %w", directory, err),
			file.Close(),
			os.Remove(path),
		)
	}
	return &DirectoryLock{path: path, file: file}, nil
}

// Valid reports whether the lock is still held.
func (l *DirectoryLock) Valid() bool {
	return l != nil && l.file != nil
}

// Release gives up the lock by removing the lock file. A lock can only be
// released once.
func (l *DirectoryLock) Release() error {
	if !l.Valid() {
		return fmt.Errorf("lock on %s is not held", filepath.Dir(l.path))
	}
	err := errors.Join(l.file.Close(), os.Remove(l.path))
	l.file = nil
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// ForceUnlockDirectory removes the lock of a directory left behind by a
// crashed process. Unlocked directories are ignored.
func ForceUnlockDirectory(directory string) error {
	err := os.Remove(filepath.Join(directory, lockFileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
