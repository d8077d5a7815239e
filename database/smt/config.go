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

import "fmt"

// HardMaxDepth is the upper limit for the max depth of any tree. With 256-bit
// keys, no two keys share a longer path.
const HardMaxDepth = 256

// TreeConfig defines the options for creating and opening persistent trees.
type TreeConfig struct {
	// A descriptive name for this configuration. It has no effect except for
	// logging and debugging purposes.
	Name string

	// The max depth a new tree is initialized with. Trees opened from an
	// existing directory keep their stored max depth. If zero, new trees
	// are left uninitialized.
	MaxDepth uint

	// The hashing algorithm to be used. For existing trees, it must match the
	// algorithm the tree was created with.
	Hashing HashAlgorithm

	// The storage backend of the node store.
	Backend Backend

	// If enabled, the root of every version is recorded, such that proofs for
	// past versions can be produced.
	WithArchive bool

	// The number of nodes kept in an LRU cache in front of disk based node
	// stores. Zero disables the cache.
	NodeCacheSize int

	// If enabled, trees are opened even if their directory is marked dirty.
	// The tree is checked for consistency before being used.
	IgnoreDirty bool
}

// Backend selects the storage of the nodes of a persistent tree.
type Backend string

const (
	// FileBackend keeps nodes in a single flat file of fixed size records.
	FileBackend Backend = "file"
	// LevelDbBackend keeps nodes in a LevelDB instance, which also hosts the
	// archive if enabled.
	LevelDbBackend Backend = "ldb"
	// MemoryBackend keeps nodes in memory and writes them to disk on flush.
	MemoryBackend Backend = "memory"
)

var allBackends = []Backend{FileBackend, LevelDbBackend, MemoryBackend}

// ParseBackend returns the backend of the given name.
func ParseBackend(name string) (Backend, error) {
	for _, backend := range allBackends {
		if string(backend) == name {
			return backend, nil
		}
	}
	return "", fmt.Errorf("unknown backend %q", name)
}

var DefaultConfig = TreeConfig{
	Name:     "Keccak-File",
	MaxDepth: HardMaxDepth,
	Hashing:  KeccakHashing,
	Backend:  FileBackend,

	NodeCacheSize: 100_000,
}

// PoseidonConfig targets trees checked by zero-knowledge circuits, where the
// max depth is limited by the circuit size.
var PoseidonConfig = TreeConfig{
	Name:        "Poseidon-LevelDB",
	MaxDepth:    80,
	Hashing:     PoseidonHashing,
	Backend:     LevelDbBackend,
	WithArchive: true,

	NodeCacheSize: 100_000,
}

var allTreeConfigs = []TreeConfig{DefaultConfig, PoseidonConfig}

// GetConfigByName finds a pre-defined configuration by its name.
func GetConfigByName(name string) (TreeConfig, bool) {
	for _, config := range allTreeConfigs {
		if config.Name == name {
			return config, true
		}
	}
	return TreeConfig{}, false
}

// CheckMaxDepth fails with ErrInvalidMaxDepth unless depth is in [1, HardMaxDepth].
func CheckMaxDepth(depth uint) error {
	if depth == 0 {
		return fmt.Errorf("%w: max depth must be greater than zero", ErrInvalidMaxDepth)
	}
	if depth > HardMaxDepth {
		return fmt.Errorf("%w: max depth %d is greater than hard cap %d", ErrInvalidMaxDepth, depth, HardMaxDepth)
	}
	return nil
}
