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
	"testing"

	"github.com/Fantom-foundation/go-smt/common"
)

func testConfigs() []TreeConfig {
	res := []TreeConfig{}
	for _, backend := range allBackends {
		for _, withArchive := range []bool{false, true} {
			for _, cacheSize := range []int{0, 16} {
				res = append(res, TreeConfig{
					Name:          fmt.Sprintf("%s-archive=%t-cache=%d", backend, withArchive, cacheSize),
					MaxDepth:      64,
					Hashing:       KeccakHashing,
					Backend:       backend,
					WithArchive:   withArchive,
					NodeCacheSize: cacheSize,
				})
			}
		}
	}
	return append(res, PoseidonConfig)
}

func openTestTree(t *testing.T, dir string, config TreeConfig) *Tree {
	t.Helper()
	tree, err := OpenTree(dir, config)
	if err != nil {
		t.Fatalf("failed to open tree: %v", err)
	}
	return tree
}

func closeTestTree(t *testing.T, tree *Tree) {
	t.Helper()
	if err := tree.Close(); err != nil {
		t.Fatalf("failed to close tree: %v", err)
	}
}

func TestOpenTree_NewTreesAreInitializedWithConfiguredDepth(t *testing.T) {
	for _, config := range testConfigs() {
		t.Run(config.Name, func(t *testing.T) {
			tree := openTestTree(t, t.TempDir(), config)
			defer closeTestTree(t, tree)
			if !tree.IsInitialized() {
				t.Errorf("tree should be initialized")
			}
			if got, want := tree.GetMaxDepth(), config.MaxDepth; got != want {
				t.Errorf("unexpected max depth, wanted %d, got %d", want, got)
			}
			if got, want := tree.Hashing().Name, config.Hashing.Name; got != want {
				t.Errorf("unexpected hashing, wanted %s, got %s", want, got)
			}
			if got := tree.GetRoot(); got != (common.Hash{}) {
				t.Errorf("unexpected root of new tree: %v", got)
			}
		})
	}
}

func TestOpenTree_ContentIsPreservedWhenReopened(t *testing.T) {
	for _, config := range testConfigs() {
		t.Run(config.Name, func(t *testing.T) {
			dir := t.TempDir()
			keys := randomKeys(10, 100)
			reference := newTestTree(t, config.MaxDepth, WithHashing(config.Hashing))

			tree := openTestTree(t, dir, config)
			for i, k := range keys[:50] {
				if err := tree.Insert(k, value(uint64(i))); err != nil {
					t.Fatalf("failed to insert key: %v", err)
				}
				if err := reference.Insert(k, value(uint64(i))); err != nil {
					t.Fatalf("failed to insert key: %v", err)
				}
			}
			root := tree.GetRoot()
			nodes := tree.NodesCount()
			closeTestTree(t, tree)

			tree = openTestTree(t, dir, config)
			if got := tree.GetRoot(); got != root {
				t.Errorf("unexpected root after reopening, wanted %v, got %v", root, got)
			}
			if got := tree.NodesCount(); got != nodes {
				t.Errorf("unexpected number of nodes, wanted %d, got %d", nodes, got)
			}
			if got, want := tree.Version(), uint64(50); got != want {
				t.Errorf("unexpected version, wanted %d, got %d", want, got)
			}
			if got, want := tree.GetMaxDepth(), config.MaxDepth; got != want {
				t.Errorf("unexpected max depth, wanted %d, got %d", want, got)
			}
			if err := tree.Check(); err != nil {
				t.Errorf("reopened tree is corrupted: %v", err)
			}
			if err := VerifyProofs(tree, keys); err != nil {
				t.Errorf("proofs of reopened tree do not verify: %v", err)
			}

			for i, k := range keys[50:] {
				if err := tree.Insert(k, value(uint64(i))); err != nil {
					t.Fatalf("failed to insert key: %v", err)
				}
				if err := reference.Insert(k, value(uint64(i))); err != nil {
					t.Fatalf("failed to insert key: %v", err)
				}
			}
			if got, want := tree.GetRoot(), reference.GetRoot(); got != want {
				t.Errorf("unexpected root, wanted %v, got %v", want, got)
			}
			closeTestTree(t, tree)
		})
	}
}

func TestOpenTree_HistoryIsPreservedWhenReopened(t *testing.T) {
	for _, config := range testConfigs() {
		if !config.WithArchive {
			continue
		}
		t.Run(config.Name, func(t *testing.T) {
			dir := t.TempDir()
			hasher := config.Hashing.createHasher()
			tree := openTestTree(t, dir, config)
			roots := []common.Hash{tree.GetRoot()}
			for i := uint64(1); i <= 10; i++ {
				insert(t, tree, i, i)
				roots = append(roots, tree.GetRoot())
			}
			closeTestTree(t, tree)

			tree = openTestTree(t, dir, config)
			defer closeTestTree(t, tree)
			for version := range roots {
				for i := uint64(1); i <= 10; i++ {
					proof, err := tree.ProveAt(uint64(version), key(i))
					if err != nil {
						t.Fatalf("failed to create proof: %v", err)
					}
					v := common.Value{}
					if i <= uint64(version) {
						v = value(i)
					}
					if !VerifyWith(hasher, roots[version], proof, key(i), v) {
						t.Errorf("proof of key %d in version %d does not verify", i, version)
					}
				}
			}
		})
	}
}

func TestOpenTree_UninitializedTreesCanBeInitializedLater(t *testing.T) {
	dir := t.TempDir()
	config := DefaultConfig
	config.MaxDepth = 0

	tree := openTestTree(t, dir, config)
	if tree.IsInitialized() {
		t.Errorf("tree should not be initialized")
	}
	closeTestTree(t, tree)

	tree = openTestTree(t, dir, config)
	if tree.IsInitialized() {
		t.Errorf("tree should not be initialized")
	}
	if err := tree.Initialize(20); err != nil {
		t.Fatalf("failed to initialize tree: %v", err)
	}
	insert(t, tree, 1, 1)
	closeTestTree(t, tree)

	tree = openTestTree(t, dir, DefaultConfig)
	defer closeTestTree(t, tree)
	if !tree.IsInitialized() || tree.GetMaxDepth() != 20 {
		t.Errorf("stored max depth should be preserved, got %d", tree.GetMaxDepth())
	}
}

func TestOpenTree_DirectoryIsLockedWhileOpen(t *testing.T) {
	dir := t.TempDir()
	tree := openTestTree(t, dir, DefaultConfig)
	if _, err := OpenTree(dir, DefaultConfig); err == nil {
		t.Fatalf("opening a tree twice should fail")
	}
	closeTestTree(t, tree)

	tree = openTestTree(t, dir, DefaultConfig)
	closeTestTree(t, tree)
}

func TestOpenTree_DirectoryIsDirtyWhileOpen(t *testing.T) {
	dir := t.TempDir()
	tree := openTestTree(t, dir, DefaultConfig)
	if dirty, err := isDirty(dir); !dirty || err != nil {
		t.Errorf("directory of open tree should be dirty: %t, %v", dirty, err)
	}
	closeTestTree(t, tree)
	if dirty, err := isDirty(dir); dirty || err != nil {
		t.Errorf("directory of closed tree should be clean: %t, %v", dirty, err)
	}
}

func TestOpenTree_DirtyDirectoriesAreOnlyOpenedIfEnabled(t *testing.T) {
	dir := t.TempDir()
	tree := openTestTree(t, dir, DefaultConfig)
	insert(t, tree, 1, 1)
	insert(t, tree, 2, 2)
	root := tree.GetRoot()
	closeTestTree(t, tree)

	if err := markDirty(dir); err != nil {
		t.Fatalf("failed to mark directory dirty: %v", err)
	}
	if _, err := OpenTree(dir, DefaultConfig); !errors.Is(err, ErrDirtyDirectory) {
		t.Fatalf("unexpected error: %v", err)
	}

	config := DefaultConfig
	config.IgnoreDirty = true
	tree = openTestTree(t, dir, config)
	if got := tree.GetRoot(); got != root {
		t.Errorf("unexpected root, wanted %v, got %v", root, got)
	}
	closeTestTree(t, tree)

	// A successful close clears the mark.
	tree = openTestTree(t, dir, DefaultConfig)
	closeTestTree(t, tree)
}

func TestOpenTree_CorruptedDirtyTreesAreRejected(t *testing.T) {
	dir := t.TempDir()
	tree := openTestTree(t, dir, DefaultConfig)
	insert(t, tree, 1, 1)
	insert(t, tree, 2, 2)
	meta := tree.getMetadata()
	closeTestTree(t, tree)

	meta.Root[0]++
	if err := writeMetadata(dir, meta); err != nil {
		t.Fatalf("failed to write metadata: %v", err)
	}
	if err := markDirty(dir); err != nil {
		t.Fatalf("failed to mark directory dirty: %v", err)
	}

	config := DefaultConfig
	config.IgnoreDirty = true
	if _, err := OpenTree(dir, config); !errors.Is(err, ErrCorruptedTree) {
		t.Errorf("unexpected error: %v", err)
	}

	// A failed attempt releases the directory.
	lock, err := LockDirectory(dir)
	if err != nil {
		t.Fatalf("directory should have been unlocked: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("failed to release lock: %v", err)
	}
}

func TestOpenTree_InterruptedTreesAreRecoveredFromArchive(t *testing.T) {
	dir := t.TempDir()
	config := PoseidonConfig
	tree := openTestTree(t, dir, config)
	for i := uint64(1); i <= 3; i++ {
		insert(t, tree, i, i)
	}
	if err := tree.Flush(); err != nil {
		t.Fatalf("failed to flush tree: %v", err)
	}
	for i := uint64(4); i <= 5; i++ {
		insert(t, tree, i, i)
	}
	root := tree.GetRoot()

	// Simulate a crash by releasing the resources without writing metadata.
	if err := tree.nodes.Close(); err != nil {
		t.Fatalf("failed to close node store: %v", err)
	}
	if err := tree.release(false); err != nil {
		t.Fatalf("failed to release tree resources: %v", err)
	}

	if _, err := OpenTree(dir, config); !errors.Is(err, ErrDirtyDirectory) {
		t.Fatalf("unexpected error: %v", err)
	}

	config.IgnoreDirty = true
	tree = openTestTree(t, dir, config)
	defer closeTestTree(t, tree)
	if got := tree.GetRoot(); got != root {
		t.Errorf("unexpected root after recovery, wanted %v, got %v", root, got)
	}
	if got, want := tree.Version(), uint64(5); got != want {
		t.Errorf("unexpected version after recovery, wanted %d, got %d", want, got)
	}
	insert(t, tree, 6, 6)
	if err := tree.Check(); err != nil {
		t.Errorf("recovered tree is corrupted: %v", err)
	}
}

func TestOpenTree_HashingMustMatchStoredHashing(t *testing.T) {
	dir := t.TempDir()
	tree := openTestTree(t, dir, DefaultConfig)
	insert(t, tree, 1, 1)
	closeTestTree(t, tree)

	config := DefaultConfig
	config.Hashing = PoseidonHashing
	if _, err := OpenTree(dir, config); !errors.Is(err, ErrHashingMismatch) {
		t.Errorf("unexpected error: %v", err)
	}

	// Without a configured hashing, the stored one is used.
	config.Hashing = HashAlgorithm{}
	tree = openTestTree(t, dir, config)
	defer closeTestTree(t, tree)
	if got := tree.Hashing().Name; got != KeccakHashing.Name {
		t.Errorf("unexpected hashing: %s", got)
	}
}

func TestOpenTree_CustomHashingMustBeProvided(t *testing.T) {
	dir := t.TempDir()
	config := DefaultConfig
	config.Hashing = CustomHashing("Keccak-Copy", keccakHasher{})
	tree := openTestTree(t, dir, config)
	insert(t, tree, 1, 1)
	root := tree.GetRoot()
	closeTestTree(t, tree)

	if _, err := OpenTree(dir, TreeConfig{}); !errors.Is(err, ErrUnknownHashing) {
		t.Errorf("unexpected error: %v", err)
	}

	tree = openTestTree(t, dir, config)
	defer closeTestTree(t, tree)
	if got := tree.GetRoot(); got != root {
		t.Errorf("unexpected root, wanted %v, got %v", root, got)
	}
	if !tree.IsCustomHasherSet() {
		t.Errorf("custom hasher should be reported")
	}
}

func TestOpenTree_BackendMustMatchStoredBackend(t *testing.T) {
	dir := t.TempDir()
	tree := openTestTree(t, dir, DefaultConfig)
	closeTestTree(t, tree)

	config := DefaultConfig
	config.Backend = LevelDbBackend
	if _, err := OpenTree(dir, config); err == nil {
		t.Errorf("opening a tree with a different backend should fail")
	}
}

func TestOpenTree_ArchiveSettingMustMatchStoredSetting(t *testing.T) {
	dir := t.TempDir()
	config := DefaultConfig
	config.WithArchive = true
	tree := openTestTree(t, dir, config)
	closeTestTree(t, tree)

	if _, err := OpenTree(dir, DefaultConfig); err == nil {
		t.Errorf("opening a tree without its archive should fail")
	}
}

func TestReadTreeInfo_ReportsStoredConfiguration(t *testing.T) {
	dir := t.TempDir()
	if _, found, err := ReadTreeInfo(dir); found || err != nil {
		t.Fatalf("empty directory should not contain a tree: %t, %v", found, err)
	}

	tree := openTestTree(t, dir, PoseidonConfig)
	insert(t, tree, 1, 1)
	insert(t, tree, 2, 2)
	root := tree.GetRoot()
	nodes := tree.NodesCount()
	closeTestTree(t, tree)

	info, found, err := ReadTreeInfo(dir)
	if err != nil || !found {
		t.Fatalf("failed to read tree info: %t, %v", found, err)
	}
	if info.Root != root || info.Version != 2 || info.NodesCount != nodes || !info.Initialized {
		t.Errorf("unexpected tree info: %+v", info)
	}
	config := info.Config
	if config.MaxDepth != PoseidonConfig.MaxDepth || config.Backend != PoseidonConfig.Backend ||
		config.Hashing.Name != PoseidonHashing.Name || !config.WithArchive {
		t.Errorf("unexpected configuration: %+v", config)
	}

	tree = openTestTree(t, dir, config)
	defer closeTestTree(t, tree)
	if got := tree.GetRoot(); got != root {
		t.Errorf("unexpected root, wanted %v, got %v", root, got)
	}
}
