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
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/Fantom-foundation/go-smt/backend/archive"
	ldbarchive "github.com/Fantom-foundation/go-smt/backend/archive/ldb"
	"github.com/Fantom-foundation/go-smt/backend/archive/sqlite"
	"github.com/Fantom-foundation/go-smt/backend/stock"
	"github.com/Fantom-foundation/go-smt/backend/stock/cache"
	"github.com/Fantom-foundation/go-smt/backend/stock/file"
	"github.com/Fantom-foundation/go-smt/backend/stock/ldb"
	"github.com/Fantom-foundation/go-smt/backend/stock/memory"
	"github.com/Fantom-foundation/go-smt/backend/stock/synced"
	"github.com/Fantom-foundation/go-smt/common"
	"github.com/syndtr/goleveldb/leveldb"
)

const (
	metadataFileName = "meta.json"
	nodesDirectory   = "nodes"
	archiveFileName  = "archive.sqlite"
)

// treeMetadata is the state of a tree stored in its directory. It is written
// on flush and close.
type treeMetadata struct {
	Version     uint64
	Root        common.Hash
	RootId      NodeId
	MaxDepth    uint
	NodesCount  uint64
	Initialized bool
	Hashing     string
	Backend     Backend
	Archive     bool
}

func (t *Tree) getMetadata() treeMetadata {
	return treeMetadata{
		Version:     t.version,
		Root:        t.rootHash,
		RootId:      t.root,
		MaxDepth:    t.maxDepth,
		NodesCount:  t.nodesCount,
		Initialized: t.initialized,
		Hashing:     t.hashing.Name,
		Backend:     t.backend,
		Archive:     t.archive != nil,
	}
}

func readMetadata(directory string) (treeMetadata, bool, error) {
	var meta treeMetadata
	data, err := os.ReadFile(filepath.Join(directory, metadataFileName))
	if errors.Is(err, os.ErrNotExist) {
		return meta, false, nil
	}
	if err != nil {
		return meta, false, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, false, fmt.Errorf("invalid tree metadata: %w", err)
	}
	return meta, true, nil
}

// TreeInfo summarizes the tree stored in a directory.
type TreeInfo struct {
	// The configuration needed for opening the tree. Custom hash algorithms
	// are reported by name only and need to be provided by the caller.
	Config      TreeConfig
	Initialized bool
	Version     uint64
	Root        common.Hash
	NodesCount  uint64
}

// ReadTreeInfo reads the metadata of the tree in the given directory without
// opening it. If the directory does not contain a tree, false is returned.
func ReadTreeInfo(directory string) (TreeInfo, bool, error) {
	meta, found, err := readMetadata(directory)
	if err != nil || !found {
		return TreeInfo{}, found, err
	}
	hashing, known := GetHashAlgorithmByName(meta.Hashing)
	if !known {
		hashing = HashAlgorithm{Name: meta.Hashing}
	}
	return TreeInfo{
		Config: TreeConfig{
			Name:        fmt.Sprintf("%s-%s", meta.Hashing, meta.Backend),
			MaxDepth:    meta.MaxDepth,
			Hashing:     hashing,
			Backend:     meta.Backend,
			WithArchive: meta.Archive,
		},
		Initialized: meta.Initialized,
		Version:     meta.Version,
		Root:        meta.Root,
		NodesCount:  meta.NodesCount,
	}, true, nil
}

func writeMetadata(directory string, meta treeMetadata) error {
	data, err := json.Marshal(&meta)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(directory, metadataFileName), data, 0600)
}

// OpenTree opens the tree stored in the given directory, or creates a new
// tree if the directory does not contain one. New trees are initialized with
// the max depth of the configuration, if set.
//
// The directory is locked while the tree is open and marked dirty until the
// tree is successfully closed. Dirty directories are only opened if enabled
// by the configuration, in which case the tree is checked before being
// returned.
func OpenTree(directory string, config TreeConfig) (_ *Tree, err error) {
	lock, err := LockDirectory(directory)
	if err != nil {
		return nil, err
	}

	// Resources are released in reverse order if opening fails.
	cleanup := []func() error{lock.Release}
	defer func() {
		if err != nil {
			for i := len(cleanup) - 1; i >= 0; i-- {
				err = errors.Join(err, cleanup[i]())
			}
		}
	}()

	dirty, err := isDirty(directory)
	if err != nil {
		return nil, err
	}
	if dirty {
		if !config.IgnoreDirty {
			return nil, fmt.Errorf("%w: %s", ErrDirtyDirectory, directory)
		}
		log.Printf("WARNING: tree directory %s is marked dirty, checking its content", directory)
	}

	meta, found, err := readMetadata(directory)
	if err != nil {
		return nil, err
	}

	backend := config.Backend
	if backend == "" {
		backend = FileBackend
	}
	hashing := config.Hashing
	if found {
		if meta.Backend != backend {
			return nil, fmt.Errorf("tree in %s uses backend %q, configured %q", directory, meta.Backend, backend)
		}
		if meta.Archive != config.WithArchive {
			return nil, fmt.Errorf("tree in %s was created with archive=%t, configured archive=%t", directory, meta.Archive, config.WithArchive)
		}
		if hashing, err = resolveHashing(meta.Hashing, config.Hashing); err != nil {
			return nil, err
		}
	} else if !hashing.isValid() {
		hashing = KeccakHashing
	}

	nodes, db, err := openNodeStock(filepath.Join(directory, nodesDirectory), backend)
	if err != nil {
		return nil, err
	}
	if db != nil {
		cleanup = append(cleanup, db.Close)
	}
	cleanup = append(cleanup, nodes.Close)
	if backend != MemoryBackend && config.NodeCacheSize > 0 {
		nodes, err = cache.CreateCachedStock(nodes, config.NodeCacheSize)
		if err != nil {
			return nil, err
		}
	}

	var history archive.Archive
	if config.WithArchive {
		if db != nil {
			history = ldbarchive.NewArchive(db)
		} else {
			history, err = sqlite.NewArchive(filepath.Join(directory, archiveFileName))
			if err != nil {
				return nil, err
			}
		}
		cleanup = append(cleanup, history.Close)
	}

	tree := &Tree{
		nodes:     synced.Sync(nodes),
		archive:   history,
		hashing:   hashing,
		hasher:    hashing.createHasher(),
		directory: directory,
		backend:   backend,
	}
	if found {
		tree.root = meta.RootId
		tree.rootHash = meta.Root
		tree.maxDepth = meta.MaxDepth
		tree.nodesCount = meta.NodesCount
		tree.version = meta.Version
		tree.initialized = meta.Initialized
		if uint64(nodes.Size()) <= meta.NodesCount {
			return nil, fmt.Errorf("%w: tree has %d nodes, node store only %d", ErrCorruptedTree, meta.NodesCount, nodes.Size())
		}
	} else {
		if err := tree.reserveEmptyId(); err != nil {
			return nil, err
		}
		if config.MaxDepth > 0 {
			if err := CheckMaxDepth(config.MaxDepth); err != nil {
				return nil, err
			}
			tree.maxDepth = config.MaxDepth
			tree.initialized = true
		}
	}

	if history != nil {
		if err := tree.recoverFromArchive(dirty); err != nil {
			return nil, err
		}
	}

	if err := markDirty(directory); err != nil {
		return nil, err
	}
	if !dirty {
		cleanup = append(cleanup, func() error { return markClean(directory) })
	}

	if dirty {
		if err := tree.Check(); err != nil {
			return nil, fmt.Errorf("dirty tree in %s is corrupted: %w", directory, err)
		}
	}

	tree.release = func(clean bool) error {
		errs := []error{}
		if db != nil {
			errs = append(errs, db.Close())
		}
		if clean {
			errs = append(errs, markClean(directory))
		}
		errs = append(errs, lock.Release())
		return errors.Join(errs...)
	}
	return tree, nil
}

// resolveHashing picks the hash algorithm for a tree created with the named
// algorithm. Custom algorithms need to be provided by the configuration.
func resolveHashing(stored string, configured HashAlgorithm) (HashAlgorithm, error) {
	if configured.isValid() {
		if configured.Name != stored {
			return HashAlgorithm{}, fmt.Errorf("%w: tree uses %q, configured %q", ErrHashingMismatch, stored, configured.Name)
		}
		return configured, nil
	}
	res, found := GetHashAlgorithmByName(stored)
	if !found {
		return HashAlgorithm{}, fmt.Errorf("%w: %q needs to be provided by the configuration", ErrUnknownHashing, stored)
	}
	return res, nil
}

// recoverFromArchive aligns the tree with the latest version recorded by the
// archive. The archive may be ahead of the metadata if the process holding the
// tree was terminated before closing it, in which case the nodes of the newer
// versions have already been written.
func (t *Tree) recoverFromArchive(dirty bool) error {
	latest, exists, err := t.archive.GetLatest()
	if err != nil {
		return err
	}
	if !exists || latest.Version <= t.version {
		return nil
	}
	if !dirty {
		return fmt.Errorf("%w: archive contains version %d, tree is at version %d", ErrCorruptedTree, latest.Version, t.version)
	}
	if latest.NodesCount >= uint64(t.nodes.Size()) {
		return fmt.Errorf("%w: nodes of archived version %d are missing", ErrCorruptedTree, latest.Version)
	}
	log.Printf("WARNING: recovering tree from version %d to archived version %d", t.version, latest.Version)
	t.root = NodeId(latest.RootId)
	t.rootHash = latest.Root
	t.nodesCount = latest.NodesCount
	t.version = latest.Version
	return nil
}

func openNodeStock(directory string, backend Backend) (stock.Stock[NodeId, Node], *leveldb.DB, error) {
	switch backend {
	case FileBackend:
		nodes, err := file.OpenStock[NodeId, Node](NodeEncoder{}, directory)
		return nodes, nil, err
	case MemoryBackend:
		nodes, err := memory.OpenStock[NodeId, Node](NodeEncoder{}, directory)
		return nodes, nil, err
	case LevelDbBackend:
		db, err := leveldb.OpenFile(directory, nil)
		if err != nil {
			return nil, nil, err
		}
		nodes, err := ldb.NewStock[NodeId, Node](db, common.NodeStoreKey, NodeEncoder{})
		if err != nil {
			return nil, nil, errors.Join(err, db.Close())
		}
		return nodes, db, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", backend)
}
