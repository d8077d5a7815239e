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
	"sync"
	"unsafe"

	"github.com/Fantom-foundation/go-smt/backend/archive"
	"github.com/Fantom-foundation/go-smt/backend/stock"
	"github.com/Fantom-foundation/go-smt/backend/stock/memory"
	"github.com/Fantom-foundation/go-smt/common"
)

var (
	_ common.FlushAndCloser          = (*Tree)(nil)
	_ common.MemoryFootprintProvider = (*Tree)(nil)
)

// Tree is a sparse Merkle tree mapping keys to values. Trees need to be
// initialized with a max depth before keys can be inserted. Once inserted, keys
// can neither be updated nor removed.
//
// All operations are thread safe. Insertions are serialized, read operations
// may be run concurrently.
type Tree struct {
	nodes   stock.Stock[NodeId, Node]
	archive archive.Archive // nil if no history is recorded

	hashing HashAlgorithm
	hasher  Hasher

	root        NodeId
	rootHash    common.Hash
	maxDepth    uint
	nodesCount  uint64
	version     uint64
	initialized bool

	// Only set for trees backed by a directory.
	directory string
	backend   Backend
	release   func(clean bool) error

	mutex sync.RWMutex
}

// TreeOption customizes trees created by NewTree.
type TreeOption func(*Tree)

// WithArchive makes the tree record the root of each version in the given
// archive. The archive is owned by the tree afterwards.
func WithArchive(archive archive.Archive) TreeOption {
	return func(t *Tree) {
		t.archive = archive
	}
}

// WithHashing selects the hash algorithm of the new tree. By default,
// KeccakHashing is used.
func WithHashing(algorithm HashAlgorithm) TreeOption {
	return func(t *Tree) {
		t.hashing = algorithm
	}
}

// NewTree creates a new, uninitialized tree storing its nodes in the given
// node store. The store is owned by the tree afterwards. Any content in the
// store is ignored and will be overwritten.
func NewTree(nodes stock.Stock[NodeId, Node], options ...TreeOption) (*Tree, error) {
	res := &Tree{
		nodes:   nodes,
		hashing: KeccakHashing,
	}
	for _, option := range options {
		option(res)
	}
	if !res.hashing.isValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownHashing, res.hashing.Name)
	}
	res.hasher = res.hashing.createHasher()
	if err := res.reserveEmptyId(); err != nil {
		return nil, err
	}
	return res, nil
}

// NewMemoryTree creates an uninitialized tree using Keccak256 hashing and
// keeping all nodes in memory.
func NewMemoryTree() *Tree {
	res, err := NewTree(memory.CreateStock[NodeId, Node]())
	if err != nil {
		// in-memory stocks do not fail
		panic(err)
	}
	return res
}

// reserveEmptyId makes sure that index 0 of the node store is allocated such
// that the first real node obtains id 1.
func (t *Tree) reserveEmptyId() error {
	if t.nodes.Size() > 0 {
		return nil
	}
	id, err := t.nodes.New()
	if err != nil {
		return fmt.Errorf("failed to reserve id of empty node: %w", err)
	}
	if id != EmptyId() {
		return fmt.Errorf("%w: expected %v, got %v", ErrStockOutOfOrder, EmptyId(), id)
	}
	return nil
}

// ----------------------------------------------------------------------------
//                              Configuration
// ----------------------------------------------------------------------------

// Initialize sets the max depth of a new tree. Keys can only be inserted
// into initialized trees. Trees can only be initialized once.
func (t *Tree) Initialize(maxDepth uint) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.initialized {
		return ErrAlreadyInitialized
	}
	if err := CheckMaxDepth(maxDepth); err != nil {
		return err
	}
	t.maxDepth = maxDepth
	t.initialized = true
	return nil
}

// SetMaxDepth increases the max depth of an initialized tree.
func (t *Tree) SetMaxDepth(depth uint) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if !t.initialized {
		return ErrNotInitialized
	}
	if depth == 0 {
		return CheckMaxDepth(depth)
	}
	if depth <= t.maxDepth {
		return fmt.Errorf("%w: current depth is %d, requested %d", ErrDepthMustIncrease, t.maxDepth, depth)
	}
	if err := CheckMaxDepth(depth); err != nil {
		return err
	}
	t.maxDepth = depth
	return nil
}

// SetHashing replaces the hash algorithm of the tree. This is only allowed
// as long as the tree is empty.
func (t *Tree) SetHashing(algorithm HashAlgorithm) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.nodesCount > 0 {
		return ErrTreeNotEmpty
	}
	if !algorithm.isValid() {
		return fmt.Errorf("%w: %q", ErrUnknownHashing, algorithm.Name)
	}
	t.hashing = algorithm
	t.hasher = algorithm.createHasher()
	return nil
}

// SetHasher installs a client provided hasher, which is only allowed as long
// as the tree is empty.
func (t *Tree) SetHasher(hasher Hasher) error {
	if hasher == nil {
		return fmt.Errorf("%w: nil hasher", ErrUnknownHashing)
	}
	return t.SetHashing(CustomHashing("Custom", hasher))
}

// ----------------------------------------------------------------------------
//                                 Getters
// ----------------------------------------------------------------------------

// GetRoot returns the root hash of the tree, which is zero for empty trees.
func (t *Tree) GetRoot() common.Hash {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.rootHash
}

func (t *Tree) GetMaxDepth() uint {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.maxDepth
}

// NodesCount returns the number of nodes created so far, including nodes no
// longer reachable from the current root.
func (t *Tree) NodesCount() uint64 {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.nodesCount
}

// Version returns the number of successful insertions.
func (t *Tree) Version() uint64 {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.version
}

func (t *Tree) IsInitialized() bool {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.initialized
}

func (t *Tree) Hashing() HashAlgorithm {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.hashing
}

// IsCustomHasherSet returns true if the tree uses a hash algorithm other than
// the default Keccak256 hashing.
func (t *Tree) IsCustomHasherSet() bool {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.hashing.Name != KeccakHashing.Name
}

// GetNode fetches the node with the given id. Ids not assigned to any node
// yield the empty node.
func (t *Tree) GetNode(id NodeId) (Node, error) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	if uint64(id) > t.nodesCount {
		return Node{}, nil
	}
	return t.getNode(id)
}

// GetNodeByKey fetches the leaf holding the given key. If the key is not
// present, the empty node is returned.
func (t *Tree) GetNodeByKey(key common.Key) (Node, error) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.getNodeByKeyLocked(key)
}

func (t *Tree) getNodeByKeyLocked(key common.Key) (Node, error) {
	id := t.root
	for depth := uint(0); ; depth++ {
		node, err := t.getNode(id)
		if err != nil {
			return Node{}, err
		}
		switch node.Type {
		case EmptyNode:
			return Node{}, nil
		case LeafNode:
			if node.Key == key {
				return node, nil
			}
			return Node{}, nil
		}
		if depth >= HardMaxDepth {
			return Node{}, fmt.Errorf("%w: path of key %v exceeds max depth", ErrCorruptedTree, key)
		}
		id = node.Child(key.Bit(depth))
	}
}

func (t *Tree) getNode(id NodeId) (Node, error) {
	if id.IsEmpty() {
		return Node{}, nil
	}
	node, err := t.nodes.Get(id)
	if err != nil {
		return Node{}, fmt.Errorf("failed to load node %v: %w", id, err)
	}
	return node, nil
}

func (t *Tree) getHash(id NodeId) (common.Hash, error) {
	if id.IsEmpty() {
		return common.Hash{}, nil
	}
	node, err := t.getNode(id)
	return node.Hash, err
}

// ----------------------------------------------------------------------------
//                              Life Cycle
// ----------------------------------------------------------------------------

// Flush writes all buffered data to disk. For in-memory trees it is a no-op.
func (t *Tree) Flush() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.flush()
}

func (t *Tree) flush() error {
	errs := []error{t.nodes.Flush()}
	if t.archive != nil {
		errs = append(errs, t.archive.Flush())
	}
	if t.directory != "" {
		errs = append(errs, writeMetadata(t.directory, t.getMetadata()))
	}
	return errors.Join(errs...)
}

// Close flushes and releases all resources held by the tree. The tree must
// not be used afterwards.
func (t *Tree) Close() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	err := t.flush()
	err = errors.Join(err, t.nodes.Close())
	if t.archive != nil {
		err = errors.Join(err, t.archive.Close())
	}
	if t.release != nil {
		err = errors.Join(err, t.release(err == nil))
		t.release = nil
	}
	return err
}

func (t *Tree) GetMemoryFootprint() *common.MemoryFootprint {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	res := common.NewMemoryFootprint(unsafe.Sizeof(*t))
	res.SetNote(fmt.Sprintf("version %d, %d nodes", t.version, t.nodesCount))
	res.AddChild("nodes", t.nodes.GetMemoryFootprint())
	if t.archive != nil {
		res.AddChild("archive", t.archive.GetMemoryFootprint())
	}
	return res
}
