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
	"fmt"

	"github.com/Fantom-foundation/go-smt/backend/archive"
	"github.com/Fantom-foundation/go-smt/common"
)

// Insert adds a new key/value pair to the tree. It fails if the key is already
// present or if the leaf of the key would have to be placed deeper than the
// max depth of the tree, or if the key or value is not a valid input of the
// tree's hasher. Insertions are atomic: if an error is returned, the
// tree remains unchanged.
func (t *Tree) Insert(key common.Key, value common.Value) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if !t.initialized {
		return ErrNotInitialized
	}
	if !isValidInput(t.hasher, common.Hash(key), common.Hash(value)) {
		return fmt.Errorf("%w: %v -> %v", ErrInvalidInput, key, value)
	}
	update, err := t.planInsert(key, value)
	if err != nil {
		return err
	}
	return t.apply(update, key, value)
}

// nodeUpdate is a list of new nodes to be added to the node store. Nodes are
// assigned consecutive ids starting with the id following the last committed
// node, such that they may refer to each other before being written.
type nodeUpdate struct {
	firstId NodeId
	nodes   []Node
}

func (u *nodeUpdate) add(node Node) (NodeId, common.Hash) {
	id := u.firstId + NodeId(len(u.nodes))
	u.nodes = append(u.nodes, node)
	return id, node.Hash
}

// root is the id of the last node added, which is the new root of the tree.
func (u *nodeUpdate) root() (NodeId, common.Hash) {
	last := len(u.nodes) - 1
	return u.firstId + NodeId(last), u.nodes[last].Hash
}

// pathStep is a middle node passed when descending to the position of a key.
type pathStep struct {
	node        Node
	bit         bool // the direction taken
	siblingHash common.Hash
}

// planInsert computes the nodes to be created by an insertion without
// modifying the tree.
func (t *Tree) planInsert(key common.Key, value common.Value) (*nodeUpdate, error) {
	path := make([]pathStep, 0, 32)
	id := t.root
	node, err := t.getNode(id)
	if err != nil {
		return nil, err
	}
	depth := uint(0)
	for node.IsMiddle() {
		if depth >= t.maxDepth {
			return nil, fmt.Errorf("%w: middle node %v below max depth", ErrCorruptedTree, id)
		}
		bit := key.Bit(depth)
		siblingHash, err := t.getHash(node.Child(!bit))
		if err != nil {
			return nil, err
		}
		path = append(path, pathStep{node: node, bit: bit, siblingHash: siblingHash})
		id = node.Child(bit)
		if node, err = t.getNode(id); err != nil {
			return nil, err
		}
		depth++
	}

	update := &nodeUpdate{firstId: NodeId(t.nodesCount + 1)}
	leaf := newLeaf(t.hasher, key, value)
	switch node.Type {
	case EmptyNode:
		update.add(leaf)
	case LeafNode:
		if node.Key == key {
			return nil, fmt.Errorf("%w: %v", ErrKeyAlreadyExists, key)
		}
		if err := t.pushDown(update, depth, leaf, id, node); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownNodeType, node.Type)
	}

	// Rebuild the path from the new sub-tree up to the root.
	current, currentHash := update.root()
	for i := len(path) - 1; i >= 0; i-- {
		step := path[i]
		if step.bit {
			current, currentHash = update.add(newMiddle(t.hasher, step.node.Left, step.siblingHash, current, currentHash))
		} else {
			current, currentHash = update.add(newMiddle(t.hasher, current, currentHash, step.node.Right, step.siblingHash))
		}
	}
	return update, nil
}

// pushDown creates the sub-tree replacing an existing leaf at the given depth
// such that it contains both the existing and the new leaf. One middle node is
// created for each bit shared by the two keys starting at the given depth, and
// one more splitting them where the keys differ.
func (t *Tree) pushDown(update *nodeUpdate, depth uint, leaf Node, existingId NodeId, existing Node) error {
	split := depth
	for {
		if split >= t.maxDepth {
			return fmt.Errorf("%w: keys %v and %v share %d bits, max depth is %d", ErrMaxDepthReached, leaf.Key, existing.Key, split, t.maxDepth)
		}
		if leaf.Key.Bit(split) != existing.Key.Bit(split) {
			break
		}
		split++
	}

	leafId, leafHash := update.add(leaf)
	var current NodeId
	var currentHash common.Hash
	if leaf.Key.Bit(split) {
		current, currentHash = update.add(newMiddle(t.hasher, existingId, existing.Hash, leafId, leafHash))
	} else {
		current, currentHash = update.add(newMiddle(t.hasher, leafId, leafHash, existingId, existing.Hash))
	}
	for level := split; level > depth; level-- {
		if leaf.Key.Bit(level - 1) {
			current, currentHash = update.add(newMiddle(t.hasher, EmptyId(), common.Hash{}, current, currentHash))
		} else {
			current, currentHash = update.add(newMiddle(t.hasher, current, currentHash, EmptyId(), common.Hash{}))
		}
	}
	return nil
}

// apply writes the nodes of the given update to the node store, records the
// new version in the archive and advances the tree to the new root. If any
// write fails, the tree remains at its current version. Nodes written before
// the failure occupy ids beyond the node count and get overwritten by the
// next insertion.
func (t *Tree) apply(update *nodeUpdate, key common.Key, value common.Value) error {
	for i, node := range update.nodes {
		if err := t.writeNode(update.firstId+NodeId(i), node); err != nil {
			return err
		}
	}

	root, rootHash := update.root()
	nodesCount := t.nodesCount + uint64(len(update.nodes))
	version := t.version + 1
	if t.archive != nil {
		err := t.archive.Add(archive.Record{
			Version:    version,
			Root:       rootHash,
			RootId:     uint64(root),
			NodesCount: nodesCount,
			Key:        key,
			Value:      value,
		})
		if err != nil {
			return fmt.Errorf("failed to record version %d: %w", version, err)
		}
	}

	t.root = root
	t.rootHash = rootHash
	t.nodesCount = nodesCount
	t.version = version
	return nil
}

func (t *Tree) writeNode(id NodeId, node Node) error {
	if id >= t.nodes.Size() {
		newId, err := t.nodes.New()
		if err != nil {
			return fmt.Errorf("failed to allocate node %v: %w", id, err)
		}
		if newId != id {
			return fmt.Errorf("%w: expected %v, got %v", ErrStockOutOfOrder, id, newId)
		}
	}
	if err := t.nodes.Set(id, node); err != nil {
		return fmt.Errorf("failed to write node %v: %w", id, err)
	}
	return nil
}
