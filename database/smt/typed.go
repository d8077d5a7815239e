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
	"github.com/Fantom-foundation/go-smt/common"
	"github.com/holiman/uint256"
)

// typedTree is a tree with keys and values of the types K and V converted to
// the tree's native keys and values.
type typedTree[K any, V any] struct {
	tree    *Tree
	toKey   func(K) common.Key
	toValue func(V) common.Value
}

func (t typedTree[K, V]) Initialize(maxDepth uint) error {
	return t.tree.Initialize(maxDepth)
}

func (t typedTree[K, V]) SetMaxDepth(depth uint) error {
	return t.tree.SetMaxDepth(depth)
}

func (t typedTree[K, V]) SetHashing(algorithm HashAlgorithm) error {
	return t.tree.SetHashing(algorithm)
}

func (t typedTree[K, V]) Add(key K, value V) error {
	return t.tree.Insert(t.toKey(key), t.toValue(value))
}

func (t typedTree[K, V]) Root() common.Hash {
	return t.tree.GetRoot()
}

func (t typedTree[K, V]) Proof(key K) (Proof, error) {
	return t.tree.Prove(t.toKey(key))
}

func (t typedTree[K, V]) NodeByKey(key K) (Node, error) {
	return t.tree.GetNodeByKey(t.toKey(key))
}

func (t typedTree[K, V]) Node(id NodeId) (Node, error) {
	return t.tree.GetNode(id)
}

func (t typedTree[K, V]) NodesCount() uint64 {
	return t.tree.NodesCount()
}

func (t typedTree[K, V]) MaxDepth() uint {
	return t.tree.GetMaxDepth()
}

func (t typedTree[K, V]) IsCustomHasherSet() bool {
	return t.tree.IsCustomHasherSet()
}

// Tree returns the underlying tree.
func (t typedTree[K, V]) Tree() *Tree {
	return t.tree
}

// UintTree is a tree with 256-bit unsigned integer keys and values.
type UintTree struct {
	typedTree[*uint256.Int, *uint256.Int]
}

func NewUintTree(tree *Tree) UintTree {
	return UintTree{typedTree[*uint256.Int, *uint256.Int]{
		tree:    tree,
		toKey:   common.KeyFromUint256,
		toValue: common.ValueFromUint256,
	}}
}

// Bytes32Tree is a tree with 32-byte keys and values.
type Bytes32Tree struct {
	typedTree[common.Hash, common.Hash]
}

func NewBytes32Tree(tree *Tree) Bytes32Tree {
	return Bytes32Tree{typedTree[common.Hash, common.Hash]{
		tree:    tree,
		toKey:   func(key common.Hash) common.Key { return common.Key(key) },
		toValue: func(value common.Hash) common.Value { return common.Value(value) },
	}}
}

// AddressTree is a tree mapping 32-byte keys to addresses. Addresses are
// stored as zero padded values.
type AddressTree struct {
	typedTree[common.Hash, common.Address]
}

func NewAddressTree(tree *Tree) AddressTree {
	return AddressTree{typedTree[common.Hash, common.Address]{
		tree:    tree,
		toKey:   func(key common.Hash) common.Key { return common.Key(key) },
		toValue: common.AddressToValue,
	}}
}
