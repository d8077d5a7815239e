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
	"encoding/binary"
	"fmt"

	"github.com/Fantom-foundation/go-smt/common"
)

// NodeId identifies a node in the node store of a tree. The zero id is
// reserved for the empty node, the first real node has id 1.
type NodeId uint64

// EmptyId returns the id referring to the empty node.
func EmptyId() NodeId {
	return 0
}

func (i NodeId) IsEmpty() bool {
	return i == 0
}

func (i NodeId) String() string {
	if i.IsEmpty() {
		return "E"
	}
	return fmt.Sprintf("N-%d", uint64(i))
}

// NodeType distinguishes the kinds of nodes in a tree.
type NodeType byte

const (
	EmptyNode  NodeType = 0
	LeafNode   NodeType = 1
	MiddleNode NodeType = 2
)

func (t NodeType) String() string {
	switch t {
	case EmptyNode:
		return "Empty"
	case LeafNode:
		return "Leaf"
	case MiddleNode:
		return "Middle"
	}
	return fmt.Sprintf("NodeType(%d)", byte(t))
}

// Node is a single node of a tree. Leaves carry a key and a value, middle nodes
// refer to their children. The hash is the hash of the sub-tree rooted by the
// node. The zero value is the empty node, with a zero hash.
type Node struct {
	Type  NodeType
	Left  NodeId
	Right NodeId
	Hash  common.Hash
	Key   common.Key
	Value common.Value
}

func (n *Node) IsEmpty() bool {
	return n.Type == EmptyNode
}

func (n *Node) IsLeaf() bool {
	return n.Type == LeafNode
}

func (n *Node) IsMiddle() bool {
	return n.Type == MiddleNode
}

// Child returns the id of the left child for false and of the right child
// for true, matching the interpretation of key bits.
func (n *Node) Child(bit bool) NodeId {
	if bit {
		return n.Right
	}
	return n.Left
}

func (n Node) String() string {
	switch n.Type {
	case EmptyNode:
		return "Empty"
	case LeafNode:
		return fmt.Sprintf("Leaf{key: %v, value: %v, hash: %v}", n.Key, n.Value, n.Hash)
	case MiddleNode:
		return fmt.Sprintf("Middle{left: %v, right: %v, hash: %v}", n.Left, n.Right, n.Hash)
	}
	return fmt.Sprintf("Invalid{type: %d}", byte(n.Type))
}

func newLeaf(hasher Hasher, key common.Key, value common.Value) Node {
	return Node{
		Type:  LeafNode,
		Hash:  hashLeaf(hasher, key, value),
		Key:   key,
		Value: value,
	}
}

func newMiddle(hasher Hasher, left NodeId, leftHash common.Hash, right NodeId, rightHash common.Hash) Node {
	return Node{
		Type:  MiddleNode,
		Left:  left,
		Right: right,
		Hash:  hashMiddle(hasher, leftHash, rightHash),
	}
}

// ----------------------------------------------------------------------------
//                               Encoder
// ----------------------------------------------------------------------------

// NodeEncoder stores nodes in fixed size records of the form
// type || left || right || hash || key || value.
type NodeEncoder struct{}

const encodedNodeSize = 1 + 8 + 8 + common.HashSize + common.KeySize + common.ValueSize

func (NodeEncoder) GetEncodedSize() int {
	return encodedNodeSize
}

func (NodeEncoder) Store(dst []byte, node *Node) error {
	dst[0] = byte(node.Type)
	binary.BigEndian.PutUint64(dst[1:], uint64(node.Left))
	binary.BigEndian.PutUint64(dst[9:], uint64(node.Right))
	copy(dst[17:49], node.Hash[:])
	copy(dst[49:81], node.Key[:])
	copy(dst[81:113], node.Value[:])
	return nil
}

func (NodeEncoder) Load(src []byte, node *Node) error {
	if t := NodeType(src[0]); t > MiddleNode {
		return fmt.Errorf("%w: %d", ErrUnknownNodeType, t)
	}
	node.Type = NodeType(src[0])
	node.Left = NodeId(binary.BigEndian.Uint64(src[1:]))
	node.Right = NodeId(binary.BigEndian.Uint64(src[9:]))
	copy(node.Hash[:], src[17:49])
	copy(node.Key[:], src[49:81])
	copy(node.Value[:], src[81:113])
	return nil
}
