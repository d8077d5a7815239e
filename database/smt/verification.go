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

//go:generate mockgen -source verification.go -destination verification_mocks.go -package smt

import (
	"errors"
	"fmt"

	"github.com/Fantom-foundation/go-smt/common"
)

// VerificationObserver is a listener interface for tracking the progress of the verification
// of a tree. It can, for instance, be implemented by a user interface to keep the user updated
// on current activities.
type VerificationObserver interface {
	StartVerification()
	Progress(msg string)
	EndVerification(res error)
}

// NilVerificationObserver is a trivial implementation of the observer interface above which
// ignores all reported events.
type NilVerificationObserver struct{}

func (NilVerificationObserver) StartVerification()        {}
func (NilVerificationObserver) Progress(msg string)       {}
func (NilVerificationObserver) EndVerification(res error) {}

const progressInterval = 100_000

// Check verifies the structural integrity of the current version of the tree.
func (t *Tree) Check() error {
	return VerifyTree(t, NilVerificationObserver{})
}

// VerifyTree walks all nodes reachable from the current root of the tree and
// checks that
//   - all referenced nodes have been created,
//   - all stored hashes match the hashes recomputed from the node content,
//   - all leaves are located on the path of their key within the max depth,
//   - middle nodes do not have an empty child next to an empty or leaf node,
//   - no node is reachable more than once,
//   - the number of leaves matches the number of insertions.
func VerifyTree(tree *Tree, observer VerificationObserver) (res error) {
	if observer == nil {
		observer = NilVerificationObserver{}
	}
	observer.StartVerification()
	defer func() {
		observer.EndVerification(res)
	}()

	tree.mutex.RLock()
	defer tree.mutex.RUnlock()

	observer.Progress(fmt.Sprintf("Checking tree of version %d with %d nodes ...", tree.version, tree.nodesCount))
	if !tree.initialized && tree.nodesCount > 0 {
		return fmt.Errorf("%w: uninitialized tree contains %d nodes", ErrCorruptedTree, tree.nodesCount)
	}

	type entry struct {
		id       NodeId
		depth    uint
		path     common.Key // the bits leading to the node
		expanded bool
	}

	hashes := map[NodeId]common.Hash{}
	visited := map[NodeId]bool{}
	checked := 0
	leaves := uint64(0)
	errs := []error{}

	// Nodes are visited in post-order, such that children are checked
	// before their parent.
	stack := []entry{{id: tree.root}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		if cur.id.IsEmpty() {
			stack = stack[:len(stack)-1]
			continue
		}
		if uint64(cur.id) > tree.nodesCount {
			return fmt.Errorf("%w: reference to node %v, only %d nodes exist", ErrNodeOutOfRange, cur.id, tree.nodesCount)
		}
		if !cur.expanded {
			if visited[cur.id] {
				return fmt.Errorf("%w: node %v is reachable more than once", ErrCorruptedTree, cur.id)
			}
			visited[cur.id] = true
		}
		node, err := tree.getNode(cur.id)
		if err != nil {
			return err
		}

		if node.IsMiddle() && !cur.expanded {
			if cur.depth >= tree.maxDepth {
				return fmt.Errorf("%w: middle node %v at depth %d exceeds max depth %d", ErrCorruptedTree, cur.id, cur.depth, tree.maxDepth)
			}
			stack[len(stack)-1].expanded = true
			right := cur.path
			setBit(&right, cur.depth)
			stack = append(stack,
				entry{id: node.Left, depth: cur.depth + 1, path: cur.path},
				entry{id: node.Right, depth: cur.depth + 1, path: right},
			)
			continue
		}
		stack = stack[:len(stack)-1]
		checked++

		switch node.Type {
		case LeafNode:
			leaves++
			if got, want := common.SharedPrefixLength(node.Key, cur.path), cur.depth; got < want {
				errs = append(errs, fmt.Errorf("%w: leaf %v with key %v is not located on the path of its key", ErrCorruptedTree, cur.id, node.Key))
			}
			if want := hashLeaf(tree.hasher, node.Key, node.Value); node.Hash != want {
				errs = append(errs, fmt.Errorf("%w: invalid hash of leaf %v, stored %v, expected %v", ErrCorruptedTree, cur.id, node.Hash, want))
			}
			hashes[cur.id] = node.Hash

		case MiddleNode:
			leftType, err := getType(tree, node.Left)
			if err != nil {
				return err
			}
			rightType, err := getType(tree, node.Right)
			if err != nil {
				return err
			}
			if (leftType == EmptyNode && rightType != MiddleNode) || (rightType == EmptyNode && leftType != MiddleNode) {
				errs = append(errs, fmt.Errorf("%w: middle node %v with children of type %v and %v could be collapsed", ErrCorruptedTree, cur.id, leftType, rightType))
			}
			if want := hashMiddle(tree.hasher, hashes[node.Left], hashes[node.Right]); node.Hash != want {
				errs = append(errs, fmt.Errorf("%w: invalid hash of middle node %v, stored %v, expected %v", ErrCorruptedTree, cur.id, node.Hash, want))
			}
			hashes[cur.id] = node.Hash
			delete(hashes, node.Left)
			delete(hashes, node.Right)

		default:
			return fmt.Errorf("%w: node %v of type %v", ErrUnknownNodeType, cur.id, node.Type)
		}

		if checked%progressInterval == 0 {
			observer.Progress(fmt.Sprintf("Checked %d nodes ...", checked))
		}
		if len(errs) > 0 {
			return errors.Join(errs...)
		}
	}

	if got, want := hashes[tree.root], tree.rootHash; got != want {
		return fmt.Errorf("%w: root hash is %v, expected %v", ErrCorruptedTree, got, want)
	}
	if leaves != tree.version {
		return fmt.Errorf("%w: found %d leaves after %d insertions", ErrCorruptedTree, leaves, tree.version)
	}
	observer.Progress(fmt.Sprintf("Checked %d nodes, %d of them leaves", checked, leaves))
	return nil
}

func getType(tree *Tree, id NodeId) (NodeType, error) {
	node, err := tree.getNode(id)
	return node.Type, err
}

// setBit sets bit i of the given key, counting from the least significant bit.
func setBit(key *common.Key, i uint) {
	key[common.KeySize-1-i/8] |= 1 << (i % 8)
}
