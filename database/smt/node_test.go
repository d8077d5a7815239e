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
	"testing"

	"github.com/Fantom-foundation/go-smt/common"
)

func TestNodeId_Print(t *testing.T) {
	if got, want := EmptyId().String(), "E"; got != want {
		t.Errorf("unexpected print, wanted %s, got %s", want, got)
	}
	if got, want := NodeId(12).String(), "N-12"; got != want {
		t.Errorf("unexpected print, wanted %s, got %s", want, got)
	}
}

func TestNode_ZeroValueIsEmptyNode(t *testing.T) {
	node := Node{}
	if !node.IsEmpty() || node.IsLeaf() || node.IsMiddle() {
		t.Errorf("zero node should be empty")
	}
	if !node.Hash.IsZero() {
		t.Errorf("empty node should have zero hash")
	}
	if got, want := node.String(), "Empty"; got != want {
		t.Errorf("unexpected print, wanted %s, got %s", want, got)
	}
}

func TestNode_ChildFollowsKeyBit(t *testing.T) {
	node := newMiddle(keccakHasher{}, 1, common.Hash{1}, 2, common.Hash{2})
	if got := node.Child(false); got != 1 {
		t.Errorf("unexpected left child: %v", got)
	}
	if got := node.Child(true); got != 2 {
		t.Errorf("unexpected right child: %v", got)
	}
	if got, want := node.Hash, hashMiddle(keccakHasher{}, common.Hash{1}, common.Hash{2}); got != want {
		t.Errorf("unexpected hash, wanted %v, got %v", want, got)
	}
}

func TestNodeEncoder_NodesCanBeEncodedAndDecoded(t *testing.T) {
	hasher := keccakHasher{}
	nodes := []Node{
		{},
		newLeaf(hasher, key(12), value(14)),
		newMiddle(hasher, 5, common.Hash{5}, 1<<40, common.Hash{7}),
	}
	encoder := NodeEncoder{}
	buffer := make([]byte, encoder.GetEncodedSize())
	for _, node := range nodes {
		if err := encoder.Store(buffer, &node); err != nil {
			t.Fatalf("failed to encode node: %v", err)
		}
		var restored Node
		if err := encoder.Load(buffer, &restored); err != nil {
			t.Fatalf("failed to decode node: %v", err)
		}
		if restored != node {
			t.Errorf("unexpected decoded node, wanted %v, got %v", node, restored)
		}
	}
}

func TestNodeEncoder_UnknownNodeTypesAreRejected(t *testing.T) {
	encoder := NodeEncoder{}
	buffer := make([]byte, encoder.GetEncodedSize())
	buffer[0] = 3
	var node Node
	if err := encoder.Load(buffer, &node); !errors.Is(err, ErrUnknownNodeType) {
		t.Errorf("unexpected error: %v", err)
	}
}
