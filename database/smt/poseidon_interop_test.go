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
	"context"
	"math/big"
	"testing"

	merkletree "github.com/iden3/go-merkletree-sql/v2"
	"github.com/iden3/go-merkletree-sql/v2/db/memory"
)

// Trees using Poseidon hashing are expected to be compatible with the
// Merkle trees of the iden3 ecosystem, which are verified by circom circuits.
func TestPoseidonTree_RootsMatchIden3MerkleTree(t *testing.T) {
	const depth = 64
	ctx := context.Background()
	reference, err := merkletree.NewMerkleTree(ctx, memory.NewMemoryStorage(), depth)
	if err != nil {
		t.Fatalf("failed to create reference tree: %v", err)
	}
	tree := newTestTree(t, depth, WithHashing(PoseidonHashing))

	for i := uint64(1); i <= 40; i++ {
		k := i * 7919
		v := i * i
		if err := reference.Add(ctx, new(big.Int).SetUint64(k), new(big.Int).SetUint64(v)); err != nil {
			t.Fatalf("failed to insert into reference tree: %v", err)
		}
		insert(t, tree, k, v)

		root := tree.GetRoot()
		want := reference.Root().BigInt()
		if got := new(big.Int).SetBytes(root[:]); got.Cmp(want) != 0 {
			t.Fatalf("unexpected root after inserting %d keys, wanted %v, got %v", i, want, got)
		}
	}
}
