// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

/*
Package smt implements a sparse Merkle tree, an authenticated key/value store
mapping 256-bit keys to 256-bit values.

The tree is a binary trie. The path from the root to the leaf of a key is
given by the bits of the key, starting with the least significant bit. Leaves
are placed at the shallowest position where their path is unique, which keeps
trees holding few keys shallow. The maximum depth of a tree is configured at
initialization and may be increased later on.

Two keys agreeing on their lowest maxDepth bits can not both be stored.
Inserting the second one fails with ErrMaxDepthReached, keys are never
truncated. For uniformly distributed keys, collisions become likely once a
tree holds about 2^(maxDepth/2) keys, so a depth of 80 is good for roughly a
trillion keys, while depth 256 never collides.

Nodes are never modified once written. Each insertion writes a fresh path of
nodes from the new leaf to a new root, sharing all untouched sub-trees with the
previous version. Thus, roots of old versions remain valid and, if an archive
is attached, proofs may be generated for any past version of the tree.

Proofs certify either the presence of a key/value pair in a tree with a given
root or the absence of a key. They are verified by Verify without access to
the tree.
*/
package smt
