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
	"fmt"
	"strings"

	"github.com/Fantom-foundation/go-smt/common"
	"golang.org/x/exp/slices"
)

// AuxNode is the leaf found on the path of a key not present in a tree.
type AuxNode struct {
	Key   common.Key
	Value common.Value
}

// Proof certifies the presence or absence of a key in a tree with a given root.
//
// Siblings lists the hashes of the sub-trees next to the path of the key,
// starting with the sibling of the root's child. Trailing empty siblings are
// omitted. If the key is present, Existence is true. Otherwise the path of
// the key ends either in an empty sub-tree or in the leaf of a different key,
// which is then reported as Aux.
type Proof struct {
	Siblings  []common.Hash
	Existence bool
	Aux       *AuxNode
}

// Prove creates a proof for the presence or absence of the given key in the
// current version of the tree. Proofs on empty trees have no siblings.
func (t *Tree) Prove(key common.Key) (Proof, error) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.prove(t.root, key)
}

// ProveAt creates a proof for the given key in a past version of the tree.
// This requires the tree to have an archive recording the history.
func (t *Tree) ProveAt(version uint64, key common.Key) (Proof, error) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	if version == t.version {
		return t.prove(t.root, key)
	}
	if version > t.version {
		return Proof{}, fmt.Errorf("%w: %d, current version is %d", ErrVersionNotFound, version, t.version)
	}
	if version == 0 {
		return t.prove(EmptyId(), key)
	}
	if t.archive == nil {
		return Proof{}, ErrNoArchive
	}
	record, found, err := t.archive.Get(version)
	if err != nil {
		return Proof{}, err
	}
	if !found {
		return Proof{}, fmt.Errorf("%w: %d", ErrVersionNotFound, version)
	}
	return t.prove(NodeId(record.RootId), key)
}

func (t *Tree) prove(root NodeId, key common.Key) (Proof, error) {
	res := Proof{}
	id := root
	for depth := uint(0); ; depth++ {
		node, err := t.getNode(id)
		if err != nil {
			return Proof{}, err
		}
		switch node.Type {
		case EmptyNode:
			res.trim()
			return res, nil
		case LeafNode:
			if node.Key == key {
				res.Existence = true
			} else {
				res.Aux = &AuxNode{Key: node.Key, Value: node.Value}
			}
			res.trim()
			return res, nil
		}
		if depth >= HardMaxDepth {
			return Proof{}, fmt.Errorf("%w: path of key %v exceeds max depth", ErrCorruptedTree, key)
		}
		bit := key.Bit(depth)
		sibling, err := t.getHash(node.Child(!bit))
		if err != nil {
			return Proof{}, err
		}
		res.Siblings = append(res.Siblings, sibling)
		id = node.Child(bit)
	}
}

// trim drops trailing empty siblings.
func (p *Proof) trim() {
	end := len(p.Siblings)
	for end > 0 && p.Siblings[end-1].IsZero() {
		end--
	}
	p.Siblings = p.Siblings[:end]
}

// Verify checks a proof against a root computed using Keccak256 hashing.
func Verify(root common.Hash, proof Proof, key common.Key, value common.Value) bool {
	return VerifyWith(KeccakHashing.createHasher(), root, proof, key, value)
}

// VerifyWith checks whether the given proof shows that the tree with the given
// root contains the given key/value pair, or, for non-existence proofs, that
// the key is absent. Non-existence proofs only verify for a zero value.
// Malformed proofs and words outside of the hasher's input domain are
// rejected.
func VerifyWith(hasher Hasher, root common.Hash, proof Proof, key common.Key, value common.Value) bool {
	if len(proof.Siblings) > HardMaxDepth {
		return false
	}
	if !isValidInput(hasher, common.Hash(key), common.Hash(value)) || !isValidInput(hasher, proof.Siblings...) {
		return false
	}
	if proof.Aux != nil && !isValidInput(hasher, common.Hash(proof.Aux.Key), common.Hash(proof.Aux.Value)) {
		return false
	}
	depth := uint(len(proof.Siblings))

	var hash common.Hash
	switch {
	case proof.Existence:
		if proof.Aux != nil {
			return false
		}
		hash = hashLeaf(hasher, key, value)
	case proof.Aux != nil:
		if !value.IsZero() || proof.Aux.Key == key {
			return false
		}
		// The aux leaf must be located on the path of the key.
		if common.SharedPrefixLength(key, proof.Aux.Key) < depth {
			return false
		}
		hash = hashLeaf(hasher, proof.Aux.Key, proof.Aux.Value)
	default:
		if !value.IsZero() {
			return false
		}
	}

	for i := len(proof.Siblings) - 1; i >= 0; i-- {
		if key.Bit(uint(i)) {
			hash = hashMiddle(hasher, proof.Siblings[i], hash)
		} else {
			hash = hashMiddle(hasher, hash, proof.Siblings[i])
		}
	}
	return hash == root
}

// VerifyProofs produces proofs for the given keys and checks that they verify
// against the current root of the tree. Keys present in the tree are checked
// with their stored value, absent keys with a zero value.
func VerifyProofs(tree *Tree, keys []common.Key) error {
	hasher := tree.Hashing().createHasher()
	for _, key := range keys {
		tree.mutex.RLock()
		root := tree.rootHash
		proof, err := tree.prove(tree.root, key)
		var node Node
		if err == nil {
			node, err = tree.getNodeByKeyLocked(key)
		}
		tree.mutex.RUnlock()
		if err != nil {
			return err
		}
		if proof.Existence != node.IsLeaf() {
			return fmt.Errorf("proof of key %v reports existence %t, node is %v", key, proof.Existence, node)
		}
		if !VerifyWith(hasher, root, proof, key, node.Value) {
			return fmt.Errorf("proof of key %v does not verify against root %v", key, root)
		}
	}
	return nil
}

func (p Proof) Equals(other Proof) bool {
	if p.Existence != other.Existence || !slices.Equal(p.Siblings, other.Siblings) {
		return false
	}
	if p.Aux == nil || other.Aux == nil {
		return p.Aux == nil && other.Aux == nil
	}
	return *p.Aux == *other.Aux
}

func (p Proof) String() string {
	var builder strings.Builder
	if p.Existence {
		builder.WriteString("Proof{existence")
	} else {
		builder.WriteString("Proof{non-existence")
	}
	if p.Aux != nil {
		builder.WriteString(fmt.Sprintf(", aux: %v -> %v", p.Aux.Key, p.Aux.Value))
	}
	builder.WriteString(", siblings: [")
	for i, sibling := range p.Siblings {
		if i > 0 {
			builder.WriteString(", ")
		}
		builder.WriteString(sibling.String())
	}
	builder.WriteString("]}")
	return builder.String()
}

// ----------------------------------------------------------------------------
//                                  JSON
// ----------------------------------------------------------------------------

type proofJson struct {
	Siblings  []common.Hash `json:"siblings"`
	Existence bool          `json:"existence"`
	AuxKey    *common.Key   `json:"auxKey,omitempty"`
	AuxValue  *common.Value `json:"auxValue,omitempty"`
}

func (p Proof) MarshalJSON() ([]byte, error) {
	data := proofJson{
		Siblings:  p.Siblings,
		Existence: p.Existence,
	}
	if data.Siblings == nil {
		data.Siblings = []common.Hash{}
	}
	if p.Aux != nil {
		data.AuxKey = &p.Aux.Key
		data.AuxValue = &p.Aux.Value
	}
	return json.Marshal(data)
}

func (p *Proof) UnmarshalJSON(input []byte) error {
	var data proofJson
	if err := json.Unmarshal(input, &data); err != nil {
		return err
	}
	if (data.AuxKey == nil) != (data.AuxValue == nil) {
		return fmt.Errorf("incomplete aux node in proof")
	}
	*p = Proof{
		Existence: data.Existence,
	}
	if len(data.Siblings) > 0 {
		p.Siblings = data.Siblings
	}
	if data.AuxKey != nil {
		p.Aux = &AuxNode{Key: *data.AuxKey, Value: *data.AuxValue}
	}
	return nil
}
