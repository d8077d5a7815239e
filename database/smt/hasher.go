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

//go:generate mockgen -source hasher.go -destination hasher_mocks.go -package smt

import (
	"math/big"

	"github.com/Fantom-foundation/go-smt/common"
	"github.com/iden3/go-iden3-crypto/constants"
	"github.com/iden3/go-iden3-crypto/poseidon"
	"github.com/iden3/go-iden3-crypto/utils"
)

// ----------------------------------------------------------------------------
//                             Public Interfaces
// ----------------------------------------------------------------------------

// Hasher is the hash function used for computing node hashes. Leaves are
// hashed using Hash3(key, value, 1), middle nodes using Hash2(left, right).
// Implementations must be deterministic and safe for concurrent use.
type Hasher interface {
	Hash2(a, b common.Hash) common.Hash
	Hash3(a, b, c common.Hash) common.Hash
}

// InputValidator is implemented by hashers not accepting every 256-bit word
// as an input, such as hashers over a prime field. Keys and values rejected by
// the hasher of a tree can not be inserted, and proofs covering them never
// verify.
type InputValidator interface {
	IsValidInput(common.Hash) bool
}

// isValidInput checks the given words against the input domain of the hasher.
func isValidInput(hasher Hasher, words ...common.Hash) bool {
	validator, ok := hasher.(InputValidator)
	if !ok {
		return true
	}
	for _, word := range words {
		if !validator.IsValidInput(word) {
			return false
		}
	}
	return true
}

// HashAlgorithm is a configuration token selecting the Hasher of a tree. The
// name of the algorithm is stored along with persistent trees.
type HashAlgorithm struct {
	Name         string
	createHasher func() Hasher
}

// KeccakHashing hashes the concatenation of the inputs using Keccak256, which
// matches Solidity's keccak256(abi.encode(a, b)) for bytes32 inputs.
var KeccakHashing = HashAlgorithm{
	Name:         "Keccak256",
	createHasher: makeKeccakHasher,
}

// PoseidonHashing uses the circom compatible Poseidon hash over the scalar
// field of BN254, as used by zero-knowledge circuits operating on the tree.
var PoseidonHashing = HashAlgorithm{
	Name:         "Poseidon",
	createHasher: makePoseidonHasher,
}

var allHashAlgorithms = []HashAlgorithm{KeccakHashing, PoseidonHashing}

// GetHashAlgorithmByName looks up one of the built-in hash algorithms.
func GetHashAlgorithmByName(name string) (HashAlgorithm, bool) {
	for _, algorithm := range allHashAlgorithms {
		if algorithm.Name == name {
			return algorithm, true
		}
	}
	return HashAlgorithm{}, false
}

// CustomHashing wraps a client provided hasher into a hash algorithm token.
// The name is recorded with persistent trees and needs to be distinct from the
// names of the built-in algorithms.
func CustomHashing(name string, hasher Hasher) HashAlgorithm {
	return HashAlgorithm{
		Name:         name,
		createHasher: func() Hasher { return hasher },
	}
}

// IsBuiltIn returns true if the algorithm is one of the algorithms provided
// by this package.
func (a HashAlgorithm) IsBuiltIn() bool {
	_, found := GetHashAlgorithmByName(a.Name)
	return found && a.createHasher != nil
}

// NewHasher creates a hasher computing hashes of this algorithm, for instance
// for verifying proofs using VerifyWith.
func (a HashAlgorithm) NewHasher() Hasher {
	return a.createHasher()
}

func (a HashAlgorithm) isValid() bool {
	return a.createHasher != nil
}

func (a HashAlgorithm) String() string {
	return a.Name
}

// leafMarker is the third input of the hash of leaf nodes, separating them
// from middle nodes.
var leafMarker = common.Hash{31: 1}

func hashLeaf(hasher Hasher, key common.Key, value common.Value) common.Hash {
	return hasher.Hash3(common.Hash(key), common.Hash(value), leafMarker)
}

func hashMiddle(hasher Hasher, left, right common.Hash) common.Hash {
	return hasher.Hash2(left, right)
}

// ----------------------------------------------------------------------------
//                             Keccak Hasher
// ----------------------------------------------------------------------------

type keccakHasher struct{}

func makeKeccakHasher() Hasher {
	return keccakHasher{}
}

func (keccakHasher) Hash2(a, b common.Hash) common.Hash {
	return common.Keccak256ForHashes(a, b)
}

func (keccakHasher) Hash3(a, b, c common.Hash) common.Hash {
	return common.Keccak256ForHashes(a, b, c)
}

// ----------------------------------------------------------------------------
//                             Poseidon Hasher
// ----------------------------------------------------------------------------

// poseidonHasher interprets hashes as big-endian integers. Only elements of
// the field are valid inputs. Others are reduced to keep the hasher total, yet
// they are rejected by Insert and VerifyWith since they would alias the
// reduced element.
type poseidonHasher struct{}

func (poseidonHasher) IsValidInput(word common.Hash) bool {
	return utils.CheckBigIntInField(new(big.Int).SetBytes(word[:]))
}

func makePoseidonHasher() Hasher {
	return poseidonHasher{}
}

func (h poseidonHasher) Hash2(a, b common.Hash) common.Hash {
	return h.hash(a, b)
}

func (h poseidonHasher) Hash3(a, b, c common.Hash) common.Hash {
	return h.hash(a, b, c)
}

func (poseidonHasher) hash(inputs ...common.Hash) common.Hash {
	elements := make([]*big.Int, len(inputs))
	for i, input := range inputs {
		element := new(big.Int).SetBytes(input[:])
		elements[i] = element.Mod(element, constants.Q)
	}
	res, err := poseidon.Hash(elements)
	if err != nil {
		// Only reachable for unsupported input counts.
		panic(err)
	}
	var hash common.Hash
	res.FillBytes(hash[:])
	return hash
}
