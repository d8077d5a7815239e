// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import (
	"sync"

	"golang.org/x/crypto/sha3"
)

// Keccak256 computes the legacy Keccak-256 hash of the concatenation of the
// given byte slices, as used by the EVM.
func Keccak256(data ...[]byte) Hash {
	hasher := keccakHasherPool.Get().(keccakHasher)
	hasher.Reset()
	for _, cur := range data {
		hasher.Write(cur)
	}
	var res Hash
	hasher.Read(res[:])
	keccakHasherPool.Put(hasher)
	return res
}

// Keccak256ForHashes hashes the concatenation of the given 32-byte words. The
// result equals Solidity's keccak256(abi.encode(...)) over bytes32 arguments.
func Keccak256ForHashes(words ...Hash) Hash {
	hasher := keccakHasherPool.Get().(keccakHasher)
	hasher.Reset()
	for i := range words {
		hasher.Write(words[i][:])
	}
	var res Hash
	hasher.Read(res[:])
	keccakHasherPool.Put(hasher)
	return res
}

var keccakHasherPool = sync.Pool{New: func() any { return sha3.NewLegacyKeccak256() }}

type keccakHasher interface {
	Reset()
	Write(in []byte) (int, error)
	Read(out []byte) (int, error)
}
