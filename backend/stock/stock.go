// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package stock

import (
	"encoding/binary"
	"unsafe"

	"github.com/Fantom-foundation/go-smt/common"
	"golang.org/x/exp/constraints"
)

//go:generate mockgen -source stock.go -destination stock_mocks.go -package stock -exclude_interfaces Index,ValueEncoder

// Stock is an append-only collection of fixed-sized, serializable values each
// associated to a unique, Stock-controlled index serving as an identifier.
//
// Indexes are handed out in increasing order starting at zero and are never
// reused. Values may be updated through Set, yet clients building persistent
// data structures on top of a stock typically write each value only once.
//
// Implementations are not thread safe. However, Get and Size may be called
// concurrently as long as no other operation is running, which is what the
// synced wrapper relies on.
//
// I ... the type used to address values in the stock (=index space)
// V ... the type of values stored in the stock
type Stock[I Index, V any] interface {
	// New allocates the next index. The value associated to the new index is
	// the zero value of V until it is updated through Set.
	New() (I, error)

	// Get retrieves the value associated to an index. If the index has not
	// been allocated yet, the zero value of V is returned.
	Get(I) (V, error)

	// Set updates the value associated to the given index. The index must
	// have been allocated through New before.
	Set(I, V) error

	// Size returns the number of allocated indexes, which is also the index
	// to be returned by the next call to New.
	Size() I

	// Stocks must provide information on their memory footprint.
	common.MemoryFootprintProvider

	// Also, stocks need to be flush and closable.
	common.FlushAndCloser
}

// Index defines the type constraints on Stock index types.
type Index interface {
	constraints.Integer
}

// EncodeIndex encodes an index into a binary form to be persisted.
func EncodeIndex[I Index](index I, trg []byte) {
	switch unsafe.Sizeof(index) {
	case 1:
		trg[0] = byte(index)
	case 2:
		binary.BigEndian.PutUint16(trg, uint16(index))
	case 4:
		binary.BigEndian.PutUint32(trg, uint32(index))
	default:
		binary.BigEndian.PutUint64(trg, uint64(index))
	}
}

// DecodeIndex decodes an index value from its persistent binary form.
func DecodeIndex[I Index](src []byte) I {
	var index I
	switch unsafe.Sizeof(index) {
	case 1:
		return I(src[0])
	case 2:
		return I(binary.BigEndian.Uint16(src))
	case 4:
		return I(binary.BigEndian.Uint32(src))
	default:
		return I(binary.BigEndian.Uint64(src))
	}
}

// GetIndexSize returns the number of bytes used by EncodeIndex for I.
func GetIndexSize[I Index]() int {
	var index I
	return int(unsafe.Sizeof(index))
}

// ValueEncoder is a utility interface for handling the marshaling of values
// within stock instances. Each value is expected to be encoded into a fixed-
// sized byte array.
type ValueEncoder[V any] interface {
	// The number of bytes required for encoding the value.
	GetEncodedSize() int
	// Store encodes the given value into the given byte slice.
	Store([]byte, *V) error
	// Load restores the value encoded in the given byte slice.
	Load([]byte, *V) error
}
