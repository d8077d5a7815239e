// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package archive

import (
	"encoding/binary"
	"fmt"

	"github.com/Fantom-foundation/go-smt/common"
)

//go:generate mockgen -source archive.go -destination archive_mocks.go -package archive

// Archive is the history of roots of a sparse Merkle tree. Each successful
// insertion produces a new version of the tree. Since tree nodes are never
// modified once written, recording the root node of each version is enough
// to retain the full history.
//
// All updates are append-only. History written once can no longer be altered.
// Add and Get operations are thread safe and may thus be run in parallel.
type Archive interface {
	// Add appends a record to the history. The version of the record must
	// be greater than the version of every record added before.
	Add(Record) error

	// Get fetches the record of the given version. The boolean result is
	// false if there is no such record.
	Get(version uint64) (Record, bool, error)

	// GetLatest fetches the record with the highest version, if any.
	GetLatest() (Record, bool, error)

	common.MemoryFootprintProvider
	common.FlushAndCloser
}

// Record summarizes the state of a tree after an insertion.
type Record struct {
	Version    uint64       // number of successful insertions, starting at 1
	Root       common.Hash  // root hash of the tree
	RootId     uint64       // index of the root node in the node store
	NodesCount uint64       // number of nodes after the insertion
	Key        common.Key   // key inserted to reach this version
	Value      common.Value // value inserted to reach this version
}

func (r Record) String() string {
	return fmt.Sprintf("version %d: root %v (node %d), %d nodes, inserted %v -> %v", r.Version, r.Root, r.RootId, r.NodesCount, r.Key, r.Value)
}

// RecordSize is the size of an encoded record.
const RecordSize = 8 + common.HashSize + 8 + 8 + common.KeySize + common.ValueSize

const ErrVersionOrder = common.ConstError("record versions must be strictly increasing")

// CheckOrder returns an error if a record with the given version may not be
// appended to a history whose latest version is given.
func CheckOrder(latest uint64, exists bool, version uint64) error {
	if version == 0 || (exists && version <= latest) {
		return fmt.Errorf("%w: cannot add version %d after version %d", ErrVersionOrder, version, latest)
	}
	return nil
}

// Encode writes the record into the given buffer of at least RecordSize bytes.
func (r *Record) Encode(trg []byte) {
	binary.BigEndian.PutUint64(trg[0:8], r.Version)
	copy(trg[8:40], r.Root[:])
	binary.BigEndian.PutUint64(trg[40:48], r.RootId)
	binary.BigEndian.PutUint64(trg[48:56], r.NodesCount)
	copy(trg[56:88], r.Key[:])
	copy(trg[88:120], r.Value[:])
}

// Decode restores a record encoded by Encode.
func (r *Record) Decode(src []byte) error {
	if len(src) != RecordSize {
		return fmt.Errorf("invalid record encoding, expected %d bytes, got %d", RecordSize, len(src))
	}
	r.Version = binary.BigEndian.Uint64(src[0:8])
	copy(r.Root[:], src[8:40])
	r.RootId = binary.BigEndian.Uint64(src[40:48])
	r.NodesCount = binary.BigEndian.Uint64(src[48:56])
	copy(r.Key[:], src[56:88])
	copy(r.Value[:], src[88:120])
	return nil
}
