// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package memory

import (
	"sync"
	"unsafe"

	"github.com/Fantom-foundation/go-smt/backend/archive"
	"github.com/Fantom-foundation/go-smt/common"
	"golang.org/x/exp/slices"
)

// Archive retains the root history in memory. Versions are expected to be
// dense, which is how trees produce them, but gaps are supported.
type Archive struct {
	records []archive.Record
	mu      sync.RWMutex
}

func NewArchive() *Archive {
	return &Archive{}
}

func (a *Archive) Add(record archive.Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var latest uint64
	if len(a.records) > 0 {
		latest = a.records[len(a.records)-1].Version
	}
	if err := archive.CheckOrder(latest, len(a.records) > 0, record.Version); err != nil {
		return err
	}
	a.records = append(a.records, record)
	return nil
}

func (a *Archive) Get(version uint64) (archive.Record, bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	pos, found := slices.BinarySearchFunc(a.records, version, func(r archive.Record, v uint64) int {
		switch {
		case r.Version < v:
			return -1
		case r.Version > v:
			return 1
		}
		return 0
	})
	if !found {
		return archive.Record{}, false, nil
	}
	return a.records[pos], true, nil
}

func (a *Archive) GetLatest() (archive.Record, bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.records) == 0 {
		return archive.Record{}, false, nil
	}
	return a.records[len(a.records)-1], true, nil
}

func (a *Archive) GetMemoryFootprint() *common.MemoryFootprint {
	a.mu.RLock()
	defer a.mu.RUnlock()
	res := common.NewMemoryFootprint(unsafe.Sizeof(*a))
	res.AddChild("records", common.NewMemoryFootprint(uintptr(cap(a.records))*unsafe.Sizeof(archive.Record{})))
	return res
}

func (a *Archive) Flush() error {
	return nil
}

func (a *Archive) Close() error {
	return nil
}
