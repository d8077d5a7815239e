// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ldb

import (
	"encoding/binary"
	"errors"
	"sync"
	"unsafe"

	"github.com/Fantom-foundation/go-smt/backend/archive"
	"github.com/Fantom-foundation/go-smt/common"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	versionSize = 8                  // version number size (uint64)
	maxVersion  = 0xFFFFFFFFFFFFFFFE // must be less than the max value to fit into the limit range
)

// limitVersion is the max range value, it must be greater than maxVersion.
var limitVersion = []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// versionKey is a key of the root table, it consists of
// * the tablespace
// * the version number, represented as an inverse value to sort from the highest version
type versionKey [1 + versionSize]byte

func (k *versionKey) set(version uint64) {
	k[0] = byte(common.RootArchiveKey)
	binary.BigEndian.PutUint64(k[1:], maxVersion-version)
}

func (k *versionKey) get() uint64 {
	return maxVersion - binary.BigEndian.Uint64(k[1:])
}

// getVersionRangeFromHighest provides a key range for iterating from the highest version to the first
func getVersionRangeFromHighest() util.Range {
	var start, end versionKey
	start.set(maxVersion)
	end[0] = start[0]
	copy(end[1:], limitVersion)
	return util.Range{Start: start[:], Limit: end[:]}
}

// Archive is a LevelDB backed root history. The database may be shared with
// other components, it is not closed when the archive is closed.
type Archive struct {
	db       common.LevelDB
	addMutex sync.Mutex
}

func NewArchive(db common.LevelDB) *Archive {
	return &Archive{db: db}
}

func (a *Archive) Add(record archive.Record) error {
	a.addMutex.Lock()
	defer a.addMutex.Unlock()

	latest, exists, err := a.GetLatest()
	if err != nil {
		return err
	}
	if err := archive.CheckOrder(latest.Version, exists, record.Version); err != nil {
		return err
	}
	if record.Version > maxVersion {
		return archive.ErrVersionOrder
	}
	var key versionKey
	key.set(record.Version)
	value := make([]byte, archive.RecordSize)
	record.Encode(value)
	return a.db.Put(key[:], value, nil)
}

func (a *Archive) Get(version uint64) (archive.Record, bool, error) {
	var res archive.Record
	if version > maxVersion {
		return res, false, nil
	}
	var key versionKey
	key.set(version)
	data, err := a.db.Get(key[:], nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return res, false, nil
	}
	if err != nil {
		return res, false, err
	}
	if err := res.Decode(data); err != nil {
		return res, false, err
	}
	return res, true, nil
}

func (a *Archive) GetLatest() (archive.Record, bool, error) {
	var res archive.Record
	keysRange := getVersionRangeFromHighest()
	iter := a.db.NewIterator(&keysRange, nil)
	defer iter.Release()

	if !iter.Next() {
		return res, false, iter.Error()
	}
	var key versionKey
	copy(key[:], iter.Key())
	if err := res.Decode(iter.Value()); err != nil {
		return res, false, err
	}
	if res.Version != key.get() {
		return res, false, errors.New("root archive key does not match record version")
	}
	return res, true, nil
}

func (a *Archive) GetMemoryFootprint() *common.MemoryFootprint {
	return common.NewMemoryFootprint(unsafe.Sizeof(*a))
}

func (a *Archive) Flush() error {
	return nil
}

func (a *Archive) Close() error {
	// no-op, the database is owned by the caller
	return nil
}
