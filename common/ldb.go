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
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDB is an interface missing in original LevelDB design.
// It contains the methods common for transactional and non-transactional
// LevelDB instances used by the LevelDB backed components of this module.
type LevelDB interface {
	// Get gets the value for the given key. It returns leveldb.ErrNotFound
	// if the DB does not contain the key.
	Get(key []byte, ro *opt.ReadOptions) (value []byte, err error)

	// Has returns true if the DB does contain the given key.
	Has(key []byte, ro *opt.ReadOptions) (bool, error)

	// NewIterator returns an iterator for the latest snapshot of the
	// underlying DB restricted to the given key range. The iterator must be
	// released after use.
	NewIterator(slice *util.Range, ro *opt.ReadOptions) iterator.Iterator

	// Put sets the value for the given key.
	Put(key, value []byte, wo *opt.WriteOptions) error

	// Write applies the given batch to the DB atomically.
	Write(batch *leveldb.Batch, wo *opt.WriteOptions) error
}

// TableSpace divides a key-value storage into spaces by adding a prefix to
// the key.
type TableSpace byte

const (
	// NodeStoreKey is the table space of tree nodes.
	NodeStoreKey TableSpace = 'N'
	// MetadataKey is the table space of bookkeeping entries.
	MetadataKey TableSpace = 'M'
	// RootArchiveKey is the table space of the root history.
	RootArchiveKey TableSpace = 'R'
)

// ToDBKey prefixes the given key with the table space.
func (t TableSpace) ToDBKey(key []byte) []byte {
	res := make([]byte, 0, len(key)+1)
	res = append(res, byte(t))
	return append(res, key...)
}
