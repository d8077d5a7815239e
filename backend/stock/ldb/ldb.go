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
	"fmt"
	"unsafe"

	"github.com/Fantom-foundation/go-smt/backend/stock"
	"github.com/Fantom-foundation/go-smt/common"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// ldbStock is a stock storing each value under its own LevelDB key. The size
// of the stock is kept in a metadata entry updated atomically with every
// allocation.
type ldbStock[I stock.Index, V any] struct {
	db      common.LevelDB
	closer  func() error
	table   common.TableSpace
	encoder stock.ValueEncoder[V]
	size    I
}

var sizeKey = common.MetadataKey.ToDBKey([]byte("size"))
var formatKey = common.MetadataKey.ToDBKey([]byte("format"))

// OpenStock opens a LevelDB instance in the given directory and uses it as the
// backing storage of a stock.
func OpenStock[I stock.Index, V any](encoder stock.ValueEncoder[V], directory string) (stock.Stock[I, V], error) {
	db, err := leveldb.OpenFile(directory, nil)
	if err != nil {
		return nil, err
	}
	res, err := newStock[I, V](db, common.NodeStoreKey, encoder)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	res.closer = db.Close
	return res, nil
}

// NewStock creates a stock using the given table space of an externally
// owned database. Closing the stock does not close the database.
func NewStock[I stock.Index, V any](db common.LevelDB, table common.TableSpace, encoder stock.ValueEncoder[V]) (stock.Stock[I, V], error) {
	return newStock[I, V](db, table, encoder)
}

func newStock[I stock.Index, V any](db common.LevelDB, table common.TableSpace, encoder stock.ValueEncoder[V]) (*ldbStock[I, V], error) {
	res := &ldbStock[I, V]{
		db:      db,
		table:   table,
		encoder: encoder,
	}

	format := encodeFormat[I](encoder.GetEncodedSize())
	stored, err := db.Get(res.metaKey(formatKey), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		if err := db.Put(res.metaKey(formatKey), format, nil); err != nil {
			return nil, err
		}
		return res, nil
	}
	if err != nil {
		return nil, err
	}
	if string(stored) != string(format) {
		return nil, fmt.Errorf("invalid stock encoding, expected %x, found %x", format, stored)
	}

	data, err := db.Get(res.metaKey(sizeKey), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return res, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) != 8 {
		return nil, fmt.Errorf("invalid size entry of length %d", len(data))
	}
	res.size = I(binary.BigEndian.Uint64(data))
	return res, nil
}

func encodeFormat[I stock.Index](valueSize int) []byte {
	res := make([]byte, 9)
	res[0] = byte(stock.GetIndexSize[I]())
	binary.BigEndian.PutUint64(res[1:], uint64(valueSize))
	return res
}

// metaKey places metadata keys behind the table space of the stock such that
// multiple stocks may share a database.
func (s *ldbStock[I, V]) metaKey(key []byte) []byte {
	res := make([]byte, 0, len(key)+1)
	res = append(res, byte(s.table))
	return append(res, key...)
}

func (s *ldbStock[I, V]) valueKey(index I) []byte {
	key := make([]byte, stock.GetIndexSize[I]())
	stock.EncodeIndex(index, key)
	return s.table.ToDBKey(key)
}

func (s *ldbStock[I, V]) New() (I, error) {
	index := s.size
	sizeData := make([]byte, 8)
	binary.BigEndian.PutUint64(sizeData, uint64(index+1))

	batch := new(leveldb.Batch)
	batch.Put(s.valueKey(index), make([]byte, s.encoder.GetEncodedSize()))
	batch.Put(s.metaKey(sizeKey), sizeData)
	if err := s.db.Write(batch, nil); err != nil {
		return 0, err
	}
	s.size++
	return index, nil
}

func (s *ldbStock[I, V]) Get(index I) (V, error) {
	var res V
	if index >= s.size || index < 0 {
		return res, nil
	}
	data, err := s.db.Get(s.valueKey(index), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return res, nil
	}
	if err != nil {
		return res, err
	}
	if len(data) != s.encoder.GetEncodedSize() {
		return res, fmt.Errorf("invalid value size for index %d, got %d, wanted %d", index, len(data), s.encoder.GetEncodedSize())
	}
	if err := s.encoder.Load(data, &res); err != nil {
		return res, err
	}
	return res, nil
}

func (s *ldbStock[I, V]) Set(index I, value V) error {
	if index >= s.size || index < 0 {
		return fmt.Errorf("index out of range, got %d, range [0,%d)", index, s.size)
	}
	data := make([]byte, s.encoder.GetEncodedSize())
	if err := s.encoder.Store(data, &value); err != nil {
		return err
	}
	return s.db.Put(s.valueKey(index), data, nil)
}

func (s *ldbStock[I, V]) Size() I {
	return s.size
}

func (s *ldbStock[I, V]) GetMemoryFootprint() *common.MemoryFootprint {
	return common.NewMemoryFootprint(unsafe.Sizeof(*s))
}

func (s *ldbStock[I, V]) Flush() error {
	// All updates are written through, rewriting the size synchronously
	// makes sure they reached the disk.
	sizeData := make([]byte, 8)
	binary.BigEndian.PutUint64(sizeData, uint64(s.size))
	return s.db.Put(s.metaKey(sizeKey), sizeData, &opt.WriteOptions{Sync: true})
}

func (s *ldbStock[I, V]) Close() error {
	if s.closer == nil {
		return s.Flush()
	}
	closer := s.closer
	s.closer = nil
	return errors.Join(s.Flush(), closer())
}
