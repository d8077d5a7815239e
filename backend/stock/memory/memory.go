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
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unsafe"

	"github.com/Fantom-foundation/go-smt/backend/stock"
	"github.com/Fantom-foundation/go-smt/common"
)

// inMemoryStock provides an in-memory implementation of the stock.Stock
// interface. If a directory is attached, its content is loaded on opening and
// written back on Flush and Close.
type inMemoryStock[I stock.Index, V any] struct {
	values    []V
	directory string
	encoder   stock.ValueEncoder[V]
}

// CreateStock creates a volatile stock not backed by any directory.
func CreateStock[I stock.Index, V any]() stock.Stock[I, V] {
	return &inMemoryStock[I, V]{values: make([]V, 0, 10)}
}

// OpenStock opens a stock kept in memory while being used and persisted in the
// given directory on flush and close.
func OpenStock[I stock.Index, V any](encoder stock.ValueEncoder[V], directory string) (stock.Stock[I, V], error) {
	res := &inMemoryStock[I, V]{
		values:    make([]V, 0, 10),
		directory: directory,
		encoder:   encoder,
	}

	// Create the directory if needed.
	if err := os.MkdirAll(directory, 0700); err != nil {
		return nil, err
	}

	// Test whether a meta file exists in this directory.
	metafile := filepath.Join(directory, "meta.json")
	if _, err := os.Stat(metafile); err != nil {
		return res, nil
	}

	data, err := os.ReadFile(metafile)
	if err != nil {
		return nil, err
	}
	var meta metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	if err := meta.check(stock.GetIndexSize[I](), encoder.GetEncodedSize()); err != nil {
		return nil, err
	}

	valuefile := filepath.Join(directory, "values.dat")
	valueSize := encoder.GetEncodedSize()
	stats, err := os.Stat(valuefile)
	if err != nil {
		return nil, err
	}
	if got, want := stats.Size(), int64(meta.ValueListLength*valueSize); got != want {
		return nil, fmt.Errorf("invalid value file size, got %d, wanted %d", got, want)
	}

	file, err := os.Open(valuefile)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	reader := bufio.NewReader(file)
	res.values = make([]V, meta.ValueListLength)
	buffer := make([]byte, valueSize)
	for i := range res.values {
		if _, err := io.ReadFull(reader, buffer); err != nil {
			return nil, err
		}
		if err := encoder.Load(buffer, &res.values[i]); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (s *inMemoryStock[I, V]) New() (I, error) {
	index := I(len(s.values))
	var value V
	s.values = append(s.values, value)
	return index, nil
}

func (s *inMemoryStock[I, V]) Get(index I) (V, error) {
	var res V
	if index >= I(len(s.values)) || index < 0 {
		return res, nil
	}
	return s.values[index], nil
}

func (s *inMemoryStock[I, V]) Set(index I, value V) error {
	if index >= I(len(s.values)) || index < 0 {
		return fmt.Errorf("index out of range, got %d, range [0,%d)", index, len(s.values))
	}
	s.values[index] = value
	return nil
}

func (s *inMemoryStock[I, V]) Size() I {
	return I(len(s.values))
}

func (s *inMemoryStock[I, V]) GetMemoryFootprint() *common.MemoryFootprint {
	var value V
	res := common.NewMemoryFootprint(unsafe.Sizeof(*s))
	res.AddChild("values", common.NewMemoryFootprint(unsafe.Sizeof(value)*uintptr(cap(s.values))))
	return res
}

func (s *inMemoryStock[I, V]) Flush() error {
	if s.directory == "" {
		return nil
	}
	return s.writeTo(s.directory)
}

func (s *inMemoryStock[I, V]) writeTo(dir string) (err error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	// Values are written first such that a crash never leaves a meta file
	// announcing more values than available.
	f, err := os.Create(filepath.Join(dir, "values.dat"))
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	writer := bufio.NewWriter(f)
	buffer := make([]byte, s.encoder.GetEncodedSize())
	for i := range s.values {
		if err := s.encoder.Store(buffer, &s.values[i]); err != nil {
			return err
		}
		if _, err := writer.Write(buffer); err != nil {
			return err
		}
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	data, err := json.Marshal(metadata{
		Version:         dataFormatVersion,
		IndexTypeSize:   stock.GetIndexSize[I](),
		ValueTypeSize:   s.encoder.GetEncodedSize(),
		ValueListLength: len(s.values),
	})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "meta.json"), data, 0600)
}

func (s *inMemoryStock[I, V]) Close() error {
	return s.Flush()
}

const dataFormatVersion = 1

// metadata is the helper type to read and write metadata from/to the disk.
type metadata struct {
	Version         int
	IndexTypeSize   int
	ValueTypeSize   int
	ValueListLength int
}

func (m *metadata) check(indexSize, valueSize int) error {
	if m.Version != dataFormatVersion {
		return fmt.Errorf("invalid file format version, got %d, wanted %d", m.Version, dataFormatVersion)
	}
	if m.IndexTypeSize != indexSize {
		return fmt.Errorf("invalid index type encoding, expected %d byte, found %d", indexSize, m.IndexTypeSize)
	}
	if m.ValueTypeSize != valueSize {
		return fmt.Errorf("invalid value type encoding, expected %d byte, found %d", valueSize, m.ValueTypeSize)
	}
	return nil
}
