// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package file

import (
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

//go:generate mockgen -source file.go -destination file_mocks.go -package file

const (
	fileNameMetadata = "meta.json"
	fileNameValues   = "values.dat"
)

// seekableFile is the subset of *os.File operations required by the stock.
type seekableFile interface {
	io.ReaderAt
	io.WriterAt
	Sync() error
	Close() error
}

// fileStock keeps all values in a single file of fixed-size records. Only the
// number of allocated slots is kept in memory. Get may be called concurrently,
// all other operations require exclusive access.
type fileStock[I stock.Index, V any] struct {
	directory     string
	encoder       stock.ValueEncoder[V]
	values        seekableFile
	numValueSlots I
	buffer        []byte
}

// OpenStock opens a file based stock stored in the given directory, creating
// the directory and an empty stock if needed.
func OpenStock[I stock.Index, V any](encoder stock.ValueEncoder[V], directory string) (stock.Stock[I, V], error) {
	return openStock[I, V](encoder, directory)
}

func openStock[I stock.Index, V any](encoder stock.ValueEncoder[V], directory string) (*fileStock[I, V], error) {
	if err := os.MkdirAll(directory, 0700); err != nil {
		return nil, err
	}

	metafile := filepath.Join(directory, fileNameMetadata)
	valuefile := filepath.Join(directory, fileNameValues)
	numValueSlots := I(0)

	// If there is a meta-file in the directory, check its content.
	if _, err := os.Stat(metafile); err == nil {
		meta, err := verifyStockFiles[I](encoder, metafile, valuefile)
		if err != nil {
			return nil, err
		}
		numValueSlots = I(meta.ValueListLength)
	}

	values, err := os.OpenFile(valuefile, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, err
	}

	return &fileStock[I, V]{
		encoder:       encoder,
		directory:     directory,
		values:        values,
		numValueSlots: numValueSlots,
		buffer:        make([]byte, encoder.GetEncodedSize()),
	}, nil
}

// VerifyStock checks the consistency of the stock files in the given
// directory without opening the stock.
func VerifyStock[I stock.Index, V any](directory string, encoder stock.ValueEncoder[V]) error {
	_, err := verifyStockFiles[I](encoder, filepath.Join(directory, fileNameMetadata), filepath.Join(directory, fileNameValues))
	return err
}

func verifyStockFiles[I stock.Index, V any](encoder stock.ValueEncoder[V], metafile, valuefile string) (metadata, error) {
	var meta metadata
	data, err := os.ReadFile(metafile)
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, err
	}

	if meta.Version != dataFormatVersion {
		return meta, fmt.Errorf("invalid file format version, got %d, wanted %d", meta.Version, dataFormatVersion)
	}
	indexSize := stock.GetIndexSize[I]()
	if meta.IndexTypeSize != indexSize {
		return meta, fmt.Errorf("invalid index type encoding, expected %d byte, found %d", indexSize, meta.IndexTypeSize)
	}
	valueSize := encoder.GetEncodedSize()
	if meta.ValueTypeSize != valueSize {
		return meta, fmt.Errorf("invalid value type encoding, expected %d byte, found %d", valueSize, meta.ValueTypeSize)
	}

	stats, err := os.Stat(valuefile)
	if err != nil {
		return meta, err
	}
	if got, want := stats.Size(), int64(meta.ValueListLength)*int64(valueSize); got != want {
		return meta, fmt.Errorf("invalid value file size, got %d, wanted %d", got, want)
	}
	return meta, nil
}

func (s *fileStock[I, V]) New() (I, error) {
	index := s.numValueSlots

	// Add zero bytes to the end of the file.
	zeros := make([]byte, s.encoder.GetEncodedSize())
	if _, err := s.values.WriteAt(zeros, s.offset(index)); err != nil {
		return 0, err
	}
	s.numValueSlots++
	return index, nil
}

func (s *fileStock[I, V]) Get(index I) (V, error) {
	var res V
	if index >= s.numValueSlots || index < 0 {
		return res, nil
	}
	buffer := make([]byte, s.encoder.GetEncodedSize())
	if _, err := s.values.ReadAt(buffer, s.offset(index)); err != nil {
		return res, err
	}
	if err := s.encoder.Load(buffer, &res); err != nil {
		return res, err
	}
	return res, nil
}

func (s *fileStock[I, V]) Set(index I, value V) error {
	if index >= s.numValueSlots || index < 0 {
		return fmt.Errorf("index out of range, got %d, range [0,%d)", index, s.numValueSlots)
	}
	if err := s.encoder.Store(s.buffer, &value); err != nil {
		return err
	}
	n, err := s.values.WriteAt(s.buffer, s.offset(index))
	if err != nil {
		return err
	}
	if n != len(s.buffer) {
		return fmt.Errorf("failed to write sufficient bytes to file, wanted %d, got %d", len(s.buffer), n)
	}
	return nil
}

func (s *fileStock[I, V]) Size() I {
	return s.numValueSlots
}

func (s *fileStock[I, V]) offset(index I) int64 {
	return int64(s.encoder.GetEncodedSize()) * int64(index)
}

func (s *fileStock[I, V]) GetMemoryFootprint() *common.MemoryFootprint {
	res := common.NewMemoryFootprint(unsafe.Sizeof(*s))
	res.AddChild("buffer", common.NewMemoryFootprint(uintptr(cap(s.buffer))))
	return res
}

func (s *fileStock[I, V]) Flush() error {
	metadata, err := json.Marshal(metadata{
		Version:         dataFormatVersion,
		IndexTypeSize:   stock.GetIndexSize[I](),
		ValueTypeSize:   s.encoder.GetEncodedSize(),
		ValueListLength: int(s.numValueSlots),
	})
	if err != nil {
		return err
	}

	// Values are synced before the meta data is updated to never announce
	// more values than present in the value file.
	if err := s.values.Sync(); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.directory, fileNameMetadata), metadata, 0600)
}

func (s *fileStock[I, V]) Close() error {
	// Flush is executed before the closing of the file since
	// in Go the evaluation order of arguments is fixed.
	// see: https://go.dev/ref/spec#Order_of_evaluation
	return errors.Join(
		s.Flush(),
		s.values.Close(),
	)
}

const dataFormatVersion = 1

// metadata is the helper type to read and write metadata from/to the disk.
type metadata struct {
	Version         int
	IndexTypeSize   int
	ValueTypeSize   int
	ValueListLength int
}
