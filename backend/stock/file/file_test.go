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
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/Fantom-foundation/go-smt/backend/stock"
	"go.uber.org/mock/gomock"
)

func TestFileStock(t *testing.T) {
	stock.RunStockTests(t, stock.NamedStockFactory{
		ImplementationName: "file",
		Open:               openFileStock,
	})
}

func openFileStock(t *testing.T, directory string) (stock.Stock[int, int], error) {
	return OpenStock[int, int](stock.IntEncoder{}, directory)
}

func openInitFileStock(directory string, items int) (*fileStock[int, int], error) {
	s, err := openStock[int, int](stock.IntEncoder{}, directory)
	if err != nil {
		return nil, err
	}
	for i := 0; i < items; i++ {
		id, err := s.New()
		if err != nil {
			return nil, err
		}
		if err := s.Set(id, i); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func TestFile_MemoryReporting(t *testing.T) {
	stock, err := openStock[int, int](stock.IntEncoder{}, t.TempDir())
	if err != nil {
		t.Fatalf("failed to open empty stock: %v", err)
	}
	defer stock.Close()
	size := stock.GetMemoryFootprint()
	if size == nil {
		t.Errorf("invalid memory footprint reported: %v", size)
	}

	// adding elements is not affecting the size
	if _, err := stock.New(); err != nil {
		t.Errorf("failed to add new element")
	}

	newSize := stock.GetMemoryFootprint()
	if newSize == nil {
		t.Errorf("invalid memory footprint reported: %v", newSize)
	}
	if size.Total() != newSize.Total() {
		t.Errorf("size of file based stock was affected by new element")
	}
}

func TestFile_Open_MissingFile(t *testing.T) {
	directory := t.TempDir()
	s, err := openInitFileStock(directory, 10)
	if err != nil {
		t.Fatalf("cannot init stock: %s", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("cannot close stock: %s", err)
	}
	if err := os.Remove(filepath.Join(directory, fileNameValues)); err != nil {
		t.Fatalf("cannot delete file: %s", err)
	}
	if _, err := openStock[int, int](stock.IntEncoder{}, directory); err == nil {
		t.Errorf("opening stock should fail")
	}
}

func TestFile_Open_CorruptedValueFile(t *testing.T) {
	directory := t.TempDir()
	s, err := openInitFileStock(directory, 10)
	if err != nil {
		t.Fatalf("cannot init stock: %s", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("cannot close stock: %s", err)
	}

	// corrupt the file by adding an unrelated string
	file, err := os.OpenFile(filepath.Join(directory, fileNameValues), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("cannot open file: %s", err)
	}
	if _, err = file.WriteString("Hello, World!"); err != nil {
		t.Fatalf("cannot write to file: %s", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("cannot close file: %s", err)
	}

	if err := VerifyStock[int, int](directory, stock.IntEncoder{}); err == nil {
		t.Errorf("verification should fail")
	}
	if _, err := openStock[int, int](stock.IntEncoder{}, directory); err == nil {
		t.Errorf("opening stock should fail")
	}
}

func TestFile_Open_CorruptedMetaFile(t *testing.T) {
	directory := t.TempDir()
	if err := os.WriteFile(filepath.Join(directory, fileNameMetadata), []byte("{"), 0600); err != nil {
		t.Fatalf("cannot write file: %v", err)
	}
	if _, err := openStock[int, int](stock.IntEncoder{}, directory); err == nil {
		t.Errorf("opening stock should fail")
	}
}

func TestFile_VerifyStock_AcceptsValidStock(t *testing.T) {
	directory := t.TempDir()
	s, err := openInitFileStock(directory, 10)
	if err != nil {
		t.Fatalf("cannot init stock: %s", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("cannot close stock: %s", err)
	}
	if err := VerifyStock[int, int](directory, stock.IntEncoder{}); err != nil {
		t.Errorf("unexpected verification error: %v", err)
	}
}

func TestFile_New_FailWriteFile(t *testing.T) {
	s, err := openInitFileStock(t.TempDir(), 2)
	if err != nil {
		t.Fatalf("cannot init stock: %s", err)
	}
	ctrl := gomock.NewController(t)
	values := NewMockseekableFile(ctrl)
	injectedErr := fmt.Errorf("injected error")
	values.EXPECT().WriteAt(gomock.Any(), gomock.Any()).Return(0, injectedErr)
	s.values = values

	if _, err := s.New(); err != injectedErr {
		t.Errorf("unexpected error, wanted %v, got %v", injectedErr, err)
	}
	if got := s.Size(); got != 2 {
		t.Errorf("failed allocation must not change the size, got %d", got)
	}
}

func TestFile_Set_FailWriteFile(t *testing.T) {
	s, err := openInitFileStock(t.TempDir(), 2)
	if err != nil {
		t.Fatalf("cannot init stock: %s", err)
	}
	ctrl := gomock.NewController(t)
	values := NewMockseekableFile(ctrl)
	values.EXPECT().WriteAt(gomock.Any(), gomock.Any()).Return(0, fmt.Errorf("injected error"))
	s.values = values

	if err := s.Set(1, 100); err == nil {
		t.Errorf("setting value should fail")
	}
}

func TestFile_Set_ShortWrite(t *testing.T) {
	s, err := openInitFileStock(t.TempDir(), 2)
	if err != nil {
		t.Fatalf("cannot init stock: %s", err)
	}
	ctrl := gomock.NewController(t)
	values := NewMockseekableFile(ctrl)
	values.EXPECT().WriteAt(gomock.Any(), gomock.Any()).Return(1, nil)
	s.values = values

	if err := s.Set(1, 100); err == nil {
		t.Errorf("setting value should fail")
	}
}

func TestFile_Get_FailReadFile(t *testing.T) {
	directory := t.TempDir()
	s, err := openInitFileStock(directory, 10)
	if err != nil {
		t.Fatalf("cannot init stock: %s", err)
	}
	defer s.Close()
	if err := os.Truncate(filepath.Join(directory, fileNameValues), 0); err != nil {
		t.Fatalf("failed to truncate file %v", err)
	}
	if _, err := s.Get(5); err == nil {
		t.Errorf("getting value should fail")
	}
}

func TestFile_Flush_FailSync(t *testing.T) {
	s, err := openInitFileStock(t.TempDir(), 2)
	if err != nil {
		t.Fatalf("cannot init stock: %s", err)
	}
	ctrl := gomock.NewController(t)
	values := NewMockseekableFile(ctrl)
	injectedErr := fmt.Errorf("injected error")
	values.EXPECT().Sync().Return(injectedErr).Times(2)
	values.EXPECT().Close().Return(nil)
	s.values = values

	if err := s.Flush(); err != injectedErr {
		t.Errorf("unexpected error, wanted %v, got %v", injectedErr, err)
	}
	if err := s.Close(); err == nil {
		t.Errorf("closing should report the failed flush")
	}
}
