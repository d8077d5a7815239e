// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package synced

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Fantom-foundation/go-smt/backend/stock"
	"github.com/Fantom-foundation/go-smt/backend/stock/file"
	"github.com/Fantom-foundation/go-smt/backend/stock/ldb"
	"github.com/Fantom-foundation/go-smt/backend/stock/memory"
	"go.uber.org/mock/gomock"
)

var configs = []stock.NamedStockFactory{
	{
		ImplementationName: "syncedMemory",
		Open:               openSyncedMemoryStock,
	},
	{
		ImplementationName: "syncedFile",
		Open:               openSyncedFileStock,
	},
	{
		ImplementationName: "syncedLdb",
		Open:               openSyncedLdbStock,
	},
}

func TestSyncedStock(t *testing.T) {
	for _, config := range configs {
		config := config
		t.Run(config.ImplementationName, func(t *testing.T) {
			stock.RunStockTests(t, config)
			t.Run("CanBeAccessedConcurrently", func(t *testing.T) {
				testCanBeAccessedConcurrently(t, config)
			})
		})
	}
}

func openSyncedMemoryStock(t *testing.T, directory string) (stock.Stock[int, int], error) {
	nested, err := memory.OpenStock[int, int](stock.IntEncoder{}, directory)
	if err != nil {
		return nil, err
	}
	return Sync(nested), nil
}

func openSyncedFileStock(t *testing.T, directory string) (stock.Stock[int, int], error) {
	nested, err := file.OpenStock[int, int](stock.IntEncoder{}, directory)
	if err != nil {
		return nil, err
	}
	return Sync(nested), nil
}

func openSyncedLdbStock(t *testing.T, directory string) (stock.Stock[int, int], error) {
	nested, err := ldb.OpenStock[int, int](stock.IntEncoder{}, directory)
	if err != nil {
		return nil, err
	}
	return Sync(nested), nil
}

func TestSyncedStock_WrappingIsIdempotent(t *testing.T) {
	nested := memory.CreateStock[int, int]()
	once := Sync(nested)
	if twice := Sync(once); twice != once {
		t.Errorf("synced stock should not be wrapped again")
	}
}

func TestSyncedStock_CallsAreForwarded(t *testing.T) {
	ctrl := gomock.NewController(t)
	nested := stock.NewMockStock[int, int](ctrl)
	injectedErr := fmt.Errorf("injected error")
	gomock.InOrder(
		nested.EXPECT().New().Return(7, nil),
		nested.EXPECT().Set(7, 12).Return(injectedErr),
		nested.EXPECT().Get(7).Return(0, nil),
		nested.EXPECT().Size().Return(8),
		nested.EXPECT().Flush().Return(nil),
		nested.EXPECT().Close().Return(nil),
	)

	s := Sync[int, int](nested)
	if id, err := s.New(); id != 7 || err != nil {
		t.Errorf("unexpected result of New: %d, %v", id, err)
	}
	if err := s.Set(7, 12); err != injectedErr {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := s.Get(7); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if got := s.Size(); got != 8 {
		t.Errorf("unexpected size: %d", got)
	}
	if err := s.Flush(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSyncedStock_LookupsRunInParallel(t *testing.T) {
	const N = 4
	ctrl := gomock.NewController(t)
	nested := stock.NewMockStock[int, int](ctrl)

	// Each lookup only completes once all lookups have started.
	var started sync.WaitGroup
	started.Add(N)
	nested.EXPECT().Get(gomock.Any()).DoAndReturn(func(index int) (int, error) {
		started.Done()
		started.Wait()
		return index, nil
	}).Times(N)

	s := Sync[int, int](nested)
	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for i := 0; i < N; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				s.Get(i)
			}(i)
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("concurrent lookups have been serialized")
	}
}

func TestSyncedStock_MemoryFootprintCoversNestedStock(t *testing.T) {
	nested := memory.CreateStock[int, int]()
	s := Sync(nested)
	footprint := s.GetMemoryFootprint()
	if footprint.GetChild("nested") == nil {
		t.Errorf("missing footprint of nested stock")
	}
	if got, want := footprint.Total(), nested.GetMemoryFootprint().Total(); got != want {
		t.Errorf("unexpected footprint, wanted %d, got %d", want, got)
	}
}

func testCanBeAccessedConcurrently(t *testing.T, factory stock.NamedStockFactory) {
	const N = 10
	stock, err := factory.Open(t, t.TempDir())
	if err != nil {
		t.Fatalf("failed to create empty stock: %v", err)
	}
	defer stock.Close()

	var wg sync.WaitGroup
	var errors [N]error
	for i := 0; i < N; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := stock.New()
			if err != nil {
				errors[i] = fmt.Errorf("unable to create new item: %v", err)
				return
			}
			if err := stock.Set(id, i); err != nil {
				errors[i] = fmt.Errorf("failed to update item: %v", err)
				return
			}
			if value, err := stock.Get(id); err != nil || value != i {
				errors[i] = fmt.Errorf("failed to load item: %v, %d != %d", err, value, i)
				return
			}
		}()
	}

	wg.Wait()

	for i, err := range errors {
		if err != nil {
			t.Errorf("error in goroutine %d: %v", i, err)
		}
	}
}
