// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package cache

import (
	"errors"
	"testing"

	"github.com/Fantom-foundation/go-smt/backend/stock"
	"github.com/Fantom-foundation/go-smt/backend/stock/file"
	"github.com/Fantom-foundation/go-smt/backend/stock/ldb"
	"github.com/Fantom-foundation/go-smt/backend/stock/memory"
	"go.uber.org/mock/gomock"
)

func TestCachedStock(t *testing.T) {
	configs := []stock.NamedStockFactory{
		{ImplementationName: "cachedMemory", Open: openCached(memory.OpenStock[int, int])},
		{ImplementationName: "cachedFile", Open: openCached(file.OpenStock[int, int])},
		{ImplementationName: "cachedLdb", Open: openCached(ldb.OpenStock[int, int])},
	}
	for _, config := range configs {
		t.Run(config.ImplementationName, func(t *testing.T) {
			stock.RunStockTests(t, config)
		})
	}
}

func openCached(open func(stock.ValueEncoder[int], string) (stock.Stock[int, int], error)) func(*testing.T, string) (stock.Stock[int, int], error) {
	return func(t *testing.T, directory string) (stock.Stock[int, int], error) {
		nested, err := open(stock.IntEncoder{}, directory)
		if err != nil {
			return nil, err
		}
		return CreateCachedStock(nested, 100)
	}
}

func TestCachedStock_InvalidCapacityIsRejected(t *testing.T) {
	if _, err := CreateCachedStock(memory.CreateStock[int, int](), 0); err == nil {
		t.Errorf("creating a cache without capacity should fail")
	}
}

func TestCachedStock_ValuesAreOnlyFetchedOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	nested := stock.NewMockStock[int, int](ctrl)
	cached, err := CreateCachedStock[int, int](nested, 10)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	nested.EXPECT().Size().Return(5).AnyTimes()
	nested.EXPECT().Get(3).Return(12, nil)
	for i := 0; i < 3; i++ {
		if got, err := cached.Get(3); err != nil || got != 12 {
			t.Errorf("unexpected value: %d, %v", got, err)
		}
	}
}

func TestCachedStock_UnallocatedValuesAreNotCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	nested := stock.NewMockStock[int, int](ctrl)
	cached, err := CreateCachedStock[int, int](nested, 10)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	nested.EXPECT().Size().Return(5).AnyTimes()
	nested.EXPECT().Get(7).Return(0, nil).Times(2)
	for i := 0; i < 2; i++ {
		if got, err := cached.Get(7); err != nil || got != 0 {
			t.Errorf("unexpected value: %d, %v", got, err)
		}
	}
}

func TestCachedStock_FailedWritesDoNotUpdateCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	nested := stock.NewMockStock[int, int](ctrl)
	cached, err := CreateCachedStock[int, int](nested, 10)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	injectedError := errors.New("injected error")
	nested.EXPECT().Size().Return(5).AnyTimes()
	nested.EXPECT().Set(2, 7).Return(nil)
	nested.EXPECT().Set(2, 8).Return(injectedError)

	if err := cached.Set(2, 7); err != nil {
		t.Fatalf("failed to set value: %v", err)
	}
	if err := cached.Set(2, 8); !errors.Is(err, injectedError) {
		t.Errorf("unexpected error: %v", err)
	}
	if got, err := cached.Get(2); err != nil || got != 7 {
		t.Errorf("unexpected value: %d, %v", got, err)
	}
}

func TestCachedStock_CloseIsForwarded(t *testing.T) {
	ctrl := gomock.NewController(t)
	nested := stock.NewMockStock[int, int](ctrl)
	cached, err := CreateCachedStock[int, int](nested, 10)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	gomock.InOrder(
		nested.EXPECT().Flush().Return(nil),
		nested.EXPECT().Close().Return(nil),
	)
	if err := cached.Flush(); err != nil {
		t.Errorf("failed to flush: %v", err)
	}
	if err := cached.Close(); err != nil {
		t.Errorf("failed to close: %v", err)
	}
}
