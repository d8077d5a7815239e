// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package stock

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"testing"
)

type IntEncoder struct{}

func (IntEncoder) GetEncodedSize() int {
	return 4
}

func (IntEncoder) Load(src []byte, value *int) error {
	*value = int(binary.BigEndian.Uint32(src))
	return nil
}

func (IntEncoder) Store(trg []byte, value *int) error {
	binary.BigEndian.PutUint32(trg, uint32(*value))
	return nil
}

type NamedStockFactory struct {
	ImplementationName string
	Open               func(t *testing.T, directory string) (Stock[int, int], error)
}

// RunStockTests runs a set of black-box unit test against a generic Stock
// implementation defined by the given factory. It is intended to be used
// in implementation specific unit test packages to cover basic compliance
// properties as imposed by the Stock interface.
func RunStockTests(t *testing.T, factory NamedStockFactory) {
	wrap := func(test func(*testing.T, NamedStockFactory)) func(*testing.T) {
		return func(t *testing.T) {
			t.Parallel()
			test(t, factory)
		}
	}
	t.Run("NewCreatesFreshIndexValues", wrap(testNewCreatesFreshIndexValues))
	t.Run("IndexesAreAllocatedInOrder", wrap(testIndexesAreAllocatedInOrder))
	t.Run("NewElementsAreZero", wrap(testNewElementsAreZero))
	t.Run("LookUpsRetrieveTheSameValue", wrap(testLookUpsRetrieveTheSameValue))
	t.Run("LookUpsCanRunConcurrently", wrap(testLookUpsCanRunConcurrently))
	t.Run("UnallocatedIndexesAreZero", wrap(testUnallocatedIndexesAreZero))
	t.Run("SetOfUnallocatedIndexFails", wrap(testSetOfUnallocatedIndexFails))
	t.Run("LargeNumberOfElements", wrap(testLargeNumberOfElements))
	t.Run("ProvidesMemoryFootprint", wrap(testProvidesMemoryFootprint))
	t.Run("CreatesMissingDirectories", wrap(testCreatesMissingDirectories))
	t.Run("CanBeFlushed", wrap(testCanBeFlushed))
	t.Run("CanBeClosed", wrap(testCanBeClosed))
	t.Run("CanBeClosedAndReopened", wrap(testCanBeClosedAndReopened))
}

func testNewCreatesFreshIndexValues(t *testing.T, factory NamedStockFactory) {
	stock, err := factory.Open(t, t.TempDir())
	if err != nil {
		t.Fatalf("failed to create empty stock: %v", err)
	}
	defer stock.Close()
	index1, err := stock.New()
	if err != nil {
		t.Fatalf("failed to create new element: %v", err)
	}

	index2, err := stock.New()
	if err != nil {
		t.Fatalf("failed to create new element: %v", err)
	}
	if index1 == index2 {
		t.Errorf("Expected different index values, got %v and %v", index1, index2)
	}
}

func testIndexesAreAllocatedInOrder(t *testing.T, factory NamedStockFactory) {
	stock, err := factory.Open(t, t.TempDir())
	if err != nil {
		t.Fatalf("failed to create empty stock: %v", err)
	}
	defer stock.Close()
	for i := 0; i < 10; i++ {
		if got := stock.Size(); got != i {
			t.Errorf("unexpected size, wanted %d, got %d", i, got)
		}
		index, err := stock.New()
		if err != nil {
			t.Fatalf("failed to create new element: %v", err)
		}
		if index != i {
			t.Errorf("unexpected index, wanted %d, got %d", i, index)
		}
	}
}

func testNewElementsAreZero(t *testing.T, factory NamedStockFactory) {
	stock, err := factory.Open(t, t.TempDir())
	if err != nil {
		t.Fatalf("failed to create empty stock: %v", err)
	}
	defer stock.Close()
	index, err := stock.New()
	if err != nil {
		t.Fatalf("failed to create new element: %v", err)
	}
	got, err := stock.Get(index)
	if err != nil {
		t.Fatalf("failed to read new element: %v", err)
	}
	if got != 0 {
		t.Errorf("new element is not zero, got %d", got)
	}
}

func testLookUpsRetrieveTheSameValue(t *testing.T, factory NamedStockFactory) {
	stock, err := factory.Open(t, t.TempDir())
	if err != nil {
		t.Fatalf("failed to create empty stock: %v", err)
	}
	defer stock.Close()
	index1, err := stock.New()
	if err != nil {
		t.Fatalf("failed to create new element: %v", err)
	}
	if err := stock.Set(index1, 1); err != nil {
		t.Fatalf("failed to update value for index 1: %v", err)
	}

	index2, err := stock.New()
	if err != nil {
		t.Fatalf("failed to create new element: %v", err)
	}
	if err := stock.Set(index2, 2); err != nil {
		t.Fatalf("failed to update value for index 2: %v", err)
	}

	got, err := stock.Get(index1)
	if err != nil {
		t.Errorf("failed to obtain value for index %d: got %v, with err %v", index1, got, err)
	}
	if got != 1 {
		t.Errorf("failed to obtain value for index %d: got %d, wanted %d", index1, got, 1)
	}

	got, err = stock.Get(index2)
	if err != nil {
		t.Errorf("failed to obtain value for index %d: got %v, with err %v", index2, got, err)
	}
	if got != 2 {
		t.Errorf("failed to obtain value for index %d: got %d, wanted %d", index2, got, 2)
	}
}

func testLookUpsCanRunConcurrently(t *testing.T, factory NamedStockFactory) {
	const N = 100
	const readers = 8
	stock, err := factory.Open(t, t.TempDir())
	if err != nil {
		t.Fatalf("failed to create empty stock: %v", err)
	}
	defer stock.Close()
	for i := 0; i < N; i++ {
		index, err := stock.New()
		if err != nil {
			t.Fatalf("failed to create new element: %v", err)
		}
		if err := stock.Set(index, i+1); err != nil {
			t.Fatalf("failed to update value for index %d: %v", index, err)
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, readers)
	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			for i := 0; i < N; i++ {
				index := (i + offset) % N
				if got, err := stock.Get(index); err != nil || got != index+1 {
					errs <- fmt.Errorf("unexpected value for index %d: %d, %v", index, got, err)
					return
				}
				if size := stock.Size(); size != N {
					errs <- fmt.Errorf("unexpected size %d", size)
					return
				}
			}
		}(r * 13)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func testUnallocatedIndexesAreZero(t *testing.T, factory NamedStockFactory) {
	stock, err := factory.Open(t, t.TempDir())
	if err != nil {
		t.Fatalf("failed to create empty stock: %v", err)
	}
	defer stock.Close()
	for _, index := range []int{0, 1, 100} {
		got, err := stock.Get(index)
		if err != nil {
			t.Fatalf("failed to read unallocated index %d: %v", index, err)
		}
		if got != 0 {
			t.Errorf("unexpected value for unallocated index %d: %d", index, got)
		}
	}
}

func testSetOfUnallocatedIndexFails(t *testing.T, factory NamedStockFactory) {
	stock, err := factory.Open(t, t.TempDir())
	if err != nil {
		t.Fatalf("failed to create empty stock: %v", err)
	}
	defer stock.Close()
	if err := stock.Set(0, 12); err == nil {
		t.Errorf("setting an unallocated index should fail")
	}
	if _, err := stock.New(); err != nil {
		t.Fatalf("failed to create new element: %v", err)
	}
	if err := stock.Set(1, 12); err == nil {
		t.Errorf("setting an unallocated index should fail")
	}
}

func testLargeNumberOfElements(t *testing.T, factory NamedStockFactory) {
	const N = 100_000
	stock, err := factory.Open(t, t.TempDir())
	if err != nil {
		t.Fatalf("failed to create empty stock: %v", err)
	}
	defer stock.Close()
	indexes := map[int]int{}
	for i := 0; i < N; i++ {
		index, err := stock.New()
		if err != nil {
			t.Fatalf("failed to create new entry: %v", err)
		}
		indexes[i] = index
		if err := stock.Set(index, i); err != nil {
			t.Fatalf("failed to update value of element with index %d: %v", index, err)
		}
	}

	for i := 0; i < N; i++ {
		got, err := stock.Get(indexes[i])
		if err != nil {
			t.Fatalf("failed to locate element: %v", err)
		}
		if got != i {
			t.Errorf("invalid value mapped to index %d: wanted %d, got %d", indexes[i], i, got)
		}
	}
}

func testProvidesMemoryFootprint(t *testing.T, factory NamedStockFactory) {
	stock, err := factory.Open(t, t.TempDir())
	if err != nil {
		t.Fatalf("failed to create empty stock: %v", err)
	}
	defer stock.Close()
	if _, err := stock.New(); err != nil {
		t.Fatalf("failed to insert single element into empty stock: %v", err)
	}
	footprint := stock.GetMemoryFootprint()
	if footprint == nil {
		t.Fatalf("implementation does not provide memory footprint data")
	}
	if footprint.Total() <= 0 {
		t.Fatalf("implementations claims zero memory footprint")
	}
}

func testCreatesMissingDirectories(t *testing.T, factory NamedStockFactory) {
	directory := t.TempDir() + "/some/missing/directory"
	stock, err := factory.Open(t, directory)
	if err != nil {
		t.Fatalf("failed to create empty stock: %v", err)
	}
	defer stock.Close()
	if _, err := os.Stat(directory); err != nil {
		t.Errorf("failed to create output directory: %v", err)
	}
}

func testCanBeFlushed(t *testing.T, factory NamedStockFactory) {
	stock, err := factory.Open(t, t.TempDir())
	if err != nil {
		t.Fatalf("failed to create empty stock: %v", err)
	}
	defer stock.Close()
	if err := stock.Flush(); err != nil {
		t.Fatalf("failed to flush empty stock: %v", err)
	}
	if _, err := stock.New(); err != nil {
		t.Fatalf("failed to insert single element into empty stock: %v", err)
	}
	if err := stock.Flush(); err != nil {
		t.Fatalf("failed to flush non-empty stock: %v", err)
	}
}

func testCanBeClosed(t *testing.T, factory NamedStockFactory) {
	stock, err := factory.Open(t, t.TempDir())
	if err != nil {
		t.Fatalf("failed to create empty stock: %v", err)
	}
	if _, err := stock.New(); err != nil {
		t.Fatalf("failed to insert single element into empty stock: %v", err)
	}
	if err := stock.Close(); err != nil {
		t.Fatalf("failed to close non-empty stock: %v", err)
	}
}

func testCanBeClosedAndReopened(t *testing.T, factory NamedStockFactory) {
	dir := t.TempDir()
	stock, err := factory.Open(t, dir)
	if err != nil {
		t.Fatalf("failed to create empty stock: %v", err)
	}

	// The first element is an element with a value.
	key1, err := stock.New()
	if err != nil {
		t.Fatalf("failed to create new element in stock: %v", err)
	}
	if err := stock.Set(key1, 123); err != nil {
		t.Fatalf("failed to update value: %v", err)
	}

	// The second element is a default-value.
	key2, err := stock.New()
	if err != nil {
		t.Fatalf("failed to create new element in stock: %v", err)
	}

	if err := stock.Close(); err != nil {
		t.Fatalf("failed to close non-empty stock: %v", err)
	}

	// After re-opening the stock all the information should be present.
	stock, err = factory.Open(t, dir)
	if err != nil {
		t.Fatalf("failed to reopen stock: %v", err)
	}
	defer stock.Close()

	if got, want := stock.Size(), 2; got != want {
		t.Errorf("unexpected size of reopened stock, wanted %d, got %d", want, got)
	}

	got, err := stock.Get(key1)
	if err != nil {
		t.Fatalf("failed to read value from reopened stock: %v", err)
	}
	if got != 123 {
		t.Fatalf("invalid value read from reopened stock: got %v, wanted 123", got)
	}

	got, err = stock.Get(key2)
	if err != nil {
		t.Fatalf("failed to read value from reopened stock: %v", err)
	}
	if got != 0 {
		t.Fatalf("invalid value read from reopened stock: got %v, wanted 0", got)
	}

	keyX, err := stock.New()
	if err != nil {
		t.Fatalf("failed to create new entry in re-opened stock: %v", err)
	}
	if keyX != 2 {
		t.Errorf("indexes must not be reused, wanted 2, got %d", keyX)
	}
}
