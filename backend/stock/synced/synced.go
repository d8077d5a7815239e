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
	"sync"

	"github.com/Fantom-foundation/go-smt/backend/stock"
	"github.com/Fantom-foundation/go-smt/common"
)

// syncedStock admits any number of concurrent readers or a single writer.
type syncedStock[I stock.Index, V any] struct {
	mu     sync.RWMutex
	nested stock.Stock[I, V]
}

// Sync wraps the given stock such that it can be shared among goroutines.
// Lookups run in parallel, while operations modifying the stock get exclusive
// access. Already synchronized stocks are returned unchanged.
func Sync[I stock.Index, V any](nested stock.Stock[I, V]) stock.Stock[I, V] {
	if res, ok := nested.(*syncedStock[I, V]); ok {
		return res
	}
	return &syncedStock[I, V]{nested: nested}
}

func (s *syncedStock[I, V]) Get(index I) (V, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nested.Get(index)
}

func (s *syncedStock[I, V]) Size() I {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nested.Size()
}

func (s *syncedStock[I, V]) New() (I, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nested.New()
}

func (s *syncedStock[I, V]) Set(index I, value V) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nested.Set(index, value)
}

func (s *syncedStock[I, V]) GetMemoryFootprint() *common.MemoryFootprint {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := common.NewMemoryFootprint(0)
	res.AddChild("nested", s.nested.GetMemoryFootprint())
	return res
}

func (s *syncedStock[I, V]) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nested.Flush()
}

func (s *syncedStock[I, V]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nested.Close()
}
