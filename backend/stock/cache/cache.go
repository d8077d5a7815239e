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
	"unsafe"

	"github.com/Fantom-foundation/go-smt/backend/stock"
	"github.com/Fantom-foundation/go-smt/common"
	lru "github.com/hashicorp/golang-lru/v2"
)

// cachedStock keeps recently accessed values of an underlying stock in an LRU
// cache. Updates are forwarded to the underlying stock before the cache is
// updated, such that failed writes leave no trace in the cache.
type cachedStock[I stock.Index, V any] struct {
	underlying stock.Stock[I, V]
	cache      *lru.Cache[I, V]
}

// CreateCachedStock wraps the given stock into a cache retaining up to the
// given number of values. The underlying stock is owned by the result.
func CreateCachedStock[I stock.Index, V any](underlying stock.Stock[I, V], capacity int) (stock.Stock[I, V], error) {
	cache, err := lru.New[I, V](capacity)
	if err != nil {
		return nil, err
	}
	return &cachedStock[I, V]{
		underlying: underlying,
		cache:      cache,
	}, nil
}

func (s *cachedStock[I, V]) New() (I, error) {
	return s.underlying.New()
}

func (s *cachedStock[I, V]) Get(index I) (V, error) {
	if value, found := s.cache.Get(index); found {
		return value, nil
	}
	value, err := s.underlying.Get(index)
	if err != nil {
		return value, err
	}
	if index < s.underlying.Size() {
		s.cache.Add(index, value)
	}
	return value, nil
}

func (s *cachedStock[I, V]) Set(index I, value V) error {
	if err := s.underlying.Set(index, value); err != nil {
		return err
	}
	s.cache.Add(index, value)
	return nil
}

func (s *cachedStock[I, V]) Size() I {
	return s.underlying.Size()
}

func (s *cachedStock[I, V]) GetMemoryFootprint() *common.MemoryFootprint {
	var index I
	var value V
	res := common.NewMemoryFootprint(unsafe.Sizeof(*s))
	res.AddChild("underlying", s.underlying.GetMemoryFootprint())
	res.AddChild("cache", common.NewMemoryFootprint(uintptr(s.cache.Len())*(unsafe.Sizeof(index)+unsafe.Sizeof(value))))
	return res
}

func (s *cachedStock[I, V]) Flush() error {
	return s.underlying.Flush()
}

func (s *cachedStock[I, V]) Close() error {
	s.cache.Purge()
	return s.underlying.Close()
}
