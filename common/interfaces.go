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

import "io"

// Flusher is implemented by components buffering modifications in memory.
// Flush writes those modifications to their persistent storage.
type Flusher interface {
	Flush() error
}

// FlushAndCloser is implemented by components owning persistent resources,
// such as node stocks, archives and trees. Close implies Flush.
type FlushAndCloser interface {
	Flusher
	io.Closer
}

// MemoryFootprintProvider is implemented by components able to break down
// their memory usage.
type MemoryFootprintProvider interface {
	GetMemoryFootprint() *MemoryFootprint
}
