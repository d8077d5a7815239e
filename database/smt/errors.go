// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package smt

import "github.com/Fantom-foundation/go-smt/common"

const (
	ErrNotInitialized     = common.ConstError("tree is not initialized")
	ErrAlreadyInitialized = common.ConstError("tree is already initialized")
	ErrInvalidMaxDepth    = common.ConstError("invalid max depth")
	ErrDepthMustIncrease  = common.ConstError("max depth can only be increased")
	ErrTreeNotEmpty       = common.ConstError("tree is not empty")
	ErrKeyAlreadyExists   = common.ConstError("key already exists")
	ErrMaxDepthReached    = common.ConstError("max depth reached")
	ErrInvalidInput       = common.ConstError("key or value not supported by hashing algorithm")

	ErrDirtyDirectory  = common.ConstError("directory is marked dirty")
	ErrHashingMismatch = common.ConstError("hashing algorithm does not match stored tree")
	ErrNoArchive       = common.ConstError("tree has no archive")
	ErrVersionNotFound = common.ConstError("no such version")
	ErrCorruptedTree   = common.ConstError("tree is corrupted")
	ErrUnknownNodeType = common.ConstError("unknown node type")
	ErrUnknownHashing  = common.ConstError("unknown hashing algorithm")
	ErrNodeOutOfRange  = common.ConstError("node id out of range")
	ErrStockOutOfOrder = common.ConstError("node store returned unexpected index")
)
