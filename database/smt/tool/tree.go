// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"fmt"

	"github.com/Fantom-foundation/go-smt/common"
	"github.com/Fantom-foundation/go-smt/database/smt"
	"github.com/urfave/cli/v2"
)

// getDirectory fetches the tree directory from the first argument of commands
// expecting exactly the given number of arguments.
func getDirectory(context *cli.Context, args int) (string, error) {
	if context.Args().Len() != args {
		return "", fmt.Errorf("expected %d arguments, got %d", args, context.Args().Len())
	}
	return context.Args().Get(0), nil
}

// openTree opens the tree in the given directory using its stored
// configuration.
func openTree(directory string, ignoreDirty bool) (*smt.Tree, error) {
	info, found, err := smt.ReadTreeInfo(directory)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("directory %s does not contain a tree", directory)
	}
	config := info.Config
	config.IgnoreDirty = ignoreDirty
	config.NodeCacheSize = smt.DefaultConfig.NodeCacheSize
	return smt.OpenTree(directory, config)
}

// runOnTree opens the tree in the given directory, runs the given operation
// and closes the tree again.
func runOnTree(directory string, op func(*smt.Tree) error) (err error) {
	tree, err := openTree(directory, false)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := tree.Close(); closeErr != nil {
			err = fmt.Errorf("error closing tree: %w", closeErr)
		}
	}()
	return op(tree)
}

func parseKey(s string) (common.Key, error) {
	v, err := common.ParseUint256(s)
	if err != nil {
		return common.Key{}, fmt.Errorf("invalid key: %w", err)
	}
	return common.KeyFromUint256(v), nil
}

func parseValue(s string) (common.Value, error) {
	v, err := common.ParseUint256(s)
	if err != nil {
		return common.Value{}, fmt.Errorf("invalid value: %w", err)
	}
	return common.ValueFromUint256(v), nil
}
