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

	"github.com/Fantom-foundation/go-smt/database/smt"
	"github.com/urfave/cli/v2"
)

var Get = cli.Command{
	Action:    get,
	Name:      "get",
	Usage:     "prints the value stored for a key",
	ArgsUsage: "<directory> <key>",
}

func get(context *cli.Context) error {
	dir, err := getDirectory(context, 2)
	if err != nil {
		return err
	}
	key, err := parseKey(context.Args().Get(1))
	if err != nil {
		return err
	}
	return runOnTree(dir, func(tree *smt.Tree) error {
		node, err := tree.GetNodeByKey(key)
		if err != nil {
			return err
		}
		if node.IsEmpty() {
			return fmt.Errorf("key %v not found", key)
		}
		fmt.Fprintln(context.App.Writer, node.Value)
		return nil
	})
}
