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

var Insert = cli.Command{
	Action:    addPerformanceDiagnoses(insert),
	Name:      "insert",
	Usage:     "inserts a key/value pair, numbers may be decimal or 0x-prefixed hex",
	ArgsUsage: "<directory> <key> <value>",
}

func insert(context *cli.Context) error {
	dir, err := getDirectory(context, 3)
	if err != nil {
		return err
	}
	key, err := parseKey(context.Args().Get(1))
	if err != nil {
		return err
	}
	value, err := parseValue(context.Args().Get(2))
	if err != nil {
		return err
	}
	return runOnTree(dir, func(tree *smt.Tree) error {
		if err := tree.Insert(key, value); err != nil {
			return err
		}
		fmt.Fprintf(context.App.Writer, "Version: %d\nRoot:    %v\n", tree.Version(), tree.GetRoot())
		return nil
	})
}
