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

var Info = cli.Command{
	Action:    info,
	Name:      "info",
	Usage:     "lists information about a tree directory",
	ArgsUsage: "<directory>",
}

func info(context *cli.Context) error {
	dir, err := getDirectory(context, 1)
	if err != nil {
		return err
	}
	treeInfo, found, err := smt.ReadTreeInfo(dir)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("directory %s does not contain a tree", dir)
	}

	out := context.App.Writer
	config := treeInfo.Config
	fmt.Fprintf(out, "Directory contains a tree with the following properties:\n")
	fmt.Fprintf(out, "\tHashing:           %v\n", config.Hashing)
	fmt.Fprintf(out, "\tBackend:           %v\n", config.Backend)
	fmt.Fprintf(out, "\tArchive:           %t\n", config.WithArchive)
	if treeInfo.Initialized {
		fmt.Fprintf(out, "\tMax depth:         %d\n", config.MaxDepth)
	} else {
		fmt.Fprintf(out, "\tMax depth:         not initialized\n")
	}
	fmt.Fprintf(out, "\tVersion:           %d\n", treeInfo.Version)
	fmt.Fprintf(out, "\tNodes:             %d\n", treeInfo.NodesCount)
	fmt.Fprintf(out, "\tRoot:              %v\n", treeInfo.Root)

	tree, err := openTree(dir, false)
	if err != nil {
		fmt.Fprintf(out, "\tFailed to open:    %v\n", err)
		return nil
	}
	fmt.Fprintf(out, "\tCan be opened:     Yes\n")
	footprint := tree.GetMemoryFootprint()
	if nodes := footprint.GetChild("nodes"); nodes != nil {
		fmt.Fprintf(out, "\tNode store memory: %d bytes\n", nodes.Total())
	}
	fmt.Fprintf(out, "\nMemory usage:\n%v", footprint)
	if err := tree.Close(); err != nil {
		return fmt.Errorf("error closing tree: %v", err)
	}
	return nil
}
