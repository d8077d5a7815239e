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
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/Fantom-foundation/go-smt/database/smt"
	"github.com/urfave/cli/v2"
)

var Prove = cli.Command{
	Action:    prove,
	Name:      "prove",
	Usage:     "creates a proof for the presence or absence of a key",
	ArgsUsage: "<directory> <key>",
	Flags: []cli.Flag{
		&versionFlag,
		&formatFlag,
	},
}

var (
	versionFlag = cli.Uint64Flag{
		Name:  "version",
		Usage: "the version to create the proof for, the current version if not set",
	}
	formatFlag = cli.StringFlag{
		Name:  "format",
		Usage: "the output format, json or rlp",
		Value: "rlp",
	}
)

func prove(context *cli.Context) error {
	dir, err := getDirectory(context, 2)
	if err != nil {
		return err
	}
	key, err := parseKey(context.Args().Get(1))
	if err != nil {
		return err
	}
	format := context.String(formatFlag.Name)
	if format != "json" && format != "rlp" {
		return fmt.Errorf("unknown format %q", format)
	}
	return runOnTree(dir, func(tree *smt.Tree) error {
		version := tree.Version()
		if context.IsSet(versionFlag.Name) {
			version = context.Uint64(versionFlag.Name)
		}
		proof, err := tree.ProveAt(version, key)
		if err != nil {
			return err
		}
		if format == "json" {
			data, err := json.MarshalIndent(proof, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(context.App.Writer, string(data))
			return nil
		}
		fmt.Fprintf(context.App.Writer, "0x%s\n", hex.EncodeToString(proof.MarshalRlp()))
		return nil
	})
}
