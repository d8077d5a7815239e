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

var Init = cli.Command{
	Action:    addPerformanceDiagnoses(initTree),
	Name:      "init",
	Usage:     "creates a new, empty tree in the given directory",
	ArgsUsage: "<directory>",
	Flags: []cli.Flag{
		&configFlag,
		&maxDepthFlag,
		&hashingFlag,
		&backendFlag,
		&archiveFlag,
	},
}

var (
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "name of a predefined configuration, other flags override its settings",
		Value: smt.DefaultConfig.Name,
	}
	maxDepthFlag = cli.UintFlag{
		Name:  "max-depth",
		Usage: "the max depth of the tree",
	}
	hashingFlag = cli.StringFlag{
		Name:  "hashing",
		Usage: "the hash algorithm, Keccak256 or Poseidon",
	}
	backendFlag = cli.StringFlag{
		Name:  "backend",
		Usage: "the node store backend, file, ldb or memory",
	}
	archiveFlag = cli.BoolFlag{
		Name:  "archive",
		Usage: "record the history of roots for proving past versions",
	}
)

func initTree(context *cli.Context) error {
	dir, err := getDirectory(context, 1)
	if err != nil {
		return err
	}
	if _, found, err := smt.ReadTreeInfo(dir); err != nil || found {
		if err != nil {
			return err
		}
		return fmt.Errorf("directory %s already contains a tree", dir)
	}

	config, found := smt.GetConfigByName(context.String(configFlag.Name))
	if !found {
		return fmt.Errorf("unknown configuration %q", context.String(configFlag.Name))
	}
	if context.IsSet(maxDepthFlag.Name) {
		config.MaxDepth = context.Uint(maxDepthFlag.Name)
		if err := smt.CheckMaxDepth(config.MaxDepth); err != nil {
			return err
		}
	}
	if context.IsSet(hashingFlag.Name) {
		name := context.String(hashingFlag.Name)
		if config.Hashing, found = smt.GetHashAlgorithmByName(name); !found {
			return fmt.Errorf("unknown hash algorithm %q", name)
		}
	}
	if context.IsSet(backendFlag.Name) {
		if config.Backend, err = smt.ParseBackend(context.String(backendFlag.Name)); err != nil {
			return err
		}
	}
	if context.IsSet(archiveFlag.Name) {
		config.WithArchive = context.Bool(archiveFlag.Name)
	}

	tree, err := smt.OpenTree(dir, config)
	if err != nil {
		return err
	}
	if err := tree.Close(); err != nil {
		return err
	}
	fmt.Fprintf(context.App.Writer, "Created tree with max depth %d using %v hashing and %s backend\n", config.MaxDepth, config.Hashing, config.Backend)
	return nil
}
