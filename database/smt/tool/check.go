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
	"io"
	"time"

	"github.com/Fantom-foundation/go-smt/database/smt"
	"github.com/urfave/cli/v2"
)

var Check = cli.Command{
	Action:    addPerformanceDiagnoses(check),
	Name:      "check",
	Usage:     "verifies the consistency of a tree",
	ArgsUsage: "<directory>",
	Flags: []cli.Flag{
		&ignoreDirtyFlag,
	},
}

var ignoreDirtyFlag = cli.BoolFlag{
	Name:  "ignore-dirty",
	Usage: "check trees of directories not closed properly",
}

func check(context *cli.Context) error {
	dir, err := getDirectory(context, 1)
	if err != nil {
		return err
	}
	tree, err := openTree(dir, context.Bool(ignoreDirtyFlag.Name))
	if err != nil {
		return err
	}
	observer := &verificationObserver{out: context.App.Writer}
	err = smt.VerifyTree(tree, observer)
	if closeErr := tree.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("error closing tree: %w", closeErr)
	}
	return err
}

type verificationObserver struct {
	out   io.Writer
	start time.Time
}

func (o *verificationObserver) StartVerification() {
	o.start = time.Now()
	o.printHeader()
	fmt.Fprintln(o.out, "Starting verification ...")
}

func (o *verificationObserver) Progress(msg string) {
	o.printHeader()
	fmt.Fprintln(o.out, msg)
}

func (o *verificationObserver) EndVerification(res error) {
	if res == nil {
		o.printHeader()
		fmt.Fprintln(o.out, "Verification successful!")
	}
}

func (o *verificationObserver) printHeader() {
	now := time.Now()
	t := uint64(now.Sub(o.start).Seconds())
	fmt.Fprintf(o.out, "%s [t=%4d:%02d] - ", now.Format("15:04:05"), t/60, t%60)
}
