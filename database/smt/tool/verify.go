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
	"strings"

	"github.com/Fantom-foundation/go-smt/common"
	"github.com/Fantom-foundation/go-smt/database/smt"
	"github.com/urfave/cli/v2"
)

var Verify = cli.Command{
	Action:    verify,
	Name:      "verify",
	Usage:     "checks a proof against a root, absent keys are verified with value 0",
	ArgsUsage: "<root> <proof> <key> <value>",
	Flags: []cli.Flag{
		&verifyHashingFlag,
	},
}

var verifyHashingFlag = cli.StringFlag{
	Name:  "hashing",
	Usage: "the hash algorithm of the tree, Keccak256 or Poseidon",
	Value: smt.KeccakHashing.Name,
}

func verify(context *cli.Context) error {
	if context.Args().Len() != 4 {
		return fmt.Errorf("expected 4 arguments, got %d", context.Args().Len())
	}
	var root common.Hash
	if err := root.UnmarshalText([]byte(context.Args().Get(0))); err != nil {
		return fmt.Errorf("invalid root: %w", err)
	}
	proof, err := parseProof(context.Args().Get(1))
	if err != nil {
		return err
	}
	key, err := parseKey(context.Args().Get(2))
	if err != nil {
		return err
	}
	value, err := parseValue(context.Args().Get(3))
	if err != nil {
		return err
	}
	hashing, found := smt.GetHashAlgorithmByName(context.String(verifyHashingFlag.Name))
	if !found {
		return fmt.Errorf("unknown hash algorithm %q", context.String(verifyHashingFlag.Name))
	}

	if !smt.VerifyWith(hashing.NewHasher(), root, proof, key, value) {
		return fmt.Errorf("proof is not valid")
	}
	fmt.Fprintln(context.App.Writer, "Proof is valid")
	return nil
}

// parseProof accepts proofs in the formats produced by the prove command.
func parseProof(s string) (smt.Proof, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		var proof smt.Proof
		if err := json.Unmarshal([]byte(s), &proof); err != nil {
			return smt.Proof{}, fmt.Errorf("invalid proof: %w", err)
		}
		return proof, nil
	}
	data, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return smt.Proof{}, fmt.Errorf("invalid proof: %w", err)
	}
	return smt.UnmarshalProofRlp(data)
}
