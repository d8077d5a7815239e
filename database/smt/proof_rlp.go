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

import (
	"fmt"

	"github.com/Fantom-foundation/go-smt/common"
	"github.com/Fantom-foundation/go-smt/database/smt/rlp"
)

// MarshalRlp encodes the proof as the RLP list
//
//	[ [sibling_0, ..., sibling_n], existence, aux ]
//
// where siblings are 32-byte strings, existence is 0x01 or the empty string,
// and aux is either the empty list or the list [key, value].
func (p Proof) MarshalRlp() []byte {
	siblings := make([]rlp.Item, len(p.Siblings))
	for i := range p.Siblings {
		siblings[i] = rlp.Hash{Hash: &p.Siblings[i]}
	}
	existence := rlp.Uint64{}
	if p.Existence {
		existence.Value = 1
	}
	aux := rlp.List{}
	if p.Aux != nil {
		key := common.Hash(p.Aux.Key)
		value := common.Hash(p.Aux.Value)
		aux.Items = []rlp.Item{rlp.Hash{Hash: &key}, rlp.Hash{Hash: &value}}
	}
	return rlp.Encode(rlp.List{Items: []rlp.Item{
		rlp.List{Items: siblings},
		existence,
		aux,
	}})
}

// UnmarshalProofRlp decodes a proof encoded by MarshalRlp.
func UnmarshalProofRlp(data []byte) (Proof, error) {
	item, err := rlp.Decode(data)
	if err != nil {
		return Proof{}, err
	}
	fields, err := rlp.AsList(item, 3)
	if err != nil {
		return Proof{}, fmt.Errorf("invalid proof: %w", err)
	}

	res := Proof{}
	siblings, err := rlp.AsList(fields[0], -1)
	if err != nil {
		return Proof{}, fmt.Errorf("invalid siblings: %w", err)
	}
	if len(siblings) > HardMaxDepth {
		return Proof{}, fmt.Errorf("invalid siblings: too many siblings: %d", len(siblings))
	}
	if len(siblings) > 0 {
		res.Siblings = make([]common.Hash, len(siblings))
	}
	for i, sibling := range siblings {
		if res.Siblings[i], err = rlp.AsHash(sibling); err != nil {
			return Proof{}, fmt.Errorf("invalid sibling %d: %w", i, err)
		}
	}

	existence, err := rlp.AsUint64(fields[1])
	if err != nil || existence > 1 {
		return Proof{}, fmt.Errorf("invalid existence flag")
	}
	res.Existence = existence == 1

	aux, err := rlp.AsList(fields[2], -1)
	if err != nil {
		return Proof{}, fmt.Errorf("invalid aux node: %w", err)
	}
	switch len(aux) {
	case 0:
	case 2:
		key, err := rlp.AsHash(aux[0])
		if err != nil {
			return Proof{}, fmt.Errorf("invalid aux key: %w", err)
		}
		value, err := rlp.AsHash(aux[1])
		if err != nil {
			return Proof{}, fmt.Errorf("invalid aux value: %w", err)
		}
		res.Aux = &AuxNode{Key: common.Key(key), Value: common.Value(value)}
	default:
		return Proof{}, fmt.Errorf("invalid aux node: expected 0 or 2 items, got %d", len(aux))
	}
	return res, nil
}
