// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import (
	"encoding/hex"
	"fmt"

	"github.com/holiman/uint256"
)

const (
	HashSize    = 32
	KeySize     = 32
	ValueSize   = 32
	AddressSize = 20
)

// Hash is a 256-bit node hash. Like keys and values, it is the big-endian
// encoding of an unsigned integer, which is the layout of a Solidity bytes32.
type Hash [HashSize]byte

// Key is the 256-bit key of a tree entry. The tree consumes its bits starting
// with the least significant one.
type Key [KeySize]byte

// Value is the 256-bit value associated to a key.
type Value [ValueSize]byte

// Address is a 20-byte account address.
type Address [AddressSize]byte

// Bit returns bit i of the key interpreted as an unsigned integer, where bit
// 0 is the least significant bit. Bits beyond 255 are zero.
func (k Key) Bit(i uint) bool {
	if i >= 8*KeySize {
		return false
	}
	return k[KeySize-1-i/8]&(1<<(i%8)) != 0
}

// SharedPrefixLength returns the number of low order bits a and b agree on.
func SharedPrefixLength(a, b Key) uint {
	for i := KeySize - 1; i >= 0; i-- {
		if diff := a[i] ^ b[i]; diff != 0 {
			res := uint(KeySize-1-i) * 8
			for diff&1 == 0 {
				diff >>= 1
				res++
			}
			return res
		}
	}
	return 8 * KeySize
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) ToUint256() *uint256.Int {
	return new(uint256.Int).SetBytes32(h[:])
}

func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

func HashFromUint256(v *uint256.Int) Hash {
	return Hash(v.Bytes32())
}

func (k Key) ToUint256() *uint256.Int {
	return new(uint256.Int).SetBytes32(k[:])
}

func (k Key) String() string {
	return "0x" + hex.EncodeToString(k[:])
}

func KeyFromUint256(v *uint256.Int) Key {
	return Key(v.Bytes32())
}

func KeyFromUint64(v uint64) Key {
	return KeyFromUint256(uint256.NewInt(v))
}

func (v Value) IsZero() bool {
	return v == Value{}
}

func (v Value) ToUint256() *uint256.Int {
	return new(uint256.Int).SetBytes32(v[:])
}

func (v Value) String() string {
	return "0x" + hex.EncodeToString(v[:])
}

func ValueFromUint256(v *uint256.Int) Value {
	return Value(v.Bytes32())
}

func ValueFromUint64(v uint64) Value {
	return ValueFromUint256(uint256.NewInt(v))
}

// AddressToValue converts an address into a value by left-padding it with
// zeros, which is how a Solidity address is widened to a uint256.
func AddressToValue(a Address) Value {
	var res Value
	copy(res[ValueSize-AddressSize:], a[:])
	return res
}

// ValueToAddress truncates the given value to its 20 low order bytes.
func ValueToAddress(v Value) Address {
	var res Address
	copy(res[:], v[ValueSize-AddressSize:])
	return res
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// ParseUint256 parses a decimal or 0x-prefixed hexadecimal number.
func ParseUint256(s string) (*uint256.Int, error) {
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		res, err := uint256.FromHex(trimLeadingZeros(s))
		if err != nil {
			return nil, fmt.Errorf("invalid hex number %q: %w", s, err)
		}
		return res, nil
	}
	res, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid decimal number %q: %w", s, err)
	}
	return res, nil
}

// trimLeadingZeros turns 0x000a into 0xa since uint256.FromHex rejects
// leading zero digits.
func trimLeadingZeros(s string) string {
	digits := s[2:]
	for len(digits) > 1 && digits[0] == '0' {
		digits = digits[1:]
	}
	return "0x" + digits
}

// ----------------------------------------------------------------------------
//                           Text Marshaling
// ----------------------------------------------------------------------------

// Hashes, keys, values and addresses are encoded as 0x-prefixed hex strings in
// JSON and other text based formats.

func (h Hash) MarshalText() ([]byte, error) {
	return marshalHex(h[:]), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	return unmarshalHex(text, h[:])
}

func (k Key) MarshalText() ([]byte, error) {
	return marshalHex(k[:]), nil
}

func (k *Key) UnmarshalText(text []byte) error {
	return unmarshalHex(text, k[:])
}

func (v Value) MarshalText() ([]byte, error) {
	return marshalHex(v[:]), nil
}

func (v *Value) UnmarshalText(text []byte) error {
	return unmarshalHex(text, v[:])
}

func (a Address) MarshalText() ([]byte, error) {
	return marshalHex(a[:]), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	return unmarshalHex(text, a[:])
}

func marshalHex(data []byte) []byte {
	res := make([]byte, 2+2*len(data))
	copy(res, "0x")
	hex.Encode(res[2:], data)
	return res
}

func unmarshalHex(text []byte, trg []byte) error {
	if len(text) < 2 || text[0] != '0' || (text[1] != 'x' && text[1] != 'X') {
		return fmt.Errorf("missing 0x prefix in %q", text)
	}
	text = text[2:]
	if len(text) != 2*len(trg) {
		return fmt.Errorf("invalid length of hex string, expected %d digits, got %d", 2*len(trg), len(text))
	}
	_, err := hex.Decode(trg, text)
	return err
}
