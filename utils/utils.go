package utils

import (
	crand "crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/iden3/go-iden3-crypto/poseidon"
)

// FieldModulus is the BN254 scalar field order.
// Identity commitments, group nodes and nullifiers all live in this field.
var FieldModulus = fr.Modulus()

func RandBytes(n int) []byte {
	rbz := make([]byte, n)
	_, _ = crand.Read(rbz)
	return rbz
}

// InField reports whether v is a canonical element of the scalar field.
func InField(v *big.Int) bool {
	return v != nil && v.Sign() >= 0 && v.Cmp(FieldModulus) < 0
}

// ToField reduces big-endian bytes into the scalar field.
func ToField(b []byte) *big.Int {
	var elem fr.Element
	elem.SetBytes(b)
	return elem.BigInt(new(big.Int))
}

// PoseidonHash is circomlib's Poseidon over BN254, the hash Semaphore uses
// for commitments, tree nodes and nullifiers.
func PoseidonHash(ins ...*big.Int) (*big.Int, error) {
	for i, in := range ins {
		if !InField(in) {
			return nil, fmt.Errorf("poseidon input %d is not a field element", i)
		}
	}
	return poseidon.Hash(ins)
}

// ParseBigInt accepts decimal or 0x-prefixed hexadecimal.
func ParseBigInt(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	bi, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, fmt.Errorf("failed to parse integer %q", s)
	}
	return bi, nil
}
