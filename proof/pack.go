package proof

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/holiman/uint256"
	"github.com/kysee/anon-ownership/utils"
)

var (
	ErrUnsupportedProof = errors.New("unsupported proof structure")
	ErrInvalidPoint     = errors.New("proof point is not on the curve")
)

// PackedProof is the groth16 proof in the order the verifier contract takes
// it: [a0, a1, b01, b00, b11, b10, c0, c1].
type PackedProof [8]*uint256.Int

// Normalize reorders a proof into PackedProof. Accepted shapes:
//
//	{"proof": {"pi_a": .., "pi_b": .., "pi_c": ..}}
//	{"pi_a": .., "pi_b": .., "pi_c": ..}
//	[p0, p1, p2, p3, p4, p5, p6, p7]   (already packed, kept as is)
//
// For the first two the coordinates of both pi_b pairs are swapped.
func Normalize(raw any) (PackedProof, error) {
	switch x := raw.(type) {
	case PackedProof:
		return x.clone()
	case *PackedProof:
		if x != nil {
			return x.clone()
		}
	case *SnarkJSProof:
		if x != nil {
			return fromPoints(x.PiA, x.PiB, x.PiC, raw)
		}
	case SnarkJSProof:
		return fromPoints(x.PiA, x.PiB, x.PiC, raw)
	case []byte:
		return NormalizeJSON(x)
	case json.RawMessage:
		return NormalizeJSON(x)
	case map[string]any:
		if inner, ok := x["proof"]; ok && inner != nil {
			m, ok := inner.(map[string]any)
			if !ok {
				break
			}
			return fromMap(m, raw)
		}
		if x["pi_a"] != nil && x["pi_b"] != nil && x["pi_c"] != nil {
			return fromMap(x, raw)
		}
	case []any:
		if len(x) == 8 {
			return fromFlat(x)
		}
	case []string:
		if len(x) == 8 {
			flat := make([]any, 8)
			for i, s := range x {
				flat[i] = s
			}
			return fromFlat(flat)
		}
	case [8]string:
		return Normalize(x[:])
	case []*big.Int:
		if len(x) == 8 {
			flat := make([]any, 8)
			for i, v := range x {
				flat[i] = v
			}
			return fromFlat(flat)
		}
	}
	return PackedProof{}, unsupported(raw)
}

// NormalizeJSON decodes a single JSON document (numbers kept exact) and
// normalizes it.
func NormalizeJSON(data []byte) (PackedProof, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return PackedProof{}, fmt.Errorf("failed to parse proof JSON: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return PackedProof{}, errors.New("failed to parse proof JSON: trailing data after value")
	}
	return Normalize(v)
}

func unsupported(raw any) error {
	bz, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: %T", ErrUnsupportedProof, raw)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedProof, bz)
}

func fromMap(m map[string]any, raw any) (PackedProof, error) {
	a, okA := toSlice(m["pi_a"])
	c, okC := toSlice(m["pi_c"])
	bRows, okB := toSlice(m["pi_b"])
	if !okA || !okB || !okC || len(a) < 2 || len(c) < 2 || len(bRows) < 2 {
		return PackedProof{}, unsupported(raw)
	}
	b0, ok0 := toSlice(bRows[0])
	b1, ok1 := toSlice(bRows[1])
	if !ok0 || !ok1 || len(b0) < 2 || len(b1) < 2 {
		return PackedProof{}, unsupported(raw)
	}
	return fromFlat([]any{a[0], a[1], b0[1], b0[0], b1[1], b1[0], c[0], c[1]})
}

func fromPoints(a []string, b [][]string, c []string, raw any) (PackedProof, error) {
	if len(a) < 2 || len(c) < 2 || len(b) < 2 || len(b[0]) < 2 || len(b[1]) < 2 {
		return PackedProof{}, unsupported(raw)
	}
	return fromFlat([]any{a[0], a[1], b[0][1], b[0][0], b[1][1], b[1][0], c[0], c[1]})
}

func fromFlat(vals []any) (PackedProof, error) {
	var p PackedProof
	for i, v := range vals {
		u, err := toUint256(v)
		if err != nil {
			return PackedProof{}, fmt.Errorf("invalid proof element %d: %w", i, err)
		}
		p[i] = u
	}
	return p, nil
}

func toSlice(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []string:
		ret := make([]any, len(x))
		for i, s := range x {
			ret[i] = s
		}
		return ret, true
	case [][]string:
		ret := make([]any, len(x))
		for i, s := range x {
			ret[i] = s
		}
		return ret, true
	}
	return nil, false
}

// numberToInt reads a JSON number that denotes an integer, including
// exponent forms such as 1e3 or 2.5E1.
func numberToInt(n json.Number) (*big.Int, error) {
	if bi, err := utils.ParseBigInt(n.String()); err == nil {
		return bi, nil
	}
	f, _, err := big.ParseFloat(n.String(), 10, 512, big.ToNearestEven)
	if err != nil {
		return nil, fmt.Errorf("invalid number %s: %w", n, err)
	}
	if !f.IsInt() {
		return nil, fmt.Errorf("%s is not an integer", n)
	}
	if f.MantExp(nil) > 256 {
		return nil, fmt.Errorf("%s overflows uint256", n)
	}
	bi, _ := f.Int(nil)
	return bi, nil
}

func toUint256(v any) (*uint256.Int, error) {
	var bi *big.Int
	switch x := v.(type) {
	case string:
		parsed, err := utils.ParseBigInt(x)
		if err != nil {
			return nil, err
		}
		bi = parsed
	case json.Number:
		parsed, err := numberToInt(x)
		if err != nil {
			return nil, err
		}
		bi = parsed
	case float64:
		f := new(big.Float).SetFloat64(x)
		if !f.IsInt() {
			return nil, fmt.Errorf("%v is not an integer", x)
		}
		bi, _ = f.Int(nil)
	case int:
		bi = big.NewInt(int64(x))
	case int64:
		bi = big.NewInt(x)
	case uint64:
		bi = new(big.Int).SetUint64(x)
	case *big.Int:
		if x == nil {
			return nil, errors.New("nil integer")
		}
		bi = x
	case *uint256.Int:
		if x == nil {
			return nil, errors.New("nil integer")
		}
		return x.Clone(), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
	if bi.Sign() < 0 {
		return nil, fmt.Errorf("negative value %s", bi)
	}
	u, overflow := uint256.FromBig(bi)
	if overflow {
		return nil, fmt.Errorf("value %s overflows uint256", bi)
	}
	return u, nil
}

func (p PackedProof) clone() (PackedProof, error) {
	var ret PackedProof
	for i, v := range p {
		if v == nil {
			return PackedProof{}, fmt.Errorf("invalid proof element %d: nil integer", i)
		}
		ret[i] = v.Clone()
	}
	return ret, nil
}

// BigInts is the uint256[8] ABI argument.
func (p PackedProof) BigInts() [8]*big.Int {
	var ret [8]*big.Int
	for i, v := range p {
		ret[i] = v.ToBig()
	}
	return ret
}

func (p PackedProof) Strings() [8]string {
	var ret [8]string
	for i, v := range p {
		ret[i] = v.Dec()
	}
	return ret
}

func (p PackedProof) String() string {
	s := p.Strings()
	return "[" + strings.Join(s[:], ", ") + "]"
}

// Unpack is the inverse of Normalize: it restores the snarkjs layout.
func (p PackedProof) Unpack() *SnarkJSProof {
	s := p.Strings()
	return &SnarkJSProof{
		PiA:      []string{s[0], s[1], "1"},
		PiB:      [][]string{{s[3], s[2]}, {s[5], s[4]}, {"1", "0"}},
		PiC:      []string{s[6], s[7], "1"},
		Protocol: "groth16",
		Curve:    "bn128",
	}
}

// CheckPoints verifies that A and C are BN254 G1 points and B a G2 point,
// all in the prime-order subgroups.
func (p PackedProof) CheckPoints() error {
	coords := make([]fp.Element, 8)
	for i, v := range p {
		if v == nil {
			return fmt.Errorf("%w: element %d is nil", ErrInvalidPoint, i)
		}
		bi := v.ToBig()
		if bi.Cmp(fp.Modulus()) >= 0 {
			return fmt.Errorf("%w: element %d is not a base field element", ErrInvalidPoint, i)
		}
		coords[i].SetBigInt(bi)
	}

	var a, c bn254.G1Affine
	a.X, a.Y = coords[0], coords[1]
	c.X, c.Y = coords[6], coords[7]

	var b bn254.G2Affine
	b.X.A1, b.X.A0 = coords[2], coords[3]
	b.Y.A1, b.Y.A0 = coords[4], coords[5]

	if !a.IsOnCurve() || !a.IsInSubGroup() {
		return fmt.Errorf("%w: A", ErrInvalidPoint)
	}
	if !b.IsOnCurve() || !b.IsInSubGroup() {
		return fmt.Errorf("%w: B", ErrInvalidPoint)
	}
	if !c.IsOnCurve() || !c.IsInSubGroup() {
		return fmt.Errorf("%w: C", ErrInvalidPoint)
	}
	return nil
}
