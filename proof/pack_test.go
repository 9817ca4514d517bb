package proof

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	rawA = []string{"1", "2", "1"}
	rawB = [][]string{{"3", "4"}, {"5", "6"}, {"1", "0"}}
	rawC = []string{"7", "8", "1"}

	wantPacked = []string{"1", "2", "4", "3", "6", "5", "7", "8"}
)

func requirePacked(t *testing.T, want []string, got PackedProof) {
	s := got.Strings()
	require.Equal(t, want, s[:])
}

func TestNormalizeShapes(t *testing.T) {
	nested := map[string]any{"pi_a": rawA, "pi_b": rawB, "pi_c": rawC, "protocol": "groth16"}

	p, err := Normalize(nested)
	require.NoError(t, err)
	requirePacked(t, wantPacked, p)

	p, err = Normalize(map[string]any{"proof": nested})
	require.NoError(t, err)
	requirePacked(t, wantPacked, p)

	p, err = Normalize(&SnarkJSProof{PiA: rawA, PiB: rawB, PiC: rawC})
	require.NoError(t, err)
	requirePacked(t, wantPacked, p)

	// flat input is already in contract order
	flat := []string{"1", "2", "3", "4", "5", "6", "7", "8"}
	p, err = Normalize(flat)
	require.NoError(t, err)
	requirePacked(t, flat, p)
}

func TestNormalizeJSON(t *testing.T) {
	wrapped := `{"proof":{"pi_a":["1","2","1"],"pi_b":[["3","4"],["5","6"],["1","0"]],"pi_c":["7","8","1"],"protocol":"groth16"},"publicSignals":["9"]}`
	p, err := NormalizeJSON([]byte(wrapped))
	require.NoError(t, err)
	requirePacked(t, wantPacked, p)

	// numbers, hex strings and decimal strings mix freely
	flat := `[1, "0x02", "3", 4, "5", "0x6", 7, 8]`
	p, err = NormalizeJSON([]byte(flat))
	require.NoError(t, err)
	requirePacked(t, []string{"1", "2", "3", "4", "5", "6", "7", "8"}, p)

	maxWord := `[115792089237316195423570985008687907853269984665640564039457584007913129639935,0,0,0,0,0,0,0]`
	p, err = NormalizeJSON([]byte(maxWord))
	require.NoError(t, err)
	require.Equal(t, new(uint256.Int).SetAllOne(), p[0])
}

func TestNormalizeJSONExponents(t *testing.T) {
	p, err := NormalizeJSON([]byte(`[1e3, 2.5E1, 3.0, 4e0, 5, 6e+1, 70e-1, 8]`))
	require.NoError(t, err)
	requirePacked(t, []string{"1000", "25", "3", "4", "5", "60", "7", "8"}, p)

	// 2^255 written with an exponent
	p, err = NormalizeJSON([]byte(`[5.7896044618658097711785492504343953926634992332820282019728792003956564819968e76,0,0,0,0,0,0,0]`))
	require.NoError(t, err)
	require.Equal(t, new(uint256.Int).Lsh(uint256.NewInt(1), 255), p[0])

	for _, in := range []string{
		`[1.5e0,0,0,0,0,0,0,0]`,
		`[1e-3,0,0,0,0,0,0,0]`,
		`[1e78,0,0,0,0,0,0,0]`,
		`[-1e3,0,0,0,0,0,0,0]`,
	} {
		_, err := NormalizeJSON([]byte(in))
		require.Error(t, err, in)
	}
}

func TestNormalizeJSONTrailingData(t *testing.T) {
	_, err := NormalizeJSON([]byte(`[1,2,3,4,5,6,7,8] garbage`))
	require.ErrorContains(t, err, "trailing data")
	_, err = NormalizeJSON([]byte(`[1,2,3,4,5,6,7,8][1]`))
	require.ErrorContains(t, err, "trailing data")

	p, err := NormalizeJSON([]byte("[1,2,3,4,5,6,7,8]\n  "))
	require.NoError(t, err)
	requirePacked(t, []string{"1", "2", "3", "4", "5", "6", "7", "8"}, p)
}

func TestNormalizeUnsupported(t *testing.T) {
	cases := []any{
		nil,
		"proof",
		42,
		[]any{"1", "2", "3"},
		[]string{"1", "2", "3", "4", "5", "6", "7", "8", "9"},
		map[string]any{"pi_a": rawA, "pi_b": rawB},
		map[string]any{"proof": "not an object"},
		map[string]any{"a": 1},
	}
	for _, c := range cases {
		_, err := Normalize(c)
		require.ErrorIs(t, err, ErrUnsupportedProof, "%v", c)
		require.Contains(t, err.Error(), "unsupported proof structure")
	}

	_, err := NormalizeJSON([]byte(`{"foo":"bar"}`))
	require.ErrorIs(t, err, ErrUnsupportedProof)
}

func TestNormalizeInvalidElements(t *testing.T) {
	overflow := new(big.Int).Lsh(big.NewInt(1), 256)
	_, err := Normalize([]*big.Int{overflow, big.NewInt(0), big.NewInt(0), big.NewInt(0), big.NewInt(0), big.NewInt(0), big.NewInt(0), big.NewInt(0)})
	require.ErrorContains(t, err, "overflows uint256")

	_, err = Normalize([]any{"-1", "0", "0", "0", "0", "0", "0", "0"})
	require.ErrorContains(t, err, "negative")

	_, err = Normalize([]any{"x", "0", "0", "0", "0", "0", "0", "0"})
	require.Error(t, err)

	_, err = NormalizeJSON([]byte(`[1.5,0,0,0,0,0,0,0]`))
	require.Error(t, err)
}

func TestUnpackRoundTrip(t *testing.T) {
	p, err := Normalize(&SnarkJSProof{PiA: rawA, PiB: rawB, PiC: rawC})
	require.NoError(t, err)

	unpacked := p.Unpack()
	require.Equal(t, rawA, unpacked.PiA)
	require.Equal(t, rawB, unpacked.PiB)
	require.Equal(t, rawC, unpacked.PiC)

	again, err := Normalize(unpacked)
	require.NoError(t, err)
	require.Equal(t, p.Strings(), again.Strings())

	bz, err := json.Marshal(unpacked)
	require.NoError(t, err)
	fromJSON, err := NormalizeJSON(bz)
	require.NoError(t, err)
	require.Equal(t, p.Strings(), fromJSON.Strings())
}

func TestCheckPoints(t *testing.T) {
	_, _, g1, g2 := bn254.Generators()
	dec := func(x interface{ BigInt(*big.Int) *big.Int }) string {
		return x.BigInt(new(big.Int)).String()
	}

	// snarkjs layout of the generators: pi_b rows are [c0, c1]
	sp := &SnarkJSProof{
		PiA: []string{dec(&g1.X), dec(&g1.Y), "1"},
		PiB: [][]string{{dec(&g2.X.A0), dec(&g2.X.A1)}, {dec(&g2.Y.A0), dec(&g2.Y.A1)}, {"1", "0"}},
		PiC: []string{dec(&g1.X), dec(&g1.Y), "1"},
	}
	p, err := Normalize(sp)
	require.NoError(t, err)
	require.NoError(t, p.CheckPoints())

	// the flat input is taken as is, so an unswapped B is rejected
	flat := []string{sp.PiA[0], sp.PiA[1], sp.PiB[0][0], sp.PiB[0][1], sp.PiB[1][0], sp.PiB[1][1], sp.PiC[0], sp.PiC[1]}
	p, err = Normalize(flat)
	require.NoError(t, err)
	require.ErrorIs(t, p.CheckPoints(), ErrInvalidPoint)

	p, err = Normalize([]string{"1", "3", "0", "0", "0", "0", "1", "2"})
	require.NoError(t, err)
	require.ErrorIs(t, p.CheckPoints(), ErrInvalidPoint)
}
