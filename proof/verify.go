package proof

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	groth16_bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/kysee/anon-ownership/utils"
	"github.com/vocdoni/go-snark/parsers"
	"github.com/vocdoni/go-snark/verifier"
)

var ErrInvalidProof = errors.New("invalid proof")

// Verifier checks a packed groth16 proof against a snarkjs verification key.
type Verifier interface {
	Verify(proof PackedProof, vk *SnarkJSVerificationKey, public []string) error
}

// NewVerifier returns the verifier backend by name: "gnark", "gosnark" or
// "none". A nil Verifier means local verification is disabled.
func NewVerifier(name string) (Verifier, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "gnark":
		return GnarkVerifier{}, nil
	case "gosnark", "go-snark":
		return GoSnarkVerifier{}, nil
	case "none", "off":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown verifier %q", name)
	}
}

type GnarkVerifier struct{}

func (GnarkVerifier) Verify(proof PackedProof, vk *SnarkJSVerificationKey, public []string) error {
	if err := proof.CheckPoints(); err != nil {
		return err
	}
	gnarkVk, err := toGnarkVerifyingKey(vk)
	if err != nil {
		return err
	}
	if len(public) != len(gnarkVk.G1.K)-1 {
		return fmt.Errorf("%w: expected %d public signals, got %d", ErrInvalidProof, len(gnarkVk.G1.K)-1, len(public))
	}

	coords, err := packedCoords(proof)
	if err != nil {
		return err
	}
	gnarkProof := &groth16_bn254.Proof{}
	gnarkProof.Ar.X, gnarkProof.Ar.Y = coords[0], coords[1]
	gnarkProof.Bs.X.A1, gnarkProof.Bs.X.A0 = coords[2], coords[3]
	gnarkProof.Bs.Y.A1, gnarkProof.Bs.Y.A0 = coords[4], coords[5]
	gnarkProof.Krs.X, gnarkProof.Krs.Y = coords[6], coords[7]

	inputs := make(fr.Vector, len(public))
	for i, s := range public {
		bi, err := utils.ParseBigInt(s)
		if err != nil {
			return fmt.Errorf("failed to parse public input %d: %v", i, err)
		}
		inputs[i].SetBigInt(bi)
	}

	if err := groth16_bn254.Verify(gnarkProof, gnarkVk, inputs); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	return nil
}

// GoSnarkVerifier verifies through go-snark's snarkjs parsers.
type GoSnarkVerifier struct{}

func (GoSnarkVerifier) Verify(proof PackedProof, vk *SnarkJSVerificationKey, public []string) error {
	proofJSON, err := json.Marshal(proof.Unpack())
	if err != nil {
		return err
	}
	vkJSON, err := json.Marshal(vk)
	if err != nil {
		return err
	}
	publicJSON, err := json.Marshal(public)
	if err != nil {
		return err
	}

	pub, err := parsers.ParsePublicSignals(publicJSON)
	if err != nil {
		return err
	}
	p, err := parsers.ParseProof(proofJSON)
	if err != nil {
		return err
	}
	v, err := parsers.ParseVk(vkJSON)
	if err != nil {
		return err
	}
	if !verifier.Verify(v, p, pub) {
		return ErrInvalidProof
	}
	return nil
}

func packedCoords(p PackedProof) ([8]fp.Element, error) {
	var coords [8]fp.Element
	for i, v := range p {
		if v == nil {
			return coords, fmt.Errorf("%w: element %d is nil", ErrInvalidPoint, i)
		}
		coords[i].SetBigInt(v.ToBig())
	}
	return coords, nil
}

func toGnarkVerifyingKey(vk *SnarkJSVerificationKey) (*groth16_bn254.VerifyingKey, error) {
	if vk == nil {
		return nil, errors.New("nil verification key")
	}
	if vk.Protocol != "" && vk.Protocol != "groth16" {
		return nil, fmt.Errorf("unsupported protocol %q", vk.Protocol)
	}

	ret := &groth16_bn254.VerifyingKey{}
	var err error
	if ret.G1.Alpha, err = g1FromStrings(vk.VkAlpha1); err != nil {
		return nil, fmt.Errorf("failed to convert vk_alpha_1: %v", err)
	}
	if ret.G2.Beta, err = g2FromStrings(vk.VkBeta2); err != nil {
		return nil, fmt.Errorf("failed to convert vk_beta_2: %v", err)
	}
	if ret.G2.Gamma, err = g2FromStrings(vk.VkGamma2); err != nil {
		return nil, fmt.Errorf("failed to convert vk_gamma_2: %v", err)
	}
	if ret.G2.Delta, err = g2FromStrings(vk.VkDelta2); err != nil {
		return nil, fmt.Errorf("failed to convert vk_delta_2: %v", err)
	}
	ret.G1.K = make([]bn254.G1Affine, len(vk.IC))
	for i, ic := range vk.IC {
		if ret.G1.K[i], err = g1FromStrings(ic); err != nil {
			return nil, fmt.Errorf("failed to convert IC[%d]: %v", i, err)
		}
	}
	if err := ret.Precompute(); err != nil {
		return nil, fmt.Errorf("failed to precompute verification key: %v", err)
	}
	return ret, nil
}

func g1FromStrings(h []string) (bn254.G1Affine, error) {
	var p bn254.G1Affine
	if len(h) < 2 {
		return p, errors.New("not enough coordinates")
	}
	x, err := baseField(h[0])
	if err != nil {
		return p, err
	}
	y, err := baseField(h[1])
	if err != nil {
		return p, err
	}
	p.X, p.Y = x, y
	if !p.IsOnCurve() {
		return p, ErrInvalidPoint
	}
	return p, nil
}

// g2FromStrings reads the snarkjs [[x0, x1], [y0, y1]] layout.
func g2FromStrings(h [][]string) (bn254.G2Affine, error) {
	var p bn254.G2Affine
	if len(h) < 2 || len(h[0]) < 2 || len(h[1]) < 2 {
		return p, errors.New("not enough coordinates")
	}
	var err error
	if p.X.A0, err = baseField(h[0][0]); err != nil {
		return p, err
	}
	if p.X.A1, err = baseField(h[0][1]); err != nil {
		return p, err
	}
	if p.Y.A0, err = baseField(h[1][0]); err != nil {
		return p, err
	}
	if p.Y.A1, err = baseField(h[1][1]); err != nil {
		return p, err
	}
	if !p.IsOnCurve() {
		return p, ErrInvalidPoint
	}
	return p, nil
}

func baseField(s string) (fp.Element, error) {
	var e fp.Element
	bi, err := utils.ParseBigInt(s)
	if err != nil {
		return e, err
	}
	if bi.Sign() < 0 || bi.Cmp(fp.Modulus()) >= 0 {
		return e, fmt.Errorf("%s is not a base field element", bi)
	}
	e.SetBigInt(bi)
	return e, nil
}

func bigStrings(vals ...*big.Int) []string {
	ret := make([]string, len(vals))
	for i, v := range vals {
		ret[i] = v.String()
	}
	return ret
}
