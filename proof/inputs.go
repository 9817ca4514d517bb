package proof

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ethereum/go-ethereum/crypto"
)

// Semaphore circuits are compiled for every tree depth in [MinDepth, MaxDepth].
const (
	MinDepth = 1
	MaxDepth = 32
)

var (
	ErrInvalidDepth = errors.New("invalid merkle tree depth")
	ErrNotUint256   = errors.New("value is not a uint256")
)

// HashField maps a uint256 into the circuit field the way Semaphore does for
// messages and scopes: keccak256 of the 32 big-endian bytes, >> 8.
func HashField(v *big.Int) (*big.Int, error) {
	if v == nil || v.Sign() < 0 || v.BitLen() > 256 {
		return nil, fmt.Errorf("%w: %v", ErrNotUint256, v)
	}
	var buf [32]byte
	v.FillBytes(buf[:])
	h := crypto.Keccak256(buf[:])
	return new(big.Int).Rsh(new(big.Int).SetBytes(h), 8), nil
}

// CircuitInputs are the witness inputs of the Semaphore circuit. Message and
// Scope are already field hashed; MerkleProofSiblings has one entry per
// circuit level, zero padded.
type CircuitInputs struct {
	Secret              *big.Int
	MerkleProofLength   int
	MerkleProofIndex    uint64
	MerkleProofSiblings []*big.Int
	Message             *big.Int
	Scope               *big.Int
}

// MarshalJSON writes the snarkjs input file: every signal as a decimal string.
func (in *CircuitInputs) MarshalJSON() ([]byte, error) {
	siblings := make([]string, len(in.MerkleProofSiblings))
	for i, s := range in.MerkleProofSiblings {
		siblings[i] = s.String()
	}
	return json.Marshal(struct {
		Secret              string   `json:"secret"`
		MerkleProofLength   string   `json:"merkleProofLength"`
		MerkleProofIndex    string   `json:"merkleProofIndex"`
		MerkleProofSiblings []string `json:"merkleProofSiblings"`
		Message             string   `json:"message"`
		Scope               string   `json:"scope"`
	}{
		Secret:              in.Secret.String(),
		MerkleProofLength:   strconv.Itoa(in.MerkleProofLength),
		MerkleProofIndex:    strconv.FormatUint(in.MerkleProofIndex, 10),
		MerkleProofSiblings: siblings,
		Message:             in.Message.String(),
		Scope:               in.Scope.String(),
	})
}

// Artifacts are the snark files of one circuit depth.
type Artifacts struct {
	Depth           int
	Wasm            string
	Zkey            string
	VerificationKey string // empty when the directory has no key for this depth
}

// ArtifactsFor resolves semaphore-<depth>.{wasm,zkey,json} in dir.
func ArtifactsFor(dir string, depth int) (Artifacts, error) {
	if depth < MinDepth || depth > MaxDepth {
		return Artifacts{}, fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidDepth, depth, MinDepth, MaxDepth)
	}
	base := filepath.Join(dir, fmt.Sprintf("semaphore-%d", depth))
	art := Artifacts{
		Depth: depth,
		Wasm:  base + ".wasm",
		Zkey:  base + ".zkey",
	}
	for _, f := range []string{art.Wasm, art.Zkey} {
		if _, err := os.Stat(f); err != nil {
			return Artifacts{}, fmt.Errorf("snark artifact for depth %d: %w", depth, err)
		}
	}
	if _, err := os.Stat(base + ".json"); err == nil {
		art.VerificationKey = base + ".json"
	}
	return art, nil
}
