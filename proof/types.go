package proof

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
)

// SnarkJSProof is the groth16 proof as written by snarkjs (proof.json).
// Points are projective: pi_a and pi_c carry a third "1" coordinate and pi_b
// a third ["1", "0"] pair.
type SnarkJSProof struct {
	PiA      []string   `json:"pi_a"`
	PiB      [][]string `json:"pi_b"`
	PiC      []string   `json:"pi_c"`
	Protocol string     `json:"protocol"`
	Curve    string     `json:"curve,omitempty"`
}

// SnarkJSVerificationKey is the verification key as exported by snarkjs.
type SnarkJSVerificationKey struct {
	Protocol      string       `json:"protocol"`
	Curve         string       `json:"curve"`
	NPublic       int          `json:"nPublic"`
	VkAlpha1      []string     `json:"vk_alpha_1"`
	VkBeta2       [][]string   `json:"vk_beta_2"`
	VkGamma2      [][]string   `json:"vk_gamma_2"`
	VkDelta2      [][]string   `json:"vk_delta_2"`
	VkAlphabeta12 [][][]string `json:"vk_alphabeta_12"`
	IC            [][]string   `json:"IC"`
}

// FullProof is everything the registry needs for claimOwnership and
// proveOwnership. Message and Scope are the values before field hashing.
type FullProof struct {
	MerkleTreeDepth int
	MerkleTreeRoot  *big.Int
	Nullifier       *big.Int
	Message         *big.Int
	Scope           *big.Int
	Points          PackedProof
}

func ReadVerificationKey(path string) (*SnarkJSVerificationKey, error) {
	bz, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, err
	}
	var vk SnarkJSVerificationKey
	if err := json.Unmarshal(bz, &vk); err != nil {
		return nil, fmt.Errorf("failed to parse verification key JSON: %v", err)
	}
	return &vk, nil
}

func readProof(path string) (*SnarkJSProof, error) {
	bz, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, err
	}
	var p SnarkJSProof
	if err := json.Unmarshal(bz, &p); err != nil {
		return nil, fmt.Errorf("failed to parse proof JSON: %v", err)
	}
	return &p, nil
}

func readPublicSignals(path string) ([]string, error) {
	bz, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, err
	}
	var public []string
	if err := json.Unmarshal(bz, &public); err != nil {
		return nil, fmt.Errorf("error parsing public signals: %w", err)
	}
	return public, nil
}
