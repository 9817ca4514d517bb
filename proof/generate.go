package proof

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/kysee/anon-ownership/group"
	"github.com/kysee/anon-ownership/identity"
	"github.com/kysee/anon-ownership/utils"
	"github.com/rs/zerolog"
)

var ErrPublicSignalsMismatch = errors.New("public signals do not match the expected values")

type GenerateOptions struct {
	// Depth forces the circuit depth. Zero selects max(1, proof length).
	Depth        int
	ArtifactsDir string
	// Verifier, when set, checks the proof locally against the depth's
	// verification key. A missing key is logged and skipped.
	Verifier Verifier
	Logger   zerolog.Logger
}

// Generate proves that id is a member of g, binding message and scope.
// message and scope are the raw values; they are field hashed here.
func Generate(ctx context.Context, prover Prover, id *identity.Identity, g *group.Group, message, scope *big.Int, opts GenerateOptions) (*FullProof, error) {
	if prover == nil {
		return nil, errors.New("nil prover")
	}
	mp, err := g.GenerateMemberProof(id.Commitment)
	if err != nil {
		return nil, fmt.Errorf("identity %s: %w", id.Commitment, err)
	}

	inputs, depth, err := BuildInputs(id, mp, message, scope, opts.Depth)
	if err != nil {
		return nil, err
	}
	art, err := ArtifactsFor(opts.ArtifactsDir, depth)
	if err != nil {
		return nil, err
	}

	opts.Logger.Info().
		Int("depth", depth).
		Int("proofLength", inputs.MerkleProofLength).
		Uint64("index", inputs.MerkleProofIndex).
		Msg("generating semaphore proof")

	snarkProof, public, err := prover.Prove(ctx, inputs, art)
	if err != nil {
		return nil, fmt.Errorf("failed to generate proof: %w", err)
	}

	nullifier, err := id.Nullifier(inputs.Scope)
	if err != nil {
		return nil, err
	}
	expected := bigStrings(mp.Root, nullifier, inputs.Message, inputs.Scope)
	if err := checkPublicSignals(public, expected); err != nil {
		return nil, err
	}

	points, err := Normalize(snarkProof)
	if err != nil {
		return nil, err
	}

	if opts.Verifier != nil {
		if art.VerificationKey == "" {
			opts.Logger.Warn().Int("depth", depth).Msg("no verification key for depth, skipping local verification")
		} else {
			vk, err := ReadVerificationKey(art.VerificationKey)
			if err != nil {
				return nil, err
			}
			if err := opts.Verifier.Verify(points, vk, public); err != nil {
				return nil, fmt.Errorf("local verification failed: %w", err)
			}
			opts.Logger.Debug().Msg("proof verified locally")
		}
	}

	return &FullProof{
		MerkleTreeDepth: depth,
		MerkleTreeRoot:  new(big.Int).Set(mp.Root),
		Nullifier:       nullifier,
		Message:         new(big.Int).Set(message),
		Scope:           new(big.Int).Set(scope),
		Points:          points,
	}, nil
}

// BuildInputs fills the circuit inputs from a membership proof and returns
// the circuit depth used.
func BuildInputs(id *identity.Identity, mp *group.MerkleProof, message, scope *big.Int, forcedDepth int) (*CircuitInputs, int, error) {
	if message == nil || scope == nil {
		return nil, 0, errors.New("message and scope are required")
	}
	hashedMessage, err := HashField(message)
	if err != nil {
		return nil, 0, fmt.Errorf("message: %w", err)
	}
	hashedScope, err := HashField(scope)
	if err != nil {
		return nil, 0, fmt.Errorf("scope: %w", err)
	}
	length := len(mp.Siblings)
	depth := forcedDepth
	if depth == 0 {
		depth = max(MinDepth, length)
	}
	if depth < MinDepth || depth > MaxDepth {
		return nil, 0, fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidDepth, depth, MinDepth, MaxDepth)
	}
	if depth < length {
		return nil, 0, fmt.Errorf("%w: depth %d is smaller than the merkle proof length %d", ErrInvalidDepth, depth, length)
	}

	siblings := make([]*big.Int, depth)
	for i := range siblings {
		if i < length {
			siblings[i] = new(big.Int).Set(mp.Siblings[i])
		} else {
			siblings[i] = new(big.Int)
		}
	}
	return &CircuitInputs{
		Secret:              new(big.Int).Set(id.SecretScalar),
		MerkleProofLength:   length,
		MerkleProofIndex:    mp.Index,
		MerkleProofSiblings: siblings,
		Message:             hashedMessage,
		Scope:               hashedScope,
	}, depth, nil
}

func checkPublicSignals(public, expected []string) error {
	if len(public) != len(expected) {
		return fmt.Errorf("%w: expected %d signals, got %d", ErrPublicSignalsMismatch, len(expected), len(public))
	}
	names := []string{"merkleTreeRoot", "nullifier", "message", "scope"}
	for i := range expected {
		got, err := utils.ParseBigInt(public[i])
		if err != nil || got.String() != expected[i] {
			return fmt.Errorf("%w: %s is %s, expected %s", ErrPublicSignalsMismatch, names[i], public[i], expected[i])
		}
	}
	return nil
}
