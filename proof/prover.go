package proof

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// waitDelay bounds how long a canceled snarkjs may hold its output pipes.
const waitDelay = 2 * time.Second

// Prover produces a groth16 proof and its public signals for the Semaphore
// circuit. Proving itself is done by an external tool.
type Prover interface {
	Prove(ctx context.Context, inputs *CircuitInputs, art Artifacts) (*SnarkJSProof, []string, error)
}

// SnarkJSProver runs `snarkjs groth16 fullprove`. Bin may carry a launcher,
// e.g. "npx snarkjs".
type SnarkJSProver struct {
	Bin    string
	Logger zerolog.Logger
}

func NewSnarkJSProver(bin string, logger zerolog.Logger) *SnarkJSProver {
	if strings.TrimSpace(bin) == "" {
		bin = "snarkjs"
	}
	return &SnarkJSProver{Bin: bin, Logger: logger}
}

func (p *SnarkJSProver) Prove(ctx context.Context, inputs *CircuitInputs, art Artifacts) (*SnarkJSProof, []string, error) {
	workDir, err := os.MkdirTemp("", "anon-ownership-prove-*")
	if err != nil {
		return nil, nil, err
	}
	defer os.RemoveAll(workDir)

	inputPath := filepath.Join(workDir, "input.json")
	proofPath := filepath.Join(workDir, "proof.json")
	publicPath := filepath.Join(workDir, "public.json")

	bz, err := json.Marshal(inputs)
	if err != nil {
		return nil, nil, err
	}
	if err := os.WriteFile(inputPath, bz, 0600); err != nil {
		return nil, nil, err
	}

	argv := strings.Fields(p.Bin)
	if len(argv) == 0 {
		return nil, nil, errors.New("snarkjs binary is not set")
	}
	args := append(argv[1:], "groth16", "fullprove", inputPath, art.Wasm, art.Zkey, proofPath, publicPath)
	cmd := exec.CommandContext(ctx, argv[0], args...)
	cmd.WaitDelay = waitDelay

	p.Logger.Debug().Str("bin", p.Bin).Int("depth", art.Depth).Msg("running snarkjs fullprove")
	start := time.Now()
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, nil, fmt.Errorf("snarkjs fullprove failed (exit %d): %s", exitErr.ExitCode(), strings.TrimSpace(string(out)))
		}
		return nil, nil, fmt.Errorf("failed to run snarkjs: %w", err)
	}
	p.Logger.Debug().Dur("elapsed", time.Since(start)).Msg("snarkjs fullprove done")

	proof, err := readProof(proofPath)
	if err != nil {
		return nil, nil, err
	}
	public, err := readPublicSignals(publicPath)
	if err != nil {
		return nil, nil, err
	}
	return proof, public, nil
}
