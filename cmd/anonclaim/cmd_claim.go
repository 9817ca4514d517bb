package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kysee/anon-ownership/chain"
	"github.com/kysee/anon-ownership/config"
	"github.com/kysee/anon-ownership/identity"
	"github.com/kysee/anon-ownership/objecthash"
	"github.com/kysee/anon-ownership/proof"
	"github.com/kysee/anon-ownership/store"
	"github.com/kysee/anon-ownership/tasks"
	"github.com/spf13/cobra"
)

const (
	demoObject = `{"a":1,"b":2,"nested":{"x":["y",3]}}`

	keyfilePasswordEnv = "ANONCLAIM_KEYFILE_PASSWORD"
)

type claimFlags struct {
	object    string
	keyfile   string
	fromBlock uint64
}

func (f *claimFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.object, "object", "", "object to claim: inline JSON or a JSON file")
	cmd.Flags().StringVar(&f.keyfile, "keyfile", "", "identity keyfile (password from "+keyfilePasswordEnv+"); defaults to USER_ID_SEED")
	cmd.Flags().Uint64Var(&f.fromBlock, "from-block", 0, "first block scanned for group member events")
}

func (a *app) claimCmd() *cobra.Command {
	var flags claimFlags
	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Claim an object, then prove ownership with a fresh proof",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runClaim(cmd, flags, demoObject, (*tasks.Claimer).ClaimAndProve)
		},
	}
	flags.register(cmd)
	return cmd
}

func (a *app) claimOrProveCmd() *cobra.Command {
	var flags claimFlags
	cmd := &cobra.Command{
		Use:   "claim-or-prove",
		Short: "Prove ownership of a claimed object, or claim it first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			def := fmt.Sprintf(`{"title":"My New Document","version":2,"metadata":{"author":"anonymous","timestamp":%d}}`, time.Now().UnixMilli())
			return a.runClaim(cmd, flags, def, (*tasks.Claimer).ClaimOrProve)
		},
	}
	flags.register(cmd)
	return cmd
}

type claimFunc func(*tasks.Claimer, context.Context, *identity.Identity, common.Hash) (*tasks.ClaimResult, error)

func (a *app) runClaim(cmd *cobra.Command, flags claimFlags, defaultObject string, run claimFunc) error {
	ctx := cmd.Context()
	groupID, err := a.cfg.GroupIDInt()
	if err != nil {
		return err
	}
	semaphoreAddr, err := a.cfg.SemaphoreAddr()
	if err != nil {
		return err
	}
	id, err := a.loadIdentity(flags.keyfile)
	if err != nil {
		return err
	}

	data, err := readObject(flags.object, defaultObject, cmd.InOrStdin())
	if err != nil {
		return err
	}
	canonical, err := objecthash.CanonicalizeJSON(data)
	if err != nil {
		return fmt.Errorf("invalid object: %w", err)
	}
	objectHash := objecthash.Sum(canonical)
	a.logger.Info().RawJSON("json", canonical).Msg("object")

	claimer := &tasks.Claimer{
		GroupID:           groupID,
		SemaphoreAddress:  semaphoreAddr,
		SnarkArtifactsDir: a.cfg.SnarkArtifactsDir,
		ForcedDepth:       a.cfg.MerkleTreeDepth,
		FromBlock:         flags.fromBlock,
		Logger:            a.logger,
	}

	registryAddr, err := a.cfg.RegistryAddr()
	if errors.Is(err, config.ErrMissingConfig) {
		// the claimer logs the configuration and refuses
		_, err = run(claimer, ctx, id, objectHash)
		return err
	} else if err != nil {
		return err
	}
	claimer.RegistryAddress = registryAddr

	verifier, err := proof.NewVerifier(a.cfg.LocalVerifier)
	if err != nil {
		return err
	}
	claimer.Verifier = verifier
	claimer.Prover = proof.NewSnarkJSProver(a.cfg.SnarkJSBin, a.logger)

	c, err := a.dial(ctx)
	if err != nil {
		return err
	}
	defer c.Close()
	claimer.Semaphore = chain.NewSemaphore(semaphoreAddr, c, a.logger)
	claimer.Registry = chain.NewRegistry(registryAddr, c)

	if journal, err := store.Open(ctx, a.cfg.ClaimsDB); err != nil {
		a.logger.Warn().Err(err).Str("path", a.cfg.ClaimsDB).Msg("claims journal unavailable")
	} else {
		defer journal.Close()
		claimer.Journal = journal
	}

	res, err := run(claimer, ctx, id, objectHash)
	if err != nil {
		return err
	}
	if res != nil {
		a.logger.Info().Str("object", res.ObjectHash.Hex()).Bool("alreadyClaimed", res.AlreadyClaimed).Msg("done")
	}
	return nil
}

func (a *app) loadIdentity(keyfile string) (*identity.Identity, error) {
	if keyfile != "" {
		return identity.LoadKeyfile(keyfile, os.Getenv(keyfilePasswordEnv))
	}
	seed, err := a.cfg.Seed()
	if err != nil {
		return nil, err
	}
	return identity.New(seed)
}

// loadIdentities opens every keyfile and derives every seed, falling back to
// the configured identity when both are empty.
func (a *app) loadIdentities(keyfiles, seeds []string) ([]*identity.Identity, error) {
	if len(keyfiles) == 0 && len(seeds) == 0 {
		id, err := a.loadIdentity("")
		if err != nil {
			return nil, err
		}
		return []*identity.Identity{id}, nil
	}
	ids := make([]*identity.Identity, 0, len(keyfiles)+len(seeds))
	for _, kf := range keyfiles {
		id, err := a.loadIdentity(kf)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kf, err)
		}
		ids = append(ids, id)
	}
	for _, seed := range seeds {
		id, err := identity.New(seed)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// readObject returns inline JSON as is, reads stdin for "-" and otherwise
// reads arg as a file.
func readObject(arg, def string, stdin io.Reader) ([]byte, error) {
	s := strings.TrimSpace(arg)
	switch {
	case s == "":
		return []byte(def), nil
	case s == "-":
		return io.ReadAll(stdin)
	case strings.HasPrefix(s, "{") || strings.HasPrefix(s, "["):
		return []byte(s), nil
	}
	bz, err := os.ReadFile(s) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return bz, nil
}
