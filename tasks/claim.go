package tasks

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/kysee/anon-ownership/group"
	"github.com/kysee/anon-ownership/identity"
	"github.com/kysee/anon-ownership/objecthash"
	"github.com/kysee/anon-ownership/proof"
	"github.com/kysee/anon-ownership/store"
	"github.com/rs/zerolog"
)

// DefaultForcedDepth is the smallest depth the Semaphore verifier accepts.
const DefaultForcedDepth = 1

var ErrRegistryUnset = errors.New("OWNERSHIP_REGISTRY_ADDRESS not set")

type GroupReader interface {
	MerkleTreeSize(ctx context.Context, groupID *big.Int) (*big.Int, error)
	MerkleTreeDepth(ctx context.Context, groupID *big.Int) (*big.Int, error)
	MerkleTreeRoot(ctx context.Context, groupID *big.Int) (*big.Int, error)
	Members(ctx context.Context, groupID *big.Int, fromBlock uint64) ([]*big.Int, error)
}

type OwnershipRegistry interface {
	ClaimOwnership(ctx context.Context, objectHash common.Hash, depth, root, nullifier *big.Int, points [8]*big.Int) (*types.Receipt, error)
	ProveOwnership(ctx context.Context, objectHash common.Hash, depth, root, nullifier *big.Int, points [8]*big.Int) (*types.Receipt, error)
	Claimed(ctx context.Context, objectHash common.Hash) (bool, error)
}

type Journal interface {
	Record(ctx context.Context, e store.Entry) (bool, error)
}

// Claimer runs the claim and prove flows for one identity against one group.
type Claimer struct {
	Semaphore GroupReader
	// Registry is nil when no registry address is configured.
	Registry OwnershipRegistry
	Prover   proof.Prover
	Verifier proof.Verifier
	// Journal is optional.
	Journal Journal

	GroupID           *big.Int
	SemaphoreAddress  common.Address
	RegistryAddress   common.Address
	SnarkArtifactsDir string
	// ForcedDepth is the circuit depth passed on chain. It is raised when the
	// local group is deeper.
	ForcedDepth int
	// FromBlock bounds the member log scan.
	FromBlock uint64

	Logger zerolog.Logger
}

type ClaimResult struct {
	ObjectHash common.Hash
	// AlreadyClaimed is set when the object was claimed before this run and
	// only proveOwnership was sent.
	AlreadyClaimed bool
	Claim          *types.Receipt
	Prove          *types.Receipt
}

// ClaimAndProve claims objectHash and then proves ownership with a second,
// fresh proof.
func (c *Claimer) ClaimAndProve(ctx context.Context, id *identity.Identity, objectHash common.Hash) (*ClaimResult, error) {
	g, ok, err := c.prepare(ctx, id, objectHash)
	if err != nil || !ok {
		return nil, err
	}

	res := &ClaimResult{ObjectHash: objectHash}
	if res.Claim, err = c.submit(ctx, store.KindClaim, id, g, objectHash); err != nil {
		return nil, err
	}
	if res.Prove, err = c.submit(ctx, store.KindProve, id, g, objectHash); err != nil {
		return nil, err
	}
	return res, nil
}

// ClaimOrProve proves ownership of an object that is already claimed, and
// otherwise behaves like ClaimAndProve.
func (c *Claimer) ClaimOrProve(ctx context.Context, id *identity.Identity, objectHash common.Hash) (*ClaimResult, error) {
	g, ok, err := c.prepare(ctx, id, objectHash)
	if err != nil || !ok {
		return nil, err
	}

	fp, err := c.generate(ctx, id, g, objectHash)
	if err != nil {
		return nil, err
	}

	claimed, err := c.Registry.Claimed(ctx, objectHash)
	if err != nil {
		c.Logger.Error().Err(err).Msg("failed to read claim status")
		return nil, err
	}
	c.Logger.Info().Bool("claimed", claimed).Str("object", objectHash.Hex()).Msg("claim status")

	res := &ClaimResult{ObjectHash: objectHash, AlreadyClaimed: claimed}
	if claimed {
		c.Logger.Warn().Msg("object already claimed, proving ownership instead")
		if res.Prove, err = c.send(ctx, store.KindProve, objectHash, fp); err != nil {
			return nil, err
		}
		return res, nil
	}

	if res.Claim, err = c.send(ctx, store.KindClaim, objectHash, fp); err != nil {
		return nil, err
	}
	if res.Prove, err = c.submit(ctx, store.KindProve, id, g, objectHash); err != nil {
		return nil, err
	}
	return res, nil
}

// prepare logs the configuration and on-chain group state and builds the
// local group. ok is false when the flow is refused.
func (c *Claimer) prepare(ctx context.Context, id *identity.Identity, objectHash common.Hash) (*group.Group, bool, error) {
	if c.GroupID == nil {
		return nil, false, errors.New("group id is required")
	}
	c.Logger.Info().
		Str("groupId", c.GroupID.String()).
		Str("registry", c.RegistryAddress.Hex()).
		Str("semaphore", c.SemaphoreAddress.Hex()).
		Msg("configuration")

	if c.Registry == nil {
		c.Logger.Error().Err(ErrRegistryUnset).Msg("run deploy-registry first and set OWNERSHIP_REGISTRY_ADDRESS")
		return nil, false, nil
	}
	c.Logger.Info().Str("commitment", id.Commitment.String()).Msg("identity")

	size, err := c.Semaphore.MerkleTreeSize(ctx, c.GroupID)
	if err != nil {
		return nil, false, err
	}
	depth, err := c.Semaphore.MerkleTreeDepth(ctx, c.GroupID)
	if err != nil {
		return nil, false, err
	}
	root, err := c.Semaphore.MerkleTreeRoot(ctx, c.GroupID)
	if err != nil {
		return nil, false, err
	}
	c.Logger.Info().
		Str("size", size.String()).
		Str("depth", depth.String()).
		Str("root", root.String()).
		Msg("on-chain group")

	g, err := c.localGroup(ctx, id)
	if err != nil {
		return nil, false, err
	}
	c.Logger.Info().Int("size", g.Size()).Str("root", g.Root().String()).Msg("local group")
	if g.Root().Cmp(root) != 0 {
		c.Logger.Warn().Msg("local group root differs from the on-chain root")
	}

	c.Logger.Info().Str("hash", objectHash.Hex()).Msg("object")
	return g, true, nil
}

// localGroup mirrors the on-chain group from its member logs. When the logs
// cannot be read or do not contain the identity, the group holds only the
// identity's own commitment.
func (c *Claimer) localGroup(ctx context.Context, id *identity.Identity) (*group.Group, error) {
	leaves, err := c.Semaphore.Members(ctx, c.GroupID, c.FromBlock)
	if err != nil {
		c.Logger.Warn().Err(err).Msg("could not read group members, using own commitment only")
		return group.New(id.Commitment)
	}
	g, err := group.FromLeaves(leaves)
	if err != nil {
		c.Logger.Warn().Err(err).Msg("could not rebuild group, using own commitment only")
		return group.New(id.Commitment)
	}
	if g.IndexOf(id.Commitment) < 0 {
		c.Logger.Warn().Msg("identity is not in the on-chain member logs, using own commitment only")
		return group.New(id.Commitment)
	}
	return g, nil
}

func (c *Claimer) forcedDepth(g *group.Group) int {
	depth := c.ForcedDepth
	if depth == 0 {
		depth = DefaultForcedDepth
	}
	if g.Depth() > depth {
		c.Logger.Warn().Int("forced", depth).Int("group", g.Depth()).Msg("group is deeper than the forced depth")
		depth = g.Depth()
	}
	return depth
}

// generate proves membership with the object hash as both message and scope.
func (c *Claimer) generate(ctx context.Context, id *identity.Identity, g *group.Group, objectHash common.Hash) (*proof.FullProof, error) {
	field := objecthash.ToField(objectHash)
	fp, err := proof.Generate(ctx, c.Prover, id, g, field, field, proof.GenerateOptions{
		Depth:        c.forcedDepth(g),
		ArtifactsDir: c.SnarkArtifactsDir,
		Verifier:     c.Verifier,
		Logger:       c.Logger,
	})
	if err != nil {
		c.Logger.Error().Err(err).Msg("failed to generate proof")
		return nil, err
	}
	c.Logger.Info().
		Str("root", fp.MerkleTreeRoot.String()).
		Str("nullifier", fp.Nullifier.String()).
		Msg("proof generated")
	return fp, nil
}

// submit generates a fresh proof and sends it.
func (c *Claimer) submit(ctx context.Context, kind store.Kind, id *identity.Identity, g *group.Group, objectHash common.Hash) (*types.Receipt, error) {
	fp, err := c.generate(ctx, id, g, objectHash)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, kind, objectHash, fp)
}

func (c *Claimer) send(ctx context.Context, kind store.Kind, objectHash common.Hash, fp *proof.FullProof) (*types.Receipt, error) {
	send := c.Registry.ClaimOwnership
	if kind == store.KindProve {
		send = c.Registry.ProveOwnership
	}
	depth := big.NewInt(int64(fp.MerkleTreeDepth))
	c.Logger.Info().Str("action", string(kind)).Int("depth", fp.MerkleTreeDepth).Str("object", objectHash.Hex()).Msg("sending")

	receipt, err := send(ctx, objectHash, depth, fp.MerkleTreeRoot, fp.Nullifier, fp.Points.BigInts())
	if err != nil {
		c.Logger.Error().Err(err).Str("action", string(kind)).Msg("transaction failed")
		return nil, fmt.Errorf("%s %s: %w", kind, objectHash.Hex(), err)
	}
	c.Logger.Info().Str("action", string(kind)).Str("tx", receipt.TxHash.Hex()).Msg("transaction mined")

	if c.Journal != nil {
		e := store.Entry{
			Kind:       kind,
			ObjectHash: objectHash,
			Nullifier:  fp.Nullifier,
			MerkleRoot: fp.MerkleTreeRoot,
			Depth:      fp.MerkleTreeDepth,
			TxHash:     receipt.TxHash,
		}
		if receipt.BlockNumber != nil {
			e.BlockNumber = receipt.BlockNumber.Uint64()
		}
		if _, err := c.Journal.Record(ctx, e); err != nil {
			c.Logger.Warn().Err(err).Msg("failed to record transaction in the journal")
		}
	}
	return receipt, nil
}
