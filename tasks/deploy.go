// Package tasks holds the end-to-end flows run by the anonclaim commands:
// deploying the contracts, registering a member and claiming objects.
package tasks

import (
	"context"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kysee/anon-ownership/chain"
	"github.com/rs/zerolog"
)

type Deployer interface {
	DeploySemaphore(ctx context.Context) (*chain.SemaphoreDeployment, error)
	DeployRegistry(ctx context.Context, semaphore common.Address, groupID *big.Int) (common.Address, error)
}

type GroupManager interface {
	CreateGroup(ctx context.Context, admin common.Address, duration *big.Int) (*big.Int, error)
	GroupAdmin(ctx context.Context, groupID *big.Int) (common.Address, error)
	MerkleTreeDepth(ctx context.Context, groupID *big.Int) (*big.Int, error)
	MerkleTreeSize(ctx context.Context, groupID *big.Int) (*big.Int, error)
}

// DeploySemaphore deploys Semaphore, creates a group administered by admin
// and writes the .env lines for the new deployment to out.
func DeploySemaphore(ctx context.Context, d Deployer, open func(common.Address) GroupManager, admin common.Address, duration uint64, out io.Writer, logger zerolog.Logger) (*chain.SemaphoreDeployment, *big.Int, error) {
	logger.Info().Str("deployer", admin.Hex()).Msg("deploying semaphore")
	dep, err := d.DeploySemaphore(ctx)
	if err != nil {
		return nil, nil, err
	}

	sem := open(dep.Semaphore)
	groupID, err := sem.CreateGroup(ctx, admin, new(big.Int).SetUint64(duration))
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Str("groupId", groupID.String()).Str("admin", admin.Hex()).Msg("group created")

	logGroupInfo(ctx, sem, groupID, logger)

	fmt.Fprintln(out, "# add these to your .env file")
	fmt.Fprintf(out, "SEMAPHORE_ADDRESS=%s\n", dep.Semaphore.Hex())
	fmt.Fprintf(out, "GROUP_ID=%s\n", groupID)
	return dep, groupID, nil
}

// logGroupInfo is informational only; read failures are logged.
func logGroupInfo(ctx context.Context, sem GroupManager, groupID *big.Int, logger zerolog.Logger) {
	admin, err := sem.GroupAdmin(ctx, groupID)
	if err != nil {
		logger.Warn().Err(err).Msg("could not fetch group info")
		return
	}
	depth, err := sem.MerkleTreeDepth(ctx, groupID)
	if err != nil {
		logger.Warn().Err(err).Msg("could not fetch group info")
		return
	}
	size, err := sem.MerkleTreeSize(ctx, groupID)
	if err != nil {
		logger.Warn().Err(err).Msg("could not fetch group info")
		return
	}
	logger.Info().
		Str("admin", admin.Hex()).
		Str("depth", depth.String()).
		Str("size", size.String()).
		Msg("group info")
}

func DeployRegistry(ctx context.Context, d Deployer, semaphore common.Address, groupID *big.Int, out io.Writer, logger zerolog.Logger) (common.Address, error) {
	addr, err := d.DeployRegistry(ctx, semaphore, groupID)
	if err != nil {
		return common.Address{}, err
	}
	logger.Info().Str("address", addr.Hex()).Msg("AnonOwnershipRegistry deployed")
	fmt.Fprintf(out, "REGISTRY_ADDRESS=%s\n", addr.Hex())
	return addr, nil
}
