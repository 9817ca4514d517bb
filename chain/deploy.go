package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

const PoseidonT3Library = "poseidon-solidity/PoseidonT3.sol:PoseidonT3"

type SemaphoreDeployment struct {
	PoseidonT3 common.Address
	Verifier   common.Address
	Semaphore  common.Address
}

// DeployArtifact deploys the named artifact with linked libraries and
// constructor arguments.
func DeployArtifact(ctx context.Context, c *Client, artifactsDir, name string, libs map[string]common.Address, args ...any) (common.Address, error) {
	art, err := LoadArtifact(artifactsDir, name)
	if err != nil {
		return common.Address{}, err
	}
	data, err := art.DeployData(libs, args...)
	if err != nil {
		return common.Address{}, err
	}
	addr, _, err := c.Deploy(ctx, data)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to deploy %s: %w", name, err)
	}
	return addr, nil
}

// DeploySemaphore deploys PoseidonT3, SemaphoreVerifier and Semaphore linked
// against that PoseidonT3.
func DeploySemaphore(ctx context.Context, c *Client, artifactsDir string, logger zerolog.Logger) (*SemaphoreDeployment, error) {
	var (
		d   SemaphoreDeployment
		err error
	)

	logger.Info().Msg("deploying Poseidon library")
	if d.PoseidonT3, err = DeployArtifact(ctx, c, artifactsDir, "PoseidonT3", nil); err != nil {
		return nil, err
	}
	logger.Info().Str("address", d.PoseidonT3.Hex()).Msg("PoseidonT3 deployed")

	logger.Info().Msg("deploying verifier")
	if d.Verifier, err = DeployArtifact(ctx, c, artifactsDir, "SemaphoreVerifier", nil); err != nil {
		return nil, err
	}
	logger.Info().Str("address", d.Verifier.Hex()).Msg("SemaphoreVerifier deployed")

	logger.Info().Msg("deploying Semaphore")
	libs := map[string]common.Address{PoseidonT3Library: d.PoseidonT3}
	if d.Semaphore, err = DeployArtifact(ctx, c, artifactsDir, "Semaphore", libs, d.Verifier); err != nil {
		return nil, err
	}
	logger.Info().Str("address", d.Semaphore.Hex()).Msg("Semaphore deployed")
	return &d, nil
}

func DeployRegistry(ctx context.Context, c *Client, artifactsDir string, semaphore common.Address, groupID *big.Int) (common.Address, error) {
	return DeployArtifact(ctx, c, artifactsDir, "AnonOwnershipRegistry", nil, semaphore, groupID)
}

// Deployer deploys the project contracts from one hardhat artifacts tree.
type Deployer struct {
	Client       *Client
	ArtifactsDir string
	Logger       zerolog.Logger
}

func (d *Deployer) DeploySemaphore(ctx context.Context) (*SemaphoreDeployment, error) {
	return DeploySemaphore(ctx, d.Client, d.ArtifactsDir, d.Logger)
}

func (d *Deployer) DeployRegistry(ctx context.Context, semaphore common.Address, groupID *big.Int) (common.Address, error) {
	d.Logger.Info().Str("semaphore", semaphore.Hex()).Str("groupId", groupID.String()).Msg("deploying AnonOwnershipRegistry")
	return DeployRegistry(ctx, d.Client, d.ArtifactsDir, semaphore, groupID)
}
