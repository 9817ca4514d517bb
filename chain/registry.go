package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Registry binds AnonOwnershipRegistry. claimOwnership records the first
// proof for an object hash; proveOwnership accepts any later valid proof.
type Registry struct {
	contract
}

func NewRegistry(addr common.Address, client *Client) *Registry {
	return &Registry{contract: newContract(addr, &RegistryABI, client)}
}

func (r *Registry) ClaimOwnership(ctx context.Context, objectHash common.Hash, depth, root, nullifier *big.Int, points [8]*big.Int) (*types.Receipt, error) {
	return r.send(ctx, "claimOwnership", objectHash, depth, root, nullifier, points)
}

func (r *Registry) ProveOwnership(ctx context.Context, objectHash common.Hash, depth, root, nullifier *big.Int, points [8]*big.Int) (*types.Receipt, error) {
	return r.send(ctx, "proveOwnership", objectHash, depth, root, nullifier, points)
}

func (r *Registry) Claimed(ctx context.Context, objectHash common.Hash) (bool, error) {
	out, err := r.call(ctx, "claimed", objectHash)
	if err != nil {
		return false, err
	}
	claimed, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("claimed: unexpected output %T", out[0])
	}
	return claimed, nil
}
