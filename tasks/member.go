package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/kysee/anon-ownership/identity"
	"github.com/rs/zerolog"
)

var ErrNoMembers = errors.New("no identities to add")

type MemberAdder interface {
	AddMember(ctx context.Context, groupID, commitment *big.Int) (*types.Receipt, error)
	AddMembers(ctx context.Context, groupID *big.Int, commitments []*big.Int) (*types.Receipt, error)
}

// AddMembers registers ids in the group, one addMember transaction for a
// single identity and one addMembers batch otherwise.
func AddMembers(ctx context.Context, s MemberAdder, groupID *big.Int, ids []*identity.Identity, out io.Writer, logger zerolog.Logger) error {
	if len(ids) == 0 {
		return ErrNoMembers
	}
	commitments := make([]*big.Int, len(ids))
	seen := make(map[string]bool, len(ids))
	for i, id := range ids {
		key := id.Commitment.String()
		if seen[key] {
			return fmt.Errorf("duplicate commitment %s", key)
		}
		seen[key] = true
		commitments[i] = id.Commitment
	}
	logger.Info().Str("groupId", groupID.String()).Int("count", len(commitments)).Msg("adding members")

	var (
		receipt *types.Receipt
		err     error
	)
	if len(commitments) == 1 {
		receipt, err = s.AddMember(ctx, groupID, commitments[0])
	} else {
		receipt, err = s.AddMembers(ctx, groupID, commitments)
	}
	if err != nil {
		return fmt.Errorf("failed to add members: %w", err)
	}
	logger.Info().Str("tx", receipt.TxHash.Hex()).Msg("members added")

	for _, c := range commitments {
		fmt.Fprintf(out, "Added member. Commitment: %s\n", c)
	}
	fmt.Fprintln(out, "Keep the seed or keyfile safe; it reproduces the same identity.")
	return nil
}
