package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
)

var ErrCreateGroup = errors.New("all createGroup attempts failed")

// createGroupAttempts is the order in which the createGroup overloads are
// tried. Semaphore versions differ in which ones they expose.
var createGroupAttempts = []string{
	"createGroup(address,uint256)",
	"createGroup(address)",
	"createGroup(address,uint256)",
}

type Semaphore struct {
	contract
	logger zerolog.Logger
}

func NewSemaphore(addr common.Address, client *Client, logger zerolog.Logger) *Semaphore {
	return &Semaphore{
		contract: newContract(addr, &SemaphoreABI, client),
		logger:   logger,
	}
}

// CreateGroup creates a group administered by admin and returns its id,
// read back as groupCounter() - 1.
func (s *Semaphore) CreateGroup(ctx context.Context, admin common.Address, duration *big.Int) (*big.Int, error) {
	var errs []error
	for _, sig := range createGroupAttempts {
		args := []any{admin}
		if sig == "createGroup(address,uint256)" {
			args = append(args, duration)
		}
		s.logger.Info().Str("method", sig).Msg("creating group")

		data, err := PackSig(s.abi, sig, args...)
		if err != nil {
			return nil, err
		}
		if _, err := s.sendData(ctx, sig, data); err != nil {
			s.logger.Warn().Err(err).Str("method", sig).Msg("createGroup failed")
			errs = append(errs, err)
			continue
		}

		counter, err := s.GroupCounter(ctx)
		if err != nil {
			return nil, err
		}
		if counter.Sign() == 0 {
			return nil, errors.New("group counter is zero after createGroup")
		}
		groupID := new(big.Int).Sub(counter, big.NewInt(1))
		s.logger.Info().Str("groupId", groupID.String()).Msg("group created")
		return groupID, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrCreateGroup, errors.Join(errs...))
}

func (s *Semaphore) GroupCounter(ctx context.Context) (*big.Int, error) {
	return s.callUint(ctx, "groupCounter")
}

func (s *Semaphore) AddMember(ctx context.Context, groupID, commitment *big.Int) (*types.Receipt, error) {
	return s.send(ctx, "addMember", groupID, commitment)
}

func (s *Semaphore) AddMembers(ctx context.Context, groupID *big.Int, commitments []*big.Int) (*types.Receipt, error) {
	return s.send(ctx, "addMembers", groupID, commitments)
}

func (s *Semaphore) MerkleTreeSize(ctx context.Context, groupID *big.Int) (*big.Int, error) {
	return s.callUint(ctx, "getMerkleTreeSize", groupID)
}

func (s *Semaphore) MerkleTreeDepth(ctx context.Context, groupID *big.Int) (*big.Int, error) {
	return s.callUint(ctx, "getMerkleTreeDepth", groupID)
}

func (s *Semaphore) MerkleTreeRoot(ctx context.Context, groupID *big.Int) (*big.Int, error) {
	return s.callUint(ctx, "getMerkleTreeRoot", groupID)
}

func (s *Semaphore) GroupAdmin(ctx context.Context, groupID *big.Int) (common.Address, error) {
	out, err := s.call(ctx, "getGroupAdmin", groupID)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("getGroupAdmin: unexpected output %T", out[0])
	}
	return addr, nil
}

func (s *Semaphore) HasMember(ctx context.Context, groupID, commitment *big.Int) (bool, error) {
	out, err := s.call(ctx, "hasMember", groupID, commitment)
	if err != nil {
		return false, err
	}
	ok, isBool := out[0].(bool)
	if !isBool {
		return false, fmt.Errorf("hasMember: unexpected output %T", out[0])
	}
	return ok, nil
}

func (s *Semaphore) callUint(ctx context.Context, method string, args ...any) (*big.Int, error) {
	out, err := s.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected output %T", method, out[0])
	}
	return v, nil
}

// Members replays the member events of the group from fromBlock and returns
// the leaves in tree order. Removed members are zero.
func (s *Semaphore) Members(ctx context.Context, groupID *big.Int, fromBlock uint64) ([]*big.Int, error) {
	events := []string{"MemberAdded", "MembersAdded", "MemberUpdated", "MemberRemoved"}
	topics := make([]common.Hash, len(events))
	for i, name := range events {
		topics[i] = s.abi.Events[name].ID
	}
	logs, err := s.client.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		Addresses: []common.Address{s.Address},
		Topics:    [][]common.Hash{topics, {common.BigToHash(groupID)}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to filter member logs: %w", err)
	}
	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].Index < logs[j].Index
	})

	var leaves []*big.Int
	set := func(index *big.Int, v *big.Int) error {
		if !index.IsInt64() || index.Int64() > int64(len(leaves)) {
			return fmt.Errorf("member index %s out of order", index)
		}
		i := int(index.Int64())
		if i == len(leaves) {
			leaves = append(leaves, new(big.Int).Set(v))
		} else {
			leaves[i] = new(big.Int).Set(v)
		}
		return nil
	}

	for _, l := range logs {
		if l.Removed || len(l.Topics) == 0 {
			continue
		}
		ev, err := s.abi.EventByID(l.Topics[0])
		if err != nil {
			continue
		}
		out, err := s.abi.Unpack(ev.Name, l.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s log: %w", ev.Name, err)
		}
		switch ev.Name {
		case "MemberAdded":
			err = set(out[0].(*big.Int), out[1].(*big.Int))
		case "MembersAdded":
			start := out[0].(*big.Int)
			for i, c := range out[1].([]*big.Int) {
				if err = set(new(big.Int).Add(start, big.NewInt(int64(i))), c); err != nil {
					break
				}
			}
		case "MemberUpdated":
			err = set(out[0].(*big.Int), out[2].(*big.Int))
		case "MemberRemoved":
			err = set(out[0].(*big.Int), new(big.Int))
		}
		if err != nil {
			return nil, fmt.Errorf("%s in block %d: %w", ev.Name, l.BlockNumber, err)
		}
	}
	return leaves, nil
}
