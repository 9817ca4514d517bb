package chain

import (
	"context"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

const (
	selClaimOwnership = "03443bc7"
	selProveOwnership = "af27b017"
	selClaimed        = "cc3c0f06"
)

var registryAddr = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")

func testPoints() [8]*big.Int {
	var p [8]*big.Int
	for i := range p {
		p[i] = big.NewInt(int64(100 + i))
	}
	return p
}

func TestRegistrySelectors(t *testing.T) {
	require.Equal(t, selClaimOwnership, hex.EncodeToString(RegistryABI.Methods["claimOwnership"].ID))
	require.Equal(t, selProveOwnership, hex.EncodeToString(RegistryABI.Methods["proveOwnership"].ID))
	require.Equal(t, selClaimed, hex.EncodeToString(RegistryABI.Methods["claimed"].ID))
}

func TestClaimAndProveOwnership(t *testing.T) {
	fb := newFakeBackend()
	c, _ := newTestClient(t, fb)
	r := NewRegistry(registryAddr, c)
	ctx := context.Background()

	objectHash := common.HexToHash("0xea21670bdb34c04b0edb05e13518acf667e4144eb001b56333b9985e0a4edc79")
	depth, root, nullifier := big.NewInt(1), big.NewInt(1234), big.NewInt(5678)

	_, err := r.ClaimOwnership(ctx, objectHash, depth, root, nullifier, testPoints())
	require.NoError(t, err)
	_, err = r.ProveOwnership(ctx, objectHash, depth, root, nullifier, testPoints())
	require.NoError(t, err)
	require.Equal(t, []string{selClaimOwnership, selProveOwnership}, fb.sentSelectors())

	args, err := RegistryABI.Methods["claimOwnership"].Inputs.Unpack(fb.sent[0].Data()[4:])
	require.NoError(t, err)
	require.Equal(t, [32]byte(objectHash), args[0])
	require.Equal(t, depth, args[1])
	require.Equal(t, root, args[2])
	require.Equal(t, nullifier, args[3])
	require.Equal(t, testPoints(), args[4])

	fb.revertMined[selProveOwnership] = true
	_, err = r.ProveOwnership(ctx, objectHash, depth, root, nullifier, testPoints())
	require.ErrorIs(t, err, ErrReverted)
	require.ErrorContains(t, err, "proveOwnership")
}

func TestClaimed(t *testing.T) {
	fb := newFakeBackend()
	claimed := map[common.Hash]bool{common.HexToHash("0x01"): true}
	fb.calls[selClaimed] = func(data []byte) ([]byte, error) {
		args, err := RegistryABI.Methods["claimed"].Inputs.Unpack(data[4:])
		if err != nil {
			return nil, err
		}
		return RegistryABI.Methods["claimed"].Outputs.Pack(claimed[common.Hash(args[0].([32]byte))])
	}
	c, _ := newTestClient(t, fb)
	r := NewRegistry(registryAddr, c)

	ok, err := r.Claimed(context.Background(), common.HexToHash("0x01"))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = r.Claimed(context.Background(), common.HexToHash("0x02"))
	require.NoError(t, err)
	require.False(t, ok)
}
