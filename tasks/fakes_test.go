package tasks

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/kysee/anon-ownership/chain"
	"github.com/kysee/anon-ownership/proof"
	"github.com/kysee/anon-ownership/utils"
	"github.com/stretchr/testify/require"
)

var (
	semaphoreAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	registryAddr  = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	adminAddr     = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
)

type fakeDeployer struct {
	dep      *chain.SemaphoreDeployment
	err      error
	registry common.Address

	regSemaphore common.Address
	regGroupID   *big.Int
}

func (f *fakeDeployer) DeploySemaphore(context.Context) (*chain.SemaphoreDeployment, error) {
	return f.dep, f.err
}

func (f *fakeDeployer) DeployRegistry(_ context.Context, semaphore common.Address, groupID *big.Int) (common.Address, error) {
	f.regSemaphore, f.regGroupID = semaphore, groupID
	return f.registry, f.err
}

type fakeSemaphore struct {
	groupID  *big.Int
	adminErr error

	size, depth, root *big.Int
	members           []*big.Int
	membersErr        error

	created  []common.Address
	duration *big.Int
	added    []*big.Int
	batches  []int
}

func (f *fakeSemaphore) CreateGroup(_ context.Context, admin common.Address, duration *big.Int) (*big.Int, error) {
	f.created = append(f.created, admin)
	f.duration = duration
	return f.groupID, nil
}

func (f *fakeSemaphore) GroupAdmin(context.Context, *big.Int) (common.Address, error) {
	if f.adminErr != nil {
		return common.Address{}, f.adminErr
	}
	return adminAddr, nil
}

func (f *fakeSemaphore) MerkleTreeDepth(context.Context, *big.Int) (*big.Int, error) {
	return f.depth, nil
}

func (f *fakeSemaphore) MerkleTreeSize(context.Context, *big.Int) (*big.Int, error) {
	return f.size, nil
}

func (f *fakeSemaphore) MerkleTreeRoot(context.Context, *big.Int) (*big.Int, error) {
	return f.root, nil
}

func (f *fakeSemaphore) Members(context.Context, *big.Int, uint64) ([]*big.Int, error) {
	return f.members, f.membersErr
}

func (f *fakeSemaphore) AddMember(_ context.Context, _ *big.Int, commitment *big.Int) (*types.Receipt, error) {
	f.added = append(f.added, commitment)
	f.batches = append(f.batches, 1)
	return &types.Receipt{TxHash: common.HexToHash("0xadd"), BlockNumber: big.NewInt(1)}, nil
}

func (f *fakeSemaphore) AddMembers(_ context.Context, _ *big.Int, commitments []*big.Int) (*types.Receipt, error) {
	f.added = append(f.added, commitments...)
	f.batches = append(f.batches, len(commitments))
	return &types.Receipt{TxHash: common.HexToHash("0xadd5"), BlockNumber: big.NewInt(1)}, nil
}

type sentTx struct {
	method     string
	objectHash common.Hash
	depth      *big.Int
	root       *big.Int
	nullifier  *big.Int
	points     [8]*big.Int
}

type fakeRegistry struct {
	claimed  bool
	claimErr error
	sent     []sentTx
}

func (f *fakeRegistry) record(method string, objectHash common.Hash, depth, root, nullifier *big.Int, points [8]*big.Int) *types.Receipt {
	f.sent = append(f.sent, sentTx{method, objectHash, depth, root, nullifier, points})
	return &types.Receipt{
		TxHash:      common.BigToHash(big.NewInt(int64(len(f.sent)))),
		BlockNumber: big.NewInt(int64(10 + len(f.sent))),
		Status:      types.ReceiptStatusSuccessful,
	}
}

func (f *fakeRegistry) ClaimOwnership(_ context.Context, objectHash common.Hash, depth, root, nullifier *big.Int, points [8]*big.Int) (*types.Receipt, error) {
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	return f.record("claim", objectHash, depth, root, nullifier, points), nil
}

func (f *fakeRegistry) ProveOwnership(_ context.Context, objectHash common.Hash, depth, root, nullifier *big.Int, points [8]*big.Int) (*types.Receipt, error) {
	return f.record("prove", objectHash, depth, root, nullifier, points), nil
}

func (f *fakeRegistry) Claimed(context.Context, common.Hash) (bool, error) {
	return f.claimed, nil
}

func (f *fakeRegistry) methods() []string {
	var ret []string
	for _, s := range f.sent {
		ret = append(ret, s.method)
	}
	return ret
}

// fakeProver returns a fixed proof with the public signals the circuit would
// output for root.
type fakeProver struct {
	root     *big.Int
	calls    int
	depth    []int
	siblings []int
	lengths  []int
}

func (f *fakeProver) Prove(_ context.Context, in *proof.CircuitInputs, art proof.Artifacts) (*proof.SnarkJSProof, []string, error) {
	f.calls++
	f.depth = append(f.depth, art.Depth)
	f.siblings = append(f.siblings, len(in.MerkleProofSiblings))
	f.lengths = append(f.lengths, in.MerkleProofLength)
	if f.root == nil {
		return nil, nil, errors.New("prover has no root")
	}
	nullifier, err := utils.PoseidonHash(in.Scope, in.Secret)
	if err != nil {
		return nil, nil, err
	}
	public := []string{f.root.String(), nullifier.String(), in.Message.String(), in.Scope.String()}
	return &proof.SnarkJSProof{
		PiA:      []string{"1", "2", "1"},
		PiB:      [][]string{{"3", "4"}, {"5", "6"}, {"1", "0"}},
		PiC:      []string{"7", "8", "1"},
		Protocol: "groth16",
	}, public, nil
}

func snarkArtifacts(t *testing.T, depths ...int) string {
	t.Helper()
	dir := t.TempDir()
	for _, d := range depths {
		for _, ext := range []string{".wasm", ".zkey"} {
			name := filepath.Join(dir, fmt.Sprintf("semaphore-%d%s", d, ext))
			require.NoError(t, os.WriteFile(name, []byte("{}"), 0600))
		}
	}
	return dir
}
