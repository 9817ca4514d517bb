package chain

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var errExecutionReverted = errors.New("execution reverted")

// fakeBackend is an in-memory node: calls are answered per selector, every
// sent transaction is mined at once in its own block.
type fakeBackend struct {
	mu sync.Mutex

	chainID *big.Int
	baseFee *big.Int
	nonce   uint64

	calls        map[string]func(data []byte) ([]byte, error)
	revertGas    map[string]bool
	revertMined  map[string]bool
	pendingPolls int

	sent     []*types.Transaction
	receipts map[common.Hash]*types.Receipt
	logs     []types.Log
	filter   ethereum.FilterQuery
	closed   bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		chainID:     big.NewInt(31337),
		baseFee:     big.NewInt(1_000_000_000),
		calls:       map[string]func([]byte) ([]byte, error){},
		revertGas:   map[string]bool{},
		revertMined: map[string]bool{},
		receipts:    map[common.Hash]*types.Receipt{},
	}
}

func selector(to *common.Address, data []byte) string {
	if to == nil {
		return "create"
	}
	if len(data) < 4 {
		return ""
	}
	return hex.EncodeToString(data[:4])
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.chainID), nil
}

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := &types.Header{Number: big.NewInt(int64(len(f.sent)))}
	if f.baseFee != nil {
		h.BaseFee = new(big.Int).Set(f.baseFee)
	}
	return h, nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonce, nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(2_000_000_000), nil
}

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(100_000_000), nil
}

func (f *fakeBackend) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revertGas[selector(msg.To, msg.Data)] {
		return 0, errExecutionReverted
	}
	return 100_000, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	from, err := types.Sender(types.LatestSignerForChainID(f.chainID), tx)
	if err != nil {
		return err
	}
	f.sent = append(f.sent, tx)
	receipt := &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		BlockNumber: big.NewInt(int64(len(f.sent))),
		GasUsed:     tx.Gas() / 2,
	}
	if f.revertMined[selector(tx.To(), tx.Data())] {
		receipt.Status = types.ReceiptStatusFailed
	}
	if tx.To() == nil {
		receipt.ContractAddress = crypto.CreateAddress(from, tx.Nonce())
	}
	f.receipts[tx.Hash()] = receipt
	f.nonce++
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pendingPolls > 0 {
		f.pendingPolls--
		return nil, ethereum.NotFound
	}
	r, ok := f.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	h, ok := f.calls[selector(msg.To, msg.Data)]
	f.mu.Unlock()
	if !ok {
		return nil, errExecutionReverted
	}
	return h(msg.Data)
}

func (f *fakeBackend) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter = q
	return append([]types.Log{}, f.logs...), nil
}

// every address holds some code
func (f *fakeBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60, 0x00}, nil
}

func (f *fakeBackend) PendingCodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	return f.CodeAt(ctx, addr, nil)
}

func (f *fakeBackend) SubscribeFilterLogs(context.Context, ethereum.FilterQuery, chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("subscriptions not supported")
}

func (f *fakeBackend) Close() {
	f.closed = true
}

func (f *fakeBackend) sentSelectors() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ret := make([]string, len(f.sent))
	for i, tx := range f.sent {
		ret[i] = selector(tx.To(), tx.Data())
	}
	return ret
}

func newTestClient(t *testing.T, fb *fakeBackend) (*Client, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	c, err := NewClient(context.Background(), fb, key, zerolog.Nop())
	require.NoError(t, err)
	return c, key
}

// returns answers a call with the packed outputs of method.
func returns(t *testing.T, method string, vals ...any) func([]byte) ([]byte, error) {
	return func([]byte) ([]byte, error) {
		m, ok := SemaphoreABI.Methods[method]
		if !ok {
			m, ok = RegistryABI.Methods[method]
		}
		require.True(t, ok, method)
		return m.Outputs.Pack(vals...)
	}
}
