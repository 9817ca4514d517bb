package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

var (
	ErrReverted   = errors.New("transaction reverted")
	ErrNoContract = errors.New("receipt has no contract address")
)

// gas estimates are raised by this percentage before sending
const gasMarginPercent = 120

// Backend is the part of ethclient.Client the commands need: everything the
// bind package uses plus the chain id.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

// Client sends transactions from a single key and waits for them one by one.
type Client struct {
	backend Backend
	auth    *bind.TransactOpts

	From    common.Address
	ChainID *big.Int

	logger zerolog.Logger
}

// Dial connects to rpcURL and signs with the hex private key.
func Dial(ctx context.Context, rpcURL, privateKeyHex string, logger zerolog.Logger) (*Client, error) {
	key, err := ParsePrivateKey(privateKeyHex)
	if err != nil {
		return nil, err
	}
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", rpcURL, err)
	}
	c, err := NewClient(ctx, ec, key, logger)
	if err != nil {
		ec.Close()
		return nil, err
	}
	return c, nil
}

func NewClient(ctx context.Context, backend Backend, key *ecdsa.PrivateKey, logger zerolog.Logger) (*Client, error) {
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}
	auth := bind.NewKeyedTransactor(key, chainID)
	return &Client{
		backend: backend,
		auth:    auth,
		From:    auth.From,
		ChainID: chainID,
		logger:  logger,
	}, nil
}

func ParsePrivateKey(s string) (*ecdsa.PrivateKey, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return nil, errors.New("private key is empty")
	}
	key, err := crypto.HexToECDSA(s)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

func (c *Client) Backend() Backend {
	return c.backend
}

func (c *Client) Close() {
	c.backend.Close()
}

// transactOpts returns a copy of the keyed transactor bound to ctx, with the
// gas limit set to the estimate for the call plus a margin.
func (c *Client) transactOpts(ctx context.Context, to *common.Address, data []byte) (*bind.TransactOpts, error) {
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: c.From, To: to, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}
	opts := *c.auth
	opts.Context = ctx
	opts.GasLimit = gas * gasMarginPercent / 100
	return &opts, nil
}

// Transact signs and sends a transaction calling to with data, or creating a
// contract when to is nil. Fees follow the bind package: EIP-1559 when the
// chain reports a base fee, legacy otherwise. It does not wait for the
// receipt.
func (c *Client) Transact(ctx context.Context, to *common.Address, data []byte) (*types.Transaction, error) {
	opts, err := c.transactOpts(ctx, to, data)
	if err != nil {
		return nil, err
	}

	var tx *types.Transaction
	if to == nil {
		_, tx, err = bind.DeployContract(opts, data, c.backend, nil)
	} else {
		tx, err = bind.Transact(c.bound(*to, nil), opts, data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}
	c.logger.Debug().
		Str("tx", tx.Hash().Hex()).
		Uint64("nonce", tx.Nonce()).
		Uint64("gas", tx.Gas()).
		Msg("transaction sent")
	return tx, nil
}

// Wait waits for the receipt of tx. A reverted transaction returns its
// receipt together with ErrReverted.
func (c *Client) Wait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, c.backend, tx.Hash())
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s", ErrReverted, tx.Hash().Hex())
	}
	c.logger.Debug().
		Str("tx", tx.Hash().Hex()).
		Uint64("block", receipt.BlockNumber.Uint64()).
		Uint64("gasUsed", receipt.GasUsed).
		Msg("transaction mined")
	return receipt, nil
}

// SendAndWait is Transact followed by Wait.
func (c *Client) SendAndWait(ctx context.Context, to *common.Address, data []byte) (*types.Receipt, error) {
	tx, err := c.Transact(ctx, to, data)
	if err != nil {
		return nil, err
	}
	return c.Wait(ctx, tx)
}

// Deploy creates a contract from code (bytecode followed by the packed
// constructor arguments).
func (c *Client) Deploy(ctx context.Context, code []byte) (common.Address, *types.Receipt, error) {
	receipt, err := c.SendAndWait(ctx, nil, code)
	if err != nil {
		return common.Address{}, receipt, err
	}
	if receipt.ContractAddress == (common.Address{}) {
		return common.Address{}, receipt, ErrNoContract
	}
	return receipt.ContractAddress, receipt, nil
}

func (c *Client) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return c.bound(to, nil).CallRaw(c.callOpts(ctx), data)
}

func (c *Client) callOpts(ctx context.Context) *bind.CallOpts {
	return &bind.CallOpts{Context: ctx, From: c.From}
}

// bound binds addr to this client's backend. a may be nil for raw calls.
func (c *Client) bound(addr common.Address, a *abi.ABI) *bind.BoundContract {
	var parsed abi.ABI
	if a != nil {
		parsed = *a
	}
	return bind.NewBoundContract(addr, parsed, c.backend, c.backend, c.backend)
}
