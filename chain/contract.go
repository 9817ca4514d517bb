package chain

import (
	"bytes"
	"context"
	"embed"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

//go:embed abis/*.json
var abiFS embed.FS

var (
	SemaphoreABI = mustLoadABI("abis/Semaphore.json")
	RegistryABI  = mustLoadABI("abis/AnonOwnershipRegistry.json")
)

func mustLoadABI(name string) abi.ABI {
	bz, err := abiFS.ReadFile(name)
	if err != nil {
		panic(err)
	}
	parsed, err := abi.JSON(bytes.NewReader(bz))
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}
	return parsed
}

// methodBySig finds a method by its canonical signature, which also resolves
// overloads such as createGroup(address).
func methodBySig(a *abi.ABI, sig string) (abi.Method, error) {
	for _, m := range a.Methods {
		if m.Sig == sig {
			return m, nil
		}
	}
	return abi.Method{}, fmt.Errorf("no method %s in abi", sig)
}

// PackSig packs a call to the method with signature sig.
func PackSig(a *abi.ABI, sig string, args ...any) ([]byte, error) {
	m, err := methodBySig(a, sig)
	if err != nil {
		return nil, err
	}
	in, err := m.Inputs.Pack(args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sig, err)
	}
	return append(append([]byte{}, m.ID...), in...), nil
}

type contract struct {
	Address common.Address
	abi     *abi.ABI
	client  *Client
	bound   *bind.BoundContract
}

func newContract(addr common.Address, a *abi.ABI, client *Client) contract {
	return contract{Address: addr, abi: a, client: client, bound: client.bound(addr, a)}
}

func (c *contract) call(ctx context.Context, method string, args ...any) ([]any, error) {
	var ret []any
	if err := c.bound.Call(c.client.callOpts(ctx), &ret, method, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return ret, nil
}

func (c *contract) send(ctx context.Context, method string, args ...any) (*types.Receipt, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	return c.sendData(ctx, method, data)
}

func (c *contract) sendData(ctx context.Context, name string, data []byte) (*types.Receipt, error) {
	receipt, err := c.client.SendAndWait(ctx, &c.Address, data)
	if err != nil {
		return receipt, fmt.Errorf("%s: %w", name, err)
	}
	return receipt, nil
}
