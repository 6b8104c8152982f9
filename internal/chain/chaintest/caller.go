// Package chaintest provides an in-memory contract caller for tests.
package chaintest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Handler answers one eth_call. args are the unpacked method inputs.
type Handler func(args []interface{}) ([]interface{}, error)

type route struct {
	method abi.Method
	handle Handler
}

// Caller dispatches eth_call requests by target address and method selector.
type Caller struct {
	mu     sync.Mutex
	routes map[common.Address]map[[4]byte]route
	calls  map[string]int
}

// NewCaller returns an empty fake.
func NewCaller() *Caller {
	return &Caller{
		routes: make(map[common.Address]map[[4]byte]route),
		calls:  make(map[string]int),
	}
}

// Handle registers a handler for method of parsed at address to.
func (c *Caller) Handle(to common.Address, parsed abi.ABI, method string, handle Handler) {
	m, ok := parsed.Methods[method]
	if !ok {
		panic(fmt.Sprintf("chaintest: unknown method %s", method))
	}
	var selector [4]byte
	copy(selector[:], m.ID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.routes[to] == nil {
		c.routes[to] = make(map[[4]byte]route)
	}
	c.routes[to][selector] = route{method: m, handle: handle}
}

// Return registers a handler that always answers with values.
func (c *Caller) Return(to common.Address, parsed abi.ABI, method string, values ...interface{}) {
	c.Handle(to, parsed, method, func([]interface{}) ([]interface{}, error) {
		return values, nil
	})
}

// Fail registers a handler that always fails with err.
func (c *Caller) Fail(to common.Address, parsed abi.ABI, method string, err error) {
	c.Handle(to, parsed, method, func([]interface{}) ([]interface{}, error) {
		return nil, err
	})
}

// Calls reports how often method was invoked on to.
func (c *Caller) Calls(to common.Address, method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[callKey(to, method)]
}

// CallContract implements chain.ContractCaller.
func (c *Caller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, fmt.Errorf("chaintest: malformed call")
	}
	var selector [4]byte
	copy(selector[:], msg.Data[:4])

	c.mu.Lock()
	r, ok := c.routes[*msg.To][selector]
	if ok {
		c.calls[callKey(*msg.To, r.method.Name)]++
	}
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("execution reverted: no handler for %s %x", msg.To.Hex(), selector)
	}

	args, err := r.method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, fmt.Errorf("chaintest: unpack %s: %w", r.method.Name, err)
	}
	out, err := r.handle(args)
	if err != nil {
		return nil, err
	}
	return r.method.Outputs.Pack(out...)
}

func callKey(to common.Address, method string) string {
	return to.Hex() + "/" + method
}

// Backend adds gas price suggestions to Caller.
type Backend struct {
	*Caller
	GasPrice    *big.Int
	GasPriceErr error
}

// NewBackend returns a Backend suggesting gasPrice.
func NewBackend(gasPrice *big.Int) *Backend {
	return &Backend{Caller: NewCaller(), GasPrice: gasPrice}
}

// SuggestGasPrice returns the configured price.
func (b *Backend) SuggestGasPrice(context.Context) (*big.Int, error) {
	if b.GasPriceErr != nil {
		return nil, b.GasPriceErr
	}
	return new(big.Int).Set(b.GasPrice), nil
}
