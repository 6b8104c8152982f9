package routing

import (
	"context"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"swapEngine/internal/chain"
)

type abiPacker interface {
	Pack(name string, args ...interface{}) ([]byte, error)
	Unpack(name string, data []byte) ([]interface{}, error)
}

func call(ctx context.Context, caller chain.ContractCaller, to common.Address, data []byte) ([]byte, error) {
	return caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
}
