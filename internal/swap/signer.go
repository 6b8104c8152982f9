package swap

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TxRequest is an unsigned transaction. Zero GasLimit or nil GasPrice let the signer fill them.
type TxRequest struct {
	To       common.Address
	Data     []byte
	Value    *big.Int
	GasLimit uint64
	GasPrice *big.Int
}

// TxReceipt is the confirmation of a mined transaction.
type TxReceipt struct {
	Hash              common.Hash
	BlockNumber       uint64
	GasUsed           uint64
	EffectiveGasPrice *big.Int
	// Status is 1 on success and 0 on revert.
	Status uint64
}

// Succeeded reports whether the transaction executed without reverting.
func (r *TxReceipt) Succeeded() bool {
	return r != nil && r.Status == 1
}

// Signer is the wallet capability the executor needs.
type Signer interface {
	Address() common.Address
	SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error)
	WaitForTransaction(ctx context.Context, hash common.Hash) (*TxReceipt, error)
}
