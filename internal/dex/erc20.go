package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"swapEngine/internal/chain"
)

// BalanceOf returns the ERC20 balance of owner at the latest block.
func BalanceOf(ctx context.Context, caller chain.ContractCaller, token common.Address, owner common.Address) (*big.Int, error) {
	if caller == nil {
		return nil, fmt.Errorf("contract caller is nil")
	}
	erc20, err := ERC20ABI()
	if err != nil {
		return nil, err
	}
	values, err := callMethod(ctx, caller, token, erc20, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	bal, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf unexpected type %T", values[0])
	}
	return bal, nil
}

// Allowance returns how much spender may move on behalf of owner.
func Allowance(ctx context.Context, caller chain.ContractCaller, token, owner, spender common.Address) (*big.Int, error) {
	if caller == nil {
		return nil, fmt.Errorf("contract caller is nil")
	}
	erc20, err := ERC20ABI()
	if err != nil {
		return nil, err
	}
	values, err := callMethod(ctx, caller, token, erc20, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	allowance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("allowance unexpected type %T", values[0])
	}
	return allowance, nil
}

// PackApprove encodes approve(spender, amount) calldata.
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	erc20, err := ERC20ABI()
	if err != nil {
		return nil, err
	}
	data, err := erc20.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("pack approve: %w", err)
	}
	return data, nil
}
