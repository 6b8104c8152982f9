package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"swapEngine/internal/chain"
	"swapEngine/internal/model"
)

// PoolState is the live on-chain state of a V3 pool.
type PoolState struct {
	Address      common.Address
	Token0       common.Address
	Token1       common.Address
	Fee          uint32
	TickSpacing  int32
	Liquidity    *big.Int
	SqrtPriceX96 *big.Int
	Tick         int32
}

// FetchPoolState loads immutable pool metadata plus liquidity and slot0 at the latest block.
func FetchPoolState(ctx context.Context, caller chain.ContractCaller, pool common.Address) (PoolState, error) {
	if caller == nil {
		return PoolState{}, fmt.Errorf("contract caller is nil")
	}

	poolABI, err := V3PoolABI()
	if err != nil {
		return PoolState{}, fmt.Errorf("parse pool abi: %w", err)
	}

	state := PoolState{Address: pool}

	values, err := callMethod(ctx, caller, pool, poolABI, "token0")
	if err != nil {
		return PoolState{}, err
	}
	if state.Token0, err = asAddress(values[0]); err != nil {
		return PoolState{}, fmt.Errorf("token0: %w", err)
	}

	values, err = callMethod(ctx, caller, pool, poolABI, "token1")
	if err != nil {
		return PoolState{}, err
	}
	if state.Token1, err = asAddress(values[0]); err != nil {
		return PoolState{}, fmt.Errorf("token1: %w", err)
	}

	values, err = callMethod(ctx, caller, pool, poolABI, "fee")
	if err != nil {
		return PoolState{}, err
	}
	feeInt, err := asBigInt(values[0])
	if err != nil {
		return PoolState{}, fmt.Errorf("fee: %w", err)
	}
	state.Fee = uint32(feeInt.Uint64())

	values, err = callMethod(ctx, caller, pool, poolABI, "tickSpacing")
	if err != nil {
		return PoolState{}, err
	}
	tickSpacingInt, err := asBigInt(values[0])
	if err != nil {
		return PoolState{}, fmt.Errorf("tick spacing: %w", err)
	}
	if state.TickSpacing, err = int24FromBig(tickSpacingInt); err != nil {
		return PoolState{}, fmt.Errorf("tick spacing: %w", err)
	}

	values, err = callMethod(ctx, caller, pool, poolABI, "liquidity")
	if err != nil {
		return PoolState{}, err
	}
	if state.Liquidity, err = asBigInt(values[0]); err != nil {
		return PoolState{}, fmt.Errorf("liquidity: %w", err)
	}

	sqrtPrice, tick, err := FetchSlot0(ctx, caller, pool)
	if err != nil {
		return PoolState{}, err
	}
	state.SqrtPriceX96 = sqrtPrice
	state.Tick = tick

	return state, nil
}

// FetchSlot0 returns the current sqrt price and tick of a pool.
func FetchSlot0(ctx context.Context, caller chain.ContractCaller, pool common.Address) (*big.Int, int32, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, 0, fmt.Errorf("parse pool abi: %w", err)
	}
	values, err := callMethod(ctx, caller, pool, poolABI, "slot0")
	if err != nil {
		return nil, 0, err
	}
	if len(values) < 2 {
		return nil, 0, fmt.Errorf("slot0: short result")
	}
	sqrt, err := asBigInt(values[0])
	if err != nil {
		return nil, 0, fmt.Errorf("slot0 sqrt price: %w", err)
	}
	tickInt, err := asBigInt(values[1])
	if err != nil {
		return nil, 0, fmt.Errorf("slot0 tick: %w", err)
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return nil, 0, fmt.Errorf("slot0 tick: %w", err)
	}
	return sqrt, tick, nil
}

func callMethod(ctx context.Context, caller chain.ContractCaller, to common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return values, nil
}

// FetchTokenMeta loads token decimals and symbol via ERC20 calls.
// A failing symbol call is not an error; the symbol is left empty.
func FetchTokenMeta(ctx context.Context, caller chain.ContractCaller, token common.Address, logger *zap.Logger) (model.TokenDescriptor, error) {
	meta := model.TokenDescriptor{Address: token}
	if caller == nil {
		return meta, fmt.Errorf("contract caller is nil")
	}

	stringABI, err := ERC20ABI()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	values, err := callMethod(ctx, caller, token, stringABI, "decimals")
	if err != nil {
		return meta, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return meta, err
	}
	meta.Decimals = decimals

	if values, err := callMethod(ctx, caller, token, stringABI, "symbol"); err == nil {
		if symbol, ok := values[0].(string); ok {
			meta.Symbol = symbol
		}
	} else if values, err := callMethod(ctx, caller, token, bytes32ABI, "symbol"); err == nil {
		if symbol, ok := bytes32ToString(values[0]); ok {
			meta.Symbol = symbol
		}
	} else if logger != nil {
		logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	return meta, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case uint16:
		return uint8(v), nil
	case uint32:
		return uint8(v), nil
	case uint64:
		return uint8(v), nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}

func int24FromBig(value *big.Int) (int32, error) {
	min := big.NewInt(-1 << 23)
	max := big.NewInt((1 << 23) - 1)
	if value.Cmp(min) < 0 || value.Cmp(max) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value.String())
	}
	return int32(value.Int64()), nil
}
