package model

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NativeTokenAddress is the pseudo-address used for the chain's native asset.
var NativeTokenAddress = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

// NativeDecimals is the precision of the native asset.
const NativeDecimals uint8 = 18

// DefaultDecimals is assumed when a token's decimals cannot be read.
const DefaultDecimals uint8 = 18

// TokenDescriptor captures resolved ERC20 metadata.
type TokenDescriptor struct {
	Address  common.Address `json:"address"`
	Decimals uint8          `json:"decimals"`
	Symbol   string         `json:"symbol"`
}

// IsNative reports whether the descriptor refers to the native asset.
func (t TokenDescriptor) IsNative() bool {
	return IsNative(t.Address)
}

// Label returns the symbol when known, otherwise the hex address.
func (t TokenDescriptor) Label() string {
	if strings.TrimSpace(t.Symbol) != "" {
		return t.Symbol
	}
	return t.Address.Hex()
}

// IsNative reports whether address is the native asset pseudo-address.
func IsNative(address common.Address) bool {
	return address == NativeTokenAddress
}
