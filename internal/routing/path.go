package routing

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// EncodePath packs a V3 path as token | fee(3 bytes) | token ...
func EncodePath(tokens []common.Address, fees []uint32) ([]byte, error) {
	if len(tokens) < 2 || len(fees) != len(tokens)-1 {
		return nil, fmt.Errorf("path: %d tokens with %d fees", len(tokens), len(fees))
	}
	out := make([]byte, 0, len(tokens)*common.AddressLength+len(fees)*3)
	for i, token := range tokens {
		out = append(out, token.Bytes()...)
		if i < len(fees) {
			fee := fees[i]
			if fee >= 1<<24 {
				return nil, fmt.Errorf("path: fee %d overflows uint24", fee)
			}
			out = append(out, byte(fee>>16), byte(fee>>8), byte(fee))
		}
	}
	return out, nil
}

// DecodePath is the inverse of EncodePath.
func DecodePath(path []byte) ([]common.Address, []uint32, error) {
	const hop = common.AddressLength + 3
	if len(path) < common.AddressLength || (len(path)-common.AddressLength)%hop != 0 {
		return nil, nil, fmt.Errorf("path: invalid length %d", len(path))
	}
	var (
		tokens []common.Address
		fees   []uint32
	)
	offset := 0
	for {
		tokens = append(tokens, common.BytesToAddress(path[offset:offset+common.AddressLength]))
		offset += common.AddressLength
		if offset == len(path) {
			break
		}
		fees = append(fees, uint32(path[offset])<<16|uint32(path[offset+1])<<8|uint32(path[offset+2]))
		offset += 3
	}
	if len(tokens) < 2 {
		return nil, nil, fmt.Errorf("path: single token")
	}
	return tokens, fees, nil
}
