package model

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultDeadlineSeconds applies when a TradeIntent carries no deadline.
const DefaultDeadlineSeconds uint64 = 1800

// MaxSlippageBps is the upper bound for slippage tolerance.
const MaxSlippageBps uint32 = 10000

// TradeIntent describes an exact-input trade request in human units.
type TradeIntent struct {
	FromToken       common.Address `json:"from_token"`
	ToToken         common.Address `json:"to_token"`
	Amount          string         `json:"amount"`
	SlippageBps     *uint32        `json:"slippage_bps,omitempty"`
	DeadlineSeconds uint64         `json:"deadline_seconds,omitempty"`
	Recipient       common.Address `json:"recipient,omitempty"`
}

// RouteLeg is one hop sequence through a single protocol.
type RouteLeg struct {
	Protocol  string            `json:"protocol"`
	TokenPath []TokenDescriptor `json:"token_path"`
	PoolFees  []uint32          `json:"pool_fees"`
	Pools     []common.Address  `json:"pools"`
}

// ExecutionPayload is the transaction needed to execute a route.
type ExecutionPayload struct {
	To       common.Address `json:"to"`
	Calldata string         `json:"calldata"`
	Value    string         `json:"value"`
}

// RouteQuote is a priced, executable route for a TradeIntent.
type RouteQuote struct {
	FromToken          TokenDescriptor  `json:"from_token"`
	ToToken            TokenDescriptor  `json:"to_token"`
	AmountIn           string           `json:"amount_in"`
	AmountInRaw        string           `json:"amount_in_raw"`
	ExpectedOutput     string           `json:"expected_output"`
	ExpectedOutputRaw  string           `json:"expected_output_raw"`
	MinimumOutputRaw   string           `json:"minimum_output_raw"`
	RouteLegs          []RouteLeg       `json:"route"`
	EstimatedGasUnits  uint64           `json:"estimated_gas"`
	GasPriceWei        string           `json:"gas_price_wei"`
	PriceImpactPercent string           `json:"price_impact"`
	SlippageBps        uint32           `json:"slippage_bps"`
	Deadline           time.Time        `json:"deadline"`
	Payload            ExecutionPayload `json:"method_parameters"`
}

// Expired reports whether the quote deadline has passed at now.
func (q RouteQuote) Expired(now time.Time) bool {
	return !q.Deadline.IsZero() && now.After(q.Deadline)
}

// AmountInWei parses AmountInRaw.
func (q RouteQuote) AmountInWei() (*big.Int, error) {
	return parseBig("amount_in_raw", q.AmountInRaw)
}

// GasPrice parses GasPriceWei; an empty value yields nil.
func (q RouteQuote) GasPrice() (*big.Int, error) {
	if q.GasPriceWei == "" {
		return nil, nil
	}
	return parseBig("gas_price_wei", q.GasPriceWei)
}

// PayloadValue parses the payload value; an empty value yields zero.
func (q RouteQuote) PayloadValue() (*big.Int, error) {
	if q.Payload.Value == "" {
		return new(big.Int), nil
	}
	return parseBig("value", q.Payload.Value)
}

func parseBig(field, value string) (*big.Int, error) {
	out, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s: %q", field, value)
	}
	return out, nil
}

// SwapReceipt records a confirmed swap.
type SwapReceipt struct {
	TransactionID      string         `json:"transaction_hash"`
	ApprovalTxID       string         `json:"approval_tx_hash,omitempty"`
	BlockNumber        uint64         `json:"block_number"`
	GasUsed            uint64         `json:"gas_used"`
	EffectiveGasPrice  string         `json:"effective_gas_price"`
	FromToken          common.Address `json:"from_token"`
	ToToken            common.Address `json:"to_token"`
	AmountIn           string         `json:"amount_in"`
	EstimatedAmountOut string         `json:"estimated_out"`
	ExecutedAt         time.Time      `json:"executed_at"`
}
