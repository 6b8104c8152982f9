// Package swap executes route quotes on chain: approval first, then the swap.
package swap

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"swapEngine/internal/chain"
	"swapEngine/internal/dex"
	"swapEngine/internal/model"
	"swapEngine/internal/observability"
	"swapEngine/internal/units"
)

// Options tunes an Executor.
type Options struct {
	// DefaultSigner is used when ExecuteSwap receives no signer.
	DefaultSigner Signer
	// ConfirmTimeout bounds each confirmation wait. Zero waits as long as ctx allows.
	ConfirmTimeout time.Duration
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	Now            func() time.Time
}

// Executor turns a RouteQuote into a confirmed swap.
type Executor struct {
	caller         chain.ContractCaller
	signer         Signer
	confirmTimeout time.Duration
	logger         *zap.Logger
	metrics        *observability.Metrics
	now            func() time.Time
}

// NewExecutor builds an Executor reading allowances through caller.
func NewExecutor(caller chain.ContractCaller, opts Options) *Executor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Executor{
		caller:         caller,
		signer:         opts.DefaultSigner,
		confirmTimeout: opts.ConfirmTimeout,
		logger:         logger,
		metrics:        opts.Metrics,
		now:            now,
	}
}

// HasDefaultSigner reports whether a default signer is configured.
func (e *Executor) HasDefaultSigner() bool {
	return e.signer != nil
}

// ExecuteSwap approves the router when needed and submits the quote's payload.
// Nothing is retried; a failed or expired quote must be re-quoted by the caller.
func (e *Executor) ExecuteSwap(ctx context.Context, quote *model.RouteQuote, signer Signer) (*model.SwapReceipt, error) {
	receipt, outcome, err := e.execute(ctx, quote, signer)
	var gasUsed uint64
	if receipt != nil {
		gasUsed = receipt.GasUsed
	}
	e.metrics.RecordSwap(outcome, gasUsed)
	return receipt, err
}

func (e *Executor) execute(ctx context.Context, quote *model.RouteQuote, signer Signer) (*model.SwapReceipt, string, error) {
	if signer == nil {
		signer = e.signer
	}
	if signer == nil {
		return nil, observability.SwapNoSigner, model.ErrNoSignerAvailable
	}
	if quote == nil {
		return nil, observability.SwapExecutionFailed, fmt.Errorf("%w: nil quote", model.ErrSwapExecutionFailed)
	}
	if quote.Expired(e.now()) {
		return nil, observability.SwapExpired, fmt.Errorf("%w: deadline %s", model.ErrQuoteExpired, quote.Deadline.Format(time.RFC3339))
	}

	amountIn, err := quote.AmountInWei()
	if err != nil {
		return nil, observability.SwapExecutionFailed, fmt.Errorf("%w: %w", model.ErrSwapExecutionFailed, err)
	}
	gasPrice, err := quote.GasPrice()
	if err != nil {
		return nil, observability.SwapExecutionFailed, fmt.Errorf("%w: %w", model.ErrSwapExecutionFailed, err)
	}
	value, err := quote.PayloadValue()
	if err != nil {
		return nil, observability.SwapExecutionFailed, fmt.Errorf("%w: %w", model.ErrSwapExecutionFailed, err)
	}
	calldata, err := hexutil.Decode(quote.Payload.Calldata)
	if err != nil {
		return nil, observability.SwapExecutionFailed, fmt.Errorf("%w: calldata: %w", model.ErrSwapExecutionFailed, err)
	}

	log := e.logger.With(
		zap.String("from", quote.FromToken.Label()),
		zap.String("to", quote.ToToken.Label()),
		zap.String("amount_in", quote.AmountIn),
		zap.String("owner", signer.Address().Hex()),
	)

	var approvalTx string
	if !quote.FromToken.IsNative() {
		hash, err := e.ensureAllowance(ctx, signer, quote.FromToken.Address, quote.Payload.To, amountIn, gasPrice, log)
		if err != nil {
			return nil, observability.SwapApprovalFailed, err
		}
		if hash != (common.Hash{}) {
			approvalTx = hash.Hex()
		}
	}

	// The approval wait can outlast the quote.
	if quote.Expired(e.now()) {
		log.Warn("quote expired before swap", zap.String("approval_tx", approvalTx), zap.Time("deadline", quote.Deadline))
		return nil, observability.SwapExpired, fmt.Errorf("%w: deadline %s passed after approval %s",
			model.ErrQuoteExpired, quote.Deadline.Format(time.RFC3339), approvalTx)
	}

	gasLimit := units.GasWithBuffer(quote.EstimatedGasUnits)
	hash, err := signer.SendTransaction(ctx, TxRequest{
		To:       quote.Payload.To,
		Data:     calldata,
		Value:    value,
		GasLimit: gasLimit,
		GasPrice: gasPrice,
	})
	if err != nil {
		return nil, observability.SwapExecutionFailed, fmt.Errorf("%w: send swap: %w", model.ErrSwapExecutionFailed, err)
	}
	log.Info("swap submitted", zap.String("tx", hash.Hex()), zap.Uint64("gas_limit", gasLimit))

	txReceipt, err := e.wait(ctx, signer, hash)
	if err != nil {
		return nil, observability.SwapExecutionFailed, fmt.Errorf("%w: wait swap %s: %w", model.ErrSwapExecutionFailed, hash.Hex(), err)
	}
	if !txReceipt.Succeeded() {
		return nil, observability.SwapExecutionFailed, fmt.Errorf("%w: swap %s reverted", model.ErrSwapExecutionFailed, hash.Hex())
	}

	effective := ""
	if txReceipt.EffectiveGasPrice != nil {
		effective = txReceipt.EffectiveGasPrice.String()
	}
	receipt := &model.SwapReceipt{
		TransactionID:      txReceipt.Hash.Hex(),
		ApprovalTxID:       approvalTx,
		BlockNumber:        txReceipt.BlockNumber,
		GasUsed:            txReceipt.GasUsed,
		EffectiveGasPrice:  effective,
		FromToken:          quote.FromToken.Address,
		ToToken:            quote.ToToken.Address,
		AmountIn:           quote.AmountIn,
		EstimatedAmountOut: quote.ExpectedOutput,
		ExecutedAt:         e.now().UTC(),
	}
	log.Info("swap confirmed",
		zap.String("tx", receipt.TransactionID),
		zap.Uint64("block", receipt.BlockNumber),
		zap.Uint64("gas_used", receipt.GasUsed),
	)
	return receipt, observability.SwapSuccess, nil
}

// ensureAllowance approves spender for exactly amount when the current allowance is short.
// It returns the approval hash, or a zero hash when no approval was needed.
func (e *Executor) ensureAllowance(ctx context.Context, signer Signer, token, spender common.Address, amount, gasPrice *big.Int, log *zap.Logger) (common.Hash, error) {
	if e.caller == nil {
		return common.Hash{}, fmt.Errorf("%w: contract caller is nil", model.ErrApprovalFailed)
	}
	owner := signer.Address()
	allowance, err := dex.Allowance(ctx, e.caller, token, owner, spender)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: read allowance: %w", model.ErrApprovalFailed, err)
	}
	if allowance.Cmp(amount) >= 0 {
		return common.Hash{}, nil
	}

	data, err := dex.PackApprove(spender, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %w", model.ErrApprovalFailed, err)
	}
	log.Info("approving router", zap.String("spender", spender.Hex()), zap.String("allowance", allowance.String()))
	hash, err := signer.SendTransaction(ctx, TxRequest{To: token, Data: data, Value: new(big.Int), GasPrice: gasPrice})
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: send approve: %w", model.ErrApprovalFailed, err)
	}
	e.metrics.RecordApproval()

	receipt, err := e.wait(ctx, signer, hash)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: wait approve %s: %w", model.ErrApprovalFailed, hash.Hex(), err)
	}
	if !receipt.Succeeded() {
		return common.Hash{}, fmt.Errorf("%w: approve %s reverted", model.ErrApprovalFailed, hash.Hex())
	}
	log.Info("approval confirmed", zap.String("tx", hash.Hex()))
	return hash, nil
}

func (e *Executor) wait(ctx context.Context, signer Signer, hash common.Hash) (*TxReceipt, error) {
	if e.confirmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.confirmTimeout)
		defer cancel()
	}
	receipt, err := signer.WaitForTransaction(ctx, hash)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, errors.New("no receipt")
	}
	return receipt, nil
}
