package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swapEngine/internal/model"
)

func tradeIntent(cmd *cobra.Command, deadline uint64) (model.TradeIntent, error) {
	fromInput, _ := cmd.Flags().GetString("from")
	toInput, _ := cmd.Flags().GetString("to")
	amount, _ := cmd.Flags().GetString("amount")
	recipientInput, _ := cmd.Flags().GetString("recipient")

	from, err := parseToken(fromInput)
	if err != nil {
		return model.TradeIntent{}, fmt.Errorf("from: %w", err)
	}
	to, err := parseToken(toInput)
	if err != nil {
		return model.TradeIntent{}, fmt.Errorf("to: %w", err)
	}
	intent := model.TradeIntent{
		FromToken:       from,
		ToToken:         to,
		Amount:          strings.TrimSpace(amount),
		DeadlineSeconds: deadline,
	}
	if recipientInput != "" {
		if !common.IsHexAddress(recipientInput) {
			return model.TradeIntent{}, fmt.Errorf("invalid recipient %q", recipientInput)
		}
		intent.Recipient = common.HexToAddress(recipientInput)
	}
	return intent, nil
}

func runQuote(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd, appNeeds{chain: true})
	if err != nil {
		return err
	}
	defer a.Close()

	intent, err := tradeIntent(cmd, a.cfg.DeadlineSeconds)
	if err != nil {
		return err
	}
	q, err := a.quotes.GetQuote(ctx, intent)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), q)
}

func runSwap(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd, appNeeds{chain: true, signer: true, storage: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if a.signer == nil {
		return fmt.Errorf("private key is required: %w", model.ErrNoSignerAvailable)
	}

	intent, err := tradeIntent(cmd, a.cfg.DeadlineSeconds)
	if err != nil {
		return err
	}
	if intent.Recipient == (common.Address{}) {
		intent.Recipient = a.signer.Address()
	}

	q, err := a.quotes.GetQuote(ctx, intent)
	if err != nil {
		return err
	}
	a.logger.Info("swap start",
		zap.String("from", q.FromToken.Label()),
		zap.String("to", q.ToToken.Label()),
		zap.String("amount_in", q.AmountIn),
		zap.String("expected_out", q.ExpectedOutput),
		zap.String("account", a.signer.Address().Hex()),
	)

	receipt, err := a.executor.ExecuteSwap(ctx, q, nil)
	if err != nil {
		return err
	}
	a.recordReceipt(ctx, receipt)
	return writeJSON(cmd.OutOrStdout(), receipt)
}
