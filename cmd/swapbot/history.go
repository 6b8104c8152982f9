package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"swapEngine/internal/model"
)

func runHistory(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd, appNeeds{storage: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if a.receipts == nil {
		return fmt.Errorf("no journal configured")
	}
	receipts, err := a.receipts.Receipts(ctx, limit)
	if err != nil {
		return err
	}
	if receipts == nil {
		receipts = []model.SwapReceipt{}
	}
	return writeJSON(cmd.OutOrStdout(), receipts)
}
