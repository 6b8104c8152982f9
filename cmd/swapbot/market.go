package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"swapEngine/internal/market"
)

func runPool(cmd *cobra.Command, args []string) error {
	if !common.IsHexAddress(args[0]) {
		return fmt.Errorf("invalid pool address %q", args[0])
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd, appNeeds{chain: true, market: true})
	if err != nil {
		return err
	}
	defer a.Close()

	snapshot, err := a.market.AnalyzeLiquidity(ctx, common.HexToAddress(args[0]))
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), snapshot)
}

func runPools(cmd *cobra.Command, _ []string) error {
	count, _ := cmd.Flags().GetInt("count")
	orderBy, _ := cmd.Flags().GetString("order-by")
	if !market.ValidOrderField(orderBy) {
		return fmt.Errorf("%w: %q", market.ErrUnsupportedOrderField, orderBy)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd, appNeeds{market: true})
	if err != nil {
		return err
	}
	defer a.Close()

	pools, err := a.market.GetTopPools(ctx, count, orderBy)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), pools)
}

func runPrices(cmd *cobra.Command, args []string) error {
	currency, _ := cmd.Flags().GetString("currency")
	days, _ := cmd.Flags().GetInt("days")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd, appNeeds{market: true})
	if err != nil {
		return err
	}
	defer a.Close()

	points, err := a.market.GetHistoricalPrices(ctx, a.market.LookupAssetID(args[0]), currency, days)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), points)
}
