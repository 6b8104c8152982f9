package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "swapbot",
		Short:        "Uniswap V3 swap engine and trading bot",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote an exact-input swap",
		RunE:  runQuote,
	}
	addChainFlags(quoteCmd)
	addTradeFlags(quoteCmd)
	root.AddCommand(quoteCmd)

	swapCmd := &cobra.Command{
		Use:   "swap",
		Short: "Quote and execute an exact-input swap",
		RunE:  runSwap,
	}
	addChainFlags(swapCmd)
	addTradeFlags(swapCmd)
	addSignerFlags(swapCmd)
	addStorageFlags(swapCmd)
	root.AddCommand(swapCmd)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled swap receipts, newest first",
		RunE:  runHistory,
	}
	historyCmd.Flags().Int("limit", 20, "maximum receipts to show, 0 for all")
	addStorageFlags(historyCmd)
	addLogFlags(historyCmd)
	root.AddCommand(historyCmd)

	poolCmd := &cobra.Command{
		Use:   "pool <address>",
		Short: "Analyze the liquidity of a V3 pool",
		Args:  cobra.ExactArgs(1),
		RunE:  runPool,
	}
	addChainFlags(poolCmd)
	addMarketFlags(poolCmd)
	root.AddCommand(poolCmd)

	poolsCmd := &cobra.Command{
		Use:   "pools",
		Short: "List top pools from the subgraph",
		RunE:  runPools,
	}
	poolsCmd.Flags().Int("count", 10, "number of pools")
	poolsCmd.Flags().String("order-by", "totalValueLockedUSD", "order field (totalValueLockedUSD, volumeUSD, feesUSD, txCount, liquidity)")
	addMarketFlags(poolsCmd)
	addLogFlags(poolsCmd)
	root.AddCommand(poolsCmd)

	pricesCmd := &cobra.Command{
		Use:   "prices <symbol|asset-id>",
		Short: "Show daily price history",
		Args:  cobra.ExactArgs(1),
		RunE:  runPrices,
	}
	pricesCmd.Flags().String("currency", "usd", "quote currency")
	pricesCmd.Flags().Int("days", 30, "days of history")
	addMarketFlags(pricesCmd)
	addLogFlags(pricesCmd)
	root.AddCommand(pricesCmd)

	botCmd := &cobra.Command{
		Use:   "bot",
		Short: "Run a trading strategy on a timer",
		RunE:  runBot,
	}
	addChainFlags(botCmd)
	addSignerFlags(botCmd)
	addMarketFlags(botCmd)
	addStorageFlags(botCmd)
	botCmd.Flags().String("strategy", "price_threshold", "strategy (price_threshold, dca, moving_average)")
	botCmd.Flags().Duration("interval", 60*time.Second, "time between ticks")
	botCmd.Flags().String("base", "", "base token symbol or address")
	botCmd.Flags().String("quote", "", "quote token symbol or address")
	botCmd.Flags().String("amount", "", "amount per trade in human units")
	botCmd.Flags().String("min-price", "", "sell when 1 base quotes at or above this")
	botCmd.Flags().String("max-price", "", "buy when 1 base quotes at or below this")
	botCmd.Flags().IntSlice("trading-days", nil, "DCA days of month (default 1,15)")
	botCmd.Flags().Int("trading-hour", -1, "DCA UTC hour (default 12)")
	botCmd.Flags().String("asset-id", "", "price history asset id (defaults from base symbol)")
	botCmd.Flags().String("currency", "usd", "price history currency")
	botCmd.Flags().Int("short-period", 0, "short moving average days (default 7)")
	botCmd.Flags().Int("long-period", 0, "long moving average days (default 25)")
	botCmd.Flags().Bool("once", false, "run a single tick and exit")
	botCmd.Flags().Duration("duration", 0, "stop after this long, 0 runs until interrupted")
	botCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
	root.AddCommand(botCmd)

	return root
}

func addLogFlags(cmd *cobra.Command) {
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func addChainFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "Ethereum RPC URL")
	addLogFlags(cmd)
}

func addTradeFlags(cmd *cobra.Command) {
	cmd.Flags().String("from", "", "input token symbol or address")
	cmd.Flags().String("to", "", "output token symbol or address")
	cmd.Flags().String("amount", "", "input amount in human units")
	cmd.Flags().String("slippage", "0.5", "slippage tolerance in percent")
	cmd.Flags().Uint64("deadline", 1800, "deadline in seconds from now")
	cmd.Flags().String("recipient", "", "output recipient (defaults to the sender)")
}

func addSignerFlags(cmd *cobra.Command) {
	cmd.Flags().String("private-key", "", "hex private key of the trading account")
	cmd.Flags().Duration("confirm-timeout", 5*time.Minute, "maximum wait for each confirmation")
}

func addMarketFlags(cmd *cobra.Command) {
	cmd.Flags().String("price-url", "", "price history API base URL")
	cmd.Flags().String("price-api-key", "", "price history API key")
	cmd.Flags().String("subgraph-url", "", "Uniswap V3 subgraph URL")
	cmd.Flags().String("subgraph-api-key", "", "subgraph API key")
	cmd.Flags().Duration("min-interval", time.Second, "minimum spacing between market data requests")
	cmd.Flags().Duration("http-timeout", 30*time.Second, "market data request timeout")
}

func addStorageFlags(cmd *cobra.Command) {
	cmd.Flags().String("journal", "./data/journal.jsonl", "JSONL journal path, empty to disable")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN for the journal and bot state")
	cmd.Flags().String("state-file", "./data/bot_state.json", "bot state file used without Postgres")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
