package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swapEngine/internal/chain"
	"swapEngine/internal/config"
	"swapEngine/internal/dex"
	"swapEngine/internal/market"
	"swapEngine/internal/model"
	"swapEngine/internal/observability"
	"swapEngine/internal/quote"
	"swapEngine/internal/routing"
	"swapEngine/internal/storage"
	"swapEngine/internal/storage/postgres"
	"swapEngine/internal/swap"
	"swapEngine/internal/wallet"
)

// app holds the components a command needs. Fields a command did not ask for stay nil.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	metrics *observability.Metrics

	client   *chain.Client
	tokens   *dex.TokenRegistry
	quotes   *quote.Engine
	market   *market.Service
	executor *swap.Executor
	signer   *wallet.LocalSigner

	journal  storage.Journal
	receipts storage.ReceiptReader
	state    storage.StateStore

	closers []func()
}

type appNeeds struct {
	chain   bool
	signer  bool
	market  bool
	storage bool
}

func loadApp(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func newApp(ctx context.Context, cmd *cobra.Command, needs appNeeds) (*app, error) {
	cfg, logger, err := loadApp(cmd)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewMetrics(""),
	}
	if err := a.init(ctx, needs); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context, needs appNeeds) error {
	cfg := a.cfg
	var caller chain.ContractCaller

	if needs.chain {
		if cfg.RPCURL == "" {
			return fmt.Errorf("rpc url is required")
		}
		client, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.client = client
		caller = client

		a.tokens = dex.NewTokenRegistry(client, a.logger)
		a.tokens.Seed(dex.KnownTokens()...)

		slippage, err := decimal.NewFromString(strings.TrimSpace(cfg.Slippage))
		if err != nil {
			return fmt.Errorf("slippage: %w", err)
		}
		router := routing.NewV3Router(client, a.tokens, routing.DefaultV3Config(), a.logger)
		a.quotes, err = quote.NewEngine(a.tokens, router, quote.Options{
			DefaultSlippagePercent: slippage,
			Logger:                 a.logger,
			Metrics:                a.metrics,
		})
		if err != nil {
			return err
		}
	}

	if needs.signer {
		opts := swap.Options{
			ConfirmTimeout: cfg.ConfirmTimeout,
			Logger:         a.logger,
			Metrics:        a.metrics,
		}
		if cfg.PrivateKey != "" {
			signer, err := wallet.NewLocalSigner(a.client, cfg.PrivateKey)
			if err != nil {
				return fmt.Errorf("load signer: %w", err)
			}
			a.signer = signer
			opts.DefaultSigner = signer
		}
		a.executor = swap.NewExecutor(caller, opts)
	}

	if needs.market {
		var tokens routing.TokenResolver
		if a.tokens != nil {
			tokens = a.tokens
		}
		a.market = market.NewService(caller, tokens, market.Config{
			PriceBaseURL:   cfg.PriceURL,
			PriceAPIKey:    cfg.PriceAPIKey,
			SubgraphURL:    cfg.SubgraphURL,
			SubgraphAPIKey: cfg.SubgraphAPIKey,
			MinInterval:    cfg.MinInterval,
			Timeout:        cfg.HTTPTimeout,
		}, a.logger, a.metrics)
	}

	if needs.storage {
		if err := a.openStorage(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) openStorage(ctx context.Context) error {
	var journals []storage.Journal
	if a.cfg.Journal != "" {
		file := storage.NewJsonlJournal(a.cfg.Journal)
		journals = append(journals, file)
		a.receipts = file
	}
	a.state = storage.NewStateFile(a.cfg.StateFile)

	if a.cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, a.cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		journals = append(journals, store)
		a.receipts = store
		a.state = store
	}
	if len(journals) > 0 {
		a.journal = storage.Multi(journals...)
	}
	return nil
}

// Close releases connections in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func (a *app) recordReceipt(ctx context.Context, receipt *model.SwapReceipt) {
	if a.journal == nil || receipt == nil {
		return
	}
	err := a.journal.PutReceipt(ctx, *receipt)
	a.metrics.RecordJournalWrite(storage.KindReceipt, err)
	if err != nil {
		a.logger.Error("journal receipt", zap.String("tx", receipt.TransactionID), zap.Error(err))
	}
}

// serveMetrics exposes the metrics registry until ctx is done.
func (a *app) serveMetrics(ctx context.Context, addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		a.logger.Info("metrics server start", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}

// parseToken accepts a well-known symbol or a hex address.
func parseToken(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return common.Address{}, fmt.Errorf("token is required")
	}
	if common.IsHexAddress(input) {
		return common.HexToAddress(input), nil
	}
	if address, ok := dex.LookupSymbol(input); ok {
		return address, nil
	}
	return common.Address{}, fmt.Errorf("unknown token %q", input)
}

func writeJSON(w io.Writer, value interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
