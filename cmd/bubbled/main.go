// Command bubbled runs a Bubble Protocol Guardian: it authenticates and
// authorizes JSON-RPC requests against an on-chain Access Control
// Contract, then dispatches them to a DataServer backend.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ethdenver2026/gateway/blockchain"
	"github.com/ethdenver2026/gateway/dataserver/memory"
	"github.com/ethdenver2026/gateway/guardian"
	"github.com/ethdenver2026/gateway/internal/config"
	"github.com/ethdenver2026/gateway/rpc/httptransport"
	"github.com/ethdenver2026/gateway/rpc/wstransport"
	"github.com/ethdenver2026/gateway/subscription"

	"context"
	"log/slog"
	"net/http"
	"time"
)

var rootCmd = &cobra.Command{
	Use:   "bubbled",
	Short: "Bubble Protocol Guardian server",
	RunE:  runServe,
}

func init() {
	rootCmd.Flags().Bool("debug", false, "enable debug logging (or BUBBLED_LOG_LEVEL=debug)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.LogLevel = "debug"
	}
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	rpcProvider, err := blockchain.NewRPCProvider(ctx, cfg.ChainRPCURL)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to dial chain RPC %s: %w", cfg.ChainRPCURL, err)
	}
	chain := blockchain.NewCached(rpcProvider, cfg.PermissionsCacheTTL)

	store := memory.New()
	subs := subscription.New()

	var tokens *subscription.TokenIssuer
	if len(cfg.SubscriptionTokenSecret) > 0 {
		tokens = subscription.NewTokenIssuer(cfg.SubscriptionTokenSecret, cfg.ResumeTokenTTL)
	}

	g := guardian.New(guardian.Config{
		Blockchain:   chain,
		DataServer:   store,
		ProviderURL:  cfg.ProviderURL,
		ReplayWindow: cfg.ReplayWindow,
		ClockSkew:    cfg.ClockSkew,
		Logger:       logger,
	})

	chainProxy, err := blockchain.NewRPCProxy(cfg.ChainRPCURL)
	if err != nil {
		return fmt.Errorf("failed to build chain RPC proxy for %s: %w", cfg.ChainRPCURL, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/rpc", httptransport.NewHandler(g, logger))
	mux.Handle("/ws", wstransport.NewHandler(g, subs, tokens, logger))
	mux.Handle("/chain-rpc", chainProxy)

	slog.Info("bubbled starting",
		"addr", cfg.ListenAddr,
		"provider_url", cfg.ProviderURL,
		"chain_rpc_url", cfg.ChainRPCURL,
	)

	return http.ListenAndServe(cfg.ListenAddr, mux)
}
