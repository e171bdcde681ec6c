package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/solfleet/solfleet/internal/config"
	"github.com/solfleet/solfleet/internal/jupiter"
	"github.com/solfleet/solfleet/internal/logging"
	"github.com/solfleet/solfleet/internal/progress"
	"github.com/solfleet/solfleet/internal/report"
	"github.com/solfleet/solfleet/internal/swap"
	"github.com/solfleet/solfleet/internal/wallet"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "application config file")
	runPath := flag.String("run", "configs/run.yaml", "run config file")
	formats := flag.String("formats", "json", "report formats, comma separated (json,csv,yaml)")
	dryRun := flag.Bool("dry-run", false, "simulate swaps without touching the network")
	flag.Parse()

	if err := run(*configPath, *runPath, *formats, *dryRun); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(configPath, runPath, formats string, dryRun bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if dryRun {
		cfg.DryRun = true
	}

	logger, err := logging.New(&logging.Config{
		LogFile:    cfg.LogFile,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     7,
		Compress:   true,
		Debug:      cfg.DebugLogging,
	})
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logging.Sync(logger) }()

	runCfg, err := config.LoadRunConfig(runPath)
	if err != nil {
		return fmt.Errorf("loading run config: %w", err)
	}
	req := runCfg.ToRequest()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dex, wallets, err := buildBackends(cfg, req, logger)
	if err != nil {
		return err
	}

	renderer := progress.NewRenderer(os.Stdout)
	orch := swap.NewOrchestrator(dex, wallets, logger)
	orch.OnEvent = renderer.Observe

	result, err := orch.Execute(ctx, req)
	if result != nil {
		renderer.Summary(result)

		writer := report.NewWriter(cfg.ReportDir, logger)
		if _, werr := writer.WriteAll(result, parseFormats(formats)...); werr != nil {
			logger.Error("writing reports", zap.Error(werr))
		}
	}
	if err != nil {
		return fmt.Errorf("run aborted: %w", err)
	}
	return nil
}

// buildBackends wires the dex client and wallet source; a dry run swaps both
// for in-memory stand-ins so no network is touched.
func buildBackends(cfg *config.Config, req *swap.Request, logger *zap.Logger) (swap.DexClient, swap.WalletSource, error) {
	fleet, err := wallet.LoadFleet(cfg.WalletsFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading wallets: %w", err)
	}
	logger.Info("fleet loaded", zap.Int("wallets", len(fleet)))

	if cfg.DryRun {
		logger.Info("dry run: using mock aggregator and static balances")
		return jupiter.NewMockClient(), wallet.NewStaticSource(fleet, math.MaxUint64/2), nil
	}

	source := wallet.NewSourceWithRPC(fleet, rpc.New(cfg.RPCList[0]), logger)
	dex := jupiter.NewClient(jupiter.Config{
		BaseURL:  cfg.APIBaseURL,
		MaxTries: req.MaxRetries + 1,
	}, logger)
	return dex, source, nil
}

func parseFormats(raw string) []report.Format {
	var formats []report.Format
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			formats = append(formats, report.Format(trimmed))
		}
	}
	if len(formats) == 0 {
		formats = []report.Format{report.FormatJSON}
	}
	return formats
}
