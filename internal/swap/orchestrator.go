package swap

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Orchestrator owns a full run: validation, fleet loading, planning,
// dispatch, and aggregation. One Execute call is one run; the orchestrator
// itself is reusable.
type Orchestrator struct {
	dex     DexClient
	wallets WalletSource
	logger  *zap.Logger

	// OnEvent, when set, receives every lifecycle event after the
	// aggregator has folded it. Used by the console renderer. Must not
	// block for long; it runs on the single consumer goroutine.
	OnEvent func(Event)
}

// NewOrchestrator wires an orchestrator over a dex client and wallet source.
func NewOrchestrator(dex DexClient, wallets WalletSource, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{dex: dex, wallets: wallets, logger: logger.Named("orchestrator")}
}

// Execute runs the request to completion and always returns a report. When
// the run aborts on configuration, the report carries status aborted_config
// and the error explains why; execution-level failures are per-wallet and
// never surface as an Execute error.
func (o *Orchestrator) Execute(ctx context.Context, req *Request) (*Report, error) {
	runID := uuid.NewString()
	startedAt := time.Now()
	log := o.logger.With(zap.String("run_id", runID))

	abort := func(err error) (*Report, error) {
		log.Error("run aborted", zap.Error(err))
		report := NewResultAggregator(nil).Finalize(req, runID, RunAbortedConfig, startedAt, time.Now())
		return report, err
	}

	if err := req.Validate(); err != nil {
		return abort(err)
	}
	if err := o.resolveTokens(ctx, req); err != nil {
		return abort(err)
	}

	fleet, err := o.wallets.ListWallets(ctx)
	if err != nil {
		return abort(WrapError(KindConfig, err, "loading wallet fleet"))
	}
	if len(fleet) == 0 {
		return abort(NewError(KindConfig, "wallet fleet is empty"))
	}
	selected, err := selectWallets(fleet, req.Selection)
	if err != nil {
		return abort(err)
	}

	balances := o.snapshotBalances(ctx, selected, req.InputToken.Mint)

	plans, err := PlanAmounts(req, selected, balances, runID)
	if err != nil {
		return abort(err)
	}
	if Admitted(plans) == 0 {
		return abort(NewError(KindConfig,
			"no wallet passed admission: %d planned, none with verdict ok", len(plans)))
	}
	log.Info("run planned",
		zap.String("operation", string(req.Operation)),
		zap.String("strategy", string(req.Strategy.Kind)),
		zap.String("mode", string(req.Mode.Kind)),
		zap.Int("wallets", len(plans)),
		zap.Int("admitted", Admitted(plans)))

	runCtx := ctx
	cancel := func() {}
	if req.RunDeadline > 0 {
		runCtx, cancel = context.WithTimeout(ctx, req.RunDeadline)
	}
	defer cancel()

	bus := NewProgressBus(o.logger)
	agg := NewResultAggregator(plans)

	var consumer sync.WaitGroup
	consumer.Add(1)
	go func() {
		defer consumer.Done()
		// Drain with a background context: the bus closes when dispatch
		// returns, and queued terminal events must reach the report even
		// after run cancellation.
		for {
			ev, ok := bus.Next(context.Background())
			if !ok {
				return
			}
			agg.Observe(ev)
			if o.OnEvent != nil {
				o.OnEvent(ev)
			}
		}
	}()

	runner := NewSwapRunner(o.dex, req, bus, o.logger)
	NewScheduler(runner, req.Mode, o.logger).Dispatch(runCtx, plans)

	bus.Close()
	consumer.Wait()

	status := RunCompleted
	switch {
	case ctx.Err() != nil:
		status = RunCancelled
	case runCtx.Err() != nil:
		status = RunDeadlineExpired
	}

	finishedAt := time.Now()
	report := agg.Finalize(req, runID, status, startedAt, finishedAt)
	log.Info("run finished",
		zap.String("status", string(status)),
		zap.Int("succeeded", report.ExecutionSummary.Succeeded),
		zap.Int("failed", report.ExecutionSummary.Failed),
		zap.Int("skipped", report.ExecutionSummary.Skipped),
		zap.Duration("took", finishedAt.Sub(startedAt)))
	return report, nil
}

// resolveTokens fills in mints for tokens given by symbol only.
func (o *Orchestrator) resolveTokens(ctx context.Context, req *Request) error {
	if req.InputToken.Mint != "" && req.OutputToken.Mint != "" {
		return nil
	}

	supported, err := o.dex.SupportedTokens(ctx)
	if err != nil {
		return WrapError(KindConfig, err, "fetching supported tokens")
	}

	resolve := func(tok *Token, label string) error {
		if tok.Mint != "" {
			return nil
		}
		mint, ok := supportedLookup(supported, tok.Symbol)
		if !ok {
			return NewError(KindConfig, "%s token %q is not supported", label, tok.Symbol)
		}
		tok.Mint = mint
		return nil
	}
	if err := resolve(&req.InputToken, "input"); err != nil {
		return err
	}
	return resolve(&req.OutputToken, "output")
}

// supportedLookup matches a symbol against the token list, ignoring case.
func supportedLookup(supported map[string]string, symbol string) (string, bool) {
	want := strings.ToUpper(strings.TrimSpace(symbol))
	for sym, mint := range supported {
		if strings.ToUpper(sym) == want {
			return mint, true
		}
	}
	return "", false
}

// snapshotBalances fetches the input-token balance for each wallet once,
// before planning. A fetch failure is logged and recorded as zero, which the
// planner turns into an insufficient-balance skip.
func (o *Orchestrator) snapshotBalances(ctx context.Context, wallets []Wallet, mint string) map[int]uint64 {
	balances := make(map[int]uint64, len(wallets))
	for _, w := range wallets {
		bal, err := o.wallets.Balance(ctx, w.Address, mint)
		if err != nil {
			o.logger.Warn("balance fetch failed, treating as zero",
				zap.Int("wallet", w.Index),
				zap.String("address", w.Address),
				zap.Error(err))
			bal = 0
		}
		balances[w.Index] = bal
	}
	return balances
}
