// Package swap implements the multi-wallet swap orchestrator: amount
// planning, scheduling, per-wallet execution and result aggregation.
package swap

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// OperationType labels a run as buying or selling. It does not change the
// execution logic, only reporting.
type OperationType string

const (
	OperationBuy  OperationType = "buy"
	OperationSell OperationType = "sell"
)

// StrategyKind selects how per-wallet input amounts are computed.
type StrategyKind string

const (
	StrategyFixed      StrategyKind = "fixed"
	StrategyPercentage StrategyKind = "percentage"
	StrategyRandom     StrategyKind = "random"
	StrategyCustom     StrategyKind = "custom"
)

// ModeKind selects the scheduling discipline for a run.
type ModeKind string

const (
	ModeSequential ModeKind = "sequential"
	ModeParallel   ModeKind = "parallel"
	ModeBatch      ModeKind = "batch"
)

// Verdict is the planner's admission decision for one wallet.
type Verdict string

const (
	VerdictOK                  Verdict = "ok"
	VerdictBelowMinimum        Verdict = "below_minimum"
	VerdictInsufficientBalance Verdict = "insufficient_balance"
	VerdictSkip                Verdict = "skip"
)

// Token identifies a tradable token. Mint is canonical; Symbol is an
// optional alias resolved through the aggregator's token list.
type Token struct {
	Symbol   string `json:"symbol,omitempty"`
	Mint     string `json:"mint"`
	Decimals uint8  `json:"decimals"`
}

// KeyProvider hands out a wallet's private key just-in-time for execution.
// The core never stores the key itself.
type KeyProvider func() (string, error)

// Wallet is one member of the fleet. Index is stable within a run and used
// as the tie-breaker for ordering.
type Wallet struct {
	Index   int
	Address string
	Keys    KeyProvider // nil when the wallet has no signing key
}

// HasSigningKey reports whether execution is possible for this wallet.
func (w Wallet) HasSigningKey() bool { return w.Keys != nil }

// Strategy is the validated, tagged amount-distribution configuration.
// Exactly the fields for Kind are meaningful.
type Strategy struct {
	Kind     StrategyKind
	Base     uint64   // fixed: amount per wallet
	Fraction float64  // percentage: (0, 1]
	Min, Max uint64   // random: inclusive bounds, Min <= Max
	Amounts  []uint64 // custom: one per selected wallet
}

// Mode is the validated, tagged scheduling configuration.
type Mode struct {
	Kind          ModeKind
	Delay         time.Duration // sequential: between completions; batch: between groups
	MaxConcurrent int           // parallel: >= 1
	BatchSize     int           // batch: >= 1
}

// SelectionKind picks which wallets of the fleet take part in a run.
type SelectionKind string

const (
	SelectAll    SelectionKind = "all"
	SelectFirstN SelectionKind = "first_n"
	SelectCustom SelectionKind = "custom"
)

// Selection narrows the fleet before planning.
type Selection struct {
	Kind    SelectionKind
	Count   int
	Indices []int
}

// Request is the immutable run-level configuration. It must pass Validate
// before the orchestrator executes anything.
type Request struct {
	Operation   OperationType
	InputToken  Token
	OutputToken Token
	Strategy    Strategy
	Mode        Mode
	Selection   Selection

	SlippageBps      int
	Verify           bool
	MaxRetries       int
	RetryBackoffBase time.Duration
	QuoteTTL         time.Duration
	CollectFee       bool
	MinimumInput     uint64 // inclusive floor, input-token base units
	RunDeadline      time.Duration
	DirectRoutesOnly bool
}

// Validate checks parameter ranges. Token symbol resolution and the custom
// amounts length check happen in the orchestrator, which knows the fleet.
func (r *Request) Validate() error {
	switch r.Operation {
	case OperationBuy, OperationSell:
	default:
		return NewError(KindConfig, "invalid operation %q", r.Operation)
	}

	if r.InputToken.Mint == "" && r.InputToken.Symbol == "" {
		return NewError(KindConfig, "input token is required")
	}
	if r.OutputToken.Mint == "" && r.OutputToken.Symbol == "" {
		return NewError(KindConfig, "output token is required")
	}

	switch r.Strategy.Kind {
	case StrategyFixed:
		if r.Strategy.Base == 0 {
			return NewError(KindConfig, "fixed strategy requires a positive base amount")
		}
	case StrategyPercentage:
		if r.Strategy.Fraction <= 0 || r.Strategy.Fraction > 1 {
			return NewError(KindConfig, "percentage strategy requires a fraction in (0, 1], got %v", r.Strategy.Fraction)
		}
	case StrategyRandom:
		if r.Strategy.Min == 0 || r.Strategy.Min > r.Strategy.Max {
			return NewError(KindConfig, "random strategy requires 0 < min <= max, got [%d, %d]", r.Strategy.Min, r.Strategy.Max)
		}
	case StrategyCustom:
		if len(r.Strategy.Amounts) == 0 {
			return NewError(KindConfig, "custom strategy requires at least one amount")
		}
	default:
		return NewError(KindConfig, "unknown strategy %q", r.Strategy.Kind)
	}

	switch r.Mode.Kind {
	case ModeSequential:
		if r.Mode.Delay < 0 {
			return NewError(KindConfig, "sequential delay must be >= 0")
		}
	case ModeParallel:
		if r.Mode.MaxConcurrent < 1 {
			return NewError(KindConfig, "parallel mode requires max_concurrent >= 1")
		}
	case ModeBatch:
		if r.Mode.BatchSize < 1 {
			return NewError(KindConfig, "batch mode requires batch size >= 1")
		}
		if r.Mode.Delay < 0 {
			return NewError(KindConfig, "batch delay must be >= 0")
		}
	default:
		return NewError(KindConfig, "unknown execution mode %q", r.Mode.Kind)
	}

	if r.SlippageBps < 0 || r.SlippageBps > 10000 {
		return NewError(KindConfig, "slippage_bps must be in [0, 10000], got %d", r.SlippageBps)
	}
	if r.MaxRetries < 0 {
		return NewError(KindConfig, "max_retries must be >= 0")
	}
	if r.RetryBackoffBase <= 0 {
		return NewError(KindConfig, "retry_backoff_base must be > 0")
	}

	switch r.Selection.Kind {
	case SelectAll:
	case SelectFirstN:
		if r.Selection.Count < 1 {
			return NewError(KindConfig, "first_n selection requires a positive count")
		}
	case SelectCustom:
		if len(r.Selection.Indices) == 0 {
			return NewError(KindConfig, "custom selection requires wallet indices")
		}
	default:
		return NewError(KindConfig, "unknown wallet selection %q", r.Selection.Kind)
	}

	return nil
}

// WalletPlan is the planner's per-wallet output. Never mutated after
// admission.
type WalletPlan struct {
	Wallet      Wallet
	InputAmount uint64
	Verdict     Verdict
}

// Quote is one short-lived price quote. Raw carries the aggregator's
// original response for passing back on execute.
type Quote struct {
	InAmount       uint64
	OutAmount      uint64
	RouteID        string
	PriceImpactBps int
	FetchedAt      time.Time
	Raw            json.RawMessage
}

// Stale reports whether the quote aged past the freshness bound.
func (q *Quote) Stale(ttl time.Duration, now time.Time) bool {
	return ttl > 0 && now.Sub(q.FetchedAt) > ttl
}

// ReceiptStatus is the terminal outcome of one wallet's swap.
type ReceiptStatus string

const (
	StatusSuccess ReceiptStatus = "success"
	StatusFailed  ReceiptStatus = "failed"
	StatusSkipped ReceiptStatus = "skipped"
)

// Receipt is the terminal, immutable record of one wallet's run.
type Receipt struct {
	WalletIndex    int
	Status         ReceiptStatus
	InputAmount    uint64
	OutputAmount   *uint64
	TxID           string
	FeeAmount      *uint64
	PriceImpactBps *int
	Duration       time.Duration
	Attempts       int
	ErrorKind      ErrorKind
	ErrorDetail    string
}

// QuoteParams are the inputs to DexClient.Quote.
type QuoteParams struct {
	InputMint   string
	OutputMint  string
	Amount      uint64
	SlippageBps int
	DirectOnly  bool
}

// ExecOptions tune a single execute call.
type ExecOptions struct {
	WrapUnwrapSOL bool
	CollectFee    bool
	Verify        bool
}

// ExecResult is the aggregator's answer to a successful execute call.
type ExecResult struct {
	TxID         string
	OutputAmount uint64
	FeeAmount    uint64 // 0 when fee collection is off or failed
	Verified     bool
	NewBalance   uint64
}

// DexClient is the remote aggregator as consumed by the core. It must be
// safe for concurrent use; it owns transport retries and per-call timeouts.
type DexClient interface {
	SupportedTokens(ctx context.Context) (map[string]string, error)
	Quote(ctx context.Context, params QuoteParams) (*Quote, error)
	Execute(ctx context.Context, privateKey string, quote *Quote, opts ExecOptions) (*ExecResult, error)
}

// WalletSource provides the fleet and balance snapshots. Keys are handed
// out by each wallet's KeyProvider, never stored by the core.
type WalletSource interface {
	ListWallets(ctx context.Context) ([]Wallet, error)
	Balance(ctx context.Context, address, mint string) (uint64, error)
}

// selectWallets applies the run's wallet selection to the fleet.
func selectWallets(fleet []Wallet, sel Selection) ([]Wallet, error) {
	switch sel.Kind {
	case SelectAll:
		return fleet, nil
	case SelectFirstN:
		if sel.Count >= len(fleet) {
			return fleet, nil
		}
		return fleet[:sel.Count], nil
	case SelectCustom:
		picked := make([]Wallet, 0, len(sel.Indices))
		for _, idx := range sel.Indices {
			if idx < 0 || idx >= len(fleet) {
				return nil, NewError(KindConfig, "wallet index %d out of range (fleet size %d)", idx, len(fleet))
			}
			picked = append(picked, fleet[idx])
		}
		return picked, nil
	default:
		return nil, NewError(KindConfig, "unknown wallet selection %q", sel.Kind)
	}
}

// BaseUnits converts a whole-token amount to base units for the given
// decimals, rounding half away from zero.
func BaseUnits(amount float64, decimals uint8) uint64 {
	scale := 1.0
	for i := uint8(0); i < decimals; i++ {
		scale *= 10
	}
	return uint64(amount*scale + 0.5)
}

// FormatAmount renders base units as a whole-token string for logs.
func FormatAmount(baseUnits uint64, decimals uint8) string {
	scale := 1.0
	for i := uint8(0); i < decimals; i++ {
		scale *= 10
	}
	return fmt.Sprintf("%.6f", float64(baseUnits)/scale)
}
