package swap

import (
	"sort"
	"sync"
	"time"
)

// RunStatus is the overall outcome of a run.
type RunStatus string

const (
	RunCompleted       RunStatus = "completed"
	RunDeadlineExpired RunStatus = "deadline_expired"
	RunCancelled       RunStatus = "cancelled"
	RunAbortedConfig   RunStatus = "aborted_config"
)

// Report is the final run record, serialized as-is to the report files.
type Report struct {
	Metadata         RunMetadata    `json:"metadata" yaml:"metadata"`
	Configuration    ConfigSnapshot `json:"configuration" yaml:"configuration"`
	ExecutionSummary ExecSummary    `json:"execution_summary" yaml:"execution_summary"`
	VolumeSummary    VolumeSummary  `json:"volume_summary" yaml:"volume_summary"`
	SwapResults      []SwapResult   `json:"swap_results" yaml:"swap_results"`
}

// RunMetadata identifies one run.
type RunMetadata struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	Status     RunStatus `json:"status" yaml:"status"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	DurationMS int64     `json:"duration_ms" yaml:"duration_ms"`
}

// ConfigSnapshot records the effective run configuration for the report.
// Amounts stay in base units; the renderer formats them.
type ConfigSnapshot struct {
	Operation        OperationType `json:"operation" yaml:"operation"`
	InputToken       Token         `json:"input_token" yaml:"input_token"`
	OutputToken      Token         `json:"output_token" yaml:"output_token"`
	Strategy         StrategyKind  `json:"strategy" yaml:"strategy"`
	Mode             ModeKind      `json:"mode" yaml:"mode"`
	SlippageBps      int           `json:"slippage_bps" yaml:"slippage_bps"`
	Verify           bool          `json:"verify" yaml:"verify"`
	MaxRetries       int           `json:"max_retries" yaml:"max_retries"`
	QuoteTTLSeconds  float64       `json:"quote_ttl_seconds" yaml:"quote_ttl_seconds"`
	CollectFee       bool          `json:"collect_fee" yaml:"collect_fee"`
	MinimumInput     uint64        `json:"minimum_input" yaml:"minimum_input"`
	WalletsSelected  int           `json:"wallets_selected" yaml:"wallets_selected"`
	DirectRoutesOnly bool          `json:"direct_routes_only" yaml:"direct_routes_only"`
}

// ExecSummary counts outcomes across the fleet.
type ExecSummary struct {
	WalletsPlanned      int               `json:"wallets_planned" yaml:"wallets_planned"`
	WalletsAdmitted     int               `json:"wallets_admitted" yaml:"wallets_admitted"`
	Succeeded           int               `json:"succeeded" yaml:"succeeded"`
	Failed              int               `json:"failed" yaml:"failed"`
	Skipped             int               `json:"skipped" yaml:"skipped"`
	TotalAttempts       int               `json:"total_attempts" yaml:"total_attempts"`
	RetriesScheduled    int               `json:"retries_scheduled" yaml:"retries_scheduled"`
	ErrorClassification map[ErrorKind]int `json:"error_classification,omitempty" yaml:"error_classification,omitempty"`
}

// VolumeSummary totals the moved value over successful swaps only.
// AvgPriceImpactBps is weighted by input amount and null with no successes.
type VolumeSummary struct {
	TotalInput        uint64   `json:"total_input" yaml:"total_input"`
	TotalOutput       uint64   `json:"total_output" yaml:"total_output"`
	TotalFees         uint64   `json:"total_fees" yaml:"total_fees"`
	AvgPriceImpactBps *float64 `json:"avg_price_impact_bps" yaml:"avg_price_impact_bps"`
}

// SwapResult is one wallet's receipt as it appears in the report.
type SwapResult struct {
	WalletIndex    int           `json:"wallet_index" yaml:"wallet_index"`
	WalletAddress  string        `json:"wallet_address,omitempty" yaml:"wallet_address,omitempty"`
	Status         ReceiptStatus `json:"status" yaml:"status"`
	InputAmount    uint64        `json:"input_amount" yaml:"input_amount"`
	OutputAmount   *uint64       `json:"output_amount" yaml:"output_amount"`
	TxID           string        `json:"transaction_id,omitempty" yaml:"transaction_id,omitempty"`
	FeeAmount      *uint64       `json:"fee_amount,omitempty" yaml:"fee_amount,omitempty"`
	PriceImpactBps *int          `json:"price_impact_bps,omitempty" yaml:"price_impact_bps,omitempty"`
	DurationMS     int64         `json:"duration_ms" yaml:"duration_ms"`
	Attempts       int           `json:"attempts" yaml:"attempts"`
	ErrorKind      ErrorKind     `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	ErrorDetail    string        `json:"error_detail,omitempty" yaml:"error_detail,omitempty"`
}

// ResultAggregator folds the event stream into the final report. It reads
// only what events carry, so replaying the same stream into a fresh
// aggregator reproduces the same report. Safe for a single consumer
// goroutine; the mutex guards Snapshot callers (the live renderer).
type ResultAggregator struct {
	mu        sync.Mutex
	receipts  map[int]Receipt
	retries   int
	addresses map[int]string
	planned   int
	admitted  int
}

// NewResultAggregator prepares an aggregator for the given plans. Addresses
// are carried from the plans so receipts stay key-free.
func NewResultAggregator(plans []WalletPlan) *ResultAggregator {
	addrs := make(map[int]string, len(plans))
	for _, p := range plans {
		addrs[p.Wallet.Index] = p.Wallet.Address
	}
	return &ResultAggregator{
		receipts:  make(map[int]Receipt, len(plans)),
		addresses: addrs,
		planned:   len(plans),
		admitted:  Admitted(plans),
	}
}

// Observe folds one event. Non-terminal events only update counters; a
// terminal event records the wallet's receipt, last write wins.
func (a *ResultAggregator) Observe(ev Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if ev.Type == EventRetryScheduled {
		a.retries++
	}
	if ev.Terminal() && ev.Receipt != nil {
		a.receipts[ev.WalletIndex] = *ev.Receipt
	}
}

// Closed reports whether every planned wallet has reached a terminal state.
func (a *ResultAggregator) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.receipts) >= a.planned
}

// Snapshot returns current outcome counts for live rendering.
func (a *ResultAggregator) Snapshot() (succeeded, failed, skipped, pending int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, rc := range a.receipts {
		switch rc.Status {
		case StatusSuccess:
			succeeded++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}
	return succeeded, failed, skipped, a.planned - len(a.receipts)
}

// Finalize builds the report. Results are ordered by wallet index.
func (a *ResultAggregator) Finalize(req *Request, runID string, status RunStatus, startedAt, finishedAt time.Time) *Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	indices := make([]int, 0, len(a.receipts))
	for idx := range a.receipts {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	summary := ExecSummary{
		WalletsPlanned:      a.planned,
		WalletsAdmitted:     a.admitted,
		RetriesScheduled:    a.retries,
		ErrorClassification: map[ErrorKind]int{},
	}
	var volume VolumeSummary
	var weightedImpact, weight float64

	results := make([]SwapResult, 0, len(indices))
	for _, idx := range indices {
		rc := a.receipts[idx]
		summary.TotalAttempts += rc.Attempts

		switch rc.Status {
		case StatusSuccess:
			summary.Succeeded++
			volume.TotalInput += rc.InputAmount
			if rc.OutputAmount != nil {
				volume.TotalOutput += *rc.OutputAmount
			}
			if rc.FeeAmount != nil {
				volume.TotalFees += *rc.FeeAmount
			}
			if rc.PriceImpactBps != nil {
				weightedImpact += float64(*rc.PriceImpactBps) * float64(rc.InputAmount)
				weight += float64(rc.InputAmount)
			}
		case StatusFailed:
			summary.Failed++
			summary.ErrorClassification[rc.ErrorKind]++
		case StatusSkipped:
			summary.Skipped++
		}

		results = append(results, SwapResult{
			WalletIndex:    rc.WalletIndex,
			WalletAddress:  a.addresses[rc.WalletIndex],
			Status:         rc.Status,
			InputAmount:    rc.InputAmount,
			OutputAmount:   rc.OutputAmount,
			TxID:           rc.TxID,
			FeeAmount:      rc.FeeAmount,
			PriceImpactBps: rc.PriceImpactBps,
			DurationMS:     rc.Duration.Milliseconds(),
			Attempts:       rc.Attempts,
			ErrorKind:      rc.ErrorKind,
			ErrorDetail:    rc.ErrorDetail,
		})
	}

	if len(summary.ErrorClassification) == 0 {
		summary.ErrorClassification = nil
	}
	if weight > 0 {
		avg := weightedImpact / weight
		volume.AvgPriceImpactBps = &avg
	}

	return &Report{
		Metadata: RunMetadata{
			RunID:      runID,
			Status:     status,
			StartedAt:  startedAt,
			FinishedAt: finishedAt,
			DurationMS: finishedAt.Sub(startedAt).Milliseconds(),
		},
		Configuration: ConfigSnapshot{
			Operation:        req.Operation,
			InputToken:       req.InputToken,
			OutputToken:      req.OutputToken,
			Strategy:         req.Strategy.Kind,
			Mode:             req.Mode.Kind,
			SlippageBps:      req.SlippageBps,
			Verify:           req.Verify,
			MaxRetries:       req.MaxRetries,
			QuoteTTLSeconds:  req.QuoteTTL.Seconds(),
			CollectFee:       req.CollectFee,
			MinimumInput:     req.MinimumInput,
			WalletsSelected:  a.planned,
			DirectRoutesOnly: req.DirectRoutesOnly,
		},
		ExecutionSummary: summary,
		VolumeSummary:    volume,
		SwapResults:      results,
	}
}
