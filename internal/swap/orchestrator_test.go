package swap

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// stubWallets is an in-memory WalletSource.
type stubWallets struct {
	fleet    []Wallet
	balances map[int]uint64
	listErr  error
}

func (s *stubWallets) ListWallets(context.Context) ([]Wallet, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.fleet, nil
}

func (s *stubWallets) Balance(_ context.Context, address, _ string) (uint64, error) {
	for _, w := range s.fleet {
		if w.Address == address {
			return s.balances[w.Index], nil
		}
	}
	return 0, fmt.Errorf("unknown wallet %s", address)
}

func fundedFleet(n int, balance uint64) *stubWallets {
	s := &stubWallets{balances: map[int]uint64{}}
	for i := 0; i < n; i++ {
		s.fleet = append(s.fleet, Wallet{
			Index:   i,
			Address: fmt.Sprintf("addr-%d", i),
			Keys:    func() (string, error) { return "key", nil },
		})
		s.balances[i] = balance
	}
	return s
}

func newTestOrchestrator(t *testing.T, dex DexClient, wallets WalletSource) *Orchestrator {
	t.Helper()
	return NewOrchestrator(dex, wallets, zaptest.NewLogger(t))
}

func TestOrchestratorFixedSequentialAllSucceed(t *testing.T) {
	req := testRequest(Strategy{Kind: StrategyFixed, Base: 100_000_000})
	req.Mode = Mode{Kind: ModeSequential}

	dex := &stubDex{}
	orch := newTestOrchestrator(t, dex, fundedFleet(3, 1_000_000_000))

	report, err := orch.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, RunCompleted, report.Metadata.Status)
	assert.Equal(t, 3, report.ExecutionSummary.Succeeded)
	assert.Equal(t, 0, report.ExecutionSummary.Failed)
	assert.Equal(t, uint64(300_000_000), report.VolumeSummary.TotalInput)
	assert.Equal(t, uint64(3*100_000_000*96), report.VolumeSummary.TotalOutput)
	require.NotNil(t, report.VolumeSummary.AvgPriceImpactBps)
	assert.InDelta(t, 50.0, *report.VolumeSummary.AvgPriceImpactBps, 0.001)
	require.Len(t, report.SwapResults, 3)
	for _, result := range report.SwapResults {
		assert.Equal(t, StatusSuccess, result.Status)
		assert.NotEmpty(t, result.TxID)
	}
}

func TestOrchestratorPercentageParallelWithSkips(t *testing.T) {
	req := testRequest(Strategy{Kind: StrategyPercentage, Fraction: 0.5})
	req.Mode = Mode{Kind: ModeParallel, MaxConcurrent: 4}
	req.MinimumInput = 1000

	wallets := fundedFleet(4, 100_000)
	wallets.balances[2] = 100 // half of this is below the floor

	dex := &stubDex{}
	orch := newTestOrchestrator(t, dex, wallets)

	report, err := orch.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, RunCompleted, report.Metadata.Status)
	assert.Equal(t, 3, report.ExecutionSummary.Succeeded)
	assert.Equal(t, 1, report.ExecutionSummary.Skipped)
	assert.Equal(t, 3, report.ExecutionSummary.WalletsAdmitted)

	skippedResult := report.SwapResults[2]
	assert.Equal(t, StatusSkipped, skippedResult.Status)
	assert.Contains(t, skippedResult.ErrorDetail, string(VerdictBelowMinimum))
}

func TestOrchestratorRandomBatchWithSlippageRetry(t *testing.T) {
	req := testRequest(Strategy{Kind: StrategyRandom, Min: 1000, Max: 2000})
	req.Mode = Mode{Kind: ModeBatch, BatchSize: 2, Delay: 100 * time.Millisecond}
	req.RetryBackoffBase = time.Millisecond

	dex := &stubDex{}
	dex.executeFn = func(call int, quote *Quote) (*ExecResult, error) {
		if call == 1 {
			return nil, NewError(KindSlippage, "price moved")
		}
		return &ExecResult{TxID: fmt.Sprintf("tx-%d", call), OutputAmount: quote.OutAmount, Verified: true}, nil
	}
	// batch mode runs one batch at a time; serialize the slice with size 1 batches
	req.Mode.BatchSize = 1

	orch := newTestOrchestrator(t, dex, fundedFleet(2, 1_000_000))

	started := time.Now()
	report, err := orch.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, RunCompleted, report.Metadata.Status)
	assert.Equal(t, 2, report.ExecutionSummary.Succeeded)
	assert.GreaterOrEqual(t, report.ExecutionSummary.RetriesScheduled, 1)
	assert.GreaterOrEqual(t, time.Since(started), 100*time.Millisecond,
		"inter-batch pause must be observed")

	for _, result := range report.SwapResults {
		assert.GreaterOrEqual(t, result.InputAmount, uint64(1000))
		assert.LessOrEqual(t, result.InputAmount, uint64(2000))
	}
}

func TestOrchestratorDeadlineExpires(t *testing.T) {
	req := testRequest(Strategy{Kind: StrategyFixed, Base: 1000})
	req.Mode = Mode{Kind: ModeSequential}
	req.RunDeadline = 120 * time.Millisecond

	dex := &stubDex{}
	dex.executeFn = func(call int, quote *Quote) (*ExecResult, error) {
		time.Sleep(50 * time.Millisecond)
		return &ExecResult{TxID: fmt.Sprintf("tx-%d", call), OutputAmount: quote.OutAmount, Verified: true}, nil
	}
	orch := newTestOrchestrator(t, dex, fundedFleet(4, 1_000_000))

	report, err := orch.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, RunDeadlineExpired, report.Metadata.Status)
	assert.Greater(t, report.ExecutionSummary.Succeeded, 0, "wallets before the deadline complete")
	assert.Greater(t, report.ExecutionSummary.Skipped, 0, "wallets after the deadline are skipped")
	assert.Len(t, report.SwapResults, 4, "the report always closes over every planned wallet")
}

func TestOrchestratorCustomMismatchAborts(t *testing.T) {
	req := testRequest(Strategy{Kind: StrategyCustom, Amounts: []uint64{100, 200}})
	req.Mode = Mode{Kind: ModeSequential}

	dex := &stubDex{}
	orch := newTestOrchestrator(t, dex, fundedFleet(3, 1_000_000))

	report, err := orch.Execute(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, KindConfig, KindOf(err))

	require.NotNil(t, report)
	assert.Equal(t, RunAbortedConfig, report.Metadata.Status)
	assert.Empty(t, report.SwapResults)
	assert.Zero(t, dex.quoteCalls.Load(), "nothing executes on a config abort")
}

func TestOrchestratorZeroAdmittedAborts(t *testing.T) {
	req := testRequest(Strategy{Kind: StrategyFixed, Base: 1000})
	req.MinimumInput = 10_000 // every planned amount falls below the floor

	dex := &stubDex{}
	orch := newTestOrchestrator(t, dex, fundedFleet(3, 1_000_000))

	report, err := orch.Execute(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, KindConfig, KindOf(err))

	require.NotNil(t, report)
	assert.Equal(t, RunAbortedConfig, report.Metadata.Status)
	assert.Empty(t, report.SwapResults)
	assert.Zero(t, dex.quoteCalls.Load(), "nothing executes when no wallet is admitted")
}

func TestOrchestratorVerificationFailureReported(t *testing.T) {
	req := testRequest(Strategy{Kind: StrategyFixed, Base: 1000})
	req.Mode = Mode{Kind: ModeSequential}
	req.Verify = true

	dex := &stubDex{}
	dex.executeFn = func(int, *Quote) (*ExecResult, error) {
		return &ExecResult{TxID: "tx-pending", OutputAmount: 0, Verified: false}, nil
	}
	orch := newTestOrchestrator(t, dex, fundedFleet(1, 1_000_000))

	report, err := orch.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, RunCompleted, report.Metadata.Status)
	require.Len(t, report.SwapResults, 1)
	result := report.SwapResults[0]
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, KindVerification, result.ErrorKind)
	assert.Equal(t, "tx-pending", result.TxID)
	assert.Zero(t, report.VolumeSummary.TotalInput, "unverified swaps never count toward volume")
}

func TestOrchestratorSymbolResolution(t *testing.T) {
	req := testRequest(Strategy{Kind: StrategyFixed, Base: 1000})
	req.InputToken = Token{Symbol: "sol", Decimals: 9}
	req.OutputToken = Token{Symbol: "USDC", Decimals: 6}

	dex := &stubDex{}
	var seen QuoteParams
	dex.quoteFn = func(_ int, params QuoteParams) (*Quote, error) {
		seen = params
		return stubQuote(params.Amount), nil
	}
	orch := newTestOrchestrator(t, dex, fundedFleet(1, 1_000_000))

	_, err := orch.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "So11111111111111111111111111111111111111112", seen.InputMint)
	assert.Equal(t, "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", seen.OutputMint)
}

func TestOrchestratorUnknownSymbolAborts(t *testing.T) {
	req := testRequest(Strategy{Kind: StrategyFixed, Base: 1000})
	req.InputToken = Token{Symbol: "NOPE", Decimals: 9}

	dex := &stubDex{}
	orch := newTestOrchestrator(t, dex, fundedFleet(1, 1_000_000))

	report, err := orch.Execute(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, RunAbortedConfig, report.Metadata.Status)
}

func TestOrchestratorFirstNSelection(t *testing.T) {
	req := testRequest(Strategy{Kind: StrategyFixed, Base: 1000})
	req.Selection = Selection{Kind: SelectFirstN, Count: 2}

	dex := &stubDex{}
	orch := newTestOrchestrator(t, dex, fundedFleet(5, 1_000_000))

	report, err := orch.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, report.SwapResults, 2)
	assert.Equal(t, 2, report.ExecutionSummary.WalletsPlanned)
}

func TestOrchestratorObserverSeesEveryTerminalEvent(t *testing.T) {
	req := testRequest(Strategy{Kind: StrategyFixed, Base: 1000})
	req.Mode = Mode{Kind: ModeParallel, MaxConcurrent: 3}

	dex := &stubDex{}
	orch := newTestOrchestrator(t, dex, fundedFleet(3, 1_000_000))

	terminal := 0
	orch.OnEvent = func(ev Event) {
		if ev.Terminal() {
			terminal++
		}
	}

	_, err := orch.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 3, terminal)
}
