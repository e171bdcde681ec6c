package jupiter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/solfleet/solfleet/internal/swap"
)

// serviceFeeBps is the aggregator's service fee, 0.1% of output. The mock
// charges it when fee collection is requested so dry-run reports carry
// realistic fee totals.
const serviceFeeBps = 10

// MockClient is an in-memory DexClient for dry runs and tests. By default
// every quote returns OutAmount = Amount × Rate and every execute succeeds
// with a synthetic transaction id; the hook funcs override per-call behavior.
type MockClient struct {
	Rate   float64           // default 1.0
	Tokens map[string]string // symbol -> mint

	QuoteFunc   func(ctx context.Context, params swap.QuoteParams) (*swap.Quote, error)
	ExecuteFunc func(ctx context.Context, privateKey string, quote *swap.Quote, opts swap.ExecOptions) (*swap.ExecResult, error)

	calls atomic.Int64
}

// NewMockClient returns a mock with a 1:1 rate and an empty token table.
func NewMockClient() *MockClient {
	return &MockClient{Rate: 1.0, Tokens: map[string]string{}}
}

func (m *MockClient) SupportedTokens(context.Context) (map[string]string, error) {
	return m.Tokens, nil
}

func (m *MockClient) Quote(ctx context.Context, params swap.QuoteParams) (*swap.Quote, error) {
	if m.QuoteFunc != nil {
		return m.QuoteFunc(ctx, params)
	}
	rate := m.Rate
	if rate == 0 {
		rate = 1.0
	}
	out := uint64(float64(params.Amount) * rate)
	raw, _ := json.Marshal(map[string]any{
		"inputMint":  params.InputMint,
		"outputMint": params.OutputMint,
		"inAmount":   fmt.Sprintf("%d", params.Amount),
		"outAmount":  fmt.Sprintf("%d", out),
	})
	return &swap.Quote{
		InAmount:  params.Amount,
		OutAmount: out,
		RouteID:   fmt.Sprintf("mock-route-%d", m.calls.Add(1)),
		FetchedAt: time.Now(),
		Raw:       raw,
	}, nil
}

func (m *MockClient) Execute(ctx context.Context, privateKey string, quote *swap.Quote, opts swap.ExecOptions) (*swap.ExecResult, error) {
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, privateKey, quote, opts)
	}
	res := &swap.ExecResult{
		TxID:         fmt.Sprintf("mock-tx-%d", m.calls.Add(1)),
		OutputAmount: quote.OutAmount,
		Verified:     true,
	}
	if opts.CollectFee {
		res.FeeAmount = quote.OutAmount * serviceFeeBps / 10_000
	}
	return res, nil
}
