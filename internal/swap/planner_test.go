package swap

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest(strategy Strategy) *Request {
	return &Request{
		Operation:        OperationBuy,
		InputToken:       Token{Mint: "So11111111111111111111111111111111111111112", Decimals: 9},
		OutputToken:      Token{Mint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6},
		Strategy:         strategy,
		Mode:             Mode{Kind: ModeSequential},
		Selection:        Selection{Kind: SelectAll},
		SlippageBps:      50,
		MaxRetries:       3,
		RetryBackoffBase: 10 * time.Millisecond,
		QuoteTTL:         10 * time.Second,
	}
}

func testFleet(n int) []Wallet {
	fleet := make([]Wallet, n)
	for i := range fleet {
		fleet[i] = Wallet{
			Index:   i,
			Address: "addr" + string(rune('A'+i)),
			Keys:    func() (string, error) { return "key", nil },
		}
	}
	return fleet
}

func TestPlanAmountsFixed(t *testing.T) {
	req := testRequest(Strategy{Kind: StrategyFixed, Base: 100_000_000})
	wallets := testFleet(3)
	balances := map[int]uint64{0: 1_000_000_000, 1: 1_000_000_000, 2: 1_000_000_000}

	plans, err := PlanAmounts(req, wallets, balances, "run-1")
	require.NoError(t, err)
	require.Len(t, plans, 3)

	for _, plan := range plans {
		assert.Equal(t, uint64(100_000_000), plan.InputAmount)
		assert.Equal(t, VerdictOK, plan.Verdict)
	}
	assert.Equal(t, 3, Admitted(plans))
}

func TestPlanAmountsPercentage(t *testing.T) {
	req := testRequest(Strategy{Kind: StrategyPercentage, Fraction: 0.5})
	wallets := testFleet(2)
	balances := map[int]uint64{0: 1_000_000_000, 1: 400}

	plans, err := PlanAmounts(req, wallets, balances, "run-1")
	require.NoError(t, err)

	assert.Equal(t, uint64(500_000_000), plans[0].InputAmount)
	assert.Equal(t, uint64(200), plans[1].InputAmount)
}

func TestPlanAmountsRandomDeterministic(t *testing.T) {
	req := testRequest(Strategy{Kind: StrategyRandom, Min: 100, Max: 1000})
	wallets := testFleet(5)
	balances := map[int]uint64{}
	for i := range wallets {
		balances[i] = 10_000
	}

	first, err := PlanAmounts(req, wallets, balances, "run-1")
	require.NoError(t, err)
	second, err := PlanAmounts(req, wallets, balances, "run-1")
	require.NoError(t, err)

	for i := range first {
		assert.Equal(t, first[i].InputAmount, second[i].InputAmount, "same run id must draw the same amounts")
		assert.GreaterOrEqual(t, first[i].InputAmount, uint64(100))
		assert.LessOrEqual(t, first[i].InputAmount, uint64(1000))
	}
}

func TestPlanAmountsRandomFullRange(t *testing.T) {
	req := testRequest(Strategy{Kind: StrategyRandom, Min: 0, Max: math.MaxUint64})
	wallets := testFleet(3)
	balances := map[int]uint64{0: math.MaxUint64, 1: math.MaxUint64, 2: math.MaxUint64}

	plans, err := PlanAmounts(req, wallets, balances, "run-1")
	require.NoError(t, err)
	require.Len(t, plans, 3)

	req.Strategy = Strategy{Kind: StrategyRandom, Min: 10, Max: math.MaxUint64 - 5}
	plans, err = PlanAmounts(req, wallets, balances, "run-1")
	require.NoError(t, err)
	for _, plan := range plans {
		assert.GreaterOrEqual(t, plan.InputAmount, uint64(10))
		assert.LessOrEqual(t, plan.InputAmount, uint64(math.MaxUint64-5))
	}
}

func TestPlanAmountsCustomLengthMismatch(t *testing.T) {
	req := testRequest(Strategy{Kind: StrategyCustom, Amounts: []uint64{100, 200}})
	wallets := testFleet(3)

	plans, err := PlanAmounts(req, wallets, map[int]uint64{}, "run-1")
	require.Error(t, err)
	assert.Nil(t, plans)
	assert.Equal(t, KindConfig, KindOf(err))
}

func TestPlanAmountsAdmission(t *testing.T) {
	req := testRequest(Strategy{Kind: StrategyFixed, Base: 500})
	req.MinimumInput = 1000

	noKey := Wallet{Index: 0, Address: "watch-only"}
	funded := Wallet{Index: 1, Address: "funded", Keys: func() (string, error) { return "key", nil }}
	broke := Wallet{Index: 2, Address: "broke", Keys: func() (string, error) { return "key", nil }}

	balances := map[int]uint64{0: 10_000, 1: 10_000, 2: 100}

	plans, err := PlanAmounts(req, []Wallet{noKey, funded, broke}, balances, "run-1")
	require.NoError(t, err)

	assert.Equal(t, VerdictSkip, plans[0].Verdict)
	// amount 500 below minimum 1000
	assert.Equal(t, VerdictBelowMinimum, plans[1].Verdict)
	assert.Equal(t, VerdictBelowMinimum, plans[2].Verdict)

	req.MinimumInput = 0
	plans, err = PlanAmounts(req, []Wallet{noKey, funded, broke}, balances, "run-1")
	require.NoError(t, err)
	assert.Equal(t, VerdictOK, plans[1].Verdict)
	assert.Equal(t, VerdictInsufficientBalance, plans[2].Verdict)
	assert.Equal(t, 1, Admitted(plans))
}

func TestPlanAmountsOrdersByIndex(t *testing.T) {
	req := testRequest(Strategy{Kind: StrategyCustom, Amounts: []uint64{10, 20, 30}})
	wallets := testFleet(3)
	shuffled := []Wallet{wallets[2], wallets[0], wallets[1]}
	balances := map[int]uint64{0: 100, 1: 100, 2: 100}

	plans, err := PlanAmounts(req, shuffled, balances, "run-1")
	require.NoError(t, err)

	assert.Equal(t, 0, plans[0].Wallet.Index)
	assert.Equal(t, uint64(10), plans[0].InputAmount)
	assert.Equal(t, 2, plans[2].Wallet.Index)
	assert.Equal(t, uint64(30), plans[2].InputAmount)
}
