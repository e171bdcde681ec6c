package swap

import (
	"hash/fnv"
	"math"
	"math/rand"
	"sort"
)

// PlanAmounts computes the per-wallet input amount and admission verdict for
// every selected wallet. It is pure: no I/O, no mutation of inputs. Wallets
// are processed in ascending index order so random draws are reproducible
// for a given run id.
//
// balances maps wallet index to the available input-token balance in base
// units. A custom-amounts length mismatch is a configuration error and is
// reported before any plan is produced.
func PlanAmounts(req *Request, wallets []Wallet, balances map[int]uint64, runID string) ([]WalletPlan, error) {
	if req.Strategy.Kind == StrategyCustom && len(req.Strategy.Amounts) != len(wallets) {
		return nil, NewError(KindConfig,
			"custom strategy has %d amounts for %d selected wallets",
			len(req.Strategy.Amounts), len(wallets))
	}

	ordered := make([]Wallet, len(wallets))
	copy(ordered, wallets)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	var rng *rand.Rand
	if req.Strategy.Kind == StrategyRandom {
		rng = rand.New(rand.NewSource(seedFromRunID(runID)))
	}

	plans := make([]WalletPlan, 0, len(ordered))
	for i, w := range ordered {
		balance := balances[w.Index]

		var amount uint64
		switch req.Strategy.Kind {
		case StrategyFixed:
			amount = req.Strategy.Base
		case StrategyPercentage:
			amount = uint64(float64(balance) * req.Strategy.Fraction)
		case StrategyRandom:
			amount = req.Strategy.Min + drawSpan(rng, req.Strategy.Max-req.Strategy.Min)
		case StrategyCustom:
			amount = req.Strategy.Amounts[i]
		}

		plans = append(plans, WalletPlan{
			Wallet:      w,
			InputAmount: amount,
			Verdict:     admit(w, amount, balance, req.MinimumInput),
		})
	}

	return plans, nil
}

// admit decides whether a wallet takes part in the run.
func admit(w Wallet, amount, balance, minimum uint64) Verdict {
	if !w.HasSigningKey() {
		return VerdictSkip
	}
	if amount < minimum {
		return VerdictBelowMinimum
	}
	if amount > balance {
		return VerdictInsufficientBalance
	}
	return VerdictOK
}

// Admitted counts plans with verdict ok.
func Admitted(plans []WalletPlan) int {
	n := 0
	for _, p := range plans {
		if p.Verdict == VerdictOK {
			n++
		}
	}
	return n
}

// drawSpan draws uniformly from [0, span] for any uint64 span, including
// spans too large for Int63n.
func drawSpan(rng *rand.Rand, span uint64) uint64 {
	if span == math.MaxUint64 {
		return rng.Uint64()
	}
	return rng.Uint64() % (span + 1)
}

// seedFromRunID turns the opaque run id into a stable rng seed.
func seedFromRunID(runID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(runID))
	return int64(h.Sum64())
}
