package swap

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// SwapRunner drives one wallet through quote, execute and verification with
// bounded retries. Each runner owns its receipt-in-progress; the only shared
// state it touches is the DexClient and the ProgressBus, both safe for
// concurrent use.
type SwapRunner struct {
	dex    DexClient
	req    *Request
	bus    *ProgressBus
	logger *zap.Logger
}

// NewSwapRunner wires a runner for one run. A single runner value is shared
// across wallets; Run carries all per-wallet state on the stack.
func NewSwapRunner(dex DexClient, req *Request, bus *ProgressBus, logger *zap.Logger) *SwapRunner {
	return &SwapRunner{dex: dex, req: req, bus: bus, logger: logger.Named("runner")}
}

// Run executes one wallet's swap to a terminal state and returns its
// receipt. It always returns exactly one receipt, also on skip and failure.
func (r *SwapRunner) Run(ctx context.Context, plan WalletPlan) Receipt {
	start := time.Now()
	log := r.logger.With(zap.Int("wallet", plan.Wallet.Index))

	var seq uint64
	emit := func(ev Event) {
		seq++
		ev.WalletIndex = plan.Wallet.Index
		ev.Seq = seq
		ev.At = time.Now()
		r.bus.Publish(ev)
	}

	terminal := func(rc Receipt, evType EventType) Receipt {
		rc.WalletIndex = plan.Wallet.Index
		rc.Duration = time.Since(start)
		emit(Event{Type: evType, Receipt: &rc})
		return rc
	}

	skip := func(attempts int, detail string) Receipt {
		return terminal(Receipt{
			Status:      StatusSkipped,
			InputAmount: plan.InputAmount,
			Attempts:    attempts,
			ErrorDetail: detail,
		}, EventSkipped)
	}

	if plan.Verdict != VerdictOK {
		log.Debug("wallet not admitted", zap.String("verdict", string(plan.Verdict)))
		return skip(0, "verdict "+string(plan.Verdict))
	}
	emit(Event{Type: EventPlanAdmitted})

	fail := func(attempts int, err error, txID string, output *uint64) Receipt {
		kind := KindOf(err)
		log.Warn("swap failed",
			zap.String("error_kind", string(kind)),
			zap.Int("attempts", attempts),
			zap.Error(err))
		return terminal(Receipt{
			Status:       StatusFailed,
			InputAmount:  plan.InputAmount,
			TxID:         txID,
			OutputAmount: output,
			Attempts:     attempts,
			ErrorKind:    kind,
			ErrorDetail:  err.Error(),
		}, EventFailed)
	}

	opts := ExecOptions{
		WrapUnwrapSOL: true,
		CollectFee:    r.req.CollectFee,
		Verify:        r.req.Verify,
	}
	maxAttempts := r.req.MaxRetries + 1
	attempts := 0
	var quote *Quote

	for {
		// Checkpoint: nothing submitted yet in this cycle.
		if ctx.Err() != nil {
			return skip(attempts, "run cancelled")
		}
		attempts++

		if quote == nil || quote.Stale(r.req.QuoteTTL, time.Now()) {
			emit(Event{Type: EventQuoteStarted, Attempt: attempts})
			q, err := r.dex.Quote(ctx, QuoteParams{
				InputMint:   r.req.InputToken.Mint,
				OutputMint:  r.req.OutputToken.Mint,
				Amount:      plan.InputAmount,
				SlippageBps: r.req.SlippageBps,
				DirectOnly:  r.req.DirectRoutesOnly,
			})
			if err != nil {
				if ctx.Err() != nil {
					return skip(attempts, "run cancelled")
				}
				kind := KindOf(err)
				if Retryable(kind) && attempts < maxAttempts {
					if !r.backoff(ctx, attempts, kind, emit) {
						return skip(attempts, "run cancelled during backoff")
					}
					continue
				}
				return fail(attempts, err, "", nil)
			}
			quote = q
			emit(Event{Type: EventQuoteReady, Attempt: attempts})
		}

		if plan.Wallet.Keys == nil {
			return fail(attempts, NewError(KindAuth, "wallet %d has no signing key", plan.Wallet.Index), "", nil)
		}
		key, err := plan.Wallet.Keys()
		if err != nil {
			return fail(attempts, WrapError(KindAuth, err, "key provider failed"), "", nil)
		}

		emit(Event{Type: EventExecuteStarted, Attempt: attempts})
		// A submitted execution is never rolled back: detach from run
		// cancellation so its outcome is captured either way. The client
		// still applies its own per-call timeout.
		res, err := r.dex.Execute(context.WithoutCancel(ctx), key, quote, opts)
		if err != nil {
			kind := KindOf(err)
			if Retryable(kind) && attempts < maxAttempts {
				if NeedsFreshQuote(kind) {
					quote = nil
				}
				if !r.backoff(ctx, attempts, kind, emit) {
					return skip(attempts, "run cancelled during backoff")
				}
				continue
			}
			return fail(attempts, err, "", nil)
		}
		emit(Event{Type: EventExecuteSubmitted, Attempt: attempts})

		if r.req.Verify && !res.Verified {
			out := res.OutputAmount
			return fail(attempts,
				NewError(KindVerification, "output credit not confirmed for tx %s", res.TxID),
				res.TxID, &out)
		}

		out := res.OutputAmount
		impact := quote.PriceImpactBps
		rc := Receipt{
			Status:         StatusSuccess,
			InputAmount:    plan.InputAmount,
			OutputAmount:   &out,
			TxID:           res.TxID,
			PriceImpactBps: &impact,
			Attempts:       attempts,
		}
		if r.req.CollectFee {
			fee := res.FeeAmount
			rc.FeeAmount = &fee
		}
		log.Info("swap verified",
			zap.String("tx", res.TxID),
			zap.Uint64("in", plan.InputAmount),
			zap.Uint64("out", res.OutputAmount),
			zap.Int("attempts", attempts))
		return terminal(rc, EventVerified)
	}
}

// backoff sleeps before the next attempt: base × 2^(attempt-1) plus jitter
// in [0, 0.25] of the nominal delay, doubled jitter when throttled. Returns
// false if the run was cancelled while waiting.
func (r *SwapRunner) backoff(ctx context.Context, attempt int, reason ErrorKind, emit func(Event)) bool {
	delay := r.req.RetryBackoffBase << uint(attempt-1)
	jitter := time.Duration(rand.Float64() * 0.25 * float64(delay))
	if reason == KindRateLimited {
		jitter += time.Duration(rand.Float64() * 0.25 * float64(delay))
	}
	delay += jitter

	emit(Event{Type: EventRetryScheduled, Attempt: attempt, Delay: delay, Reason: reason})

	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}
