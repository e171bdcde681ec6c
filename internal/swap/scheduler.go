package swap

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Scheduler dispatches wallet plans to the runner under one of three
// execution modes. It always invokes the runner for every plan, also after
// cancellation: the runner short-circuits cancelled wallets to skipped, so a
// run always closes with one receipt per planned wallet.
type Scheduler struct {
	runner *SwapRunner
	mode   Mode
	logger *zap.Logger
}

// NewScheduler builds a scheduler for one run.
func NewScheduler(runner *SwapRunner, mode Mode, logger *zap.Logger) *Scheduler {
	return &Scheduler{runner: runner, mode: mode, logger: logger.Named("scheduler")}
}

// Dispatch runs all plans to completion and returns their receipts, ordered
// by wallet index position in plans. It never returns early on cancellation;
// it waits for in-flight runners and skips the rest.
func (s *Scheduler) Dispatch(ctx context.Context, plans []WalletPlan) []Receipt {
	s.logger.Info("dispatching",
		zap.String("mode", string(s.mode.Kind)),
		zap.Int("wallets", len(plans)),
		zap.Int("admitted", Admitted(plans)))

	switch s.mode.Kind {
	case ModeParallel:
		return s.dispatchParallel(ctx, plans)
	case ModeBatch:
		return s.dispatchBatch(ctx, plans)
	default:
		return s.dispatchSequential(ctx, plans)
	}
}

// dispatchSequential runs wallets one at a time with a fixed pause between
// operations. No pause after the last wallet and none after a cancellation.
func (s *Scheduler) dispatchSequential(ctx context.Context, plans []WalletPlan) []Receipt {
	receipts := make([]Receipt, len(plans))
	for i, plan := range plans {
		receipts[i] = s.runner.Run(ctx, plan)

		if i == len(plans)-1 || s.mode.Delay <= 0 || ctx.Err() != nil {
			continue
		}
		select {
		case <-ctx.Done():
		case <-time.After(s.mode.Delay):
		}
	}
	return receipts
}

// dispatchParallel runs all wallets concurrently, bounded by MaxConcurrent.
func (s *Scheduler) dispatchParallel(ctx context.Context, plans []WalletPlan) []Receipt {
	limit := s.mode.MaxConcurrent
	if limit <= 0 {
		limit = len(plans)
	}
	sem := semaphore.NewWeighted(int64(limit))

	receipts := make([]Receipt, len(plans))
	var g errgroup.Group
	for i, plan := range plans {
		// Acquire before launching so pending plans are admitted in
		// ascending wallet-index order. The background context keeps a
		// cancelled run dispatching: the runner still has to produce the
		// skipped receipt.
		if err := sem.Acquire(context.Background(), 1); err != nil {
			continue
		}
		g.Go(func() error {
			defer sem.Release(1)
			receipts[i] = s.runner.Run(ctx, plan)
			return nil
		})
	}
	_ = g.Wait()
	return receipts
}

// dispatchBatch splits the plans into fixed-size chunks, runs each chunk
// concurrently and sleeps between chunks.
func (s *Scheduler) dispatchBatch(ctx context.Context, plans []WalletPlan) []Receipt {
	size := s.mode.BatchSize
	if size <= 0 {
		size = 1
	}

	receipts := make([]Receipt, len(plans))
	for lo := 0; lo < len(plans); lo += size {
		hi := min(lo+size, len(plans))

		var g errgroup.Group
		for i := lo; i < hi; i++ {
			g.Go(func() error {
				receipts[i] = s.runner.Run(ctx, plans[i])
				return nil
			})
		}
		_ = g.Wait()

		if hi == len(plans) || s.mode.Delay <= 0 || ctx.Err() != nil {
			continue
		}
		s.logger.Debug("batch done, pausing",
			zap.Int("completed", hi),
			zap.Duration("pause", s.mode.Delay))
		select {
		case <-ctx.Done():
		case <-time.After(s.mode.Delay):
		}
	}
	return receipts
}
