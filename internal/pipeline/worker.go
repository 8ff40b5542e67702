// Package pipeline implements the five cooperating workers that drive a
// PaymentBatch from PendingBatching to a terminal status (spec.md §2, §4).
// Every worker shares the same shape — poll, claim (CAS), process, commit —
// expressed once here and parameterized per worker (spec.md §9 "Worker
// polymorphism").
package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/tariproject/payment-processor/internal/config"
	"github.com/tariproject/payment-processor/internal/db"
	"github.com/tariproject/payment-processor/internal/metrics"
	"github.com/tariproject/payment-processor/internal/models"
)

// ProcessFunc handles one claimed batch. On success it is responsible for
// performing its own forward status transition (e.g. via db.SetUnsignedTx)
// within its own store call — the generic Worker never guesses the next
// status for a successful outcome, since that varies per worker (final vs.
// split path, confirmed vs. still-pending, etc). On error, Worker handles
// the shared retry/failure/store-error bookkeeping.
type ProcessFunc func(ctx context.Context, batch *models.PaymentBatch) error

// Worker polls for batches in FromStatus, claims them into ClaimStatus
// (equal to FromStatus for a worker with no distinct in-progress status,
// i.e. the Unsigned-TX Creator; the Confirmation Checker, which has its own
// loop, claims the same way — spec.md §5 only
// names SigningInProgress/Broadcasting as claim states, but every worker
// still needs claimed_by to avoid two instances racing the same row), and
// runs Process on each.
type Worker struct {
	Name         string
	Store        *db.DB
	InstanceID   string
	PollInterval time.Duration
	ClaimTimeout time.Duration

	FromStatus        models.BatchStatus
	ClaimStatus        models.BatchStatus
	RetryRevertStatus  models.BatchStatus
	MaxRetries         int

	Process ProcessFunc
}

// Run blocks, polling on PollInterval until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()

	slog.Info("worker started", "worker", w.Name, "pollInterval", w.PollInterval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopping", "worker", w.Name)
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// tick recovers any stuck claims, then claims and processes rows until none
// remain in FromStatus.
func (w *Worker) tick(ctx context.Context) {
	metrics.WorkerTicks.WithLabelValues(w.Name).Inc()

	if w.ClaimTimeout > 0 {
		n, err := w.Store.RecoverStuckClaims(w.ClaimStatus, w.RetryRevertStatus, time.Now().Add(-w.ClaimTimeout))
		if err != nil {
			slog.Error("stuck-claim recovery failed", "worker", w.Name, "error", err)
		} else if n > 0 {
			slog.Warn("recovered stuck claims", "worker", w.Name, "count", n)
			metrics.StuckClaimsRecovered.WithLabelValues(w.Name).Add(float64(n))
		}
	}

	for {
		if ctx.Err() != nil {
			return
		}

		batch, err := w.Store.ClaimNextBatch(w.FromStatus, w.ClaimStatus, w.InstanceID)
		if errors.Is(err, sql.ErrNoRows) {
			return
		}
		if err != nil {
			slog.Error("claim failed", "worker", w.Name, "error", err)
			return
		}

		metrics.WorkerClaims.WithLabelValues(w.Name).Inc()
		w.processOne(ctx, batch)
	}
}

func (w *Worker) processOne(ctx context.Context, batch *models.PaymentBatch) {
	log := slog.With("worker", w.Name, "batchID", batch.ID, "cycle", batch.Cycle)

	err := w.Process(ctx, batch)
	if err == nil {
		log.Info("batch processed")
		return
	}

	if errors.Is(err, config.ErrStoreError) {
		// Store errors are retried next tick without consuming the retry
		// budget (spec.md §7: "does not consume retry budget").
		log.Warn("store error, releasing claim", "error", err)
		if releaseErr := w.Store.ReleaseClaim(batch.ID, w.RetryRevertStatus); releaseErr != nil {
			log.Error("failed to release claim after store error", "error", releaseErr)
		}
		return
	}

	reason := failureReason(err)

	if errors.Is(err, config.ErrPermanentExternal) || errors.Is(err, config.ErrConsolidationExhausted) {
		// Permanent rejections and exhausted consolidation cycles are
		// terminal regardless of retry budget (spec.md §4.2, §4.4, §7) —
		// retrying would resubmit a known-invalid transaction.
		log.Error("permanent failure, failing batch immediately", "error", err, "reason", reason)
		if failErr := w.Store.MarkFailed(batch.ID, reason); failErr != nil {
			log.Error("failed to mark batch failed", "error", failErr)
			return
		}
		metrics.WorkerFailures.WithLabelValues(w.Name, reason).Inc()
		return
	}

	if batch.RetryCount+1 >= w.MaxRetries {
		log.Error("retry budget exhausted, failing batch", "error", err, "reason", reason)
		if failErr := w.Store.MarkFailed(batch.ID, reason); failErr != nil {
			log.Error("failed to mark batch failed", "error", failErr)
			return
		}
		metrics.WorkerFailures.WithLabelValues(w.Name, reason).Inc()
		return
	}

	log.Warn("processing failed, retrying", "error", err, "retryCount", batch.RetryCount+1)
	if retryErr := w.Store.IncrementRetry(batch.ID, w.RetryRevertStatus); retryErr != nil {
		log.Error("failed to record retry", "error", retryErr)
		return
	}
	metrics.WorkerRetries.WithLabelValues(w.Name).Inc()
}

// failureReason maps a sentinel error to the string persisted to
// payments.failure_reason / batches.error_message (spec.md §7 taxonomy):
// a models.Failure* reason for consolidation exhaustion and reorg-out, a
// config.Error* code otherwise.
func failureReason(err error) string {
	switch {
	case errors.Is(err, config.ErrConsolidationExhausted):
		return models.FailureConsolidationExhausted
	case errors.Is(err, config.ErrReorgedOut):
		return models.FailureReorgedOut
	case errors.Is(err, config.ErrSigningFailed):
		return config.ErrorSigningFailed
	case errors.Is(err, config.ErrPermanentExternal):
		return config.ErrorBroadcastRejected
	case errors.Is(err, config.ErrMalformedWalletResponse):
		return config.ErrorMalformedWalletResponse
	case errors.Is(err, config.ErrTransientExternal):
		return config.ErrorWalletAPIUnavailable
	default:
		return config.ErrorRetryBudgetExhausted
	}
}
