package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/tariproject/payment-processor/internal/basenode"
	"github.com/tariproject/payment-processor/internal/config"
	"github.com/tariproject/payment-processor/internal/db"
	"github.com/tariproject/payment-processor/internal/metrics"
	"github.com/tariproject/payment-processor/internal/models"
)

// ConfirmationChecker polls the Base Node for chain depth on
// AwaitingConfirmation batches until N-block finality (spec.md §4.5). It
// has no claim/in-progress status of its own — checking confirmation depth
// is read-only and idempotent, so a soft claim (claimed_by only) is enough
// to keep two instances from double-querying the same row concurrently.
type ConfirmationChecker struct {
	Store             *db.DB
	Node              *basenode.Client
	InstanceID        string
	PollInterval      time.Duration
	ClaimTimeout      time.Duration
	ConfirmationDepth int
}

// Run blocks, polling on PollInterval until ctx is cancelled.
func (c *ConfirmationChecker) Run(ctx context.Context) {
	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()

	slog.Info("worker started", "worker", "confirmation_checker", "pollInterval", c.PollInterval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopping", "worker", "confirmation_checker")
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *ConfirmationChecker) tick(ctx context.Context) {
	metrics.WorkerTicks.WithLabelValues("confirmation_checker").Inc()

	if c.ClaimTimeout > 0 {
		n, err := c.Store.RecoverStuckClaims(models.BatchAwaitingConfirmation, models.BatchAwaitingConfirmation, time.Now().Add(-c.ClaimTimeout))
		if err != nil {
			slog.Error("stuck-claim recovery failed", "worker", "confirmation_checker", "error", err)
		} else if n > 0 {
			metrics.StuckClaimsRecovered.WithLabelValues("confirmation_checker").Add(float64(n))
		}
	}

	for {
		if ctx.Err() != nil {
			return
		}
		batch, err := c.Store.ClaimNextBatch(models.BatchAwaitingConfirmation, models.BatchAwaitingConfirmation, c.InstanceID)
		if errors.Is(err, sql.ErrNoRows) {
			return
		}
		if err != nil {
			slog.Error("claim failed", "worker", "confirmation_checker", "error", err)
			return
		}
		metrics.WorkerClaims.WithLabelValues("confirmation_checker").Inc()
		c.processOne(ctx, batch)
	}
}

func (c *ConfirmationChecker) processOne(ctx context.Context, batch *models.PaymentBatch) {
	log := slog.With("worker", "confirmation_checker", "batchID", batch.ID)

	var signedTxs []models.SignedTx
	if err := json.Unmarshal([]byte(batch.SignedTxJSON), &signedTxs); err != nil {
		log.Error("decode signed_tx_json failed", "error", err)
		if failErr := c.Store.MarkFailed(batch.ID, config.ErrorMalformedWalletResponse); failErr != nil {
			log.Error("mark failed failed", "error", failErr)
		}
		return
	}
	if len(signedTxs) != 1 {
		log.Error("expected exactly one signed tx at confirmation stage", "count", len(signedTxs))
		if failErr := c.Store.MarkFailed(batch.ID, config.ErrorMalformedWalletResponse); failErr != nil {
			log.Error("mark failed failed", "error", failErr)
		}
		return
	}

	result, err := c.Node.QueryConfirmations(ctx, signedTxs[0].String())
	if err != nil {
		log.Warn("query confirmations failed, releasing claim", "error", err)
		if releaseErr := c.Store.ReleaseClaim(batch.ID, models.BatchAwaitingConfirmation); releaseErr != nil {
			log.Error("release claim failed", "error", releaseErr)
		}
		return
	}

	switch {
	case result.Reorged:
		log.Warn("transaction reorged out")
		if failErr := c.Store.MarkFailed(batch.ID, models.FailureReorgedOut); failErr != nil {
			log.Error("mark failed failed", "error", failErr)
		}
	case result.Found && result.Depth >= int64(c.ConfirmationDepth):
		log.Info("batch confirmed", "depth", result.Depth, "minedHeight", result.MinedHeight)
		if confirmErr := c.Store.MarkConfirmed(batch.ID, result.MinedHeight, result.HeaderHash, result.Timestamp); confirmErr != nil {
			log.Error("mark confirmed failed", "error", confirmErr)
		}
	default:
		// Not yet at finality depth — release the claim unchanged and
		// check again next tick.
		if releaseErr := c.Store.ReleaseClaim(batch.ID, models.BatchAwaitingConfirmation); releaseErr != nil {
			log.Error("release claim failed", "error", releaseErr)
		}
	}
}
