package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tariproject/payment-processor/internal/basenode"
	"github.com/tariproject/payment-processor/internal/config"
	"github.com/tariproject/payment-processor/internal/db"
	"github.com/tariproject/payment-processor/internal/metrics"
	"github.com/tariproject/payment-processor/internal/models"
)

// NewBroadcasterWorker builds the Worker that claims AwaitingBroadcast
// batches into Broadcasting and submits signed transaction(s) to the Base
// Node (spec.md §4.4). For a consolidation (split) batch, on verified
// mempool presence it performs the one backward arc in the state graph:
// Broadcasting -> PendingBatching, rotating the idempotency key and
// bumping cycle.
func NewBroadcasterWorker(store *db.DB, node *basenode.Client, instanceID string, pollInterval, claimTimeout time.Duration, maxRetries int) *Worker {
	process := func(ctx context.Context, batch *models.PaymentBatch) error {
		return processBroadcast(ctx, store, node, batch)
	}

	return &Worker{
		Name:              "broadcaster",
		Store:             store,
		InstanceID:        instanceID,
		PollInterval:      pollInterval,
		ClaimTimeout:      claimTimeout,
		FromStatus:        models.BatchAwaitingBroadcast,
		ClaimStatus:       models.BatchBroadcasting,
		RetryRevertStatus: models.BatchAwaitingBroadcast,
		MaxRetries:        maxRetries,
		Process:           process,
	}
}

func processBroadcast(ctx context.Context, store *db.DB, node *basenode.Client, batch *models.PaymentBatch) error {
	var signedTxs []models.SignedTx
	if err := json.Unmarshal([]byte(batch.SignedTxJSON), &signedTxs); err != nil {
		return fmt.Errorf("%w: decode signed_tx_json: %v", config.ErrMalformedWalletResponse, err)
	}

	if !batch.IsConsolidation {
		return broadcastFinal(ctx, store, node, batch, signedTxs)
	}
	return broadcastSplit(ctx, store, node, batch, signedTxs)
}

// broadcastFinal submits the single payment transaction (spec.md §4.4 "final path").
func broadcastFinal(ctx context.Context, store *db.DB, node *basenode.Client, batch *models.PaymentBatch, signedTxs []models.SignedTx) error {
	if len(signedTxs) != 1 {
		return fmt.Errorf("%w: final path expects exactly one signed tx, got %d", config.ErrMalformedWalletResponse, len(signedTxs))
	}

	result, err := node.SubmitTransaction(ctx, signedTxs[0])
	if err != nil {
		return err
	}
	if !result.Accepted {
		if result.Permanent {
			return fmt.Errorf("%w: %s", config.ErrPermanentExternal, result.Reason)
		}
		return fmt.Errorf("%w: %s", config.ErrTransientExternal, result.Reason)
	}

	return store.MarkBroadcast(batch.ID)
}

// broadcastSplit submits every split transaction in order, then verifies
// all are visible in the mempool before looping the batch back to
// PendingBatching (spec.md §4.4 "split path").
func broadcastSplit(ctx context.Context, store *db.DB, node *basenode.Client, batch *models.PaymentBatch, signedTxs []models.SignedTx) error {
	for _, signed := range signedTxs {
		result, err := node.SubmitTransaction(ctx, signed)
		if err != nil {
			return err
		}
		if !result.Accepted {
			if result.Permanent {
				return fmt.Errorf("%w: %s", config.ErrPermanentExternal, result.Reason)
			}
			return fmt.Errorf("%w: %s", config.ErrTransientExternal, result.Reason)
		}
	}

	if err := verifyMempool(ctx, node, signedTxs); err != nil {
		return err
	}

	newKey, err := newIdempotencyKey()
	if err != nil {
		return fmt.Errorf("generate new idempotency key: %w", err)
	}

	metrics.ConsolidationCycles.Inc()
	return store.RequeueForSplit(batch.ID, newKey)
}

// verifyMempool polls the Base Node for every split transaction's mempool
// presence with a bounded exponential backoff (spec.md §9 Open Question
// (b): 500ms -> 8s ceiling, 6 attempts). If any transaction is still absent
// after the final attempt, the whole cycle is retried from submission
// (spec.md §4.4) — expressed here as a transient error, since Worker's
// retry path re-enters AwaitingBroadcast and the signed transactions are
// resubmitted.
func verifyMempool(ctx context.Context, node *basenode.Client, signedTxs []models.SignedTx) error {
	delay := config.MempoolVerifyBaseDelay

	for attempt := 0; attempt < config.MempoolVerifyAttempts; attempt++ {
		allPresent := true
		for _, signed := range signedTxs {
			present, err := node.QueryMempool(ctx, signed.String())
			if err != nil {
				return err
			}
			if !present {
				allPresent = false
				break
			}
		}
		if allPresent {
			return nil
		}

		if attempt == config.MempoolVerifyAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > config.MempoolVerifyMaxDelay {
			delay = config.MempoolVerifyMaxDelay
		}
	}

	return fmt.Errorf("%w: split transaction(s) not visible in mempool after %d attempts", config.ErrTransientExternal, config.MempoolVerifyAttempts)
}
