package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/tariproject/payment-processor/internal/db"
	"github.com/tariproject/payment-processor/internal/metrics"
	"github.com/tariproject/payment-processor/internal/models"
)

// BatchCreator groups Received payments by account into new batches
// (spec.md §4.1). Unlike the other four workers it doesn't claim a single
// row — it operates on a whole account's pending payment set per tick,
// inside one store transaction, so it has its own run loop rather than
// Worker's single-row claim loop.
type BatchCreator struct {
	Store               *db.DB
	PollInterval        time.Duration
	MaxPaymentsPerBatch int
}

// Run blocks, polling on PollInterval until ctx is cancelled.
func (c *BatchCreator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()

	slog.Info("worker started", "worker", "batch_creator", "pollInterval", c.PollInterval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopping", "worker", "batch_creator")
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

func (c *BatchCreator) tick() {
	metrics.WorkerTicks.WithLabelValues("batch_creator").Inc()

	accounts, err := c.Store.ListDistinctAccountsWithReceivedPayments()
	if err != nil {
		slog.Error("batch creator: list accounts failed", "error", err)
		return
	}

	for _, account := range accounts {
		c.createBatchForAccount(account)
	}
}

// createBatchForAccount groups up to MaxPaymentsPerBatch received payments
// for account into one new batch. Payments are read oldest-first (the
// store's ListReceivedPayments query orders by created_at, which combined
// with the tie-break on id gives the deterministic
// ordering spec.md §4.1 requires: the Wallet API's idempotency contract
// depends on a byte-identical request across retries.
func (c *BatchCreator) createBatchForAccount(account string) {
	payments, err := c.Store.ListReceivedPayments(account, c.MaxPaymentsPerBatch)
	if err != nil {
		slog.Error("batch creator: list payments failed", "account", account, "error", err)
		return
	}
	if len(payments) == 0 {
		return
	}

	key, err := newIdempotencyKey()
	if err != nil {
		slog.Error("batch creator: idempotency key generation failed", "account", account, "error", err)
		return
	}

	batch := &models.PaymentBatch{
		ID:               uuid.NewString(),
		AccountName:      account,
		PRIdempotencyKey: key,
	}

	ids := make([]string, len(payments))
	for i, p := range payments {
		ids[i] = p.ID
	}

	if err := c.Store.CreateBatch(batch, ids); err != nil {
		slog.Error("batch creator: create batch failed", "account", account, "error", err)
		return
	}

	metrics.WorkerClaims.WithLabelValues("batch_creator").Inc()
	slog.Info("batch created", "batchID", batch.ID, "account", account, "paymentCount", len(payments))
}

// newIdempotencyKey generates a fresh UUIDv4 and re-encodes it base58 — the
// same compact, punctuation-free alphabet this codebase uses for
// on-chain-address-adjacent identifiers.
func newIdempotencyKey() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	raw, err := id.MarshalBinary()
	if err != nil {
		return "", err
	}
	return base58.Encode(raw), nil
}
