package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tariproject/payment-processor/internal/config"
	"github.com/tariproject/payment-processor/internal/db"
	"github.com/tariproject/payment-processor/internal/models"
	"github.com/tariproject/payment-processor/internal/walletapi"
)

// NewUnsignedTxCreator builds the Worker that calls the Wallet API to turn
// a PendingBatching batch into one or more unsigned transactions
// (spec.md §4.2).
func NewUnsignedTxCreator(store *db.DB, client *walletapi.Client, instanceID string, pollInterval, claimTimeout time.Duration, maxRetries, maxCycles int) *Worker {
	process := func(ctx context.Context, batch *models.PaymentBatch) error {
		return processUnsignedTx(ctx, store, client, batch, maxCycles)
	}

	return &Worker{
		Name:         "unsigned_tx_creator",
		Store:        store,
		InstanceID:   instanceID,
		PollInterval: pollInterval,
		// Soft claim (ClaimStatus == FromStatus), but still reclaimable: a
		// process that dies after ClaimNextBatch but before SetUnsignedTx
		// commits would otherwise strand the batch in PendingBatching with
		// a claimed_by no worker ever clears.
		ClaimTimeout:      claimTimeout,
		FromStatus:        models.BatchPendingBatching,
		ClaimStatus:       models.BatchPendingBatching,
		RetryRevertStatus: models.BatchPendingBatching,
		MaxRetries:        maxRetries,
		Process:           process,
	}
}

func processUnsignedTx(ctx context.Context, store *db.DB, client *walletapi.Client, batch *models.PaymentBatch, maxCycles int) error {
	payments, err := store.ListPaymentsForBatch(batch.ID)
	if err != nil {
		return err
	}

	req := walletapi.UnsignedTxRequest{
		AccountName:    batch.AccountName,
		IdempotencyKey: batch.PRIdempotencyKey,
		Cycle:          batch.Cycle,
	}
	for _, p := range payments {
		req.Payments = append(req.Payments, walletapi.PaymentRequest{
			RecipientAddress: p.RecipientAddress,
			Amount:           p.Amount,
			PaymentID:        p.PaymentID,
		})
	}

	resp, err := client.CreateUnsignedTx(ctx, req)
	if err != nil {
		return err
	}

	// spec.md §4.2: a split response is only admissible while cycle < max_cycles.
	if resp.IsConsolidation && batch.Cycle >= maxCycles {
		return fmt.Errorf("%w: split response at cycle %d (max %d)", config.ErrConsolidationExhausted, batch.Cycle, maxCycles)
	}

	encoded, err := json.Marshal(resp.UnsignedTxs)
	if err != nil {
		return fmt.Errorf("%w: marshal unsigned txs: %v", config.ErrMalformedWalletResponse, err)
	}

	return store.SetUnsignedTx(batch.ID, string(encoded), resp.IsConsolidation)
}
