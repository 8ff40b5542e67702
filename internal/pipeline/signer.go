package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tariproject/payment-processor/internal/config"
	"github.com/tariproject/payment-processor/internal/consolewallet"
	"github.com/tariproject/payment-processor/internal/db"
	"github.com/tariproject/payment-processor/internal/models"
)

// NewSignerWorker builds the Worker that claims AwaitingSignature batches
// into SigningInProgress and invokes the Console Wallet once per unsigned
// transaction, in order (spec.md §4.3). Multiple signer workers may run
// concurrently (spec.md §5); they share one consolewallet.Serializer.
func NewSignerWorker(store *db.DB, signer consolewallet.Signer, instanceID string, pollInterval, claimTimeout time.Duration, maxRetries int) *Worker {
	process := func(ctx context.Context, batch *models.PaymentBatch) error {
		return processSigning(ctx, store, signer, batch)
	}

	return &Worker{
		Name:              "signer",
		Store:             store,
		InstanceID:        instanceID,
		PollInterval:      pollInterval,
		ClaimTimeout:      claimTimeout,
		FromStatus:        models.BatchAwaitingSignature,
		ClaimStatus:       models.BatchSigningInProgress,
		RetryRevertStatus: models.BatchAwaitingSignature,
		MaxRetries:        maxRetries,
		Process:           process,
	}
}

func processSigning(ctx context.Context, store *db.DB, signer consolewallet.Signer, batch *models.PaymentBatch) error {
	var unsignedTxs []models.UnsignedTx
	if err := json.Unmarshal([]byte(batch.UnsignedTxJSON), &unsignedTxs); err != nil {
		return fmt.Errorf("%w: decode unsigned_tx_json: %v", config.ErrMalformedWalletResponse, err)
	}

	signedTxs := make([]models.SignedTx, 0, len(unsignedTxs))
	for _, unsigned := range unsignedTxs {
		signed, err := signer.Sign(ctx, unsigned)
		if err != nil {
			return fmt.Errorf("%w: %v", config.ErrSigningFailed, err)
		}
		signedTxs = append(signedTxs, signed)
	}

	encoded, err := json.Marshal(signedTxs)
	if err != nil {
		return fmt.Errorf("marshal signed txs: %w", err)
	}

	return store.SetSignedTx(batch.ID, string(encoded))
}
