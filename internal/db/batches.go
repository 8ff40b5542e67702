package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tariproject/payment-processor/internal/config"
	"github.com/tariproject/payment-processor/internal/models"
)

// CreateBatch groups paymentIDs into a new batch in PendingBatching status
// and marks those payments Batched, atomically. batch.PRIdempotencyKey is
// the pr_idempotency_key for cycle 1 of this batch's life.
func (d *DB) CreateBatch(batch *models.PaymentBatch, paymentIDs []string) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin create batch: %v", config.ErrStoreError, err)
	}
	defer tx.Rollback()

	// cycle=1 per spec.md §3 ("cycle: integer starting at 1"); only
	// RequeueForSplit advances it.
	_, err = tx.Exec(`
		INSERT INTO payment_batches (id, account_name, status, pr_idempotency_key, is_consolidation, cycle)
		VALUES (?, ?, ?, ?, ?, 1)`,
		batch.ID, batch.AccountName, models.BatchPendingBatching, batch.PRIdempotencyKey, batch.IsConsolidation,
	)
	if err != nil {
		return fmt.Errorf("%w: insert batch: %v", config.ErrStoreError, err)
	}

	for _, paymentID := range paymentIDs {
		res, err := tx.Exec(`
			UPDATE payments SET status = ?, payment_batch_id = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
			WHERE id = ? AND status = ?`,
			models.PaymentBatched, batch.ID, paymentID, models.PaymentReceived,
		)
		if err != nil {
			return fmt.Errorf("%w: assign payment %s to batch: %v", config.ErrStoreError, paymentID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: payment %s was not in Received status when batch was created", config.ErrClaimLost, paymentID)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit create batch: %v", config.ErrStoreError, err)
	}
	return nil
}

// ClaimNextBatch atomically claims the oldest unclaimed batch in fromStatus,
// transitioning it to toStatus and stamping claimed_by/claimed_at. Returns
// (nil, sql.ErrNoRows) if no batch is available. The select and update run
// in one ordinary (deferred) transaction; SQLite admits a single writer, so
// when two callers select the same row only one commits its update and the
// other's update fails with a busy error (returned as ErrStoreError). A row
// is never claimed twice, but a losing caller gets an error rather than the
// next row.
func (d *DB) ClaimNextBatch(fromStatus, toStatus models.BatchStatus, claimedBy string) (*models.PaymentBatch, error) {
	tx, err := d.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("%w: begin claim: %v", config.ErrStoreError, err)
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRow(`
		SELECT id FROM payment_batches
		WHERE status = ? AND claimed_by IS NULL
		ORDER BY created_at ASC LIMIT 1`, fromStatus,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select claimable batch: %v", config.ErrStoreError, err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = tx.Exec(`
		UPDATE payment_batches SET status = ?, claimed_by = ?, claimed_at = ?,
		       updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE id = ?`, toStatus, claimedBy, now, id)
	if err != nil {
		return nil, fmt.Errorf("%w: claim batch %s: %v", config.ErrStoreError, id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit claim: %v", config.ErrStoreError, err)
	}

	return d.GetBatchByID(id)
}

// RecoverStuckClaims reverts batches that have sat claimed in claimedStatus
// past olderThan back to revertStatus with claimed_by cleared and
// retry_count incremented, so another worker can pick them up. Returns the
// number of rows recovered.
func (d *DB) RecoverStuckClaims(claimedStatus, revertStatus models.BatchStatus, olderThan time.Time) (int64, error) {
	cutoff := olderThan.UTC().Format(time.RFC3339Nano)
	res, err := d.conn.Exec(`
		UPDATE payment_batches SET status = ?, claimed_by = NULL, claimed_at = NULL,
		       retry_count = retry_count + 1, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE status = ? AND claimed_at IS NOT NULL AND claimed_at < ?`,
		revertStatus, claimedStatus, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: recover stuck claims: %v", config.ErrStoreError, err)
	}
	return res.RowsAffected()
}

// SetUnsignedTx records the Wallet API's unsigned transaction for a batch,
// its is_consolidation flag, and advances it to AwaitingSignature.
func (d *DB) SetUnsignedTx(batchID, unsignedTxJSON string, isConsolidation bool) error {
	return d.updateBatch(batchID, `
		UPDATE payment_batches SET unsigned_tx_json = ?, is_consolidation = ?, status = ?,
		       claimed_by = NULL, claimed_at = NULL, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE id = ?`, unsignedTxJSON, isConsolidation, models.BatchAwaitingSignature, batchID)
}

// SetSignedTx records the Console Wallet's signed transaction for a batch
// and advances it to AwaitingBroadcast.
func (d *DB) SetSignedTx(batchID, signedTxJSON string) error {
	return d.updateBatch(batchID, `
		UPDATE payment_batches SET signed_tx_json = ?, status = ?, claimed_by = NULL, claimed_at = NULL,
		       updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE id = ?`, signedTxJSON, models.BatchAwaitingBroadcast, batchID)
}

// MarkBroadcast advances a batch to AwaitingConfirmation after the Base
// Node has accepted it into the mempool.
func (d *DB) MarkBroadcast(batchID string) error {
	return d.updateBatch(batchID, `
		UPDATE payment_batches SET status = ?, claimed_by = NULL, claimed_at = NULL,
		       updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE id = ?`, models.BatchAwaitingConfirmation, batchID)
}

// RequeueForSplit implements the one backward arc in the state graph
// (Broadcasting -> PendingBatching): once a consolidation cycle's split
// transactions are broadcast and visible in the mempool, the batch goes back
// to the front of the pipeline with a fresh idempotency key, an incremented
// cycle counter and its unsigned/signed artifacts cleared (spec.md §9
// consolidation sub-protocol).
func (d *DB) RequeueForSplit(batchID, newIdempotencyKey string) error {
	return d.updateBatch(batchID, `
		UPDATE payment_batches SET status = ?, pr_idempotency_key = ?, cycle = cycle + 1,
		       is_consolidation = 1, unsigned_tx_json = NULL, signed_tx_json = NULL,
		       claimed_by = NULL, claimed_at = NULL, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE id = ?`, models.BatchPendingBatching, newIdempotencyKey, batchID)
}

// MarkConfirmed finalizes a batch and every payment it contains as
// Confirmed, atomically, recording the confirming block's height/hash/time.
func (d *DB) MarkConfirmed(batchID string, height int64, headerHash, timestamp string) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin mark confirmed: %v", config.ErrStoreError, err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		UPDATE payment_batches SET status = ?, mined_height = ?, mined_header_hash = ?, mined_timestamp = ?,
		       claimed_by = NULL, claimed_at = NULL, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE id = ?`, models.BatchConfirmed, height, headerHash, timestamp, batchID)
	if err != nil {
		return fmt.Errorf("%w: mark batch confirmed: %v", config.ErrStoreError, err)
	}

	_, err = tx.Exec(`
		UPDATE payments SET status = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE payment_batch_id = ?`, models.PaymentConfirmed, batchID)
	if err != nil {
		return fmt.Errorf("%w: mark payments confirmed: %v", config.ErrStoreError, err)
	}

	return tx.Commit()
}

// MarkFailed finalizes a batch and every payment it contains as Failed,
// atomically, recording reason on both.
func (d *DB) MarkFailed(batchID, reason string) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin mark failed: %v", config.ErrStoreError, err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		UPDATE payment_batches SET status = ?, error_message = ?, claimed_by = NULL, claimed_at = NULL,
		       updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE id = ?`, models.BatchFailed, reason, batchID)
	if err != nil {
		return fmt.Errorf("%w: mark batch failed: %v", config.ErrStoreError, err)
	}

	_, err = tx.Exec(`
		UPDATE payments SET status = ?, failure_reason = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE payment_batch_id = ?`, models.PaymentFailed, reason, batchID)
	if err != nil {
		return fmt.Errorf("%w: mark payments failed: %v", config.ErrStoreError, err)
	}

	return tx.Commit()
}

// ReleaseClaim clears a batch's claim without changing retry_count, for
// outcomes that aren't failures: a store error (spec.md §7, "does not
// consume retry budget") or a Confirmation Checker tick that simply hasn't
// reached finality yet.
func (d *DB) ReleaseClaim(batchID string, status models.BatchStatus) error {
	return d.updateBatch(batchID, `
		UPDATE payment_batches SET status = ?, claimed_by = NULL, claimed_at = NULL,
		       updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE id = ?`, status, batchID)
}

// IncrementRetry bumps a batch's retry_count, releasing its claim so it is
// picked up again on the next poll cycle of revertStatus.
func (d *DB) IncrementRetry(batchID string, revertStatus models.BatchStatus) error {
	return d.updateBatch(batchID, `
		UPDATE payment_batches SET status = ?, retry_count = retry_count + 1,
		       claimed_by = NULL, claimed_at = NULL, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE id = ?`, revertStatus, batchID)
}

// GetBatchByID looks up a batch by its primary key.
func (d *DB) GetBatchByID(id string) (*models.PaymentBatch, error) {
	row := d.conn.QueryRow(`
		SELECT id, account_name, status, pr_idempotency_key, unsigned_tx_json, signed_tx_json,
		       is_consolidation, cycle, error_message, retry_count, mined_height, mined_header_hash,
		       mined_timestamp, claimed_by, claimed_at, created_at, updated_at
		FROM payment_batches WHERE id = ?`, id)
	return scanBatch(row)
}

// ListAwaitingConfirmation returns up to limit batches currently awaiting
// confirmation, oldest first, without claiming them. The Confirmation
// Checker does not use it; it claims rows through ClaimNextBatch.
func (d *DB) ListAwaitingConfirmation(limit int) ([]*models.PaymentBatch, error) {
	rows, err := d.conn.Query(`
		SELECT id, account_name, status, pr_idempotency_key, unsigned_tx_json, signed_tx_json,
		       is_consolidation, cycle, error_message, retry_count, mined_height, mined_header_hash,
		       mined_timestamp, claimed_by, claimed_at, created_at, updated_at
		FROM payment_batches WHERE status = ? ORDER BY created_at ASC LIMIT ?`,
		models.BatchAwaitingConfirmation, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list awaiting confirmation: %v", config.ErrStoreError, err)
	}
	defer rows.Close()

	var out []*models.PaymentBatch
	for rows.Next() {
		b, err := scanBatchRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// updateBatch executes query (whose final placeholder must be the batch id)
// with args, which must already end with batchID.
func (d *DB) updateBatch(batchID, query string, args ...any) error {
	res, err := d.conn.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("%w: update batch %s: %v", config.ErrStoreError, batchID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: batch %s not found", config.ErrClaimLost, batchID)
	}
	return nil
}

func scanBatch(row *sql.Row) (*models.PaymentBatch, error) {
	var b models.PaymentBatch
	var unsignedTx, signedTx, errMsg, headerHash, timestamp, claimedBy, claimedAt sql.NullString
	var minedHeight sql.NullInt64
	err := row.Scan(&b.ID, &b.AccountName, &b.Status, &b.PRIdempotencyKey, &unsignedTx, &signedTx,
		&b.IsConsolidation, &b.Cycle, &errMsg, &b.RetryCount, &minedHeight, &headerHash,
		&timestamp, &claimedBy, &claimedAt, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scan batch: %v", config.ErrStoreError, err)
	}
	applyBatchNullables(&b, unsignedTx, signedTx, errMsg, headerHash, timestamp, claimedBy, claimedAt, minedHeight)
	return &b, nil
}

func scanBatchRows(rows *sql.Rows) (*models.PaymentBatch, error) {
	var b models.PaymentBatch
	var unsignedTx, signedTx, errMsg, headerHash, timestamp, claimedBy, claimedAt sql.NullString
	var minedHeight sql.NullInt64
	err := rows.Scan(&b.ID, &b.AccountName, &b.Status, &b.PRIdempotencyKey, &unsignedTx, &signedTx,
		&b.IsConsolidation, &b.Cycle, &errMsg, &b.RetryCount, &minedHeight, &headerHash,
		&timestamp, &claimedBy, &claimedAt, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: scan batch: %v", config.ErrStoreError, err)
	}
	applyBatchNullables(&b, unsignedTx, signedTx, errMsg, headerHash, timestamp, claimedBy, claimedAt, minedHeight)
	return &b, nil
}

func applyBatchNullables(b *models.PaymentBatch, unsignedTx, signedTx, errMsg, headerHash, timestamp, claimedBy, claimedAt sql.NullString, minedHeight sql.NullInt64) {
	if unsignedTx.Valid {
		b.UnsignedTxJSON = unsignedTx.String
	}
	if signedTx.Valid {
		b.SignedTxJSON = signedTx.String
	}
	if errMsg.Valid {
		b.ErrorMessage = &errMsg.String
	}
	if headerHash.Valid {
		b.MinedHeaderHash = &headerHash.String
	}
	if timestamp.Valid {
		b.MinedTimestamp = &timestamp.String
	}
	if claimedBy.Valid {
		b.ClaimedBy = &claimedBy.String
	}
	if claimedAt.Valid {
		b.ClaimedAt = &claimedAt.String
	}
	if minedHeight.Valid {
		b.MinedHeight = &minedHeight.Int64
	}
}
