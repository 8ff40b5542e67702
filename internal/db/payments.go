package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/tariproject/payment-processor/internal/config"
	"github.com/tariproject/payment-processor/internal/models"
)

// CreatePayment inserts a new payment in PaymentReceived status. If a
// payment already exists for (account_name, client_id) it returns that
// existing row instead of erroring, giving callers idempotent admission
// for free (spec.md §3, §8 "idempotent admission").
func (d *DB) CreatePayment(p *models.Payment) (*models.Payment, error) {
	existing, err := d.GetPaymentByClientID(p.AccountName, p.ClientID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	_, err = d.conn.Exec(`
		INSERT INTO payments (id, client_id, account_name, status, recipient_address, amount, payment_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ClientID, p.AccountName, models.PaymentReceived, p.RecipientAddress, p.Amount, p.PaymentID,
	)
	if err != nil {
		// A concurrent insert may have won the race on the unique index
		// between our lookup and our insert; fall back to reading it.
		if again, lookupErr := d.GetPaymentByClientID(p.AccountName, p.ClientID); lookupErr == nil && again != nil {
			return again, nil
		}
		return nil, fmt.Errorf("%w: insert payment: %v", config.ErrStoreError, err)
	}

	return d.GetPaymentByID(p.ID)
}

// GetPaymentByClientID looks up a payment by its admission idempotency key,
// (account_name, client_id). Returns (nil, sql.ErrNoRows) if absent.
func (d *DB) GetPaymentByClientID(accountName, clientID string) (*models.Payment, error) {
	row := d.conn.QueryRow(`
		SELECT id, client_id, account_name, status, payment_batch_id, recipient_address,
		       amount, payment_id, failure_reason, created_at, updated_at
		FROM payments WHERE account_name = ? AND client_id = ?`, accountName, clientID)
	return scanPayment(row)
}

// GetPaymentByID looks up a payment by its primary key.
func (d *DB) GetPaymentByID(id string) (*models.Payment, error) {
	row := d.conn.QueryRow(`
		SELECT id, client_id, account_name, status, payment_batch_id, recipient_address,
		       amount, payment_id, failure_reason, created_at, updated_at
		FROM payments WHERE id = ?`, id)
	return scanPayment(row)
}

// ListReceivedPayments returns payments in PaymentReceived status, oldest
// first, up to limit rows. This is the Batch Creator's candidate pool.
func (d *DB) ListReceivedPayments(accountName string, limit int) ([]*models.Payment, error) {
	rows, err := d.conn.Query(`
		SELECT id, client_id, account_name, status, payment_batch_id, recipient_address,
		       amount, payment_id, failure_reason, created_at, updated_at
		FROM payments WHERE account_name = ? AND status = ? ORDER BY created_at ASC, id ASC LIMIT ?`,
		accountName, models.PaymentReceived, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list received payments: %v", config.ErrStoreError, err)
	}
	defer rows.Close()

	var out []*models.Payment
	for rows.Next() {
		p, err := scanPaymentRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListDistinctAccountsWithReceivedPayments returns the account names that
// currently have at least one payment waiting to be batched, so the Batch
// Creator can iterate accounts independently of each other.
func (d *DB) ListDistinctAccountsWithReceivedPayments() ([]string, error) {
	rows, err := d.conn.Query(`SELECT DISTINCT account_name FROM payments WHERE status = ?`, models.PaymentReceived)
	if err != nil {
		return nil, fmt.Errorf("%w: list accounts: %v", config.ErrStoreError, err)
	}
	defer rows.Close()

	var accounts []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: scan account: %v", config.ErrStoreError, err)
		}
		accounts = append(accounts, name)
	}
	return accounts, rows.Err()
}

// ListPaymentsForBatch returns the payments assigned to batchID, ordered by
// created_at then id — the same deterministic ordering the Batch Creator
// used when forming the batch (spec.md §4.1), since the Wallet API request
// must reproduce that order across retries.
func (d *DB) ListPaymentsForBatch(batchID string) ([]*models.Payment, error) {
	rows, err := d.conn.Query(`
		SELECT id, client_id, account_name, status, payment_batch_id, recipient_address,
		       amount, payment_id, failure_reason, created_at, updated_at
		FROM payments WHERE payment_batch_id = ? ORDER BY created_at ASC, id ASC`, batchID)
	if err != nil {
		return nil, fmt.Errorf("%w: list payments for batch: %v", config.ErrStoreError, err)
	}
	defer rows.Close()

	var out []*models.Payment
	for rows.Next() {
		p, err := scanPaymentRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPayment(row *sql.Row) (*models.Payment, error) {
	var p models.Payment
	err := row.Scan(&p.ID, &p.ClientID, &p.AccountName, &p.Status, &p.PaymentBatchID, &p.RecipientAddress,
		&p.Amount, &p.PaymentID, &p.FailureReason, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scan payment: %v", config.ErrStoreError, err)
	}
	return &p, nil
}

func scanPaymentRows(rows *sql.Rows) (*models.Payment, error) {
	var p models.Payment
	err := rows.Scan(&p.ID, &p.ClientID, &p.AccountName, &p.Status, &p.PaymentBatchID, &p.RecipientAddress,
		&p.Amount, &p.PaymentID, &p.FailureReason, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: scan payment: %v", config.ErrStoreError, err)
	}
	return &p, nil
}
