// Package models holds the persisted entity shapes shared across the
// orchestrator: payments, payment batches, and the status vocabularies
// that drive the pipeline's state machine.
package models

// PaymentStatus is the lifecycle state of a client-submitted payment.
type PaymentStatus string

const (
	PaymentReceived  PaymentStatus = "Received"
	PaymentBatched   PaymentStatus = "Batched"
	PaymentConfirmed PaymentStatus = "Confirmed"
	PaymentFailed    PaymentStatus = "Failed"
)

// BatchStatus is the lifecycle state of a payment batch moving through the
// pipeline. Each worker in internal/pipeline performs its own forward
// transitions; the single backward arc (Broadcasting -> PendingBatching) is
// db.RequeueForSplit.
type BatchStatus string

const (
	BatchPendingBatching      BatchStatus = "PendingBatching"
	BatchAwaitingSignature    BatchStatus = "AwaitingSignature"
	BatchSigningInProgress    BatchStatus = "SigningInProgress"
	BatchAwaitingBroadcast    BatchStatus = "AwaitingBroadcast"
	BatchBroadcasting         BatchStatus = "Broadcasting"
	BatchAwaitingConfirmation BatchStatus = "AwaitingConfirmation"
	BatchConfirmed            BatchStatus = "Confirmed"
	BatchFailed               BatchStatus = "Failed"
)

// Payment is the immutable business intent behind a single client request.
// Only Status, PaymentBatchID, FailureReason, and UpdatedAt mutate after
// creation.
type Payment struct {
	ID               string
	ClientID         string
	AccountName      string
	Status           PaymentStatus
	PaymentBatchID   *string
	RecipientAddress string
	Amount           int64
	PaymentID        string // optional client memo, distinct from the system ID
	FailureReason    *string
	CreatedAt        string
	UpdatedAt        string
}

// PaymentBatch is the pipeline's unit of work. Every payment referencing a
// batch shares its AccountName (invariant 2 in spec.md §3).
type PaymentBatch struct {
	ID               string
	AccountName      string
	Status           BatchStatus
	PRIdempotencyKey string
	UnsignedTxJSON   string // JSON array, see internal/models.UnsignedTx
	SignedTxJSON     string // JSON array, see internal/models.SignedTx
	IsConsolidation  bool
	Cycle            int
	ErrorMessage     *string
	RetryCount       int
	MinedHeight      *int64
	MinedHeaderHash  *string
	MinedTimestamp   *string
	ClaimedBy        *string
	ClaimedAt        *string
	CreatedAt        string
	UpdatedAt        string
}

// Failure reasons for a batch (mirrored onto its payments).
// FailureConsolidationExhausted and FailureReorgedOut are recorded when a
// batch fails for those causes; other failures record a config.Error* code,
// and FailureRetryBudgetExhausted / FailurePermanentRejection are not
// recorded by any worker.
const (
	FailureConsolidationExhausted = "consolidation-exhausted"
	FailureReorgedOut             = "reorged-out"
	FailureRetryBudgetExhausted   = "retry-budget-exhausted"
	FailurePermanentRejection     = "permanent-rejection"
)

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Data interface{} `json:"data,omitempty"`
	Meta *APIMeta    `json:"meta,omitempty"`
}

// APIMeta contains pagination and execution metadata.
type APIMeta struct {
	Page          int   `json:"page,omitempty"`
	PageSize      int   `json:"pageSize,omitempty"`
	Total         int64 `json:"total,omitempty"`
	ExecutionTime int64 `json:"executionTime,omitempty"`
}

// APIError is the standard error response.
type APIError struct {
	Error APIErrorDetail `json:"error"`
}

// APIErrorDetail contains error code and message.
type APIErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
