package config

import "errors"

// Sentinel errors classifying failures per the taxonomy in spec.md §7.
// Workers branch on these with errors.Is; they are the Go-side half of the
// code/reason pairing (see the Error* string constants below, which are
// what gets persisted to error_message/failure_reason for API consumers,
// except for consolidation exhaustion and reorg-out, which persist
// models.FailureConsolidationExhausted / models.FailureReorgedOut).
var (
	ErrTransientExternal    = errors.New("transient external failure")
	ErrPermanentExternal    = errors.New("permanent external rejection")
	ErrSigningFailed        = errors.New("console wallet signing failed")
	ErrReorgedOut           = errors.New("transaction reorged out of the chain")
	ErrConsolidationExhausted = errors.New("consolidation split requested past max cycles")
	ErrMalformedWalletResponse = errors.New("malformed wallet API response")
	ErrStoreError           = errors.New("store operation failed")
	ErrClaimLost            = errors.New("row claimed by another worker")
	ErrRetryBudgetExhausted = errors.New("retry budget exhausted")
	ErrInvalidConfig        = errors.New("invalid configuration")
	ErrDuplicateClientID    = errors.New("duplicate client_id for account")
)

// Error codes — the string form of failure_reason surfaced via the query
// endpoint, and the code field of the admission API's error bodies.
const (
	ErrorInvalidRequest           = "ERROR_INVALID_REQUEST"
	ErrorInvalidAccount           = "ERROR_INVALID_ACCOUNT"
	ErrorDatabase                 = "ERROR_DATABASE"
	ErrorWalletAPIUnavailable     = "ERROR_WALLET_API_UNAVAILABLE"
	ErrorWalletAPIRejected        = "ERROR_WALLET_API_REJECTED"
	ErrorMalformedWalletResponse  = "ERROR_MALFORMED_WALLET_RESPONSE"
	ErrorConsolidationExhausted   = "ERROR_CONSOLIDATION_EXHAUSTED"
	ErrorSigningFailed            = "ERROR_SIGNING_FAILED"
	ErrorBroadcastRejected        = "ERROR_BROADCAST_REJECTED"
	ErrorBroadcastUnavailable     = "ERROR_BROADCAST_UNAVAILABLE"
	ErrorMempoolVerificationFailed = "ERROR_MEMPOOL_VERIFICATION_FAILED"
	ErrorReorgedOut               = "ERROR_REORGED_OUT"
	ErrorRetryBudgetExhausted     = "ERROR_RETRY_BUDGET_EXHAUSTED"
	ErrorInvalidConfig            = "ERROR_INVALID_CONFIG"
)
