package config

import "time"

// Batching.
const (
	DefaultMaxPaymentsPerBatch = 100
)

// Retry / claim budgets.
const (
	DefaultMaxRetries = 5

	DefaultSignerClaimTimeout          = 5 * time.Minute
	DefaultBroadcasterClaimTimeout     = 2 * time.Minute
	DefaultUnsignedTxCreatorClaimTimeout = time.Minute
)

// Consolidation.
const (
	DefaultMaxCycles = 2
)

// Confirmation.
const (
	DefaultConfirmationDepth = 10
)

// Worker poll cadence — deliberately staggered across worker types so five
// independently-scheduled goroutines don't all wake on the same tick.
const (
	DefaultBatchCreatorPollInterval        = 2 * time.Second
	DefaultUnsignedTxCreatorPollInterval   = 3 * time.Second
	DefaultSignerPollInterval              = 1 * time.Second
	DefaultBroadcasterPollInterval         = 2500 * time.Millisecond
	DefaultConfirmationCheckerPollInterval = 15 * time.Second
)

// Mempool verification backoff ladder for the consolidation split path
// (spec.md §9 Open Question (b)): six attempts with waits of 500ms, 1s, 2s,
// 4s, 8s between them, each wait doubling up to an 8s ceiling.
const (
	MempoolVerifyBaseDelay = 500 * time.Millisecond
	MempoolVerifyMaxDelay  = 8 * time.Second
	MempoolVerifyAttempts  = 6
)

// External call timeouts.
const (
	WalletAPITimeout     = 15 * time.Second
	ConsoleWalletTimeout = 30 * time.Second
	BaseNodeTimeout      = 10 * time.Second
)

// WalletAPIRateLimit caps requests/second to the Wallet/Account API
// client-side (token bucket, burst 1 — see internal/walletapi.Client).
const WalletAPIRateLimit = 5

// HTTP server.
const (
	ServerReadTimeout    = 15 * time.Second
	ServerWriteTimeout   = 30 * time.Second
	ServerIdleTimeout    = 60 * time.Second
	ServerMaxHeaderBytes = 1 << 20
	ShutdownTimeout      = 30 * time.Second
)

// Logging.
const (
	LogDir         = "./logs"
	LogFilePattern = "payment-processor-%s-%s.log" // %s = YYYY-MM-DD, level
	LogMaxAgeDays  = 30
)

// Database.
const (
	DBPath        = "./data/payments.sqlite"
	DBBusyTimeout = 5000 // milliseconds
)

// Console Wallet subprocess lockfile — guards against two orchestrator
// processes on the same host invoking the signer concurrently.
const (
	ConsoleWalletLockfile = "./data/console-wallet.lock"
)

// Metrics.
const (
	MetricsNamespace = "payment_processor"
)
