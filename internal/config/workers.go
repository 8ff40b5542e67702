package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// WorkerTiming is the poll cadence shared by every worker.
type WorkerTiming struct {
	PollIntervalMS int `yaml:"poll_interval_ms"`
}

func (t WorkerTiming) PollInterval() time.Duration {
	return time.Duration(t.PollIntervalMS) * time.Millisecond
}

// ClaimingWorkerTiming additionally carries the stuck-claim recovery
// timeout for workers that hold a claim across a blocking external call
// (Unsigned-TX Creator, Signer, Broadcaster).
type ClaimingWorkerTiming struct {
	WorkerTiming  `yaml:",inline"`
	ClaimTimeoutMS int `yaml:"claim_timeout_ms"`
}

func (t ClaimingWorkerTiming) ClaimTimeout() time.Duration {
	return time.Duration(t.ClaimTimeoutMS) * time.Millisecond
}

// WorkerSettings is the nested per-worker configuration loaded from
// Config.WorkersConfigFile. It is kept out of the flat envconfig struct
// because poll intervals and claim timeouts naturally group by worker, and
// env vars don't express nesting well.
type WorkerSettings struct {
	BatchCreator        WorkerTiming         `yaml:"batch_creator"`
	UnsignedTxCreator   ClaimingWorkerTiming `yaml:"unsigned_tx_creator"`
	Signer              ClaimingWorkerTiming `yaml:"signer"`
	Broadcaster         ClaimingWorkerTiming `yaml:"broadcaster"`
	ConfirmationChecker WorkerTiming         `yaml:"confirmation_checker"`
}

// DefaultWorkerSettings mirrors the DefaultXxxPollInterval / DefaultXxxClaimTimeout
// constants, used when no workers config file is present.
func DefaultWorkerSettings() WorkerSettings {
	return WorkerSettings{
		BatchCreator: WorkerTiming{PollIntervalMS: int(DefaultBatchCreatorPollInterval / time.Millisecond)},
		UnsignedTxCreator: ClaimingWorkerTiming{
			WorkerTiming:   WorkerTiming{PollIntervalMS: int(DefaultUnsignedTxCreatorPollInterval / time.Millisecond)},
			ClaimTimeoutMS: int(DefaultUnsignedTxCreatorClaimTimeout / time.Millisecond),
		},
		Signer: ClaimingWorkerTiming{
			WorkerTiming:   WorkerTiming{PollIntervalMS: int(DefaultSignerPollInterval / time.Millisecond)},
			ClaimTimeoutMS: int(DefaultSignerClaimTimeout / time.Millisecond),
		},
		Broadcaster: ClaimingWorkerTiming{
			WorkerTiming:   WorkerTiming{PollIntervalMS: int(DefaultBroadcasterPollInterval / time.Millisecond)},
			ClaimTimeoutMS: int(DefaultBroadcasterClaimTimeout / time.Millisecond),
		},
		ConfirmationChecker: WorkerTiming{PollIntervalMS: int(DefaultConfirmationCheckerPollInterval / time.Millisecond)},
	}
}

// LoadWorkerSettings reads path as YAML. A missing file is not an error —
// callers get DefaultWorkerSettings() instead, since a from-scratch
// deployment shouldn't be required to hand-author this file.
func LoadWorkerSettings(path string) (WorkerSettings, error) {
	settings := DefaultWorkerSettings()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return settings, nil
	}
	if err != nil {
		return WorkerSettings{}, fmt.Errorf("read worker settings %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &settings); err != nil {
		return WorkerSettings{}, fmt.Errorf("%w: parse worker settings %s: %v", ErrInvalidConfig, path, err)
	}

	if err := settings.Validate(); err != nil {
		return WorkerSettings{}, err
	}

	return settings, nil
}

// Validate checks that every configured interval/timeout is positive.
func (s WorkerSettings) Validate() error {
	checks := map[string]int{
		"batch_creator.poll_interval_ms":         s.BatchCreator.PollIntervalMS,
		"unsigned_tx_creator.poll_interval_ms":   s.UnsignedTxCreator.PollIntervalMS,
		"unsigned_tx_creator.claim_timeout_ms":   s.UnsignedTxCreator.ClaimTimeoutMS,
		"signer.poll_interval_ms":                s.Signer.PollIntervalMS,
		"signer.claim_timeout_ms":                s.Signer.ClaimTimeoutMS,
		"broadcaster.poll_interval_ms":            s.Broadcaster.PollIntervalMS,
		"broadcaster.claim_timeout_ms":            s.Broadcaster.ClaimTimeoutMS,
		"confirmation_checker.poll_interval_ms":   s.ConfirmationChecker.PollIntervalMS,
	}
	for name, v := range checks {
		if v <= 0 {
			return fmt.Errorf("%w: %s must be > 0, got %d", ErrInvalidConfig, name, v)
		}
	}
	return nil
}
