package consolewallet

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/tariproject/payment-processor/internal/config"
	"github.com/tariproject/payment-processor/internal/models"
)

// Serializer wraps a Signer so that at most one signing invocation runs at
// a time: an in-process sync.Mutex serializes goroutines within this
// process, and an on-disk lockfile (O_EXCL create, PID contents) serializes
// across multiple orchestrator processes on the same host sharing one
// wallet instance (spec.md §5 "process-wide serialized resource").
type Serializer struct {
	signer   Signer
	mu       sync.Mutex
	lockPath string
}

// NewSerializer creates a Serializer guarding signer with the lockfile at
// lockPath.
func NewSerializer(signer Signer, lockPath string) *Serializer {
	return &Serializer{signer: signer, lockPath: lockPath}
}

// Sign acquires the in-process mutex, then the on-disk lockfile, invokes
// the wrapped signer, and releases both — in that order, and in reverse on
// the way out.
func (s *Serializer) Sign(ctx context.Context, unsigned models.UnsignedTx) (models.SignedTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.acquireLockfile(); err != nil {
		return models.SignedTx{}, err
	}
	defer s.releaseLockfile()

	return s.signer.Sign(ctx, unsigned)
}

func (s *Serializer) acquireLockfile() error {
	if s.lockPath == "" {
		return nil
	}

	f, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: console wallet lockfile %s held by another process", config.ErrSigningFailed, s.lockPath)
		}
		return fmt.Errorf("%w: create console wallet lockfile: %v", config.ErrSigningFailed, err)
	}
	defer f.Close()

	fmt.Fprintf(f, "%d\n%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	return nil
}

func (s *Serializer) releaseLockfile() {
	if s.lockPath == "" {
		return
	}
	_ = os.Remove(s.lockPath)
}

// pidFromLockfile is a small helper exposed for diagnostics/tests: it reads
// back the PID recorded in an existing lockfile.
func pidFromLockfile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var pid int
	for i, b := range data {
		if b == '\n' {
			pid, err = strconv.Atoi(string(data[:i]))
			return pid, err
		}
	}
	return 0, fmt.Errorf("malformed lockfile")
}
