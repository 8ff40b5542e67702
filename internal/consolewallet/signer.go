// Package consolewallet encapsulates the Console Wallet subprocess — the
// out-of-process binary that holds signing keys (spec.md §6). The signer
// invocation crosses a process boundary, so it sits behind an interface
// with a real subprocess implementation and an in-memory test double,
// letting the Signer worker's retry/timeout logic be tested without a
// wallet binary present (spec.md §9).
package consolewallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/tariproject/payment-processor/internal/config"
	"github.com/tariproject/payment-processor/internal/models"
)

// Signer produces a signed transaction from an unsigned one.
type Signer interface {
	Sign(ctx context.Context, unsigned models.UnsignedTx) (models.SignedTx, error)
}

// ExecSigner invokes the real Console Wallet binary: the unsigned
// transaction is written to its stdin as JSON, the signed transaction is
// read from its stdout as JSON. A non-zero exit code is a signing failure.
type ExecSigner struct {
	command string
	args    []string
}

// NewExecSigner creates a signer that invokes command (with args) per call.
func NewExecSigner(command string, args ...string) *ExecSigner {
	return &ExecSigner{command: command, args: args}
}

// Sign runs the Console Wallet subprocess once. Callers are expected to
// serialize concurrent calls via Serializer — ExecSigner itself does not.
func (s *ExecSigner) Sign(ctx context.Context, unsigned models.UnsignedTx) (models.SignedTx, error) {
	payload, err := json.Marshal(unsigned)
	if err != nil {
		return models.SignedTx{}, fmt.Errorf("marshal unsigned tx: %w", err)
	}

	cmd := exec.CommandContext(ctx, s.command, s.args...)
	cmd.Stdin = bytes.NewReader(payload)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("invoking console wallet", "command", s.command)

	if err := cmd.Run(); err != nil {
		return models.SignedTx{}, fmt.Errorf("%w: console wallet exited with error: %v: %s", config.ErrSigningFailed, err, stderr.String())
	}

	var signed models.SignedTx
	if err := json.Unmarshal(stdout.Bytes(), &signed); err != nil {
		return models.SignedTx{}, fmt.Errorf("%w: decode console wallet output: %v", config.ErrSigningFailed, err)
	}

	return signed, nil
}

// FakeSigner is an in-memory test double. Sign returns Err when it is set;
// otherwise SignFunc, when set, computes the signed transaction; otherwise
// Sign returns a deterministic zero-value signed tx.
type FakeSigner struct {
	SignFunc func(unsigned models.UnsignedTx) (models.SignedTx, error)
	Err      error
	Calls    []models.UnsignedTx
}

// Sign records the call and delegates to SignFunc/Err.
func (f *FakeSigner) Sign(_ context.Context, unsigned models.UnsignedTx) (models.SignedTx, error) {
	f.Calls = append(f.Calls, unsigned)
	if f.Err != nil {
		return models.SignedTx{}, f.Err
	}
	if f.SignFunc != nil {
		return f.SignFunc(unsigned)
	}
	return models.SignedTx{}, nil
}
