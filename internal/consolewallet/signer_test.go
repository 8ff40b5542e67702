package consolewallet

import (
	"errors"
	"testing"

	"github.com/tariproject/payment-processor/internal/config"
	"github.com/tariproject/payment-processor/internal/models"
)

func TestExecSigner_SignsViaStdinStdout(t *testing.T) {
	signed := models.SignedTx{Raw: []byte{0xab, 0xcd}}
	payload, err := signed.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}

	// ExecSigner always writes the *unsigned* tx to stdin; here we want to
	// control stdout independently, so the "wallet" is a shell that ignores
	// stdin and echoes our fixture.
	signer := NewExecSigner("sh", "-c", "cat <<'EOF'\n"+string(payload)+"\nEOF")

	result, err := signer.Sign(t.Context(), models.UnsignedTx{})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if result.String() != signed.String() {
		t.Errorf("signed tx hash = %s, want %s", result.String(), signed.String())
	}
}

func TestExecSigner_NonZeroExitIsSigningFailure(t *testing.T) {
	signer := NewExecSigner("sh", "-c", "exit 1")
	_, err := signer.Sign(t.Context(), models.UnsignedTx{})
	if !errors.Is(err, config.ErrSigningFailed) {
		t.Errorf("expected ErrSigningFailed, got %v", err)
	}
}

func TestExecSigner_MalformedOutputIsSigningFailure(t *testing.T) {
	signer := NewExecSigner("sh", "-c", "echo not-json")
	_, err := signer.Sign(t.Context(), models.UnsignedTx{})
	if !errors.Is(err, config.ErrSigningFailed) {
		t.Errorf("expected ErrSigningFailed, got %v", err)
	}
}

func TestFakeSigner_RecordsCallsAndHonorsErr(t *testing.T) {
	fake := &FakeSigner{Err: config.ErrSigningFailed}
	_, err := fake.Sign(t.Context(), models.UnsignedTx{Outputs: []models.TxOutput{{Address: "addr1", Amount: 1}}})
	if !errors.Is(err, config.ErrSigningFailed) {
		t.Errorf("expected ErrSigningFailed, got %v", err)
	}
	if len(fake.Calls) != 1 {
		t.Fatalf("expected 1 recorded call, got %d", len(fake.Calls))
	}
}
