package walletapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tariproject/payment-processor/internal/config"
)

func testRequest() UnsignedTxRequest {
	return UnsignedTxRequest{
		AccountName:    "acct-1",
		IdempotencyKey: "idem-1",
		Cycle:          1,
		Payments:       []PaymentRequest{{RecipientAddress: "addr1", Amount: 1000}},
	}
}

func TestCreateUnsignedTx_FinalPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"kind":"final","unsigned_tx":{"inputs":[],"outputs":[{"address":"addr1","amount":1000}]}}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL, 100)
	resp, err := client.CreateUnsignedTx(t.Context(), testRequest())
	if err != nil {
		t.Fatalf("CreateUnsignedTx: %v", err)
	}
	if resp.IsConsolidation {
		t.Error("expected IsConsolidation = false for final path")
	}
	if len(resp.UnsignedTxs) != 1 {
		t.Fatalf("expected 1 unsigned tx, got %d", len(resp.UnsignedTxs))
	}
}

func TestCreateUnsignedTx_SplitPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"kind":"split","unsigned_txs":[
			{"inputs":[],"outputs":[{"address":"addr1","amount":500}]},
			{"inputs":[],"outputs":[{"address":"addr1","amount":500}]}
		]}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL, 100)
	resp, err := client.CreateUnsignedTx(t.Context(), testRequest())
	if err != nil {
		t.Fatalf("CreateUnsignedTx: %v", err)
	}
	if !resp.IsConsolidation {
		t.Error("expected IsConsolidation = true for split path")
	}
	if len(resp.UnsignedTxs) != 2 {
		t.Fatalf("expected 2 unsigned txs, got %d", len(resp.UnsignedTxs))
	}
}

func TestCreateUnsignedTx_ServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL, 100)
	_, err := client.CreateUnsignedTx(t.Context(), testRequest())
	if !errors.Is(err, config.ErrTransientExternal) {
		t.Errorf("expected ErrTransientExternal, got %v", err)
	}
}

func TestCreateUnsignedTx_ClientErrorIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL, 100)
	_, err := client.CreateUnsignedTx(t.Context(), testRequest())
	if !errors.Is(err, config.ErrPermanentExternal) {
		t.Errorf("expected ErrPermanentExternal, got %v", err)
	}
}

func TestCreateUnsignedTx_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"kind":"unknown"}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL, 100)
	_, err := client.CreateUnsignedTx(t.Context(), testRequest())
	if !errors.Is(err, config.ErrMalformedWalletResponse) {
		t.Errorf("expected ErrMalformedWalletResponse, got %v", err)
	}
}

func TestCreateUnsignedTx_SplitWithNoTxsIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"kind":"split","unsigned_txs":[]}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL, 100)
	_, err := client.CreateUnsignedTx(t.Context(), testRequest())
	if !errors.Is(err, config.ErrMalformedWalletResponse) {
		t.Errorf("expected ErrMalformedWalletResponse, got %v", err)
	}
}
