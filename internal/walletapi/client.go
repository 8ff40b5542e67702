// Package walletapi is a typed binding for the Wallet/Account API: the
// external service that turns a batch's payment list into one or more
// unsigned transactions (spec.md §6).
package walletapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/tariproject/payment-processor/internal/config"
	"github.com/tariproject/payment-processor/internal/models"
	"golang.org/x/time/rate"
)

// PaymentRequest is a single payment line item within an UnsignedTxRequest.
type PaymentRequest struct {
	RecipientAddress string `json:"recipient_address"`
	Amount           int64  `json:"amount"`
	PaymentID        string `json:"payment_id,omitempty"`
}

// UnsignedTxRequest is the body of a request to construct unsigned
// transaction(s) for a batch, per spec.md §6.
type UnsignedTxRequest struct {
	AccountName      string           `json:"account_name"`
	Payments         []PaymentRequest `json:"payments"`
	IdempotencyKey   string           `json:"idempotency_key"`
	Cycle            int              `json:"cycle"`
}

// responseEnvelope decodes both shapes the Wallet API can return; its Kind
// field discriminates them
// (spec.md §9 Open Question (a): the discriminator field is assumed to be
// "kind", following the final/split vocabulary the spec itself uses).
type responseEnvelope struct {
	Kind        string            `json:"kind"`
	UnsignedTx  *models.UnsignedTx  `json:"unsigned_tx,omitempty"`
	UnsignedTxs []models.UnsignedTx `json:"unsigned_txs,omitempty"`
}

const (
	kindFinal = "final"
	kindSplit = "split"
)

// Response is the decoded, validated result of an unsigned-tx request.
type Response struct {
	IsConsolidation bool
	UnsignedTxs     []models.UnsignedTx
}

// Client calls the Wallet/Account API's unsigned-transaction-construction
// endpoint. Rate limited client-side (token bucket, burst 1) matching the
// teacher's per-provider rate limiter posture, so a runaway batch loop
// cannot hammer the API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// NewClient creates a Wallet API client rate limited to rps requests/second.
func NewClient(httpClient *http.Client, baseURL string, rps int) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// CreateUnsignedTx requests unsigned transaction(s) for a batch. The
// returned Response.IsConsolidation distinguishes the split path from the
// final path per spec.md §4.2; callers are responsible for rejecting a
// split response when cycle has reached max_cycles (consolidation
// exhaustion is a pipeline-level decision, not a client-level one).
func (c *Client) CreateUnsignedTx(ctx context.Context, req UnsignedTxRequest) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter wait: %v", config.ErrTransientExternal, err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal unsigned tx request: %w", err)
	}

	url := c.baseURL + "/unsigned-transactions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	slog.Debug("wallet api request", "account", req.AccountName, "cycle", req.Cycle, "idempotencyKey", req.IdempotencyKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: wallet api request: %v", config.ErrTransientExternal, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read wallet api response: %v", config.ErrTransientExternal, err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: wallet api HTTP %d: %s", config.ErrTransientExternal, resp.StatusCode, string(respBody))
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: wallet api HTTP %d: %s", config.ErrPermanentExternal, resp.StatusCode, string(respBody))
	}

	var env responseEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("%w: decode wallet api response: %v", config.ErrMalformedWalletResponse, err)
	}

	switch env.Kind {
	case kindFinal:
		if env.UnsignedTx == nil {
			return nil, fmt.Errorf("%w: kind=final with no unsigned_tx", config.ErrMalformedWalletResponse)
		}
		return &Response{IsConsolidation: false, UnsignedTxs: []models.UnsignedTx{*env.UnsignedTx}}, nil
	case kindSplit:
		if len(env.UnsignedTxs) == 0 {
			return nil, fmt.Errorf("%w: kind=split with no unsigned_txs", config.ErrMalformedWalletResponse)
		}
		return &Response{IsConsolidation: true, UnsignedTxs: env.UnsignedTxs}, nil
	default:
		return nil, fmt.Errorf("%w: unrecognized kind %q", config.ErrMalformedWalletResponse, env.Kind)
	}
}
