// Package basenode is a typed binding for the Base Node: the external
// service that accepts signed transactions and reports chain depth
// (spec.md §6).
package basenode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tariproject/payment-processor/internal/config"
	"github.com/tariproject/payment-processor/internal/models"
)

// SubmitResult is the outcome of submit_transaction.
type SubmitResult struct {
	Accepted  bool
	Permanent bool
	Reason    string
}

// ConfirmationResult is the outcome of query_confirmations.
type ConfirmationResult struct {
	Found       bool
	Reorged     bool
	Depth       int64
	MinedHeight int64
	HeaderHash  string
	Timestamp   string
}

// Client calls the Base Node's submit_transaction / query_mempool /
// query_confirmations operations over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a Base Node client.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{httpClient: httpClient, baseURL: baseURL}
}

type submitRequest struct {
	Raw string `json:"raw"`
}

type submitResponse struct {
	Accepted  bool   `json:"accepted"`
	Permanent bool   `json:"permanent"`
	Reason    string `json:"reason"`
}

// SubmitTransaction broadcasts a signed transaction. A 5xx/network error is
// transient; a node-reported rejection is permanent only when the node
// says so (matching the teacher's badTxError split between a 400 "bad
// transaction" response and any other provider failure).
func (c *Client) SubmitTransaction(ctx context.Context, signed models.SignedTx) (*SubmitResult, error) {
	body, err := json.Marshal(submitRequest{Raw: signed.Raw.String()})
	if err != nil {
		return nil, fmt.Errorf("marshal submit request: %w", err)
	}

	respBody, status, err := c.post(ctx, "/submit_transaction", body)
	if err != nil {
		return nil, err
	}
	if status >= 500 {
		return nil, fmt.Errorf("%w: base node submit HTTP %d: %s", config.ErrTransientExternal, status, string(respBody))
	}

	var decoded submitResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("%w: decode submit response: %v", config.ErrMalformedWalletResponse, err)
	}

	return &SubmitResult{Accepted: decoded.Accepted, Permanent: decoded.Permanent, Reason: decoded.Reason}, nil
}

type mempoolResponse struct {
	Present bool `json:"present"`
}

// QueryMempool reports whether txHash is currently visible in the node's
// mempool, used by the Broadcaster's consolidation-split verification step.
func (c *Client) QueryMempool(ctx context.Context, txHash string) (bool, error) {
	respBody, status, err := c.get(ctx, "/query_mempool?tx_hash="+txHash)
	if err != nil {
		return false, err
	}
	if status >= 500 {
		return false, fmt.Errorf("%w: base node query_mempool HTTP %d: %s", config.ErrTransientExternal, status, string(respBody))
	}

	var decoded mempoolResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return false, fmt.Errorf("%w: decode mempool response: %v", config.ErrMalformedWalletResponse, err)
	}
	return decoded.Present, nil
}

type confirmationsResponse struct {
	Status string `json:"status"` // "found" | "not_found" | "reorged_out"
	Depth  int64  `json:"depth"`
	Mined  *struct {
		Height     int64  `json:"height"`
		HeaderHash string `json:"header_hash"`
		Timestamp  string `json:"timestamp"`
	} `json:"mined,omitempty"`
}

// QueryConfirmations reports the chain depth of txHash, used by the
// Confirmation Checker.
func (c *Client) QueryConfirmations(ctx context.Context, txHash string) (*ConfirmationResult, error) {
	respBody, status, err := c.get(ctx, "/query_confirmations?tx_hash="+txHash)
	if err != nil {
		return nil, err
	}
	if status >= 500 {
		return nil, fmt.Errorf("%w: base node query_confirmations HTTP %d: %s", config.ErrTransientExternal, status, string(respBody))
	}

	var decoded confirmationsResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("%w: decode confirmations response: %v", config.ErrMalformedWalletResponse, err)
	}

	switch decoded.Status {
	case "reorged_out":
		return &ConfirmationResult{Reorged: true}, nil
	case "not_found":
		return &ConfirmationResult{Found: false}, nil
	case "found":
		result := &ConfirmationResult{Found: true, Depth: decoded.Depth}
		if decoded.Mined != nil {
			result.MinedHeight = decoded.Mined.Height
			result.HeaderHash = decoded.Mined.HeaderHash
			result.Timestamp = decoded.Mined.Timestamp
		}
		return result, nil
	default:
		return nil, fmt.Errorf("%w: unrecognized confirmation status %q", config.ErrMalformedWalletResponse, decoded.Status)
	}
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) get(ctx context.Context, path string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: base node request: %v", config.ErrTransientExternal, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read base node response: %v", config.ErrTransientExternal, err)
	}
	return body, resp.StatusCode, nil
}
