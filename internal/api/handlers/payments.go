package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/tariproject/payment-processor/internal/config"
	"github.com/tariproject/payment-processor/internal/db"
	"github.com/tariproject/payment-processor/internal/models"
	"github.com/go-chi/chi/v5"
)

// createPaymentRequest is the body of POST /payments.
type createPaymentRequest struct {
	AccountName      string `json:"account_name"`
	ClientID         string `json:"client_id"`
	RecipientAddress string `json:"recipient_address"`
	Amount           int64  `json:"amount"`
	PaymentID        string `json:"payment_id,omitempty"`
}

// CreatePayment handles POST /payments: admission of a new payment intent
// into PaymentReceived. Idempotent on (account_name, client_id) — a retried
// submission with the same pair returns the original record instead of
// creating a second one (spec.md §3, §8).
func CreatePayment(database *db.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createPaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, config.ErrorInvalidRequest, "malformed request body")
			return
		}

		if err := validateCreatePaymentRequest(req); err != nil {
			writeError(w, http.StatusBadRequest, config.ErrorInvalidRequest, err.Error())
			return
		}

		candidateID := uuid.NewString()
		payment, err := database.CreatePayment(&models.Payment{
			ID:               candidateID,
			ClientID:         req.ClientID,
			AccountName:      req.AccountName,
			RecipientAddress: req.RecipientAddress,
			Amount:           req.Amount,
			PaymentID:        req.PaymentID,
		})
		if err != nil {
			slog.Error("create payment failed", "accountName", req.AccountName, "clientID", req.ClientID, "error", err)
			writeError(w, http.StatusInternalServerError, config.ErrorDatabase, "failed to create payment")
			return
		}

		status := http.StatusOK
		if payment.ID == candidateID {
			status = http.StatusCreated
		}

		writeJSON(w, status, models.APIResponse{Data: payment})
	}
}

// GetPayment handles GET /payments/{id}.
func GetPayment(database *db.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		payment, err := database.GetPaymentByID(id)
		if err != nil {
			writeError(w, http.StatusNotFound, config.ErrorInvalidRequest, "payment not found")
			return
		}

		writeJSON(w, http.StatusOK, models.APIResponse{Data: payment})
	}
}

func validateCreatePaymentRequest(req createPaymentRequest) error {
	if strings.TrimSpace(req.AccountName) == "" {
		return errRequired("account_name")
	}
	if strings.TrimSpace(req.ClientID) == "" {
		return errRequired("client_id")
	}
	if strings.TrimSpace(req.RecipientAddress) == "" {
		return errRequired("recipient_address")
	}
	if req.Amount <= 0 {
		return errPositive("amount")
	}
	return nil
}

type validationError struct {
	field string
	rule  string
}

func (e validationError) Error() string {
	return e.field + " " + e.rule
}

func errRequired(field string) error {
	return validationError{field: field, rule: "is required"}
}

func errPositive(field string) error {
	return validationError{field: field, rule: "must be positive"}
}
