package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/application"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/domain"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/ports"
)

const maxRequestBodyBytes = 1 << 20

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			h.logger.WarnContext(r.Context(), "readiness check failed",
				"module", "http.handlers",
				"layer", "adapter",
				"operation", "readyz",
				"outcome", "failure",
				"error", err,
			)
			writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "not ready")
			return
		}
	}
	writeMessage(w, http.StatusOK, "ready")
}

func (h *Handler) createTransaction(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing credentials")
		return
	}
	var req application.CreateTransactionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeDomainError(w, fmt.Errorf("%w: malformed request body", domain.ErrInvalidInput))
		return
	}
	tx, err := h.service.SubmitTransaction(r.Context(), req, claims.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, tx)
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	claims, transactionID, ok := transactionRequest(w, r)
	if !ok {
		return
	}
	tx, err := h.service.GetTransaction(r.Context(), transactionID, claims.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, tx)
}

func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	claims, transactionID, ok := transactionRequest(w, r)
	if !ok {
		return
	}
	alerts, err := h.service.ListAlerts(r.Context(), transactionID, claims.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"alerts": alerts})
}

func transactionRequest(w http.ResponseWriter, r *http.Request) (ports.AuthClaims, uuid.UUID, bool) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing credentials")
		return ports.AuthClaims{}, uuid.Nil, false
	}
	transactionID, err := uuid.Parse(chi.URLParam(r, "transaction_id"))
	if err != nil {
		writeDomainError(w, fmt.Errorf("%w: transaction_id must be a uuid", domain.ErrInvalidInput))
		return ports.AuthClaims{}, uuid.Nil, false
	}
	return claims, transactionID, true
}
