package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/application"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/domain"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/ports"
)

// TransactionService is the slice of *application.Service served over HTTP.
type TransactionService interface {
	SubmitTransaction(ctx context.Context, req application.CreateTransactionRequest, userID uuid.UUID) (domain.Transaction, error)
	GetTransaction(ctx context.Context, transactionID, userID uuid.UUID) (domain.Transaction, error)
	ListAlerts(ctx context.Context, transactionID, userID uuid.UUID) ([]domain.Alert, error)
}

type ReadinessCheck func(ctx context.Context) error

type RouterConfig struct {
	Logger         *slog.Logger
	Service        TransactionService
	Verifier       ports.TokenVerifier
	Ready          ReadinessCheck
	MetricsHandler http.Handler
}

type Handler struct {
	service TransactionService
	ready   ReadinessCheck
	logger  *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	h := &Handler{service: cfg.Service, ready: cfg.Ready, logger: cfg.Logger}

	r := newBaseRouter(h, cfg.MetricsHandler)
	r.Route("/v1/transactions", func(r chi.Router) {
		r.Use(authMiddleware(cfg.Verifier))
		r.Post("/", h.createTransaction)
		r.Get("/{transaction_id}", h.getTransaction)
		r.Get("/{transaction_id}/alerts", h.listAlerts)
	})
	return r
}

// NewOpsRouter serves only the health, readiness and metrics endpoints.
func NewOpsRouter(logger *slog.Logger, ready ReadinessCheck, metricsHandler http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return newBaseRouter(&Handler{ready: ready, logger: logger}, metricsHandler)
}

func newBaseRouter(h *Handler, metricsHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware(h.logger))
	r.Use(loggingMiddleware(h.logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeMessage(w, http.StatusOK, "ok") })
	r.Get("/readyz", h.readyz)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}
	return r
}
