package application

import (
	"context"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/domain"
)

// SubmitTransaction stores a PENDING transaction and requests its evaluation.
// An enqueue failure is recorded and never fails the request.
func (s *Service) SubmitTransaction(ctx context.Context, req CreateTransactionRequest, userID uuid.UUID) (domain.Transaction, error) {
	tx, err := s.CreateTransaction(ctx, req, userID)
	if err != nil {
		return domain.Transaction{}, err
	}
	s.EnqueueEvaluation(ctx, tx.TransactionID)
	return tx, nil
}

func (s *Service) CreateTransaction(ctx context.Context, req CreateTransactionRequest, userID uuid.UUID) (domain.Transaction, error) {
	if userID == uuid.Nil {
		return domain.Transaction{}, domain.ErrUnauthorized
	}
	now := s.now()
	in, err := domain.NormalizeTransactionInput(domain.NewTransactionInput{
		Amount:          req.Amount,
		Currency:        req.Currency,
		Location:        req.Location,
		DeviceID:        req.DeviceID,
		IPAddress:       req.IPAddress,
		TransactionTime: req.TransactionTime,
	}, now)
	if err != nil {
		return domain.Transaction{}, err
	}

	created, err := s.transactions.Create(ctx, domain.Transaction{
		TransactionID:   uuid.New(),
		UserID:          userID,
		Amount:          in.Amount,
		Currency:        in.Currency,
		Location:        in.Location,
		DeviceID:        in.DeviceID,
		IPAddress:       in.IPAddress,
		TransactionTime: *in.TransactionTime,
		Status:          domain.TransactionStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	s.logger.InfoContext(ctx, "transaction_created",
		"module", "application.producer",
		"layer", "application",
		"operation", "create_transaction",
		"outcome", "success",
		"transaction_id", created.TransactionID.String(),
		"user_id", userID.String(),
		"amount", created.Amount.StringFixed(2),
		"currency", created.Currency,
	)
	return created, nil
}

// EnqueueEvaluation reports whether the job was handed to the queue.
func (s *Service) EnqueueEvaluation(ctx context.Context, transactionID uuid.UUID) bool {
	job := domain.NewEvaluationJob(transactionID, s.now())
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		s.metrics.EnqueueFailed()
		s.logger.ErrorContext(ctx, "enqueue_failed",
			"module", "application.producer",
			"layer", "application",
			"operation", "enqueue_evaluation",
			"outcome", "failure",
			"transaction_id", transactionID.String(),
			"error", err,
		)
		return false
	}
	return true
}
