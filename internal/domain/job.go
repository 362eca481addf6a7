package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	TaskEvaluateTransaction = "evaluate_transaction"
	DefaultJobMaxRetries    = 3
)

// Job is an evaluation request carried by the work queue.
// Attempt counts explicit retries; Redeliveries counts visibility expiries.
type Job struct {
	ID           string     `json:"id"`
	Task         string     `json:"task"`
	Args         []string   `json:"args"`
	Attempt      int        `json:"attempt"`
	MaxRetries   int        `json:"max_retries"`
	Redeliveries int        `json:"redeliveries"`
	EnqueuedAt   time.Time  `json:"enqueued_at"`
	ETA          *time.Time `json:"eta,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}

func NewEvaluationJob(transactionID uuid.UUID, now time.Time) Job {
	return Job{
		ID:         uuid.NewString(),
		Task:       TaskEvaluateTransaction,
		Args:       []string{transactionID.String()},
		MaxRetries: DefaultJobMaxRetries,
		EnqueuedAt: now.UTC(),
	}
}

// TransactionID returns the evaluated transaction. Malformed jobs fail with ErrInvalidInput.
func (j Job) TransactionID() (uuid.UUID, error) {
	if j.Task != TaskEvaluateTransaction || len(j.Args) != 1 {
		return uuid.Nil, ErrInvalidInput
	}
	id, err := uuid.Parse(j.Args[0])
	if err != nil {
		return uuid.Nil, ErrInvalidInput
	}
	return id, nil
}

// EvaluationStage names the worker state in which a job was when it failed.
type EvaluationStage string

const (
	StageReceived   EvaluationStage = "RECEIVED"
	StageLoading    EvaluationStage = "LOADING"
	StageScoring    EvaluationStage = "SCORING"
	StagePersisting EvaluationStage = "PERSISTING"
	StageAlerting   EvaluationStage = "ALERTING"
	StageCaching    EvaluationStage = "CACHING"
	StageAcked      EvaluationStage = "ACKED"
	StageRetry      EvaluationStage = "RETRY"
	StageFailed     EvaluationStage = "FAILED"
)

type StageError struct {
	Stage EvaluationStage
	Err   error
}

func (e *StageError) Error() string {
	return string(e.Stage) + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }
