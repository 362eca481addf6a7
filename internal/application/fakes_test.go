package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/domain"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/ports"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/scoring"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type memoryStore struct {
	mu           sync.Mutex
	transactions map[uuid.UUID]domain.Transaction
	alerts       map[string]domain.Alert
	outbox       []ports.OutboxEvent
	reads        int
	applyErr     error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		transactions: map[uuid.UUID]domain.Transaction{},
		alerts:       map[string]domain.Alert{},
	}
}

func (m *memoryStore) Create(_ context.Context, tx domain.Transaction) (domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[tx.TransactionID] = tx
	return tx, nil
}

func (m *memoryStore) GetByID(_ context.Context, id uuid.UUID) (domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	tx, ok := m.transactions[id]
	if !ok {
		return domain.Transaction{}, domain.ErrNotFound
	}
	return tx, nil
}

func (m *memoryStore) ApplyEvaluation(_ context.Context, p ports.ApplyEvaluationParams) (ports.ApplyEvaluationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErr != nil {
		return ports.ApplyEvaluationResult{}, m.applyErr
	}
	tx, ok := m.transactions[p.TransactionID]
	if !ok {
		return ports.ApplyEvaluationResult{}, domain.ErrNotFound
	}
	if tx.Status != domain.TransactionStatusPending {
		return ports.ApplyEvaluationResult{Transaction: tx}, nil
	}
	rule, ml, final := p.Evaluation.RuleScore, p.Evaluation.MLScore, p.Evaluation.FinalScore
	level := p.Evaluation.RiskLevel
	tx.Status = p.Evaluation.Status
	tx.RuleScore, tx.MLScore, tx.FinalScore, tx.RiskLevel = &rule, &ml, &final, &level
	tx.UpdatedAt = p.At
	m.transactions[p.TransactionID] = tx

	res := ports.ApplyEvaluationResult{Transaction: tx, Applied: true}
	if p.Alert != nil {
		key := p.Alert.TransactionID.String() + "/" + p.Alert.AlertType
		if _, exists := m.alerts[key]; !exists {
			m.alerts[key] = *p.Alert
			res.AlertCreated = true
		}
	}
	m.outbox = append(m.outbox, p.Events...)
	return res, nil
}

func (m *memoryStore) ListByTransaction(_ context.Context, transactionID uuid.UUID) ([]domain.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Alert, 0, 1)
	for _, a := range m.alerts {
		if a.TransactionID == transactionID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryStore) alertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.alerts)
}

func (m *memoryStore) readCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]domain.Transaction
	ttls    map[uuid.UUID]time.Duration
	getErr  error
	setErrs []error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[uuid.UUID]domain.Transaction{}, ttls: map[uuid.UUID]time.Duration{}}
}

func (c *memoryCache) Get(_ context.Context, id uuid.UUID) (domain.Transaction, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return domain.Transaction{}, false, c.getErr
	}
	tx, ok := c.entries[id]
	return tx, ok, nil
}

func (c *memoryCache) Set(_ context.Context, tx domain.Transaction, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.setErrs) > 0 {
		err := c.setErrs[0]
		c.setErrs = c.setErrs[1:]
		if err != nil {
			return err
		}
	}
	c.entries[tx.TransactionID] = tx
	c.ttls[tx.TransactionID] = ttl
	return nil
}

func (c *memoryCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[uuid.UUID]domain.Transaction{}
}

func (c *memoryCache) has(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[id]
	return ok
}

type memoryJobs struct {
	mu   sync.Mutex
	jobs []domain.Job
	err  error
}

func (j *memoryJobs) Enqueue(_ context.Context, job domain.Job) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.jobs = append(j.jobs, job)
	return nil
}

type recordingMetrics struct {
	mu            sync.Mutex
	enqueueFailed int
	cache         map[string]int
}

func (m *recordingMetrics) EnqueueFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueueFailed++
}

func (m *recordingMetrics) CacheLookup(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cache == nil {
		m.cache = map[string]int{}
	}
	m.cache[outcome]++
}

func (m *recordingMetrics) EvaluationCompleted(string) {}
func (m *recordingMetrics) EvaluationRetried(string)   {}
func (m *recordingMetrics) JobDeadLettered(string)     {}

type fixedModel float64

func (f fixedModel) Predict(scoring.FeatureVector) (float64, error) { return float64(f), nil }

type fixture struct {
	service *Service
	store   *memoryStore
	cache   *memoryCache
	jobs    *memoryJobs
	metrics *recordingMetrics
	logs    *observer.ObservedLogs
	now     time.Time
}

func newFixture(mlScore float64) fixture {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := slog.New(zapslog.NewHandler(core))
	now := time.Date(2026, 5, 10, 9, 30, 0, 0, time.UTC)
	f := fixture{
		store:   newMemoryStore(),
		cache:   newMemoryCache(),
		jobs:    &memoryJobs{},
		metrics: &recordingMetrics{},
		logs:    logs,
		now:     now,
	}
	f.service = NewService(Dependencies{
		Logger:       logger,
		Transactions: f.store,
		Evaluations:  f.store,
		Alerts:       f.store,
		Cache:        f.cache,
		Jobs:         f.jobs,
		Scorer:       scoring.NewEngine(fixedModel(mlScore), logger),
		Metrics:      f.metrics,
		Now:          func() time.Time { return now },
	})
	return f
}

var errUnavailable = errors.New("connection refused")
