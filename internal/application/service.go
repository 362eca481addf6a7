package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/domain"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/ports"
)

const DefaultResultCacheTTL = 600 * time.Second

type Config struct {
	ServiceName    string
	ResultCacheTTL time.Duration
}

// Scorer evaluates a transaction. *scoring.Engine is the production implementation.
type Scorer interface {
	Score(ctx context.Context, tx domain.Transaction) domain.Evaluation
}

type Dependencies struct {
	Config       Config
	Logger       *slog.Logger
	Transactions ports.TransactionRepository
	Evaluations  ports.EvaluationRepository
	Alerts       ports.AlertRepository
	Cache        ports.ResultCache
	Jobs         ports.JobPublisher
	Scorer       Scorer
	Metrics      ports.Metrics
	Now          func() time.Time
}

type Service struct {
	cfg          Config
	logger       *slog.Logger
	transactions ports.TransactionRepository
	evaluations  ports.EvaluationRepository
	alerts       ports.AlertRepository
	cache        ports.ResultCache
	jobs         ports.JobPublisher
	scorer       Scorer
	metrics      ports.Metrics
	nowFn        func() time.Time
}

func NewService(deps Dependencies) *Service {
	if deps.Config.ServiceName == "" {
		deps.Config.ServiceName = "M12-Fraud-Detection-Engine"
	}
	if deps.Config.ResultCacheTTL <= 0 {
		deps.Config.ResultCacheTTL = DefaultResultCacheTTL
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = ports.NoopMetrics{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{
		cfg:          deps.Config,
		logger:       deps.Logger,
		transactions: deps.Transactions,
		evaluations:  deps.Evaluations,
		alerts:       deps.Alerts,
		cache:        deps.Cache,
		jobs:         deps.Jobs,
		scorer:       deps.Scorer,
		metrics:      deps.Metrics,
		nowFn:        deps.Now,
	}
}

func (s *Service) now() time.Time { return s.nowFn().UTC() }
