package scoring

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"

	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/domain"
)

// NeutralScore is returned when no classifier is available.
const NeutralScore = 0.5

// Engine combines the rule score with the classifier probability.
// It is built once per process and is safe for concurrent use.
type Engine struct {
	model  Model
	logger *slog.Logger
}

func NewEngine(model Model, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{model: model, logger: logger}
}

// LoadEngine loads the artifact at path. A missing or invalid artifact yields
// an engine without a model, which scores every transaction with NeutralScore.
func LoadEngine(ctx context.Context, path string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		logger.WarnContext(ctx, "model_not_found",
			"module", "scoring.engine", "layer", "domain", "operation", "load_model", "outcome", "skipped",
		)
		return NewEngine(nil, logger)
	}
	model, err := LoadModel(path)
	if err != nil {
		msg := "model_load_failed"
		if errors.Is(err, os.ErrNotExist) {
			msg = "model_not_found"
		}
		logger.WarnContext(ctx, msg,
			"module", "scoring.engine", "layer", "domain", "operation", "load_model", "outcome", "failure",
			"path", path, "error", err,
		)
		return NewEngine(nil, logger)
	}
	logger.InfoContext(ctx, "model_loaded",
		"module", "scoring.engine", "layer", "domain", "operation", "load_model", "outcome", "success",
		"path", path, "model_version", model.Version,
	)
	return NewEngine(model, logger)
}

func (e *Engine) HasModel() bool { return e.model != nil }

func (e *Engine) ModelScore(ctx context.Context, features FeatureVector) float64 {
	if e.model == nil {
		return NeutralScore
	}
	p, err := e.model.Predict(features)
	if err != nil {
		e.logger.WarnContext(ctx, "model_predict_failed",
			"module", "scoring.engine", "layer", "domain", "operation", "predict", "outcome", "failure",
			"error", err,
		)
		return NeutralScore
	}
	return clamp01(p)
}

// Evaluate scores in and rounds the reported scores to four decimals.
func (e *Engine) Evaluate(ctx context.Context, in Input) domain.Evaluation {
	ml := e.ModelScore(ctx, BuildFeatures(in))
	rule := RuleScore(in.Amount, in.Hour, in.IsNewDevice, in.IsUnusualLocation)
	final := HybridScore(ml, rule)
	status, level := Decide(final)
	return domain.Evaluation{
		RuleScore:  Round4(rule),
		MLScore:    Round4(ml),
		FinalScore: Round4(final),
		Status:     status,
		RiskLevel:  level,
	}
}

func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Score evaluates a stored transaction.
func (e *Engine) Score(ctx context.Context, tx domain.Transaction) domain.Evaluation {
	return e.Evaluate(ctx, InputFromTransaction(tx))
}
