package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Model predicts the fraud probability of a feature vector.
type Model interface {
	Predict(features FeatureVector) (float64, error)
}

// LogisticModel is a logistic-regression classifier exported by the training job.
type LogisticModel struct {
	Version   string    `json:"version"`
	Features  []string  `json:"features"`
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
}

// LoadModel reads a JSON artifact and checks it against FeatureColumns.
// A missing file is reported with an error satisfying errors.Is(err, os.ErrNotExist).
func LoadModel(path string) (*LogisticModel, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}
	var m LogisticModel
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse model artifact: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *LogisticModel) validate() error {
	if len(m.Features) != len(FeatureColumns) {
		return fmt.Errorf("model artifact has %d features, want %d", len(m.Features), len(FeatureColumns))
	}
	for i, name := range FeatureColumns {
		if m.Features[i] != name {
			return fmt.Errorf("model feature %d is %q, want %q", i, m.Features[i], name)
		}
	}
	if len(m.Weights) != len(FeatureColumns) {
		return fmt.Errorf("model artifact has %d weights, want %d", len(m.Weights), len(FeatureColumns))
	}
	return nil
}

func (m *LogisticModel) Predict(features FeatureVector) (float64, error) {
	z := m.Intercept
	for i, v := range features.Values() {
		z += m.Weights[i] * v
	}
	p := 1 / (1 + math.Exp(-z))
	if math.IsNaN(p) {
		return 0, fmt.Errorf("model produced NaN probability")
	}
	return p, nil
}
