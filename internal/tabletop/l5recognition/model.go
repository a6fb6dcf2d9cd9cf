package l5recognition

import (
	"encoding/json"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/pickplace/internal/fsutil"
)

// ErrClassificationUnavailable is returned by a Classifier with no model.
var ErrClassificationUnavailable = errors.New("classification unavailable: no model loaded")

// FeatureLayout describes how a descriptor vector is assembled. NormalBins
// of zero disables the shape descriptor.
type FeatureLayout struct {
	ColorBins  int `json:"color_bins"`
	NormalBins int `json:"normal_bins"`
}

// Dim returns the descriptor length.
func (f FeatureLayout) Dim() int { return 3*f.ColorBins + 3*f.NormalBins }

// Scaler standardises features as (x - Mean) / Scale.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// LinearClassifier scores classes as Coef·x + Intercept. A single row with
// two classes is a binary decision function: positive selects class 1.
type LinearClassifier struct {
	Kind      string      `json:"kind"`
	Coef      [][]float64 `json:"coef"`
	Intercept []float64   `json:"intercept"`
}

// Model is the serialised recognition artifact.
type Model struct {
	Version    string           `json:"version,omitempty"`
	Classes    []string         `json:"classes"`
	Features   FeatureLayout    `json:"features"`
	Scaler     Scaler           `json:"scaler"`
	Classifier LinearClassifier `json:"classifier"`

	weights *mat.Dense
}

// LoadModel reads and validates a JSON model artifact.
func LoadModel(fsys fsutil.FileSystem, path string) (*Model, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", path, err)
	}
	return ParseModel(data)
}

// ParseModel decodes and validates a JSON model artifact.
func ParseModel(data []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}
	return &m, nil
}

// Validate checks dimensions and prepares the weight matrix.
func (m *Model) Validate() error {
	if len(m.Classes) == 0 {
		return errors.New("no classes")
	}
	if m.Features.ColorBins <= 0 {
		return fmt.Errorf("color_bins must be positive, got %d", m.Features.ColorBins)
	}
	if m.Features.NormalBins < 0 {
		return fmt.Errorf("normal_bins must be non-negative, got %d", m.Features.NormalBins)
	}
	dim := m.Features.Dim()
	if len(m.Scaler.Mean) != dim || len(m.Scaler.Scale) != dim {
		return fmt.Errorf("scaler has %d/%d entries, want %d", len(m.Scaler.Mean), len(m.Scaler.Scale), dim)
	}
	if m.Classifier.Kind != "" && m.Classifier.Kind != "linear" {
		return fmt.Errorf("unsupported classifier kind %q", m.Classifier.Kind)
	}

	rows := len(m.Classifier.Coef)
	binary := rows == 1 && len(m.Classes) == 2
	if !binary && rows != len(m.Classes) {
		return fmt.Errorf("classifier has %d rows for %d classes", rows, len(m.Classes))
	}
	if len(m.Classifier.Intercept) != rows {
		return fmt.Errorf("classifier has %d intercepts for %d rows", len(m.Classifier.Intercept), rows)
	}
	flat := make([]float64, 0, rows*dim)
	for i, row := range m.Classifier.Coef {
		if len(row) != dim {
			return fmt.Errorf("classifier row %d has %d weights, want %d", i, len(row), dim)
		}
		flat = append(flat, row...)
	}
	m.weights = mat.NewDense(rows, dim, flat)
	return nil
}

// Standardize applies the scaler to x, returning a new vector. Zero scale
// entries are treated as one.
func (m *Model) Standardize(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		s := m.Scaler.Scale[i]
		if s == 0 {
			s = 1
		}
		out[i] = (v - m.Scaler.Mean[i]) / s
	}
	return out
}

// Predict returns the class index and its decision score for an already
// standardised feature vector. Ties go to the lowest class index.
func (m *Model) Predict(z []float64) (int, float64) {
	var scores mat.VecDense
	scores.MulVec(m.weights, mat.NewVecDense(len(z), z))
	for i := range m.Classifier.Intercept {
		scores.SetVec(i, scores.AtVec(i)+m.Classifier.Intercept[i])
	}

	if scores.Len() == 1 && len(m.Classes) == 2 {
		s := scores.AtVec(0)
		if s > 0 {
			return 1, s
		}
		return 0, s
	}

	best := 0
	for i := 1; i < scores.Len(); i++ {
		if scores.AtVec(i) > scores.AtVec(best) {
			best = i
		}
	}
	return best, scores.AtVec(best)
}
