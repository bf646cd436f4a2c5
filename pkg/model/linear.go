package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"
)

// Linear is a standard-scaler plus linear decision function, one weight
// row per class. Confidence comes from a softmax over the class scores.
type Linear struct {
	classes      []string
	featureNames []string
	scalerMean   []float64
	scalerScale  []float64
	weights      [][]float64
	intercepts   []float64
}

// artifactFile is the on-disk JSON layout written by the training side.
type artifactFile struct {
	Classes      []string `json:"classes"`
	FeatureNames []string `json:"feature_names"`
	Scaler       struct {
		Mean  []float64 `json:"mean"`
		Scale []float64 `json:"scale"`
	} `json:"scaler"`
	Weights    [][]float64 `json:"weights"`
	Intercepts []float64   `json:"intercepts"`
}

// Load reads and validates a classifier artifact from disk.
func Load(path string) (*Linear, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse builds a Linear classifier from raw artifact JSON, rejecting any
// dimensional inconsistency up front so a broken export fails at startup
// instead of producing garbage predictions.
func Parse(data []byte) (*Linear, error) {
	var raw artifactFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}

	n := len(raw.FeatureNames)
	switch {
	case len(raw.Classes) < 2:
		return nil, fmt.Errorf("%w: need at least 2 classes, got %d", ErrInvalidArtifact, len(raw.Classes))
	case n == 0:
		return nil, fmt.Errorf("%w: empty feature name list", ErrInvalidArtifact)
	case len(raw.Scaler.Mean) != n:
		return nil, fmt.Errorf("%w: scaler mean has %d entries, want %d", ErrInvalidArtifact, len(raw.Scaler.Mean), n)
	case len(raw.Scaler.Scale) != n:
		return nil, fmt.Errorf("%w: scaler scale has %d entries, want %d", ErrInvalidArtifact, len(raw.Scaler.Scale), n)
	case len(raw.Weights) != len(raw.Classes):
		return nil, fmt.Errorf("%w: %d weight rows for %d classes", ErrInvalidArtifact, len(raw.Weights), len(raw.Classes))
	case len(raw.Intercepts) != len(raw.Classes):
		return nil, fmt.Errorf("%w: %d intercepts for %d classes", ErrInvalidArtifact, len(raw.Intercepts), len(raw.Classes))
	}
	for i, row := range raw.Weights {
		if len(row) != n {
			return nil, fmt.Errorf("%w: weight row %d has %d entries, want %d", ErrInvalidArtifact, i, len(row), n)
		}
	}
	for i, s := range raw.Scaler.Scale {
		if s == 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, fmt.Errorf("%w: unusable scale at feature %d", ErrInvalidArtifact, i)
		}
	}

	return &Linear{
		classes:      raw.Classes,
		featureNames: raw.FeatureNames,
		scalerMean:   raw.Scaler.Mean,
		scalerScale:  raw.Scaler.Scale,
		weights:      raw.Weights,
		intercepts:   raw.Intercepts,
	}, nil
}

// Predict scales the vector, scores every class, and returns the argmax
// label with its softmax confidence.
func (m *Linear) Predict(vector []float64) (string, float64, error) {
	if len(vector) != len(m.featureNames) {
		return "", 0, fmt.Errorf("%w: got %d features, want %d", ErrBadVector, len(vector), len(m.featureNames))
	}
	for i, v := range vector {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", 0, fmt.Errorf("%w: non-finite value at feature %d", ErrBadVector, i)
		}
	}

	scores := make([]float64, len(m.classes))
	for c := range m.classes {
		s := m.intercepts[c]
		row := m.weights[c]
		for i, v := range vector {
			s += row[i] * (v - m.scalerMean[i]) / m.scalerScale[i]
		}
		scores[c] = s
	}

	probs := softmax(scores)
	best := floats.MaxIdx(probs)
	return m.classes[best], probs[best], nil
}

// FeatureNames returns a copy of the artifact's ordered feature schema.
func (m *Linear) FeatureNames() []string {
	out := make([]string, len(m.featureNames))
	copy(out, m.featureNames)
	return out
}

// Classes returns a copy of the artifact's ordered label vocabulary.
func (m *Linear) Classes() []string {
	out := make([]string, len(m.classes))
	copy(out, m.classes)
	return out
}

// softmax converts raw scores to a probability distribution, shifting by
// the max score to stay numerically stable.
func softmax(scores []float64) []float64 {
	max := floats.Max(scores)
	probs := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		probs[i] = math.Exp(s - max)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}
