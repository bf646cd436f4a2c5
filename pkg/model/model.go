// Package model loads trained gesture classifier artifacts and runs
// inference over ordered feature vectors.
//
// Artifacts are opaque to the rest of the pipeline: they carry their own
// feature-name schema and label vocabulary, and the pipeline never trains
// or mutates them. The shipped format is a standard-scaler plus linear
// decision function exported to JSON by the training side.
//
// Example usage:
//
//	clf, err := model.Load("models/action.json")
//	if err != nil {
//	    return err
//	}
//	vec := features.Reindex(features.Extract(window), clf.FeatureNames())
//	label, confidence, err := clf.Predict(vec)
package model

import "errors"

var (
	// ErrNotFound is returned when an artifact file does not exist.
	ErrNotFound = errors.New("model artifact not found")

	// ErrInvalidArtifact is returned when an artifact file is malformed or
	// dimensionally inconsistent.
	ErrInvalidArtifact = errors.New("invalid model artifact")

	// ErrBadVector is returned when a feature vector does not fit the
	// artifact's schema.
	ErrBadVector = errors.New("feature vector does not fit the model")
)

// Classifier is the inference contract the predictors depend on.
type Classifier interface {
	// Predict scores one ordered feature vector and returns the winning
	// label with its confidence in [0, 1].
	Predict(vector []float64) (label string, confidence float64, err error)

	// FeatureNames returns the ordered feature schema the artifact was
	// trained with. Vectors passed to Predict must follow this order.
	FeatureNames() []string

	// Classes returns the ordered label vocabulary.
	Classes() []string
}
