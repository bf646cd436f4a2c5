package features

// Reindex flattens named features into the ordered vector a classifier
// expects. Requested names that were not computed become 0; computed
// features the model does not know are dropped. The feature-name list
// ships with the model artifact, so ordering is always the model's.
func Reindex(feats map[string]float64, names []string) []float64 {
	vec := make([]float64, len(names))
	for i, name := range names {
		vec[i] = feats[name]
	}
	return vec
}
