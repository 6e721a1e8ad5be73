package ml

import (
	"math"
	"sort"
)

// FeatureStats describes how strongly one trained feature moves the score.
type FeatureStats struct {
	Name string `json:"name"`

	// Weight is the coefficient on the standardised feature; positive values
	// push towards approval.
	Weight          float64 `json:"weight"`
	ImportanceScore float64 `json:"importance_score"`
}

// FeatureImportance ranks the trained features by the magnitude of their
// standardised coefficient, largest first. ImportanceScore is that magnitude
// as a share of the total. It returns nil for classifiers without
// inspectable weights.
func FeatureImportance(a *Artifacts) []FeatureStats {
	model, ok := a.Classifier.(*LogisticModel)
	if !ok || !model.Fitted() || len(model.weights) != len(a.FeatureOrder) {
		return nil
	}

	total := 0.0
	for _, w := range model.weights {
		total += math.Abs(w)
	}

	stats := make([]FeatureStats, len(a.FeatureOrder))
	for i, name := range a.FeatureOrder {
		stats[i] = FeatureStats{Name: name, Weight: model.weights[i]}
		if total > 0 {
			stats[i].ImportanceScore = math.Abs(model.weights[i]) / total
		}
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].ImportanceScore > stats[j].ImportanceScore
	})
	return stats
}
