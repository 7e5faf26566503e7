// Package scoring blends vector similarity with exact structured overlap and
// explains which shared facts made two incidents match.
package scoring

import (
	"github.com/miradorstack/mirador-recall/internal/canonical"
	"github.com/miradorstack/mirador-recall/internal/models"
)

// Weights are the calibration parameters of the hybrid score.
type Weights struct {
	Vector      float64 `yaml:"vectorWeight"`
	Overlap     float64 `yaml:"overlapWeight"`
	Saturation  float64 `yaml:"saturation"`
	Systems     float64 `yaml:"systems"`
	Vendors     float64 `yaml:"vendors"`
	Ports       float64 `yaml:"ports"`
	Protocols   float64 `yaml:"protocols"`
	Observables float64 `yaml:"observables"`
}

// DefaultWeights returns the reference calibration: final = 0.7*vector +
// 0.3*min(overlap/8, 1), with protocols and observables counting half.
func DefaultWeights() Weights {
	return Weights{
		Vector:      0.7,
		Overlap:     0.3,
		Saturation:  8.0,
		Systems:     1.0,
		Vendors:     1.0,
		Ports:       1.0,
		Protocols:   0.5,
		Observables: 0.5,
	}
}

// Scorer computes overlap, combined scores and match explanations.
type Scorer struct {
	weights Weights
}

// NewScorer constructs a Scorer. A non-positive saturation falls back to the default.
func NewScorer(weights Weights) *Scorer {
	if weights.Saturation <= 0 {
		weights.Saturation = DefaultWeights().Saturation
	}
	return &Scorer{weights: weights}
}

// Weights exposes the active calibration.
func (s *Scorer) Weights() Weights {
	return s.weights
}

// Overlap is the weighted count of shared entity values. It is symmetric and
// has no upper bound.
func (s *Scorer) Overlap(query, candidate models.IncidentCard) float64 {
	q, c := query.Entities, candidate.Entities
	overlap := 0.0
	overlap += s.weights.Systems * float64(len(intersect(q.Systems, c.Systems)))
	overlap += s.weights.Vendors * float64(len(intersect(q.Vendors, c.Vendors)))
	overlap += s.weights.Ports * float64(len(intersect(q.Ports, c.Ports)))
	overlap += s.weights.Protocols * float64(len(intersect(q.Protocols, c.Protocols)))
	overlap += s.weights.Observables * float64(len(intersect(q.Observables, c.Observables)))
	return overlap
}

// Normalize maps a raw overlap into [0, 1], saturating at the calibration constant.
func (s *Scorer) Normalize(overlap float64) float64 {
	return clamp(overlap/s.weights.Saturation, 0, 1)
}

// Combine blends a vector similarity with a raw overlap. It returns the final
// score, the vector score unchanged and the normalized overlap.
func (s *Scorer) Combine(vectorScore, overlap float64) (float64, float64, float64) {
	normalized := s.Normalize(overlap)
	final := s.weights.Vector*vectorScore + s.weights.Overlap*normalized
	return final, vectorScore, normalized
}

// Explain lists the shared values per entity category plus shared symptoms.
// Every list is present and sorted, even when empty.
func Explain(query, candidate models.IncidentCard) models.WhyMatched {
	q, c := query.Entities, candidate.Entities
	return models.WhyMatched{
		Overlap: models.EntityOverlap{
			Systems:     intersect(q.Systems, c.Systems),
			Vendors:     intersect(q.Vendors, c.Vendors),
			Ports:       intersect(q.Ports, c.Ports),
			Protocols:   intersect(q.Protocols, c.Protocols),
			Observables: intersect(q.Observables, c.Observables),
		},
		SymptomsOverlap: intersect(query.Symptoms, candidate.Symptoms),
	}
}

// SeverityRank orders severities for threshold filtering only.
func SeverityRank(severity models.Severity) int {
	return severity.Rank()
}

// intersect returns the case-insensitive, trimmed intersection in ascending order.
func intersect(a, b []string) []string {
	right := make(map[string]struct{}, len(b))
	for _, v := range canonical.Set(b) {
		right[v] = struct{}{}
	}
	out := make([]string, 0)
	for _, v := range canonical.Set(a) {
		if _, ok := right[v]; ok {
			out = append(out, v)
		}
	}
	return out
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
