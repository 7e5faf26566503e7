// Package canonical turns incident cards into the two texts that get embedded:
// a deterministic entity string and a descriptive semantic paragraph.
package canonical

import (
	"sort"
	"strings"

	"github.com/miradorstack/mirador-recall/internal/models"
)

const segmentSeparator = " | "

// EntityString serializes the entity sets in the fixed category order
// (systems, vendors, protocols, ports, observables). Values are trimmed,
// lowercased, de-duplicated and sorted, so cards with the same sets produce
// identical strings regardless of ordering, casing or repetition.
func EntityString(entities models.Entities) string {
	segments := make([]string, 0, len(models.Categories))
	for _, category := range models.Categories {
		segments = append(segments, string(category)+":"+strings.Join(Set(entities.Get(category)), ","))
	}
	return strings.Join(segments, segmentSeparator)
}

// Set returns the trimmed, lowercased, de-duplicated values in ascending order.
func Set(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// SemanticText concatenates summary, symptoms and hypotheses into the
// paragraph embedded into the semantic collection.
func SemanticText(card models.IncidentCard) string {
	var b strings.Builder
	b.WriteString(card.Summary)
	b.WriteString("\nSymptoms: ")
	b.WriteString(strings.Join(card.Symptoms, ", "))
	b.WriteString("\nHypotheses: ")
	b.WriteString(strings.Join(card.Hypotheses, ", "))
	return b.String()
}
