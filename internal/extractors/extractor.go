// Package extractors turns uploaded evidence plus an operator note into an
// incident card.
package extractors

import (
	"context"
	"log/slog"
	"strings"

	"github.com/miradorstack/mirador-recall/internal/models"
)

const placeholderSummary = "Evidence uploaded without a note; automated image extraction is not configured."

var defaultRecommendedLogs = []string{"auth logs", "vpc flow logs", "waf logs"}

// Extractor produces a structurally complete incident card. Implementations
// never return a partial card; missing facts default to empty or unknown.
type Extractor interface {
	Extract(ctx context.Context, evidencePath, note string, hints models.Entities) (models.IncidentCard, error)
}

// NoteExtractor derives a card from the operator note alone. The evidence
// file is stored but not parsed.
type NoteExtractor struct {
	logger *slog.Logger
}

// NewNoteExtractor constructs the note-driven extractor.
func NewNoteExtractor(logger *slog.Logger) *NoteExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoteExtractor{logger: logger}
}

// Extract implements Extractor.
func (e *NoteExtractor) Extract(_ context.Context, evidencePath, note string, hints models.Entities) (models.IncidentCard, error) {
	note = strings.TrimSpace(note)

	symptoms := make(models.Values, 0)
	for _, part := range strings.Split(note, ",") {
		if part = strings.TrimSpace(part); part != "" {
			symptoms = append(symptoms, part)
		}
	}

	hypotheses := make(models.Values, 0, 1)
	if strings.Contains(strings.ToLower(note), "down") {
		hypotheses = append(hypotheses, "possible service outage")
	}

	severity := models.SeverityUnknown
	if len(symptoms) > 0 {
		severity = models.SeverityMedium
	}

	summary := note
	if summary == "" {
		summary = placeholderSummary
	}

	recognised := RecognizeEntities(note)
	card := models.IncidentCard{
		AssetType:       models.AssetUnknown,
		Entities:        hints.Merge(recognised),
		Symptoms:        symptoms,
		Hypotheses:      hypotheses,
		SeverityGuess:   severity,
		RecommendedLogs: append(models.Values(nil), defaultRecommendedLogs...),
		Summary:         summary,
	}.Normalize()

	e.logger.Debug("extracted incident card",
		slog.String("evidence", evidencePath),
		slog.Int("symptoms", len(card.Symptoms)),
		slog.Int("systems", len(card.Entities.Systems)),
		slog.Int("observables", len(card.Entities.Observables)))
	return card, nil
}
