// Package engine ingests incidents into the dual index and answers
// similar-incident searches with hybrid scoring.
package engine

import (
	"context"

	"github.com/miradorstack/mirador-recall/internal/index"
	"github.com/miradorstack/mirador-recall/internal/models"
)

// Embedder turns text into unit vectors of a fixed width.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Index describes the dual-index operations used by ingestion and search.
type Index interface {
	Upsert(ctx context.Context, rec models.IncidentRecord) error
	Fetch(ctx context.Context, id string) (models.IncidentRecord, error)
	SearchSemantic(ctx context.Context, vector []float32, limit int) ([]index.Hit, error)
}

// RankMode selects which candidates survive truncation to top-K.
type RankMode string

const (
	// RankByRetrieval keeps the first top-K filtered candidates in
	// nearest-neighbour order; final scores are informational.
	RankByRetrieval RankMode = "retrieval"
	// RankByScore re-sorts every filtered candidate by final score before
	// truncating. Equal scores keep nearest-neighbour order.
	RankByScore RankMode = "score"
)

// ParseRankMode accepts "retrieval" or "score"; anything else is rejected.
func ParseRankMode(value string) (RankMode, bool) {
	switch RankMode(value) {
	case "", RankByRetrieval:
		return RankByRetrieval, true
	case RankByScore:
		return RankByScore, true
	default:
		return "", false
	}
}
