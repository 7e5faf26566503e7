// Package index stores incident vectors in two logical collections (semantic
// and entity) on top of a pluggable vector store.
package index

import (
	"context"
	"fmt"
	"sort"

	"github.com/miradorstack/mirador-recall/internal/models"
)

// Point is a vector plus payload addressed by incident id.
type Point struct {
	ID      string
	Vector  []float32
	Payload models.Payload
}

// Hit is one nearest-neighbour result.
type Hit struct {
	ID      string
	Score   float64
	Payload models.Payload
}

// Store is a cosine-similarity vector store with named collections.
// Fetch returns models.ErrNotFound for unknown ids.
type Store interface {
	EnsureCollection(ctx context.Context, name string, dim int) error
	Upsert(ctx context.Context, collection string, point Point) error
	Fetch(ctx context.Context, collection, id string) (Point, error)
	NearestNeighbors(ctx context.Context, collection string, vector []float32, limit int) ([]Hit, error)
	Ping(ctx context.Context) error
	Close() error
}

// PartialWriteError reports a dual write where the semantic collection was
// updated but the entity collection was not.
type PartialWriteError struct {
	IncidentID string
	Written    string
	Failed     string
	Err        error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial write for incident %s: %s written, %s failed: %v", e.IncidentID, e.Written, e.Failed, e.Err)
}

// Unwrap exposes both the unavailable class and the underlying cause.
func (e *PartialWriteError) Unwrap() []error {
	return []error{models.ErrUnavailable, e.Err}
}

// sortHits orders by similarity descending, then most recent ingestion, then id.
func sortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		ti, tj := hits[i].Payload.IngestedAt, hits[j].Payload.IngestedAt
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return hits[i].ID < hits[j].ID
	})
}
