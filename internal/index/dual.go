package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/miradorstack/mirador-recall/internal/models"
)

const (
	DefaultSemanticCollection = "incidents_semantic"
	DefaultEntityCollection   = "incidents_entities"
)

// DualIndex keeps the semantic and entity collections for every incident.
// Writes go semantic first; the entity write is attempted only after the
// semantic write succeeded, so readers may briefly see a record that is not
// yet searchable by entity.
type DualIndex struct {
	store    Store
	semantic string
	entity   string
	logger   *slog.Logger
}

// NewDualIndex binds the two collection names to store.
func NewDualIndex(store Store, semantic, entity string, logger *slog.Logger) *DualIndex {
	if semantic == "" {
		semantic = DefaultSemanticCollection
	}
	if entity == "" {
		entity = DefaultEntityCollection
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DualIndex{store: store, semantic: semantic, entity: entity, logger: logger}
}

// SemanticCollection returns the semantic collection name.
func (d *DualIndex) SemanticCollection() string { return d.semantic }

// EntityCollection returns the entity collection name.
func (d *DualIndex) EntityCollection() string { return d.entity }

// EnsureCollections creates both collections if absent. Safe to repeat.
func (d *DualIndex) EnsureCollections(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("%w: vector dimension must be positive, got %d", models.ErrInvalidArgument, dim)
	}
	for _, name := range []string{d.semantic, d.entity} {
		if err := d.store.EnsureCollection(ctx, name, dim); err != nil {
			return fmt.Errorf("%w: ensure collection %s: %w", models.ErrUnavailable, name, err)
		}
	}
	return nil
}

// Upsert writes rec to the semantic collection, then to the entity collection.
func (d *DualIndex) Upsert(ctx context.Context, rec models.IncidentRecord) error {
	if rec.IncidentID == "" {
		return fmt.Errorf("%w: incident id is required", models.ErrInvalidArgument)
	}
	payload := rec.Payload()

	if err := d.store.Upsert(ctx, d.semantic, Point{ID: rec.IncidentID, Vector: rec.SemanticVector, Payload: payload}); err != nil {
		return fmt.Errorf("%w: upsert %s: %w", models.ErrUnavailable, d.semantic, err)
	}
	if err := d.store.Upsert(ctx, d.entity, Point{ID: rec.IncidentID, Vector: rec.EntityVector, Payload: payload}); err != nil {
		d.logger.Warn("entity upsert failed after semantic write",
			slog.String("incident_id", rec.IncidentID),
			slog.Any("error", err))
		return &PartialWriteError{IncidentID: rec.IncidentID, Written: d.semantic, Failed: d.entity, Err: err}
	}
	return nil
}

// Fetch resolves an incident from the semantic collection. EntityVector is
// left empty.
func (d *DualIndex) Fetch(ctx context.Context, id string) (models.IncidentRecord, error) {
	point, err := d.store.Fetch(ctx, d.semantic, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.IncidentRecord{}, fmt.Errorf("%w: %s", models.ErrNotFound, id)
		}
		return models.IncidentRecord{}, fmt.Errorf("%w: fetch %s: %w", models.ErrUnavailable, id, err)
	}
	card := point.Payload.Card.Normalize()
	return models.IncidentRecord{
		IncidentID:     id,
		Card:           card,
		SemanticVector: point.Vector,
		ImagePath:      point.Payload.ImagePath,
		IngestedAt:     point.Payload.IngestedAt,
	}, nil
}

// SearchSemantic returns the nearest incidents by semantic text.
func (d *DualIndex) SearchSemantic(ctx context.Context, vector []float32, limit int) ([]Hit, error) {
	return d.search(ctx, d.semantic, vector, limit)
}

// SearchEntities returns the nearest incidents by canonical entity string.
func (d *DualIndex) SearchEntities(ctx context.Context, vector []float32, limit int) ([]Hit, error) {
	return d.search(ctx, d.entity, vector, limit)
}

func (d *DualIndex) search(ctx context.Context, collection string, vector []float32, limit int) ([]Hit, error) {
	if limit <= 0 {
		return nil, nil
	}
	hits, err := d.store.NearestNeighbors(ctx, collection, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: search %s: %w", models.ErrUnavailable, collection, err)
	}
	for i := range hits {
		hits[i].Payload.Card = hits[i].Payload.Card.Normalize()
	}
	return hits, nil
}

// Ping reports whether the backing store is reachable.
func (d *DualIndex) Ping(ctx context.Context) error {
	return d.store.Ping(ctx)
}

// Close releases the backing store.
func (d *DualIndex) Close() error {
	return d.store.Close()
}
