package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/miradorstack/mirador-recall/internal/canonical"
	"github.com/miradorstack/mirador-recall/internal/extractors"
	"github.com/miradorstack/mirador-recall/internal/index"
	"github.com/miradorstack/mirador-recall/internal/models"
)

// EvidenceStore persists raw evidence and returns a reference to it.
type EvidenceStore interface {
	Save(id, filename string, r io.Reader) (string, error)
	Remove(path string) error
}

// Ingestor freezes new evidence into incident records.
type Ingestor struct {
	extractor extractors.Extractor
	evidence  EvidenceStore
	embedder  Embedder
	index     Index
	pool      *ants.Pool
	logger    *slog.Logger
	now       func() time.Time
}

// IngestOption configures an Ingestor.
type IngestOption func(*Ingestor) error

// WithPoolSize sets the embedding worker pool size. Default is
// runtime.NumCPU(), with a minimum of 2 so both embeddings of one incident
// can run together.
func WithPoolSize(size int) IngestOption {
	return func(i *Ingestor) error {
		if size < 2 {
			size = 2
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if i.pool != nil {
			i.pool.Release()
		}
		i.pool = pool
		return nil
	}
}

// WithIngestLogger sets a custom logger.
func WithIngestLogger(logger *slog.Logger) IngestOption {
	return func(i *Ingestor) error {
		if logger != nil {
			i.logger = logger
		}
		return nil
	}
}

// WithClock overrides the ingestion timestamp source.
func WithClock(now func() time.Time) IngestOption {
	return func(i *Ingestor) error {
		if now != nil {
			i.now = now
		}
		return nil
	}
}

// NewIngestor wires the ingestion path. Call Release when done.
func NewIngestor(extractor extractors.Extractor, evidence EvidenceStore, embedder Embedder, idx Index, opts ...IngestOption) (*Ingestor, error) {
	if extractor == nil || evidence == nil || embedder == nil || idx == nil {
		return nil, errors.New("ingestor requires an extractor, evidence store, embedder and index")
	}

	poolSize := runtime.NumCPU()
	if poolSize < 2 {
		poolSize = 2
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	i := &Ingestor{
		extractor: extractor,
		evidence:  evidence,
		embedder:  embedder,
		index:     idx,
		pool:      pool,
		logger:    slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if err := opt(i); err != nil {
			i.Release()
			return nil, err
		}
	}
	return i, nil
}

// Release stops the worker pool.
func (i *Ingestor) Release() {
	if i.pool != nil {
		i.pool.Release()
	}
}

// Ingest stores evidence, extracts a card, embeds its semantic text and
// canonical entity string, and writes both collections. Nothing is written
// to the index when either embedding fails.
func (i *Ingestor) Ingest(ctx context.Context, req models.IngestRequest) (resp models.IngestResponse, err error) {
	id := uuid.NewString()

	path, err := i.evidence.Save(id, req.Filename, req.Evidence)
	if err != nil {
		return models.IngestResponse{}, fmt.Errorf("save evidence: %w", err)
	}
	// The blob stays once any record points at it, including a partial write.
	keepEvidence := false
	defer func() {
		if err == nil || keepEvidence {
			return
		}
		if rmErr := i.evidence.Remove(path); rmErr != nil {
			i.logger.Warn("orphaned evidence not removed", slog.String("path", path), slog.Any("error", rmErr))
		}
	}()

	card, err := i.extractor.Extract(ctx, path, req.Note, req.Entities)
	if err != nil {
		return models.IngestResponse{}, fmt.Errorf("extract incident card: %w", err)
	}
	card = card.Normalize()

	semantic, entity, err := i.embedPair(ctx, canonical.SemanticText(card), canonical.EntityString(card.Entities))
	if err != nil {
		return models.IngestResponse{}, err
	}

	rec := models.IncidentRecord{
		IncidentID:     id,
		Card:           card,
		SemanticVector: semantic,
		EntityVector:   entity,
		ImagePath:      path,
		IngestedAt:     i.now(),
	}
	if err := i.index.Upsert(ctx, rec); err != nil {
		var partial *index.PartialWriteError
		keepEvidence = errors.As(err, &partial)
		return models.IngestResponse{}, err
	}

	i.logger.Info("incident ingested",
		slog.String("incident_id", id),
		slog.String("severity", string(card.SeverityGuess)),
		slog.Int("symptoms", len(card.Symptoms)))
	return models.IngestResponse{IncidentID: id, Card: card}, nil
}

// embedPair runs both embeddings on the worker pool and waits for both.
func (i *Ingestor) embedPair(ctx context.Context, semanticText, entityText string) ([]float32, []float32, error) {
	texts := [2]string{semanticText, entityText}
	var (
		vectors [2][]float32
		errs    [2]error
		wg      sync.WaitGroup
	)
	for n := range texts {
		n := n
		wg.Add(1)
		if err := i.pool.Submit(func() {
			defer wg.Done()
			vectors[n], errs[n] = i.embedder.Embed(ctx, texts[n])
		}); err != nil {
			wg.Done()
			errs[n] = err
		}
	}
	wg.Wait()

	if errs[0] != nil {
		return nil, nil, fmt.Errorf("embed semantic text: %w", errs[0])
	}
	if errs[1] != nil {
		return nil, nil, fmt.Errorf("embed entity string: %w", errs[1])
	}
	return vectors[0], vectors[1], nil
}
