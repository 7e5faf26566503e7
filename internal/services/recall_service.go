package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/miradorstack/mirador-recall/internal/api"
	"github.com/miradorstack/mirador-recall/internal/metrics"
	"github.com/miradorstack/mirador-recall/internal/models"
	"github.com/miradorstack/mirador-recall/internal/utils"
)

// Ingester stores one piece of evidence as a new incident.
type Ingester interface {
	Ingest(ctx context.Context, req models.IngestRequest) (models.IngestResponse, error)
}

// Searcher ranks incidents similar to a stored one.
type Searcher interface {
	Search(ctx context.Context, req models.SearchRequest) (models.SearchResponse, error)
}

// Pinger reports whether the vector index is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RecallService implements the IncidentRecall gRPC service.
type RecallService struct {
	logger   *slog.Logger
	ingester Ingester
	searcher Searcher
	index    Pinger
	dim      int

	ingestLatency *utils.LatencyTracker
	searchLatency *utils.LatencyTracker
}

var _ api.RecallServer = (*RecallService)(nil)

// NewRecallService constructs the service facade. dim is the embedding width
// reported by Health.
func NewRecallService(logger *slog.Logger, ingester Ingester, searcher Searcher, index Pinger, dim int) *RecallService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecallService{
		logger:        logger,
		ingester:      ingester,
		searcher:      searcher,
		index:         index,
		dim:           dim,
		ingestLatency: utils.NewLatencyTracker("ingest", 1024),
		searchLatency: utils.NewLatencyTracker("search", 1024),
	}
}

// Ingest validates the upload and hands it to the ingestion pipeline.
func (s *RecallService) Ingest(ctx context.Context, req *api.IngestRequest) (*api.IngestResponse, error) {
	domainReq, err := api.FromIngestRequest(req)
	if err != nil {
		return nil, utils.NewAppError("Ingest", "invalid request", invalid(err))
	}
	if s.ingester == nil {
		return nil, utils.NewAppError("Ingest", "ingestion not configured", models.ErrUnavailable)
	}

	start := time.Now()
	resp, err := s.ingester.Ingest(ctx, domainReq)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveIngest(duration, metrics.OutcomeError)
		s.logger.Error("ingest failed", slog.String("filename", domainReq.Filename), slog.Any("error", err))
		return nil, utils.NewAppError("Ingest", "ingest failed", err)
	}
	metrics.ObserveIngest(duration, metrics.OutcomeSuccess)
	s.ingestLatency.ObserveAndReport(duration, s.logger)

	return api.ToIngestResponse(resp), nil
}

// Search returns the incidents most similar to the requested one.
func (s *RecallService) Search(ctx context.Context, req *api.SearchRequest) (*api.SearchResponse, error) {
	domainReq, err := api.FromSearchRequest(req)
	if err != nil {
		return nil, utils.NewAppError("Search", "invalid request", invalid(err))
	}
	if s.searcher == nil {
		return nil, utils.NewAppError("Search", "search not configured", models.ErrUnavailable)
	}

	s.logger.Debug("Search called", slog.String("incident_id", domainReq.IncidentID), slog.Int("top_k", domainReq.TopK))

	start := time.Now()
	resp, err := s.searcher.Search(ctx, domainReq)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveSearch(duration, metrics.OutcomeError)
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("search for unknown incident", slog.String("incident_id", domainReq.IncidentID))
		} else {
			s.logger.Error("search failed", slog.String("incident_id", domainReq.IncidentID), slog.Any("error", err))
		}
		return nil, utils.NewAppError("Search", "search failed", err)
	}
	metrics.ObserveSearch(duration, metrics.OutcomeSuccess)
	s.searchLatency.ObserveAndReport(duration, s.logger)

	return api.ToSearchResponse(resp), nil
}

// Health reports API liveness, index reachability and the embedding width.
func (s *RecallService) Health(ctx context.Context, _ *api.HealthRequest) (*api.HealthResponse, error) {
	resp := &api.HealthResponse{APIOK: true, Dim: s.dim}
	if s.index != nil {
		if err := s.index.Ping(ctx); err != nil {
			s.logger.Warn("index health check failed", slog.Any("error", err))
		} else {
			resp.IndexOK = true
		}
	}
	return resp, nil
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", models.ErrInvalidArgument, err)
}
