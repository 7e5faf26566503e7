package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/miradorstack/mirador-recall/internal/canonical"
	"github.com/miradorstack/mirador-recall/internal/models"
	"github.com/miradorstack/mirador-recall/internal/remediation"
	"github.com/miradorstack/mirador-recall/internal/scoring"
)

const (
	DefaultTopK            = 5
	DefaultOverfetchFactor = 6
	DefaultOverfetchFloor  = 30
	DefaultMaxTopK         = 100
)

// SearchOptions tunes candidate retrieval.
type SearchOptions struct {
	DefaultTopK     int
	OverfetchFactor int
	OverfetchFloor  int
	MaxTopK         int
	RankBy          RankMode
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.DefaultTopK <= 0 {
		o.DefaultTopK = DefaultTopK
	}
	if o.OverfetchFactor <= 0 {
		o.OverfetchFactor = DefaultOverfetchFactor
	}
	if o.OverfetchFloor <= 0 {
		o.OverfetchFloor = DefaultOverfetchFloor
	}
	if o.MaxTopK <= 0 {
		o.MaxTopK = DefaultMaxTopK
	}
	if o.DefaultTopK > o.MaxTopK {
		o.DefaultTopK = o.MaxTopK
	}
	if o.RankBy == "" {
		o.RankBy = RankByRetrieval
	}
	return o
}

// Pipeline answers "which past incidents look like this one". Each call is
// independent: resolve, re-embed, over-fetch, filter, score, truncate.
type Pipeline struct {
	logger    *slog.Logger
	index     Index
	embedder  Embedder
	scorer    *scoring.Scorer
	checklist *remediation.Checklist
	opts      SearchOptions
}

// NewPipeline constructs the retrieval pipeline.
func NewPipeline(
	logger *slog.Logger,
	idx Index,
	embedder Embedder,
	scorer *scoring.Scorer,
	checklist *remediation.Checklist,
	opts SearchOptions,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if scorer == nil {
		scorer = scoring.NewScorer(scoring.DefaultWeights())
	}
	if checklist == nil {
		checklist = remediation.Default()
	}
	return &Pipeline{
		logger:    logger,
		index:     idx,
		embedder:  embedder,
		scorer:    scorer,
		checklist: checklist,
		opts:      opts.withDefaults(),
	}
}

// Search returns incidents similar to req.IncidentID. An unknown id yields
// models.ErrNotFound; an unrecognised severity floor or a TopK above
// MaxTopK yields models.ErrInvalidArgument.
func (p *Pipeline) Search(ctx context.Context, req models.SearchRequest) (models.SearchResponse, error) {
	queryID := strings.TrimSpace(req.IncidentID)
	if queryID == "" {
		return models.SearchResponse{}, fmt.Errorf("%w: incident id is required", models.ErrInvalidArgument)
	}
	if p.index == nil || p.embedder == nil {
		return models.SearchResponse{}, fmt.Errorf("%w: search pipeline not configured", models.ErrUnavailable)
	}

	topK := req.TopK
	if topK <= 0 {
		topK = p.opts.DefaultTopK
	}
	if topK > p.opts.MaxTopK {
		return models.SearchResponse{}, fmt.Errorf("%w: top_k %d exceeds the maximum of %d", models.ErrInvalidArgument, topK, p.opts.MaxTopK)
	}
	minRank, filterSeverity := 0, false
	if floor := strings.TrimSpace(string(req.MinSeverity)); floor != "" {
		severity, ok := models.ParseSeverityFloor(floor)
		if !ok {
			return models.SearchResponse{}, fmt.Errorf("%w: unknown severity %q", models.ErrInvalidArgument, req.MinSeverity)
		}
		minRank, filterSeverity = scoring.SeverityRank(severity), true
	}

	query, err := p.index.Fetch(ctx, queryID)
	if err != nil {
		return models.SearchResponse{}, err
	}

	vector, err := p.embedder.Embed(ctx, canonical.SemanticText(query.Card))
	if err != nil {
		return models.SearchResponse{}, fmt.Errorf("embed query %s: %w", queryID, err)
	}

	limit := p.overfetchLimit(topK)
	hits, err := p.index.SearchSemantic(ctx, vector, limit)
	if err != nil {
		return models.SearchResponse{}, err
	}

	matches := make([]models.MatchResult, 0, min(topK, len(hits)))
	for _, hit := range hits {
		candidateID := hit.Payload.IncidentID
		if candidateID == "" {
			candidateID = hit.ID
		}
		if candidateID == queryID {
			continue
		}
		candidate := hit.Payload.Card
		if filterSeverity && scoring.SeverityRank(candidate.SeverityGuess) < minRank {
			continue
		}

		overlap := p.scorer.Overlap(query.Card, candidate)
		final, vectorScore, overlapScore := p.scorer.Combine(hit.Score, overlap)
		matches = append(matches, models.MatchResult{
			IncidentID:   candidateID,
			Score:        final,
			VectorScore:  vectorScore,
			OverlapScore: overlapScore,
			WhyMatched:   scoring.Explain(query.Card, candidate),
			Card:         candidate,
		})
		if p.opts.RankBy == RankByRetrieval && len(matches) >= topK {
			break
		}
	}

	if p.opts.RankBy == RankByScore {
		sort.SliceStable(matches, func(i, j int) bool {
			return matches[i].Score > matches[j].Score
		})
	}
	if len(matches) > topK {
		matches = matches[:topK]
	}

	p.logger.Debug("search completed",
		slog.String("incident_id", queryID),
		slog.Int("candidates", len(hits)),
		slog.Int("matches", len(matches)),
		slog.String("rank_by", string(p.opts.RankBy)))

	return models.SearchResponse{
		QueryIncidentID:  queryID,
		Matches:          matches,
		SuggestedActions: p.checklist.Actions(),
	}, nil
}

// overfetchLimit leaves headroom for filtering: max(topK*factor, floor).
// topK is already bounded by MaxTopK.
func (p *Pipeline) overfetchLimit(topK int) int {
	limit := topK
	if topK <= math.MaxInt/p.opts.OverfetchFactor {
		limit = topK * p.opts.OverfetchFactor
	}
	if limit < p.opts.OverfetchFloor {
		limit = p.opts.OverfetchFloor
	}
	return limit
}
