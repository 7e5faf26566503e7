package api

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/miradorstack/mirador-recall/internal/models"
)

// MaxTopK is the largest top_k accepted on the wire. The search pipeline
// may enforce a lower configured bound.
const MaxTopK = 1000

// FromIngestRequest maps the wire request into a domain IngestRequest.
func FromIngestRequest(req *IngestRequest) (models.IngestRequest, error) {
	if req == nil {
		return models.IngestRequest{}, fmt.Errorf("request is nil")
	}
	if len(req.Evidence) == 0 && strings.TrimSpace(req.Note) == "" {
		return models.IngestRequest{}, fmt.Errorf("evidence or note is required")
	}
	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		filename = "evidence"
	}
	return models.IngestRequest{
		Filename: filename,
		Evidence: bytes.NewReader(req.Evidence),
		Note:     req.Note,
		Entities: req.Entities.Normalize(),
	}, nil
}

// ToIngestResponse converts a domain response into the wire representation.
func ToIngestResponse(resp models.IngestResponse) *IngestResponse {
	return &IngestResponse{IncidentID: resp.IncidentID, Card: resp.Card}
}

// FromSearchRequest maps the wire request into a domain SearchRequest.
func FromSearchRequest(req *SearchRequest) (models.SearchRequest, error) {
	if req == nil {
		return models.SearchRequest{}, fmt.Errorf("request is nil")
	}
	id := strings.TrimSpace(req.IncidentID)
	if id == "" {
		return models.SearchRequest{}, fmt.Errorf("incident_id is required")
	}
	if req.TopK < 0 {
		return models.SearchRequest{}, fmt.Errorf("top_k must not be negative")
	}
	if req.TopK > MaxTopK {
		return models.SearchRequest{}, fmt.Errorf("top_k %d exceeds the maximum of %d", req.TopK, MaxTopK)
	}
	out := models.SearchRequest{IncidentID: id, TopK: req.TopK}
	if floor := strings.TrimSpace(req.MinSeverity); floor != "" {
		severity, ok := models.ParseSeverityFloor(floor)
		if !ok {
			return models.SearchRequest{}, fmt.Errorf("unknown min_severity %q", req.MinSeverity)
		}
		out.MinSeverity = severity
	}
	return out, nil
}

// ToSearchResponse converts a domain response into the wire representation.
func ToSearchResponse(resp models.SearchResponse) *SearchResponse {
	matches := resp.Matches
	if matches == nil {
		matches = []models.MatchResult{}
	}
	return &SearchResponse{
		QueryIncidentID:  resp.QueryIncidentID,
		Matches:          matches,
		SuggestedActions: append([]string{}, resp.SuggestedActions...),
	}
}
