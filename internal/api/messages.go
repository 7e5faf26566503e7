package api

import "github.com/miradorstack/mirador-recall/internal/models"

// IngestRequest is the wire form of an ingestion. Evidence travels inline as
// bytes (base64 in JSON).
type IngestRequest struct {
	Filename string          `json:"filename"`
	Evidence []byte          `json:"evidence,omitempty"`
	Note     string          `json:"note"`
	Entities models.Entities `json:"entities"`
}

// IngestResponse returns the generated incident id and the extracted card.
type IngestResponse struct {
	IncidentID string              `json:"incident_id"`
	Card       models.IncidentCard `json:"incident_card"`
}

// SearchRequest asks for incidents similar to IncidentID.
type SearchRequest struct {
	IncidentID  string `json:"incident_id"`
	TopK        int    `json:"top_k,omitempty"`
	MinSeverity string `json:"min_severity,omitempty"`
}

// SearchResponse lists ranked matches plus the remediation checklist.
type SearchResponse struct {
	QueryIncidentID  string               `json:"query_incident_id"`
	Matches          []models.MatchResult `json:"matches"`
	SuggestedActions []string             `json:"suggested_actions"`
}

// HealthRequest is empty.
type HealthRequest struct{}

// HealthResponse reports service readiness.
type HealthResponse struct {
	APIOK   bool `json:"api_ok"`
	IndexOK bool `json:"index_ok"`
	Dim     int  `json:"dim"`
}
