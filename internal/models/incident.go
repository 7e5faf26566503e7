package models

import (
	"errors"
	"io"
	"time"
)

var (
	// ErrNotFound signals that an incident id is absent from the index.
	ErrNotFound = errors.New("incident not found")
	// ErrUnavailable signals that the embedding model or vector index cannot serve requests.
	ErrUnavailable = errors.New("upstream unavailable")
	// ErrInvalidArgument signals a request that cannot be served as issued.
	ErrInvalidArgument = errors.New("invalid argument")
)

// IncidentRecord is the persisted unit for one ingested incident.
type IncidentRecord struct {
	IncidentID     string
	Card           IncidentCard
	SemanticVector []float32
	EntityVector   []float32
	ImagePath      string
	IngestedAt     time.Time
}

// Payload is what both index collections store alongside the vectors.
type Payload struct {
	IncidentID string       `json:"incident_id"`
	Card       IncidentCard `json:"incident_card"`
	Severity   Severity     `json:"severity"`
	AssetType  AssetType    `json:"asset_type"`
	ImagePath  string       `json:"image_path"`
	IngestedAt time.Time    `json:"ingested_at"`
}

// Payload projects the record into its index payload.
func (r IncidentRecord) Payload() Payload {
	return Payload{
		IncidentID: r.IncidentID,
		Card:       r.Card,
		Severity:   r.Card.SeverityGuess,
		AssetType:  r.Card.AssetType,
		ImagePath:  r.ImagePath,
		IngestedAt: r.IngestedAt,
	}
}

// EntityOverlap lists the shared values per entity category.
type EntityOverlap struct {
	Systems     []string `json:"systems"`
	Vendors     []string `json:"vendors"`
	Ports       []string `json:"ports"`
	Protocols   []string `json:"protocols"`
	Observables []string `json:"observables"`
}

// WhyMatched explains a match. Every list is present, possibly empty.
type WhyMatched struct {
	Overlap         EntityOverlap `json:"overlap"`
	SymptomsOverlap []string      `json:"symptoms_overlap"`
}

// MatchResult is one ranked candidate produced by a search.
type MatchResult struct {
	IncidentID   string       `json:"incident_id"`
	Score        float64      `json:"score"`
	VectorScore  float64      `json:"vector_score"`
	OverlapScore float64      `json:"overlap_score"`
	WhyMatched   WhyMatched   `json:"why_matched"`
	Card         IncidentCard `json:"incident_card"`
}

// SearchRequest asks for incidents similar to an already ingested one.
// An empty MinSeverity disables the severity floor; TopK <= 0 uses the default.
type SearchRequest struct {
	IncidentID  string
	TopK        int
	MinSeverity Severity
}

// SearchResponse carries ranked matches and the remediation checklist.
type SearchResponse struct {
	QueryIncidentID  string        `json:"query_incident_id"`
	Matches          []MatchResult `json:"matches"`
	SuggestedActions []string      `json:"suggested_actions"`
}

// IngestRequest carries raw evidence plus an optional operator note.
// Entities are hints merged into whatever the extractor recognises.
type IngestRequest struct {
	Filename string
	Evidence io.Reader
	Note     string
	Entities Entities
}

// IngestResponse reports the generated id and the resulting card.
type IngestResponse struct {
	IncidentID string       `json:"incident_id"`
	Card       IncidentCard `json:"incident_card"`
}
