package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-recall/internal/models"
)

// QdrantStore talks to a Qdrant server over its REST API. Collections use
// cosine distance; point ids must be UUIDs.
type QdrantStore struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewQdrantStore constructs a Qdrant client.
func NewQdrantStore(endpoint, apiKey string, timeout time.Duration) (*QdrantStore, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &QdrantStore{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector,omitempty"`
	Score   float64        `json:"score,omitempty"`
	Payload models.Payload `json:"payload"`
}

// EnsureCollection creates the collection when GET reports it missing.
func (s *QdrantStore) EnsureCollection(ctx context.Context, name string, dim int) error {
	status, err := s.do(ctx, http.MethodGet, collectionPath(name), nil, nil)
	if err != nil && status != http.StatusNotFound {
		return err
	}
	if status == http.StatusOK {
		return nil
	}

	body := map[string]interface{}{
		"vectors": map[string]interface{}{"size": dim, "distance": "Cosine"},
	}
	if _, err := s.do(ctx, http.MethodPut, collectionPath(name), body, nil); err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	return nil
}

// Upsert writes a single point and waits for it to be applied.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, point Point) error {
	if _, err := uuid.Parse(point.ID); err != nil {
		return fmt.Errorf("%w: qdrant point id must be a uuid: %q", models.ErrInvalidArgument, point.ID)
	}
	body := map[string]interface{}{
		"points": []qdrantPoint{{ID: point.ID, Vector: point.Vector, Payload: point.Payload}},
	}
	_, err := s.do(ctx, http.MethodPut, collectionPath(collection)+"/points?wait=true", body, nil)
	return err
}

// Fetch retrieves one point with its vector and payload.
func (s *QdrantStore) Fetch(ctx context.Context, collection, id string) (Point, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Point{}, models.ErrNotFound
	}
	body := map[string]interface{}{
		"ids":          []string{id},
		"with_payload": true,
		"with_vector":  true,
	}
	var response struct {
		Result []qdrantPoint `json:"result"`
	}
	status, err := s.do(ctx, http.MethodPost, collectionPath(collection)+"/points", body, &response)
	if status == http.StatusNotFound {
		return Point{}, models.ErrNotFound
	}
	if err != nil {
		return Point{}, err
	}
	if len(response.Result) == 0 {
		return Point{}, models.ErrNotFound
	}
	p := response.Result[0]
	return Point{ID: p.ID, Vector: p.Vector, Payload: p.Payload}, nil
}

// NearestNeighbors runs a cosine search. Equal scores are re-ordered by
// ingestion time, newest first.
func (s *QdrantStore) NearestNeighbors(ctx context.Context, collection string, vector []float32, limit int) ([]Hit, error) {
	body := map[string]interface{}{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	var response struct {
		Result []qdrantPoint `json:"result"`
	}
	if _, err := s.do(ctx, http.MethodPost, collectionPath(collection)+"/points/search", body, &response); err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(response.Result))
	for _, p := range response.Result {
		hits = append(hits, Hit{ID: p.ID, Score: p.Score, Payload: p.Payload})
	}
	sortHits(hits)
	return hits, nil
}

// Ping checks the server health endpoint.
func (s *QdrantStore) Ping(ctx context.Context) error {
	_, err := s.do(ctx, http.MethodGet, "/healthz", nil, nil)
	return err
}

// Close releases idle connections.
func (s *QdrantStore) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}

// do issues a JSON request and decodes a 2xx body into out when non-nil.
// The returned status is zero when the request never reached the server.
func (s *QdrantStore) do(ctx context.Context, method, path string, in, out interface{}) (int, error) {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.endpoint+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("qdrant %s %s failed (%d): %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode qdrant response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func collectionPath(name string) string {
	return "/collections/" + url.PathEscape(name)
}
