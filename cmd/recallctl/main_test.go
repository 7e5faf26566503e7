package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/miradorstack/mirador-recall/internal/api"
	"github.com/miradorstack/mirador-recall/internal/config"
	"github.com/miradorstack/mirador-recall/internal/models"
)

type recordingService struct {
	ingest *api.IngestRequest
	search *api.SearchRequest
}

func (s *recordingService) Ingest(_ context.Context, req *api.IngestRequest) (*api.IngestResponse, error) {
	s.ingest = req
	return &api.IngestResponse{IncidentID: "inc-1", Card: models.IncidentCard{Summary: req.Note}.Normalize()}, nil
}

func (s *recordingService) Search(_ context.Context, req *api.SearchRequest) (*api.SearchResponse, error) {
	s.search = req
	if req.IncidentID == "missing" {
		return nil, status.Error(codes.NotFound, "incident not found")
	}
	return &api.SearchResponse{QueryIncidentID: req.IncidentID, Matches: []models.MatchResult{}, SuggestedActions: []string{"check"}}, nil
}

func (s *recordingService) Health(context.Context, *api.HealthRequest) (*api.HealthResponse, error) {
	return &api.HealthResponse{APIOK: true, IndexOK: true, Dim: 384}, nil
}

func startServer(t *testing.T) (*recordingService, string) {
	t.Helper()
	svc := &recordingService{}
	srv, err := api.NewServer(config.ServerConfig{Address: "127.0.0.1:0", GracefulTimeout: time.Second}, svc, nil)
	require.NoError(t, err)
	go func() { _ = srv.Start() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return svc, srv.Address()
}

func TestIngestCommand(t *testing.T) {
	svc, addr := startServer(t)
	evidence := filepath.Join(t.TempDir(), "vpn.png")
	require.NoError(t, os.WriteFile(evidence, []byte{0x89, 0x50}, 0o644))

	var out bytes.Buffer
	err := newApp(&out).Run([]string{"recallctl", "--addr", addr, "ingest",
		"--file", evidence, "--note", "VPN down", "--system", "vpn-gw-01", "--port", "500"})
	require.NoError(t, err)

	require.NotNil(t, svc.ingest)
	assert.Equal(t, "vpn.png", svc.ingest.Filename)
	assert.Equal(t, []byte{0x89, 0x50}, svc.ingest.Evidence)
	assert.Equal(t, models.Values{"vpn-gw-01"}, svc.ingest.Entities.Systems)
	assert.Equal(t, models.Values{"500"}, svc.ingest.Entities.Ports)

	var resp api.IngestResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "inc-1", resp.IncidentID)
}

func TestIngestCommandNeedsInput(t *testing.T) {
	_, addr := startServer(t)
	err := newApp(&bytes.Buffer{}).Run([]string{"recallctl", "--addr", addr, "ingest"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--file or --note")
}

func TestSearchCommand(t *testing.T) {
	svc, addr := startServer(t)

	t.Run("id is required", func(t *testing.T) {
		err := newApp(&bytes.Buffer{}).Run([]string{"recallctl", "--addr", addr, "search"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "id")
	})

	t.Run("forwards flags", func(t *testing.T) {
		var out bytes.Buffer
		err := newApp(&out).Run([]string{"recallctl", "--addr", addr, "search", "--id", "inc-1", "--top-k", "3", "--min-severity", "high"})
		require.NoError(t, err)
		assert.Equal(t, &api.SearchRequest{IncidentID: "inc-1", TopK: 3, MinSeverity: "high"}, svc.search)
		assert.Contains(t, out.String(), `"query_incident_id": "inc-1"`)
	})

	t.Run("surfaces not found", func(t *testing.T) {
		err := newApp(&bytes.Buffer{}).Run([]string{"recallctl", "--addr", addr, "search", "--id", "missing"})
		require.Error(t, err)
		assert.Equal(t, codes.NotFound, status.Code(err))
	})
}

func TestHealthCommand(t *testing.T) {
	_, addr := startServer(t)
	var out bytes.Buffer
	require.NoError(t, newApp(&out).Run([]string{"recallctl", "--addr", addr, "health"}))

	var resp api.HealthResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.True(t, resp.APIOK)
	assert.Equal(t, 384, resp.Dim)
}
