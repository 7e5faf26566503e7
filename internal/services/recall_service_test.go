package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/miradorstack/mirador-recall/internal/api"
	"github.com/miradorstack/mirador-recall/internal/models"
)

type ingesterStub struct {
	got models.IngestRequest
	err error
}

func (s *ingesterStub) Ingest(_ context.Context, req models.IngestRequest) (models.IngestResponse, error) {
	s.got = req
	if s.err != nil {
		return models.IngestResponse{}, s.err
	}
	return models.IngestResponse{IncidentID: "inc-1", Card: models.IncidentCard{Summary: req.Note}.Normalize()}, nil
}

type searcherStub struct {
	got models.SearchRequest
	err error
}

func (s *searcherStub) Search(_ context.Context, req models.SearchRequest) (models.SearchResponse, error) {
	s.got = req
	if s.err != nil {
		return models.SearchResponse{}, s.err
	}
	return models.SearchResponse{QueryIncidentID: req.IncidentID}, nil
}

type pingerStub struct{ err error }

func (p pingerStub) Ping(context.Context) error { return p.err }

func TestIngestMapsRequest(t *testing.T) {
	ingester := &ingesterStub{}
	svc := NewRecallService(nil, ingester, nil, nil, 8)

	resp, err := svc.Ingest(context.Background(), &api.IngestRequest{Note: "VPN down", Entities: models.Entities{Systems: []string{"vpn-gw-01"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.IncidentID != "inc-1" || resp.Card.Summary != "VPN down" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if ingester.got.Filename != "evidence" || len(ingester.got.Entities.Systems) != 1 {
		t.Fatalf("unexpected domain request %+v", ingester.got)
	}
}

func TestIngestRejectsEmptyUpload(t *testing.T) {
	ingester := &ingesterStub{}
	svc := NewRecallService(nil, ingester, nil, nil, 8)

	_, err := svc.Ingest(context.Background(), &api.IngestRequest{Filename: "x.png"})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestIngestSurfacesUnavailable(t *testing.T) {
	ingester := &ingesterStub{err: fmt.Errorf("%w: embed: model offline", models.ErrUnavailable)}
	svc := NewRecallService(nil, ingester, nil, nil, 8)

	_, err := svc.Ingest(context.Background(), &api.IngestRequest{Note: "disk full"})
	if status.Code(err) != codes.Unavailable {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if !errors.Is(err, models.ErrUnavailable) {
		t.Fatalf("expected wrapped sentinel, got %v", err)
	}
}

func TestSearchValidation(t *testing.T) {
	searcher := &searcherStub{}
	svc := NewRecallService(nil, nil, searcher, nil, 8)

	cases := []*api.SearchRequest{
		{},
		{IncidentID: "inc-1", TopK: -1},
		{IncidentID: "inc-1", MinSeverity: "urgent"},
	}
	for _, req := range cases {
		if _, err := svc.Search(context.Background(), req); status.Code(err) != codes.InvalidArgument {
			t.Fatalf("request %+v: expected invalid argument, got %v", req, err)
		}
	}

	if _, err := svc.Search(context.Background(), &api.SearchRequest{IncidentID: " inc-1 ", TopK: 3, MinSeverity: "HIGH"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if searcher.got.IncidentID != "inc-1" || searcher.got.TopK != 3 || searcher.got.MinSeverity != models.SeverityHigh {
		t.Fatalf("unexpected domain request %+v", searcher.got)
	}
}

func TestSearchNotFound(t *testing.T) {
	searcher := &searcherStub{err: fmt.Errorf("%w: incident inc-404", models.ErrNotFound)}
	svc := NewRecallService(nil, nil, searcher, nil, 8)

	_, err := svc.Search(context.Background(), &api.SearchRequest{IncidentID: "inc-404"})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSearchReturnsEmptyLists(t *testing.T) {
	svc := NewRecallService(nil, nil, &searcherStub{}, nil, 8)

	resp, err := svc.Search(context.Background(), &api.SearchRequest{IncidentID: "inc-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Matches == nil || resp.SuggestedActions == nil {
		t.Fatalf("expected non-nil lists, got %+v", resp)
	}
}

func TestUnconfiguredServiceIsUnavailable(t *testing.T) {
	svc := NewRecallService(nil, nil, nil, nil, 0)

	if _, err := svc.Ingest(context.Background(), &api.IngestRequest{Note: "x"}); status.Code(err) != codes.Unavailable {
		t.Fatalf("expected unavailable ingest, got %v", err)
	}
	if _, err := svc.Search(context.Background(), &api.SearchRequest{IncidentID: "x"}); status.Code(err) != codes.Unavailable {
		t.Fatalf("expected unavailable search, got %v", err)
	}
}

func TestHealth(t *testing.T) {
	healthy := NewRecallService(nil, nil, nil, pingerStub{}, 384)
	resp, err := healthy.Health(context.Background(), &api.HealthRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.APIOK || !resp.IndexOK || resp.Dim != 384 {
		t.Fatalf("unexpected health %+v", resp)
	}

	degraded := NewRecallService(nil, nil, nil, pingerStub{err: errors.New("connection refused")}, 384)
	resp, err = degraded.Health(context.Background(), &api.HealthRequest{})
	if err != nil {
		t.Fatalf("health should not fail when the index is down: %v", err)
	}
	if !resp.APIOK || resp.IndexOK {
		t.Fatalf("expected degraded health, got %+v", resp)
	}
}
