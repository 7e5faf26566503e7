package api

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/miradorstack/mirador-recall/internal/config"
	"github.com/miradorstack/mirador-recall/internal/models"
)

type stubRecall struct {
	lastSearch *SearchRequest
}

func (s *stubRecall) Ingest(_ context.Context, req *IngestRequest) (*IngestResponse, error) {
	return &IngestResponse{IncidentID: "inc-1", Card: models.IncidentCard{Summary: req.Note}.Normalize()}, nil
}

func (s *stubRecall) Search(_ context.Context, req *SearchRequest) (*SearchResponse, error) {
	s.lastSearch = req
	if req.IncidentID == "missing" {
		return nil, status.Error(codes.NotFound, "incident not found")
	}
	if req.IncidentID == "explode" {
		panic("stub exploded")
	}
	return &SearchResponse{QueryIncidentID: req.IncidentID, Matches: []models.MatchResult{{IncidentID: "inc-2", Score: 0.9}}}, nil
}

func (s *stubRecall) Health(context.Context, *HealthRequest) (*HealthResponse, error) {
	return &HealthResponse{APIOK: true, IndexOK: true, Dim: 384}, nil
}

func startBufconn(t *testing.T, svc RecallServer) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewServerWithListener(config.ServerConfig{GracefulTimeout: time.Second}, lis, svc, nil)
	go func() { _ = srv.Start() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return dialBufconn(t, lis)
}

func dialBufconn(t *testing.T, lis *bufconn.Listener) *grpc.ClientConn {
	t.Helper()
	client, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client.conn
}

func TestServerRoundTripsJSONMessages(t *testing.T) {
	svc := &stubRecall{}
	client := &Client{conn: startBufconn(t, svc)}
	ctx := context.Background()

	ingest, err := client.Ingest(ctx, &IngestRequest{Note: "api down", Evidence: []byte{0x89, 0x50}})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if ingest.IncidentID != "inc-1" || ingest.Card.Summary != "api down" {
		t.Fatalf("unexpected ingest response %+v", ingest)
	}

	search, err := client.Search(ctx, &SearchRequest{IncidentID: "inc-1", TopK: 3, MinSeverity: "high"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(search.Matches) != 1 || search.Matches[0].IncidentID != "inc-2" {
		t.Fatalf("unexpected search response %+v", search)
	}
	if svc.lastSearch.TopK != 3 || svc.lastSearch.MinSeverity != "high" {
		t.Fatalf("request fields lost in transit: %+v", svc.lastSearch)
	}

	health, err := client.Health(ctx)
	if err != nil || !health.APIOK || health.Dim != 384 {
		t.Fatalf("unexpected health %+v %v", health, err)
	}
}

func TestServerPropagatesStatusCodes(t *testing.T) {
	client := &Client{conn: startBufconn(t, &stubRecall{})}
	_, err := client.Search(context.Background(), &SearchRequest{IncidentID: "missing"})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestServerRegistersHealthService(t *testing.T) {
	conn := startBufconn(t, &stubRecall{})
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: ServiceName}, grpc.CallContentSubtype("proto"))
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("unexpected status %v", resp.GetStatus())
	}
}

func TestServerRecoversHandlerPanic(t *testing.T) {
	client := &Client{conn: startBufconn(t, &stubRecall{})}
	ctx := context.Background()

	_, err := client.Search(ctx, &SearchRequest{IncidentID: "explode"})
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal after a handler panic, got %v", err)
	}
	if _, err := client.Health(ctx); err != nil {
		t.Fatalf("server should keep serving after a panic: %v", err)
	}
}
