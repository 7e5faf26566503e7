package services

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/miradorstack/mirador-recall/internal/api"
	"github.com/miradorstack/mirador-recall/internal/config"
	"github.com/miradorstack/mirador-recall/internal/embedding"
	"github.com/miradorstack/mirador-recall/internal/engine"
	"github.com/miradorstack/mirador-recall/internal/evidence"
	"github.com/miradorstack/mirador-recall/internal/extractors"
	"github.com/miradorstack/mirador-recall/internal/index"
	"github.com/miradorstack/mirador-recall/internal/remediation"
	"github.com/miradorstack/mirador-recall/internal/scoring"
)

func startRecall(t *testing.T) *api.Client {
	t.Helper()
	ctx := context.Background()

	store, err := index.OpenBadgerStore("", true, nil)
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	gateway, err := embedding.NewGateway(ctx, embedding.NewHashModel(embedding.DefaultHashDimension))
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	dual := index.NewDualIndex(store, "", "", nil)
	if err := dual.EnsureCollections(ctx, gateway.Dimension()); err != nil {
		t.Fatalf("ensure collections: %v", err)
	}

	ingestor, err := engine.NewIngestor(extractors.NewNoteExtractor(nil), evidence.NewStore(t.TempDir()), gateway, dual)
	if err != nil {
		t.Fatalf("new ingestor: %v", err)
	}
	t.Cleanup(ingestor.Release)
	pipeline := engine.NewPipeline(nil, dual, gateway, scoring.NewScorer(scoring.DefaultWeights()), remediation.Default(), engine.SearchOptions{})

	svc := NewRecallService(nil, ingestor, pipeline, dual, gateway.Dimension())

	lis := bufconn.Listen(1 << 20)
	srv := api.NewServerWithListener(config.ServerConfig{GracefulTimeout: time.Second}, lis, svc, nil)
	go func() { _ = srv.Start() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	client, err := api.Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRecallEndToEnd(t *testing.T) {
	client := startRecall(t)
	ctx := context.Background()

	health, err := client.Health(ctx)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if !health.APIOK || !health.IndexOK || health.Dim != embedding.DefaultHashDimension {
		t.Fatalf("unexpected health %+v", health)
	}

	first, err := client.Ingest(ctx, &api.IngestRequest{
		Filename: "vpn.png",
		Evidence: []byte{0x89, 0x50, 0x4e, 0x47},
		Note:     "VPN tunnel down on vpn-gw-01, IKE port 500 timeouts",
	})
	if err != nil {
		t.Fatalf("ingest first: %v", err)
	}
	second, err := client.Ingest(ctx, &api.IngestRequest{Note: "vpn-gw-01 VPN tunnel flapping, IKE port 500 retries"})
	if err != nil {
		t.Fatalf("ingest second: %v", err)
	}
	if _, err := client.Ingest(ctx, &api.IngestRequest{Note: "printer queue stuck on floor 3"}); err != nil {
		t.Fatalf("ingest unrelated: %v", err)
	}

	resp, err := client.Search(ctx, &api.SearchRequest{IncidentID: first.IncidentID, TopK: 2})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if resp.QueryIncidentID != first.IncidentID {
		t.Fatalf("unexpected query id %q", resp.QueryIncidentID)
	}
	if len(resp.Matches) == 0 || resp.Matches[0].IncidentID != second.IncidentID {
		t.Fatalf("expected %s ranked first, got %+v", second.IncidentID, resp.Matches)
	}
	for _, m := range resp.Matches {
		if m.IncidentID == first.IncidentID {
			t.Fatalf("query incident returned as its own match")
		}
	}
	if len(resp.Matches[0].WhyMatched.Overlap.Systems) == 0 {
		t.Fatalf("expected shared system in explanation, got %+v", resp.Matches[0].WhyMatched)
	}
	if len(resp.SuggestedActions) == 0 {
		t.Fatalf("expected remediation checklist")
	}

	if _, err := client.Search(ctx, &api.SearchRequest{IncidentID: "00000000-0000-0000-0000-000000000000"}); status.Code(err) != codes.NotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := client.Search(ctx, &api.SearchRequest{IncidentID: first.IncidentID, MinSeverity: "severe"}); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if _, err := client.Search(ctx, &api.SearchRequest{IncidentID: first.IncidentID, TopK: 1 << 40}); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument for oversized top_k, got %v", err)
	}
	if _, err := client.Health(ctx); err != nil {
		t.Fatalf("server should keep serving after a rejected request: %v", err)
	}
}
