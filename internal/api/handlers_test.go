package api

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/miradorstack/mirador-recall/internal/models"
)

func TestFromIngestRequest(t *testing.T) {
	req := &IngestRequest{
		Evidence: []byte("png"),
		Note:     "VPN gateway down",
		Entities: models.Entities{Systems: models.Values{" vpn-gw-01 ", "VPN-GW-01"}},
	}
	domain, err := FromIngestRequest(req)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if domain.Filename != "evidence" {
		t.Fatalf("expected default filename, got %q", domain.Filename)
	}
	if len(domain.Entities.Systems) != 1 || domain.Entities.Systems[0] != "vpn-gw-01" {
		t.Fatalf("expected normalized entity hints, got %v", domain.Entities.Systems)
	}
	data, _ := io.ReadAll(domain.Evidence)
	if string(data) != "png" {
		t.Fatalf("unexpected evidence %q", data)
	}

	if _, err := FromIngestRequest(&IngestRequest{}); err == nil {
		t.Fatalf("expected error when neither evidence nor note is present")
	}
	if _, err := FromIngestRequest(nil); err == nil {
		t.Fatalf("expected error for nil request")
	}
}

func TestFromSearchRequest(t *testing.T) {
	domain, err := FromSearchRequest(&SearchRequest{IncidentID: " inc-1 ", TopK: 3, MinSeverity: "HIGH"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if domain.IncidentID != "inc-1" || domain.TopK != 3 || domain.MinSeverity != models.SeverityHigh {
		t.Fatalf("unexpected request %+v", domain)
	}

	for _, bad := range []*SearchRequest{nil, {}, {IncidentID: "x", TopK: -1}, {IncidentID: "x", TopK: MaxTopK + 1}, {IncidentID: "x", TopK: 1 << 40}, {IncidentID: "x", MinSeverity: "severe"}, {IncidentID: "x", MinSeverity: "unknown"}} {
		if _, err := FromSearchRequest(bad); err == nil {
			t.Fatalf("expected error for %+v", bad)
		}
	}
}

func TestFromSearchRequestAcceptsMaxTopK(t *testing.T) {
	domain, err := FromSearchRequest(&SearchRequest{IncidentID: "x", TopK: MaxTopK})
	if err != nil {
		t.Fatalf("expected top_k at the bound to pass, got %v", err)
	}
	if domain.TopK != MaxTopK {
		t.Fatalf("unexpected top_k %d", domain.TopK)
	}
}

func TestToSearchResponseShape(t *testing.T) {
	resp := ToSearchResponse(models.SearchResponse{QueryIncidentID: "inc-1"})
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"query_incident_id":"inc-1","matches":[],"suggested_actions":[]}`
	if string(data) != want {
		t.Fatalf("unexpected json %s", data)
	}
}

func TestJSONCodecRoundTrip(t *testing.T) {
	codec := jsonCodec{}
	if codec.Name() != "json" {
		t.Fatalf("unexpected codec name %q", codec.Name())
	}
	data, err := codec.Marshal(&HealthResponse{APIOK: true, IndexOK: false, Dim: 384})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"api_ok":true,"index_ok":false,"dim":384}` {
		t.Fatalf("unexpected payload %s", data)
	}
	var out HealthResponse
	if err := codec.Unmarshal(data, &out); err != nil || out.Dim != 384 {
		t.Fatalf("unmarshal: %v %+v", err, out)
	}
}
