package extractors

import (
	"context"
	"reflect"
	"testing"

	"github.com/miradorstack/mirador-recall/internal/models"
)

func TestNoteExtractorVPNOutage(t *testing.T) {
	card, err := NewNoteExtractor(nil).Extract(context.Background(), "uploads/x.png", "VPN gateway down, auth failures", models.Entities{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := (models.Values{"VPN gateway down", "auth failures"}); !reflect.DeepEqual(card.Symptoms, want) {
		t.Fatalf("unexpected symptoms: %v", card.Symptoms)
	}
	if want := (models.Values{"possible service outage"}); !reflect.DeepEqual(card.Hypotheses, want) {
		t.Fatalf("unexpected hypotheses: %v", card.Hypotheses)
	}
	if card.SeverityGuess != models.SeverityMedium {
		t.Fatalf("expected medium severity, got %s", card.SeverityGuess)
	}
	if card.Summary != "VPN gateway down, auth failures" {
		t.Fatalf("unexpected summary %q", card.Summary)
	}
	if card.AssetType != models.AssetUnknown {
		t.Fatalf("expected unknown asset type, got %s", card.AssetType)
	}
	if want := (models.Values{"auth logs", "vpc flow logs", "waf logs"}); !reflect.DeepEqual(card.RecommendedLogs, want) {
		t.Fatalf("unexpected recommended logs: %v", card.RecommendedLogs)
	}
}

func TestNoteExtractorEmptyNote(t *testing.T) {
	card, err := NewNoteExtractor(nil).Extract(context.Background(), "", "   ", models.Entities{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if card.SeverityGuess != models.SeverityUnknown {
		t.Fatalf("expected unknown severity, got %s", card.SeverityGuess)
	}
	if card.Summary != placeholderSummary {
		t.Fatalf("expected placeholder summary, got %q", card.Summary)
	}
	if card.Symptoms == nil || len(card.Symptoms) != 0 || card.Hypotheses == nil || len(card.Hypotheses) != 0 {
		t.Fatalf("expected empty non-nil lists, got %#v %#v", card.Symptoms, card.Hypotheses)
	}
	if card.Entities.Systems == nil || card.Entities.Observables == nil {
		t.Fatalf("expected non-nil entity lists")
	}
}

func TestNoteExtractorMergesHints(t *testing.T) {
	hints := models.Entities{Systems: models.Values{"VPN-GW-01"}, Vendors: models.Values{"Cisco"}}
	card, err := NewNoteExtractor(nil).Extract(context.Background(), "", "vpn-gw-01 rejecting cisco anyconnect on port 443", hints)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := (models.Values{"VPN-GW-01"}); !reflect.DeepEqual(card.Entities.Systems, want) {
		t.Fatalf("expected hint spelling to win, got %v", card.Entities.Systems)
	}
	if want := (models.Values{"Cisco"}); !reflect.DeepEqual(card.Entities.Vendors, want) {
		t.Fatalf("unexpected vendors: %v", card.Entities.Vendors)
	}
	if want := (models.Values{"443"}); !reflect.DeepEqual(card.Entities.Ports, want) {
		t.Fatalf("unexpected ports: %v", card.Entities.Ports)
	}
}

func TestRecognizeEntities(t *testing.T) {
	got := RecognizeEntities("Egress from 10.0.4.17 to 203.0.113.9:8443 over TLS, dns lookups failing on edge-proxy-2; okta alerts; port 22 open; 999.1.1.1 ignored")

	want := models.Entities{
		Systems:     models.Values{"edge-proxy-2"},
		Vendors:     models.Values{"okta"},
		Protocols:   models.Values{"tls", "dns"},
		Ports:       models.Values{"22", "8443"},
		Observables: models.Values{"10.0.4.17", "203.0.113.9"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected entities:\n got %#v\nwant %#v", got, want)
	}
}
