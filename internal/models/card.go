package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// AssetType classifies the evidence an incident card was extracted from.
type AssetType string

const (
	AssetNetworkDiagram AssetType = "network_diagram"
	AssetDashboard      AssetType = "dashboard"
	AssetArchitecture   AssetType = "architecture"
	AssetUnknown        AssetType = "unknown"
)

// ParseAssetType maps free text onto a known asset type, defaulting to unknown.
func ParseAssetType(value string) AssetType {
	switch AssetType(strings.ToLower(strings.TrimSpace(value))) {
	case AssetNetworkDiagram:
		return AssetNetworkDiagram
	case AssetDashboard:
		return AssetDashboard
	case AssetArchitecture:
		return AssetArchitecture
	default:
		return AssetUnknown
	}
}

// Severity captures the guessed impact of an incident.
type Severity string

const (
	SeverityUnknown  Severity = "unknown"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity returns the severity named by value. ok is false when the
// value is not one of the known levels, in which case unknown is returned.
func ParseSeverity(value string) (Severity, bool) {
	switch Severity(strings.ToLower(strings.TrimSpace(value))) {
	case SeverityLow:
		return SeverityLow, true
	case SeverityMedium:
		return SeverityMedium, true
	case SeverityHigh:
		return SeverityHigh, true
	case SeverityCritical:
		return SeverityCritical, true
	case SeverityUnknown:
		return SeverityUnknown, true
	default:
		return SeverityUnknown, false
	}
}

// ParseSeverityFloor parses a search severity floor. Only low, medium, high
// and critical are valid floors.
func ParseSeverityFloor(value string) (Severity, bool) {
	severity, ok := ParseSeverity(value)
	if !ok || severity == SeverityUnknown {
		return SeverityUnknown, false
	}
	return severity, true
}

// Rank orders severities: unknown=0 < low=1 < medium=2 < high=3 < critical=4.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Values is a list of free-text values. Decoding tolerates loosely typed
// input: numbers and booleans are stringified, nulls are skipped and a bare
// scalar is treated as a one-element list.
type Values []string

// UnmarshalJSON implements json.Unmarshaler.
func (v *Values) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		var single any
		if scalarErr := json.Unmarshal(data, &single); scalarErr != nil {
			return err
		}
		raw = []any{single}
	}
	out := make(Values, 0, len(raw))
	for _, item := range raw {
		if item == nil {
			continue
		}
		out = append(out, stringify(item))
	}
	*v = out
	return nil
}

func stringify(item any) string {
	switch typed := item.(type) {
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(typed)
	default:
		data, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprint(typed)
		}
		return string(data)
	}
}

// EntityCategory names one of the five structured entity sets.
type EntityCategory string

const (
	CategorySystems     EntityCategory = "systems"
	CategoryVendors     EntityCategory = "vendors"
	CategoryProtocols   EntityCategory = "protocols"
	CategoryPorts       EntityCategory = "ports"
	CategoryObservables EntityCategory = "observables"
)

// Categories lists the entity categories in canonical order. Embeddings of
// canonical entity strings depend on this order never changing.
var Categories = []EntityCategory{
	CategorySystems,
	CategoryVendors,
	CategoryProtocols,
	CategoryPorts,
	CategoryObservables,
}

// Entities groups the structured facts of an incident.
type Entities struct {
	Systems     Values `json:"systems"`
	Vendors     Values `json:"vendors"`
	Protocols   Values `json:"protocols"`
	Ports       Values `json:"ports"`
	Observables Values `json:"observables"`
}

// Get returns the values recorded for category.
func (e Entities) Get(category EntityCategory) Values {
	switch category {
	case CategorySystems:
		return e.Systems
	case CategoryVendors:
		return e.Vendors
	case CategoryProtocols:
		return e.Protocols
	case CategoryPorts:
		return e.Ports
	case CategoryObservables:
		return e.Observables
	default:
		return nil
	}
}

// Merge returns the union of e and other, de-duplicated case-insensitively.
func (e Entities) Merge(other Entities) Entities {
	return Entities{
		Systems:     append(append(Values{}, e.Systems...), other.Systems...),
		Vendors:     append(append(Values{}, e.Vendors...), other.Vendors...),
		Protocols:   append(append(Values{}, e.Protocols...), other.Protocols...),
		Ports:       append(append(Values{}, e.Ports...), other.Ports...),
		Observables: append(append(Values{}, e.Observables...), other.Observables...),
	}.Normalize()
}

// Normalize trims every value, drops empties and collapses case-insensitive
// duplicates while keeping the first spelling seen.
func (e Entities) Normalize() Entities {
	return Entities{
		Systems:     dedupeFold(e.Systems),
		Vendors:     dedupeFold(e.Vendors),
		Protocols:   dedupeFold(e.Protocols),
		Ports:       dedupeFold(e.Ports),
		Observables: dedupeFold(e.Observables),
	}
}

// IncidentCard is the structured summary of one incident.
type IncidentCard struct {
	AssetType       AssetType `json:"asset_type"`
	Entities        Entities  `json:"entities"`
	Symptoms        Values    `json:"symptoms"`
	Hypotheses      Values    `json:"hypotheses"`
	SeverityGuess   Severity  `json:"severity_guess"`
	RecommendedLogs Values    `json:"recommended_logs"`
	Summary         string    `json:"summary"`
}

// Normalize returns a copy of the card where every list is non-nil, enum
// fields hold known values and empty summaries read "unknown".
func (c IncidentCard) Normalize() IncidentCard {
	severity, _ := ParseSeverity(string(c.SeverityGuess))
	summary := strings.TrimSpace(c.Summary)
	if summary == "" {
		summary = "unknown"
	}
	return IncidentCard{
		AssetType:       ParseAssetType(string(c.AssetType)),
		Entities:        c.Entities.Normalize(),
		Symptoms:        compact(c.Symptoms),
		Hypotheses:      compact(c.Hypotheses),
		SeverityGuess:   severity,
		RecommendedLogs: compact(c.RecommendedLogs),
		Summary:         summary,
	}
}

// UnmarshalJSON decodes a card and normalizes it, so cards read back from any
// index backend never carry absent lists.
func (c *IncidentCard) UnmarshalJSON(data []byte) error {
	type plain IncidentCard
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*c = IncidentCard(decoded).Normalize()
	return nil
}

func compact(values Values) Values {
	out := make(Values, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func dedupeFold(values Values) Values {
	seen := make(map[string]struct{}, len(values))
	out := make(Values, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
