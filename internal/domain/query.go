package domain

import (
	"strings"
	"time"
)

// RawQuery is the caller-supplied entity lookup.
type RawQuery struct {
	// Name is the entity name as provided by the caller.
	Name string `json:"name"`

	// JurisdictionHint is an optional jurisdiction code (e.g. "ky", "gb", "us_de").
	JurisdictionHint string `json:"jurisdictionHint,omitempty"`

	// EntityType is "company", "person", or empty when unknown.
	EntityType string `json:"entityType,omitempty"`
}

// NormalizedName is the canonical form of an entity name after
// normalization: lowercased, diacritics stripped, legal suffixes removed.
type NormalizedName struct {
	Full   string   `json:"full"`
	Tokens []string `json:"tokens"`
}

// IsEmpty reports whether normalization left nothing to match on.
func (n NormalizedName) IsEmpty() bool {
	return len(n.Tokens) == 0
}

// TokenSet returns the distinct tokens of the normalized name.
func (n NormalizedName) TokenSet() map[string]struct{} {
	set := make(map[string]struct{}, len(n.Tokens))
	for _, t := range n.Tokens {
		set[t] = struct{}{}
	}
	return set
}

// Officer is a company officer or director from a registry record.
type Officer struct {
	Name    string `json:"name"`
	Role    string `json:"role,omitempty"`
	Address string `json:"address,omitempty"`
}

// RegistryPayload is a corporate registry lookup result supplied by a
// registry provider or inline with the request.
type RegistryPayload struct {
	Found             bool      `json:"found"`
	Status            string    `json:"status,omitempty"` // "active", "dissolved", "suspended"
	Jurisdiction      string    `json:"jurisdiction,omitempty"`
	RegisteredAddress string    `json:"registeredAddress,omitempty"`
	IncorporationDate time.Time `json:"incorporationDate,omitzero"`
	LastFilingDate    time.Time `json:"lastFilingDate,omitzero"`
	Officers          []Officer `json:"officers,omitempty"`
	Confidence        float64   `json:"confidence,omitempty"`
}

// RecentFiling reports whether the last filing is within the past year of now.
func (p *RegistryPayload) RecentFiling(now time.Time) bool {
	if p.LastFilingDate.IsZero() {
		return false
	}
	return p.LastFilingDate.After(now.AddDate(-1, 0, 0))
}

// AddressMatch reports whether any officer shares the registered address.
func (p *RegistryPayload) AddressMatch() bool {
	if p.RegisteredAddress == "" {
		return false
	}
	want := strings.ToLower(strings.TrimSpace(p.RegisteredAddress))
	for _, o := range p.Officers {
		if strings.ToLower(strings.TrimSpace(o.Address)) == want {
			return true
		}
	}
	return false
}

// WebPresencePayload is an online footprint summary from a web search
// provider.
type WebPresencePayload struct {
	ResultCount        int      `json:"resultCount"`
	HasLinkedIn        bool     `json:"hasLinkedIn"`
	HasWikipedia       bool     `json:"hasWikipedia"`
	NewsMentions       int      `json:"newsMentions"`
	FraudKeywords      []string `json:"fraudKeywords,omitempty"`
	RegulatoryKeywords []string `json:"regulatoryKeywords,omitempty"`
	Confidence         float64  `json:"confidence,omitempty"`
}

// TradePayload carries trade-screening context beyond the reference
// datasets: observed trade activity, politically exposed person hits and
// known enforcement actions. VolumeAligned reports whether the recorded
// trade volume is consistent with the entity's claimed sector.
type TradePayload struct {
	HasTradeData       bool     `json:"hasTradeData"`
	VolumeAligned      bool     `json:"volumeAligned"`
	PEP                bool     `json:"pep"`
	EnforcementActions []string `json:"enforcementActions,omitempty"`
	Confidence         float64  `json:"confidence,omitempty"`
}

// SignalPayloads bundles the optional provider payloads for one query.
// A nil payload means the signal source was not consulted or did not
// respond; that is different from a payload reporting a clean result.
type SignalPayloads struct {
	Registry    *RegistryPayload    `json:"registry,omitempty"`
	WebPresence *WebPresencePayload `json:"webPresence,omitempty"`
	Trade       *TradePayload       `json:"trade,omitempty"`
}

// AssessmentRequest is the API request payload for a risk assessment.
type AssessmentRequest struct {
	TenantID string         `json:"tenantId"`
	TraceID  string         `json:"traceId,omitempty"`
	Query    RawQuery       `json:"query"`
	Signals  SignalPayloads `json:"signals,omitempty"`

	// Weights optionally overrides the configured category weights.
	Weights map[Category]float64 `json:"weights,omitempty"`
}

// BatchAssessmentRequest assesses several entities in one call.
type BatchAssessmentRequest struct {
	TenantID string              `json:"tenantId"`
	Items    []AssessmentRequest `json:"items"`
}
