package domain

// Category identifies one of the five risk signal categories.
type Category string

const (
	CategoryRegistry     Category = "registry"
	CategoryOnline       Category = "onlineActivity"
	CategoryOfficers     Category = "officersStructure"
	CategoryJurisdiction Category = "jurisdictionRisk"
	CategoryExternal     Category = "externalFactors"
)

// Categories returns all categories in canonical order. The order is
// stable so that exports and reports are deterministic.
func Categories() []Category {
	return []Category{
		CategoryRegistry,
		CategoryOnline,
		CategoryOfficers,
		CategoryJurisdiction,
		CategoryExternal,
	}
}

// RiskTier classifies a jurisdiction's secrecy/regulation profile.
type RiskTier string

const (
	RiskTierHigh    RiskTier = "high"
	RiskTierMedium  RiskTier = "medium"
	RiskTierLow     RiskTier = "low"
	RiskTierUnknown RiskTier = "unknown"
)

// SignalMeta is embedded in every category signal. Available=false means
// the underlying source did not respond or was never consulted; it must
// never be conflated with a source reporting a clean result.
type SignalMeta struct {
	Available  bool    `json:"available"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source,omitempty"`
}

// RegistrySignal summarizes the corporate registry lookup.
type RegistrySignal struct {
	SignalMeta
	Found        bool   `json:"found"`
	Status       string `json:"status,omitempty"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
	RecentFiling bool   `json:"recentFiling"`
	HasOfficers  bool   `json:"hasOfficers"`
}

// OnlineSignal summarizes the entity's web footprint. Regulatory keyword
// hits are carried on the external signal, not here, so the two
// categories never double-count the same finding.
type OnlineSignal struct {
	SignalMeta
	ResultCount   int      `json:"resultCount"`
	HasLinkedIn   bool     `json:"hasLinkedIn"`
	HasWikipedia  bool     `json:"hasWikipedia"`
	NewsMentions  int      `json:"newsMentions"`
	FraudKeywords []string `json:"fraudKeywords,omitempty"`
}

// OfficersSignal summarizes ownership/management structure.
type OfficersSignal struct {
	SignalMeta
	OfficerCount int  `json:"officerCount"`
	AddressMatch bool `json:"addressMatch"`
}

// JurisdictionSignal carries the resolved jurisdiction and its risk tier.
type JurisdictionSignal struct {
	SignalMeta
	Code      string   `json:"code,omitempty"`
	Tier      RiskTier `json:"tier"`
	TierTable int      `json:"tierTable"` // version of the tier table applied
}

// ExternalSignal carries reference-dataset screening results plus trade
// context (trade volume alignment, PEP status, enforcement history).
type ExternalSignal struct {
	SignalMeta
	Matches            []MatchResult `json:"matches,omitempty"`
	HasTradeData       bool          `json:"hasTradeData"`
	VolumeAligned      bool          `json:"volumeAligned"`
	PEP                bool          `json:"pep"`
	EnforcementActions []string      `json:"enforcementActions,omitempty"`
	RegulatoryKeywords []string      `json:"regulatoryKeywords,omitempty"`
}

// BestMatch returns the strongest candidate across all datasets.
func (s ExternalSignal) BestMatch() (MatchCandidate, bool) {
	var best MatchCandidate
	found := false
	for _, r := range s.Matches {
		if c, ok := r.Best(); ok && (!found || c.Score > best.Score) {
			best = c
			found = true
		}
	}
	return best, found
}

// SignalBundle is the aggregator's output: everything the scoring engine
// needs, grouped by category, with per-category availability.
type SignalBundle struct {
	Query      RawQuery       `json:"query"`
	Normalized NormalizedName `json:"normalized"`

	Registry     RegistrySignal     `json:"registry"`
	Online       OnlineSignal       `json:"onlineActivity"`
	Officers     OfficersSignal     `json:"officersStructure"`
	Jurisdiction JurisdictionSignal `json:"jurisdictionRisk"`
	External     ExternalSignal     `json:"externalFactors"`
}

// Available reports whether the named category has usable data.
func (b *SignalBundle) Available(c Category) bool {
	switch c {
	case CategoryRegistry:
		return b.Registry.Available
	case CategoryOnline:
		return b.Online.Available
	case CategoryOfficers:
		return b.Officers.Available
	case CategoryJurisdiction:
		return b.Jurisdiction.Available
	case CategoryExternal:
		return b.External.Available
	}
	return false
}
