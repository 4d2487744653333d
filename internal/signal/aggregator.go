// Package signal assembles provider payloads and match results into the
// per-category signal bundle consumed by the scoring engine.
package signal

import (
	"strings"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Source labels recorded on assembled signals.
const (
	SourceRegistry    = "registry"
	SourceWebPresence = "webPresence"
	SourceTrade       = "trade"
	SourceHint        = "queryHint"
	SourceDatasets    = "referenceDatasets"
)

// Assemble maps raw payloads and match results onto the five signal
// categories. Structural only: no I/O, no scoring. A nil payload leaves
// its category unavailable with zero confidence; it is never treated as
// a clean result.
func Assemble(query domain.RawQuery, normalized domain.NormalizedName, payloads domain.SignalPayloads, matches []domain.MatchResult, now time.Time) domain.SignalBundle {
	bundle := domain.SignalBundle{
		Query:      query,
		Normalized: normalized,
	}

	bundle.Registry = assembleRegistry(payloads.Registry, now)
	bundle.Online = assembleOnline(payloads.WebPresence)
	bundle.Officers = assembleOfficers(payloads.Registry)
	bundle.Jurisdiction = assembleJurisdiction(query, payloads.Registry)
	bundle.External = assembleExternal(payloads, matches)

	return bundle
}

func assembleRegistry(p *domain.RegistryPayload, now time.Time) domain.RegistrySignal {
	if p == nil {
		return domain.RegistrySignal{}
	}
	return domain.RegistrySignal{
		SignalMeta: domain.SignalMeta{
			Available:  true,
			Confidence: confidenceOr(p.Confidence, 0.9),
			Source:     SourceRegistry,
		},
		Found:        p.Found,
		Status:       strings.ToLower(strings.TrimSpace(p.Status)),
		Jurisdiction: strings.ToLower(strings.TrimSpace(p.Jurisdiction)),
		RecentFiling: p.RecentFiling(now),
		HasOfficers:  len(p.Officers) > 0,
	}
}

func assembleOnline(p *domain.WebPresencePayload) domain.OnlineSignal {
	if p == nil {
		return domain.OnlineSignal{}
	}
	return domain.OnlineSignal{
		SignalMeta: domain.SignalMeta{
			Available:  true,
			Confidence: confidenceOr(p.Confidence, resultCountConfidence(p.ResultCount)),
			Source:     SourceWebPresence,
		},
		ResultCount:   p.ResultCount,
		HasLinkedIn:   p.HasLinkedIn,
		HasWikipedia:  p.HasWikipedia,
		NewsMentions:  p.NewsMentions,
		FraudKeywords: p.FraudKeywords,
	}
}

// assembleOfficers derives structure signals from the registry record.
// When the registry never responded, or the entity was not found there,
// nothing is known about its officers.
func assembleOfficers(p *domain.RegistryPayload) domain.OfficersSignal {
	if p == nil || !p.Found {
		return domain.OfficersSignal{}
	}
	return domain.OfficersSignal{
		SignalMeta: domain.SignalMeta{
			Available:  true,
			Confidence: confidenceOr(p.Confidence, 0.9),
			Source:     SourceRegistry,
		},
		OfficerCount: len(p.Officers),
		AddressMatch: p.AddressMatch(),
	}
}

// assembleJurisdiction prefers the registry's jurisdiction over the
// caller's hint; the registry is authoritative, the hint is hearsay.
func assembleJurisdiction(query domain.RawQuery, registry *domain.RegistryPayload) domain.JurisdictionSignal {
	code := ""
	confidence := 0.0
	source := ""

	if registry != nil && registry.Found && registry.Jurisdiction != "" {
		code = strings.ToLower(strings.TrimSpace(registry.Jurisdiction))
		confidence = confidenceOr(registry.Confidence, 0.9)
		source = SourceRegistry
	} else if query.JurisdictionHint != "" {
		code = strings.ToLower(strings.TrimSpace(query.JurisdictionHint))
		confidence = 0.6
		source = SourceHint
	}

	if code == "" {
		return domain.JurisdictionSignal{Tier: domain.RiskTierUnknown, TierTable: tierTableVersion}
	}

	return domain.JurisdictionSignal{
		SignalMeta: domain.SignalMeta{
			Available:  true,
			Confidence: confidence,
			Source:     source,
		},
		Code:      code,
		Tier:      TierFor(code),
		TierTable: tierTableVersion,
	}
}

func assembleExternal(payloads domain.SignalPayloads, matches []domain.MatchResult) domain.ExternalSignal {
	sig := domain.ExternalSignal{Matches: matches}

	anyDataset := false
	for _, r := range matches {
		if r.Available {
			anyDataset = true
			break
		}
	}

	switch {
	case anyDataset:
		sig.Available = true
		sig.Confidence = 0.95
		sig.Source = SourceDatasets
	case payloads.Trade != nil:
		sig.Available = true
		sig.Confidence = confidenceOr(payloads.Trade.Confidence, 0.7)
		sig.Source = SourceTrade
	}

	if payloads.Trade != nil {
		sig.HasTradeData = payloads.Trade.HasTradeData
		sig.VolumeAligned = payloads.Trade.VolumeAligned
		sig.PEP = payloads.Trade.PEP
		sig.EnforcementActions = payloads.Trade.EnforcementActions
	}
	if payloads.WebPresence != nil {
		sig.RegulatoryKeywords = payloads.WebPresence.RegulatoryKeywords
	}
	return sig
}

// resultCountConfidence mirrors how much a web footprint can be trusted
// given how much of it there is.
func resultCountConfidence(count int) float64 {
	switch {
	case count >= 15:
		return 0.9
	case count >= 10:
		return 0.8
	case count >= 5:
		return 0.7
	case count >= 3:
		return 0.6
	default:
		return 0.4
	}
}

func confidenceOr(v, fallback float64) float64 {
	if v > 0 {
		return v
	}
	return fallback
}
