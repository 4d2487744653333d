package scoring

import (
	"fmt"
	"strings"

	"github.com/opensource-finance/harrier/internal/domain"
)

// scoreCategory dispatches to the per-category scorer. Only called for
// available categories.
func scoreCategory(c domain.Category, bundle *domain.SignalBundle) (int, []domain.Flag) {
	switch c {
	case domain.CategoryRegistry:
		return scoreRegistry(bundle.Registry)
	case domain.CategoryOnline:
		return scoreOnline(bundle.Online)
	case domain.CategoryOfficers:
		return scoreOfficers(bundle.Officers)
	case domain.CategoryJurisdiction:
		return scoreJurisdiction(bundle.Jurisdiction)
	case domain.CategoryExternal:
		return scoreExternal(bundle.External)
	}
	return neutralScore, nil
}

func scoreRegistry(sig domain.RegistrySignal) (int, []domain.Flag) {
	if !sig.Found {
		return 10, []domain.Flag{{
			Message:  "entity not found in corporate registry",
			Category: domain.CategoryRegistry,
		}}
	}

	switch sig.Status {
	case "dissolved":
		return 20, []domain.Flag{{
			Message:  "entity is dissolved",
			Category: domain.CategoryRegistry,
		}}
	case "suspended":
		return 40, []domain.Flag{{
			Message:  "entity registration is suspended",
			Category: domain.CategoryRegistry,
		}}
	}

	// Active registration, or found with an unrecognized status.
	score := 60
	if sig.Status == "active" {
		score = 70
	}
	if sig.RecentFiling {
		score += 10
	}
	if sig.HasOfficers {
		score += 10
	}
	return min(score, 100), nil
}

func scoreOnline(sig domain.OnlineSignal) (int, []domain.Flag) {
	score := 40
	if sig.HasLinkedIn {
		score += 15
	}
	if sig.HasWikipedia {
		score += 20
	}
	if sig.NewsMentions > 0 {
		score += 15
	}
	if sig.ResultCount >= 10 {
		score += 10
	}
	score = min(score, 100)

	var flags []domain.Flag
	if len(sig.FraudKeywords) > 0 {
		score = max(score-40, 0)
		flags = append(flags, domain.Flag{
			Message:  "fraud-related coverage: " + strings.Join(sig.FraudKeywords, ", "),
			Category: domain.CategoryOnline,
		})
	}
	return score, flags
}

func scoreOfficers(sig domain.OfficersSignal) (int, []domain.Flag) {
	var score int
	var flags []domain.Flag

	switch {
	case sig.OfficerCount == 0:
		return 20, []domain.Flag{{
			Message:  "no officers listed",
			Category: domain.CategoryOfficers,
		}}
	case sig.OfficerCount == 1:
		score = 45
		flags = append(flags, domain.Flag{
			Message:  "single officer controls the entity",
			Category: domain.CategoryOfficers,
		})
	case sig.OfficerCount <= 3:
		score = 70
	default:
		score = 85
	}

	if sig.AddressMatch {
		score += 15
	}
	return min(score, 100), flags
}

func scoreJurisdiction(sig domain.JurisdictionSignal) (int, []domain.Flag) {
	switch sig.Tier {
	case domain.RiskTierHigh:
		return 15, []domain.Flag{{
			Message:  "high-risk jurisdiction: " + sig.Code,
			Category: domain.CategoryJurisdiction,
		}}
	case domain.RiskTierMedium:
		return 55, nil
	case domain.RiskTierLow:
		return 85, nil
	default:
		return neutralScore, nil
	}
}

func scoreExternal(sig domain.ExternalSignal) (int, []domain.Flag) {
	score := 80
	var flags []domain.Flag

	for _, result := range sig.Matches {
		if !result.Available {
			continue
		}
		best, ok := result.Best()
		if !ok {
			continue
		}
		switch best.Class {
		case domain.MatchExact, domain.MatchStrong:
			score = 0
			flags = append(flags, domain.Flag{
				Message: fmt.Sprintf("%s list match: %s (%s, score %.2f)",
					result.Dataset, best.Entity.Name, best.Class, best.Score),
				Category: domain.CategoryExternal,
				Critical: true,
			})
		case domain.MatchWeak:
			score = min(score, 30)
			flags = append(flags, domain.Flag{
				Message: fmt.Sprintf("possible %s list match: %s, verify manually",
					result.Dataset, best.Entity.Name),
				Category: domain.CategoryExternal,
			})
		}
	}

	// Trade evidence: activity consistent with the claimed sector is a
	// mild positive; absence of sector trade despite trade data is a
	// mild negative.
	if sig.HasTradeData {
		if sig.VolumeAligned {
			score = min(score+10, 100)
		} else {
			score = max(score-10, 0)
			flags = append(flags, domain.Flag{
				Message:  "no trade activity detected in claimed sector",
				Category: domain.CategoryExternal,
			})
		}
	}

	if sig.PEP {
		score = max(score-20, 0)
		flags = append(flags, domain.Flag{
			Message:  "politically exposed person association",
			Category: domain.CategoryExternal,
		})
	}
	if len(sig.EnforcementActions) > 0 {
		score = max(score-20, 0)
		flags = append(flags, domain.Flag{
			Message:  "enforcement history: " + strings.Join(sig.EnforcementActions, "; "),
			Category: domain.CategoryExternal,
		})
	}
	if len(sig.RegulatoryKeywords) > 0 {
		score = max(score-20, 0)
		flags = append(flags, domain.Flag{
			Message:  "regulatory coverage: " + strings.Join(sig.RegulatoryKeywords, ", "),
			Category: domain.CategoryExternal,
		})
	}
	return score, flags
}
