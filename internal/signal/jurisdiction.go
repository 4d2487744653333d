package signal

import (
	"strings"

	"github.com/opensource-finance/harrier/internal/domain"
)

// tierTableVersion identifies the jurisdiction tier table below. Bump it
// whenever the lists change so stored assessments record which table
// produced them.
const tierTableVersion = 3

// Jurisdiction risk tiers. High-risk codes are secrecy jurisdictions with
// weak beneficial-ownership disclosure; medium covers jurisdictions with
// easy incorporation but real oversight.
var (
	highRiskJurisdictions = map[string]struct{}{
		"ky": {}, // Cayman Islands
		"vg": {}, // British Virgin Islands
		"pa": {}, // Panama
		"bz": {}, // Belize
		"sc": {}, // Seychelles
		"ae": {}, // United Arab Emirates
		"hk": {}, // Hong Kong
	}

	mediumRiskJurisdictions = map[string]struct{}{
		"us_de": {}, // Delaware
		"gb":    {},
		"sg":    {},
	}

	lowRiskJurisdictions = map[string]struct{}{
		"us": {}, "ca": {}, "de": {}, "fr": {}, "jp": {},
		"au": {}, "nl": {}, "se": {}, "ch": {}, "nz": {},
	}
)

// TierFor classifies a jurisdiction code. Codes outside all three lists
// are unknown, not low: absence from the high-risk list is no evidence
// of safety.
func TierFor(code string) domain.RiskTier {
	c := strings.ToLower(strings.TrimSpace(code))
	if c == "" {
		return domain.RiskTierUnknown
	}
	if _, ok := highRiskJurisdictions[c]; ok {
		return domain.RiskTierHigh
	}
	if _, ok := mediumRiskJurisdictions[c]; ok {
		return domain.RiskTierMedium
	}
	if _, ok := lowRiskJurisdictions[c]; ok {
		return domain.RiskTierLow
	}
	return domain.RiskTierUnknown
}

// TierTableVersion returns the version of the active tier table.
func TierTableVersion() int {
	return tierTableVersion
}
