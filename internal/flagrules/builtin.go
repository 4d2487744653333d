package flagrules

import "github.com/opensource-finance/harrier/internal/domain"

// BuiltinRules returns the default flag rules loaded when a tenant has
// none configured. Tenants override them via the rules API.
func BuiltinRules() []*domain.FlagRule {
	return []*domain.FlagRule{
		{
			ID:          "builtin-shell-pattern",
			Name:        "Shell company pattern",
			Description: "Thin structure registered in a secrecy jurisdiction",
			Expression:  `officers_available && officer_count <= 1 && jurisdiction_tier == "high"`,
			Message:     "shell company pattern: minimal structure in a secrecy jurisdiction",
			Category:    domain.CategoryOfficers,
			Enabled:     true,
		},
		{
			ID:          "builtin-no-footprint",
			Name:        "No web footprint",
			Description: "Searched the web and found nothing at all",
			Expression:  `online_available && result_count == 0`,
			Message:     "no web footprint found",
			Category:    domain.CategoryOnline,
			Enabled:     true,
		},
		{
			ID:          "builtin-pep-high-risk",
			Name:        "PEP in high-risk jurisdiction",
			Description: "Politically exposed person operating from a secrecy jurisdiction",
			Expression:  `pep && jurisdiction_tier == "high"`,
			Message:     "politically exposed person in high-risk jurisdiction",
			Category:    domain.CategoryExternal,
			Critical:    true,
			Enabled:     true,
		},
	}
}
