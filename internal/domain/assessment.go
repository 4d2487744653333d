package domain

import (
	"time"
)

// RiskLevel is the qualitative banding of the composite score.
// Higher composite scores mean lower risk.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"    // composite >= 70
	RiskMedium RiskLevel = "medium" // composite 40..69
	RiskHigh   RiskLevel = "high"   // composite < 40, or any critical flag
)

// Flag is a red flag attached to an assessment. Critical flags force the
// risk level to high regardless of the composite score.
type Flag struct {
	Message  string   `json:"message"`
	Category Category `json:"category"`
	Critical bool     `json:"critical"`
}

// CategoryScore is one category's contribution to the composite.
type CategoryScore struct {
	Category     Category `json:"category"`
	Raw          int      `json:"raw"`          // 0-100
	Weight       float64  `json:"weight"`       // normalized, sums to 1 across categories
	Contribution float64  `json:"contribution"` // weight * raw, this category's share of the composite
	Available    bool     `json:"available"`
}

// AssessmentMetadata contains processing information.
type AssessmentMetadata struct {
	TraceID          string `json:"traceId"`
	NormalizeMs      int64  `json:"normalizeMs"`
	CollectMs        int64  `json:"collectMs"`
	MatchMs          int64  `json:"matchMs"`
	ScoreMs          int64  `json:"scoreMs"`
	TotalMs          int64  `json:"totalMs"`
	ProvidersQueried int    `json:"providersQueried"`
	ProvidersFailed  int    `json:"providersFailed"`
	EngineVersion    string `json:"engineVersion"`
}

// RiskAssessment is the terminal, immutable result of assessing one entity.
type RiskAssessment struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	Query      RawQuery `json:"query"`
	Normalized string   `json:"normalized"`

	CompositeScore int       `json:"compositeScore"` // 0-100, higher is safer
	RiskLevel      RiskLevel `json:"riskLevel"`
	Confidence     float64   `json:"confidence"` // 0-1

	Categories []CategoryScore `json:"categories"`
	RedFlags   []Flag          `json:"redFlags,omitempty"`
	Matches    []MatchResult   `json:"matches,omitempty"`

	CreatedAt time.Time          `json:"createdAt"`
	Metadata  AssessmentMetadata `json:"metadata"`
}

// CriticalFlags returns the critical subset of RedFlags.
func (a *RiskAssessment) CriticalFlags() []Flag {
	var out []Flag
	for _, f := range a.RedFlags {
		if f.Critical {
			out = append(out, f)
		}
	}
	return out
}

// CategoryScore returns the score entry for a category, if present.
func (a *RiskAssessment) CategoryScore(c Category) (CategoryScore, bool) {
	for _, cs := range a.Categories {
		if cs.Category == c {
			return cs, true
		}
	}
	return CategoryScore{}, false
}

// LegacyScale converts the 0-100 composite to the legacy 0-4 risk scale
// (0 = lowest risk, 4 = highest). Presentation-only; nothing internal
// consumes this value.
func (a *RiskAssessment) LegacyScale() int {
	v := (100 - a.CompositeScore) / 25
	if v > 4 {
		v = 4
	}
	if v < 0 {
		v = 0
	}
	return v
}

// AssessmentResponse is the API response for an assessment.
type AssessmentResponse struct {
	AssessmentID   string             `json:"assessmentId"`
	TenantID       string             `json:"tenantId"`
	Query          RawQuery           `json:"query"`
	CompositeScore int                `json:"compositeScore"`
	LegacyScore    int                `json:"legacyScore"`
	RiskLevel      RiskLevel          `json:"riskLevel"`
	Confidence     float64            `json:"confidence"`
	Categories     []CategoryScore    `json:"categories"`
	RedFlags       []Flag             `json:"redFlags,omitempty"`
	Matches        []MatchResult      `json:"matches,omitempty"`
	Metadata       AssessmentMetadata `json:"metadata"`
}

// ToResponse converts an assessment to its API representation.
func (a *RiskAssessment) ToResponse() *AssessmentResponse {
	return &AssessmentResponse{
		AssessmentID:   a.ID,
		TenantID:       a.TenantID,
		Query:          a.Query,
		CompositeScore: a.CompositeScore,
		LegacyScore:    a.LegacyScale(),
		RiskLevel:      a.RiskLevel,
		Confidence:     a.Confidence,
		Categories:     a.Categories,
		RedFlags:       a.RedFlags,
		Matches:        a.Matches,
		Metadata:       a.Metadata,
	}
}
