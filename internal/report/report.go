// Package report assembles terminal risk assessments and their flat
// export form.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/scoring"
)

// EngineVersion is stamped on every assessment.
const EngineVersion = "1.2.0"

// Build assembles the immutable assessment from the pipeline outputs.
func Build(tenantID string, query domain.RawQuery, normalized domain.NormalizedName, result *scoring.Result, matches []domain.MatchResult, meta domain.AssessmentMetadata) *domain.RiskAssessment {
	meta.EngineVersion = EngineVersion
	return &domain.RiskAssessment{
		ID:             uuid.New().String(),
		TenantID:       tenantID,
		Query:          query,
		Normalized:     normalized.Full,
		CompositeScore: result.CompositeScore,
		RiskLevel:      result.RiskLevel,
		Confidence:     result.Confidence,
		Categories:     result.Categories,
		RedFlags:       result.Flags,
		Matches:        matches,
		CreatedAt:      time.Now().UTC(),
		Metadata:       meta,
	}
}

// Field is one key/value pair in the flat export form.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Flatten exports an assessment as an ordered key/value record. Numeric
// values use fixed-point notation so the export is byte-stable across
// runs for the same assessment.
func Flatten(a *domain.RiskAssessment) []Field {
	fields := []Field{
		{"assessment.id", a.ID},
		{"assessment.createdAt", a.CreatedAt.UTC().Format(time.RFC3339Nano)},
		{"assessment.engineVersion", a.Metadata.EngineVersion},
		{"query.name", a.Query.Name},
		{"query.jurisdictionHint", a.Query.JurisdictionHint},
		{"query.normalized", a.Normalized},
		{"score.composite", strconv.Itoa(a.CompositeScore)},
		{"score.legacy", strconv.Itoa(a.LegacyScale())},
		{"score.riskLevel", string(a.RiskLevel)},
		{"score.confidence", fixed(a.Confidence)},
	}

	for _, cs := range a.Categories {
		prefix := "category." + string(cs.Category)
		fields = append(fields,
			Field{prefix + ".raw", strconv.Itoa(cs.Raw)},
			Field{prefix + ".weight", fixed(cs.Weight)},
			Field{prefix + ".contribution", fixed(cs.Contribution)},
			Field{prefix + ".available", strconv.FormatBool(cs.Available)},
		)
	}

	for i, f := range a.RedFlags {
		prefix := fmt.Sprintf("flag.%d", i)
		fields = append(fields,
			Field{prefix + ".message", f.Message},
			Field{prefix + ".category", string(f.Category)},
			Field{prefix + ".critical", strconv.FormatBool(f.Critical)},
		)
	}

	return fields
}

// ParseFlat rebuilds an assessment from its flat form. Category scores,
// the composite and the flags round-trip exactly; weights and confidence
// round-trip at fixed-point precision.
func ParseFlat(fields []Field) (*domain.RiskAssessment, error) {
	byKey := make(map[string]string, len(fields))
	for _, f := range fields {
		byKey[f.Key] = f.Value
	}

	a := &domain.RiskAssessment{
		ID: byKey["assessment.id"],
		Query: domain.RawQuery{
			Name:             byKey["query.name"],
			JurisdictionHint: byKey["query.jurisdictionHint"],
		},
		Normalized: byKey["query.normalized"],
		RiskLevel:  domain.RiskLevel(byKey["score.riskLevel"]),
		Metadata:   domain.AssessmentMetadata{EngineVersion: byKey["assessment.engineVersion"]},
	}

	if raw, ok := byKey["assessment.createdAt"]; ok && raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: bad createdAt %q", domain.ErrInvalidInput, raw)
		}
		a.CreatedAt = ts
	}

	composite, err := strconv.Atoi(byKey["score.composite"])
	if err != nil {
		return nil, fmt.Errorf("%w: bad composite score %q", domain.ErrInvalidInput, byKey["score.composite"])
	}
	a.CompositeScore = composite

	if conf, ok := byKey["score.confidence"]; ok {
		v, err := strconv.ParseFloat(conf, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad confidence %q", domain.ErrInvalidInput, conf)
		}
		a.Confidence = v
	}

	for _, c := range domain.Categories() {
		prefix := "category." + string(c)
		rawStr, ok := byKey[prefix+".raw"]
		if !ok {
			continue
		}
		raw, err := strconv.Atoi(rawStr)
		if err != nil {
			return nil, fmt.Errorf("%w: bad raw score for %s", domain.ErrInvalidInput, c)
		}
		weight, err := strconv.ParseFloat(byKey[prefix+".weight"], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad weight for %s", domain.ErrInvalidInput, c)
		}
		cs := domain.CategoryScore{
			Category:  c,
			Raw:       raw,
			Weight:    weight,
			Available: byKey[prefix+".available"] == "true",
		}
		if contrib, ok := byKey[prefix+".contribution"]; ok {
			v, err := strconv.ParseFloat(contrib, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad contribution for %s", domain.ErrInvalidInput, c)
			}
			cs.Contribution = v
		} else {
			// Older exports predate the field; derive it.
			cs.Contribution = weight * float64(raw)
		}
		a.Categories = append(a.Categories, cs)
	}

	for i := 0; ; i++ {
		prefix := fmt.Sprintf("flag.%d", i)
		msg, ok := byKey[prefix+".message"]
		if !ok {
			break
		}
		a.RedFlags = append(a.RedFlags, domain.Flag{
			Message:  msg,
			Category: domain.Category(byKey[prefix+".category"]),
			Critical: byKey[prefix+".critical"] == "true",
		})
	}

	return a, nil
}

// fixed formats a float at 4 decimal places, trimming to a stable form.
func fixed(v float64) string {
	s := strconv.FormatFloat(v, 'f', 4, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
