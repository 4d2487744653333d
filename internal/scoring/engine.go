// Package scoring turns a signal bundle into a composite risk score.
package scoring

import (
	"fmt"
	"math"

	"github.com/opensource-finance/harrier/internal/domain"
)

// neutralScore is used for any category without usable data. Missing
// data neither clears nor condemns an entity.
const neutralScore = 50

// weakMatchCertainty discounts confidence when the only dataset matches
// contributing to the result are weak ones.
const weakMatchCertainty = 0.8

// Risk level boundaries on the composite score.
const (
	lowRiskThreshold    = 70
	mediumRiskThreshold = 40
)

// Result is the scoring engine's output for one signal bundle.
type Result struct {
	CompositeScore int
	RiskLevel      domain.RiskLevel
	Confidence     float64
	Categories     []domain.CategoryScore
	Flags          []domain.Flag
}

// Engine computes composite scores from signal bundles. Pure and
// deterministic: same bundle and weights, same result.
type Engine struct {
	weights map[domain.Category]float64
}

// New creates a scoring engine from configuration. Weights are
// normalized to sum to 1; negative or all-zero weights are rejected.
func New(cfg domain.ScoringConfig) (*Engine, error) {
	weights := cfg.Weights
	if len(weights) == 0 {
		weights = domain.DefaultWeights()
	}
	normalized, err := NormalizeWeights(weights)
	if err != nil {
		return nil, err
	}
	return &Engine{weights: normalized}, nil
}

// NormalizeWeights validates and scales weights to sum to 1. Categories
// absent from the map get weight 0.
func NormalizeWeights(weights map[domain.Category]float64) (map[domain.Category]float64, error) {
	sum := 0.0
	for _, c := range domain.Categories() {
		w := weights[c]
		if w < 0 {
			return nil, fmt.Errorf("%w: negative weight for %s", domain.ErrConfiguration, c)
		}
		sum += w
	}
	if sum == 0 {
		return nil, fmt.Errorf("%w: category weights sum to zero", domain.ErrConfiguration)
	}

	normalized := make(map[domain.Category]float64, len(weights))
	for _, c := range domain.Categories() {
		normalized[c] = weights[c] / sum
	}
	return normalized, nil
}

// Score computes the composite result with the engine's weights.
func (e *Engine) Score(bundle *domain.SignalBundle) *Result {
	return e.score(bundle, e.weights)
}

// ScoreWithWeights computes the result with per-request weights.
func (e *Engine) ScoreWithWeights(bundle *domain.SignalBundle, weights map[domain.Category]float64) (*Result, error) {
	normalized, err := NormalizeWeights(weights)
	if err != nil {
		return nil, err
	}
	return e.score(bundle, normalized), nil
}

func (e *Engine) score(bundle *domain.SignalBundle, weights map[domain.Category]float64) *Result {
	result := &Result{}

	weighted := 0.0
	availableWeight := 0.0

	for _, c := range domain.Categories() {
		available := bundle.Available(c)

		raw := neutralScore
		var flags []domain.Flag
		if available {
			raw, flags = scoreCategory(c, bundle)
			availableWeight += weights[c]
		}

		contribution := weights[c] * float64(raw)
		weighted += contribution
		result.Categories = append(result.Categories, domain.CategoryScore{
			Category:     c,
			Raw:          raw,
			Weight:       weights[c],
			Contribution: contribution,
			Available:    available,
		})
		result.Flags = append(result.Flags, flags...)
	}

	result.Flags = dedupeFlags(result.Flags)
	result.CompositeScore = clamp(int(math.Round(weighted)), 0, 100)
	result.Confidence = availableWeight * matchCertainty(bundle)
	result.RiskLevel = riskLevel(result.CompositeScore, result.Flags)
	return result
}

// riskLevel bands the composite score; any critical flag forces high
// risk regardless of the score.
func riskLevel(composite int, flags []domain.Flag) domain.RiskLevel {
	for _, f := range flags {
		if f.Critical {
			return domain.RiskHigh
		}
	}
	switch {
	case composite >= lowRiskThreshold:
		return domain.RiskLow
	case composite >= mediumRiskThreshold:
		return domain.RiskMedium
	default:
		return domain.RiskHigh
	}
}

// matchCertainty is 1.0 unless the strongest contributing dataset match
// is weak, in which case the whole result is less certain.
func matchCertainty(bundle *domain.SignalBundle) float64 {
	best, ok := bundle.External.BestMatch()
	if !ok {
		return 1.0
	}
	if best.Class == domain.MatchWeak {
		return weakMatchCertainty
	}
	return 1.0
}

func dedupeFlags(flags []domain.Flag) []domain.Flag {
	seen := make(map[string]struct{}, len(flags))
	var out []domain.Flag
	for _, f := range flags {
		key := string(f.Category) + "|" + f.Message
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, f)
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
