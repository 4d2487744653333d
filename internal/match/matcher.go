// Package match implements fuzzy entity matching against reference
// datasets (sanctions lists, offshore-leaks registries).
package match

import (
	"fmt"
	"sort"
	"sync"

	"github.com/agnivade/levenshtein"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Matcher screens normalized entity names against in-memory dataset
// indexes. Lookups take the read lock; ReloadDataset builds a fresh index
// off-lock and swaps it in whole, so concurrent Match calls always see a
// consistent dataset version.
type Matcher struct {
	mu       sync.RWMutex
	cfg      domain.MatcherConfig
	datasets map[string]*index
}

// New creates a matcher. Thresholds must satisfy
// exact >= strong >= weak > 0.
func New(cfg domain.MatcherConfig) (*Matcher, error) {
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	if cfg.WeakThreshold <= 0 || cfg.StrongThreshold < cfg.WeakThreshold || cfg.ExactThreshold < cfg.StrongThreshold {
		return nil, fmt.Errorf("%w: match thresholds must satisfy exact >= strong >= weak > 0", domain.ErrConfiguration)
	}
	if cfg.TokenBlend < 0 || cfg.TokenBlend > 1 {
		return nil, fmt.Errorf("%w: token blend must be in [0,1]", domain.ErrConfiguration)
	}
	if cfg.JurisdictionPenalty <= 0 || cfg.JurisdictionPenalty > 1 {
		return nil, fmt.Errorf("%w: jurisdiction penalty must be in (0,1]", domain.ErrConfiguration)
	}
	return &Matcher{
		cfg:      cfg,
		datasets: make(map[string]*index),
	}, nil
}

// ReloadDataset replaces the named dataset atomically.
func (m *Matcher) ReloadDataset(dataset string, version int64, entities []*domain.ReferenceEntity) error {
	if dataset == "" {
		return fmt.Errorf("%w: dataset name is required", domain.ErrInvalidInput)
	}

	idx := buildIndex(dataset, version, entities)

	m.mu.Lock()
	m.datasets[dataset] = idx
	m.mu.Unlock()
	return nil
}

// DropDataset removes a dataset from the matcher.
func (m *Matcher) DropDataset(dataset string) {
	m.mu.Lock()
	delete(m.datasets, dataset)
	m.mu.Unlock()
}

// Datasets lists the loaded datasets with their versions and sizes.
func (m *Matcher) Datasets() []domain.DatasetInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.DatasetInfo, 0, len(m.datasets))
	for _, idx := range m.datasets {
		out = append(out, domain.DatasetInfo{
			Dataset:     idx.dataset,
			Version:     idx.version,
			EntityCount: len(idx.entries),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dataset < out[j].Dataset })
	return out
}

// Match screens a normalized query against one dataset. Returns the
// top-K candidates at or above the weak threshold, ordered by score
// descending with deterministic tie-breaking. A loaded dataset with no
// candidates yields an available result with an empty candidate list;
// an unloaded dataset yields ErrReferenceDataUnavailable.
func (m *Matcher) Match(query domain.NormalizedName, jurisdictionHint string, dataset string) (domain.MatchResult, error) {
	if query.IsEmpty() {
		return domain.MatchResult{Dataset: dataset}, domain.ErrEmptyQuery
	}

	m.mu.RLock()
	idx, ok := m.datasets[dataset]
	m.mu.RUnlock()

	if !ok {
		return domain.MatchResult{Dataset: dataset}, fmt.Errorf("%w: dataset %q not loaded", domain.ErrReferenceDataUnavailable, dataset)
	}

	queryTokens := query.TokenSet()
	result := domain.MatchResult{
		Dataset:    dataset,
		Version:    idx.version,
		Available:  true,
		Candidates: []domain.MatchCandidate{},
	}

	for _, pos := range idx.candidates(query.Tokens) {
		entry := idx.entries[pos]

		best := 0.0
		for _, n := range entry.names {
			s := m.similarity(query.Full, queryTokens, n)
			if s > best {
				best = s
			}
		}

		jMatch := jurisdictionHint != "" && entry.entity.Jurisdiction != "" &&
			entry.entity.Jurisdiction == jurisdictionHint
		if jurisdictionHint != "" && entry.entity.Jurisdiction != "" && !jMatch {
			best *= m.cfg.JurisdictionPenalty
		}

		class, ok := m.classify(best)
		if !ok {
			continue
		}

		result.Candidates = append(result.Candidates, domain.MatchCandidate{
			Entity:            entry.entity,
			Score:             best,
			Class:             class,
			JurisdictionMatch: jMatch,
		})
	}

	sortCandidates(result.Candidates)
	if len(result.Candidates) > m.cfg.TopK {
		result.Candidates = result.Candidates[:m.cfg.TopK]
	}
	return result, nil
}

// similarity blends token-set overlap with normalized edit distance.
func (m *Matcher) similarity(queryFull string, queryTokens map[string]struct{}, name normName) float64 {
	tokenSim := jaccard(queryTokens, name.tokens)
	levSim := levenshteinSimilarity(queryFull, name.full)
	return m.cfg.TokenBlend*tokenSim + (1-m.cfg.TokenBlend)*levSim
}

func (m *Matcher) classify(score float64) (domain.MatchClass, bool) {
	switch {
	case score >= m.cfg.ExactThreshold:
		return domain.MatchExact, true
	case score >= m.cfg.StrongThreshold:
		return domain.MatchStrong, true
	case score >= m.cfg.WeakThreshold:
		return domain.MatchWeak, true
	}
	return "", false
}

// sortCandidates orders by score descending, then jurisdiction matches
// first, then newest entity, then entity ID. Fully deterministic.
func sortCandidates(cands []domain.MatchCandidate) {
	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.JurisdictionMatch != b.JurisdictionMatch {
			return a.JurisdictionMatch
		}
		if !a.Entity.UpdatedAt.Equal(b.Entity.UpdatedAt) {
			return a.Entity.UpdatedAt.After(b.Entity.UpdatedAt)
		}
		return a.Entity.ID < b.Entity.ID
	})
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func levenshteinSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(maxLen)
}
