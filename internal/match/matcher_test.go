package match

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/normalize"
)

func newTestMatcher(t *testing.T) *Matcher {
	t.Helper()
	m, err := New(domain.DefaultMatcherConfig())
	if err != nil {
		t.Fatalf("failed to create matcher: %v", err)
	}
	return m
}

func mustNormalize(t *testing.T, name string) domain.NormalizedName {
	t.Helper()
	n, err := normalize.Normalize(name)
	if err != nil {
		t.Fatalf("normalize %q failed: %v", name, err)
	}
	return n
}

func loadSanctions(t *testing.T, m *Matcher, entities ...*domain.ReferenceEntity) {
	t.Helper()
	if err := m.ReloadDataset(domain.DatasetSanctions, 1, entities); err != nil {
		t.Fatalf("ReloadDataset failed: %v", err)
	}
}

func TestMatcherExact(t *testing.T) {
	m := newTestMatcher(t)
	loadSanctions(t, m, &domain.ReferenceEntity{
		ID:      "sdn-001",
		Dataset: domain.DatasetSanctions,
		Name:    "Grand Pacific Trading House Ltd",
	})

	result, err := m.Match(mustNormalize(t, "Grand Pacific Trading House"), "", domain.DatasetSanctions)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if !result.Available {
		t.Error("expected available result")
	}
	if len(result.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(result.Candidates))
	}
	c := result.Candidates[0]
	if c.Class != domain.MatchExact {
		t.Errorf("expected exact match, got %s (score %.3f)", c.Class, c.Score)
	}
	if c.Entity.ID != "sdn-001" {
		t.Errorf("expected sdn-001, got %s", c.Entity.ID)
	}
}

func TestMatcherStrongOnTypo(t *testing.T) {
	m := newTestMatcher(t)
	loadSanctions(t, m, &domain.ReferenceEntity{
		ID:   "sdn-002",
		Name: "The Grand Pacific Trading House",
	})

	// One misspelled token: high edit similarity, reduced token overlap.
	result, err := m.Match(mustNormalize(t, "The Grand Pacific Trading Hause"), "", domain.DatasetSanctions)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if len(result.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(result.Candidates))
	}
	if result.Candidates[0].Class != domain.MatchStrong {
		t.Errorf("expected strong match, got %s (score %.3f)",
			result.Candidates[0].Class, result.Candidates[0].Score)
	}
}

func TestMatcherAlias(t *testing.T) {
	m := newTestMatcher(t)
	loadSanctions(t, m, &domain.ReferenceEntity{
		ID:      "sdn-003",
		Name:    "Northern Lights Shipping Corp",
		Aliases: []string{"NLS Maritime"},
	})

	result, err := m.Match(mustNormalize(t, "NLS Maritime"), "", domain.DatasetSanctions)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if len(result.Candidates) != 1 {
		t.Fatalf("expected alias hit, got %d candidates", len(result.Candidates))
	}
	if result.Candidates[0].Class != domain.MatchExact {
		t.Errorf("expected exact alias match, got %s", result.Candidates[0].Class)
	}
}

func TestMatcherJurisdictionPenalty(t *testing.T) {
	m := newTestMatcher(t)
	loadSanctions(t, m, &domain.ReferenceEntity{
		ID:           "sdn-004",
		Name:         "Meridian Capital",
		Jurisdiction: "ky",
	})

	query := mustNormalize(t, "Meridian Capital")

	t.Run("MismatchSoftens", func(t *testing.T) {
		result, err := m.Match(query, "gb", domain.DatasetSanctions)
		if err != nil {
			t.Fatalf("Match failed: %v", err)
		}
		if len(result.Candidates) != 1 {
			t.Fatalf("mismatch must not exclude, got %d candidates", len(result.Candidates))
		}
		c := result.Candidates[0]
		if c.JurisdictionMatch {
			t.Error("expected jurisdiction mismatch")
		}
		// Exact name knocked down by the 0.85 penalty lands in strong.
		if c.Class != domain.MatchStrong {
			t.Errorf("expected strong after penalty, got %s (score %.3f)", c.Class, c.Score)
		}
	})

	t.Run("MatchKeepsExact", func(t *testing.T) {
		result, err := m.Match(query, "ky", domain.DatasetSanctions)
		if err != nil {
			t.Fatalf("Match failed: %v", err)
		}
		c := result.Candidates[0]
		if !c.JurisdictionMatch || c.Class != domain.MatchExact {
			t.Errorf("expected exact jurisdiction match, got %s match=%v", c.Class, c.JurisdictionMatch)
		}
	})

	t.Run("NoHintNoPenalty", func(t *testing.T) {
		result, err := m.Match(query, "", domain.DatasetSanctions)
		if err != nil {
			t.Fatalf("Match failed: %v", err)
		}
		if result.Candidates[0].Class != domain.MatchExact {
			t.Errorf("expected exact with no hint, got %s", result.Candidates[0].Class)
		}
	})
}

func TestMatcherCleanScreen(t *testing.T) {
	m := newTestMatcher(t)
	loadSanctions(t, m, &domain.ReferenceEntity{ID: "sdn-005", Name: "Meridian Capital"})

	result, err := m.Match(mustNormalize(t, "Wholesome Bakery"), "", domain.DatasetSanctions)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if !result.Available {
		t.Error("clean screen must still be available")
	}
	if len(result.Candidates) != 0 {
		t.Errorf("expected no candidates, got %d", len(result.Candidates))
	}
}

func TestMatcherDatasetNotLoaded(t *testing.T) {
	m := newTestMatcher(t)

	result, err := m.Match(mustNormalize(t, "Anything"), "", domain.DatasetOffshore)
	if !errors.Is(err, domain.ErrReferenceDataUnavailable) {
		t.Errorf("expected ErrReferenceDataUnavailable, got %v", err)
	}
	if result.Available {
		t.Error("unloaded dataset must not be available")
	}
}

func TestMatcherEmptyQuery(t *testing.T) {
	m := newTestMatcher(t)
	loadSanctions(t, m, &domain.ReferenceEntity{ID: "sdn-006", Name: "Meridian Capital"})

	_, err := m.Match(domain.NormalizedName{}, "", domain.DatasetSanctions)
	if !errors.Is(err, domain.ErrEmptyQuery) {
		t.Errorf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestMatcherTopKAndOrdering(t *testing.T) {
	m := newTestMatcher(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var entities []*domain.ReferenceEntity
	for i := 0; i < 25; i++ {
		entities = append(entities, &domain.ReferenceEntity{
			ID:        fmt.Sprintf("sdn-%03d", i),
			Name:      "Meridian Capital",
			UpdatedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}
	loadSanctions(t, m, entities...)

	result, err := m.Match(mustNormalize(t, "Meridian Capital"), "", domain.DatasetSanctions)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if len(result.Candidates) != 10 {
		t.Fatalf("expected top-10 cap, got %d", len(result.Candidates))
	}
	// Equal scores break ties on newest UpdatedAt.
	if result.Candidates[0].Entity.ID != "sdn-024" {
		t.Errorf("expected newest entity first, got %s", result.Candidates[0].Entity.ID)
	}
	for i := 1; i < len(result.Candidates); i++ {
		if result.Candidates[i].Score > result.Candidates[i-1].Score {
			t.Fatalf("candidates not sorted by score at %d", i)
		}
	}
}

func TestMatcherReloadSwapsVersion(t *testing.T) {
	m := newTestMatcher(t)
	loadSanctions(t, m, &domain.ReferenceEntity{ID: "sdn-007", Name: "Meridian Capital"})

	if err := m.ReloadDataset(domain.DatasetSanctions, 2, []*domain.ReferenceEntity{
		{ID: "sdn-008", Name: "Atlas Ventures"},
	}); err != nil {
		t.Fatalf("ReloadDataset failed: %v", err)
	}

	result, err := m.Match(mustNormalize(t, "Meridian Capital"), "", domain.DatasetSanctions)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if result.Version != 2 {
		t.Errorf("expected version 2, got %d", result.Version)
	}
	if len(result.Candidates) != 0 {
		t.Error("old entities must be gone after reload")
	}

	result, err = m.Match(mustNormalize(t, "Atlas Ventures"), "", domain.DatasetSanctions)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if len(result.Candidates) != 1 {
		t.Errorf("expected new entity after reload, got %d candidates", len(result.Candidates))
	}
}

func TestMatcherConfigValidation(t *testing.T) {
	bad := []domain.MatcherConfig{
		{ExactThreshold: 0.5, StrongThreshold: 0.8, WeakThreshold: 0.55, TokenBlend: 0.5, JurisdictionPenalty: 0.85},
		{ExactThreshold: 0.97, StrongThreshold: 0.8, WeakThreshold: 0, TokenBlend: 0.5, JurisdictionPenalty: 0.85},
		{ExactThreshold: 0.97, StrongThreshold: 0.8, WeakThreshold: 0.55, TokenBlend: 1.5, JurisdictionPenalty: 0.85},
		{ExactThreshold: 0.97, StrongThreshold: 0.8, WeakThreshold: 0.55, TokenBlend: 0.5, JurisdictionPenalty: 0},
	}
	for i, cfg := range bad {
		if _, err := New(cfg); !errors.Is(err, domain.ErrConfiguration) {
			t.Errorf("config %d: expected ErrConfiguration, got %v", i, err)
		}
	}
}

// syntheticDataset builds n reference entities with plausible multi-token
// names so posting lists have realistic overlap.
func syntheticDataset(n int) []*domain.ReferenceEntity {
	adjectives := []string{"global", "eastern", "pacific", "northern", "united", "royal", "golden", "silver", "atlas", "meridian"}
	nouns := []string{"trade", "shipping", "capital", "holdings", "energy", "metals", "logistics", "finance", "commodities", "ventures"}
	suffixes := []string{"group", "partners", "international", "services", "corporation", "enterprises", "industries", "solutions", "systems", "consortium"}

	entities := make([]*domain.ReferenceEntity, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("%s %s %s %d",
			adjectives[i%len(adjectives)],
			nouns[(i/10)%len(nouns)],
			suffixes[(i/100)%len(suffixes)],
			i,
		)
		entities[i] = &domain.ReferenceEntity{
			ID:        fmt.Sprintf("syn-%06d", i),
			Dataset:   domain.DatasetSanctions,
			Name:      name,
			UpdatedAt: time.Unix(int64(i), 0),
		}
	}
	return entities
}

func BenchmarkMatch(b *testing.B) {
	for _, size := range []int{10_000, 100_000} {
		b.Run(fmt.Sprintf("entities_%d", size), func(b *testing.B) {
			m, err := New(domain.DefaultMatcherConfig())
			if err != nil {
				b.Fatalf("failed to create matcher: %v", err)
			}
			if err := m.ReloadDataset(domain.DatasetSanctions, 1, syntheticDataset(size)); err != nil {
				b.Fatalf("ReloadDataset failed: %v", err)
			}

			query, err := normalize.Normalize("Global Trade Group 4270")
			if err != nil {
				b.Fatalf("normalize failed: %v", err)
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := m.Match(query, "", domain.DatasetSanctions); err != nil {
					b.Fatalf("Match failed: %v", err)
				}
			}
		})
	}
}

func BenchmarkReloadDataset(b *testing.B) {
	entities := syntheticDataset(10_000)
	m, err := New(domain.DefaultMatcherConfig())
	if err != nil {
		b.Fatalf("failed to create matcher: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := m.ReloadDataset(domain.DatasetSanctions, int64(i+1), entities); err != nil {
			b.Fatalf("ReloadDataset failed: %v", err)
		}
	}
}
