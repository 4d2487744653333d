package flagrules

import (
	"context"
	"testing"

	"github.com/opensource-finance/harrier/internal/domain"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(4)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return e
}

func shellBundle() *domain.SignalBundle {
	return &domain.SignalBundle{
		Registry: domain.RegistrySignal{
			SignalMeta: domain.SignalMeta{Available: true},
			Found:      true,
			Status:     "active",
		},
		Online: domain.OnlineSignal{
			SignalMeta:  domain.SignalMeta{Available: true},
			ResultCount: 0,
		},
		Officers: domain.OfficersSignal{
			SignalMeta:   domain.SignalMeta{Available: true},
			OfficerCount: 1,
		},
		Jurisdiction: domain.JurisdictionSignal{
			SignalMeta: domain.SignalMeta{Available: true},
			Code:       "ky",
			Tier:       domain.RiskTierHigh,
		},
	}
}

func TestEngineLoadAndEvaluate(t *testing.T) {
	e := newTestEngine(t)

	if err := e.LoadRules(BuiltinRules()); err != nil {
		t.Fatalf("LoadRules failed: %v", err)
	}
	if e.RulesCount() != 3 {
		t.Errorf("expected 3 rules loaded, got %d", e.RulesCount())
	}

	flags, outcomes := e.EvaluateAll(context.Background(), shellBundle())

	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	// Shell pattern and no-footprint fire; the PEP rule does not.
	if len(flags) != 2 {
		t.Fatalf("expected 2 flags, got %d: %v", len(flags), flags)
	}
	for _, f := range flags {
		if f.Critical {
			t.Errorf("no critical rule should have fired: %v", f)
		}
	}
}

func TestEngineCriticalRule(t *testing.T) {
	e := newTestEngine(t)
	if err := e.LoadRules(BuiltinRules()); err != nil {
		t.Fatalf("LoadRules failed: %v", err)
	}

	bundle := shellBundle()
	bundle.External = domain.ExternalSignal{
		SignalMeta: domain.SignalMeta{Available: true},
		PEP:        true,
	}

	flags, _ := e.EvaluateAll(context.Background(), bundle)

	critical := 0
	for _, f := range flags {
		if f.Critical {
			critical++
		}
	}
	if critical != 1 {
		t.Errorf("expected 1 critical flag, got %d", critical)
	}
}

func TestEngineRejectsNonBool(t *testing.T) {
	e := newTestEngine(t)

	err := e.LoadRule(&domain.FlagRule{
		ID:         "bad-type",
		Expression: `officer_count + 1`,
		Message:    "never",
		Enabled:    true,
	})
	if err == nil {
		t.Error("expected error for non-bool expression")
	}
}

func TestEngineRejectsBadSyntax(t *testing.T) {
	e := newTestEngine(t)

	err := e.ValidateRule(&domain.FlagRule{
		ID:         "bad-syntax",
		Expression: `officer_count >`,
		Message:    "never",
	})
	if err == nil {
		t.Error("expected compile error")
	}
	if e.RulesCount() != 0 {
		t.Error("ValidateRule must not load rules")
	}
}

func TestEngineReloadKeepsOldSetOnError(t *testing.T) {
	e := newTestEngine(t)
	if err := e.LoadRules(BuiltinRules()); err != nil {
		t.Fatalf("LoadRules failed: %v", err)
	}

	err := e.ReloadRules([]*domain.FlagRule{
		{ID: "ok", Expression: "pep", Message: "pep", Enabled: true},
		{ID: "broken", Expression: "((", Message: "x", Enabled: true},
	})
	if err == nil {
		t.Fatal("expected reload error")
	}
	if e.RulesCount() != 3 {
		t.Errorf("failed reload must keep old rules, got %d", e.RulesCount())
	}

	if err := e.ReloadRules([]*domain.FlagRule{
		{ID: "ok", Expression: "pep", Message: "pep hit", Enabled: true},
	}); err != nil {
		t.Fatalf("ReloadRules failed: %v", err)
	}
	if e.RulesCount() != 1 {
		t.Errorf("expected 1 rule after reload, got %d", e.RulesCount())
	}
}

func TestEngineSignalsMapAccess(t *testing.T) {
	e := newTestEngine(t)

	if err := e.LoadRule(&domain.FlagRule{
		ID:         "map-access",
		Expression: `signals["officer_count"] == 1`,
		Message:    "single officer via map",
		Enabled:    true,
	}); err != nil {
		t.Fatalf("LoadRule failed: %v", err)
	}

	flags, outcomes := e.EvaluateAll(context.Background(), shellBundle())
	if len(outcomes) != 1 || outcomes[0].Error != "" {
		t.Fatalf("unexpected outcome: %+v", outcomes)
	}
	if len(flags) != 1 {
		t.Errorf("expected map-access rule to fire, got %v", flags)
	}
}

func TestEngineDisabledRulesSkipped(t *testing.T) {
	e := newTestEngine(t)

	if err := e.LoadRules([]*domain.FlagRule{
		{ID: "off", Expression: "true", Message: "always", Enabled: false},
	}); err != nil {
		t.Fatalf("LoadRules failed: %v", err)
	}
	if e.RulesCount() != 0 {
		t.Errorf("disabled rules must not load, got %d", e.RulesCount())
	}
}
