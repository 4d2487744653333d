// Package flagrules provides the CEL-Go based red-flag rule engine.
// Operator-defined boolean expressions run over the flattened signal
// view and append red flags to assessments when they fire.
package flagrules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Engine compiles and evaluates flag rules.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
	maxWorkers    int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Rule    *domain.FlagRule
	Program cel.Program
}

// Outcome records how one rule evaluated for one bundle.
type Outcome struct {
	RuleID    string `json:"ruleId"`
	Fired     bool   `json:"fired"`
	Error     string `json:"error,omitempty"`
	ProcessMs int64  `json:"processMs"`
}

// NewEngine creates a flag rule engine.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	// CEL environment exposing the flattened signal view.
	env, err := cel.NewEnv(
		cel.Variable("signals", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("registry_available", cel.BoolType),
		cel.Variable("registry_found", cel.BoolType),
		cel.Variable("registry_status", cel.StringType),
		cel.Variable("registry_recent_filing", cel.BoolType),
		cel.Variable("online_available", cel.BoolType),
		cel.Variable("result_count", cel.IntType),
		cel.Variable("has_linkedin", cel.BoolType),
		cel.Variable("has_wikipedia", cel.BoolType),
		cel.Variable("news_mentions", cel.IntType),
		cel.Variable("fraud_keyword_count", cel.IntType),
		cel.Variable("officers_available", cel.BoolType),
		cel.Variable("officer_count", cel.IntType),
		cel.Variable("address_match", cel.BoolType),
		cel.Variable("jurisdiction_available", cel.BoolType),
		cel.Variable("jurisdiction_code", cel.StringType),
		cel.Variable("jurisdiction_tier", cel.StringType),
		cel.Variable("external_available", cel.BoolType),
		cel.Variable("has_trade_data", cel.BoolType),
		cel.Variable("volume_aligned", cel.BoolType),
		cel.Variable("pep", cel.BoolType),
		cel.Variable("enforcement_count", cel.IntType),
		cel.Variable("regulatory_keyword_count", cel.IntType),
		cel.Variable("best_match_class", cel.StringType),
		cel.Variable("best_match_score", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
		maxWorkers:    maxWorkers,
	}, nil
}

// ValidateRule compiles a rule without mutating loaded engine rules.
func (e *Engine) ValidateRule(rule *domain.FlagRule) error {
	if rule == nil {
		return fmt.Errorf("%w: flag rule is required", domain.ErrInvalidInput)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(rule)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(rule *domain.FlagRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(rule)
	if err != nil {
		return err
	}

	e.compiledRules[rule.ID] = compiled
	return nil
}

// LoadRules compiles and loads the enabled rules.
func (e *Engine) LoadRules(rules []*domain.FlagRule) error {
	for _, rule := range rules {
		if rule.Enabled {
			if err := e.LoadRule(rule); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules clears all existing rules and loads new ones. Compiles the
// full replacement set before swapping, so a bad rule leaves the current
// set untouched.
func (e *Engine) ReloadRules(rules []*domain.FlagRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		compiled, err := e.compileRule(rule)
		if err != nil {
			return err
		}
		newRules[rule.ID] = compiled
	}

	e.compiledRules = newRules
	return nil
}

// EvaluateAll evaluates all loaded rules in parallel and returns the
// flags of the rules that fired. A rule that errors is recorded in its
// outcome and raises no flag.
func (e *Engine) EvaluateAll(ctx context.Context, bundle *domain.SignalBundle) ([]domain.Flag, []Outcome) {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil, nil
	}

	activation := Activation(bundle)

	outcomes := make([]Outcome, len(rules))
	var wg sync.WaitGroup

	// Limit concurrency with semaphore
	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			outcomes[idx] = e.evaluateRule(r, activation)
		}(i, rule)
	}

	wg.Wait()

	var flags []domain.Flag
	for i, rule := range rules {
		if !outcomes[i].Fired {
			continue
		}
		category := rule.Rule.Category
		if category == "" {
			category = domain.CategoryExternal
		}
		flags = append(flags, domain.Flag{
			Message:  rule.Rule.Message,
			Category: category,
			Critical: rule.Rule.Critical,
		})
	}
	return flags, outcomes
}

func (e *Engine) evaluateRule(rule *CompiledRule, activation map[string]any) Outcome {
	start := time.Now()

	outcome := Outcome{RuleID: rule.Rule.ID}

	out, _, err := rule.Program.Eval(activation)
	if err != nil {
		outcome.Error = fmt.Sprintf("evaluation error: %v", err)
		outcome.ProcessMs = time.Since(start).Milliseconds()
		return outcome
	}

	if b, ok := out.(types.Bool); ok {
		outcome.Fired = bool(b)
	}
	outcome.ProcessMs = time.Since(start).Milliseconds()
	return outcome
}

// Activation builds the CEL variable bindings for a signal bundle.
func Activation(bundle *domain.SignalBundle) map[string]any {
	bestClass := ""
	bestScore := 0.0
	if best, ok := bundle.External.BestMatch(); ok {
		bestClass = string(best.Class)
		bestScore = best.Score
	}

	activation := map[string]any{
		"registry_available":       bundle.Registry.Available,
		"registry_found":           bundle.Registry.Found,
		"registry_status":          bundle.Registry.Status,
		"registry_recent_filing":   bundle.Registry.RecentFiling,
		"online_available":         bundle.Online.Available,
		"result_count":             int64(bundle.Online.ResultCount),
		"has_linkedin":             bundle.Online.HasLinkedIn,
		"has_wikipedia":            bundle.Online.HasWikipedia,
		"news_mentions":            int64(bundle.Online.NewsMentions),
		"fraud_keyword_count":      int64(len(bundle.Online.FraudKeywords)),
		"officers_available":       bundle.Officers.Available,
		"officer_count":            int64(bundle.Officers.OfficerCount),
		"address_match":            bundle.Officers.AddressMatch,
		"jurisdiction_available":   bundle.Jurisdiction.Available,
		"jurisdiction_code":        bundle.Jurisdiction.Code,
		"jurisdiction_tier":        string(bundle.Jurisdiction.Tier),
		"external_available":       bundle.External.Available,
		"has_trade_data":           bundle.External.HasTradeData,
		"volume_aligned":           bundle.External.VolumeAligned,
		"pep":                      bundle.External.PEP,
		"enforcement_count":        int64(len(bundle.External.EnforcementActions)),
		"regulatory_keyword_count": int64(len(bundle.External.RegulatoryKeywords)),
		"best_match_class":         bestClass,
		"best_match_score":         bestScore,
	}

	// The same view is also reachable as a single map for rules that
	// prefer signals["key"] access.
	signals := make(map[string]any, len(activation))
	for k, v := range activation {
		signals[k] = v
	}
	activation["signals"] = signals

	return activation
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// GetLoadedRules returns the currently loaded rule definitions.
func (e *Engine) GetLoadedRules() []*domain.FlagRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.FlagRule, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Rule)
	}
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(rule *domain.FlagRule) (*CompiledRule, error) {
	if rule.Expression == "" {
		return nil, fmt.Errorf("%w: rule %s has no expression", domain.ErrInvalidInput, rule.ID)
	}
	if rule.Message == "" {
		return nil, fmt.Errorf("%w: rule %s has no flag message", domain.ErrInvalidInput, rule.ID)
	}

	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", rule.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", rule.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", rule.ID, err)
	}

	return &CompiledRule{
		Rule:    rule,
		Program: program,
	}, nil
}
