// Package assess orchestrates the risk assessment pipeline: normalization,
// signal collection, dataset matching, flag rules, scoring and report
// assembly.
package assess

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/flagrules"
	"github.com/opensource-finance/harrier/internal/match"
	"github.com/opensource-finance/harrier/internal/normalize"
	"github.com/opensource-finance/harrier/internal/quota"
	"github.com/opensource-finance/harrier/internal/report"
	"github.com/opensource-finance/harrier/internal/scoring"
	"github.com/opensource-finance/harrier/internal/signal"
)

// maxNameLength bounds the raw query name.
const maxNameLength = 256

// batchConcurrency bounds parallel assessments in a batch.
const batchConcurrency = 4

// Service runs the assessment pipeline. All dependencies except the
// matcher and scorer are optional; a nil dependency disables the
// corresponding stage.
type Service struct {
	matcher   *match.Matcher
	scorer    *scoring.Engine
	flags     *flagrules.Engine
	quota     *quota.Service
	cache     domain.Cache
	repo      domain.Repository
	providers Providers

	providerTimeout time.Duration
	resultTTL       time.Duration
}

// NewService creates the assessment service.
func NewService(matcher *match.Matcher, scorer *scoring.Engine, cfg domain.ProviderConfig) *Service {
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Service{
		matcher:         matcher,
		scorer:          scorer,
		providerTimeout: timeout,
		resultTTL:       time.Duration(cfg.ResultTTLSecs) * time.Second,
	}
}

// WithFlagRules attaches a flag rule engine.
func (s *Service) WithFlagRules(engine *flagrules.Engine) *Service {
	s.flags = engine
	return s
}

// WithQuota attaches provider quota enforcement.
func (s *Service) WithQuota(q *quota.Service) *Service {
	s.quota = q
	return s
}

// WithCache attaches assessment result caching.
func (s *Service) WithCache(cache domain.Cache) *Service {
	s.cache = cache
	return s
}

// WithRepository attaches assessment persistence.
func (s *Service) WithRepository(repo domain.Repository) *Service {
	s.repo = repo
	return s
}

// WithProviders attaches external signal providers.
func (s *Service) WithProviders(p Providers) *Service {
	s.providers = p
	return s
}

// Assess runs the full pipeline for one query.
func (s *Service) Assess(ctx context.Context, req *domain.AssessmentRequest) (*domain.RiskAssessment, error) {
	start := time.Now()

	if err := validate(req); err != nil {
		return nil, err
	}
	tenantID := req.TenantID

	// 1. Normalize
	normStart := time.Now()
	normalized, err := normalize.Normalize(req.Query.Name)
	if err != nil {
		return nil, err
	}
	meta := domain.AssessmentMetadata{
		TraceID:     req.TraceID,
		NormalizeMs: time.Since(normStart).Milliseconds(),
	}

	// 2. Cache lookup. Only inline-free requests are cacheable; inline
	// payloads change the result without changing the fingerprint inputs.
	fingerprint := ""
	cacheable := s.cache != nil && s.resultTTL > 0 && req.Signals == (domain.SignalPayloads{})
	if cacheable {
		fingerprint = s.fingerprint(normalized, req)
		if cached, err := s.cache.GetAssessment(ctx, tenantID, fingerprint); err == nil && cached != nil {
			slog.Debug("assessment cache hit",
				"tenant_id", tenantID,
				"fingerprint", fingerprint,
			)
			return cached, nil
		}
	}

	// 3. Collect provider signals
	collectStart := time.Now()
	payloads := s.collect(ctx, tenantID, req, &meta)
	meta.CollectMs = time.Since(collectStart).Milliseconds()

	// 4. Match reference datasets
	matchStart := time.Now()
	matches := s.matchDatasets(normalized, req.Query.JurisdictionHint)
	meta.MatchMs = time.Since(matchStart).Milliseconds()

	// 5. Assemble and score
	scoreStart := time.Now()
	bundle := signal.Assemble(req.Query, normalized, payloads, matches, time.Now().UTC())

	var result *scoring.Result
	if len(req.Weights) > 0 {
		result, err = s.scorer.ScoreWithWeights(&bundle, req.Weights)
		if err != nil {
			return nil, err
		}
	} else {
		result = s.scorer.Score(&bundle)
	}

	if s.flags != nil {
		ruleFlags, _ := s.flags.EvaluateAll(ctx, &bundle)
		result.Flags = mergeFlags(result.Flags, ruleFlags)
		for _, f := range ruleFlags {
			if f.Critical {
				result.RiskLevel = domain.RiskHigh
				break
			}
		}
	}
	meta.ScoreMs = time.Since(scoreStart).Milliseconds()

	// 6. Build report
	meta.TotalMs = time.Since(start).Milliseconds()
	assessment := report.Build(tenantID, req.Query, normalized, result, matches, meta)

	// 7. Persist and cache. Neither failure invalidates the result.
	if s.repo != nil {
		if err := s.repo.SaveAssessment(ctx, tenantID, assessment); err != nil {
			slog.Error("failed to save assessment",
				"assessment_id", assessment.ID,
				"tenant_id", tenantID,
				"error", err,
			)
		}
	}
	if cacheable {
		_ = s.cache.SetAssessment(ctx, tenantID, fingerprint, assessment, s.resultTTL)
	}

	slog.Info("assessment completed",
		"assessment_id", assessment.ID,
		"tenant_id", tenantID,
		"composite_score", assessment.CompositeScore,
		"risk_level", assessment.RiskLevel,
		"duration_ms", meta.TotalMs,
	)

	return assessment, nil
}

// BatchItem is the per-item outcome of a batch assessment.
type BatchItem struct {
	Assessment *domain.RiskAssessment
	Err        error
}

// AssessBatch runs assessments concurrently with bounded parallelism.
// Results keep the input order; one item failing never fails the batch.
func (s *Service) AssessBatch(ctx context.Context, req *domain.BatchAssessmentRequest) ([]BatchItem, error) {
	if req.TenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: batch is empty", domain.ErrInvalidInput)
	}

	items := make([]BatchItem, len(req.Items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)

	for i := range req.Items {
		item := req.Items[i]
		item.TenantID = req.TenantID
		g.Go(func() error {
			a, err := s.Assess(gctx, &item)
			items[i] = BatchItem{Assessment: a, Err: err}
			return nil
		})
	}

	g.Wait()
	return items, nil
}

func validate(req *domain.AssessmentRequest) error {
	if req.TenantID == "" {
		return fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}
	name := strings.TrimSpace(req.Query.Name)
	if name == "" {
		return fmt.Errorf("%w: query name is required", domain.ErrInvalidInput)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: query name exceeds %d characters", domain.ErrInvalidInput, maxNameLength)
	}
	return nil
}

// collect gathers the signal payloads: inline payloads win, providers fill
// the gaps concurrently. A failed or timed-out provider leaves its payload
// nil; the category degrades to unavailable.
func (s *Service) collect(ctx context.Context, tenantID string, req *domain.AssessmentRequest, meta *domain.AssessmentMetadata) domain.SignalPayloads {
	payloads := req.Signals

	var mu sync.Mutex
	var wg sync.WaitGroup

	fetch := func(provider string, call func(context.Context) error) {
		if !s.allow(ctx, tenantID, provider) {
			return
		}

		wg.Add(1)
		meta.ProvidersQueried++
		go func() {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
			defer cancel()

			if err := call(callCtx); err != nil {
				mu.Lock()
				meta.ProvidersFailed++
				mu.Unlock()
				slog.Warn("signal provider failed",
					"provider", provider,
					"tenant_id", tenantID,
					"error", err,
				)
			}
		}()
	}

	if payloads.Registry == nil && s.providers.Registry != nil {
		fetch(ProviderRegistry, func(ctx context.Context) error {
			p, err := s.providers.Registry.FetchRegistry(ctx, tenantID, req.Query)
			if err != nil {
				return err
			}
			mu.Lock()
			payloads.Registry = p
			mu.Unlock()
			return nil
		})
	}

	if payloads.WebPresence == nil && s.providers.WebPresence != nil {
		fetch(ProviderWebPresence, func(ctx context.Context) error {
			p, err := s.providers.WebPresence.FetchWebPresence(ctx, tenantID, req.Query)
			if err != nil {
				return err
			}
			mu.Lock()
			payloads.WebPresence = p
			mu.Unlock()
			return nil
		})
	}

	if payloads.Trade == nil && s.providers.Trade != nil {
		fetch(ProviderTrade, func(ctx context.Context) error {
			p, err := s.providers.Trade.FetchTrade(ctx, tenantID, req.Query)
			if err != nil {
				return err
			}
			mu.Lock()
			payloads.Trade = p
			mu.Unlock()
			return nil
		})
	}

	wg.Wait()
	return payloads
}

func (s *Service) allow(ctx context.Context, tenantID, provider string) bool {
	if s.quota == nil {
		return true
	}
	ok, err := s.quota.Allow(ctx, tenantID, provider)
	if err != nil {
		return true
	}
	if !ok {
		slog.Warn("provider quota exhausted",
			"provider", provider,
			"tenant_id", tenantID,
		)
	}
	return ok
}

// matchDatasets screens the query against every reference dataset. An
// unloaded dataset yields an unavailable result, never a clean screen.
func (s *Service) matchDatasets(normalized domain.NormalizedName, jurisdictionHint string) []domain.MatchResult {
	var results []domain.MatchResult
	for _, dataset := range []string{domain.DatasetSanctions, domain.DatasetOffshore} {
		r, err := s.matcher.Match(normalized, jurisdictionHint, dataset)
		if err != nil {
			if !errors.Is(err, domain.ErrReferenceDataUnavailable) {
				slog.Error("dataset match failed",
					"dataset", dataset,
					"error", err,
				)
			}
			results = append(results, domain.MatchResult{Dataset: dataset, Available: false})
			continue
		}
		results = append(results, r)
	}
	return results
}

// fingerprint identifies a cacheable assessment: same normalized name,
// jurisdiction, weights and dataset versions means the same result.
func (s *Service) fingerprint(normalized domain.NormalizedName, req *domain.AssessmentRequest) string {
	var b strings.Builder
	b.WriteString(normalized.Full)
	b.WriteString("|")
	b.WriteString(strings.ToLower(strings.TrimSpace(req.Query.JurisdictionHint)))

	weights := req.Weights
	if len(weights) == 0 {
		weights = nil
	}
	for _, c := range domain.Categories() {
		if weights != nil {
			b.WriteString("|")
			b.WriteString(strconv.FormatFloat(weights[c], 'f', 6, 64))
		}
	}

	for _, info := range s.matcher.Datasets() {
		b.WriteString("|")
		b.WriteString(info.Dataset)
		b.WriteString(":")
		b.WriteString(strconv.FormatInt(info.Version, 10))
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func mergeFlags(base, extra []domain.Flag) []domain.Flag {
	seen := make(map[string]struct{}, len(base))
	for _, f := range base {
		seen[string(f.Category)+"|"+f.Message] = struct{}{}
	}
	out := base
	for _, f := range extra {
		key := string(f.Category) + "|" + f.Message
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, f)
	}
	return out
}
