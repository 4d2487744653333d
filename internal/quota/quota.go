// Package quota enforces per-tenant call budgets for external signal
// providers.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Service tracks provider calls in cache-backed counter windows. When a
// tenant exhausts its budget the provider is treated as unavailable for
// the rest of the window; assessments still complete on the remaining
// signals.
type Service struct {
	cache  domain.Cache
	limit  int
	window time.Duration
}

// NewService creates a quota service. A limit of 0 disables enforcement.
func NewService(cache domain.Cache, cfg domain.ProviderConfig) *Service {
	window := time.Duration(cfg.QuotaWindowSecs) * time.Second
	if window <= 0 {
		window = time.Minute
	}
	return &Service{
		cache:  cache,
		limit:  cfg.QuotaLimit,
		window: window,
	}
}

// Allow consumes one call from the tenant's budget for a provider and
// reports whether the call may proceed.
func (s *Service) Allow(ctx context.Context, tenantID, provider string) (bool, error) {
	if tenantID == "" || provider == "" {
		return false, fmt.Errorf("%w: tenantID and provider are required", domain.ErrInvalidInput)
	}

	if s.limit <= 0 || s.cache == nil {
		return true, nil
	}

	count, err := s.cache.IncrementCounter(ctx, tenantID, "provider:"+provider, s.window)
	if err != nil {
		// Quota accounting failure must not block assessments.
		return true, nil
	}
	return count <= int64(s.limit), nil
}
