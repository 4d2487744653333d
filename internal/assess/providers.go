package assess

import (
	"context"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Provider names used for quota accounting and metadata.
const (
	ProviderRegistry    = "registry"
	ProviderWebPresence = "webPresence"
	ProviderTrade       = "trade"
)

// RegistryProvider fetches corporate registry records.
type RegistryProvider interface {
	FetchRegistry(ctx context.Context, tenantID string, query domain.RawQuery) (*domain.RegistryPayload, error)
}

// WebPresenceProvider fetches online footprint summaries.
type WebPresenceProvider interface {
	FetchWebPresence(ctx context.Context, tenantID string, query domain.RawQuery) (*domain.WebPresencePayload, error)
}

// TradeProvider fetches trade-screening context (PEP status, enforcement
// history).
type TradeProvider interface {
	FetchTrade(ctx context.Context, tenantID string, query domain.RawQuery) (*domain.TradePayload, error)
}

// Providers bundles the optional external signal providers. A nil provider
// means the signal is only available when supplied inline with the request.
type Providers struct {
	Registry    RegistryProvider
	WebPresence WebPresenceProvider
	Trade       TradeProvider
}
