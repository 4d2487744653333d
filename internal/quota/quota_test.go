package quota

import (
	"context"
	"testing"

	"github.com/opensource-finance/harrier/internal/cache"
	"github.com/opensource-finance/harrier/internal/domain"
)

func TestQuotaService(t *testing.T) {
	lruCache := cache.NewLRUCache(100)
	defer lruCache.Close()

	svc := NewService(lruCache, domain.ProviderConfig{
		QuotaLimit:      3,
		QuotaWindowSecs: 60,
	})

	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("WithinBudget", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			ok, err := svc.Allow(ctx, tenantID, "registry")
			if err != nil {
				t.Fatalf("Allow failed: %v", err)
			}
			if !ok {
				t.Errorf("call %d should be within budget", i+1)
			}
		}
	})

	t.Run("Exhausted", func(t *testing.T) {
		ok, err := svc.Allow(ctx, tenantID, "registry")
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if ok {
			t.Error("fourth call should exceed budget")
		}
	})

	t.Run("PerProviderBudgets", func(t *testing.T) {
		ok, err := svc.Allow(ctx, tenantID, "webPresence")
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !ok {
			t.Error("different provider has its own budget")
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		ok, err := svc.Allow(ctx, "other-tenant", "registry")
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !ok {
			t.Error("different tenant has its own budget")
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		if _, err := svc.Allow(ctx, "", "registry"); err == nil {
			t.Error("expected error for empty tenantID")
		}
	})

	t.Run("RequiresProvider", func(t *testing.T) {
		if _, err := svc.Allow(ctx, tenantID, ""); err == nil {
			t.Error("expected error for empty provider")
		}
	})
}

func TestQuotaDisabled(t *testing.T) {
	svc := NewService(nil, domain.ProviderConfig{QuotaLimit: 0})

	ctx := context.Background()
	for i := 0; i < 100; i++ {
		ok, err := svc.Allow(ctx, "tenant-001", "registry")
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !ok {
			t.Fatal("disabled quota must always allow")
		}
	}
}
