package worker

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/assess"
	"github.com/opensource-finance/harrier/internal/bus"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/match"
	"github.com/opensource-finance/harrier/internal/scoring"
)

func newTestService(t *testing.T) *assess.Service {
	t.Helper()

	matcher, err := match.New(domain.DefaultMatcherConfig())
	if err != nil {
		t.Fatalf("failed to create matcher: %v", err)
	}

	sanctions := []*domain.ReferenceEntity{
		{
			ID:        "sdn-001",
			Dataset:   domain.DatasetSanctions,
			Name:      "Global Trade Partners LLC",
			UpdatedAt: time.Now().UTC(),
		},
	}
	if err := matcher.ReloadDataset(domain.DatasetSanctions, 1, sanctions); err != nil {
		t.Fatalf("failed to load sanctions: %v", err)
	}
	if err := matcher.ReloadDataset(domain.DatasetOffshore, 1, nil); err != nil {
		t.Fatalf("failed to load offshore: %v", err)
	}

	scorer, err := scoring.New(domain.ScoringConfig{})
	if err != nil {
		t.Fatalf("failed to create scorer: %v", err)
	}

	return assess.NewService(matcher, scorer, domain.ProviderConfig{TimeoutMs: 1000})
}

func TestWorker(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	service := newTestService(t)
	worker := NewWorker(eventBus, service)

	t.Run("StartAndStop", func(t *testing.T) {
		cfg := Config{
			TenantIDs: []string{"tenant-001"},
		}

		err := worker.Start(cfg)
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		stats := worker.GetStats()
		if stats.SubscriptionCount != 1 {
			t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
		}

		err = worker.Stop()
		if err != nil {
			t.Errorf("Stop failed: %v", err)
		}

		stats = worker.GetStats()
		if stats.SubscriptionCount != 0 {
			t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
		}
	})

	t.Run("ProcessQuery", func(t *testing.T) {
		w := NewWorker(eventBus, service)

		cfg := Config{
			TenantIDs: []string{"tenant-test"},
		}
		w.Start(cfg)
		defer w.Stop()

		var resultReceived atomic.Bool
		var resultPayload []byte

		eventBus.Subscribe(context.Background(), "tenant-test", domain.TopicAssessmentCompleted, func(ctx context.Context, msg *domain.Message) error {
			resultPayload = msg.Payload
			resultReceived.Store(true)
			return nil
		})

		// Allow subscriptions to be active
		time.Sleep(50 * time.Millisecond)

		qm := QueryMessage{
			TenantID: "tenant-test",
			TraceID:  "trace-001",
			Query: domain.RawQuery{
				Name:             "Northwind Logistics GmbH",
				JurisdictionHint: "de",
			},
		}

		payload, _ := json.Marshal(qm)
		err := eventBus.Publish(context.Background(), "tenant-test", domain.TopicQuerySubmitted, payload)
		if err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		// Wait for processing
		time.Sleep(100 * time.Millisecond)

		if !resultReceived.Load() {
			t.Error("expected assessment to be published")
		}

		if resultPayload != nil {
			var resp domain.AssessmentResponse
			if err := json.Unmarshal(resultPayload, &resp); err != nil {
				t.Fatalf("failed to parse assessment: %v", err)
			}

			if resp.TenantID != "tenant-test" {
				t.Errorf("expected tenantID 'tenant-test', got '%s'", resp.TenantID)
			}
			if resp.Metadata.TraceID != "trace-001" {
				t.Errorf("expected traceID 'trace-001', got '%s'", resp.Metadata.TraceID)
			}
			if resp.Query.Name != "Northwind Logistics GmbH" {
				t.Errorf("unexpected query name '%s'", resp.Query.Name)
			}
		}
	})

	t.Run("AlertPublished", func(t *testing.T) {
		w := NewWorker(eventBus, service)

		cfg := Config{
			TenantIDs: []string{"tenant-alert"},
		}
		w.Start(cfg)
		defer w.Stop()

		var alertReceived atomic.Bool

		eventBus.Subscribe(context.Background(), "tenant-alert", domain.TopicAlert, func(ctx context.Context, msg *domain.Message) error {
			alertReceived.Store(true)
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		// A sanctions list hit forces high risk and therefore an alert
		qm := QueryMessage{
			TenantID: "tenant-alert",
			Query:    domain.RawQuery{Name: "Global Trade Partners"},
		}

		payload, _ := json.Marshal(qm)
		eventBus.Publish(context.Background(), "tenant-alert", domain.TopicQuerySubmitted, payload)

		time.Sleep(100 * time.Millisecond)

		if !alertReceived.Load() {
			t.Error("expected alert to be published for sanctions hit")
		}
	})

	t.Run("MultiTenant", func(t *testing.T) {
		w := NewWorker(eventBus, service)

		cfg := Config{
			TenantIDs: []string{"tenant-a", "tenant-b"},
		}
		w.Start(cfg)
		defer w.Stop()

		stats := w.GetStats()
		if stats.SubscriptionCount != 2 {
			t.Errorf("expected 2 subscriptions for 2 tenants, got %d", stats.SubscriptionCount)
		}
	})
}

func TestQueryMessageParsing(t *testing.T) {
	msg := QueryMessage{
		TenantID: "tenant-001",
		TraceID:  "trace-456",
		Query: domain.RawQuery{
			Name:             "Acme Holdings Ltd",
			JurisdictionHint: "gb",
			EntityType:       "company",
		},
		Signals: domain.SignalPayloads{
			Registry: &domain.RegistryPayload{Found: true, Status: "active"},
		},
		Weights: map[domain.Category]float64{
			domain.CategoryRegistry: 0.5,
			domain.CategoryExternal: 0.5,
		},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var parsed QueryMessage
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if parsed.Query.Name != msg.Query.Name {
		t.Errorf("expected name '%s', got '%s'", msg.Query.Name, parsed.Query.Name)
	}
	if parsed.Signals.Registry == nil || !parsed.Signals.Registry.Found {
		t.Error("expected registry payload to round-trip")
	}
	if parsed.Weights[domain.CategoryRegistry] != 0.5 {
		t.Errorf("expected weight 0.5, got %f", parsed.Weights[domain.CategoryRegistry])
	}
}
