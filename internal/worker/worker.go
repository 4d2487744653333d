// Package worker provides async query processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/harrier/internal/assess"
	"github.com/opensource-finance/harrier/internal/domain"
)

// Worker processes submitted queries asynchronously from the EventBus.
type Worker struct {
	bus     domain.EventBus
	service *assess.Service

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, service *assess.Service) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:     bus,
		service: service,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins processing messages for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicQuerySubmitted, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicQuerySubmitted, func(ctx context.Context, msg *domain.Message) error {
		return w.processQuery(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicQuerySubmitted,
	)

	return nil
}

// handleMessage handles messages from global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processQuery(ctx, msg.TenantID, msg)
}

// QueryMessage is the message payload for async assessment.
type QueryMessage struct {
	TenantID string                      `json:"tenantId"`
	TraceID  string                      `json:"traceId,omitempty"`
	Query    domain.RawQuery             `json:"query"`
	Signals  domain.SignalPayloads       `json:"signals,omitempty"`
	Weights  map[domain.Category]float64 `json:"weights,omitempty"`
}

// processQuery runs one submitted query through the assessment pipeline.
func (w *Worker) processQuery(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var qm QueryMessage
	if err := json.Unmarshal(msg.Payload, &qm); err != nil {
		slog.Error("failed to parse query message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if qm.TenantID != "" {
		tenantID = qm.TenantID
	}

	traceID := qm.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing query",
		"entity_name", qm.Query.Name,
		"tenant_id", tenantID,
		"trace_id", traceID,
	)

	assessment, err := w.service.Assess(ctx, &domain.AssessmentRequest{
		TenantID: tenantID,
		TraceID:  traceID,
		Query:    qm.Query,
		Signals:  qm.Signals,
		Weights:  qm.Weights,
	})
	if err != nil {
		slog.Error("assessment failed",
			"entity_name", qm.Query.Name,
			"tenant_id", tenantID,
			"trace_id", traceID,
			"error", err,
		)
		return err
	}
	resultPayload, _ := json.Marshal(assessment.ToResponse())
	if err := w.bus.Publish(ctx, tenantID, domain.TopicAssessmentCompleted, resultPayload); err != nil {
		slog.Error("failed to publish assessment",
			"assessment_id", assessment.ID,
			"error", err,
		)
	}

	if ShouldAlert(assessment) {
		if err := w.bus.Publish(ctx, tenantID, domain.TopicAlert, resultPayload); err != nil {
			slog.Error("failed to publish alert",
				"assessment_id", assessment.ID,
				"error", err,
			)
		}
	}

	slog.Info("query processed",
		"assessment_id", assessment.ID,
		"tenant_id", tenantID,
		"risk_level", assessment.RiskLevel,
		"composite_score", assessment.CompositeScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// ShouldAlert reports whether an assessment warrants an alert: high risk
// or any critical flag.
func ShouldAlert(a *domain.RiskAssessment) bool {
	return a.RiskLevel == domain.RiskHigh || len(a.CriticalFlags()) > 0
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
