package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/hotel-booking/internal/config"
	"github.com/spec-kit/hotel-booking/internal/events"
	"github.com/spec-kit/hotel-booking/internal/observability"
)

const defaultWebhookQueueSize = 256

// AuditService records auth lifecycle events. With a webhook configured,
// events are also queued for RunWebhookDelivery. A full queue drops the event.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	webhook    WebhookSender
	queue      chan events.Event
}

// NewAuditService creates the service. A non-empty cfg.WebhookURL enables
// delivery through an HTTPWebhook.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics, cfg config.AuditConfig) *AuditService {
	var webhook WebhookSender
	if strings.TrimSpace(cfg.WebhookURL) != "" {
		webhook = NewHTTPWebhook(cfg)
	}
	return newAuditService(dispatcher, logger, metrics, webhook, cfg.WebhookQueueSize)
}

func newAuditService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics, webhook WebhookSender, queueSize int) *AuditService {
	if queueSize <= 0 {
		queueSize = defaultWebhookQueueSize
	}
	a := &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
		metrics:    metrics,
		webhook:    webhook,
	}
	if webhook != nil {
		a.queue = make(chan events.Event, queueSize)
	}
	return a
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventUserLoggedIn, a.handleLoggedIn)
	a.dispatcher.Subscribe(events.EventTokenRefreshed, a.handleRefreshed)
	a.dispatcher.Subscribe(events.EventRefreshRejected, a.handleRefreshRejected)
	a.dispatcher.Subscribe(events.EventUserLoggedOut, a.handleLoggedOut)
	a.dispatcher.Subscribe(events.EventSessionRevoked, a.handleSessionRevoked)
}

func (a *AuditService) handleLoggedIn(ctx context.Context, event events.Event) error {
	a.logger.Info("UserLoggedIn", zap.String("subject", event.Subject), zap.Any("payload", event.Payload))
	a.metrics.RecordAuthOutcome("login", observability.OutcomeSuccess)
	a.enqueueWebhook(ctx, event)
	return nil
}

func (a *AuditService) handleRefreshed(ctx context.Context, event events.Event) error {
	a.logger.Info("TokenRefreshed", zap.String("subject", event.Subject), zap.Any("payload", event.Payload))
	a.metrics.RecordAuthOutcome("refresh", observability.OutcomeSuccess)
	a.enqueueWebhook(ctx, event)
	return nil
}

func (a *AuditService) handleRefreshRejected(ctx context.Context, event events.Event) error {
	reason := ""
	if payload, ok := event.Payload.(events.RefreshRejectedPayload); ok {
		reason = payload.Reason
	}

	outcome := observability.OutcomeRejected
	if reason == "storage_unavailable" {
		outcome = observability.OutcomeUnavailable
	}
	a.logger.Warn("RefreshRejected", zap.String("subject", event.Subject), zap.String("reason", reason))
	a.metrics.RecordAuthOutcome("refresh", outcome)
	a.enqueueWebhook(ctx, event)
	return nil
}

func (a *AuditService) handleLoggedOut(ctx context.Context, event events.Event) error {
	a.logger.Info("UserLoggedOut", zap.String("subject", event.Subject))
	a.metrics.RecordAuthOutcome("logout", observability.OutcomeSuccess)
	a.enqueueWebhook(ctx, event)
	return nil
}

func (a *AuditService) handleSessionRevoked(ctx context.Context, event events.Event) error {
	a.logger.Info("SessionRevoked", zap.String("subject", event.Subject), zap.Any("payload", event.Payload))
	a.metrics.RecordAuthOutcome("revoke", observability.OutcomeSuccess)
	a.enqueueWebhook(ctx, event)
	return nil
}

func (a *AuditService) enqueueWebhook(_ context.Context, event events.Event) {
	if a.queue == nil {
		return
	}
	select {
	case a.queue <- event:
	default:
		a.logger.Warn("audit webhook queue full; event dropped",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)))
	}
}

// RunWebhookDelivery sends queued events until ctx is cancelled. It returns
// immediately when no webhook is configured.
func (a *AuditService) RunWebhookDelivery(ctx context.Context) {
	if a.queue == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-a.queue:
			if err := a.webhook.Send(ctx, event); err != nil {
				a.logger.Warn("audit webhook delivery failed",
					zap.String("event_id", event.ID),
					zap.String("event_type", string(event.Type)),
					zap.Error(err))
			}
		}
	}
}
