package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/hotel-booking/internal/config"
	"github.com/spec-kit/hotel-booking/internal/events"
	"github.com/spec-kit/hotel-booking/internal/observability"
)

func TestAuditServiceRecordsOutcomes(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	var mu sync.Mutex
	var delivered []events.EventType
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var event events.Event
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		delivered = append(delivered, event.Type)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer receiver.Close()

	audit := NewAuditService(dispatcher, zap.New(core), metrics, config.AuditConfig{WebhookURL: receiver.URL})
	audit.RegisterHandlers()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go audit.RunWebhookDelivery(ctx)

	now := time.Unix(1000, 0)
	publish := func(typ events.EventType, payload interface{}) {
		require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: typ, Subject: "a@b.com", Timestamp: now, Payload: payload}))
	}

	publish(events.EventUserLoggedIn, events.TokenIssuedPayload{})
	publish(events.EventTokenRefreshed, events.TokenIssuedPayload{Rotated: true})
	publish(events.EventRefreshRejected, events.RefreshRejectedPayload{Reason: "revoked"})
	publish(events.EventRefreshRejected, events.RefreshRejectedPayload{Reason: "storage_unavailable"})
	publish(events.EventUserLoggedOut, nil)
	publish(events.EventSessionRevoked, events.SessionRevokedPayload{RevokedBy: "admin@b.com"})

	outcomes := metrics.Snapshot().AuthOutcomes
	assert.Equal(t, int64(1), outcomes["login|success"])
	assert.Equal(t, int64(1), outcomes["refresh|success"])
	assert.Equal(t, int64(1), outcomes["refresh|rejected"])
	assert.Equal(t, int64(1), outcomes["refresh|unavailable"])
	assert.Equal(t, int64(1), outcomes["logout|success"])
	assert.Equal(t, int64(1), outcomes["revoke|success"])

	assert.Equal(t, 2, logs.FilterMessage("RefreshRejected").Len())

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(delivered) == 6
	}, 2*time.Second, 10*time.Millisecond)
	mu.Lock()
	assert.ElementsMatch(t, []events.EventType{
		events.EventUserLoggedIn,
		events.EventTokenRefreshed,
		events.EventRefreshRejected,
		events.EventRefreshRejected,
		events.EventUserLoggedOut,
		events.EventSessionRevoked,
	}, delivered)
	mu.Unlock()
	assert.Zero(t, logs.FilterMessage("audit webhook delivery failed").Len())
}

func TestAuditServiceWithoutWebhookSkipsDelivery(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	audit := NewAuditService(dispatcher, zap.NewNop(), observability.NewMetrics(), config.AuditConfig{WebhookURL: "  "})
	audit.RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventUserLoggedIn, Subject: "a@b.com"}))
	assert.Nil(t, audit.queue)

	done := make(chan struct{})
	go func() {
		audit.RunWebhookDelivery(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunWebhookDelivery did not return without a webhook")
	}
}

type failingSender struct{}

func (failingSender) Send(context.Context, events.Event) error {
	return errors.New("receiver down")
}

func TestAuditServiceDropsWhenQueueFull(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	dispatcher := events.NewInMemoryDispatcher()
	audit := newAuditService(dispatcher, zap.New(core), observability.NewMetrics(), failingSender{}, 1)
	audit.RegisterHandlers()

	ctx := context.Background()
	require.NoError(t, dispatcher.Publish(ctx, events.Event{ID: "e1", Type: events.EventUserLoggedOut, Subject: "a@b.com"}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{ID: "e2", Type: events.EventUserLoggedOut, Subject: "a@b.com"}))

	dropped := logs.FilterMessage("audit webhook queue full; event dropped").All()
	require.Len(t, dropped, 1)
	assert.Equal(t, "e2", dropped[0].ContextMap()["event_id"])

	runCtx, cancel := context.WithCancel(ctx)
	go audit.RunWebhookDelivery(runCtx)
	assert.Eventually(t, func() bool {
		return logs.FilterMessage("audit webhook delivery failed").Len() == 1
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
}

func TestTokenServiceFeedsAudit(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	NewAuditService(dispatcher, zap.New(core), metrics, config.AuditConfig{}).RegisterHandlers()

	f := newTokenFixture(t, true, nil)
	f.svc.dispatcher = dispatcher
	ctx := context.Background()
	now := time.Unix(1000, 0)

	pair, err := f.svc.Login(ctx, guest.Identity(), now)
	require.NoError(t, err)
	_, err = f.svc.Refresh(ctx, pair.RefreshToken, now)
	require.NoError(t, err)
	_, err = f.svc.Refresh(ctx, pair.RefreshToken, now)
	require.Error(t, err)

	assert.Equal(t, 1, logs.FilterMessage("UserLoggedIn").Len())
	assert.Equal(t, 1, logs.FilterMessage("TokenRefreshed").Len())
	rejected := logs.FilterMessage("RefreshRejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, "revoked", rejected[0].ContextMap()["reason"])

	for _, entry := range logs.All() {
		for _, value := range entry.ContextMap() {
			assert.NotContains(t, fmt.Sprint(value), pair.RefreshToken)
		}
	}
}
