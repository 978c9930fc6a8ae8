package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/pkg/logger"
)

func quietLogger() *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.LevelError
	opts.Output = &bytes.Buffer{}
	return logger.New(opts)
}

func syncBusConfig() InMemoryEventBusConfig {
	cfg := DefaultInMemoryEventBusConfig()
	cfg.AsyncMode = false
	cfg.Logger = quietLogger()
	return cfg
}

// testEvent is a minimal event for bus tests.
type testEvent struct {
	shared.BaseEvent
	payload map[string]interface{}
}

func newTestEvent(eventType shared.EventType) *testEvent {
	return &testEvent{
		BaseEvent: shared.NewBaseEvent(eventType, "test-aggregate"),
		payload:   map[string]interface{}{"k": "v"},
	}
}

func (e *testEvent) Payload() map[string]interface{} { return e.payload }

// ─────────────────────────────────────────────────────────────────────────────
// InMemoryEventBus
// ─────────────────────────────────────────────────────────────────────────────

func TestInMemoryBusDeliversToSubscriber(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	var received []shared.Event
	err := bus.Subscribe(shared.EventSessionStarted, func(event shared.Event) error {
		received = append(received, event)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(newTestEvent(shared.EventSessionStarted)))
	require.NoError(t, bus.Publish(newTestEvent(shared.EventSessionStopped))) // different type, not delivered

	require.Len(t, received, 1)
	assert.Equal(t, shared.EventSessionStarted, received[0].EventType())
}

func TestInMemoryBusSubscribeAll(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	var count int
	require.NoError(t, bus.SubscribeAll(func(event shared.Event) error {
		count++
		return nil
	}))

	require.NoError(t, bus.Publish(newTestEvent(shared.EventSessionStarted)))
	require.NoError(t, bus.Publish(newTestEvent(shared.EventFrameProcessed)))

	assert.Equal(t, 2, count)
}

func TestInMemoryBusAsyncDelivery(t *testing.T) {
	cfg := DefaultInMemoryEventBusConfig()
	cfg.Logger = quietLogger()
	bus := NewInMemoryEventBus(cfg)

	var mu sync.Mutex
	var count int
	done := make(chan struct{})

	require.NoError(t, bus.Subscribe(shared.EventFrameProcessed, func(event shared.Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		close(done)
		return nil
	}))

	require.NoError(t, bus.Publish(newTestEvent(shared.EventFrameProcessed)))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async handler never ran")
	}

	require.NoError(t, bus.Close())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestInMemoryBusClosedRejectsPublish(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	require.NoError(t, bus.Close())

	err := bus.Publish(newTestEvent(shared.EventSessionStarted))
	assert.ErrorIs(t, err, ErrEventBusClosed)

	err = bus.Subscribe(shared.EventSessionStarted, func(shared.Event) error { return nil })
	assert.ErrorIs(t, err, ErrEventBusClosed)
}

func TestInMemoryBusHandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	var secondRan bool
	require.NoError(t, bus.Subscribe(shared.EventSessionStopped, func(shared.Event) error {
		return errors.New("boom")
	}))
	require.NoError(t, bus.Subscribe(shared.EventSessionStopped, func(shared.Event) error {
		secondRan = true
		return nil
	}))

	require.NoError(t, bus.Publish(newTestEvent(shared.EventSessionStopped)))
	assert.True(t, secondRan)
}

func TestInMemoryBusMetrics(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	require.NoError(t, bus.Subscribe(shared.EventSessionStarted, func(shared.Event) error { return nil }))
	require.NoError(t, bus.Publish(newTestEvent(shared.EventSessionStarted)))

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalPublished)
	assert.Equal(t, int64(1), snap.TotalHandlerExecs)
}

// ─────────────────────────────────────────────────────────────────────────────
// RedisEventBus
// ─────────────────────────────────────────────────────────────────────────────

// fakeRedisClient captures published envelopes and lets tests inject
// incoming messages.
type fakeRedisClient struct {
	mu        sync.Mutex
	published []string
	incoming  chan RedisMessage
}

func newFakeRedisClient() *fakeRedisClient {
	return &fakeRedisClient{incoming: make(chan RedisMessage, 16)}
}

func (f *fakeRedisClient) Publish(ctx context.Context, channel string, message interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, fmt.Sprint(message))
	return nil
}

func (f *fakeRedisClient) Subscribe(ctx context.Context, channels ...string) (<-chan RedisMessage, error) {
	return f.incoming, nil
}

func (f *fakeRedisClient) Close() error { return nil }

func (f *fakeRedisClient) publishedEnvelopes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.published))
	copy(out, f.published)
	return out
}

func TestRedisBusPublishesEnvelope(t *testing.T) {
	client := newFakeRedisClient()
	bus, err := NewRedisEventBus(RedisEventBusConfig{
		Client:         client,
		InstanceID:     "instance-a",
		LocalBusConfig: syncBusConfig(),
		Logger:         quietLogger(),
	})
	require.NoError(t, err)
	defer bus.Close()

	var localDeliveries int
	require.NoError(t, bus.Subscribe(shared.EventSessionStarted, func(shared.Event) error {
		localDeliveries++
		return nil
	}))

	require.NoError(t, bus.Publish(newTestEvent(shared.EventSessionStarted)))

	// Local handlers run on publish.
	assert.Equal(t, 1, localDeliveries)

	// The wire carries the envelope.
	envelopes := client.publishedEnvelopes()
	require.Len(t, envelopes, 1)

	var env eventEnvelope
	require.NoError(t, json.Unmarshal([]byte(envelopes[0]), &env))
	assert.Equal(t, "instance-a", env.InstanceID)
	assert.Equal(t, shared.EventSessionStarted, env.EventType)
	assert.Equal(t, "test-aggregate", env.AggregateID)
}

func TestRedisBusIgnoresOwnMessages(t *testing.T) {
	client := newFakeRedisClient()
	bus, err := NewRedisEventBus(RedisEventBusConfig{
		Client:         client,
		InstanceID:     "instance-a",
		LocalBusConfig: syncBusConfig(),
		Logger:         quietLogger(),
	})
	require.NoError(t, err)
	defer bus.Close()

	var mu sync.Mutex
	var deliveries int
	require.NoError(t, bus.Subscribe(shared.EventSessionStopped, func(shared.Event) error {
		mu.Lock()
		deliveries++
		mu.Unlock()
		return nil
	}))

	selfEnv, _ := json.Marshal(eventEnvelope{
		InstanceID: "instance-a",
		EventType:  shared.EventSessionStopped,
		OccurredAt: time.Now(),
	})
	remoteEnv, _ := json.Marshal(eventEnvelope{
		InstanceID: "instance-b",
		EventType:  shared.EventSessionStopped,
		OccurredAt: time.Now(),
	})

	client.incoming <- RedisMessage{Payload: string(selfEnv)}
	client.incoming <- RedisMessage{Payload: string(remoteEnv)}

	// The subscription loop is asynchronous.
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return deliveries == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRedisBusRequiresClient(t *testing.T) {
	_, err := NewRedisEventBus(RedisEventBusConfig{})
	assert.Error(t, err)
}
