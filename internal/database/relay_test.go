package database

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStreamClient struct {
	mock.Mock
}

func (m *MockStreamClient) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	mockArgs := m.Called(ctx, args)
	cmd := redis.NewStringCmd(ctx)
	if err := mockArgs.Error(0); err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal("1700000000000-0")
	}
	return cmd
}

type MockEventQueue struct {
	mock.Mock
}

func (m *MockEventQueue) Claim(ctx context.Context, limit int) ([]*Event, error) {
	args := m.Called(ctx, limit)
	events, _ := args.Get(0).([]*Event)
	return events, args.Error(1)
}

func (m *MockEventQueue) MarkPublished(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockEventQueue) MarkFailed(ctx context.Context, id uuid.UUID, cause error) (string, error) {
	args := m.Called(ctx, id, cause)
	return args.String(0), args.Error(1)
}

func (m *MockEventQueue) Stats(ctx context.Context) (map[string]int64, error) {
	args := m.Called(ctx)
	stats, _ := args.Get(0).(map[string]int64)
	return stats, args.Error(1)
}

func productEvent(title string) *Event {
	payload, _ := json.Marshal(ProductExtractedPayload{
		URL:      "https://www.elektramat.nl/p/",
		Title:    title,
		Category: "cable",
	})
	return &Event{
		ID:        uuid.New(),
		ProductID: uuid.New(),
		Type:      EventProductExtracted,
		Stream:    DefaultStream,
		Payload:   payload,
		Status:    EventPending,
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func forProduct(e *Event) any {
	return mock.MatchedBy(func(args *redis.XAddArgs) bool {
		values, _ := args.Values.(map[string]any)
		return values["product_id"] == e.ProductID.String()
	})
}

func newTestRelay(cfg RelayConfig) (*Relay, *MockStreamClient, *MockEventQueue) {
	streams := new(MockStreamClient)
	queue := new(MockEventQueue)
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 10
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 20 * time.Millisecond
	}
	return NewRelay(queue, streams, nil, cfg), streams, queue
}

func TestNewRelay_Defaults(t *testing.T) {
	relay := NewRelay(new(MockEventQueue), new(MockStreamClient), nil, RelayConfig{})
	assert.Equal(t, 5*time.Second, relay.interval)
	assert.Equal(t, 100, relay.batchSize)
	assert.Zero(t, relay.maxLen)
}

func TestRelay_Flush(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes and marks every event", func(t *testing.T) {
		relay, streams, queue := newTestRelay(RelayConfig{})
		events := []*Event{productEvent("YMvK 3x2.5mm²"), productEvent("Gira E2 schakelaar")}

		queue.On("Claim", ctx, 10).Return(events, nil)
		for _, e := range events {
			streams.On("XAdd", ctx, forProduct(e)).Return(nil)
			queue.On("MarkPublished", ctx, e.ID).Return(nil)
		}

		n, err := relay.Flush(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		streams.AssertExpectations(t)
		queue.AssertExpectations(t)
	})

	t.Run("publish error marks the event failed", func(t *testing.T) {
		relay, streams, queue := newTestRelay(RelayConfig{})
		e := productEvent("XMvK 5G6")

		queue.On("Claim", ctx, 10).Return([]*Event{e}, nil)
		streams.On("XAdd", ctx, mock.Anything).Return(errors.New("connection refused"))
		queue.On("MarkFailed", ctx, e.ID, mock.MatchedBy(func(err error) bool {
			return err.Error() == "xadd stream:product_extracted: connection refused"
		})).Return(EventRetrying, nil)

		_, err := relay.Flush(ctx)
		require.NoError(t, err)
		queue.AssertExpectations(t)
		queue.AssertNotCalled(t, "MarkPublished", mock.Anything, mock.Anything)
	})

	t.Run("invalid payload never reaches redis", func(t *testing.T) {
		relay, streams, queue := newTestRelay(RelayConfig{})
		e := productEvent("broken")
		e.Payload = json.RawMessage(`not json`)

		queue.On("Claim", ctx, 10).Return([]*Event{e}, nil)
		queue.On("MarkFailed", ctx, e.ID, errInvalidPayload).Return(EventDeadLetter, nil)

		_, err := relay.Flush(ctx)
		require.NoError(t, err)
		streams.AssertNotCalled(t, "XAdd", mock.Anything, mock.Anything)
		queue.AssertExpectations(t)
	})

	t.Run("one failure does not stop the batch", func(t *testing.T) {
		relay, streams, queue := newTestRelay(RelayConfig{})
		first, second := productEvent("a"), productEvent("b")

		queue.On("Claim", ctx, 10).Return([]*Event{first, second}, nil)
		streams.On("XAdd", ctx, forProduct(first)).Return(errors.New("redis error"))
		queue.On("MarkFailed", ctx, first.ID, mock.Anything).Return(EventRetrying, nil)
		streams.On("XAdd", ctx, forProduct(second)).Return(nil)
		queue.On("MarkPublished", ctx, second.ID).Return(nil)

		n, err := relay.Flush(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		streams.AssertExpectations(t)
		queue.AssertExpectations(t)
	})

	t.Run("claim error is returned", func(t *testing.T) {
		relay, _, queue := newTestRelay(RelayConfig{})
		queue.On("Claim", ctx, 10).Return(nil, errors.New("connection refused"))

		_, err := relay.Flush(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestRelay_StreamFields(t *testing.T) {
	ctx := context.Background()
	relay, streams, _ := newTestRelay(RelayConfig{StreamMaxLen: 5000})
	e := productEvent("YMvK")
	e.Attempts = 2

	var got *redis.XAddArgs
	streams.On("XAdd", ctx, mock.Anything).Run(func(args mock.Arguments) {
		got = args.Get(1).(*redis.XAddArgs)
	}).Return(nil)

	require.NoError(t, relay.publish(ctx, e))
	require.NotNil(t, got)

	assert.Equal(t, DefaultStream, got.Stream)
	assert.Equal(t, int64(5000), got.MaxLen)
	assert.True(t, got.Approx)

	values := got.Values.(map[string]any)
	assert.Equal(t, e.ID.String(), values["event_id"])
	assert.Equal(t, EventProductExtracted, values["event_type"])
	assert.Equal(t, 3, values["attempt"])
	assert.Equal(t, "2026-03-01T09:00:00Z", values["created_at"])
	assert.Equal(t, "elektra-scraper", values["source"])

	var payload ProductExtractedPayload
	require.NoError(t, json.Unmarshal([]byte(values["payload"].(string)), &payload))
	assert.Equal(t, "YMvK", payload.Title)
	assert.Equal(t, "cable", payload.Category)
}

func TestRelay_Counts(t *testing.T) {
	ctx := context.Background()
	relay, _, queue := newTestRelay(RelayConfig{})

	queue.On("Stats", ctx).Return(map[string]int64{
		EventPending:    4,
		EventRetrying:   3,
		EventPublished:  120,
		EventDeadLetter: 1,
	}, nil)

	pending, err := relay.GetPendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), pending)

	dead, err := relay.GetDeadLetterCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)
}

func TestRelay_StartDrainsFullBatches(t *testing.T) {
	relay, streams, queue := newTestRelay(RelayConfig{BatchSize: 1, PollInterval: time.Hour})
	first, second := productEvent("a"), productEvent("b")

	queue.On("Claim", mock.Anything, 1).Return([]*Event{first}, nil).Once()
	queue.On("Claim", mock.Anything, 1).Return([]*Event{second}, nil).Once()
	queue.On("Claim", mock.Anything, 1).Return([]*Event{}, nil)
	var published atomic.Int32
	streams.On("XAdd", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		published.Add(1)
	}).Return(nil)
	queue.On("MarkPublished", mock.Anything, mock.Anything).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- relay.Start(ctx) }()

	// Both events go out without waiting for the hour-long poll interval.
	require.Eventually(t, func() bool {
		return published.Load() == 2
	}, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop on context cancellation")
	}
}
