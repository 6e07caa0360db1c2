package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const eventSource = "elektra-scraper"

var errInvalidPayload = errors.New("event payload is not valid JSON")

// StreamClient is the part of *redis.Client the relay needs.
type StreamClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// EventQueue is implemented by Outbox and mocked in tests.
type EventQueue interface {
	Claim(ctx context.Context, limit int) ([]*Event, error)
	MarkPublished(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, cause error) (string, error)
	Stats(ctx context.Context) (map[string]int64, error)
}

type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
	// StreamMaxLen trims streams to roughly this many entries; 0 keeps all.
	StreamMaxLen int64
}

// Relay copies product events from the outbox onto Redis streams.
type Relay struct {
	queue     EventQueue
	streams   StreamClient
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	maxLen    int64
}

func NewRelay(queue EventQueue, streams StreamClient, logger *slog.Logger, cfg RelayConfig) *Relay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		queue:     queue,
		streams:   streams,
		logger:    logger.With("component", "relay"),
		interval:  cfg.PollInterval,
		batchSize: cfg.BatchSize,
		maxLen:    cfg.StreamMaxLen,
	}
}

// Start publishes until ctx is done. A full batch is followed by another
// claim straight away; otherwise the relay sleeps for the poll interval.
func (r *Relay) Start(ctx context.Context) error {
	r.logger.Info("relay started", "interval", r.interval, "batch_size", r.batchSize)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("relay stopped")
			return ctx.Err()
		case <-timer.C:
		}

		claimed, err := r.Flush(ctx)
		if err != nil && ctx.Err() == nil {
			r.logger.Error("relay batch failed", "error", err)
		}

		next := r.interval
		if err == nil && claimed >= r.batchSize {
			next = 0
		}
		timer.Reset(next)
	}
}

// Flush claims one batch and publishes it. It returns how many events were
// claimed; individual publish failures are recorded on the event and do not
// fail the batch.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	events, err := r.queue.Claim(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}

	for _, event := range events {
		if err := r.deliver(ctx, event); err != nil {
			r.logger.Error("failed to deliver event",
				"event_id", event.ID,
				"product_id", event.ProductID,
				"error", err)
		}
	}
	return len(events), nil
}

func (r *Relay) deliver(ctx context.Context, event *Event) error {
	if err := r.publish(ctx, event); err != nil {
		status, markErr := r.queue.MarkFailed(ctx, event.ID, err)
		if markErr != nil {
			return errors.Join(err, markErr)
		}
		if status == EventDeadLetter {
			r.logger.Warn("event moved to dead letter",
				"event_id", event.ID,
				"attempts", event.Attempts+1)
		}
		return err
	}

	if err := r.queue.MarkPublished(ctx, event.ID); err != nil {
		// Already on the stream; the lease expiry will publish it again.
		return err
	}

	r.logger.Debug("event published",
		"event_id", event.ID,
		"event_type", event.Type,
		"stream", event.Stream)
	return nil
}

// publish XADDs the event as flat stream fields; the product payload is
// carried as a JSON string.
func (r *Relay) publish(ctx context.Context, event *Event) error {
	if !json.Valid(event.Payload) {
		return errInvalidPayload
	}

	args := &redis.XAddArgs{
		Stream: event.Stream,
		Values: map[string]any{
			"event_id":   event.ID.String(),
			"event_type": event.Type,
			"product_id": event.ProductID.String(),
			"attempt":    event.Attempts + 1,
			"created_at": event.CreatedAt.UTC().Format(time.RFC3339Nano),
			"source":     eventSource,
			"payload":    string(event.Payload),
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}

	if err := r.streams.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", event.Stream, err)
	}
	return nil
}

// GetPendingCount counts events that still have to reach the stream.
func (r *Relay) GetPendingCount(ctx context.Context) (int64, error) {
	stats, err := r.queue.Stats(ctx)
	if err != nil {
		return 0, err
	}
	return stats[EventPending] + stats[EventRetrying], nil
}

func (r *Relay) GetDeadLetterCount(ctx context.Context) (int64, error) {
	stats, err := r.queue.Stats(ctx)
	if err != nil {
		return 0, err
	}
	return stats[EventDeadLetter], nil
}
