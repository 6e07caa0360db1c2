package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Event states in product_outbox. Pending and retrying events are due for
// publishing once available_at has passed.
const (
	EventPending    = "pending"
	EventRetrying   = "retrying"
	EventPublished  = "published"
	EventDeadLetter = "dead_letter"
)

const (
	DefaultStream         = "stream:product_extracted"
	EventProductExtracted = "PRODUCT_EXTRACTED"

	// MaxPublishAttempts failed publishes move an event to dead letter.
	MaxPublishAttempts = 5

	maxBackoffSeconds = 300
	defaultClaimLease = 30 * time.Second
	eventColumns      = "id, product_id, event_type, stream, payload, status, attempts, last_error, created_at, available_at, published_at"
	defaultClaimLimit = 100
)

var ErrEventNotFound = errors.New("outbox event not found")

// Event is one row of product_outbox.
type Event struct {
	ID          uuid.UUID
	ProductID   uuid.UUID
	Type        string
	Stream      string
	Payload     json.RawMessage
	Status      string
	Attempts    int
	LastError   *string
	CreatedAt   time.Time
	AvailableAt time.Time
	PublishedAt *time.Time
}

// Outbox stores product events next to the products they describe, so both
// commit or roll back together.
type Outbox struct {
	db    Querier
	lease time.Duration
}

func NewOutbox(db Querier) *Outbox {
	return &Outbox{db: db, lease: defaultClaimLease}
}

// Enqueue inserts event inside tx. ID and Stream are filled in when empty;
// the timestamps come from the database.
func (o *Outbox) Enqueue(ctx context.Context, tx pgx.Tx, event *Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Stream == "" {
		event.Stream = DefaultStream
	}
	event.Status = EventPending

	err := tx.QueryRow(ctx, `
		INSERT INTO product_outbox (id, product_id, event_type, stream, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, available_at`,
		event.ID, event.ProductID, event.Type, event.Stream, event.Payload,
	).Scan(&event.CreatedAt, &event.AvailableAt)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s event: %w", event.Type, err)
	}
	return nil
}

// Claim returns up to limit due events, oldest first, and pushes their
// available_at forward by the claim lease. Concurrent relays skip rows
// another relay has locked, and an event whose relay died becomes due again
// once the lease runs out.
func (o *Outbox) Claim(ctx context.Context, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = defaultClaimLimit
	}

	rows, err := o.db.Query(ctx, `
		UPDATE product_outbox
		SET available_at = NOW() + $2 * INTERVAL '1 second'
		WHERE id IN (
			SELECT id FROM product_outbox
			WHERE status = ANY($3) AND available_at <= NOW()
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+eventColumns,
		limit, o.lease.Seconds(), []string{EventPending, EventRetrying})
	if err != nil {
		return nil, fmt.Errorf("failed to claim events: %w", err)
	}

	events, err := pgx.CollectRows(rows, scanEvent)
	if err != nil {
		return nil, fmt.Errorf("failed to scan events: %w", err)
	}

	// RETURNING does not keep the subquery order.
	slices.SortStableFunc(events, func(a, b *Event) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return events, nil
}

func (o *Outbox) MarkPublished(ctx context.Context, id uuid.UUID) error {
	tag, err := o.db.Exec(ctx, `
		UPDATE product_outbox
		SET status = $2, published_at = NOW(), last_error = NULL
		WHERE id = $1`,
		id, EventPublished)
	if err != nil {
		return fmt.Errorf("failed to mark event %s published: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	return nil
}

// MarkFailed records a failed publish and returns the new status. The next
// attempt waits 2^attempts seconds, at most five minutes.
func (o *Outbox) MarkFailed(ctx context.Context, id uuid.UUID, cause error) (string, error) {
	var status string
	err := o.db.QueryRow(ctx, `
		UPDATE product_outbox
		SET attempts = attempts + 1,
			last_error = $2,
			status = CASE WHEN attempts + 1 >= $3 THEN $4 ELSE $5 END,
			available_at = NOW() + LEAST(POWER(2, attempts + 1), $6) * INTERVAL '1 second'
		WHERE id = $1
		RETURNING status`,
		id, cause.Error(), MaxPublishAttempts, EventDeadLetter, EventRetrying, maxBackoffSeconds,
	).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("failed to mark event %s failed: %w", id, err)
	}
	return status, nil
}

// Stats counts events per status. Statuses without events are absent.
func (o *Outbox) Stats(ctx context.Context) (map[string]int64, error) {
	rows, err := o.db.Query(ctx, `SELECT status, COUNT(*) FROM product_outbox GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int64)
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan event count: %w", err)
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func scanEvent(row pgx.CollectableRow) (*Event, error) {
	var e Event
	err := row.Scan(
		&e.ID, &e.ProductID, &e.Type, &e.Stream, &e.Payload, &e.Status,
		&e.Attempts, &e.LastError, &e.CreatedAt, &e.AvailableAt, &e.PublishedAt,
	)
	return &e, err
}
