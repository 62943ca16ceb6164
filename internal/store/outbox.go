package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"schedule-booking-api/internal/model"
)

func insertOutbox(ctx context.Context, tx pgx.Tx, evt model.OutboxEvent) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO outbox_events (aggregate_type, aggregate_id, event_type, payload)
		 VALUES ($1,$2,$3,$4)`,
		evt.AggregateType, evt.AggregateID, evt.EventType, evt.Payload,
	)
	return err
}

// DrainOutbox locks up to limit unpublished events, passes each to handle in
// id order and marks the handled ones published. It stops at the first
// handler error; that event and the rest stay pending for the next round.
// Other relays skip locked rows, so events are never handled twice at once.
func (s *Store) DrainOutbox(ctx context.Context, limit int, handle func(context.Context, model.OutboxEvent) error) (int, error) {
	var done int
	var handleErr error

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT id, event_id, aggregate_type, aggregate_id, event_type, payload, created_at
			 FROM outbox_events
			 WHERE published_at IS NULL
			 ORDER BY id
			 LIMIT $1
			 FOR UPDATE SKIP LOCKED`, limit)
		if err != nil {
			return err
		}
		var events []model.OutboxEvent
		for rows.Next() {
			var e model.OutboxEvent
			if err := rows.Scan(&e.ID, &e.EventID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
				rows.Close()
				return err
			}
			events = append(events, e)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		var ids []int64
		for _, e := range events {
			if handleErr = handle(ctx, e); handleErr != nil {
				break
			}
			ids = append(ids, e.ID)
		}
		if len(ids) == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx,
			`UPDATE outbox_events SET published_at = now() WHERE id = ANY($1)`, ids); err != nil {
			return err
		}
		done = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return done, handleErr
}
