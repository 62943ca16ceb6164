package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"schedule-booking-api/internal/model"
)

func (s *Store) BookingExists(ctx context.Context, userID string, date time.Time) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM bookings WHERE user_id = $1 AND date = $2)`,
		userID, date,
	).Scan(&exists)
	return exists, err
}

// BookingTimes lists the instants of the user's bookings in [from, to).
func (s *Store) BookingTimes(ctx context.Context, userID string, from, to time.Time) ([]time.Time, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT date FROM bookings
		 WHERE user_id = $1 AND date >= $2 AND date < $3
		 ORDER BY date`, userID, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CreateBooking inserts the booking and its outbox event atomically. A
// concurrent booking for the same (user, date) surfaces as ErrDuplicate.
func (s *Store) CreateBooking(ctx context.Context, b *model.Booking, evt model.OutboxEvent) error {
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO bookings (id, user_id, name, email, observations, date)
			 VALUES ($1,$2,$3,$4,NULLIF($5, ''),$6)
			 RETURNING created_at`,
			b.ID, b.UserID, b.Name, b.Email, b.Observations, b.Date,
		).Scan(&b.CreatedAt)
		if err != nil {
			return err
		}
		return insertOutbox(ctx, tx, evt)
	})
	return translate(err)
}

func (s *Store) BookingByID(ctx context.Context, id string) (*model.Booking, error) {
	b := &model.Booking{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, name, email, COALESCE(observations, ''), date, created_at
		 FROM bookings WHERE id = $1`, id,
	).Scan(&b.ID, &b.UserID, &b.Name, &b.Email, &b.Observations, &b.Date, &b.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return b, nil
}
