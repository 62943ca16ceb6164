package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"schedule-booking-api/internal/model"
)

// ReplaceIntervals swaps the user's whole weekly schedule. Readers see either
// the old set or the new one.
func (s *Store) ReplaceIntervals(ctx context.Context, userID string, intervals []model.WeeklyInterval) error {
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM time_intervals WHERE user_id = $1`, userID); err != nil {
			return err
		}
		for _, iv := range intervals {
			_, err := tx.Exec(ctx,
				`INSERT INTO time_intervals (user_id, week_day, start_minutes, end_minutes)
				 VALUES ($1,$2,$3,$4)`,
				userID, iv.WeekDay, iv.StartMinutes, iv.EndMinutes,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	return translate(err)
}

func (s *Store) ListIntervals(ctx context.Context, userID string) ([]model.WeeklyInterval, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, week_day, start_minutes, end_minutes
		 FROM time_intervals WHERE user_id = $1 ORDER BY week_day`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WeeklyInterval
	for rows.Next() {
		var iv model.WeeklyInterval
		if err := rows.Scan(&iv.UserID, &iv.WeekDay, &iv.StartMinutes, &iv.EndMinutes); err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

// IntervalForWeekDay returns ErrNotFound when the user takes no bookings that day.
func (s *Store) IntervalForWeekDay(ctx context.Context, userID string, weekDay int) (*model.WeeklyInterval, error) {
	iv := &model.WeeklyInterval{}
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, week_day, start_minutes, end_minutes
		 FROM time_intervals WHERE user_id = $1 AND week_day = $2`, userID, weekDay,
	).Scan(&iv.UserID, &iv.WeekDay, &iv.StartMinutes, &iv.EndMinutes)
	if err != nil {
		return nil, translate(err)
	}
	return iv, nil
}
