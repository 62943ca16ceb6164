package store

import (
	"context"

	"schedule-booking-api/internal/model"
)

const userColumns = `id, username, name, COALESCE(email, ''), COALESCE(bio, ''),
	COALESCE(avatar_url, ''), created_at, updated_at`

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (id, username, name) VALUES ($1,$2,$3)
		 RETURNING created_at, updated_at`,
		u.ID, u.Username, u.Name,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	return translate(err)
}

func (s *Store) UserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (s *Store) UserByID(ctx context.Context, id string) (*model.User, error) {
	return s.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *Store) scanUser(ctx context.Context, q string, arg any) (*model.User, error) {
	u := &model.User{}
	err := s.pool.QueryRow(ctx, q, arg).Scan(
		&u.ID, &u.Username, &u.Name, &u.Email, &u.Bio, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, translate(err)
	}
	return u, nil
}

func (s *Store) UpdateBio(ctx context.Context, userID, bio string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET bio = $1, updated_at = now() WHERE id = $2`, bio, userID)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
