package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"schedule-booking-api/internal/model"
)

const accountColumns = `id, user_id, provider, provider_account_id,
	COALESCE(access_token, ''), COALESCE(refresh_token, ''), expires_at,
	COALESCE(scope, ''), COALESCE(token_type, ''), COALESCE(id_token, ''),
	created_at, updated_at`

func (s *Store) AccountByProvider(ctx context.Context, provider, providerAccountID string) (*model.Account, error) {
	return s.scanAccount(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE provider = $1 AND provider_account_id = $2`,
		provider, providerAccountID)
}

func (s *Store) AccountForUser(ctx context.Context, userID, provider string) (*model.Account, error) {
	return s.scanAccount(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = $1 AND provider = $2
		 ORDER BY created_at LIMIT 1`,
		userID, provider)
}

func (s *Store) scanAccount(ctx context.Context, q string, args ...any) (*model.Account, error) {
	a := &model.Account{}
	err := s.pool.QueryRow(ctx, q, args...).Scan(
		&a.ID, &a.UserID, &a.Provider, &a.ProviderAccountID,
		&a.AccessToken, &a.RefreshToken, &a.ExpiresAt,
		&a.Scope, &a.TokenType, &a.IDToken,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, translate(err)
	}
	if err := s.openTokens(a); err != nil {
		return nil, err
	}
	return a, nil
}

// LinkAccount attaches a provider account to an existing user and copies the
// provider's profile fields onto the user, in one transaction.
func (s *Store) LinkAccount(ctx context.Context, a *model.Account, name, email, avatarURL string) error {
	access, refresh, idToken, err := s.sealTokens(a)
	if err != nil {
		return err
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}

	err = s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE users SET name = $1, email = NULLIF($2, ''), avatar_url = NULLIF($3, ''), updated_at = now()
			 WHERE id = $4`,
			name, email, avatarURL, a.UserID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO accounts (id, user_id, provider, provider_account_id, access_token,
			   refresh_token, expires_at, scope, token_type, id_token)
			 VALUES ($1,$2,$3,$4,$5,NULLIF($6, ''),$7,$8,$9,NULLIF($10, ''))`,
			a.ID, a.UserID, a.Provider, a.ProviderAccountID, access,
			refresh, a.ExpiresAt, a.Scope, a.TokenType, idToken,
		)
		return err
	})
	return translate(err)
}

// UpdateAccountTokens stores a fresh grant. An empty refresh token keeps the
// stored one, since providers only send it on first consent.
func (s *Store) UpdateAccountTokens(ctx context.Context, accountID, accessToken, refreshToken string, expiresAt *time.Time, scope string) error {
	access, err := s.seal(accessToken)
	if err != nil {
		return err
	}
	refresh, err := s.seal(refreshToken)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts
		 SET access_token = $1,
		     refresh_token = COALESCE(NULLIF($2, ''), refresh_token),
		     expires_at = $3,
		     scope = COALESCE(NULLIF($4, ''), scope),
		     updated_at = now()
		 WHERE id = $5`,
		access, refresh, expiresAt, scope, accountID,
	)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) sealTokens(a *model.Account) (access, refresh, idToken string, err error) {
	if access, err = s.seal(a.AccessToken); err != nil {
		return
	}
	if refresh, err = s.seal(a.RefreshToken); err != nil {
		return
	}
	idToken, err = s.seal(a.IDToken)
	return
}

func (s *Store) openTokens(a *model.Account) error {
	var err error
	if a.AccessToken, err = s.open(a.AccessToken); err != nil {
		return err
	}
	if a.RefreshToken, err = s.open(a.RefreshToken); err != nil {
		return err
	}
	a.IDToken, err = s.open(a.IDToken)
	return err
}

func (s *Store) seal(v string) (string, error) {
	if v == "" || s.sealer == nil {
		return v, nil
	}
	out, err := s.sealer.Seal(v)
	if err != nil {
		return "", fmt.Errorf("seal token: %w", err)
	}
	return out, nil
}

func (s *Store) open(v string) (string, error) {
	if v == "" || s.sealer == nil {
		return v, nil
	}
	out, err := s.sealer.Open(v)
	if err != nil {
		return "", fmt.Errorf("open token: %w", err)
	}
	return out, nil
}
