package pgx

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lborres/farewatch/core"
)

const sessionColumns = `id, user_id, token_hash, ip_address, user_agent, expires_at, created_at, updated_at`

func scanSession(row pgx.Row) (*core.Session, error) {
	s := &core.Session{}
	err := row.Scan(&s.ID, &s.UserID, &s.TokenHash, &s.IPAddress, &s.UserAgent, &s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrSessionNotFound
		}
		return nil, err
	}
	return s, nil
}

func (a *Adapter) CreateSession(ctx context.Context, s *core.Session) error {
	_, err := a.pool.Exec(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.UserID, s.TokenHash, s.IPAddress, s.UserAgent, s.ExpiresAt, s.CreatedAt, s.UpdatedAt,
	)
	return err
}

func (a *Adapter) GetSessionByHash(ctx context.Context, tokenHash string) (*core.Session, error) {
	return scanSession(a.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE token_hash = $1`, tokenHash))
}

func (a *Adapter) GetSessionByID(ctx context.Context, id string) (*core.Session, error) {
	return scanSession(a.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
}

func (a *Adapter) GetUserSessions(ctx context.Context, userID string) ([]*core.Session, error) {
	rows, err := a.pool.Query(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*core.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (a *Adapter) DeleteSessionByID(ctx context.Context, id string) error {
	return a.deleteOne(ctx, `DELETE FROM sessions WHERE id = $1`, id)
}

func (a *Adapter) DeleteSessionByHash(ctx context.Context, tokenHash string) error {
	return a.deleteOne(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
}

func (a *Adapter) deleteOne(ctx context.Context, query string, arg string) error {
	tag, err := a.pool.Exec(ctx, query, arg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrSessionNotFound
	}
	return nil
}

func (a *Adapter) DeleteUserSessions(ctx context.Context, userID string) (int, error) {
	tag, err := a.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (a *Adapter) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	tag, err := a.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
