package pgx

import (
	"context"

	"github.com/google/uuid"

	"github.com/lborres/farewatch/core"
)

func (a *Adapter) CreateAccount(ctx context.Context, acc *core.Account) error {
	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}

	query := `INSERT INTO accounts (id, user_id, provider_id, account_id, password)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	err := a.pool.QueryRow(ctx, query, acc.ID, acc.UserID, acc.ProviderID, acc.AccountID, acc.Password).
		Scan(&acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrUserExists
		}
		return err
	}
	return nil
}

func (a *Adapter) GetAccountByUserAndProvider(ctx context.Context, userID, providerID string) ([]*core.Account, error) {
	query := `SELECT id, user_id, provider_id, account_id, password, created_at, updated_at
		FROM accounts WHERE user_id = $1 AND provider_id = $2 ORDER BY created_at`

	rows, err := a.pool.Query(ctx, query, userID, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*core.Account
	for rows.Next() {
		acc := &core.Account{}
		if err := rows.Scan(&acc.ID, &acc.UserID, &acc.ProviderID, &acc.AccountID, &acc.Password, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}

	return accounts, rows.Err()
}

func (a *Adapter) UpdateAccount(ctx context.Context, acc *core.Account) error {
	tag, err := a.pool.Exec(ctx,
		`UPDATE accounts SET account_id = $1, password = $2, updated_at = now() WHERE id = $3`,
		acc.AccountID, acc.Password, acc.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrUserNotFound
	}
	return nil
}
