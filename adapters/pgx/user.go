package pgx

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lborres/farewatch/core"
)

const userColumns = `id, email, first_name, last_name, phone, tier, is_active, is_verified, is_admin,
	onboarding_step, onboarding_completed, home_airports, favorite_destinations, travel_types,
	email_notifications, sms_notifications, notification_frequency, last_login_at, created_at, updated_at`

func scanUser(row pgx.Row) (*core.User, error) {
	u := &core.User{}
	var tier string
	var lastLogin *time.Time
	err := row.Scan(
		&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Phone, &tier, &u.IsActive, &u.IsVerified, &u.IsAdmin,
		&u.OnboardingStep, &u.OnboardingCompleted, &u.HomeAirports, &u.FavoriteDestinations, &u.TravelTypes,
		&u.EmailNotifications, &u.SMSNotifications, &u.NotificationFrequency, &lastLogin, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Tier = core.Tier(tier)
	u.LastLoginAt = lastLogin
	return u, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (a *Adapter) CreateUser(ctx context.Context, user *core.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Tier == "" {
		user.Tier = core.TierFree
	}

	query := `INSERT INTO users (id, email, first_name, last_name, phone, tier, is_active, is_verified, is_admin,
		onboarding_step, onboarding_completed, home_airports, favorite_destinations, travel_types,
		email_notifications, sms_notifications, notification_frequency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING created_at, updated_at`

	err := a.pool.QueryRow(ctx, query,
		user.ID, user.Email, user.FirstName, user.LastName, user.Phone, string(user.Tier), user.IsActive, user.IsVerified, user.IsAdmin,
		user.OnboardingStep, user.OnboardingCompleted, orEmpty(user.HomeAirports), orEmpty(user.FavoriteDestinations), orEmpty(user.TravelTypes),
		user.EmailNotifications, user.SMSNotifications, user.NotificationFrequency,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrUserExists
		}
		return err
	}
	return nil
}

func (a *Adapter) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, core.ErrUserNotFound
	}
	user, err := scanUser(a.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrUserNotFound
	}
	return user, err
}

func (a *Adapter) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	user, err := scanUser(a.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, core.NormalizeEmail(email)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrUserNotFound
	}
	return user, err
}

func (a *Adapter) UpdateUser(ctx context.Context, user *core.User) error {
	query := `UPDATE users SET email = $1, first_name = $2, last_name = $3, phone = $4, tier = $5,
		is_active = $6, is_verified = $7, is_admin = $8, onboarding_step = $9, onboarding_completed = $10,
		home_airports = $11, favorite_destinations = $12, travel_types = $13, email_notifications = $14,
		sms_notifications = $15, notification_frequency = $16, last_login_at = $17, updated_at = now()
		WHERE id = $18`

	tag, err := a.pool.Exec(ctx, query,
		user.Email, user.FirstName, user.LastName, user.Phone, string(user.Tier),
		user.IsActive, user.IsVerified, user.IsAdmin, user.OnboardingStep, user.OnboardingCompleted,
		orEmpty(user.HomeAirports), orEmpty(user.FavoriteDestinations), orEmpty(user.TravelTypes), user.EmailNotifications,
		user.SMSNotifications, user.NotificationFrequency, user.LastLoginAt, user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrUserExists
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrUserNotFound
	}
	return nil
}

func (a *Adapter) ListUsers(ctx context.Context, limit, offset int) ([]*core.User, int, error) {
	var total int
	if err := a.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := a.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, email LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]*core.User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return users, total, nil
}
