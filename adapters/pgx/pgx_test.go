package pgx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lborres/farewatch/core"
)

const testUserID = "550e8400-e29b-41d4-a716-446655440000"

var userRowColumns = []string{
	"id", "email", "first_name", "last_name", "phone", "tier", "is_active", "is_verified", "is_admin",
	"onboarding_step", "onboarding_completed", "home_airports", "favorite_destinations", "travel_types",
	"email_notifications", "sms_notifications", "notification_frequency", "last_login_at", "created_at", "updated_at",
}

var sessionRowColumns = []string{"id", "user_id", "token_hash", "ip_address", "user_agent", "expires_at", "created_at", "updated_at"}

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *Adapter) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, New(mock)
}

func userRow(rows *pgxmock.Rows, email string, lastLogin *time.Time, created time.Time) *pgxmock.Rows {
	return rows.AddRow(
		testUserID, email, "Ada", "Lovelace", "", "premium", true, false, false,
		3, false, []string{"CDG"}, []string{}, []string{"beach"},
		true, false, "daily", lastLogin, created, created,
	)
}

// anyArgs matches n arguments of any value.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestMigrate(t *testing.T) {
	mock, adapter := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, adapter.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser(t *testing.T) {
	mock, adapter := newMock(t)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO users").
		WithArgs(pgxmock.AnyArg(), "ada@example.com", "Ada", "", "", "free", true, false, false,
			1, false, []string{}, []string{}, []string{}, true, false, "instant").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(created, created))

	user := &core.User{
		Email:                 "ada@example.com",
		FirstName:             "Ada",
		IsActive:              true,
		OnboardingStep:        1,
		EmailNotifications:    true,
		NotificationFrequency: "instant",
	}
	err := adapter.CreateUser(context.Background(), user)

	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, core.TierFree, user.Tier)
	assert.Equal(t, created, user.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser_Duplicate(t *testing.T) {
	mock, adapter := newMock(t)
	mock.ExpectQuery("INSERT INTO users").
		WithArgs(anyArgs(17)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	err := adapter.CreateUser(context.Background(), &core.User{Email: "ada@example.com"})

	assert.ErrorIs(t, err, core.ErrUserExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByEmail(t *testing.T) {
	mock, adapter := newMock(t)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	login := created.Add(time.Hour)

	mock.ExpectQuery("FROM users WHERE email").
		WithArgs("ada@example.com").
		WillReturnRows(userRow(pgxmock.NewRows(userRowColumns), "ada@example.com", &login, created))

	user, err := adapter.GetUserByEmail(context.Background(), " ADA@example.com")

	require.NoError(t, err)
	assert.Equal(t, testUserID, user.ID)
	assert.Equal(t, core.TierPremium, user.Tier)
	assert.Equal(t, 3, user.OnboardingStep)
	assert.Equal(t, []string{"CDG"}, user.HomeAirports)
	require.NotNil(t, user.LastLoginAt)
	assert.Equal(t, login, *user.LastLoginAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByID_NotFound(t *testing.T) {
	mock, adapter := newMock(t)
	mock.ExpectQuery("FROM users WHERE id").
		WithArgs(testUserID).
		WillReturnError(pgx.ErrNoRows)

	_, err := adapter.GetUserByID(context.Background(), testUserID)

	assert.ErrorIs(t, err, core.ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByID_MalformedID(t *testing.T) {
	mock, adapter := newMock(t)

	_, err := adapter.GetUserByID(context.Background(), "not-a-uuid")

	assert.ErrorIs(t, err, core.ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUser(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		execErr  error
		wantErr  error
	}{
		{name: "updated", affected: 1},
		{name: "missing", affected: 0, wantErr: core.ErrUserNotFound},
		{name: "email taken", execErr: &pgconn.PgError{Code: "23505"}, wantErr: core.ErrUserExists},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			mock, adapter := newMock(t)
			exp := mock.ExpectExec("UPDATE users SET").
				WithArgs(append([]any{"ada@example.com"}, append(anyArgs(16), testUserID)...)...)
			if test.execErr != nil {
				exp.WillReturnError(test.execErr)
			} else {
				exp.WillReturnResult(pgxmock.NewResult("UPDATE", test.affected))
			}

			err := adapter.UpdateUser(context.Background(), &core.User{ID: testUserID, Email: "ada@example.com", Tier: core.TierFree})

			if test.wantErr != nil {
				assert.ErrorIs(t, err, test.wantErr)
			} else {
				assert.NoError(t, err)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestListUsers(t *testing.T) {
	mock, adapter := newMock(t)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))
	rows := pgxmock.NewRows(userRowColumns)
	userRow(rows, "ada@example.com", (*time.Time)(nil), created)
	mock.ExpectQuery("ORDER BY created_at DESC").
		WithArgs(2, 4).
		WillReturnRows(rows)

	users, total, err := adapter.ListUsers(context.Background(), 2, 4)

	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, users, 1)
	assert.Nil(t, users[0].LastLoginAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccounts(t *testing.T) {
	mock, adapter := newMock(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	hash := "$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$a2V5"

	mock.ExpectQuery("INSERT INTO accounts").
		WithArgs(pgxmock.AnyArg(), testUserID, core.ProviderCredential, testUserID, &hash).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectQuery("FROM accounts WHERE user_id").
		WithArgs(testUserID, core.ProviderCredential).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "provider_id", "account_id", "password", "created_at", "updated_at"}).
			AddRow("acc-1", testUserID, core.ProviderCredential, testUserID, &hash, now, now))

	acc := &core.Account{UserID: testUserID, ProviderID: core.ProviderCredential, AccountID: testUserID, Password: &hash}
	require.NoError(t, adapter.CreateAccount(ctx, acc))
	assert.NotEmpty(t, acc.ID)

	accounts, err := adapter.GetAccountByUserAndProvider(ctx, testUserID, core.ProviderCredential)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	require.NotNil(t, accounts[0].Password)
	assert.Equal(t, hash, *accounts[0].Password)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessions(t *testing.T) {
	mock, adapter := newMock(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := &core.Session{
		ID: "sess-1", UserID: testUserID, TokenHash: "abc", IPAddress: "10.0.0.1", UserAgent: "cli",
		ExpiresAt: now.Add(time.Hour), CreatedAt: now, UpdatedAt: now,
	}

	mock.ExpectExec("INSERT INTO sessions").
		WithArgs(s.ID, s.UserID, s.TokenHash, s.IPAddress, s.UserAgent, s.ExpiresAt, s.CreatedAt, s.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("FROM sessions WHERE token_hash").
		WithArgs("abc").
		WillReturnRows(pgxmock.NewRows(sessionRowColumns).
			AddRow(s.ID, s.UserID, s.TokenHash, s.IPAddress, s.UserAgent, s.ExpiresAt, s.CreatedAt, s.UpdatedAt))
	mock.ExpectQuery("FROM sessions WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("DELETE FROM sessions WHERE token_hash").
		WithArgs("abc").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("DELETE FROM sessions WHERE user_id").
		WithArgs(testUserID).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec("DELETE FROM sessions WHERE expires_at").
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 5))

	require.NoError(t, adapter.CreateSession(ctx, s))

	got, err := adapter.GetSessionByHash(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, s, got)

	_, err = adapter.GetSessionByID(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)

	err = adapter.DeleteSessionByHash(ctx, "abc")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)

	n, err := adapter.DeleteUserSessions(ctx, testUserID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = adapter.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserSessions_QueryError(t *testing.T) {
	mock, adapter := newMock(t)
	boom := errors.New("connection refused")
	mock.ExpectQuery("FROM sessions WHERE user_id").
		WithArgs(testUserID).
		WillReturnError(boom)

	_, err := adapter.GetUserSessions(context.Background(), testUserID)

	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

var alertPreferenceRowColumns = []string{
	"id", "user_id", "min_discount_percentage", "max_price_europe", "max_price_international",
	"preferred_routes", "excluded_airlines", "advance_days_min", "advance_days_max", "max_alerts_per_week", "created_at", "updated_at",
}

func TestGetAlertPreferences(t *testing.T) {
	mock, adapter := newMock(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery("FROM alert_preferences WHERE user_id").
		WithArgs(testUserID).
		WillReturnRows(pgxmock.NewRows(alertPreferenceRowColumns).
			AddRow("pref-1", testUserID, 40.0, 150.0, 900.0, []string{"CDG-JFK"}, []string{}, 14, 120, 3, now, now))

	prefs, err := adapter.GetAlertPreferences(context.Background(), testUserID)

	require.NoError(t, err)
	assert.Equal(t, 40.0, prefs.MinDiscountPercentage)
	assert.Equal(t, []string{"CDG-JFK"}, prefs.PreferredRoutes)
	assert.Equal(t, 14, prefs.AdvanceDaysMin)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAlertPreferences_Missing(t *testing.T) {
	mock, adapter := newMock(t)
	mock.ExpectQuery("FROM alert_preferences WHERE user_id").
		WithArgs(testUserID).
		WillReturnError(pgx.ErrNoRows)

	_, err := adapter.GetAlertPreferences(context.Background(), testUserID)
	assert.ErrorIs(t, err, core.ErrAlertPreferencesNotFound)

	_, err = adapter.GetAlertPreferences(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, core.ErrAlertPreferencesNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAlertPreferences(t *testing.T) {
	mock, adapter := newMock(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO alert_preferences").
		WithArgs(pgxmock.AnyArg(), testUserID, 30.0, 200.0, 800.0, []string{}, []string{}, 7, 180, 3).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("pref-1", now, now))

	prefs := core.DefaultAlertPreferences(testUserID)
	require.NoError(t, adapter.SaveAlertPreferences(context.Background(), prefs))

	assert.Equal(t, "pref-1", prefs.ID)
	assert.Equal(t, now, prefs.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAlertPreferences_UnknownUser(t *testing.T) {
	mock, adapter := newMock(t)
	mock.ExpectQuery("INSERT INTO alert_preferences").
		WithArgs(anyArgs(10)...).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "alert_preferences_user_id_fkey"})

	err := adapter.SaveAlertPreferences(context.Background(), core.DefaultAlertPreferences(testUserID))

	assert.ErrorIs(t, err, core.ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
