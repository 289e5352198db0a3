package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/lborres/farewatch/core"
	"github.com/lborres/farewatch/pkg/crypto"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

type AuthService struct {
	db          core.AuthStorage
	passwords   crypto.PasswordHandler
	sessions    *SessionManager
	validator   *core.Validator
	adminEmails map[string]struct{}
	logger      *slog.Logger
	now         func() time.Time
}

// Ensure AuthService implements AuthHandler
var _ core.AuthHandler = (*AuthService)(nil)

func NewAuthService(db core.AuthStorage, sessions *SessionManager, passwords crypto.PasswordHandler) *AuthService {
	return &AuthService{
		db:          db,
		passwords:   passwords,
		sessions:    sessions,
		validator:   core.NewValidator(),
		adminEmails: make(map[string]struct{}),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:         time.Now,
	}
}

// WithAdminEmails marks accounts registered with these emails as administrators.
func (s *AuthService) WithAdminEmails(emails ...string) *AuthService {
	for _, e := range emails {
		if e = core.NormalizeEmail(e); e != "" {
			s.adminEmails[e] = struct{}{}
		}
	}
	return s
}

func (s *AuthService) WithLogger(logger *slog.Logger) *AuthService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *AuthService) Sessions() *SessionManager {
	return s.sessions
}

// SignUp registers a new user with email and password. No session is created;
// clients log in afterwards.
func (s *AuthService) SignUp(ctx context.Context, input core.SignUpInput) (*core.User, error) {
	input.Email = core.NormalizeEmail(input.Email)
	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}
	email := input.Email

	existing, err := s.db.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, core.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, core.ErrUserExists
	}

	hashedPassword, err := s.passwords.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	_, isAdmin := s.adminEmails[email]
	now := s.now()
	user := &core.User{
		Email:                 email,
		FirstName:             input.FirstName,
		LastName:              input.LastName,
		Tier:                  core.TierFree,
		IsActive:              true,
		IsAdmin:               isAdmin,
		OnboardingStep:        1,
		HomeAirports:          []string{},
		FavoriteDestinations:  []string{},
		TravelTypes:           []string{},
		EmailNotifications:    true,
		NotificationFrequency: "instant",
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := s.db.CreateUser(ctx, user); err != nil {
		if errors.Is(err, core.ErrUserExists) {
			return nil, core.ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	// For the credential provider, account id = user id
	account := &core.Account{
		UserID:     user.ID,
		ProviderID: core.ProviderCredential,
		AccountID:  user.ID,
		Password:   &hashedPassword,
	}
	if err := s.db.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	// Missing preferences are recreated on first read
	if err := s.db.SaveAlertPreferences(ctx, core.DefaultAlertPreferences(user.ID)); err != nil {
		s.logger.WarnContext(ctx, "failed to create alert preferences", "user_id", user.ID, "error", err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "admin", isAdmin)
	return user, nil
}

// SignIn authenticates a user with email and password
func (s *AuthService) SignIn(ctx context.Context, input core.SignInInput, ipAddress, userAgent string) (*core.SignInResult, error) {
	input.Email = core.NormalizeEmail(input.Email)
	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}

	user, err := s.db.GetUserByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			return nil, core.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	accounts, err := s.db.GetAccountByUserAndProvider(ctx, user.ID, core.ProviderCredential)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if len(accounts) == 0 || accounts[0].Password == nil {
		return nil, core.ErrInvalidCredentials
	}

	valid, err := s.passwords.Verify(input.Password, *accounts[0].Password)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return nil, core.ErrInvalidCredentials
	}

	// Only callers who know the password learn the account is inactive
	if !user.IsActive {
		return nil, core.ErrInactiveUser
	}

	created, err := s.sessions.Create(ctx, user.ID, ipAddress, userAgent)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	loginAt := s.now()
	user.LastLoginAt = &loginAt
	if err := s.db.UpdateUser(ctx, user); err != nil {
		s.logger.WarnContext(ctx, "failed to record last login", "user_id", user.ID, "error", err)
	}

	return &core.SignInResult{
		User:    user,
		Session: created.Session,
		Token:   created.Token,
	}, nil
}

// SignOut invalidates the session behind token
func (s *AuthService) SignOut(ctx context.Context, token string) error {
	if err := s.sessions.Destroy(ctx, token); err != nil {
		if errors.Is(err, core.ErrSessionNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// SignOutEverywhere revokes every session of the user
func (s *AuthService) SignOutEverywhere(ctx context.Context, userID string) (int, error) {
	count, err := s.sessions.DestroyAllUserSessions(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "signed out everywhere", "user_id", userID, "sessions", count)
	return count, nil
}

// ListSessions returns the user's unexpired sessions
func (s *AuthService) ListSessions(ctx context.Context, userID string) ([]*core.Session, error) {
	return s.sessions.Active(ctx, userID)
}

// RevokeSession ends one of the user's own sessions
func (s *AuthService) RevokeSession(ctx context.Context, userID, sessionID string) error {
	return s.sessions.DestroyBySessionID(ctx, userID, sessionID)
}

// GetSession resolves a bearer token to its session and active user
func (s *AuthService) GetSession(ctx context.Context, token string) (*core.SessionData, error) {
	session, err := s.sessions.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.db.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			return nil, core.ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !user.IsActive {
		return nil, core.ErrInactiveUser
	}

	return &core.SessionData{User: user, Session: session}, nil
}

// UpdateProfile applies a partial update and returns the stored profile
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, patch core.ProfileUpdate) (*core.User, error) {
	if err := s.validator.Validate(patch); err != nil {
		return nil, err
	}
	return s.mutateUser(ctx, userID, patch.Apply)
}

// UpdateOnboarding records an onboarding step and its data
func (s *AuthService) UpdateOnboarding(ctx context.Context, userID string, input core.OnboardingUpdate) (*core.User, error) {
	if err := s.validator.Validate(input); err != nil {
		return nil, err
	}
	return s.mutateUser(ctx, userID, input.Apply)
}

func (s *AuthService) mutateUser(ctx context.Context, userID string, apply func(*core.User)) (*core.User, error) {
	user, err := s.db.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	apply(user)
	user.UpdatedAt = s.now()

	if err := s.db.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return s.db.GetUserByID(ctx, userID)
}

// ListUsers pages through all users for administrators
func (s *AuthService) ListUsers(ctx context.Context, limit, offset int) (*core.UserPage, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	users, total, err := s.db.ListUsers(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return &core.UserPage{Users: users, Total: total}, nil
}

// AlertPreferences returns the user's deal alert thresholds, storing the
// defaults first if the user has none.
func (s *AuthService) AlertPreferences(ctx context.Context, userID string) (*core.AlertPreferences, error) {
	prefs, err := s.db.GetAlertPreferences(ctx, userID)
	if err == nil {
		return prefs, nil
	}
	if !errors.Is(err, core.ErrAlertPreferencesNotFound) {
		return nil, fmt.Errorf("failed to get alert preferences: %w", err)
	}

	prefs = core.DefaultAlertPreferences(userID)
	if err := s.db.SaveAlertPreferences(ctx, prefs); err != nil {
		return nil, fmt.Errorf("failed to create alert preferences: %w", err)
	}
	return prefs, nil
}

// UpdateAlertPreferences applies a partial update to the user's thresholds
func (s *AuthService) UpdateAlertPreferences(ctx context.Context, userID string, patch core.AlertPreferencesUpdate) (*core.AlertPreferences, error) {
	if err := s.validator.Validate(patch); err != nil {
		return nil, err
	}

	prefs, err := s.AlertPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	patch.Apply(prefs)
	if prefs.AdvanceDaysMin > prefs.AdvanceDaysMax {
		return nil, core.NewFieldError("advance_days_min", "advance_days_min must not exceed advance_days_max")
	}

	if err := s.db.SaveAlertPreferences(ctx, prefs); err != nil {
		return nil, fmt.Errorf("failed to update alert preferences: %w", err)
	}
	return prefs, nil
}

// EnsureAdmin creates the administrator account if missing and grants the admin
// flag to an existing one. The password is only used on creation.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) (*core.User, error) {
	email = core.NormalizeEmail(email)
	s.WithAdminEmails(email)

	user, err := s.db.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if user.IsAdmin {
			return user, nil
		}
		user.IsAdmin = true
		user.UpdatedAt = s.now()
		if err := s.db.UpdateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to promote admin: %w", err)
		}
		return user, nil
	case errors.Is(err, core.ErrUserNotFound):
		return s.SignUp(ctx, core.SignUpInput{Email: email, Password: password})
	default:
		return nil, fmt.Errorf("failed to find admin: %w", err)
	}
}
