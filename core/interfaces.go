package core

import (
	"context"
	"time"
)

// Ports define interfaces for external dependencies

// ============================================
// STORAGE PORTS (Database operations)
// ============================================

// SessionStorage defines session-related database operations
type SessionStorage interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSessionByHash(ctx context.Context, tokenHash string) (*Session, error)
	GetSessionByID(ctx context.Context, id string) (*Session, error)
	GetUserSessions(ctx context.Context, userID string) ([]*Session, error)
	DeleteSessionByID(ctx context.Context, id string) error
	DeleteSessionByHash(ctx context.Context, tokenHash string) error
	DeleteUserSessions(ctx context.Context, userID string) (int, error)
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)
}

// UserStorage defines user-related database operations
type UserStorage interface {
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, u *User) error
	ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error)
}

// AccountStorage defines account-related database operations
type AccountStorage interface {
	CreateAccount(ctx context.Context, a *Account) error
	GetAccountByUserAndProvider(ctx context.Context, userID, providerID string) ([]*Account, error)
	UpdateAccount(ctx context.Context, a *Account) error
}

// AlertPreferenceStorage keeps one AlertPreferences row per user.
type AlertPreferenceStorage interface {
	GetAlertPreferences(ctx context.Context, userID string) (*AlertPreferences, error)
	// SaveAlertPreferences inserts or replaces the row of p.UserID.
	SaveAlertPreferences(ctx context.Context, p *AlertPreferences) error
}

type AuthStorage interface {
	UserStorage
	AccountStorage
	SessionStorage
	AlertPreferenceStorage
}

// ============================================
// CACHE PORT
// ============================================

// Cache defines session caching operations
type Cache interface {
	Get(ctx context.Context, tokenHash string) (*Session, error)
	Set(ctx context.Context, tokenHash string, session *Session) error
	Delete(ctx context.Context, tokenHash string) error
	Clear(ctx context.Context) error
}

// CacheWithStats extends Cache with statistics tracking
type CacheWithStats interface {
	Cache
	Stats() CacheStats
}

// CacheConfig configures cache behavior
type CacheConfig struct {
	TTL     time.Duration
	MaxSize int
}

// CacheStats tracks cache performance metrics
type CacheStats struct {
	Hits      int64         `json:"hits"`
	Misses    int64         `json:"misses"`
	Sets      int64         `json:"sets"`
	Deletes   int64         `json:"deletes"`
	Evictions int64         `json:"evictions"`
	Size      int           `json:"size"`
	TTL       time.Duration `json:"ttl"`
}

// SessionConfig controls issued session lifetime.
type SessionConfig struct {
	MaxAge time.Duration
	Issuer string
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxAge: 24 * time.Hour,
		Issuer: "farewatch",
	}
}

// ============================================
// AUTH HANDLER (for HTTP adapters)
// ============================================

// AuthHandler provides authentication operations for HTTP adapters
type AuthHandler interface {
	SignUp(ctx context.Context, input SignUpInput) (*User, error)
	SignIn(ctx context.Context, input SignInInput, ipAddress, userAgent string) (*SignInResult, error)
	SignOut(ctx context.Context, token string) error
	SignOutEverywhere(ctx context.Context, userID string) (int, error)
	ListSessions(ctx context.Context, userID string) ([]*Session, error)
	RevokeSession(ctx context.Context, userID, sessionID string) error
	GetSession(ctx context.Context, token string) (*SessionData, error)
	UpdateProfile(ctx context.Context, userID string, patch ProfileUpdate) (*User, error)
	UpdateOnboarding(ctx context.Context, userID string, input OnboardingUpdate) (*User, error)
	ListUsers(ctx context.Context, limit, offset int) (*UserPage, error)
	AlertPreferences(ctx context.Context, userID string) (*AlertPreferences, error)
	UpdateAlertPreferences(ctx context.Context, userID string, patch AlertPreferencesUpdate) (*AlertPreferences, error)
}
