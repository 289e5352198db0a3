package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lborres/farewatch/core"
	"github.com/lborres/farewatch/pkg/crypto"
)

type SessionManager struct {
	config  core.SessionConfig
	storage core.SessionStorage
	cache   core.Cache // optional, can be nil if caching is disabled
	tokens  *crypto.TokenIssuer
	ids     *crypto.NanoIDGenerator
	now     func() time.Time
}

func NewSessionManager(config core.SessionConfig, storage core.SessionStorage, cache core.Cache, tokens *crypto.TokenIssuer) *SessionManager {
	if config.MaxAge <= 0 {
		config.MaxAge = core.DefaultSessionConfig().MaxAge
	}
	return &SessionManager{
		config:  config,
		storage: storage,
		cache:   cache,
		tokens:  tokens,
		ids:     crypto.DefaultNanoID(),
		now:     time.Now,
	}
}

// SetClock replaces the time source for issuing and validating sessions.
func (sm *SessionManager) SetClock(now func() time.Time) {
	sm.now = now
	sm.tokens.WithClock(now)
}

func (sm *SessionManager) MaxAge() time.Duration {
	return sm.config.MaxAge
}

// Create issues a signed token for userID and persists only its hash.
func (sm *SessionManager) Create(ctx context.Context, userID, ip, userAgent string) (*core.CreateSessionResult, error) {
	sessionID, err := sm.ids.Generate(0)
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	now := sm.now()
	expiresAt := now.Add(sm.config.MaxAge)

	token, err := sm.tokens.Issue(sessionID, userID, now, expiresAt)
	if err != nil {
		return nil, err
	}

	session := &core.Session{
		ID:        sessionID,
		UserID:    userID,
		TokenHash: crypto.HashToken(token),
		IPAddress: ip,
		UserAgent: userAgent,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: expiresAt,
	}

	if err := sm.storage.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	if sm.cache != nil {
		// A cache failure never fails the request
		_ = sm.cache.Set(ctx, session.TokenHash, session)
	}

	return &core.CreateSessionResult{Session: session, Token: token}, nil
}

// Verify checks the token signature and expiry, then confirms the session
// has not been revoked (cache first, then storage).
func (sm *SessionManager) Verify(ctx context.Context, token string) (*core.Session, error) {
	if token == "" {
		return nil, core.ErrInvalidToken
	}

	claims, err := sm.tokens.Parse(token)
	if err != nil {
		if errors.Is(err, crypto.ErrTokenExpired) {
			return nil, core.ErrSessionExpired
		}
		return nil, core.ErrInvalidToken
	}

	tokenHash := crypto.HashToken(token)

	if sm.cache != nil {
		if session, err := sm.cache.Get(ctx, tokenHash); err == nil {
			if err := sm.check(session, claims); err != nil {
				_ = sm.cache.Delete(ctx, tokenHash)
				return nil, err
			}
			return session, nil
		}
	}

	session, err := sm.storage.GetSessionByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, core.ErrSessionNotFound) {
			return nil, core.ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	if ok, err := crypto.VerifyToken(token, session.TokenHash); err != nil || !ok {
		return nil, core.ErrInvalidToken
	}
	if err := sm.check(session, claims); err != nil {
		return nil, err
	}

	if sm.cache != nil {
		_ = sm.cache.Set(ctx, tokenHash, session)
	}

	return session, nil
}

func (sm *SessionManager) check(session *core.Session, claims *crypto.SessionClaims) error {
	if session.ID != claims.SessionID || session.UserID != claims.UserID {
		return core.ErrInvalidToken
	}
	if !sm.now().Before(session.ExpiresAt) {
		return core.ErrSessionExpired
	}
	return nil
}

// Destroy revokes the session behind token.
func (sm *SessionManager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return core.ErrInvalidToken
	}

	tokenHash := crypto.HashToken(token)

	if sm.cache != nil {
		_ = sm.cache.Delete(ctx, tokenHash)
	}

	return sm.storage.DeleteSessionByHash(ctx, tokenHash)
}

// DestroyBySessionID revokes one session of userID. A session that does not
// exist or belongs to someone else is ErrNoSuchSession.
func (sm *SessionManager) DestroyBySessionID(ctx context.Context, userID, sessionID string) error {
	if sessionID == "" {
		return core.ErrNoSuchSession
	}

	session, err := sm.storage.GetSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, core.ErrSessionNotFound) {
			return core.ErrNoSuchSession
		}
		return fmt.Errorf("load session: %w", err)
	}
	if session.UserID != userID {
		return core.ErrNoSuchSession
	}

	if sm.cache != nil {
		_ = sm.cache.Delete(ctx, session.TokenHash)
	}

	if err := sm.storage.DeleteSessionByID(ctx, sessionID); err != nil {
		if errors.Is(err, core.ErrSessionNotFound) {
			return core.ErrNoSuchSession
		}
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Active lists the unexpired sessions of userID, oldest first.
func (sm *SessionManager) Active(ctx context.Context, userID string) ([]*core.Session, error) {
	all, err := sm.storage.GetUserSessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user sessions: %w", err)
	}

	now := sm.now()
	active := make([]*core.Session, 0, len(all))
	for _, s := range all {
		if now.Before(s.ExpiresAt) {
			active = append(active, s)
		}
	}
	return active, nil
}

// DestroyAllUserSessions revokes every session of userID and evicts only
// those sessions from the cache.
func (sm *SessionManager) DestroyAllUserSessions(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, core.ErrUserNotFound
	}

	if sm.cache != nil {
		sessions, err := sm.storage.GetUserSessions(ctx, userID)
		if err != nil {
			return 0, fmt.Errorf("list user sessions: %w", err)
		}
		for _, s := range sessions {
			_ = sm.cache.Delete(ctx, s.TokenHash)
		}
	}

	count, err := sm.storage.DeleteUserSessions(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user sessions: %w", err)
	}
	return count, nil
}

// Sweep deletes sessions that have expired. Cached copies age out on their own.
func (sm *SessionManager) Sweep(ctx context.Context) (int, error) {
	return sm.storage.DeleteExpiredSessions(ctx, sm.now())
}
