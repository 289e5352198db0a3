package services

import (
	"context"
	"sync"
	"time"

	"github.com/lborres/farewatch/adapters/memory"
	"github.com/lborres/farewatch/core"
	"github.com/lborres/farewatch/pkg/crypto"
)

// FakeStorage is a test-only core.AuthStorage backed by the memory adapter.
// Setting an error field makes the matching call fail.
type FakeStorage struct {
	*memory.Storage

	mu                sync.Mutex
	getUserErr        error
	createUserErr     error
	updateUserErr     error
	createSessionErr  error
	getSessionErr     error
	savePrefsErr      error
	sessionHashLookup int
}

func NewFakeStorage() *FakeStorage {
	return &FakeStorage{Storage: memory.New()}
}

func (f *FakeStorage) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	if f.getUserErr != nil {
		return nil, f.getUserErr
	}
	return f.Storage.GetUserByEmail(ctx, email)
}

func (f *FakeStorage) CreateUser(ctx context.Context, u *core.User) error {
	if f.createUserErr != nil {
		return f.createUserErr
	}
	return f.Storage.CreateUser(ctx, u)
}

func (f *FakeStorage) UpdateUser(ctx context.Context, u *core.User) error {
	if f.updateUserErr != nil {
		return f.updateUserErr
	}
	return f.Storage.UpdateUser(ctx, u)
}

func (f *FakeStorage) SaveAlertPreferences(ctx context.Context, p *core.AlertPreferences) error {
	if f.savePrefsErr != nil {
		return f.savePrefsErr
	}
	return f.Storage.SaveAlertPreferences(ctx, p)
}

func (f *FakeStorage) CreateSession(ctx context.Context, s *core.Session) error {
	if f.createSessionErr != nil {
		return f.createSessionErr
	}
	return f.Storage.CreateSession(ctx, s)
}

func (f *FakeStorage) GetSessionByHash(ctx context.Context, tokenHash string) (*core.Session, error) {
	f.mu.Lock()
	f.sessionHashLookup++
	f.mu.Unlock()
	if f.getSessionErr != nil {
		return nil, f.getSessionErr
	}
	return f.Storage.GetSessionByHash(ctx, tokenHash)
}

func (f *FakeStorage) Lookups() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessionHashLookup
}

// FakeCache records calls and can be made to fail.
type FakeCache struct {
	mu      sync.Mutex
	entries map[string]core.Session
	setErr  error
	deleted []string
	cleared int
}

func NewFakeCache() *FakeCache {
	return &FakeCache{entries: make(map[string]core.Session)}
}

func (f *FakeCache) Get(_ context.Context, tokenHash string) (*core.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.entries[tokenHash]
	if !ok {
		return nil, core.ErrCacheNotFound
	}
	return &s, nil
}

func (f *FakeCache) Set(_ context.Context, tokenHash string, s *core.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.entries[tokenHash] = *s
	return nil
}

func (f *FakeCache) Delete(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, tokenHash)
	f.deleted = append(f.deleted, tokenHash)
	return nil
}

func (f *FakeCache) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = make(map[string]core.Session)
	f.cleared++
	return nil
}

func (f *FakeCache) Has(tokenHash string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[tokenHash]
	return ok
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

const testSecret = "test-secret-that-is-at-least-32-chars"

// cheapHasher keeps argon2 fast in tests.
func cheapHasher() *crypto.Argon2 {
	return &crypto.Argon2{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func newTestSessionManager(storage core.SessionStorage, cache core.Cache, clock *fakeClock) *SessionManager {
	tokens, err := crypto.NewTokenIssuer(testSecret, "farewatch-test")
	if err != nil {
		panic(err)
	}
	sm := NewSessionManager(core.SessionConfig{MaxAge: time.Hour}, storage, cache, tokens)
	sm.SetClock(clock.Now)
	return sm
}

func newTestAuthService(storage core.AuthStorage, cache core.Cache, clock *fakeClock) *AuthService {
	svc := NewAuthService(storage, newTestSessionManager(storage, cache, clock), cheapHasher())
	svc.now = clock.Now
	return svc
}
