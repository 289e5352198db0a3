// Package memory is an in-process AuthStorage for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lborres/farewatch/core"
)

var _ core.AuthStorage = (*Storage)(nil)

// Storage keeps users, accounts, sessions and alert preferences in maps.
// Values are copied on the way in and out so callers never alias stored records.
type Storage struct {
	mu          sync.RWMutex
	users       map[string]*core.User
	byEmail     map[string]string
	accounts    map[string]*core.Account
	sessions    map[string]*core.Session          // key: token hash
	preferences map[string]*core.AlertPreferences // key: user id
}

func New() *Storage {
	return &Storage{
		users:       make(map[string]*core.User),
		byEmail:     make(map[string]string),
		accounts:    make(map[string]*core.Account),
		sessions:    make(map[string]*core.Session),
		preferences: make(map[string]*core.AlertPreferences),
	}
}

// ============================================
// USERS
// ============================================

func (s *Storage) CreateUser(_ context.Context, u *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := core.NormalizeEmail(u.Email)
	if _, exists := s.byEmail[email]; exists {
		return core.ErrUserExists
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = now
	}

	s.users[u.ID] = u.Clone()
	s.byEmail[email] = u.ID
	return nil
}

func (s *Storage) GetUserByID(_ context.Context, id string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	return u.Clone(), nil
}

func (s *Storage) GetUserByEmail(_ context.Context, email string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[core.NormalizeEmail(email)]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	return s.users[id].Clone(), nil
}

func (s *Storage) UpdateUser(_ context.Context, u *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.users[u.ID]
	if !ok {
		return core.ErrUserNotFound
	}
	oldEmail := core.NormalizeEmail(cur.Email)
	newEmail := core.NormalizeEmail(u.Email)
	if oldEmail != newEmail {
		if _, taken := s.byEmail[newEmail]; taken {
			return core.ErrUserExists
		}
		delete(s.byEmail, oldEmail)
		s.byEmail[newEmail] = u.ID
	}

	s.users[u.ID] = u.Clone()
	return nil
}

// ListUsers pages through users ordered by creation time, newest first.
func (s *Storage) ListUsers(_ context.Context, limit, offset int) ([]*core.User, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*core.User, 0, len(s.users))
	for _, u := range s.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].Email < all[j].Email
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if offset >= total {
		return []*core.User{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}

	page := make([]*core.User, 0, end-offset)
	for _, u := range all[offset:end] {
		page = append(page, u.Clone())
	}
	return page, total, nil
}

// ============================================
// ACCOUNTS
// ============================================

func (s *Storage) CreateAccount(_ context.Context, a *core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[a.UserID]; !ok {
		return core.ErrUserNotFound
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	s.accounts[a.ID] = cloneAccount(a)
	return nil
}

func (s *Storage) GetAccountByUserAndProvider(_ context.Context, userID, providerID string) ([]*core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*core.Account
	for _, a := range s.accounts {
		if a.UserID == userID && a.ProviderID == providerID {
			out = append(out, cloneAccount(a))
		}
	}
	return out, nil
}

func (s *Storage) UpdateAccount(_ context.Context, a *core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[a.ID]; !ok {
		return core.ErrUserNotFound
	}
	a.UpdatedAt = time.Now()
	s.accounts[a.ID] = cloneAccount(a)
	return nil
}

func cloneAccount(a *core.Account) *core.Account {
	c := *a
	if a.Password != nil {
		p := *a.Password
		c.Password = &p
	}
	return &c
}

// ============================================
// SESSIONS
// ============================================

func (s *Storage) CreateSession(_ context.Context, session *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *session
	s.sessions[session.TokenHash] = &c
	return nil
}

func (s *Storage) GetSessionByHash(_ context.Context, tokenHash string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[tokenHash]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	c := *session
	return &c, nil
}

func (s *Storage) GetSessionByID(_ context.Context, id string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, session := range s.sessions {
		if session.ID == id {
			c := *session
			return &c, nil
		}
	}
	return nil, core.ErrSessionNotFound
}

func (s *Storage) GetUserSessions(_ context.Context, userID string) ([]*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*core.Session
	for _, session := range s.sessions {
		if session.UserID == userID {
			c := *session
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Storage) DeleteSessionByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for hash, session := range s.sessions {
		if session.ID == id {
			delete(s.sessions, hash)
			return nil
		}
	}
	return core.ErrSessionNotFound
}

func (s *Storage) DeleteSessionByHash(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[tokenHash]; !ok {
		return core.ErrSessionNotFound
	}
	delete(s.sessions, tokenHash)
	return nil
}

func (s *Storage) DeleteUserSessions(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for hash, session := range s.sessions {
		if session.UserID == userID {
			delete(s.sessions, hash)
			count++
		}
	}
	return count, nil
}

func (s *Storage) DeleteExpiredSessions(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for hash, session := range s.sessions {
		if !session.ExpiresAt.After(now) {
			delete(s.sessions, hash)
			count++
		}
	}
	return count, nil
}

// ============================================
// ALERT PREFERENCES
// ============================================

func (s *Storage) GetAlertPreferences(_ context.Context, userID string) (*core.AlertPreferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.preferences[userID]
	if !ok {
		return nil, core.ErrAlertPreferencesNotFound
	}
	return p.Clone(), nil
}

func (s *Storage) SaveAlertPreferences(_ context.Context, p *core.AlertPreferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[p.UserID]; !ok {
		return core.ErrUserNotFound
	}
	now := time.Now()
	if cur, ok := s.preferences[p.UserID]; ok {
		p.ID = cur.ID
		p.CreatedAt = cur.CreatedAt
	} else {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	s.preferences[p.UserID] = p.Clone()
	return nil
}
