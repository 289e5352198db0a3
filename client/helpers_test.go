package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type note struct {
	Level   Level
	Message string
}

// recorder is a Notifier and Navigator that remembers every call.
type recorder struct {
	mu     sync.Mutex
	notes  []note
	logins int
}

func (r *recorder) Notify(level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, note{Level: level, Message: message})
}

func (r *recorder) ToLogin() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logins++
}

func (r *recorder) Notes() []note {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]note(nil), r.notes...)
}

func (r *recorder) Logins() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.logins
}

func (r *recorder) Messages(level Level) []string {
	var out []string
	for _, n := range r.Notes() {
		if n.Level == level {
			out = append(out, n.Message)
		}
	}
	return out
}

// countingStore counts Clear calls that actually removed a token.
type countingStore struct {
	MemoryStore
	clears atomic.Int32
}

func (s *countingStore) Clear() error {
	if token, _ := s.MemoryStore.Get(); token != "" {
		s.clears.Add(1)
	}
	return s.MemoryStore.Clear()
}

type testEnv struct {
	client   *Client
	store    *countingStore
	recorder *recorder
	server   *httptest.Server
}

// newTestEnv starts handler as the API under /api/v1.
func newTestEnv(t *testing.T, handler http.Handler) *testEnv {
	t.Helper()

	srv := httptest.NewServer(http.StripPrefix("/api/v1", handler))
	t.Cleanup(srv.Close)

	rec := &recorder{}
	store := &countingStore{}
	c, err := New(Config{
		BaseURL:   srv.URL + "/api/v1",
		Store:     store,
		Notifier:  rec,
		Navigator: rec,
	})
	require.NoError(t, err)

	return &testEnv{client: c, store: store, recorder: rec, server: srv}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func detail(message string) map[string]string {
	return map[string]string{"detail": message}
}

// loginMux serves a login that always issues token and an identity endpoint
// that returns identity for that token.
func loginMux(token string, identity map[string]any) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"access_token": token, "token_type": "bearer"})
	})
	mux.HandleFunc("GET /users/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			writeJSON(w, http.StatusUnauthorized, detail("Could not validate credentials"))
			return
		}
		writeJSON(w, http.StatusOK, identity)
	})
	return mux
}
