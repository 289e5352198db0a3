package services

import (
	"strings"
	"testing"

	"github.com/lborres/farewatch/core"
)

// Requirement: BaseEndpoints describes every auth and profile route with its access level.
func TestBaseEndpoints(t *testing.T) {
	tests := []struct {
		method string
		path   string
		opID   string
		auth   core.AuthLevel
	}{
		{"POST", "/auth/login", OpLogin, core.AuthPublic},
		{"POST", "/auth/logout", OpLogout, core.AuthUser},
		{"POST", "/auth/logout-all", OpLogoutAll, core.AuthUser},
		{"GET", "/auth/sessions", OpListSessions, core.AuthUser},
		{"DELETE", "/auth/sessions/:id", OpRevokeSession, core.AuthUser},
		{"GET", "/auth/session", OpGetSession, core.AuthUser},
		{"POST", "/users/signup", OpSignUp, core.AuthPublic},
		{"GET", "/users/me", OpGetMe, core.AuthUser},
		{"PUT", "/users/me", OpUpdateMe, core.AuthUser},
		{"PUT", "/users/me/onboarding", OpUpdateOnboarding, core.AuthUser},
		{"GET", "/users/me/alert-preferences", OpGetAlertPreferences, core.AuthUser},
		{"PUT", "/users/me/alert-preferences", OpUpdateAlertPreferences, core.AuthUser},
		{"GET", "/admin/users", OpListUsers, core.AuthAdmin},
	}

	byKey := make(map[string]core.Endpoint)
	for _, ep := range BaseEndpoints() {
		byKey[ep.Method+" "+ep.Path] = ep
	}
	if len(byKey) != len(tests) {
		t.Fatalf("BaseEndpoints() has %d endpoints, want %d", len(byKey), len(tests))
	}

	for _, test := range tests {
		t.Run(test.method+" "+test.path, func(t *testing.T) {
			ep, ok := byKey[test.method+" "+test.path]
			if !ok {
				t.Fatal("endpoint missing")
			}
			if ep.Metadata.OperationID != test.opID {
				t.Errorf("OperationID = %q, want %q", ep.Metadata.OperationID, test.opID)
			}
			if ep.Metadata.Auth != test.auth {
				t.Errorf("Auth = %v, want %v", ep.Metadata.Auth, test.auth)
			}
			if ep.Metadata.Description == "" {
				t.Error("Description should not be empty")
			}
		})
	}
}

// Requirement: the registry holds the base endpoints in a stable order.
func TestEndpointRegistry_Endpoints(t *testing.T) {
	reg := NewEndpointRegistry()

	eps := reg.Endpoints()

	if len(eps) != len(BaseEndpoints()) {
		t.Fatalf("len = %d, want %d", len(eps), len(BaseEndpoints()))
	}
	if eps[0].Path != "/admin/users" {
		t.Errorf("first path = %q, want /admin/users", eps[0].Path)
	}
	for i := 1; i < len(eps); i++ {
		if eps[i-1].Path > eps[i].Path {
			t.Errorf("endpoints not sorted at %d: %s > %s", i, eps[i-1].Path, eps[i].Path)
		}
	}
}

// Requirement: Register rejects conflicts atomically.
func TestEndpointRegistry_Register(t *testing.T) {
	tests := []struct {
		name    string
		batch   []core.Endpoint
		wantErr string
		wantLen int
	}{
		{
			name:    "adds new endpoints",
			batch:   []core.Endpoint{{Method: "GET", Path: "/alerts"}, {Method: "POST", Path: "/alerts"}},
			wantLen: len(BaseEndpoints()) + 2,
		},
		{
			name:    "conflicts with base",
			batch:   []core.Endpoint{{Method: "GET", Path: "/alerts"}, {Method: "GET", Path: "/users/me"}},
			wantErr: "already registered",
			wantLen: len(BaseEndpoints()),
		},
		{
			name:    "duplicate inside batch",
			batch:   []core.Endpoint{{Method: "GET", Path: "/alerts"}, {Method: "GET", Path: "/alerts"}},
			wantErr: "duplicate endpoint",
			wantLen: len(BaseEndpoints()),
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			reg := NewEndpointRegistry()

			err := reg.Register(test.batch)

			if test.wantErr == "" && err != nil {
				t.Fatalf("Register() error = %v", err)
			}
			if test.wantErr != "" && (err == nil || !strings.Contains(err.Error(), test.wantErr)) {
				t.Fatalf("Register() error = %v, want %q", err, test.wantErr)
			}
			if got := len(reg.Endpoints()); got != test.wantLen {
				t.Errorf("len = %d, want %d", got, test.wantLen)
			}
		})
	}
}
