package services

import (
	"fmt"
	"sort"

	"github.com/lborres/farewatch/core"
)

// Operation ids bound by HTTP adapters.
const (
	OpLogin            = "login"
	OpLogout           = "logout"
	OpGetSession       = "getSession"
	OpSignUp           = "signUp"
	OpGetMe            = "getCurrentUser"
	OpUpdateMe         = "updateCurrentUser"
	OpUpdateOnboarding = "updateOnboarding"
	OpListUsers        = "listUsers"

	OpLogoutAll              = "logoutAll"
	OpListSessions           = "listSessions"
	OpRevokeSession          = "revokeSession"
	OpGetAlertPreferences    = "getAlertPreferences"
	OpUpdateAlertPreferences = "updateAlertPreferences"
)

// BaseEndpoints returns the framework-agnostic endpoint definitions
// for the auth and profile API, relative to the base path.
func BaseEndpoints() []core.Endpoint {
	return []core.Endpoint{
		{
			Path:   "/auth/login",
			Method: "POST",
			Metadata: core.EndpointMetadata{
				OperationID: OpLogin,
				Description: "Exchange form-encoded email and password for a bearer token",
				Auth:        core.AuthPublic,
			},
		},
		{
			Path:   "/auth/logout",
			Method: "POST",
			Metadata: core.EndpointMetadata{
				OperationID: OpLogout,
				Description: "Revoke the current session",
				Auth:        core.AuthUser,
			},
		},
		{
			Path:   "/auth/logout-all",
			Method: "POST",
			Metadata: core.EndpointMetadata{
				OperationID: OpLogoutAll,
				Description: "Revoke every session of the current user",
				Auth:        core.AuthUser,
			},
		},
		{
			Path:   "/auth/sessions",
			Method: "GET",
			Metadata: core.EndpointMetadata{
				OperationID: OpListSessions,
				Description: "List the current user's active sessions",
				Auth:        core.AuthUser,
			},
		},
		{
			Path:   "/auth/sessions/:id",
			Method: "DELETE",
			Metadata: core.EndpointMetadata{
				OperationID: OpRevokeSession,
				Description: "Revoke one of the current user's sessions",
				Auth:        core.AuthUser,
			},
		},
		{
			Path:   "/auth/session",
			Method: "GET",
			Metadata: core.EndpointMetadata{
				OperationID: OpGetSession,
				Description: "Get the current user and session",
				Auth:        core.AuthUser,
			},
		},
		{
			Path:   "/users/signup",
			Method: "POST",
			Metadata: core.EndpointMetadata{
				OperationID: OpSignUp,
				Description: "Register a user with email and password",
				Auth:        core.AuthPublic,
			},
		},
		{
			Path:   "/users/me",
			Method: "GET",
			Metadata: core.EndpointMetadata{
				OperationID: OpGetMe,
				Description: "Get the current user's profile",
				Auth:        core.AuthUser,
			},
		},
		{
			Path:   "/users/me",
			Method: "PUT",
			Metadata: core.EndpointMetadata{
				OperationID: OpUpdateMe,
				Description: "Partially update the current user's profile",
				Auth:        core.AuthUser,
			},
		},
		{
			Path:   "/users/me/onboarding",
			Method: "PUT",
			Metadata: core.EndpointMetadata{
				OperationID: OpUpdateOnboarding,
				Description: "Record an onboarding step",
				Auth:        core.AuthUser,
			},
		},
		{
			Path:   "/users/me/alert-preferences",
			Method: "GET",
			Metadata: core.EndpointMetadata{
				OperationID: OpGetAlertPreferences,
				Description: "Get the current user's deal alert preferences",
				Auth:        core.AuthUser,
			},
		},
		{
			Path:   "/users/me/alert-preferences",
			Method: "PUT",
			Metadata: core.EndpointMetadata{
				OperationID: OpUpdateAlertPreferences,
				Description: "Partially update the current user's deal alert preferences",
				Auth:        core.AuthUser,
			},
		},
		{
			Path:   "/admin/users",
			Method: "GET",
			Metadata: core.EndpointMetadata{
				OperationID: OpListUsers,
				Description: "List users",
				Auth:        core.AuthAdmin,
			},
		},
	}
}

// EndpointRegistry manages a collection of framework-agnostic endpoints
// and rejects duplicate METHOD:PATH combinations.
type EndpointRegistry struct {
	endpoints map[string]*core.Endpoint
}

// NewEndpointRegistry creates a registry with the base endpoints pre-registered.
func NewEndpointRegistry() *EndpointRegistry {
	reg := &EndpointRegistry{endpoints: make(map[string]*core.Endpoint)}

	for _, ep := range BaseEndpoints() {
		ep := ep
		reg.endpoints[endpointKey(&ep)] = &ep
	}

	return reg
}

func endpointKey(ep *core.Endpoint) string {
	return fmt.Sprintf("%s:%s", ep.Method, ep.Path)
}

// Register adds extra endpoints. Nothing is registered if any of them
// conflicts with an existing endpoint or with another in the same batch.
func (r *EndpointRegistry) Register(endpoints []core.Endpoint) error {
	seen := make(map[string]bool, len(endpoints))
	for i := range endpoints {
		key := endpointKey(&endpoints[i])
		if _, exists := r.endpoints[key]; exists {
			return fmt.Errorf("endpoint conflict: %s %s already registered", endpoints[i].Method, endpoints[i].Path)
		}
		if seen[key] {
			return fmt.Errorf("duplicate endpoint: %s %s", endpoints[i].Method, endpoints[i].Path)
		}
		seen[key] = true
	}

	for i := range endpoints {
		ep := endpoints[i]
		r.endpoints[endpointKey(&ep)] = &ep
	}
	return nil
}

// Endpoints returns all registered endpoints sorted by path, then method.
func (r *EndpointRegistry) Endpoints() []*core.Endpoint {
	result := make([]*core.Endpoint, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		result = append(result, ep)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Path == result[j].Path {
			return result[i].Method < result[j].Method
		}
		return result[i].Path < result[j].Path
	})
	return result
}
