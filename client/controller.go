package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/lborres/farewatch/core"
)

// Identity is the signed-in user's profile as served by the identity endpoint.
type Identity = core.User

// ProfilePatch is a partial profile change; nil fields are not sent.
type ProfilePatch = core.ProfileUpdate

// OnboardingData carries the fields of one onboarding step.
type OnboardingData = core.OnboardingData

type SignupInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// API paths relative to the base URL.
const (
	PathLogin      = "/auth/login"
	PathLogout     = "/auth/logout"
	PathSession    = "/auth/session"
	PathSignup     = "/users/signup"
	PathMe         = "/users/me"
	PathOnboarding = "/users/me/onboarding"
	PathAdminUsers = "/admin/users"

	PathLogoutAll        = "/auth/logout-all"
	PathSessions         = "/auth/sessions"
	PathAlertPreferences = "/users/me/alert-preferences"
)

type State int

const (
	StateUnknown State = iota
	StateRestoring
	StateAnonymous
	StateAuthenticating
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateRestoring:
		return "restoring"
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "invalid"
	}
}

// Snapshot is a copy of the controller state. Mutating it has no effect on
// the controller.
type Snapshot struct {
	State    State
	Identity *Identity
}

type ControllerConfig struct {
	Pipeline *Pipeline
	Store    CredentialStore
	Notifier Notifier
	Logger   *slog.Logger
}

// Controller owns the session state and the cached identity. It is the only
// writer of the identity; every other component reads snapshots.
//
// Each state change bumps an epoch. Requests capture the epoch when they
// start and their results are dropped if it moved, so a logout or an expired
// session always wins over responses still in flight.
type Controller struct {
	pipeline *Pipeline
	store    CredentialStore
	notifier Notifier
	logger   *slog.Logger

	mu       sync.RWMutex
	state    State
	identity *Identity
	epoch    uint64

	refresh singleflight.Group
}

func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Pipeline == nil {
		return nil, errors.New("pipeline is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("credential store is required")
	}

	c := &Controller{
		pipeline: cfg.Pipeline,
		store:    cfg.Store,
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
	}
	if c.notifier == nil {
		c.notifier = noopNotifier{}
	}
	if c.logger == nil {
		c.logger = discardLogger()
	}

	cfg.Pipeline.OnUnauthorized(c.expire)
	return c, nil
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{State: c.state, Identity: c.identity.Clone()}
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Reset returns the controller to Unknown without touching the store.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.state = StateUnknown
	c.identity = nil
}

// expire runs when the pipeline cleared a rejected token.
func (c *Controller) expire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.state = StateAnonymous
	c.identity = nil
	c.logger.Warn("session expired")
}

// begin moves to state and returns the new epoch.
func (c *Controller) begin(state State) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.state = state
	c.identity = nil
	return c.epoch
}

// settle stores identity as Authenticated if epoch is still current.
func (c *Controller) settle(ctx context.Context, epoch uint64, identity *Identity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return ErrSuperseded
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.state = StateAuthenticated
	c.identity = identity
	return nil
}

// abandon drops to Anonymous after a failed sign-in, clearing any token it
// stored. Nothing happens if something else changed the state meanwhile.
func (c *Controller) abandon(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return
	}
	c.epoch++
	c.state = StateAnonymous
	c.identity = nil
	if err := c.store.Clear(); err != nil {
		c.logger.Warn("clear credential", slog.Any("error", err))
	}
}

// Restore replays a stored token. Without a token the controller becomes
// Anonymous right away. A 401 clears the token; other failures keep it so a
// later Restore can retry.
func (c *Controller) Restore(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateUnknown && c.state != StateAnonymous {
		c.mu.Unlock()
		return nil
	}
	token, err := c.store.Get()
	if err != nil || token == "" {
		c.state = StateAnonymous
		c.mu.Unlock()
		return err
	}
	c.epoch++
	epoch := c.epoch
	c.state = StateRestoring
	c.mu.Unlock()

	identity, err := c.fetchIdentity(ctx)
	if err != nil {
		c.mu.Lock()
		if c.epoch == epoch {
			c.epoch++
			c.state = StateAnonymous
		}
		c.mu.Unlock()
		return err
	}
	return c.settle(ctx, epoch, identity)
}

// Login submits the credentials, stores the returned token and then fetches
// the identity. It succeeds only once the identity is known.
func (c *Controller) Login(ctx context.Context, email, password string) (*Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		err := &AuthError{Kind: KindValidation, Message: "Email and password are required"}
		c.notifyFailure(err)
		return nil, err
	}

	epoch := c.begin(StateAuthenticating)
	identity, err := c.authenticate(ctx, epoch, email, password)
	if err != nil {
		authErr := classify(err, true)
		c.abandon(epoch)
		c.notifyFailure(authErr)
		return nil, authErr
	}

	c.notifier.Notify(LevelSuccess, fmt.Sprintf("Signed in as %s", identity.DisplayName()))
	return identity.Clone(), nil
}

func (c *Controller) authenticate(ctx context.Context, epoch uint64, email, password string) (*Identity, error) {
	var token core.TokenResponse
	err := c.pipeline.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   PathLogin,
		Form:   url.Values{"username": {email}, "password": {password}},
		Public: true,
	}, &token)
	if err != nil {
		return nil, classify(err, true)
	}
	if token.AccessToken == "" {
		return nil, &AuthError{Kind: KindServer, Message: "The server did not return a token"}
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return nil, &AuthError{Kind: KindCanceled, Message: "Sign-in was interrupted", Err: ErrSuperseded}
	}
	err = c.store.Set(token.AccessToken)
	c.mu.Unlock()
	if err != nil {
		return nil, &AuthError{Kind: KindBadRequest, Message: "Could not save the session", Err: err}
	}

	identity, err := c.fetchIdentity(ctx)
	if err != nil {
		return nil, classify(err, false)
	}
	if err := c.settle(ctx, epoch, identity); err != nil {
		return nil, classify(err, false)
	}
	return identity, nil
}

// Signup creates the account and signs in with the same credentials. When the
// account exists but signing in fails the error kind is
// KindAccountCreatedSignInFailed.
func (c *Controller) Signup(ctx context.Context, input SignupInput) (*Identity, error) {
	input.Email = strings.TrimSpace(input.Email)
	if input.Email == "" || input.Password == "" {
		err := &AuthError{Kind: KindValidation, Message: "Email and password are required"}
		c.notifyFailure(err)
		return nil, err
	}

	epoch := c.begin(StateAuthenticating)

	var created Identity
	err := c.pipeline.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   PathSignup,
		JSON:   input,
		Public: true,
	}, &created)
	if err != nil {
		authErr := classify(err, false)
		c.abandon(epoch)
		c.notifyFailure(authErr)
		return nil, authErr
	}

	identity, err := c.authenticate(ctx, epoch, input.Email, input.Password)
	if err != nil {
		c.abandon(epoch)
		var inner *AuthError
		message := err.Error()
		if errors.As(err, &inner) {
			message = inner.Message
		}
		authErr := &AuthError{
			Kind:    KindAccountCreatedSignInFailed,
			Message: "Your account was created, but signing in failed: " + message,
			Err:     err,
		}
		c.notifyFailure(authErr)
		return nil, authErr
	}

	c.notifier.Notify(LevelSuccess, fmt.Sprintf("Welcome, %s!", identity.DisplayName()))
	return identity.Clone(), nil
}

// Logout forgets the session locally. It never fails and can be called in
// any state.
func (c *Controller) Logout() {
	c.mu.Lock()
	c.epoch++
	c.state = StateAnonymous
	c.identity = nil
	err := c.store.Clear()
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("clear credential", slog.Any("error", err))
	}
	c.notifier.Notify(LevelInfo, "Signed out")
}

// Revoke ends the session on the server, then logs out locally. The local
// logout happens even when the server call fails; that error is returned.
func (c *Controller) Revoke(ctx context.Context) error {
	var err error
	if token, _ := c.store.Get(); token != "" {
		err = c.pipeline.Do(ctx, Request{Method: http.MethodPost, Path: PathLogout}, nil)
	}
	c.Logout()
	if IsUnauthorized(err) {
		return nil
	}
	return err
}

// RevokeAll ends every session of the user on the server, then logs out
// locally like Revoke. It returns how many sessions the server ended.
func (c *Controller) RevokeAll(ctx context.Context) (int, error) {
	var (
		result core.RevokeResult
		err    error
	)
	if token, _ := c.store.Get(); token != "" {
		err = c.pipeline.Do(ctx, Request{Method: http.MethodPost, Path: PathLogoutAll}, &result)
	}
	c.Logout()
	if IsUnauthorized(err) {
		return 0, nil
	}
	return result.Revoked, err
}

// UpdateIdentity sends patch and replaces the cached identity with the
// server's answer.
func (c *Controller) UpdateIdentity(ctx context.Context, patch ProfilePatch) (*Identity, error) {
	return c.write(ctx, Request{Method: http.MethodPut, Path: PathMe, JSON: patch})
}

// AdvanceOnboarding records an onboarding step and replaces the cached
// identity with the server's answer.
func (c *Controller) AdvanceOnboarding(ctx context.Context, step int, data OnboardingData) (*Identity, error) {
	return c.write(ctx, Request{
		Method: http.MethodPut,
		Path:   PathOnboarding,
		JSON:   core.OnboardingUpdate{Step: step, Data: data},
	})
}

func (c *Controller) write(ctx context.Context, req Request) (*Identity, error) {
	epoch, err := c.authenticatedEpoch()
	if err != nil {
		return nil, err
	}

	var updated Identity
	if err := c.pipeline.Do(ctx, req, &updated); err != nil {
		return nil, err
	}
	if err := c.settle(ctx, epoch, &updated); err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}

// Refresh refetches the identity. Concurrent callers share one request.
func (c *Controller) Refresh(ctx context.Context) (*Identity, error) {
	epoch, err := c.authenticatedEpoch()
	if err != nil {
		return nil, err
	}

	// The shared fetch outlives any single caller; each caller stops
	// waiting when its own ctx ends.
	ch := c.refresh.DoChan("identity", func() (any, error) {
		return c.fetchIdentity(context.WithoutCancel(ctx))
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	identity := res.Val.(*Identity).Clone()
	if err := c.settle(ctx, epoch, identity); err != nil {
		return nil, err
	}
	return identity.Clone(), nil
}

func (c *Controller) authenticatedEpoch() (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateAuthenticated {
		return 0, ErrNotAuthenticated
	}
	return c.epoch, nil
}

func (c *Controller) fetchIdentity(ctx context.Context) (*Identity, error) {
	var identity Identity
	if err := c.pipeline.Do(ctx, Request{Method: http.MethodGet, Path: PathMe}, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// notifyFailure toasts a failed sign-in. Server and network failures were
// already announced by the pipeline. Cancellations are silent unless an
// expired session interrupted the sign-in.
func (c *Controller) notifyFailure(err *AuthError) {
	switch err.Kind {
	case KindCanceled:
		if errors.Is(err, ErrSuperseded) {
			c.notifier.Notify(LevelWarning, err.Message)
		}
		return
	case KindServer, KindNetwork:
		return
	}
	c.notifier.Notify(LevelError, err.Message)
}

// classify turns a pipeline error into an AuthError. credentials marks the
// login call itself, where 400 and 401 mean the email or password is wrong.
func classify(err error, credentials bool) *AuthError {
	var (
		authErr *AuthError
		apiErr  *APIError
		netErr  *NetworkError
	)
	switch {
	case errors.As(err, &authErr):
		return authErr
	case errors.Is(err, ErrSuperseded):
		return &AuthError{Kind: KindCanceled, Message: "Sign-in was interrupted", Err: err}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &AuthError{Kind: KindCanceled, Message: "Request canceled", Err: err}
	case errors.As(err, &netErr):
		return &AuthError{Kind: KindNetwork, Message: "Cannot contact the server. Please try again later.", Err: err}
	case errors.As(err, &apiErr):
		return classifyAPIError(apiErr, credentials)
	default:
		return &AuthError{Kind: KindBadRequest, Message: err.Error(), Err: err}
	}
}

func classifyAPIError(apiErr *APIError, credentials bool) *AuthError {
	status := apiErr.StatusCode
	switch {
	case status >= http.StatusInternalServerError:
		return &AuthError{Kind: KindServer, Message: MessageServerError, Err: apiErr}
	case status == http.StatusUnprocessableEntity:
		return &AuthError{Kind: KindValidation, Message: apiErr.Message(), Err: apiErr}
	case credentials && status == http.StatusUnauthorized,
		credentials && status == http.StatusBadRequest && isBadCredentials(apiErr):
		return &AuthError{Kind: KindInvalidCredentials, Message: apiErr.Detail, Err: apiErr}
	case status == http.StatusUnauthorized:
		return &AuthError{Kind: KindSessionExpired, Message: "Your session has expired. Please sign in again.", Err: apiErr}
	default:
		return &AuthError{Kind: KindBadRequest, Message: apiErr.Detail, Err: apiErr}
	}
}

func isBadCredentials(apiErr *APIError) bool {
	if apiErr.Code != "" {
		return apiErr.Code == "invalid_credentials"
	}
	return strings.Contains(strings.ToLower(apiErr.Detail), "incorrect email or password")
}
