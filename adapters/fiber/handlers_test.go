package fiber

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/lborres/farewatch"
	"github.com/lborres/farewatch/adapters/memory"
	"github.com/lborres/farewatch/core"
	"github.com/lborres/farewatch/pkg/crypto"
)

const testSecret = "test-secret-that-is-at-least-32-chars"

type testServer struct {
	app     *fiber.App
	adapter *Adapter
	fw      *farewatch.Farewatch
	store   *memory.Storage
}

func newTestServer(t *testing.T, opts ...Option) *testServer {
	t.Helper()

	app := fiber.New()
	adapter := New(app, opts...)
	store := memory.New()

	fw, err := farewatch.New(farewatch.Config{
		Secret:         testSecret,
		Database:       store,
		HTTP:           adapter,
		PasswordHasher: &crypto.Argon2{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		AdminEmails:    []string{"admin@example.com"},
	})
	require.NoError(t, err)

	return &testServer{app: app, adapter: adapter, fw: fw, store: store}
}

func (s *testServer) do(t *testing.T, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, string(body)
}

func jsonRequest(method, path, body, token string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	return req
}

func loginRequest(email, password string) *http.Request {
	form := url.Values{"username": {email}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	return req
}

func (s *testServer) signup(t *testing.T, email, password string) {
	t.Helper()
	resp, body := s.do(t, jsonRequest(http.MethodPost, "/api/v1/users/signup",
		`{"email":"`+email+`","password":"`+password+`"}`, ""))
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	resp, body := s.do(t, loginRequest(email, password))
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	return gjson.Get(body, "access_token").String()
}

// Requirement: Signup creates a profile and never returns a token
func TestSignup(t *testing.T) {
	srv := newTestServer(t)

	resp, body := srv.do(t, jsonRequest(http.MethodPost, "/api/v1/users/signup",
		`{"email":"Ada@Example.com","password":"password123","first_name":"Ada"}`, ""))

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "ada@example.com", gjson.Get(body, "email").String())
	assert.Equal(t, "Ada", gjson.Get(body, "first_name").String())
	assert.Equal(t, "free", gjson.Get(body, "tier").String())
	assert.False(t, gjson.Get(body, "access_token").Exists())
}

// Requirement: Duplicate signup is a 400 with a human readable detail
func TestSignup_Duplicate(t *testing.T) {
	srv := newTestServer(t)
	srv.signup(t, "ada@example.com", "password123")

	resp, body := srv.do(t, jsonRequest(http.MethodPost, "/api/v1/users/signup",
		`{"email":"ada@example.com","password":"password123"}`, ""))

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "A user with this email already exists", gjson.Get(body, "detail").String())
	assert.Equal(t, codeUserExists, gjson.Get(body, "code").String())
}

// Requirement: Validation failures list field errors in order, first one as detail
func TestSignup_Validation(t *testing.T) {
	srv := newTestServer(t)

	resp, body := srv.do(t, jsonRequest(http.MethodPost, "/api/v1/users/signup",
		`{"email":"not-an-email","password":"short"}`, ""))

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "email must be a valid email address", gjson.Get(body, "detail").String())

	var fields []string
	gjson.Get(body, "errors").ForEach(func(key, _ gjson.Result) bool {
		fields = append(fields, key.String())
		return true
	})
	assert.Equal(t, []string{"email", "password"}, fields)
	assert.Equal(t, "password must be at least 8 characters long", gjson.Get(body, "errors.password.0").String())
}

func TestSignup_MalformedBody(t *testing.T) {
	srv := newTestServer(t)

	resp, body := srv.do(t, jsonRequest(http.MethodPost, "/api/v1/users/signup", `{"email":`, ""))

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.True(t, gjson.Get(body, "errors.body").Exists())
}

// Requirement: Login takes form fields and returns a bearer token
func TestLogin(t *testing.T) {
	srv := newTestServer(t)
	srv.signup(t, "ada@example.com", "password123")

	tests := []struct {
		name       string
		email      string
		password   string
		wantStatus int
		wantDetail string
	}{
		{name: "valid", email: "ada@example.com", password: "password123", wantStatus: http.StatusOK},
		{name: "wrong password", email: "ada@example.com", password: "wrong-password", wantStatus: http.StatusBadRequest, wantDetail: "Incorrect email or password"},
		{name: "unknown email", email: "bob@example.com", password: "password123", wantStatus: http.StatusBadRequest, wantDetail: "Incorrect email or password"},
		{name: "missing password", email: "ada@example.com", password: "", wantStatus: http.StatusUnprocessableEntity, wantDetail: "password is required"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			resp, body := srv.do(t, loginRequest(test.email, test.password))

			assert.Equal(t, test.wantStatus, resp.StatusCode)
			if test.wantStatus == http.StatusOK {
				assert.NotEmpty(t, gjson.Get(body, "access_token").String())
				assert.Equal(t, "bearer", gjson.Get(body, "token_type").String())
				return
			}
			assert.Equal(t, test.wantDetail, gjson.Get(body, "detail").String())
		})
	}
}

// Requirement: Only callers with the right password learn the account is inactive
func TestLogin_InactiveUser(t *testing.T) {
	srv := newTestServer(t)
	srv.signup(t, "ada@example.com", "password123")

	user, err := srv.store.GetUserByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	user.IsActive = false
	require.NoError(t, srv.store.UpdateUser(context.Background(), user))

	resp, body := srv.do(t, loginRequest("ada@example.com", "password123"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Inactive user", gjson.Get(body, "detail").String())

	resp, body = srv.do(t, loginRequest("ada@example.com", "wrong-password"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Incorrect email or password", gjson.Get(body, "detail").String())
}

// Requirement: Repeated logins from one address are throttled
func TestLogin_RateLimited(t *testing.T) {
	srv := newTestServer(t, WithLoginRateLimit(rate.Every(time.Hour), 2))

	for i := 0; i < 2; i++ {
		resp, _ := srv.do(t, loginRequest("ada@example.com", "password123"))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}

	resp, body := srv.do(t, loginRequest("ada@example.com", "password123"))
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "Too many login attempts", gjson.Get(body, "detail").String())
}

// Requirement: Protected routes answer 401 with a Bearer challenge
func TestMe_Unauthorized(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name       string
		token      string
		wantDetail string
	}{
		{name: "no token", token: "", wantDetail: "Not authenticated"},
		{name: "garbage token", token: "not-a-token", wantDetail: "Could not validate credentials"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			resp, body := srv.do(t, jsonRequest(http.MethodGet, "/api/v1/users/me", "", test.token))

			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, "Bearer", resp.Header.Get(fiber.HeaderWWWAuthenticate))
			assert.Equal(t, test.wantDetail, gjson.Get(body, "detail").String())
		})
	}
}

func TestMe(t *testing.T) {
	srv := newTestServer(t)
	srv.signup(t, "ada@example.com", "password123")
	token := srv.login(t, "ada@example.com", "password123")

	resp, body := srv.do(t, jsonRequest(http.MethodGet, "/api/v1/users/me", "", token))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ada@example.com", gjson.Get(body, "email").String())
	assert.False(t, gjson.Get(body, "is_admin").Bool())
}

func TestMe_CookieToken(t *testing.T) {
	srv := newTestServer(t)
	srv.signup(t, "ada@example.com", "password123")
	token := srv.login(t, "ada@example.com", "password123")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.AddCookie(&http.Cookie{Name: tokenCookie, Value: token})
	resp, _ := srv.do(t, req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// Requirement: Profile updates return the full server representation
func TestUpdateMe(t *testing.T) {
	srv := newTestServer(t)
	srv.signup(t, "ada@example.com", "password123")
	token := srv.login(t, "ada@example.com", "password123")

	resp, body := srv.do(t, jsonRequest(http.MethodPut, "/api/v1/users/me",
		`{"first_name":"Ada","home_airports":["CDG","ORY"]}`, token))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ada", gjson.Get(body, "first_name").String())
	assert.Equal(t, `["CDG","ORY"]`, gjson.Get(body, "home_airports").Raw)
	assert.Equal(t, "ada@example.com", gjson.Get(body, "email").String())

	resp, body = srv.do(t, jsonRequest(http.MethodPut, "/api/v1/users/me",
		`{"home_airports":["paris"]}`, token))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "home_airports[0] must be a three-letter airport code", gjson.Get(body, "detail").String())
}

func TestUpdateOnboarding(t *testing.T) {
	srv := newTestServer(t)
	srv.signup(t, "ada@example.com", "password123")
	token := srv.login(t, "ada@example.com", "password123")

	resp, body := srv.do(t, jsonRequest(http.MethodPut, "/api/v1/users/me/onboarding",
		`{"step":2,"data":{"first_name":"Ada","home_airports":["LHR"]}}`, token))
	assert.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, int64(2), gjson.Get(body, "onboarding_step").Int())
	assert.Equal(t, "Ada", gjson.Get(body, "first_name").String())

	resp, body = srv.do(t, jsonRequest(http.MethodPut, "/api/v1/users/me/onboarding",
		`{"step":5,"data":{}}`, token))
	assert.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.True(t, gjson.Get(body, "onboarding_completed").Bool())
}

// Requirement: Logout revokes the session server side
func TestLogout(t *testing.T) {
	srv := newTestServer(t)
	srv.signup(t, "ada@example.com", "password123")
	token := srv.login(t, "ada@example.com", "password123")

	resp, body := srv.do(t, jsonRequest(http.MethodPost, "/api/v1/auth/logout", "", token))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Signed out", gjson.Get(body, "detail").String())

	resp, _ = srv.do(t, jsonRequest(http.MethodGet, "/api/v1/users/me", "", token))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// Requirement: Signing out everywhere revokes every session of the caller only
func TestLogoutAll(t *testing.T) {
	srv := newTestServer(t)
	srv.signup(t, "ada@example.com", "password123")
	srv.signup(t, "bob@example.com", "password123")
	first := srv.login(t, "ada@example.com", "password123")
	second := srv.login(t, "ada@example.com", "password123")
	other := srv.login(t, "bob@example.com", "password123")

	resp, body := srv.do(t, jsonRequest(http.MethodPost, "/api/v1/auth/logout-all", "", first))
	assert.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, int64(2), gjson.Get(body, "revoked").Int())
	assert.Equal(t, "Signed out of 2 sessions", gjson.Get(body, "detail").String())

	for _, token := range []string{first, second} {
		resp, _ = srv.do(t, jsonRequest(http.MethodGet, "/api/v1/users/me", "", token))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp, _ = srv.do(t, jsonRequest(http.MethodGet, "/api/v1/users/me", "", other))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// Requirement: Users list their sessions and revoke one of their own, never someone else's
func TestSessions_ListAndRevoke(t *testing.T) {
	srv := newTestServer(t)
	srv.signup(t, "ada@example.com", "password123")
	srv.signup(t, "bob@example.com", "password123")
	current := srv.login(t, "ada@example.com", "password123")
	stale := srv.login(t, "ada@example.com", "password123")
	other := srv.login(t, "bob@example.com", "password123")

	resp, body := srv.do(t, jsonRequest(http.MethodGet, "/api/v1/auth/session", "", stale))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	staleID := gjson.Get(body, "session.id").String()
	_, body = srv.do(t, jsonRequest(http.MethodGet, "/api/v1/auth/session", "", other))
	otherID := gjson.Get(body, "session.id").String()

	resp, body = srv.do(t, jsonRequest(http.MethodGet, "/api/v1/auth/sessions", "", current))
	assert.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Len(t, gjson.Get(body, "sessions").Array(), 2)
	assert.NotEmpty(t, gjson.Get(body, "current").String())
	assert.NotEqual(t, staleID, gjson.Get(body, "current").String())
	assert.False(t, gjson.Get(body, "sessions.0.token_hash").Exists())

	resp, body = srv.do(t, jsonRequest(http.MethodDelete, "/api/v1/auth/sessions/"+otherID, "", current))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, codeNotFound, gjson.Get(body, "code").String())

	resp, body = srv.do(t, jsonRequest(http.MethodDelete, "/api/v1/auth/sessions/"+staleID, "", current))
	assert.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "Session revoked", gjson.Get(body, "detail").String())

	resp, _ = srv.do(t, jsonRequest(http.MethodGet, "/api/v1/users/me", "", stale))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = srv.do(t, jsonRequest(http.MethodGet, "/api/v1/users/me", "", current))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = srv.do(t, jsonRequest(http.MethodGet, "/api/v1/users/me", "", other))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// Requirement: Alert preferences start at the defaults and accept partial updates
func TestAlertPreferences(t *testing.T) {
	srv := newTestServer(t)
	srv.signup(t, "ada@example.com", "password123")
	token := srv.login(t, "ada@example.com", "password123")

	resp, body := srv.do(t, jsonRequest(http.MethodGet, "/api/v1/users/me/alert-preferences", "", token))
	assert.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, 30.0, gjson.Get(body, "min_discount_percentage").Float())
	assert.Equal(t, int64(180), gjson.Get(body, "advance_days_max").Int())
	assert.Equal(t, int64(3), gjson.Get(body, "max_alerts_per_week").Int())
	assert.True(t, gjson.Get(body, "preferred_routes").IsArray())

	resp, body = srv.do(t, jsonRequest(http.MethodPut, "/api/v1/users/me/alert-preferences",
		`{"max_price_europe":150,"preferred_routes":["CDG-LIS"],"max_alerts_per_week":99}`, token))
	assert.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, 150.0, gjson.Get(body, "max_price_europe").Float())
	assert.Equal(t, "CDG-LIS", gjson.Get(body, "preferred_routes.0").String())
	assert.Equal(t, 800.0, gjson.Get(body, "max_price_international").Float())
	assert.Equal(t, int64(3), gjson.Get(body, "max_alerts_per_week").Int())

	resp, body = srv.do(t, jsonRequest(http.MethodPut, "/api/v1/users/me/alert-preferences",
		`{"min_discount_percentage":95}`, token))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "min_discount_percentage must be at most 90", gjson.Get(body, "detail").String())

	resp, _ = srv.do(t, jsonRequest(http.MethodGet, "/api/v1/users/me/alert-preferences", "", ""))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSession(t *testing.T) {
	srv := newTestServer(t)
	srv.signup(t, "ada@example.com", "password123")
	token := srv.login(t, "ada@example.com", "password123")

	resp, body := srv.do(t, jsonRequest(http.MethodGet, "/api/v1/auth/session", "", token))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ada@example.com", gjson.Get(body, "user.email").String())
	assert.NotEmpty(t, gjson.Get(body, "session.id").String())
	assert.False(t, gjson.Get(body, "session.token_hash").Exists())
}

// Requirement: Admin routes answer 403 to regular users
func TestListUsers(t *testing.T) {
	srv := newTestServer(t)
	srv.signup(t, "admin@example.com", "password123")
	srv.signup(t, "ada@example.com", "password123")
	adminToken := srv.login(t, "admin@example.com", "password123")
	userToken := srv.login(t, "ada@example.com", "password123")

	resp, body := srv.do(t, jsonRequest(http.MethodGet, "/api/v1/admin/users", "", userToken))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Not enough permissions", gjson.Get(body, "detail").String())

	resp, body = srv.do(t, jsonRequest(http.MethodGet, "/api/v1/admin/users?limit=1", "", adminToken))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(2), gjson.Get(body, "total").Int())
	assert.Len(t, gjson.Get(body, "users").Array(), 1)

	resp, _ = srv.do(t, jsonRequest(http.MethodGet, "/api/v1/admin/users?limit=abc", "", adminToken))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestProtected(t *testing.T) {
	srv := newTestServer(t)
	srv.app.Get("/sensitive", srv.adapter.Protected(), func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"email": UserFrom(c).Email, "session": SessionFrom(c).ID})
	})
	srv.signup(t, "ada@example.com", "password123")
	token := srv.login(t, "ada@example.com", "password123")

	resp, body := srv.do(t, jsonRequest(http.MethodGet, "/sensitive", "", token))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ada@example.com", gjson.Get(body, "email").String())

	resp, _ = srv.do(t, jsonRequest(http.MethodGet, "/sensitive", "", ""))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)
	srv.signup(t, "ada@example.com", "password123")
	srv.login(t, "ada@example.com", "password123")

	resp, body := srv.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, gjson.Get(body, "ok").Bool())

	resp, body = srv.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `farewatch_logins_total{outcome="success"} 1`)
	assert.Contains(t, body, `farewatch_signups_total{outcome="success"} 1`)
	assert.Contains(t, body, "farewatch_session_cache_entries")
}

func TestMapError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{core.ErrInvalidCredentials, http.StatusBadRequest, codeInvalidCredentials},
		{core.ErrInactiveUser, http.StatusBadRequest, codeInactiveUser},
		{core.ErrUserExists, http.StatusBadRequest, codeUserExists},
		{core.ErrMissingAuthHeader, http.StatusUnauthorized, codeNotAuthenticated},
		{core.ErrSessionExpired, http.StatusUnauthorized, codeInvalidToken},
		{core.ErrForbidden, http.StatusForbidden, codeForbidden},
		{core.ErrNoSuchSession, http.StatusNotFound, codeNotFound},
		{core.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError, codeInternal},
	}

	for _, test := range tests {
		t.Run(test.err.Error(), func(t *testing.T) {
			status, body := mapError(test.err)
			assert.Equal(t, test.wantStatus, status)
			assert.Equal(t, test.wantCode, body.Code)
		})
	}
}

func TestMultiLimiter_ForgetsIdleKeys(t *testing.T) {
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	m := newMultiLimiter(rate.Every(time.Hour), 1, time.Minute)
	m.now = func() time.Time { return now }

	assert.True(t, m.allow("10.0.0.1"))
	assert.False(t, m.allow("10.0.0.1"))
	assert.True(t, m.allow("10.0.0.2"))

	now = now.Add(2 * time.Minute)
	assert.True(t, m.allow("10.0.0.3"))
	assert.Len(t, m.entries, 1)
}

func TestMultiLimiter_SweepsOncePerTTL(t *testing.T) {
	start := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	now := start
	m := newMultiLimiter(rate.Every(time.Hour), 1, time.Minute)
	m.now = func() time.Time { return now }

	m.allow("a")
	now = start.Add(30 * time.Second)
	m.allow("b")

	// a has been idle past ttl and the last sweep is a ttl old
	now = start.Add(70 * time.Second)
	m.allow("c")
	assert.NotContains(t, m.entries, "a")
	assert.Contains(t, m.entries, "b")

	// b is idle past ttl but the last sweep is recent
	now = start.Add(100 * time.Second)
	m.allow("d")
	assert.Len(t, m.entries, 3)
	assert.Contains(t, m.entries, "b")

	now = start.Add(131 * time.Second)
	m.allow("e")
	assert.NotContains(t, m.entries, "b")
	assert.Equal(t, now, m.lastSweep)
}
