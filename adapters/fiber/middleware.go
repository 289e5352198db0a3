package fiber

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/farewatch/core"
)

const (
	localUser    = "user"
	localSession = "session"
	localToken   = "token"

	tokenCookie = "auth_token"
)

// requireAuth validates the bearer token and stores user/session data in the
// context for downstream handlers.
func (a *Adapter) requireAuth(c fiber.Ctx) error {
	token := extractToken(c)
	if token == "" {
		a.metrics.verification("missing")
		return a.writeError(c, core.ErrMissingAuthHeader)
	}

	data, err := a.auth.GetSession(c.Context(), token)
	if err != nil {
		a.metrics.verification(verificationResult(err))
		return a.writeError(c, err)
	}
	a.metrics.verification("ok")

	c.Locals(localUser, data.User)
	c.Locals(localSession, data.Session)
	c.Locals(localToken, token)

	return c.Next()
}

func (a *Adapter) requireAdmin(c fiber.Ctx) error {
	user := UserFrom(c)
	if user == nil || !user.IsAdmin {
		return a.writeError(c, core.ErrForbidden)
	}
	return c.Next()
}

// UserFrom returns the user stored by the auth middleware, or nil.
func UserFrom(c fiber.Ctx) *core.User {
	user, _ := c.Locals(localUser).(*core.User)
	return user
}

// SessionFrom returns the session stored by the auth middleware, or nil.
func SessionFrom(c fiber.Ctx) *core.Session {
	session, _ := c.Locals(localSession).(*core.Session)
	return session
}

// extractToken extracts the authentication token from the request.
// Checks Authorization header (Bearer token) first, then falls back to cookie.
func extractToken(c fiber.Ctx) string {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}

	return c.Cookies(tokenCookie)
}
