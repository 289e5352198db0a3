package fiber

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/farewatch/core"
)

const tokenTypeBearer = "bearer"

// login exchanges form-encoded username (email) and password for a bearer token.
func (a *Adapter) login(c fiber.Ctx) error {
	ip := c.IP()
	if a.limiter != nil && !a.limiter.allow(ip) {
		a.metrics.login("rate_limited")
		return a.writeError(c, core.ErrRateLimited)
	}

	input := core.SignInInput{
		Email:    c.FormValue("username"),
		Password: c.FormValue("password"),
	}

	result, err := a.auth.SignIn(c.Context(), input, ip, c.Get(fiber.HeaderUserAgent))
	if err != nil {
		a.metrics.login(loginOutcome(err))
		return a.writeError(c, err)
	}
	a.metrics.login("success")

	return c.Status(http.StatusOK).JSON(core.TokenResponse{
		AccessToken: result.Token,
		TokenType:   tokenTypeBearer,
	})
}

func (a *Adapter) logout(c fiber.Ctx) error {
	token, _ := c.Locals(localToken).(string)
	if err := a.auth.SignOut(c.Context(), token); err != nil {
		return a.writeError(c, err)
	}

	return c.Status(http.StatusOK).JSON(core.ErrorResponse{Detail: "Signed out"})
}

func (a *Adapter) logoutAll(c fiber.Ctx) error {
	count, err := a.auth.SignOutEverywhere(c.Context(), UserFrom(c).ID)
	if err != nil {
		return a.writeError(c, err)
	}

	return c.Status(http.StatusOK).JSON(core.RevokeResult{
		Detail:  fmt.Sprintf("Signed out of %d sessions", count),
		Revoked: count,
	})
}

func (a *Adapter) listSessions(c fiber.Ctx) error {
	sessions, err := a.auth.ListSessions(c.Context(), UserFrom(c).ID)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(core.SessionList{
		Sessions: sessions,
		Current:  SessionFrom(c).ID,
	})
}

func (a *Adapter) revokeSession(c fiber.Ctx) error {
	if err := a.auth.RevokeSession(c.Context(), UserFrom(c).ID, c.Params("id")); err != nil {
		return a.writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(core.ErrorResponse{Detail: "Session revoked"})
}

func (a *Adapter) session(c fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(core.SessionData{
		User:    UserFrom(c),
		Session: SessionFrom(c),
	})
}

func (a *Adapter) signup(c fiber.Ctx) error {
	var input core.SignUpInput
	if err := c.Bind().Body(&input); err != nil {
		a.metrics.signup("validation")
		return a.writeError(c, invalidBody())
	}

	user, err := a.auth.SignUp(c.Context(), input)
	if err != nil {
		a.metrics.signup(signupOutcome(err))
		return a.writeError(c, err)
	}
	a.metrics.signup("success")

	return c.Status(http.StatusCreated).JSON(user)
}

func (a *Adapter) me(c fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(UserFrom(c))
}

func (a *Adapter) updateMe(c fiber.Ctx) error {
	var patch core.ProfileUpdate
	if err := c.Bind().Body(&patch); err != nil {
		return a.writeError(c, invalidBody())
	}

	user, err := a.auth.UpdateProfile(c.Context(), UserFrom(c).ID, patch)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(user)
}

func (a *Adapter) updateOnboarding(c fiber.Ctx) error {
	var input core.OnboardingUpdate
	if err := c.Bind().Body(&input); err != nil {
		return a.writeError(c, invalidBody())
	}

	user, err := a.auth.UpdateOnboarding(c.Context(), UserFrom(c).ID, input)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(user)
}

func (a *Adapter) alertPreferences(c fiber.Ctx) error {
	prefs, err := a.auth.AlertPreferences(c.Context(), UserFrom(c).ID)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(prefs)
}

func (a *Adapter) updateAlertPreferences(c fiber.Ctx) error {
	var patch core.AlertPreferencesUpdate
	if err := c.Bind().Body(&patch); err != nil {
		return a.writeError(c, invalidBody())
	}

	prefs, err := a.auth.UpdateAlertPreferences(c.Context(), UserFrom(c).ID, patch)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(prefs)
}

func (a *Adapter) listUsers(c fiber.Ctx) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return a.writeError(c, core.NewFieldError("limit", "limit must be a number"))
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		return a.writeError(c, core.NewFieldError("offset", "offset must be a number"))
	}

	page, err := a.auth.ListUsers(c.Context(), limit, offset)
	if err != nil {
		return a.writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(page)
}

func (a *Adapter) health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true})
}

// queryInt reads an optional integer query parameter; absent means zero.
func queryInt(c fiber.Ctx, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func invalidBody() error {
	return core.NewFieldError("body", "body must be a valid JSON object")
}

func loginOutcome(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, core.ErrInactiveUser):
		return "inactive"
	case errors.Is(err, core.ErrValidation):
		return "validation"
	default:
		return "error"
	}
}

func signupOutcome(err error) string {
	switch {
	case errors.Is(err, core.ErrUserExists):
		return "exists"
	case errors.Is(err, core.ErrValidation):
		return "validation"
	default:
		return "error"
	}
}
