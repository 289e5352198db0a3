package fiber

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/tidwall/sjson"

	"github.com/lborres/farewatch/core"
)

// Error codes sent next to the human readable detail.
const (
	codeInvalidCredentials = "invalid_credentials"
	codeInactiveUser       = "inactive_user"
	codeUserExists         = "user_exists"
	codeNotAuthenticated   = "not_authenticated"
	codeInvalidToken       = "invalid_token"
	codeForbidden          = "forbidden"
	codeNotFound           = "not_found"
	codeValidation         = "validation_error"
	codeRateLimited        = "rate_limited"
	codeInternal           = "internal_error"
)

// mapError maps domain errors to an HTTP status and response envelope.
func mapError(err error) (int, core.ErrorResponse) {
	switch {
	case errors.Is(err, core.ErrInvalidCredentials):
		return http.StatusBadRequest, core.ErrorResponse{Detail: "Incorrect email or password", Code: codeInvalidCredentials}

	case errors.Is(err, core.ErrInactiveUser):
		return http.StatusBadRequest, core.ErrorResponse{Detail: "Inactive user", Code: codeInactiveUser}

	case errors.Is(err, core.ErrUserExists):
		return http.StatusBadRequest, core.ErrorResponse{Detail: "A user with this email already exists", Code: codeUserExists}

	case errors.Is(err, core.ErrMissingAuthHeader):
		return http.StatusUnauthorized, core.ErrorResponse{Detail: "Not authenticated", Code: codeNotAuthenticated}

	case errors.Is(err, core.ErrInvalidToken),
		errors.Is(err, core.ErrInvalidAuthHeader),
		errors.Is(err, core.ErrSessionNotFound),
		errors.Is(err, core.ErrSessionExpired),
		errors.Is(err, core.ErrUserNotFound):
		return http.StatusUnauthorized, core.ErrorResponse{Detail: "Could not validate credentials", Code: codeInvalidToken}

	case errors.Is(err, core.ErrNoSuchSession):
		return http.StatusNotFound, core.ErrorResponse{Detail: "Session not found", Code: codeNotFound}

	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden, core.ErrorResponse{Detail: "Not enough permissions", Code: codeForbidden}

	case errors.Is(err, core.ErrValidation):
		return http.StatusUnprocessableEntity, core.ErrorResponse{Detail: "Validation failed", Code: codeValidation}

	case errors.Is(err, core.ErrRateLimited):
		return http.StatusTooManyRequests, core.ErrorResponse{Detail: "Too many login attempts", Code: codeRateLimited}

	default:
		return http.StatusInternalServerError, core.ErrorResponse{Detail: "Internal server error", Code: codeInternal}
	}
}

func (a *Adapter) writeError(c fiber.Ctx, err error) error {
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Status(http.StatusUnprocessableEntity).Send(validationBody(verr))
	}

	status, body := mapError(err)
	switch status {
	case http.StatusUnauthorized:
		c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
	case http.StatusInternalServerError:
		a.logger.Error("request failed",
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Any("error", err),
		)
	}
	return c.Status(status).JSON(body)
}

// validationBody renders {"detail", "code", "errors": {field: [messages]}}
// keeping fields in the order they failed.
func validationBody(verr *core.ValidationError) []byte {
	detail := verr.First().Message
	if detail == "" {
		detail = "Validation failed"
	}

	body := []byte(`{}`)
	body, _ = sjson.SetBytes(body, "detail", detail)
	body, _ = sjson.SetBytes(body, "code", codeValidation)
	body, _ = sjson.SetRawBytes(body, "errors", []byte(`{}`))

	order := make([]string, 0, len(verr.Fields))
	messages := make(map[string][]string, len(verr.Fields))
	for _, f := range verr.Fields {
		if _, seen := messages[f.Field]; !seen {
			order = append(order, f.Field)
		}
		messages[f.Field] = append(messages[f.Field], f.Message)
	}
	for _, field := range order {
		body, _ = sjson.SetBytes(body, "errors."+escapePath(field), messages[field])
	}
	return body
}

var pathEscaper = strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`)

func escapePath(field string) string {
	return pathEscaper.Replace(field)
}

func verificationResult(err error) string {
	switch {
	case errors.Is(err, core.ErrSessionExpired):
		return "expired"
	case errors.Is(err, core.ErrInactiveUser):
		return "inactive"
	case errors.Is(err, core.ErrInvalidToken), errors.Is(err, core.ErrSessionNotFound):
		return "invalid"
	default:
		return "error"
	}
}
