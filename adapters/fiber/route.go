package fiber

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"golang.org/x/time/rate"

	"github.com/lborres/farewatch"
	"github.com/lborres/farewatch/core"
	"github.com/lborres/farewatch/services"
)

const (
	defaultLoginRate  = rate.Limit(10.0 / 60.0) // 10 per minute
	defaultLoginBurst = 10
	limiterTTL        = 10 * time.Minute
)

type Adapter struct {
	app     *fiber.App
	auth    core.AuthHandler
	logger  *slog.Logger
	limiter *multiLimiter
	metrics *Metrics
}

var _ farewatch.HTTPAdapter = (*Adapter)(nil)

type Option func(*Adapter)

// WithLoginRateLimit throttles login attempts per client IP. A zero limit
// disables throttling.
func WithLoginRateLimit(limit rate.Limit, burst int) Option {
	return func(a *Adapter) {
		if limit <= 0 {
			a.limiter = nil
			return
		}
		a.limiter = newMultiLimiter(limit, burst, limiterTTL)
	}
}

func WithMetrics(m *Metrics) Option {
	return func(a *Adapter) { a.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) { a.logger = logger }
}

func New(app *fiber.App, opts ...Option) *Adapter {
	a := &Adapter{
		app:     app,
		limiter: newMultiLimiter(defaultLoginRate, defaultLoginBurst, limiterTTL),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.metrics == nil {
		a.metrics = NewMetrics()
	}
	return a
}

func (a *Adapter) RegisterRoutes(fw *farewatch.Farewatch) error {
	a.auth = fw.Auth
	if a.logger == nil {
		a.logger = fw.Logger
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if stats, ok := fw.Cache.(core.CacheWithStats); ok {
		a.metrics.observeCache(stats)
	}

	handlers := map[string]fiber.Handler{
		services.OpLogin:            a.login,
		services.OpLogout:           a.logout,
		services.OpGetSession:       a.session,
		services.OpSignUp:           a.signup,
		services.OpGetMe:            a.me,
		services.OpUpdateMe:         a.updateMe,
		services.OpUpdateOnboarding: a.updateOnboarding,
		services.OpListUsers:        a.listUsers,

		services.OpLogoutAll:              a.logoutAll,
		services.OpListSessions:           a.listSessions,
		services.OpRevokeSession:          a.revokeSession,
		services.OpGetAlertPreferences:    a.alertPreferences,
		services.OpUpdateAlertPreferences: a.updateAlertPreferences,
	}

	api := a.app.Group(fw.BasePath)
	for _, ep := range fw.Endpoints.Endpoints() {
		handler, ok := handlers[ep.Metadata.OperationID]
		if !ok {
			return fmt.Errorf("no handler bound for operation %q (%s %s)", ep.Metadata.OperationID, ep.Method, ep.Path)
		}

		methods := []string{ep.Method}
		switch ep.Metadata.Auth {
		case core.AuthAdmin:
			api.Add(methods, ep.Path, a.requireAuth, a.requireAdmin, handler)
		case core.AuthUser:
			api.Add(methods, ep.Path, a.requireAuth, handler)
		default:
			api.Add(methods, ep.Path, handler)
		}
	}

	a.app.Get("/health", a.health)
	a.app.Get("/metrics", a.metrics.Handler())

	return nil
}

// Protected returns the middleware that guards host application routes.
// Handlers behind it read the caller with UserFrom and SessionFrom.
func (a *Adapter) Protected() fiber.Handler {
	return a.requireAuth
}
