// Package farewatch wires the farewatch auth server: storage, session
// manager, password hashing and an HTTP adapter.
package farewatch

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/lborres/farewatch/core"
	"github.com/lborres/farewatch/pkg/cache"
	"github.com/lborres/farewatch/pkg/crypto"
	"github.com/lborres/farewatch/services"
)

// interfaces
type (
	AuthStorage = core.AuthStorage
	Cache       = core.Cache
	AuthHandler = core.AuthHandler

	PasswordHandler = crypto.PasswordHandler
)

// structs
type (
	SessionConfig = core.SessionConfig
	CacheConfig   = core.CacheConfig
)

type (
	User          = core.User
	Account       = core.Account
	Session       = core.Session
	SessionData   = core.SessionData
	CacheStats    = core.CacheStats
	Tier          = core.Tier
	ProfileUpdate = core.ProfileUpdate
)

const (
	defaultBasePath  = "/api/v1"
	defaultSecretLen = 32
)

// Constructors & helpers (convenience re-exports)
var (
	NewInMemoryCache     = cache.NewInMemoryCache
	NewArgon2            = crypto.NewArgon2
	DefaultSessionConfig = core.DefaultSessionConfig
)

var (
	ErrUserExists         = core.ErrUserExists
	ErrUserNotFound       = core.ErrUserNotFound
	ErrInvalidCredentials = core.ErrInvalidCredentials
	ErrInactiveUser       = core.ErrInactiveUser
	ErrForbidden          = core.ErrForbidden
)

var (
	ErrMissingAuthHeader = core.ErrMissingAuthHeader
	ErrInvalidToken      = core.ErrInvalidToken
	ErrSessionNotFound   = core.ErrSessionNotFound
	ErrSessionExpired    = core.ErrSessionExpired
	ErrCacheNotFound     = core.ErrCacheNotFound
)

var (
	ErrInvalidAuthHeader = core.ErrInvalidAuthHeader
	ErrValidation        = core.ErrValidation
	ErrRateLimited       = core.ErrRateLimited
)

var (
	ErrDBAdapterRequired   = core.ErrDBAdapterRequired
	ErrHTTPAdapterRequired = core.ErrHTTPAdapterRequired
	ErrSecretRequired      = core.ErrSecretRequired
	ErrSecretTooShort      = core.ErrSecretTooShort
)

// HTTPAdapter binds the registered endpoints to a web framework.
type HTTPAdapter interface {
	RegisterRoutes(fw *Farewatch) error
}

type Config struct {
	Secret   string
	Database core.AuthStorage
	HTTP     HTTPAdapter

	CacheAdapter core.Cache
	DisableCache bool

	SessionConfig  *core.SessionConfig
	PasswordHasher crypto.PasswordHandler

	// BasePath prefixes every API route. Defaults to /api/v1.
	BasePath string

	// AdminEmails get the admin flag when they sign up.
	AdminEmails []string

	Logger *slog.Logger
}

type Farewatch struct {
	Auth      *services.AuthService
	Sessions  *services.SessionManager
	Endpoints *services.EndpointRegistry
	Cache     core.Cache
	BasePath  string
	Logger    *slog.Logger
}

func New(config Config) (*Farewatch, error) {
	if config.Secret == "" {
		return nil, ErrSecretRequired
	}
	if len(config.Secret) < defaultSecretLen {
		return nil, fmt.Errorf("%w - minimum of %d characters", ErrSecretTooShort, defaultSecretLen)
	}
	if config.Database == nil {
		return nil, ErrDBAdapterRequired
	}
	if config.HTTP == nil {
		return nil, ErrHTTPAdapterRequired
	}

	// Set Defaults

	cacheAdapter := config.CacheAdapter
	if cacheAdapter == nil && !config.DisableCache {
		cacheAdapter = NewInMemoryCache(CacheConfig{
			TTL:     cache.DefaultTTL,
			MaxSize: cache.DefaultMaxSize,
		})
	}
	if config.DisableCache {
		cacheAdapter = nil
	}

	sessionConfig := DefaultSessionConfig()
	if config.SessionConfig != nil {
		if config.SessionConfig.MaxAge > 0 {
			sessionConfig.MaxAge = config.SessionConfig.MaxAge
		}
		if config.SessionConfig.Issuer != "" {
			sessionConfig.Issuer = config.SessionConfig.Issuer
		}
	}

	passwordHasher := config.PasswordHasher
	if passwordHasher == nil {
		passwordHasher = crypto.NewArgon2()
	}

	basePath := config.BasePath
	if basePath == "" {
		basePath = defaultBasePath
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	tokens, err := crypto.NewTokenIssuer(config.Secret, sessionConfig.Issuer)
	if err != nil {
		return nil, err
	}

	sessionManager := services.NewSessionManager(sessionConfig, config.Database, cacheAdapter, tokens)
	authService := services.NewAuthService(config.Database, sessionManager, passwordHasher).
		WithAdminEmails(config.AdminEmails...).
		WithLogger(logger)

	fw := &Farewatch{
		Auth:      authService,
		Sessions:  sessionManager,
		Endpoints: services.NewEndpointRegistry(),
		Cache:     cacheAdapter,
		BasePath:  basePath,
		Logger:    logger,
	}

	if err := config.HTTP.RegisterRoutes(fw); err != nil {
		return nil, err
	}

	return fw, nil
}
