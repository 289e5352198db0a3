// Package client is the consumer side of the farewatch API: a credential
// store, the request pipeline every call goes through, the session
// controller and the route guard.
//
// Build one Client at application start and pass it to whatever needs it.
package client

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/lborres/farewatch/core"
)

type Config struct {
	// BaseURL is the API root, e.g. https://api.example.com/api/v1.
	BaseURL    string
	HTTPClient *http.Client
	// Store defaults to a MemoryStore.
	Store     CredentialStore
	Notifier  Notifier
	Navigator Navigator
	Logger    *slog.Logger
}

type Client struct {
	Store    CredentialStore
	Pipeline *Pipeline
	Session  *Controller
	Guard    *Guard
}

func New(cfg Config) (*Client, error) {
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}

	pipeline, err := NewPipeline(PipelineConfig{
		BaseURL:    cfg.BaseURL,
		HTTPClient: cfg.HTTPClient,
		Store:      store,
		Notifier:   cfg.Notifier,
		Navigator:  cfg.Navigator,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	controller, err := NewController(ControllerConfig{
		Pipeline: pipeline,
		Store:    store,
		Notifier: cfg.Notifier,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		Store:    store,
		Pipeline: pipeline,
		Session:  controller,
		Guard:    NewGuard(controller, cfg.Navigator),
	}, nil
}

// CurrentSession returns the server's view of the signed-in session.
func (c *Client) CurrentSession(ctx context.Context) (*core.SessionData, error) {
	var data core.SessionData
	if err := c.Pipeline.Do(ctx, Request{Method: http.MethodGet, Path: PathSession}, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// ListUsers pages through all users. Administrators only.
func (c *Client) ListUsers(ctx context.Context, limit, offset int) (*core.UserPage, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		query.Set("offset", strconv.Itoa(offset))
	}

	var page core.UserPage
	if err := c.Pipeline.Do(ctx, Request{Method: http.MethodGet, Path: PathAdminUsers, Query: query}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Sessions lists the signed-in user's active sessions.
func (c *Client) Sessions(ctx context.Context) (*core.SessionList, error) {
	var list core.SessionList
	if err := c.Pipeline.Do(ctx, Request{Method: http.MethodGet, Path: PathSessions}, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// RevokeSession ends one of the user's sessions by id.
func (c *Client) RevokeSession(ctx context.Context, id string) error {
	return c.Pipeline.Do(ctx, Request{Method: http.MethodDelete, Path: PathSessions + "/" + url.PathEscape(id)}, nil)
}

type AlertPreferences = core.AlertPreferences

// AlertPreferencesPatch is a partial change; nil fields are not sent.
type AlertPreferencesPatch = core.AlertPreferencesUpdate

func (c *Client) AlertPreferences(ctx context.Context) (*AlertPreferences, error) {
	var prefs AlertPreferences
	if err := c.Pipeline.Do(ctx, Request{Method: http.MethodGet, Path: PathAlertPreferences}, &prefs); err != nil {
		return nil, err
	}
	return &prefs, nil
}

func (c *Client) UpdateAlertPreferences(ctx context.Context, patch AlertPreferencesPatch) (*AlertPreferences, error) {
	var prefs AlertPreferences
	if err := c.Pipeline.Do(ctx, Request{Method: http.MethodPut, Path: PathAlertPreferences, JSON: patch}, &prefs); err != nil {
		return nil, err
	}
	return &prefs, nil
}
