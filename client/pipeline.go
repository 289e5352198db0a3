package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseSize = 4 << 20
)

// Request describes one API call relative to the pipeline's base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Form is sent as application/x-www-form-urlencoded.
	Form url.Values
	// JSON is marshalled as the body when Form is nil.
	JSON any
	// Public requests never carry the credential and never trigger the
	// sign-out reaction on 401.
	Public bool
}

type PipelineConfig struct {
	BaseURL    string
	HTTPClient *http.Client
	Store      CredentialStore
	Notifier   Notifier
	Navigator  Navigator
	Logger     *slog.Logger
}

// Pipeline sends every API call. It attaches the stored bearer token and
// reacts to failures: a rejected token clears the store and sends the user to
// login, server faults and connectivity failures raise a notification.
// The original error is always returned to the caller.
type Pipeline struct {
	base      *url.URL
	client    *http.Client
	store     CredentialStore
	notifier  Notifier
	navigator Navigator
	logger    *slog.Logger

	mu        sync.Mutex // serializes the unauthorized reaction
	listeners []func()
}

func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base url is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", cfg.BaseURL)
	}
	if cfg.Store == nil {
		return nil, errors.New("credential store is required")
	}

	p := &Pipeline{
		base:      base,
		client:    cfg.HTTPClient,
		store:     cfg.Store,
		notifier:  cfg.Notifier,
		navigator: cfg.Navigator,
		logger:    cfg.Logger,
	}
	if p.client == nil {
		p.client = &http.Client{Timeout: defaultTimeout}
	}
	if p.notifier == nil {
		p.notifier = noopNotifier{}
	}
	if p.navigator == nil {
		p.navigator = noopNavigator{}
	}
	if p.logger == nil {
		p.logger = discardLogger()
	}
	return p, nil
}

// OnUnauthorized registers fn to run each time a rejected token is cleared.
func (p *Pipeline) OnUnauthorized(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Do sends req and decodes a 2xx JSON body into out (when out is non-nil).
// Non-2xx responses return *APIError, transport failures *NetworkError and
// cancellation ctx.Err().
func (p *Pipeline) Do(ctx context.Context, req Request, out any) error {
	var token string
	if !req.Public {
		var err error
		if token, err = p.store.Get(); err != nil {
			return fmt.Errorf("read credential: %w", err)
		}
	}

	httpReq, err := p.newRequest(ctx, req, token)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		p.logger.Debug("request failed",
			slog.String("method", httpReq.Method),
			slog.String("path", req.Path),
			slog.Any("error", err),
		)
		p.notifier.Notify(LevelError, MessageUnreachable)
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		p.notifier.Notify(LevelError, MessageUnreachable)
		return &NetworkError{Err: err}
	}

	p.logger.Debug("request",
		slog.String("method", httpReq.Method),
		slog.String("path", req.Path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(bytes.TrimSpace(body)) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode %s %s response: %w", httpReq.Method, req.Path, err)
		}
		return nil
	}

	apiErr := parseAPIError(resp.StatusCode, body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		if !req.Public && token != "" {
			p.unauthorized(token)
		}
	case resp.StatusCode >= http.StatusInternalServerError:
		p.notifier.Notify(LevelError, MessageServerError)
	}

	return apiErr
}

func (p *Pipeline) newRequest(ctx context.Context, req Request, token string) (*http.Request, error) {
	target := p.base.JoinPath(req.Path)
	if len(req.Query) > 0 {
		target.RawQuery = req.Query.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case req.Form != nil:
		body = strings.NewReader(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.JSON != nil:
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", req.Method, req.Path, err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s request: %w", method, req.Path, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	return httpReq, nil
}

// unauthorized clears the store and redirects to login, once per token: only
// the first caller that still finds the rejected token in the store reacts.
func (p *Pipeline) unauthorized(token string) {
	p.mu.Lock()
	current, err := p.store.Get()
	if err != nil || current != token {
		p.mu.Unlock()
		return
	}
	if err := p.store.Clear(); err != nil {
		p.logger.Warn("clear rejected credential", slog.Any("error", err))
	}
	listeners := append([]func(){}, p.listeners...)
	p.mu.Unlock()

	p.logger.Warn("session rejected by server, signing out")
	for _, fn := range listeners {
		fn()
	}
	p.navigator.ToLogin()
}

// parseAPIError reads {"detail": "...", "code": "...", "errors": {field: [msg]}}.
// A FastAPI style detail list of {"loc": [...], "msg": "..."} is accepted too.
func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: body}

	if gjson.ValidBytes(body) {
		detail := gjson.GetBytes(body, "detail")
		switch {
		case detail.Type == gjson.String:
			apiErr.Detail = detail.String()
		case detail.IsArray():
			detail.ForEach(func(_, item gjson.Result) bool {
				loc := item.Get("loc").Array()
				field := ""
				if len(loc) > 0 {
					field = loc[len(loc)-1].String()
				}
				apiErr.FieldErrors = append(apiErr.FieldErrors, FieldError{Field: field, Message: item.Get("msg").String()})
				return true
			})
		}

		apiErr.Code = gjson.GetBytes(body, "code").String()

		gjson.GetBytes(body, "errors").ForEach(func(key, value gjson.Result) bool {
			if value.IsArray() {
				value.ForEach(func(_, msg gjson.Result) bool {
					apiErr.FieldErrors = append(apiErr.FieldErrors, FieldError{Field: key.String(), Message: msg.String()})
					return true
				})
				return true
			}
			apiErr.FieldErrors = append(apiErr.FieldErrors, FieldError{Field: key.String(), Message: value.String()})
			return true
		})
	}

	if apiErr.Detail == "" {
		if len(apiErr.FieldErrors) > 0 {
			apiErr.Detail = apiErr.FieldErrors[0].Message
		} else {
			apiErr.Detail = http.StatusText(status)
		}
	}
	return apiErr
}
