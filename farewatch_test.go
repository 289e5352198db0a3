package farewatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lborres/farewatch/adapters/memory"
	"github.com/lborres/farewatch/core"
	"github.com/lborres/farewatch/pkg/cache"
)

const testSecret = "01234567890123456789012345678901"

type dummyHTTP struct {
	registered *Farewatch
	err        error
}

func (d *dummyHTTP) RegisterRoutes(fw *Farewatch) error {
	d.registered = fw
	return d.err
}

// failingSessions reports every session lookup as missing.
type failingSessions struct {
	*memory.Storage
	fail bool
}

func (f *failingSessions) GetSessionByHash(ctx context.Context, tokenHash string) (*core.Session, error) {
	if f.fail {
		return nil, ErrSessionNotFound
	}
	return f.Storage.GetSessionByHash(ctx, tokenHash)
}

func TestNew_ConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{
			name:    "missing secret",
			config:  Config{Database: memory.New(), HTTP: &dummyHTTP{}},
			wantErr: ErrSecretRequired,
		},
		{
			name:    "short secret",
			config:  Config{Secret: "short-secret", Database: memory.New(), HTTP: &dummyHTTP{}},
			wantErr: ErrSecretTooShort,
		},
		{
			name:    "missing database",
			config:  Config{Secret: testSecret, HTTP: &dummyHTTP{}},
			wantErr: ErrDBAdapterRequired,
		},
		{
			name:    "missing http adapter",
			config:  Config{Secret: testSecret, Database: memory.New()},
			wantErr: ErrHTTPAdapterRequired,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := New(test.config)
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("expected %v, got %v", test.wantErr, err)
			}
		})
	}
}

// Requirement: The secret error names the minimum length
func TestNew_SecretTooShortMentionsMinimum(t *testing.T) {
	_, err := New(Config{Secret: "short-secret", Database: memory.New(), HTTP: &dummyHTTP{}})
	if !strings.Contains(err.Error(), "32") {
		t.Fatalf("expected error message to include minimum length, got %v", err)
	}
}

func TestNew_Defaults(t *testing.T) {
	adapter := &dummyHTTP{}

	fw, err := New(Config{Secret: testSecret, Database: memory.New(), HTTP: adapter})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if adapter.registered != fw {
		t.Fatalf("expected the adapter to receive the instance")
	}
	if fw.BasePath != "/api/v1" {
		t.Errorf("expected default base path /api/v1, got %q", fw.BasePath)
	}
	if fw.Sessions.MaxAge() != 24*time.Hour {
		t.Errorf("expected 24h sessions, got %v", fw.Sessions.MaxAge())
	}
	if _, ok := fw.Cache.(*cache.InMemoryCache); !ok {
		t.Errorf("expected default in-memory cache, got %T", fw.Cache)
	}
	if len(fw.Endpoints.Endpoints()) != 13 {
		t.Errorf("expected 13 base endpoints, got %d", len(fw.Endpoints.Endpoints()))
	}
}

func TestNew_AdapterError(t *testing.T) {
	boom := errors.New("route conflict")

	_, err := New(Config{Secret: testSecret, Database: memory.New(), HTTP: &dummyHTTP{err: boom}})

	if !errors.Is(err, boom) {
		t.Fatalf("expected adapter error, got %v", err)
	}
}

// Requirement: With the cache disabled every verification reaches storage
func TestNew_DisableCache(t *testing.T) {
	storage := &failingSessions{Storage: memory.New()}
	ctx := context.Background()

	fw, err := New(Config{Secret: testSecret, Database: storage, HTTP: &dummyHTTP{}, DisableCache: true})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if fw.Cache != nil {
		t.Fatalf("expected no cache, got %T", fw.Cache)
	}

	res, err := fw.Sessions.Create(ctx, "user1", "127.0.0.1", "ua")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	storage.fail = true
	_, err = fw.Sessions.Verify(ctx, res.Token)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound because cache disabled, got %v", err)
	}
}

func TestNew_SessionConfigOverrides(t *testing.T) {
	fw, err := New(Config{
		Secret:        testSecret,
		Database:      memory.New(),
		HTTP:          &dummyHTTP{},
		SessionConfig: &SessionConfig{MaxAge: time.Hour},
		BasePath:      "/auth",
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if fw.Sessions.MaxAge() != time.Hour {
		t.Errorf("expected 1h sessions, got %v", fw.Sessions.MaxAge())
	}
	if fw.BasePath != "/auth" {
		t.Errorf("expected base path /auth, got %q", fw.BasePath)
	}
}
