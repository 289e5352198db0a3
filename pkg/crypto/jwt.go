package crypto

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
	ErrKeyTooShort  = errors.New("signing key must be at least 32 bytes")
)

const minKeyLength = 32

// TokenIssuer signs and parses HS256 session tokens.
// sub carries the user id and jti the session id.
type TokenIssuer struct {
	key    []byte
	issuer string
	now    func() time.Time
}

// SessionClaims is the verified content of a session token.
type SessionClaims struct {
	SessionID string
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func NewTokenIssuer(secret, issuer string) (*TokenIssuer, error) {
	if len(secret) < minKeyLength {
		return nil, ErrKeyTooShort
	}
	return &TokenIssuer{key: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// WithClock replaces the time source used for validation.
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	t.now = now
	return t
}

func (t *TokenIssuer) Issue(sessionID, userID string, issuedAt, expiresAt time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    t.issuer,
		Subject:   userID,
		ID:        sessionID,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

func (t *TokenIssuer) Parse(tokenStr string) (*SessionClaims, error) {
	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(
		tokenStr,
		claims,
		func(*jwt.Token) (any, error) { return t.key, nil },
		jwt.WithIssuer(t.issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !tok.Valid || claims.ID == "" || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}

	out := &SessionClaims{
		SessionID: claims.ID,
		UserID:    claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}
