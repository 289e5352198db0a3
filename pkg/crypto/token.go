package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
)

var ErrEmptyToken = errors.New("token and hash cannot be empty")

// HashToken returns the hex SHA-256 of a session token. Only the hash is stored.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// VerifyToken reports whether token hashes to storedHash, in constant time.
func VerifyToken(token, storedHash string) (bool, error) {
	if token == "" || storedHash == "" {
		return false, ErrEmptyToken
	}

	return subtle.ConstantTimeCompare([]byte(HashToken(token)), []byte(storedHash)) == 1, nil
}
