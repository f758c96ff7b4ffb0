package krypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
)

const (
	tokenLen = 32

	// SecretMarker is a string we can look for in logs to see if the app
	// is accidentally exposing secrets.
	SecretMarker = "<!SECRET_REDACTED!>"
)

var ErrInvalidToken = errors.New("invalid token")

// encoding is the URL-safe alphabet tokens are rendered in, so they can
// be embedded in verification and reset links without escaping.
var encoding = base64.RawURLEncoding

// Token is a random token that is sent via email.
//
// The only time a token should be provided in plaintext is as part of
// the email to the user. Tokens are confidential and should never be
// exposed in logs or persisted in plaintext.
type Token [tokenLen]byte

// GenerateToken creates a new random token with 256 bits of entropy.
func GenerateToken() (Token, error) {
	b, err := genRandomBytes(tokenLen)
	if err != nil {
		return [tokenLen]byte{}, err
	}
	return [tokenLen]byte(b), nil
}

// ParseToken parses a token from its URL-safe string representation.
func ParseToken(raw string) (Token, error) {
	if len(raw) != encoding.EncodedLen(tokenLen) {
		return [tokenLen]byte{}, ErrInvalidToken
	}

	b, err := encoding.DecodeString(raw)
	if err != nil {
		return [tokenLen]byte{}, ErrInvalidToken
	}

	return [tokenLen]byte(b), nil
}

// String returns the URL-safe string representation of the token.
// As opposed to a Password this is allowed, we need to embed the
// token in emails.
func (t Token) String() string {
	return encoding.EncodeToString(t[:])
}

// LogValue implements the slog.Valuer interface.
func (t Token) LogValue() slog.Value {
	return slog.StringValue(SecretMarker)
}

func genRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return b, nil
}
