// Package vtoken issues and redeems the short lived, single use secrets
// used by the verification and password reset flows.
package vtoken

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the purpose of a token and the shape of its subject.
type Kind string

const (
	// KindVerifyCode is a 6-digit code bound to an email address. The
	// address does not need to belong to a registered user yet.
	KindVerifyCode Kind = "verify_code"
	// KindVerifyEmail is an opaque token bound to a user ID.
	KindVerifyEmail Kind = "verify_email"
	// KindPasswordReset is an opaque token bound to a user ID.
	KindPasswordReset Kind = "password_reset"
)

var ErrUnknownKind = errors.New("unknown token kind")

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindVerifyCode, KindVerifyEmail, KindPasswordReset:
		return true
	}
	return false
}

// UserBound reports whether the subject of this kind is a user ID.
func (k Kind) UserBound() bool {
	return k == KindVerifyEmail || k == KindPasswordReset
}

// Record is the persisted state of an issued secret. The secret itself
// is never stored, only its digest.
type Record struct {
	ID         uuid.UUID
	Kind       Kind
	Subject    string
	ValueHash  string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// HashValue returns the hex encoded SHA-256 digest of a secret. The
// digest is deterministic so consumption can match on it in a single
// conditional write.
func HashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// Config holds the issuance defaults. Zero fields fall back to the
// values of DefaultConfig.
type Config struct {
	// CodeTTL is the default lifetime of verification codes.
	CodeTTL time.Duration
	// VerifyTokenTTL is the default lifetime of email verification tokens.
	VerifyTokenTTL time.Duration
	// ResetTokenTTL is the default lifetime of password reset tokens.
	ResetTokenTTL time.Duration
	// CodeLen is the number of digits in a verification code.
	CodeLen int
}

// DefaultConfig returns the standard issuance defaults.
func DefaultConfig() Config {
	return Config{
		CodeTTL:        10 * time.Minute,
		VerifyTokenTTL: 48 * time.Hour,
		ResetTokenTTL:  time.Hour,
		CodeLen:        6,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.CodeTTL <= 0 {
		c.CodeTTL = def.CodeTTL
	}
	if c.VerifyTokenTTL <= 0 {
		c.VerifyTokenTTL = def.VerifyTokenTTL
	}
	if c.ResetTokenTTL <= 0 {
		c.ResetTokenTTL = def.ResetTokenTTL
	}
	if c.CodeLen <= 0 {
		c.CodeLen = def.CodeLen
	}
	return c
}

func (c Config) ttlFor(kind Kind) time.Duration {
	switch kind {
	case KindVerifyCode:
		return c.CodeTTL
	case KindVerifyEmail:
		return c.VerifyTokenTTL
	case KindPasswordReset:
		return c.ResetTokenTTL
	}
	return 0
}
