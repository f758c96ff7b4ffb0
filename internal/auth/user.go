package auth

import (
	"time"

	"github.com/evdwaal/staylink/internal/email"
	"github.com/evdwaal/staylink/internal/krypto"
	"github.com/google/uuid"
)

// UserType distinguishes the two sides of the marketplace.
type UserType string

const (
	TypeHotel   UserType = "hotel"
	TypeCreator UserType = "creator"
)

func (t UserType) Valid() bool {
	return t == TypeHotel || t == TypeCreator
}

// Status is the lifecycle state of an account.
type Status string

const (
	StatusPending   Status = "pending"
	StatusVerified  Status = "verified"
	StatusSuspended Status = "suspended"
)

// User contains the data for a user.
type User struct {
	ID            uuid.UUID
	Email         email.Address
	PasswordHash  krypto.Argon2Hash
	Name          string
	Type          UserType
	Status        Status
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Credentials combine an email address with a plaintext password.
type Credentials struct {
	Email    email.Address
	Password Password
}
