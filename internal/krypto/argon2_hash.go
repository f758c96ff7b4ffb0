package krypto

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argon2Variant = "argon2id"

	// Parameters follow the OWASP minimum recommendation for argon2id.
	argon2Memory      = 47104
	argon2Iterations  = 1
	argon2Parallelism = 1

	saltLen = 16
	keyLen  = 32
)

var ErrInvalidHash = errors.New("invalid argon2 hash")

// Argon2Hash is the parsed form of an argon2id hash in the standard
// "$argon2id$v=..$m=..,t=..,p=..$salt$hash" encoding.
type Argon2Hash struct {
	Variant     string
	Version     int
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	Salt        []byte
	Hash        []byte
}

// HashArgon2 hashes the provided bytes with argon2id and a random salt.
func HashArgon2(data []byte) (Argon2Hash, error) {
	salt, err := genRandomBytes(saltLen)
	if err != nil {
		return Argon2Hash{}, err
	}

	hash := argon2.IDKey(data, salt, argon2Iterations, argon2Memory, argon2Parallelism, keyLen)

	return Argon2Hash{
		Variant:     argon2Variant,
		Version:     argon2.Version,
		Memory:      argon2Memory,
		Iterations:  argon2Iterations,
		Parallelism: argon2Parallelism,
		Salt:        salt,
		Hash:        hash,
	}, nil
}

// ParseArgon2Hash parses a hash from its standard string encoding.
func ParseArgon2Hash(raw string) (Argon2Hash, error) {
	parts := strings.Split(raw, "$")
	if len(parts) != 6 || parts[0] != "" {
		return Argon2Hash{}, ErrInvalidHash
	}

	h := Argon2Hash{
		Variant: parts[1],
	}

	if h.Variant != argon2Variant {
		return Argon2Hash{}, ErrInvalidHash
	}

	if _, err := fmt.Sscanf(parts[2], "v=%d", &h.Version); err != nil {
		return Argon2Hash{}, ErrInvalidHash
	}

	if h.Version != argon2.Version {
		return Argon2Hash{}, ErrInvalidHash
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.Memory, &h.Iterations, &h.Parallelism); err != nil {
		return Argon2Hash{}, ErrInvalidHash
	}

	var err error
	h.Salt, err = base64.RawStdEncoding.Strict().DecodeString(parts[4])
	if err != nil {
		return Argon2Hash{}, ErrInvalidHash
	}

	h.Hash, err = base64.RawStdEncoding.Strict().DecodeString(parts[5])
	if err != nil {
		return Argon2Hash{}, ErrInvalidHash
	}

	return h, nil
}

// MatchBytes re-hashes data using the parameters and salt of h and
// compares the result to h in constant time.
func (h Argon2Hash) MatchBytes(data []byte) bool {
	if h.Variant != argon2Variant || h.Version != argon2.Version {
		return false
	}

	other := argon2.IDKey(data, h.Salt, h.Iterations, h.Memory, h.Parallelism, uint32(len(h.Hash)))

	return subtle.ConstantTimeCompare(h.Hash, other) == 1
}

// String returns the standard string encoding of the hash.
func (h Argon2Hash) String() string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		h.Variant,
		h.Version,
		h.Memory,
		h.Iterations,
		h.Parallelism,
		base64.RawStdEncoding.EncodeToString(h.Salt),
		base64.RawStdEncoding.EncodeToString(h.Hash),
	)
}

func (h Argon2Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Argon2Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseArgon2Hash(string(text))
	if err != nil {
		return err
	}

	*h = parsed

	return nil
}

// Scan implements sql.Scanner so hashes can be read from database columns.
func (h *Argon2Hash) Scan(src any) error {
	s, ok := src.(string)
	if !ok {
		return fmt.Errorf("cannot scan %T into Argon2Hash", src)
	}

	return h.UnmarshalText([]byte(s))
}
