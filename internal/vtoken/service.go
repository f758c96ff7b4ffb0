package vtoken

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/evdwaal/staylink/internal/errorz"
	"github.com/evdwaal/staylink/internal/krypto"
	"github.com/google/uuid"
)

var ErrInvalidSubject = errors.New("invalid subject")

// Store persists token records. Implementations must make ConsumeToken
// atomic with respect to concurrent consumers of the same record: of two
// racing calls exactly one may succeed.
type Store interface {
	CreateToken(ctx context.Context, rec *Record) error
	// ConsumeToken marks the matching unconsumed, unexpired record as
	// consumed at now and returns it. It returns errorz.ErrNotFound if no
	// record matches, errorz.ErrAlreadyUsed if the record was consumed
	// before and errorz.ErrExpired if the record exists but is past its
	// expiry. Expired records are left unconsumed.
	ConsumeToken(ctx context.Context, kind Kind, subject, valueHash string, now time.Time) (Record, error)
	DeleteStaleTokens(ctx context.Context, now, cutoff time.Time) (int64, error)
}

// Issued pairs a persisted record with the plaintext secret. The secret
// is only available here, at issuance, it cannot be recovered later.
type Issued struct {
	Record Record
	Value  string
}

// Service is the token store: it issues, validates and consumes the
// secrets behind email verification and password resets.
type Service struct {
	store  Store
	logger *slog.Logger
	cfg    Config

	// NowFunc is used to get the current time.
	// Exposed for testing purposes.
	NowFunc func() time.Time
}

func NewService(store Store, logger *slog.Logger, cfg Config) *Service {
	return &Service{
		store:   store,
		logger:  logger,
		cfg:     cfg.withDefaults(),
		NowFunc: time.Now,
	}
}

// Issue generates a new secret of the given kind for subject and persists
// its record. A ttl of zero selects the default for the kind. Issuing
// does not invalidate earlier outstanding secrets for the same subject,
// they each remain independently consumable until they expire.
func (s *Service) Issue(ctx context.Context, kind Kind, subject string, ttl time.Duration) (Issued, error) {
	if !kind.Valid() {
		return Issued{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	if err := checkSubject(kind, subject); err != nil {
		return Issued{}, err
	}

	value, err := s.generateValue(kind)
	if err != nil {
		return Issued{}, err
	}

	if ttl <= 0 {
		ttl = s.cfg.ttlFor(kind)
	}

	now := s.NowFunc()
	rec := Record{
		ID:        uuid.New(),
		Kind:      kind,
		Subject:   subject,
		ValueHash: HashValue(value),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	if err := s.store.CreateToken(ctx, &rec); err != nil {
		return Issued{}, fmt.Errorf("failed to persist %s token: %w", kind, err)
	}

	s.logger.Info("issued token",
		"kind", kind,
		"tokenID", rec.ID,
		"expiresAt", rec.ExpiresAt,
	)

	return Issued{Record: rec, Value: value}, nil
}

// ValidateAndConsume redeems the secret for subject. The value is
// compared exactly as provided, callers normalize before calling.
//
// On success the record is atomically marked consumed, a second call with
// the same value will fail. Failures are reported as errorz.ErrNotFound
// (no match or already used, indistinguishable to the caller) or
// errorz.ErrExpired.
func (s *Service) ValidateAndConsume(ctx context.Context, kind Kind, subject, value string) (Record, error) {
	if !kind.Valid() {
		return Record{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	rec, err := s.store.ConsumeToken(ctx, kind, subject, HashValue(value), s.NowFunc())
	if err != nil {
		// The distinction between never-existed and already-used stays
		// internal, but it matters for spotting replayed secrets.
		if errors.Is(err, errorz.ErrAlreadyUsed) {
			s.logger.Warn("attempt to reuse consumed token", "kind", kind)
		}
		return Record{}, err
	}

	s.logger.Info("consumed token", "kind", kind, "tokenID", rec.ID)

	return rec, nil
}

// Sweep deletes consumed records and expired records created before
// now - olderThan. It is purely housekeeping: expired and consumed
// records are already inert, so Sweep is safe to run concurrently with
// Issue and ValidateAndConsume and can be retried at any point.
func (s *Service) Sweep(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := s.NowFunc()

	count, err := s.store.DeleteStaleTokens(ctx, now, now.Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to sweep tokens: %w", err)
	}

	if count > 0 {
		s.logger.Info("swept stale tokens", "count", count)
	}

	return count, nil
}

func (s *Service) generateValue(kind Kind) (string, error) {
	if kind == KindVerifyCode {
		return krypto.GenerateCode(s.cfg.CodeLen)
	}

	tok, err := krypto.GenerateToken()
	if err != nil {
		return "", err
	}

	return tok.String(), nil
}

func checkSubject(kind Kind, subject string) error {
	if subject == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSubject)
	}

	if kind.UserBound() {
		if _, err := uuid.Parse(subject); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSubject, err)
		}
	}

	return nil
}
