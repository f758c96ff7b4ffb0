package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode"

	"github.com/evdwaal/staylink/internal/email"
	"github.com/evdwaal/staylink/internal/errorz"
	"github.com/evdwaal/staylink/internal/krypto"
	"github.com/evdwaal/staylink/internal/profile"
	"github.com/evdwaal/staylink/internal/vtoken"
	"github.com/google/uuid"
)

var (
	ErrDuplicateUser = errors.New("duplicate user")
	ErrUnknownType   = errors.New("unknown user type")
)

// Store persists user accounts.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	FindUserByEmail(ctx context.Context, addr email.Address) (User, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (User, error)
	UpdateUser(ctx context.Context, u *User) error
}

// TokenService issues and redeems the single-use secrets the auth flows
// depend on.
type TokenService interface {
	Issue(ctx context.Context, kind vtoken.Kind, subject string, ttl time.Duration) (vtoken.Issued, error)
	ValidateAndConsume(ctx context.Context, kind vtoken.Kind, subject, value string) (vtoken.Record, error)
}

// ProfileStore creates the hotel profile that accompanies a hotel account.
type ProfileStore interface {
	CreateProfile(ctx context.Context, p *profile.HotelProfile) error
}

// ErrFunc is a function that handles errors.
type ErrFunc func(error)

// ServiceConfig is the configuration for the Service.
type ServiceConfig struct {
	// WorkerTimeout is the max duration worker goroutines are allowed
	// to take befor they are cancelled.
	WorkerTimeout time.Duration
	// From is the sender address on outgoing emails.
	From email.Address
	// BaseURL prefixes the links embedded in emails.
	BaseURL string
}

// Service is the type that provides the main rules for
// authentication.
type Service struct {
	store      Store
	tokens     TokenService
	profiles   ProfileStore
	sender     email.Sender
	wg         *sync.WaitGroup
	errHandler ErrFunc
	cfg        ServiceConfig

	// comparisonHash is used to compare passwords when no user was found.
	comparisonHash krypto.Argon2Hash

	// NowFunc is used to get the current time.
	// Exposed for testing purposes.
	NowFunc func() time.Time
}

func NewService(s Store, tokens TokenService, profiles ProfileStore, sender email.Sender, errHandler ErrFunc, cfg ServiceConfig) (*Service, error) {
	tok, err := krypto.GenerateToken()
	if err != nil {
		return nil, err
	}

	hash, err := krypto.HashArgon2(tok[:])
	if err != nil {
		return nil, err
	}

	svc := &Service{
		store:          s,
		tokens:         tokens,
		profiles:       profiles,
		sender:         sender,
		wg:             &sync.WaitGroup{},
		errHandler:     errHandler,
		cfg:            cfg,
		comparisonHash: hash,
		NowFunc:        time.Now,
	}

	return svc, nil
}

// Wait waits for all open workers to finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Register registers a new user with the provided credentials.
// The main work of this method is done in a separate goroutine. The returned
// error does not indicate whether a user was actually registered or not. This
// is by design to prevent information leakage.
func (s *Service) Register(_ context.Context, c Credentials, userType UserType, name string) error {
	if !userType.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownType, userType)
	}

	// Hash the password.
	pwdHash, err := c.Password.Hash()
	if err != nil {
		return err
	}

	if name == "" {
		name = capitalize(c.Email.LocalPart())
	}

	// The actual work is done in a separate goroutine to prevent:
	// - Waiting for the email to be send might slow down sending a response.
	// - Information leakage. Timing difference between existing/non-existing
	//   user could lead to user enumeration attacks.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		wCtx, cancel := context.WithTimeout(context.Background(), s.cfg.WorkerTimeout)
		defer cancel()

		err := s.startRegistration(wCtx, c.Email, pwdHash, userType, name)
		if err != nil {
			s.errHandler(err)
			return
		}
	}()

	// Note that we don't let the caller know if the user was created or not.
	// This is by design, again to prevent information leakage.
	return nil
}

// startRegistration creates the pending account:
// - Create the auth.User, and for hotels the empty profile next to it.
// - Issue a verification code and a verification link token.
// - Send an email carrying both.
func (s *Service) startRegistration(ctx context.Context, addr email.Address, pwdHash krypto.Argon2Hash, userType UserType, name string) error {
	now := s.NowFunc()

	user := User{
		ID:           uuid.New(),
		Email:        addr,
		PasswordHash: pwdHash,
		Name:         name,
		Type:         userType,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.store.CreateUser(ctx, &user)
	if err != nil {
		if errors.Is(err, errorz.ErrConstraintViolated) {
			return ErrDuplicateUser
		}
		return err
	}

	if user.Type == TypeHotel {
		p := profile.HotelProfile{
			ID:       uuid.New(),
			UserID:   user.ID,
			Name:     name,
			Location: profile.PlaceholderLocation,
			Category: profile.DefaultCategory,
		}

		err = s.profiles.CreateProfile(ctx, &p)
		if err != nil {
			return err
		}
	}

	code, err := s.tokens.Issue(ctx, vtoken.KindVerifyCode, string(user.Email), 0)
	if err != nil {
		return err
	}

	link, err := s.tokens.Issue(ctx, vtoken.KindVerifyEmail, user.ID.String(), 0)
	if err != nil {
		return err
	}

	// Sending could fail independently of the writes above. This is an
	// acceptable risk for now, the user can always request a new code.
	body := fmt.Sprintf(
		"Welcome to Staylink, %s.\n\nYour verification code is %s.\n\nOr verify directly: %s/verify-email?uid=%s&token=%s\n",
		user.Name, code.Value, s.cfg.BaseURL, user.ID, link.Value,
	)

	return s.sender.Send(ctx, s.cfg.From, user.Email, "Verify your email", body)
}

// VerifyEmail redeems a verification code for the given address and marks
// the account verified.
func (s *Service) VerifyEmail(ctx context.Context, addr email.Address, code string) error {
	_, err := s.tokens.ValidateAndConsume(ctx, vtoken.KindVerifyCode, string(addr), code)
	if err != nil {
		return err
	}

	user, err := s.store.FindUserByEmail(ctx, addr)
	if err != nil {
		return err
	}

	return s.markVerified(ctx, user)
}

// VerifyEmailToken is the link-based variant of VerifyEmail.
func (s *Service) VerifyEmailToken(ctx context.Context, userID uuid.UUID, token string) error {
	_, err := s.tokens.ValidateAndConsume(ctx, vtoken.KindVerifyEmail, userID.String(), token)
	if err != nil {
		return err
	}

	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}

	return s.markVerified(ctx, user)
}

func (s *Service) markVerified(ctx context.Context, user User) error {
	user.EmailVerified = true
	if user.Status == StatusPending {
		user.Status = StatusVerified
	}
	user.UpdatedAt = s.NowFunc()

	return s.store.UpdateUser(ctx, &user)
}

// Authenticate checks if the provided credentials belong to a user that
// is allowed to sign in. Suspended accounts never authenticate.
func (s *Service) Authenticate(ctx context.Context, c Credentials) (User, bool, error) {
	user, err := s.store.FindUserByEmail(ctx, c.Email)
	if err != nil {
		if errors.Is(err, errorz.ErrNotFound) {
			// Even if no user is found we compare to a hash to prevent timing
			// differences that could result in user enumeration attacks.
			_ = c.Password.Match(s.comparisonHash)
			return User{}, false, nil
		}
		return User{}, false, err
	}

	if !c.Password.Match(user.PasswordHash) {
		return User{}, false, nil
	}

	if user.Status == StatusSuspended {
		return User{}, false, nil
	}

	return user, true, nil
}

// RequestPasswordReset requests a password reset for the user with the provided
// email address. Similarly to Register, the main work is done in a separate
// goroutine and no output is returned to indicate if the request was successful.
func (s *Service) RequestPasswordReset(_ context.Context, addr email.Address) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		wCtx, cancel := context.WithTimeout(context.Background(), s.cfg.WorkerTimeout)
		defer cancel()

		err := s.startPasswordReset(wCtx, addr)
		if err != nil {
			s.errHandler(err)
			return
		}
	}()
}

func (s *Service) startPasswordReset(ctx context.Context, addr email.Address) error {
	user, err := s.store.FindUserByEmail(ctx, addr)
	if err != nil {
		return err
	}

	if user.Status != StatusVerified {
		// Stay silent, the requester should not learn anything about
		// the account.
		return errorz.ErrNotFound
	}

	reset, err := s.tokens.Issue(ctx, vtoken.KindPasswordReset, user.ID.String(), 0)
	if err != nil {
		return err
	}

	body := fmt.Sprintf(
		"A password reset was requested for your account.\n\nReset it here: %s/reset-password?uid=%s&token=%s\n\nThe link is valid for one hour.\n",
		s.cfg.BaseURL, user.ID, reset.Value,
	)

	return s.sender.Send(ctx, s.cfg.From, user.Email, "Reset your password", body)
}

// ResetPassword redeems a password reset token and stores the new password.
func (s *Service) ResetPassword(ctx context.Context, userID uuid.UUID, token string, newPwd Password) error {
	pwdHash, err := newPwd.Hash()
	if err != nil {
		return err
	}

	_, err = s.tokens.ValidateAndConsume(ctx, vtoken.KindPasswordReset, userID.String(), token)
	if err != nil {
		return err
	}

	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}

	user.PasswordHash = pwdHash
	user.UpdatedAt = s.NowFunc()

	return s.store.UpdateUser(ctx, &user)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])

	return string(runes)
}
