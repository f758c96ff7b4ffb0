package web

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/evdwaal/staylink/internal/auth"
	"github.com/evdwaal/staylink/internal/email"
	"github.com/evdwaal/staylink/internal/errorz"
	"github.com/evdwaal/staylink/internal/profile"
	"github.com/google/uuid"
)

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Type     string `json:"type"`
	Name     string `json:"name"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.readJSON(w, r, &req) {
		return
	}

	c, ok := s.credentials(w, req.Email, req.Password)
	if !ok {
		return
	}

	err := s.deps.AuthService.Register(r.Context(), c, auth.UserType(req.Type), req.Name)
	if err != nil {
		if errors.Is(err, auth.ErrUnknownType) {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown user type"})
			return
		}
		s.writeError(w, r, err)
		return
	}

	// Whether an account was actually created stays hidden on purpose.
	s.writeJSON(w, http.StatusAccepted, messageResponse{
		Message: "registration received, check your inbox to verify your email",
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Type          string    `json:"type"`
	Status        string    `json:"status"`
	EmailVerified bool      `json:"email_verified"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.readJSON(w, r, &req) {
		return
	}

	c, ok := s.credentials(w, req.Email, req.Password)
	if !ok {
		return
	}

	user, ok, err := s.deps.AuthService.Authenticate(r.Context(), c)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if !ok {
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})
		return
	}

	s.writeJSON(w, http.StatusOK, userResponse{
		ID:            user.ID,
		Email:         string(user.Email),
		Name:          user.Name,
		Type:          string(user.Type),
		Status:        string(user.Status),
		EmailVerified: user.EmailVerified,
	})
}

type verifyEmailRequest struct {
	Email string `json:"email,omitempty"`
	Code  string `json:"code,omitempty"`
	UID   string `json:"uid,omitempty"`
	Token string `json:"token,omitempty"`
}

func (s *Server) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if !s.readJSON(w, r, &req) {
		return
	}

	// The store compares secrets exactly, normalization happens here.
	req.Code = strings.TrimSpace(req.Code)
	req.Token = strings.TrimSpace(req.Token)

	var err error
	switch {
	case req.Code != "":
		var addr email.Address
		addr, err = email.ParseAddress(req.Email)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid email address"})
			return
		}

		err = s.deps.AuthService.VerifyEmail(r.Context(), addr, req.Code)
	case req.Token != "":
		var uid uuid.UUID
		uid, err = uuid.Parse(req.UID)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: genericTokenError})
			return
		}

		err = s.deps.AuthService.VerifyEmailToken(r.Context(), uid, req.Token)
	default:
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "code or token required"})
		return
	}

	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "email verified"})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !s.readJSON(w, r, &req) {
		return
	}

	addr, err := email.ParseAddress(req.Email)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid email address"})
		return
	}

	s.deps.AuthService.RequestPasswordReset(r.Context(), addr)

	// Always accepted, existing and unknown addresses are indistinguishable.
	s.writeJSON(w, http.StatusAccepted, messageResponse{
		Message: "if the address is known, a reset link is on its way",
	})
}

type resetPasswordRequest struct {
	UID      string `json:"uid"`
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !s.readJSON(w, r, &req) {
		return
	}

	uid, err := uuid.Parse(req.UID)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: genericTokenError})
		return
	}

	pwd, err := auth.ParsePassword(req.Password)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid password"})
		return
	}

	err = s.deps.AuthService.ResetPassword(r.Context(), uid, strings.TrimSpace(req.Token), pwd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "password updated"})
}

type profileResponse struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	Name        string     `json:"name"`
	Location    string     `json:"location"`
	Category    string     `json:"category"`
	About       string     `json:"about"`
	Website     string     `json:"website"`
	Complete    bool       `json:"complete"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toProfileResponse(p profile.HotelProfile) profileResponse {
	return profileResponse{
		ID:          p.ID,
		UserID:      p.UserID,
		Name:        p.Name,
		Location:    p.Location,
		Category:    p.Category,
		About:       p.About,
		Website:     p.Website,
		Complete:    p.Complete,
		CompletedAt: p.CompletedAt,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	uid, ok := userIDParam(r)
	if !ok {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid user id"})
		return
	}

	p, err := s.deps.Profiles.FindProfileByUserID(r.Context(), uid)
	if err != nil {
		if errors.Is(err, errorz.ErrNotFound) {
			s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "profile not found"})
			return
		}
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, toProfileResponse(p))
}

// putProfileRequest carries partial updates, absent fields keep their
// stored value.
type putProfileRequest struct {
	Name     *string `json:"name"`
	Location *string `json:"location"`
	Category *string `json:"category"`
	About    *string `json:"about"`
	Website  *string `json:"website"`
}

func (s *Server) putProfile(w http.ResponseWriter, r *http.Request) {
	uid, ok := userIDParam(r)
	if !ok {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid user id"})
		return
	}

	var req putProfileRequest
	if !s.readJSON(w, r, &req) {
		return
	}

	p, err := s.deps.Profiles.FindProfileByUserID(r.Context(), uid)
	if err != nil {
		if errors.Is(err, errorz.ErrNotFound) {
			s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "profile not found"})
			return
		}
		s.writeError(w, r, err)
		return
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Location != nil {
		p.Location = *req.Location
	}
	if req.Category != nil {
		p.Category = *req.Category
	}
	if req.About != nil {
		p.About = *req.About
	}
	if req.Website != nil {
		p.Website = *req.Website
	}

	if err := s.deps.Profiles.UpdateProfile(r.Context(), &p); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, toProfileResponse(p))
}

// credentials parses and validates the email and password inputs shared
// by several handlers.
func (s *Server) credentials(w http.ResponseWriter, rawEmail, rawPwd string) (auth.Credentials, bool) {
	addr, err := email.ParseAddress(rawEmail)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid email address"})
		return auth.Credentials{}, false
	}

	pwd, err := auth.ParsePassword(rawPwd)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid password"})
		return auth.Credentials{}, false
	}

	return auth.Credentials{Email: addr, Password: pwd}, true
}
