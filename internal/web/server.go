// Package web exposes the JSON API.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/evdwaal/staylink/internal/auth"
	"github.com/evdwaal/staylink/internal/profile"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
)

// ProfileStore reads and writes hotel profiles.
type ProfileStore interface {
	FindProfileByUserID(ctx context.Context, userID uuid.UUID) (profile.HotelProfile, error)
	UpdateProfile(ctx context.Context, p *profile.HotelProfile) error
}

// ServerDeps are the dependencies for the server.
type ServerDeps struct {
	Logger      *slog.Logger
	AuthService *auth.Service
	Profiles    ProfileStore
}

// ServerConfig is the configuration for the server.
type ServerConfig struct {
	AllowedOrigins []string
}

type Server struct {
	deps    *ServerDeps
	handler http.Handler
}

func NewServer(deps *ServerDeps, cfg ServerConfig) *Server {
	s := &Server{
		deps: deps,
	}

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(requestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/api/health", s.health)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", s.register)
		r.Post("/login", s.login)
		r.Post("/verify-email", s.verifyEmail)
		r.Post("/forgot-password", s.forgotPassword)
		r.Post("/reset-password", s.resetPassword)
	})

	r.Route("/api/hotels/{userID}/profile", func(r chi.Router) {
		r.Get("/", s.getProfile)
		r.Put("/", s.putProfile)
	})

	s.handler = r

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// userIDParam parses the userID URL parameter.
func userIDParam(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		return uuid.Nil, false
	}

	return id, true
}
