package router

import (
	"net/http"

	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/token"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-auth-go/internal/user/repo"
)

// Dependencies are the collaborators the HTTP surface is built from.
type Dependencies struct {
	Logger *zap.SugaredLogger
	Users  *userrepo.UserRepo
	Tokens *token.Service
	Hasher auth.CredentialVerifier
}

// CORSOptions builds the go-chi/cors policy for the configured origins.
func CORSOptions(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader, "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}
}

// RegisterRoutes mounts every endpoint on a standard library ServeMux.
//
// Token issuing endpoints are not behind the gate, so a bad refresh token
// yields the endpoint's own empty-pair 401 rather than the gate's plain-text
// one. Everything else runs through the gate, and guards decide whether an
// anonymous or under-privileged caller may proceed.
func RegisterRoutes(cfg Config, deps Dependencies) http.Handler {
	logger := deps.Logger
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	authSvc := auth.NewService(deps.Users, deps.Hasher, deps.Tokens, logger)
	authHandler := auth.NewHandler(authSvc, deps.Tokens, logger)
	gate := auth.NewGate(deps.Tokens, deps.Users, logger).Handler
	limited := RateLimitMiddleware(cfg.AuthPerMinute, cfg.AuthBurst, cfg.TrustProxyHeaders, logger)

	mux.Handle("POST /auth/register", chain(http.HandlerFunc(authHandler.Register), limited))
	mux.Handle("POST /auth/authenticate", chain(http.HandlerFunc(authHandler.Authenticate), limited))
	mux.Handle("POST /auth/refresh-token", chain(http.HandlerFunc(authHandler.RefreshToken), limited))
	mux.Handle("POST /auth/introspect", chain(http.HandlerFunc(authHandler.Introspect), gate, auth.RequireAuthenticated))

	userHandler := user.NewHandler(user.NewService(deps.Users), logger)
	authenticated := func(h http.HandlerFunc) http.Handler {
		return chain(h, gate, auth.RequireAuthenticated)
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return chain(h, gate, auth.RequireRole(entity.RoleAdmin))
	}

	mux.Handle("GET /users/me", authenticated(userHandler.Me))
	mux.Handle("GET /users/{id}", authenticated(userHandler.Get))
	mux.Handle("PUT /users/{id}", authenticated(userHandler.Update))

	mux.Handle("GET /admin/users", admin(userHandler.List))
	mux.Handle("PUT /admin/users/{id}/status", admin(userHandler.SetStatus))
	mux.Handle("PUT /admin/users/{id}/role", admin(userHandler.SetRole))

	mws := []func(http.Handler) http.Handler{
		RequestIDMiddleware(),
		LoggingMiddleware(logger),
		SecurityHeadersMiddleware(),
	}
	// go-chi/cors treats an empty origin list as "*", so no origins means no CORS.
	if len(cfg.AllowedOrigins) > 0 {
		mws = append(mws, cors.Handler(CORSOptions(cfg.AllowedOrigins)))
	}
	return chain(mux, mws...)
}
