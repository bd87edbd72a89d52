package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/token"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user/entity"
)

// maxBodyBytes bounds JSON request bodies on the auth endpoints.
const maxBodyBytes = 1 << 16

// Handler exposes the authentication flows over HTTP.
type Handler struct {
	svc    *Service
	tokens *token.Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, tokens *token.Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, tokens: tokens, logger: logger}
}

// AuthenticationResponse is the body of every token-issuing endpoint. On
// refresh failure it is sent empty.
type AuthenticationResponse struct {
	AccessToken  string             `json:"accessToken,omitempty"`
	RefreshToken string             `json:"refreshToken,omitempty"`
	User         *entity.PublicView `json:"user,omitempty"`
}

func newAuthenticationResponse(o *Outcome) AuthenticationResponse {
	return AuthenticationResponse{
		AccessToken:  o.Tokens.AccessToken,
		RefreshToken: o.Tokens.RefreshToken,
		User:         &o.User,
	}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Debugw("invalid register payload", "err", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	out, err := h.svc.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailAlreadyExists):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "email already exists"})
		case errors.Is(err, ErrInvalidRequest):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and password are required"})
		default:
			h.logger.Errorw("register failed", "err", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "registration failed"})
		}
		return
	}
	writeJSON(w, http.StatusOK, newAuthenticationResponse(out))
}

func (h *Handler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req Credentials
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Debugw("invalid authenticate payload", "err", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	out, err := h.svc.Authenticate(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrPrincipalDisabled):
			h.logger.Infow("authentication failed", "err", err)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		default:
			h.logger.Errorw("authentication failed", "err", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "authentication failed"})
		}
		return
	}
	writeJSON(w, http.StatusOK, newAuthenticationResponse(out))
}

// RefreshToken reads the refresh token from the bearer header. Every failure
// is a 401 with an empty body object.
func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	raw, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		writeJSON(w, http.StatusUnauthorized, AuthenticationResponse{})
		return
	}
	out, err := h.svc.Refresh(r.Context(), raw)
	if err != nil {
		h.logger.Infow("refresh rejected", "err", err)
		writeJSON(w, http.StatusUnauthorized, AuthenticationResponse{})
		return
	}
	writeJSON(w, http.StatusOK, newAuthenticationResponse(out))
}

type introspection struct {
	Active      bool     `json:"active"`
	Subject     string   `json:"sub,omitempty"`
	Role        string   `json:"role,omitempty"`
	Kind        string   `json:"kind,omitempty"`
	Authorities []string `json:"authorities,omitempty"`
	ExpiresAt   int64    `json:"exp,omitempty"`
	IssuedAt    int64    `json:"iat,omitempty"`
}

// Introspect reports the claims of a token from its signature alone. The role
// it returns is the one at issuance and may be stale for up to one token
// lifetime.
func (h *Handler) Introspect(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	raw := r.Form.Get("token")
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	a, err := h.tokens.ResolveAuthorities(raw)
	if err != nil {
		writeJSON(w, http.StatusOK, introspection{Active: false})
		return
	}
	writeJSON(w, http.StatusOK, introspection{
		Active:      true,
		Subject:     a.Subject,
		Role:        a.Role,
		Kind:        string(a.Kind),
		Authorities: a.Authorities,
		ExpiresAt:   a.ExpiresAt.Unix(),
		IssuedAt:    a.IssuedAt.Unix(),
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(v)
}
