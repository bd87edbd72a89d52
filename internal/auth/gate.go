package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/token"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-auth-go/internal/user/repo"
)

const bearerPrefix = "Bearer "

// PrincipalLookup loads the account a token subject refers to.
type PrincipalLookup interface {
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
}

// Gate establishes the request identity from a bearer token.
//
// A missing or non-bearer Authorization header lets the request through
// anonymously. A token that cannot be decoded ends the request with 401.
// A token that decodes but does not match an enabled account also lets the
// request through anonymously; route guards reject it later if they need an
// identity. Refresh tokens are never accepted as request credentials.
type Gate struct {
	tokens     *token.Service
	principals PrincipalLookup
	logger     *zap.SugaredLogger
}

func NewGate(tokens *token.Service, principals PrincipalLookup, logger *zap.SugaredLogger) *Gate {
	return &Gate{tokens: tokens, principals: principals, logger: logger}
}

// Handler wraps next with identity resolution.
func (g *Gate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := g.tokens.Decode(raw)
		if err != nil {
			if errors.Is(err, token.ErrExpiredToken) {
				g.logger.Debugw("rejecting expired token", "path", r.URL.Path)
				writeTokenError(w, "token expired")
				return
			}
			g.logger.Debugw("rejecting invalid token", "path", r.URL.Path, "err", err)
			writeTokenError(w, "invalid token")
			return
		}

		ctx := r.Context()
		if FromContext(ctx) != nil {
			next.ServeHTTP(w, r)
			return
		}
		if claims.Kind != token.KindAccess {
			g.logger.Debugw("refresh token presented as credential", "sub", claims.Subject)
			next.ServeHTTP(w, r)
			return
		}

		u, err := g.principals.FindByEmail(ctx, claims.Subject)
		if err != nil {
			if errors.Is(err, userrepo.ErrNotFound) {
				g.logger.Debugw("token subject not found", "sub", claims.Subject)
			} else {
				g.logger.Errorw("principal lookup failed", "sub", claims.Subject, "err", err)
			}
			next.ServeHTTP(w, r)
			return
		}

		// claims were checked against the clock once above; a second decode
		// could expire the token between the two checks
		if !token.IsClaimsValid(claims, u) {
			g.logger.Infow("token not valid for principal", "sub", claims.Subject, "enabled", u.Enabled)
			next.ServeHTTP(w, r)
			return
		}

		id := &Identity{User: u, Authorities: u.Authorities()}
		next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, id)))
	})
}

// bearerToken extracts the credential from an "Authorization: Bearer <token>"
// header. The scheme is matched case-sensitively with exactly one space.
func bearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	raw := header[len(bearerPrefix):]
	if raw == "" {
		return "", false
	}
	return raw, true
}

func writeTokenError(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+msg+`"`)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(msg))
}
