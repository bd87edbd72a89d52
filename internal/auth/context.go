package auth

import (
	"context"
	"slices"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user/entity"
)

// Identity is the authenticated caller of a single request. It lives in the
// request context and is never shared between requests.
type Identity struct {
	User        *entity.User
	Authorities []string
}

// HasAuthority reports whether the identity was granted authority.
func (i *Identity) HasAuthority(authority string) bool {
	return i != nil && slices.Contains(i.Authorities, authority)
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the request identity or nil for anonymous requests.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}

// Current returns the authenticated user, or nil.
func Current(ctx context.Context) *entity.User {
	if id := FromContext(ctx); id != nil {
		return id.User
	}
	return nil
}
