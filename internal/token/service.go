package token

import (
	"fmt"
	"time"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user/entity"
)

// Pair is the result of a successful login, registration or refresh.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Authorities is an identity derived from token claims alone.
type Authorities struct {
	Subject     string
	Role        string
	Kind        Kind
	IssuedAt    time.Time
	ExpiresAt   time.Time
	Authorities []string
}

// Service issues and validates tokens for users. The subject of every token
// is the user's email.
//
// Two validation paths exist. IsTokenValid (or IsClaimsValid once the token
// is decoded) checks a token against a freshly loaded user, so role and
// enabled flag are current; the request gate uses it. ResolveAuthorities trusts the role embedded at issuance and may be
// stale for up to the access token lifetime; it is only used by token
// introspection.
type Service struct {
	codec      *Codec
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = DefaultIssuer
	}
	codec, err := NewCodec(cfg.Secret, append([]Option{WithIssuer(issuer)}, opts...)...)
	if err != nil {
		return nil, err
	}
	return &Service{codec: codec, accessTTL: cfg.AccessTTL, refreshTTL: cfg.RefreshTTL}, nil
}

func (s *Service) AccessTTL() time.Duration { return s.accessTTL }

func (s *Service) IssueAccessToken(u *entity.User) (string, error) {
	return s.issue(u, KindAccess, s.accessTTL, s.codec.now())
}

func (s *Service) IssueRefreshToken(u *entity.User) (string, error) {
	return s.issue(u, KindRefresh, s.refreshTTL, s.codec.now())
}

// IssuePair issues an access and a refresh token stamped with the same instant.
func (s *Service) IssuePair(u *entity.User) (Pair, error) {
	now := s.codec.now()
	access, err := s.issue(u, KindAccess, s.accessTTL, now)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := s.issue(u, KindRefresh, s.refreshTTL, now)
	if err != nil {
		return Pair{}, err
	}
	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) issue(u *entity.User, kind Kind, ttl time.Duration, now time.Time) (string, error) {
	iat := now.UTC().Truncate(time.Second)
	tok, err := s.codec.Encode(Claims{
		Subject:   u.Email,
		Role:      string(u.Role),
		Kind:      kind,
		IssuedAt:  iat,
		ExpiresAt: iat.Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("issue %s token: %w", kind, err)
	}
	return tok, nil
}

// Decode exposes the codec for callers that need the full claim set.
func (s *Service) Decode(raw string) (Claims, error) {
	return s.codec.Decode(raw)
}

// ExtractSubject returns the token subject, propagating ErrExpiredToken and
// ErrInvalidToken unchanged.
func (s *Service) ExtractSubject(raw string) (string, error) {
	c, err := s.codec.Decode(raw)
	if err != nil {
		return "", err
	}
	return c.Subject, nil
}

// IsTokenValid reports whether raw decodes, names u as its subject and u is
// enabled. A decodable token that does not match returns false without error;
// decode failures are returned as errors.
func (s *Service) IsTokenValid(raw string, u *entity.User) (bool, error) {
	c, err := s.codec.Decode(raw)
	if err != nil {
		return false, err
	}
	return IsClaimsValid(c, u), nil
}

// IsClaimsValid is IsTokenValid for claims that were already decoded.
func IsClaimsValid(c Claims, u *entity.User) bool {
	return u != nil && c.Subject == u.Email && u.Enabled
}

// ResolveAuthorities builds an identity from the role claim without a store
// lookup.
func (s *Service) ResolveAuthorities(raw string) (*Authorities, error) {
	c, err := s.codec.Decode(raw)
	if err != nil {
		return nil, err
	}
	return &Authorities{
		Subject:     c.Subject,
		Role:        c.Role,
		Kind:        c.Kind,
		IssuedAt:    c.IssuedAt,
		ExpiresAt:   c.ExpiresAt,
		Authorities: []string{entity.Role(c.Role).Authority()},
	}, nil
}
