package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Kind separates access tokens from refresh tokens.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

func (k Kind) valid() bool { return k == KindAccess || k == KindRefresh }

// Claims is the signed content of a token. Timestamps carry second precision.
type Claims struct {
	Subject   string
	Role      string
	Kind      Kind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// maxClockSkew is how far in the future iat may be. Instances sharing the
// secret do not have perfectly synchronised clocks. Expiry gets no leeway.
const maxClockSkew = 30 * time.Second

type jwtClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
	Kind Kind   `json:"kind"`
}

// Codec mints and parses HS256 tokens. It holds no mutable state after
// construction and is safe for concurrent use.
type Codec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

type Option func(*Codec)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

func WithIssuer(issuer string) Option {
	return func(c *Codec) { c.issuer = issuer }
}

func NewCodec(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("token: empty signing secret")
	}
	c := &Codec{
		secret: append([]byte(nil), secret...),
		issuer: DefaultIssuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Encode signs claims. Timestamps are truncated to whole seconds, so Decode
// returns IssuedAt and ExpiresAt at second precision. The output is
// deterministic for identical claims.
func (c *Codec) Encode(claims Claims) (string, error) {
	if claims.Subject == "" {
		return "", errors.New("token: empty subject")
	}
	if !claims.Kind.valid() {
		return "", fmt.Errorf("token: unknown kind %q", claims.Kind)
	}
	// NumericDate has second precision; compare what will actually be signed.
	iat := claims.IssuedAt.UTC().Truncate(time.Second)
	exp := claims.ExpiresAt.UTC().Truncate(time.Second)
	if !exp.After(iat) {
		return "", errors.New("token: expiry must be at least one second after issued-at")
	}
	jc := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   claims.Subject,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role: claims.Role,
		Kind: claims.Kind,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, jc).SignedString(c.secret)
}

// Decode verifies the signature and only then the time claims, so the expiry
// of a forged token is never trusted. Expired tokens yield ErrExpiredToken,
// every other failure yields ErrInvalidToken.
func (c *Codec) Decode(raw string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(c.issuer),
	)
	var jc jwtClaims
	_, err := parser.ParseWithClaims(raw, &jc, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if jc.Subject == "" || jc.IssuedAt == nil || !jc.Kind.valid() {
		return Claims{}, fmt.Errorf("%w: missing or malformed claims", ErrInvalidToken)
	}
	if jc.IssuedAt.After(c.now().Add(maxClockSkew)) {
		return Claims{}, fmt.Errorf("%w: issued in the future", ErrInvalidToken)
	}
	if !jc.ExpiresAt.After(jc.IssuedAt.Time) {
		return Claims{}, fmt.Errorf("%w: expiry not after issued-at", ErrInvalidToken)
	}
	return Claims{
		Subject:   jc.Subject,
		Role:      jc.Role,
		Kind:      jc.Kind,
		IssuedAt:  jc.IssuedAt.UTC(),
		ExpiresAt: jc.ExpiresAt.UTC(),
	}, nil
}
