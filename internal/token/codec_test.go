package token

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// clock is a settable time source shared by a codec under test.
type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestCodec(t *testing.T, secret []byte) (*Codec, *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	c, err := NewCodec(secret, WithClock(clk.now))
	require.NoError(t, err)
	return c, clk
}

func sampleClaims(now time.Time) Claims {
	iat := now.UTC().Truncate(time.Second)
	return Claims{
		Subject:   "a@x.com",
		Role:      "USER",
		Kind:      KindAccess,
		IssuedAt:  iat,
		ExpiresAt: iat.Add(15 * time.Minute),
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c, clk := newTestCodec(t, testSecret)

	for _, kind := range []Kind{KindAccess, KindRefresh} {
		want := sampleClaims(clk.t)
		want.Kind = kind
		raw, err := c.Encode(want)
		require.NoError(t, err)

		got, err := c.Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	c, clk := newTestCodec(t, testSecret)
	a, err := c.Encode(sampleClaims(clk.t))
	require.NoError(t, err)
	b, err := c.Encode(sampleClaims(clk.t))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEncodeRejectsMalformedClaims(t *testing.T) {
	c, clk := newTestCodec(t, testSecret)

	noSubject := sampleClaims(clk.t)
	noSubject.Subject = ""
	_, err := c.Encode(noSubject)
	require.Error(t, err)

	badKind := sampleClaims(clk.t)
	badKind.Kind = "session"
	_, err = c.Encode(badKind)
	require.Error(t, err)

	backwards := sampleClaims(clk.t)
	backwards.ExpiresAt = backwards.IssuedAt
	_, err = c.Encode(backwards)
	require.Error(t, err)
}

func TestEncodeTruncatesSubSecondTimes(t *testing.T) {
	c, clk := newTestCodec(t, testSecret)
	claims := sampleClaims(clk.t)
	claims.IssuedAt = claims.IssuedAt.Add(400 * time.Millisecond)
	claims.ExpiresAt = claims.ExpiresAt.Add(900 * time.Millisecond)
	raw, err := c.Encode(claims)
	require.NoError(t, err)

	clk.t = claims.IssuedAt
	got, err := c.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, claims.IssuedAt.Truncate(time.Second), got.IssuedAt)
	assert.Equal(t, claims.ExpiresAt.Truncate(time.Second), got.ExpiresAt)

	// still valid until the second it decodes to
	clk.t = got.ExpiresAt.Add(-time.Nanosecond)
	_, err = c.Decode(raw)
	require.NoError(t, err)
}

func TestEncodeRejectsExpiryWithinSameSecond(t *testing.T) {
	c, clk := newTestCodec(t, testSecret)
	claims := sampleClaims(clk.t)
	claims.IssuedAt = claims.IssuedAt.Add(100 * time.Millisecond)
	claims.ExpiresAt = claims.IssuedAt.Add(800 * time.Millisecond)

	_, err := c.Encode(claims)
	require.Error(t, err)
}

func TestDecodeToleratesSmallClockSkew(t *testing.T) {
	c, clk := newTestCodec(t, testSecret)

	ahead := sampleClaims(clk.t.Add(10 * time.Second))
	raw, err := c.Encode(ahead)
	require.NoError(t, err)
	_, err = c.Decode(raw)
	require.NoError(t, err)

	farAhead := sampleClaims(clk.t.Add(5 * time.Minute))
	raw, err = c.Encode(farAhead)
	require.NoError(t, err)
	_, err = c.Decode(raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecodeExpiredIsNeverInvalid(t *testing.T) {
	c, clk := newTestCodec(t, testSecret)
	claims := sampleClaims(clk.t)
	raw, err := c.Encode(claims)
	require.NoError(t, err)

	for _, after := range []time.Duration{time.Second, time.Minute, 24 * time.Hour} {
		clk.t = claims.ExpiresAt.Add(after)
		_, err := c.Decode(raw)
		require.ErrorIs(t, err, ErrExpiredToken)
		assert.NotErrorIs(t, err, ErrInvalidToken)
	}
}

func TestDecodeExpiredWithBadSignatureIsInvalid(t *testing.T) {
	c, clk := newTestCodec(t, testSecret)
	other, _ := newTestCodec(t, []byte("another-secret-another-secret-xx"))
	claims := sampleClaims(clk.t)
	raw, err := other.Encode(claims)
	require.NoError(t, err)

	clk.t = claims.ExpiresAt.Add(time.Hour)
	_, err = c.Decode(raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecodeSignatureBitFlip(t *testing.T) {
	c, clk := newTestCodec(t, testSecret)
	raw, err := c.Encode(sampleClaims(clk.t))
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)

	for i := range len(sig) * 8 {
		flipped := append([]byte(nil), sig...)
		flipped[i/8] ^= 1 << (i % 8)
		tampered := parts[0] + "." + parts[1] + "." + base64.RawURLEncoding.EncodeToString(flipped)

		_, err := c.Decode(tampered)
		require.ErrorIs(t, err, ErrInvalidToken, "bit %d", i)
	}
}

func TestDecodeTamperedPayload(t *testing.T) {
	c, clk := newTestCodec(t, testSecret)
	raw, err := c.Encode(sampleClaims(clk.t))
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	escalated := strings.Replace(string(payload), `"role":"USER"`, `"role":"ADMIN"`, 1)
	require.NotEqual(t, string(payload), escalated)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(escalated))

	_, err = c.Decode(strings.Join(parts, "."))
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecodeInvalidInputs(t *testing.T) {
	c, clk := newTestCodec(t, testSecret)

	otherSecret, _ := newTestCodec(t, []byte("different-secret-different-secret"))
	wrongSecret, err := otherSecret.Encode(sampleClaims(clk.t))
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    DefaultIssuer,
			Subject:   "a@x.com",
			IssuedAt:  jwt.NewNumericDate(clk.t),
			ExpiresAt: jwt.NewNumericDate(clk.t.Add(time.Hour)),
		},
		Role: "USER",
		Kind: KindAccess,
	}).SignedString(testSecret)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "a@x.com", "kind": "access", "iss": DefaultIssuer,
		"iat": clk.t.Unix(), "exp": clk.t.Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	missingKind, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "a@x.com", "iss": DefaultIssuer,
		"iat": clk.t.Unix(), "exp": clk.t.Add(time.Hour).Unix(),
	}).SignedString(testSecret)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "a@x.com", "kind": "access", "iss": DefaultIssuer, "iat": clk.t.Unix(),
	}).SignedString(testSecret)
	require.NoError(t, err)

	foreignIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "a@x.com", "kind": "access", "iss": "someone-else",
		"iat": clk.t.Unix(), "exp": clk.t.Add(time.Hour).Unix(),
	}).SignedString(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"three junk segments", "header.payload.signature"},
		{"wrong secret", wrongSecret},
		{"other hmac algorithm", hs512},
		{"alg none", unsigned},
		{"missing kind", missingKind},
		{"missing expiry", noExpiry},
		{"foreign issuer", foreignIssuer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decode(tt.token)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestNewCodecRequiresSecret(t *testing.T) {
	_, err := NewCodec(nil)
	require.Error(t, err)
}
