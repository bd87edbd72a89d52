package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user/entity"
)

func newTestHandler(f *fixture) *Handler {
	return NewHandler(f.svc, f.tokens, zap.NewNop().Sugar())
}

func postJSON(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) AuthenticationResponse {
	t.Helper()
	var out AuthenticationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRegisterHandler(t *testing.T) {
	f := newFixture(t)
	h := newTestHandler(f)

	rec := postJSON(h.Register, `{"firstname":"A","lastname":"X","email":"a@x.com","password":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decodeResponse(t, rec)
	assert.NotEmpty(t, out.AccessToken)
	assert.NotEmpty(t, out.RefreshToken)
	require.NotNil(t, out.User)
	assert.Equal(t, entity.RoleUser, out.User.Role)
	assert.NotContains(t, rec.Body.String(), "hashed:")

	rec = postJSON(h.Register, `{"email":"a@x.com","password":"pw"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = postJSON(h.Register, `{"email":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(h.Register, `{"email":"b@x.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthenticateHandler(t *testing.T) {
	f := newFixture(t)
	f.seed("a@x.com", "secret", entity.RoleUser, true)
	f.seed("off@x.com", "secret", entity.RoleUser, false)
	h := newTestHandler(f)

	rec := postJSON(h.Authenticate, `{"email":"a@x.com","password":"secret"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeResponse(t, rec).AccessToken)

	wrong := postJSON(h.Authenticate, `{"email":"a@x.com","password":"bad"}`)
	unknown := postJSON(h.Authenticate, `{"email":"ghost@x.com","password":"secret"}`)
	disabled := postJSON(h.Authenticate, `{"email":"off@x.com","password":"secret"}`)
	for _, r := range []*httptest.ResponseRecorder{wrong, unknown, disabled} {
		assert.Equal(t, http.StatusUnauthorized, r.Code)
		assert.Equal(t, wrong.Body.String(), r.Body.String())
	}
}

func TestRefreshTokenHandler(t *testing.T) {
	f := newFixture(t)
	u := f.seed("a@x.com", "secret", entity.RoleUser, true)
	pair, err := f.tokens.IssuePair(u)
	require.NoError(t, err)
	h := newTestHandler(f)

	refresh := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/refresh-token", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.RefreshToken(rec, req)
		return rec
	}

	f.clock.advance(time.Minute)
	rec := refresh("Bearer " + pair.RefreshToken)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decodeResponse(t, rec)
	assert.NotEmpty(t, out.AccessToken)
	assert.NotEqual(t, pair.RefreshToken, out.RefreshToken)

	for _, header := range []string{"", "Basic x", "Bearer " + pair.AccessToken, "Bearer junk"} {
		rec := refresh(header)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
		assert.JSONEq(t, `{}`, rec.Body.String())
	}
}

func TestIntrospectHandler(t *testing.T) {
	f := newFixture(t)
	u := f.seed("a@x.com", "secret", entity.RoleAdmin, true)
	access, err := f.tokens.IssueAccessToken(u)
	require.NoError(t, err)
	h := newTestHandler(f)

	introspect := func(form url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/introspect", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		h.Introspect(rec, req)
		return rec
	}

	rec := introspect(url.Values{"token": {access}})
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, true, got["active"])
	assert.Equal(t, "a@x.com", got["sub"])
	assert.Equal(t, "ADMIN", got["role"])
	assert.Equal(t, "access", got["kind"])

	rec = introspect(url.Values{"token": {"junk"}})
	assert.JSONEq(t, `{"active":false}`, rec.Body.String())

	rec = introspect(url.Values{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
