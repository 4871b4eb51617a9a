package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/livepeer/catalyst-vod/requests"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("not-so-secret")

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims AccessClaims) string {
	token, err := jwt.NewWithClaims(method, &claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestJWTAuthenticator(t *testing.T) {
	auth := JWTAuthenticator{Secret: testSecret}
	valid := signToken(t, jwt.SigningMethodHS256, testSecret, AccessClaims{UserID: "user-1", Role: "USER"})

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: valid})
	id, err := auth.Authenticate(req)
	require.NoError(t, err)
	require.Equal(t, requests.Identity{UserID: "user-1", Role: "USER"}, id)

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+valid)
	id, err = auth.Authenticate(req)
	require.NoError(t, err)
	require.Equal(t, "user-1", id.UserID)
}

func TestJWTAuthenticatorRejects(t *testing.T) {
	auth := JWTAuthenticator{Secret: testSecret}
	expired := AccessClaims{UserID: "user-1"}
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not.a.jwt"},
		{"wrong secret", signToken(t, jwt.SigningMethodHS256, []byte("other"), AccessClaims{UserID: "user-1"})},
		{"other hmac", signToken(t, jwt.SigningMethodHS512, testSecret, AccessClaims{UserID: "user-1"})},
		{"no user", signToken(t, jwt.SigningMethodHS256, testSecret, AccessClaims{Role: "ADMIN"})},
		{"expired", signToken(t, jwt.SigningMethodHS256, testSecret, expired)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			_, err := auth.Authenticate(req)
			require.Error(t, err)
		})
	}
}

func TestIsAuthorized(t *testing.T) {
	var seen requests.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = requests.IdentityFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := IsAuthorized(JWTAuthenticator{Secret: testSecret})(next)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.JSONEq(t, `{"error":"Invalid or missing access token","code":"unauthorized"}`, rr.Body.String())

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.SigningMethodHS256, testSecret, AccessClaims{UserID: "user-2"}))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "user-2", seen.UserID)
}
