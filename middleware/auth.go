package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	caterrs "github.com/livepeer/catalyst-vod/errors"
	"github.com/livepeer/catalyst-vod/log"
	"github.com/livepeer/catalyst-vod/requests"
)

const AccessTokenCookie = "access_token"

// Authenticator resolves the caller of a request. Issuing tokens is someone
// else's job, this only verifies them.
type Authenticator interface {
	Authenticate(r *http.Request) (requests.Identity, error)
}

type AccessClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (c *AccessClaims) Valid() error {
	if err := c.RegisteredClaims.Valid(); err != nil {
		return err
	}
	if c.UserID == "" {
		return errors.New("missing user_id claim")
	}
	return nil
}

// JWTAuthenticator accepts HS256 tokens from the access_token cookie or a
// bearer Authorization header.
type JWTAuthenticator struct {
	Secret []byte
}

func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

func (a JWTAuthenticator) Authenticate(r *http.Request) (requests.Identity, error) {
	tokenString := tokenFromRequest(r)
	if tokenString == "" {
		return requests.Identity{}, fmt.Errorf("%w: no access token", caterrs.ErrUnauthorized)
	}
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.Secret, nil
	})
	if err != nil {
		return requests.Identity{}, fmt.Errorf("%w: unable to parse jwt: %s", caterrs.ErrUnauthorized, err)
	} else if !token.Valid {
		return requests.Identity{}, fmt.Errorf("%w: invalid token", caterrs.ErrUnauthorized)
	}
	claims := token.Claims.(*AccessClaims)
	return requests.Identity{UserID: claims.UserID, Role: claims.Role}, nil
}

// IsAuthorized rejects unauthenticated requests and stores the caller's
// identity in the request context.
func IsAuthorized(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := auth.Authenticate(r)
			if err != nil {
				log.LogError(requests.GetRequestId(r), "authentication failed", err)
				caterrs.WriteHTTPUnauthorized(w, "Invalid or missing access token", nil)
				return
			}
			log.AddContext(requests.GetRequestId(r), "user_id", id.UserID)
			next.ServeHTTP(w, r.WithContext(requests.WithIdentity(r.Context(), id)))
		})
	}
}
