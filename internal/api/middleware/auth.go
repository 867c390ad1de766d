package middleware

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/kakitori/kakitori-api/internal/core/domain"
	"github.com/kakitori/kakitori-api/internal/core/ports"
)

// Context keys set by the auth middlewares.
const (
	ContextUID   = "uid"
	ContextEmail = "email"
)

// TokenCookie is the cookie holding the session token.
const TokenCookie = "token"

// CredentialSource pulls a raw token out of a request. ok is false when the
// source has nothing to offer.
type CredentialSource func(c echo.Context) (token string, ok bool)

// DefaultSources is the credential precedence: bearer header, then cookie.
var DefaultSources = []CredentialSource{FromBearerHeader, FromCookie}

// FromBearerHeader reads "Authorization: Bearer <token>".
func FromBearerHeader(c echo.Context) (string, bool) {
	parts := strings.SplitN(c.Request().Header.Get(echo.HeaderAuthorization), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// FromCookie reads the token cookie written by EncodeCookieValue.
func FromCookie(c echo.Context) (string, bool) {
	cookie, err := c.Cookie(TokenCookie)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	token, err := DecodeCookieValue(cookie.Value)
	if err != nil || token == "" {
		return "", false
	}
	return token, true
}

// EncodeCookieValue stores token as base64 of its JSON string form.
func EncodeCookieValue(token string) string {
	raw, _ := json.Marshal(token)
	return base64.StdEncoding.EncodeToString(raw)
}

func DecodeCookieValue(value string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return "", err
	}
	var token string
	if err := json.Unmarshal(raw, &token); err != nil {
		return "", err
	}
	return token, nil
}

// Extract returns the first token found in sources.
func Extract(c echo.Context, sources []CredentialSource) (string, bool) {
	for _, src := range sources {
		if token, ok := src(c); ok {
			return token, true
		}
	}
	return "", false
}

// RequireAuth rejects requests without a valid session token and injects
// the caller's uid and email into context.
func RequireAuth(verifier ports.TokenVerifier) echo.MiddlewareFunc {
	return auth(verifier, true)
}

// OptionalAuth lets anonymous requests through. A token that is present must
// still be valid.
func OptionalAuth(verifier ports.TokenVerifier) echo.MiddlewareFunc {
	return auth(verifier, false)
}

func auth(verifier ports.TokenVerifier, required bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := Extract(c, DefaultSources)
			if !ok {
				if required {
					return echo.NewHTTPError(http.StatusUnauthorized, "Token not provided").SetInternal(domain.ErrTokenMissing)
				}
				return next(c)
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				if !errors.Is(err, domain.ErrTokenExpired) && !errors.Is(err, domain.ErrTokenInvalid) {
					err = errors.Join(domain.ErrTokenInvalid, err)
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token").SetInternal(err)
			}

			c.Set(ContextUID, claims.UID)
			c.Set(ContextEmail, claims.Email)
			return next(c)
		}
	}
}
