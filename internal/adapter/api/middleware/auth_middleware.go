package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"oysloe/internal/infrastructure/auth"
	apperrors "oysloe/pkg/errors"
	"oysloe/pkg/response"
)

// UserIDKey is where Authenticate stores the caller's user id.
const UserIDKey = "uid"

type AuthMiddleware struct {
	verifier auth.TokenVerifier
}

func NewAuthMiddleware(verifier auth.TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
	}
}

func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		uid, err := m.Resolve(c.Request())
		if err != nil {
			return response.Error(c, apperrors.Unauthorized("Invalid or expired token", err))
		}
		c.Set(UserIDKey, uid)
		return next(c)
	}
}

// Resolve verifies the request's bearer token. Websocket handlers call it directly
// so they can refuse with a close frame instead of an HTTP status.
func (m *AuthMiddleware) Resolve(r *http.Request) (string, error) {
	token, err := auth.TokenFromRequest(r)
	if err != nil {
		return "", err
	}
	return m.verifier.VerifyToken(r.Context(), token)
}

// UserID returns the id Authenticate stored, or "".
func UserID(c echo.Context) string {
	uid, _ := c.Get(UserIDKey).(string)
	return uid
}
