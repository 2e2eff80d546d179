package middleware

import (
	"github.com/labstack/echo/v4"

	"oysloe/internal/domain/repository"
	apperrors "oysloe/pkg/errors"
	"oysloe/pkg/response"
)

type AdminMiddleware struct {
	userRepo repository.UserRepository
}

func NewAdminMiddleware(userRepo repository.UserRepository) *AdminMiddleware {
	return &AdminMiddleware{
		userRepo: userRepo,
	}
}

// AdminOnly lets staff users through. It must run after Authenticate.
func (m *AdminMiddleware) AdminOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		uid := UserID(c)
		if uid == "" {
			return response.Error(c, apperrors.Unauthorized("Authentication required", nil))
		}

		user, err := m.userRepo.GetByID(c.Request().Context(), uid)
		if err != nil {
			return response.Error(c, apperrors.Forbidden("Staff privileges required", err))
		}
		if !user.IsStaff {
			return response.Error(c, apperrors.Forbidden("Staff privileges required", nil))
		}

		return next(c)
	}
}
