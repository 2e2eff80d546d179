package utils

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const MaxPageSize = 200

// PaginationParams is a limit/offset window. Limit 0 means no limit.
type PaginationParams struct {
	Limit  int
	Offset int
}

// GetPaginationParams reads ?limit= and ?offset=, clamping limit to MaxPageSize.
func GetPaginationParams(c echo.Context, defaultLimit int) PaginationParams {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit < 0 {
		limit = defaultLimit
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}

	return PaginationParams{Limit: limit, Offset: offset}
}
