package middleware

// identity.go holds the context keys written by JWTAuth and the helpers
// that read them back for handlers and other middleware.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// UserID returns the authenticated user's id, or false for guests.
func UserID(c echo.Context) (uint64, bool) {
	switch v := c.Get(ctxUserID).(type) {
	case uint64:
		return v, v != 0
	case string:
		if n, err := strconv.ParseUint(v, 10, 64); err == nil && n != 0 {
			return n, true
		}
	}
	return 0, false
}

// Role returns the authenticated user's role, or "" for guests.
func Role(c echo.Context) string {
	r, _ := c.Get(ctxRole).(string)
	return r
}

// userKey is the caller identity used in rate-limit keys; "anon" for guests.
func userKey(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
