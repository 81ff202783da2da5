package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const userIDKey = "user_id"

// UserID returns the authenticated caller, if any.
func UserID(c echo.Context) (uint64, bool) {
	uid, ok := c.Get(userIDKey).(uint64)
	return uid, ok && uid != 0
}

// SetUserID marks the request as made by uid.  Tests use it to skip token
// issuing.
func SetUserID(c echo.Context, uid uint64) { c.Set(userIDKey, uid) }

// currentUserID is the caller as a key fragment, "anon" when unknown.
func currentUserID(c echo.Context) string {
	if uid, ok := UserID(c); ok {
		return strconv.FormatUint(uid, 10)
	}
	return "anon"
}
