package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/castscheduler/internal/utils"
)

// JWTAuth validates the Bearer access token and stores the caller's user id
// in the context under "user_id".  Requests without a valid token stop here
// with 401.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not_authenticated", "message": "missing bearer token"})
			}
			uid, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not_authenticated", "message": "invalid token"})
			}
			c.Set(userIDKey, uid)
			return next(c)
		}
	}
}
