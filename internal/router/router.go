package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/castscheduler/internal/handler"
	"github.com/iliyamo/castscheduler/internal/middleware"
)

// Handlers groups everything the API serves.
type Handlers struct {
	Auth     *handler.AuthHandler
	Casts    *handler.CastHandler
	Profiles *handler.ProfileHandler
	Uploads  *handler.UploadHandler
	Ready    echo.HandlerFunc
	Metrics  http.Handler
}

// Options carries the middlewares built from configuration.  Nil entries
// are skipped.
type Options struct {
	JWTSecret string
	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
}

// RegisterRoutes registers the probes and the metrics endpoint.  None of
// them are rate limited.
func RegisterRoutes(e *echo.Echo, h Handlers) {
	e.GET("/healthz", handler.Health)
	if h.Ready != nil {
		e.GET("/readyz", h.Ready)
	}
	if h.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.Metrics))
	}
}

// RegisterAPI mounts the /v1 surface.  Sign-in, refresh and the timezone
// list are public; everything else needs a bearer token.
func RegisterAPI(e *echo.Echo, h Handlers, o Options) {
	v1 := e.Group("/v1", optional(o.RateLimit)...)

	v1.GET("/timezones", handler.Timezones, optional(o.Cache)...)

	pub := v1.Group("/auth")
	pub.POST("/neynar", h.Auth.SignInNeynar)
	pub.POST("/refresh", h.Auth.Refresh)

	auth := v1.Group("", middleware.JWTAuth(o.JWTSecret))
	auth.POST("/auth/logout", h.Auth.Logout)
	auth.GET("/me", h.Auth.Me)

	auth.GET("/profile", h.Profiles.Get)
	auth.PUT("/profile", h.Profiles.Put)
	auth.GET("/profile/signer", h.Profiles.Signer)

	auth.POST("/uploads", h.Uploads.Create)

	auth.POST("/casts", h.Casts.Create)
	auth.GET("/casts", h.Casts.List)
	auth.GET("/casts/:id", h.Casts.Get)
	auth.PUT("/casts/:id", h.Casts.Update)
	auth.PATCH("/casts/:id", h.Casts.Update) // alias for clients that use PATCH
	auth.DELETE("/casts/:id", h.Casts.Delete)
}

func optional(mw echo.MiddlewareFunc) []echo.MiddlewareFunc {
	if mw == nil {
		return nil
	}
	return []echo.MiddlewareFunc{mw}
}
