package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/castscheduler/internal/logging"
	"github.com/iliyamo/castscheduler/internal/middleware"
	"github.com/iliyamo/castscheduler/internal/service"
)

// requestTimeout bounds the work done for one API call.
const requestTimeout = 5 * time.Second

func requestCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// getUserID returns the authenticated caller or 0.
func getUserID(c echo.Context) uint64 {
	uid, _ := middleware.UserID(c)
	return uid
}

func parseID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// errorBody is the shape of every error response.
type errorBody struct {
	Error         string `json:"error"`
	Message       string `json:"message,omitempty"`
	ScheduledTime *int64 `json:"scheduled_time,omitempty"`
}

// writeError maps service errors to HTTP responses.  Anything unknown is
// logged and reported as 500 without detail.
func writeError(c echo.Context, log logging.Logger, err error) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		body := errorBody{Error: "invalid_input", Message: verr.Error()}
		if !verr.ScheduledTime.IsZero() {
			ms := verr.ScheduledTime.UnixMilli()
			body.ScheduledTime = &ms
		}
		return c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, service.ErrNotAuthenticated):
		return c.JSON(http.StatusUnauthorized, errorBody{Error: "not_authenticated"})
	case errors.Is(err, service.ErrProfileRequired):
		return c.JSON(http.StatusPreconditionFailed, errorBody{Error: "profile_required", Message: "complete your profile first"})
	case errors.Is(err, service.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid_input", Message: err.Error()})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorBody{Error: "not_found"})
	case errors.Is(err, service.ErrInvalidState):
		return c.JSON(http.StatusConflict, errorBody{Error: "invalid_state", Message: "only pending casts can be changed"})
	case errors.Is(err, service.ErrVerificationFailed):
		return c.JSON(http.StatusUnauthorized, errorBody{Error: "verification_failed", Message: err.Error()})
	case errors.Is(err, service.ErrMissingFields):
		return c.JSON(http.StatusBadRequest, errorBody{Error: "missing_fields", Message: "fid, signer_uuid and username are required"})
	}
	log.Error("request failed", "method", c.Request().Method, "path", c.Path(), "err", err)
	return c.JSON(http.StatusInternalServerError, errorBody{Error: "internal"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid_input", Message: msg})
}
