package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/castscheduler/internal/logging"
	"github.com/iliyamo/castscheduler/internal/model"
	"github.com/iliyamo/castscheduler/internal/service"
)

// CastService is what the cast endpoints need from the store.
type CastService interface {
	Create(ctx context.Context, callerID uint64, in service.CastInput) (model.ScheduledCast, error)
	Edit(ctx context.Context, callerID, castID uint64, in service.CastInput) (model.ScheduledCast, error)
	Delete(ctx context.Context, callerID, castID uint64) error
	Get(ctx context.Context, callerID, castID uint64) (model.ScheduledCast, error)
	List(ctx context.Context, callerID uint64, f service.ListFilter) ([]model.ScheduledCast, error)
}

type CastHandler struct {
	Casts CastService
	Log   logging.Logger
}

func NewCastHandler(casts CastService, log logging.Logger) *CastHandler {
	return &CastHandler{Casts: casts, Log: log}
}

// castReq accepts either scheduled_time (epoch ms) or date + time read in
// timezone.
type castReq struct {
	Content        string  `json:"content"`
	ImageStorageID *string `json:"image_storage_id"`
	ScheduledTime  *int64  `json:"scheduled_time"`
	Date           string  `json:"date"`
	Time           string  `json:"time"`
	Timezone       string  `json:"timezone"`
}

func (r castReq) input() service.CastInput {
	in := service.CastInput{
		Content:        r.Content,
		ImageStorageID: r.ImageStorageID,
		Date:           r.Date,
		Clock:          r.Time,
		Timezone:       r.Timezone,
	}
	if r.ScheduledTime != nil {
		in.ScheduledTime = time.UnixMilli(*r.ScheduledTime).UTC()
	}
	return in
}

type castResp struct {
	ID             uint64  `json:"id"`
	Content        string  `json:"content"`
	ImageStorageID *string `json:"image_storage_id,omitempty"`
	ScheduledTime  int64   `json:"scheduled_time"`
	ScheduledAt    string  `json:"scheduled_at"`
	Timezone       string  `json:"timezone"`
	Status         string  `json:"status"`
	ErrorMessage   *string `json:"error_message,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

func toCastResp(m model.ScheduledCast) castResp {
	local := m.ScheduledTime
	if loc, err := time.LoadLocation(m.Timezone); err == nil {
		local = local.In(loc)
	}
	return castResp{
		ID:             m.ID,
		Content:        m.Content,
		ImageStorageID: m.ImageStorageID,
		ScheduledTime:  m.ScheduledTime.UnixMilli(),
		ScheduledAt:    local.Format(time.RFC3339),
		Timezone:       m.Timezone,
		Status:         string(m.Status),
		ErrorMessage:   m.ErrorMessage,
		CreatedAt:      m.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      m.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// Create schedules a new cast.
func (h *CastHandler) Create(c echo.Context) error {
	var req castReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	cast, err := h.Casts.Create(ctx, getUserID(c), req.input())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, toCastResp(cast))
}

// List returns the caller's casts; ?view=upcoming|past and ?status= filter.
func (h *CastHandler) List(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	casts, err := h.Casts.List(ctx, getUserID(c), service.ListFilter{
		View:   c.QueryParam("view"),
		Status: model.CastStatus(c.QueryParam("status")),
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out := make([]castResp, 0, len(casts))
	for _, m := range casts {
		out = append(out, toCastResp(m))
	}
	return c.JSON(http.StatusOK, echo.Map{"casts": out})
}

// Get returns one cast.
func (h *CastHandler) Get(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return writeError(c, h.Log, service.ErrNotFound)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	cast, err := h.Casts.Get(ctx, getUserID(c), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toCastResp(cast))
}

// Update edits a pending cast.
func (h *CastHandler) Update(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return writeError(c, h.Log, service.ErrNotFound)
	}
	var req castReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	cast, err := h.Casts.Edit(ctx, getUserID(c), id, req.input())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toCastResp(cast))
}

// Delete cancels a cast.
func (h *CastHandler) Delete(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return writeError(c, h.Log, service.ErrNotFound)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Casts.Delete(ctx, getUserID(c), id); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
