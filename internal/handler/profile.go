package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/castscheduler/internal/logging"
	"github.com/iliyamo/castscheduler/internal/model"
	"github.com/iliyamo/castscheduler/internal/service"
	"github.com/iliyamo/castscheduler/internal/timezones"
)

// ProfileService is what the profile endpoints need.
type ProfileService interface {
	Get(ctx context.Context, callerID uint64) (model.UserProfile, error)
	Save(ctx context.Context, callerID uint64, in service.ProfileInput) (model.UserProfile, error)
	HasSigner(ctx context.Context, callerID uint64) (bool, error)
}

type ProfileHandler struct {
	Profiles ProfileService
	Log      logging.Logger
}

func NewProfileHandler(p ProfileService, log logging.Logger) *ProfileHandler {
	return &ProfileHandler{Profiles: p, Log: log}
}

type profileReq struct {
	DisplayName       string  `json:"display_name"`
	FarcasterID       string  `json:"farcaster_id"`
	FarcasterUsername string  `json:"farcaster_username"`
	ProfileImgURL     *string `json:"profile_img_url"`
	Timezone          string  `json:"timezone"`
}

type profileResp struct {
	DisplayName       string  `json:"display_name"`
	FarcasterID       string  `json:"farcaster_id"`
	FarcasterUsername string  `json:"farcaster_username"`
	ProfileImgURL     *string `json:"profile_img_url,omitempty"`
	Timezone          string  `json:"timezone"`
	TimezoneLabel     string  `json:"timezone_label"`
}

func toProfileResp(p model.UserProfile) profileResp {
	out := profileResp{
		DisplayName:       p.DisplayName,
		FarcasterID:       p.FarcasterID,
		FarcasterUsername: p.FarcasterUsername,
		ProfileImgURL:     p.ProfileImgURL,
		Timezone:          p.Timezone,
	}
	if z, err := timezones.Describe(p.Timezone, time.Now()); err == nil {
		out.TimezoneLabel = z.Label
	}
	return out
}

// Get returns the caller's profile, 404 before one exists.
func (h *ProfileHandler) Get(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	p, err := h.Profiles.Get(ctx, getUserID(c))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toProfileResp(p))
}

// Put creates or replaces the caller's profile.
func (h *ProfileHandler) Put(c echo.Context) error {
	var req profileReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	p, err := h.Profiles.Save(ctx, getUserID(c), service.ProfileInput{
		DisplayName:       req.DisplayName,
		FarcasterID:       req.FarcasterID,
		FarcasterUsername: req.FarcasterUsername,
		ProfileImgURL:     req.ProfileImgURL,
		Timezone:          req.Timezone,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toProfileResp(p))
}

// Signer reports whether a Neynar signer is linked.  The secret itself never
// leaves the server.
func (h *ProfileHandler) Signer(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	ok, err := h.Profiles.HasSigner(ctx, getUserID(c))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"linked": ok})
}
