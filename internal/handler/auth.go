package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/castscheduler/internal/config"
	"github.com/iliyamo/castscheduler/internal/logging"
	"github.com/iliyamo/castscheduler/internal/repository"
	"github.com/iliyamo/castscheduler/internal/service"
	"github.com/iliyamo/castscheduler/internal/utils"
)

// SignInService verifies a Neynar claim and returns the local user id.
type SignInService interface {
	SignIn(ctx context.Context, claim service.Claim) (uint64, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Identity SignInService
	Users    repository.UserStore
	Tokens   repository.TokenStore
	Log      logging.Logger
}

func NewAuthHandler(cfg config.Config, identity SignInService, u repository.UserStore, t repository.TokenStore, log logging.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Identity: identity, Users: u, Tokens: t, Log: log}
}

// ----- DTOs -----

type neynarSignInReq struct {
	FID         json.Number `json:"fid"`
	SignerUUID  string      `json:"signer_uuid"`
	Username    string      `json:"username"`
	DisplayName string      `json:"display_name"`
	PfpURL      string      `json:"pfp_url"`
	Timezone    string      `json:"timezone"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID    uint64  `json:"id"`
	Name  string  `json:"name"`
	Image *string `json:"image,omitempty"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

// issue creates an access/refresh pair for uid and stores the refresh hash.
func (h *AuthHandler) issue(ctx context.Context, uid uint64) (authResp, error) {
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return authResp{}, err
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, uid, h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, err
	}
	if err := h.Tokens.StoreRefresh(ctx, uid, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, err
	}
	return authResp{
		User:    userPart{ID: uid, Name: u.Name, Image: u.Image},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	}, nil
}

// SignInNeynar: verify the Sign In With Neynar result and return a token pair.
func (h *AuthHandler) SignInNeynar(c echo.Context) error {
	var req neynarSignInReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	// the Neynar round trip needs more than the default budget
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*requestTimeout)
	defer cancel()

	uid, err := h.Identity.SignIn(ctx, service.Claim{
		FID:         req.FID.String(),
		SignerUUID:  req.SignerUUID,
		Username:    req.Username,
		DisplayName: req.DisplayName,
		PfpURL:      req.PfpURL,
		Timezone:    req.Timezone,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	resp, err := h.issue(ctx, uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh: validate by hash, revoke old, issue new.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := requestCtx(c)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, errorBody{Error: "not_authenticated", Message: "invalid refresh"})
	}
	if err != nil {
		return writeError(c, h.Log, err)
	}
	_ = h.Tokens.RevokeByHash(ctx, hash)

	resp, err := h.issue(ctx, userID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout revokes the refresh token in the body, or every token of the
// caller when the body has none.
func (h *AuthHandler) Logout(c echo.Context) error {
	uid := getUserID(c)
	if uid == 0 {
		return writeError(c, h.Log, service.ErrNotAuthenticated)
	}
	var req refreshReq
	_ = c.Bind(&req)

	ctx, cancel := requestCtx(c)
	defer cancel()

	if raw := strings.TrimSpace(req.RefreshToken); raw != "" {
		hash := utils.HashRefreshRaw(raw)
		owner, err := h.Tokens.ValidateRefresh(ctx, hash)
		if err != nil || owner != uid {
			return c.JSON(http.StatusUnauthorized, errorBody{Error: "not_authenticated", Message: "invalid refresh"})
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return writeError(c, h.Log, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
	}
	if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out everywhere"})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
	uid := getUserID(c)
	if uid == 0 {
		return writeError(c, h.Log, service.ErrNotAuthenticated)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return writeError(c, h.Log, service.ErrNotAuthenticated)
	}
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, userPart{ID: u.ID, Name: u.Name, Image: u.Image})
}
