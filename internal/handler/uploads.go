package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/castscheduler/internal/logging"
	"github.com/iliyamo/castscheduler/internal/service"
	"github.com/iliyamo/castscheduler/internal/validation"
)

// UploadURLIssuer hands out presigned upload URLs.
type UploadURLIssuer interface {
	UploadURL(ctx context.Context, contentType string) (storageID, url string, err error)
}

type UploadHandler struct {
	Store UploadURLIssuer
	Log   logging.Logger
}

func NewUploadHandler(s UploadURLIssuer, log logging.Logger) *UploadHandler {
	return &UploadHandler{Store: s, Log: log}
}

type uploadReq struct {
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// Create checks the declared image and returns where to PUT it.  The
// returned storage_id is what a cast references.
func (h *UploadHandler) Create(c echo.Context) error {
	if getUserID(c) == 0 {
		return writeError(c, h.Log, service.ErrNotAuthenticated)
	}
	var req uploadReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Size <= 0 {
		return badRequest(c, "size required")
	}
	if err := validation.ImageSize(req.Size); err != nil {
		return badRequest(c, err.Error())
	}
	ct := strings.ToLower(strings.TrimSpace(req.ContentType))
	if ct != "" && !strings.HasPrefix(ct, "image/") {
		return badRequest(c, "only images can be attached")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	id, url, err := h.Store.UploadURL(ctx, ct)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"storage_id": id, "upload_url": url})
}
