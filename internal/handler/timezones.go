package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/castscheduler/internal/timezones"
)

// Timezones lists the curated zones.  With ?current=<zone> it also labels
// that zone with its offset right now.
func Timezones(c echo.Context) error {
	resp := echo.Map{"timezones": timezones.All}
	if name := c.QueryParam("current"); name != "" {
		z, err := timezones.Describe(name, time.Now())
		if err != nil {
			return badRequest(c, err.Error())
		}
		resp["current"] = z
	}
	return c.JSON(http.StatusOK, resp)
}
