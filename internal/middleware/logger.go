package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/castscheduler/internal/logging"
	"github.com/iliyamo/castscheduler/internal/metrics"
)

// RequestLogger logs one line per request and records its latency.
func RequestLogger(log logging.Logger, m metrics.Metrics) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogRoutePath: true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			route := v.RoutePath
			if route == "" {
				route = "unmatched"
			}
			m.ObserveRequest(route, v.Status, v.Latency)

			args := []any{
				"method", v.Method,
				"path", v.URIPath,
				"status", v.Status,
				"latency", v.Latency.Round(time.Microsecond),
				"ip", v.RemoteIP,
				"user", currentUserID(c),
			}
			switch {
			case v.Error != nil:
				log.Error("request", append(args, "err", v.Error)...)
			case v.Status >= 500:
				log.Error("request", args...)
			default:
				log.Info("request", args...)
			}
			return nil
		},
	})
}
