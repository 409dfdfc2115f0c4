package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/gpcare/practice/internal/platform/auth"
)

// requestLogger returns an event pre-filled with who made the request.
func requestLogger(c echo.Context, evt *zerolog.Event) *zerolog.Event {
	evt = evt.Str("request_id", RequestIDFrom(c))
	if id, ok := auth.IdentityFrom(c); ok {
		evt = evt.Str("practice_id", id.PracticeID).Str("user_id", id.UserID).Str("role", id.Role)
	}
	return evt
}

// Logger writes one access log line per request. Client errors log at warn
// and server errors at error, with the error attached.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}

			var evt *zerolog.Event
			switch {
			case status >= 500:
				evt = logger.Error().Err(err)
				if he, ok := err.(*echo.HTTPError); ok && he.Internal != nil {
					evt = evt.AnErr("cause", he.Internal)
				}
			case status >= 400:
				evt = logger.Warn().Err(err)
			default:
				evt = logger.Info()
			}

			requestLogger(c, evt).
				Str("method", c.Request().Method).
				Str("route", c.Path()).
				Str("path", c.Request().URL.Path).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")
			return err
		}
	}
}
