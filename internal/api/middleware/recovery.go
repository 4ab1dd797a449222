package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
)

const maxStackBytes = 4096

// Recovery turns a handler panic into a logged error and a 500 with an
// {"error": "..."} body. A response already committed is left as is.
func Recovery(log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}

				req := c.Request()
				log.ErrorContext(req.Context(), "panic recovered",
					"error", fmt.Sprint(r),
					"method", req.Method,
					"path", req.URL.Path,
					"request_id", RequestID(c),
					"stack", stack(),
				)

				err = nil
				if !c.Response().Committed {
					err = c.JSON(http.StatusInternalServerError, map[string]string{
						"error": "internal server error",
					})
				}
			}()
			return next(c)
		}
	}
}

// stack returns the current goroutine's stack, cut at maxStackBytes.
func stack() string {
	buf := make([]byte, maxStackBytes)
	return string(buf[:runtime.Stack(buf, false)])
}
