package echoapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/njautech/schoolhub/core/submission"
)

// requestTimeout bounds the context every handler and service call runs under.
func requestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if timeout <= 0 {
				return next(ctx)
			}
			c, cancel := context.WithTimeout(ctx.Request().Context(), timeout)
			defer cancel()
			ctx.SetRequest(ctx.Request().WithContext(c))
			return next(ctx)
		}
	}
}

// uploadBodyLimit caps request bodies at maxFile plus bodyLimitSlack. An oversized multipart
// upload is reported as the same file validation error the submission service returns.
func uploadBodyLimit(maxFile int64) echo.MiddlewareFunc {
	bodyLimit := middleware.BodyLimitWithConfig(middleware.BodyLimitConfig{
		Limit: strconv.FormatInt(maxFile+bodyLimitSlack, 10),
	})
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		limited := bodyLimit(next)
		return func(ctx echo.Context) error {
			err := limited(ctx)
			var herr *echo.HTTPError
			if err != nil && errors.As(err, &herr) && herr.Code == http.StatusRequestEntityTooLarge &&
				strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
				return submission.FileTooLargeError(maxFile)
			}
			return err
		}
	}
}
