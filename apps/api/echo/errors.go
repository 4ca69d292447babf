package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/njautech/schoolhub/core"
)

var (
	errMissingToken = echo.NewHTTPError(http.StatusUnauthorized, "missing or malformed bearer token")
	errBadParam     = echo.NewHTTPError(http.StatusBadRequest, "invalid query parameter")
)

type (
	httpError struct {
		Status  int               `json:"status"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields,omitempty"`
	}

	errorResponse struct {
		Error httpError `json:"error"`
	}
)

// toHTTPError maps err to its response. ok is false for unexpected (server) errors.
func toHTTPError(err error, translator ut.Translator) (herr httpError, ok bool) {
	var (
		echoErr  *echo.HTTPError
		valErrs  validator.ValidationErrors
		valErr   *core.ValidationError
		notFound *core.NotFoundError
	)

	switch {
	case errors.As(err, &echoErr):
		if internal, isHTTP := echoErr.Internal.(*echo.HTTPError); isHTTP {
			echoErr = internal
		}
		herr = httpError{Status: echoErr.Code, Message: http.StatusText(echoErr.Code)}
		if msg, isStr := echoErr.Message.(string); isStr {
			herr.Message = msg
		}
		return herr, echoErr.Code < http.StatusInternalServerError

	case errors.As(err, &valErrs):
		herr = httpError{Status: http.StatusBadRequest, Message: "validation failed", Fields: make(map[string]string, len(valErrs))}
		for _, fe := range valErrs {
			herr.Fields[fe.Field()] = fe.Translate(translator)
		}
		return herr, true

	case errors.As(err, &valErr):
		herr = httpError{Status: http.StatusBadRequest, Message: valErr.Error()}
		if len(valErr.Fields) > 0 {
			herr.Fields = make(map[string]string, len(valErr.Fields))
			for _, fe := range valErr.Fields {
				herr.Fields[fe.Field] = fe.Error
			}
			if valErr.Err == nil {
				herr.Message = "validation failed"
			}
		}
		return herr, true

	case core.IsUnauthorized(err):
		return httpError{Status: http.StatusUnauthorized, Message: errors.Cause(err).Error()}, true
	case core.IsForbidden(err):
		return httpError{Status: http.StatusForbidden, Message: errors.Cause(err).Error()}, true
	case errors.As(err, &notFound):
		return httpError{Status: http.StatusNotFound, Message: notFound.Error()}, true
	case core.IsConflict(err):
		return httpError{Status: http.StatusConflict, Message: errors.Cause(err).Error()}, true
	}

	return httpError{Status: http.StatusInternalServerError, Message: http.StatusText(http.StatusInternalServerError)}, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		herr, ok := toHTTPError(err, translator)
		if !ok {
			args := []interface{}{errors.Wrap(err, herr.Message)}
			if actor, aErr := contextActor(ctx); aErr == nil {
				args = append(args, actor)
			}
			logger.Error(ctx.Request().Method+" "+ctx.Request().URL.Path, args...)

			if ctx.Echo().Debug {
				herr.Message = err.Error()
			}
			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(herr.Status)
			} else {
				err = ctx.JSON(herr.Status, errorResponse{Error: herr})
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
