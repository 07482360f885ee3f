package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/session"
)

var (
	errHttpNotFound = echo.NewHTTPError(http.StatusNotFound, "not found")
	errLoginLocked  = echo.NewHTTPError(http.StatusForbidden, echo.Map{
		"error": "logins are locked",
		"code":  "login_locked",
	})
)

// identifierExistsError refuses a registration whose identifier is taken.
func identifierExistsError(err error) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusConflict, echo.Map{
		"error": err.Error(),
		"code":  "identifier_exists",
	})
}

// admissionHTTPError maps a check-in refusal to its HTTP error and result
// code. It returns nil for errors that are not refusals.
func admissionHTTPError(err error) (*echo.HTTPError, string) {
	cause := errors.Cause(err)
	switch cause {
	case session.ErrNotActive:
		return refusal(http.StatusNotFound, cause.Error(), "session_not_active")
	case session.ErrAlreadyMarked:
		return refusal(http.StatusConflict, cause.Error(), "already_marked")
	case session.ErrUnknownIdentity:
		return refusal(http.StatusNotFound, cause.Error(), "unknown_identity")
	case session.ErrDeviceConflict:
		return refusal(http.StatusForbidden, cause.Error(), "device_conflict")
	}
	if diuErr, ok := cause.(*session.DeviceInUseError); ok {
		return refusal(http.StatusForbidden, diuErr.Error(), "device_in_use")
	}
	return nil, ""
}

func refusal(httpCode int, msg, code string) (*echo.HTTPError, string) {
	return echo.NewHTTPError(httpCode, echo.Map{"error": msg, "code": code}), code
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			logger.Error(msg, errors.Wrap(err, msg))

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
