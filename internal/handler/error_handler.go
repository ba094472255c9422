package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fleetos/identity/internal/apperr"
)

// NewHTTPErrorHandler returns the boundary translator that maps domain
// errors to responses. Application errors surface with their status hint;
// anything unanticipated is logged in full and, outside dev, replaced with
// a generic message before it reaches the client.
func NewHTTPErrorHandler(env string) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			log.Printf("request failed: %s %s: %v", c.Request().Method, c.Request().URL.Path, err)
			_ = c.JSON(appErr.Status, echo.Map{"error": appErr.Message})
			return
		}

		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			_ = c.JSON(httpErr.Code, echo.Map{"error": fmt.Sprint(httpErr.Message)})
			return
		}

		log.Printf("unhandled error: %s %s: %v", c.Request().Method, c.Request().URL.Path, err)
		msg := err.Error()
		if env != "dev" {
			msg = "something went wrong, please try again later"
		}
		_ = c.JSON(http.StatusInternalServerError, echo.Map{"error": msg})
	}
}
