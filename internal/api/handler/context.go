package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/courier-tracking/internal/api/middleware"
	"github.com/99minutos/courier-tracking/internal/core/domain"
)

// ctxCaller extracts the identity injected by the Auth middleware. A missing
// role or subject means the middleware did not run; reject with 401 before
// any service call.
func ctxCaller(c echo.Context) (domain.Caller, error) {
	role, _ := c.Get(middleware.CtxRole).(string)
	id, _ := c.Get(middleware.CtxUserID).(string)
	if role == "" || id == "" {
		return domain.Caller{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	name, _ := c.Get(middleware.CtxName).(string)
	return domain.Caller{ID: id, Name: name, Role: role}, nil
}

// bindAndValidate decodes the body into req and runs the validator. Both
// failures are reported as invalid input.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return fmt.Errorf("%w: malformed request body", domain.ErrInvalidInput)
	}
	if err := c.Validate(req); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return nil
}
