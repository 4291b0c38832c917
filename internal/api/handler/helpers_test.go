package handler

import (
	"io"
	"net/http/httptest"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/courier-tracking/internal/api/middleware"
	"github.com/99minutos/courier-tracking/internal/core/domain"
)

var (
	courierU1  = domain.Caller{ID: "u1", Name: "Carla", Role: domain.RoleCourier}
	customerC1 = domain.Caller{ID: "c1", Name: "Ana", Role: domain.RoleCustomer}
	adminA1    = domain.Caller{ID: "a1", Name: "Root", Role: domain.RoleAdmin}
)

// newContext builds an echo context with the validator installed and, when
// caller has an ID, the claims the Auth middleware would have set.
func newContext(method, target, body string, caller domain.Caller) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if caller.ID != "" {
		c.Set(middleware.CtxUserID, caller.ID)
		c.Set(middleware.CtxName, caller.Name)
		c.Set(middleware.CtxRole, caller.Role)
	}
	return c, rec
}
