// Package tenant carries the practice boundary. Every service and repository
// call takes a Scope explicitly; nothing reads the tenant from ambient state.
package tenant

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/gpcare/practice/internal/platform/auth"
)

const scopeKey = "tenant_scope"

// ErrNoScope is returned when a request reaches a handler without a resolved practice.
var ErrNoScope = errors.New("no practice scope on request")

// Scope identifies the practice a call acts on and the staff user acting.
type Scope struct {
	PracticeID uuid.UUID
	UserID     string
	Role       string
}

// For builds a scope for internal callers such as CLI commands and tests.
func For(practiceID uuid.UUID, userID, role string) Scope {
	return Scope{PracticeID: practiceID, UserID: userID, Role: role}
}

// Middleware converts the authenticated identity into a Scope. A practice id
// that is not a UUID is rejected before any handler runs.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := auth.IdentityFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
			}
			practiceID, err := uuid.Parse(id.PracticeID)
			if err != nil || practiceID == uuid.Nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid practice identifier")
			}
			c.Set(scopeKey, Scope{PracticeID: practiceID, UserID: id.UserID, Role: id.Role})
			return next(c)
		}
	}
}

// FromEcho returns the scope resolved by Middleware.
func FromEcho(c echo.Context) (Scope, error) {
	s, ok := c.Get(scopeKey).(Scope)
	if !ok {
		return Scope{}, ErrNoScope
	}
	return s, nil
}

// Set stores s on the echo context. Handler tests use it in place of Middleware.
func Set(c echo.Context, s Scope) {
	c.Set(scopeKey, s)
}

// Require is FromEcho for handlers: a missing scope becomes a 401.
func Require(c echo.Context) (Scope, error) {
	s, err := FromEcho(c)
	if err != nil {
		return Scope{}, echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	return s, nil
}
