package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Staff roles carried in the token's role claim.
const (
	RoleAdmin           = "ADMIN"
	RoleGP              = "GP"
	RoleNurse           = "NURSE"
	RoleReceptionist    = "RECEPTIONIST"
	RolePracticeManager = "PRACTICE_MANAGER"
)

// AllRoles lists every role the server recognises.
var AllRoles = []string{RoleAdmin, RoleGP, RoleNurse, RoleReceptionist, RolePracticeManager}

// ValidRole reports whether role is one of AllRoles.
func ValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// RequireRole allows the request when the caller holds one of roles. ADMIN
// passes every check.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
			}
			if id.Role == RoleAdmin {
				return next(c)
			}
			for _, r := range roles {
				if id.Role == r {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}
