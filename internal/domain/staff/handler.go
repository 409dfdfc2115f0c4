package staff

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/gpcare/practice/internal/platform/apperr"
	"github.com/gpcare/practice/internal/platform/auth"
	"github.com/gpcare/practice/internal/platform/tenant"
	"github.com/gpcare/practice/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/staff", auth.RequireRole(auth.AllRoles...))
	g.GET("", h.ListStaff)
	g.GET("/:id", h.GetStaff)

	manage := auth.RequireRole(auth.RolePracticeManager)
	g.POST("", h.CreateStaff, manage)
	g.PUT("/:id", h.UpdateStaff, manage)
	g.DELETE("/:id", h.DeleteStaff, manage)
}

func (h *Handler) CreateStaff(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	var m Member
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.Create(c.Request().Context(), scope, &m); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) GetStaff(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	m, err := h.svc.Get(c.Request().Context(), scope, id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) ListStaff(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	f := Filter{Query: c.QueryParam("q")}
	if v := c.QueryParam("role"); v != "" {
		f.Roles = strings.Split(v, ",")
	}
	if v := c.QueryParam("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "active must be true or false")
		}
		f.Active = &active
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Search(c.Request().Context(), scope, f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	if items == nil {
		items = []*Member{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateStaff(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	m, err := h.svc.Get(c.Request().Context(), scope, id)
	if err != nil {
		return apperr.HTTP(err)
	}
	if err := c.Bind(m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	m.ID = id
	if err := h.svc.Update(c.Request().Context(), scope, m); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) DeleteStaff(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), scope, id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}
