package practice

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/gpcare/practice/internal/platform/apperr"
	"github.com/gpcare/practice/internal/platform/auth"
	"github.com/gpcare/practice/internal/platform/tenant"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := auth.RequireRole(auth.AllRoles...)
	manage := auth.RequireRole(auth.RolePracticeManager)

	api.GET("/practice", h.GetPractice, read)
	api.PUT("/practice", h.UpdatePractice, manage)

	api.GET("/rooms", h.ListRooms, read)
	api.GET("/rooms/:id", h.GetRoom, read)
	api.POST("/rooms", h.CreateRoom, manage)
	api.PUT("/rooms/:id", h.UpdateRoom, manage)
	api.DELETE("/rooms/:id", h.DeleteRoom, manage)
}

func (h *Handler) GetPractice(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), scope)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePractice(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), scope)
	if err != nil {
		return apperr.HTTP(err)
	}
	if err := c.Bind(p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.Update(c.Request().Context(), scope, p); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListRooms(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	rooms, err := h.svc.ListRooms(c.Request().Context(), scope, c.QueryParam("active") == "true")
	if err != nil {
		return apperr.HTTP(err)
	}
	if rooms == nil {
		rooms = []*Room{}
	}
	return c.JSON(http.StatusOK, rooms)
}

func (h *Handler) GetRoom(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, err := h.svc.GetRoom(c.Request().Context(), scope, id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) CreateRoom(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	var r Room
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.CreateRoom(c.Request().Context(), scope, &r); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) UpdateRoom(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, err := h.svc.GetRoom(c.Request().Context(), scope, id)
	if err != nil {
		return apperr.HTTP(err)
	}
	if err := c.Bind(r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	r.ID = id
	if err := h.svc.UpdateRoom(c.Request().Context(), scope, r); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) DeleteRoom(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteRoom(c.Request().Context(), scope, id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}
