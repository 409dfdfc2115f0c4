package billing

import (
	"context"
	"net/http"

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
	g := api.Group("/invoices", auth.RequireRole(auth.RoleReceptionist, auth.RolePracticeManager))
	g.GET("", h.ListInvoices)
	g.GET("/:id", h.GetInvoice)
	g.POST("", h.CreateInvoice)
	g.PUT("/:id", h.UpdateInvoice)
	g.DELETE("/:id", h.DeleteInvoice)
	g.PUT("/:id/issue", h.statusAction((*Service).Issue))
	g.PUT("/:id/pay", h.statusAction((*Service).MarkPaid))
	g.PUT("/:id/void", h.statusAction((*Service).Void))
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) CreateInvoice(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	inv, err := h.svc.Create(c.Request().Context(), scope, req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) GetInvoice(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	inv, err := h.svc.Get(c.Request().Context(), scope, id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) ListInvoices(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	f := Filter{Status: Status(c.QueryParam("status"))}
	if v := c.QueryParam("patient_id"); v != "" {
		pid, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = &pid
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Search(c.Request().Context(), scope, f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	if items == nil {
		items = []*Invoice{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateInvoice(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	inv, err := h.svc.Update(c.Request().Context(), scope, id, req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) DeleteInvoice(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), scope, id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) statusAction(fn func(*Service, context.Context, tenant.Scope, uuid.UUID) (*Invoice, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		scope, err := tenant.Require(c)
		if err != nil {
			return err
		}
		id, err := parseID(c)
		if err != nil {
			return err
		}
		inv, err := fn(h.svc, c.Request().Context(), scope, id)
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(http.StatusOK, inv)
	}
}
