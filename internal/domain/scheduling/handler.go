package scheduling

import (
	"errors"
	"net/http"
	"strings"
	"time"

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
	// Front desk and clinicians
	g := api.Group("/appointments", auth.RequireRole(auth.AllRoles...))
	g.GET("", h.ListAppointments)
	g.GET("/availability", h.Availability)
	g.GET("/:id", h.GetAppointment)
	g.POST("", h.CreateAppointment)
	g.PUT("/:id/confirm", h.Confirm)
	g.PUT("/:id/check-in", h.CheckIn)
	g.PUT("/:id/cancel", h.Cancel)
	g.PUT("/:id/dna", h.MarkDNA)
	g.PUT("/:id/reschedule", h.Reschedule)
	g.PUT("/:id/status", h.UpdateStatus)

	// Consultation progress is recorded by clinicians only
	clinical := auth.RequireRole(auth.RoleGP, auth.RoleNurse)
	g.PUT("/:id/start", h.Start, clinical)
	g.PUT("/:id/complete", h.Complete, clinical)

	api.GET("/dashboard/stats", h.DashboardStats, auth.RequireRole(auth.AllRoles...))
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}
	a, err := h.svc.Create(c.Request().Context(), scope, req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func bindError(err error) error {
	if errors.Is(err, errStartFormat) {
		return apperr.HTTP(errStartFormat)
	}
	return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
}

func (h *Handler) GetAppointment(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Get(c.Request().Context(), scope, id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	f, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Search(c.Request().Context(), scope, f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	if items == nil {
		items = []*Appointment{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func filterFromQuery(c echo.Context) (SearchFilter, error) {
	var f SearchFilter
	for _, p := range []struct {
		name string
		dst  **uuid.UUID
	}{{"clinician_id", &f.ClinicianID}, {"patient_id", &f.PatientID}} {
		if v := c.QueryParam(p.name); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				return f, echo.NewHTTPError(http.StatusBadRequest, "invalid "+p.name)
			}
			*p.dst = &id
		}
	}
	if v := c.QueryParam("status"); v != "" {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				f.Statuses = append(f.Statuses, Status(strings.ToUpper(s)))
			}
		}
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		if v := c.QueryParam(p.name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return f, echo.NewHTTPError(http.StatusBadRequest, p.name+" must be an RFC 3339 timestamp")
			}
			*p.dst = &t
		}
	}
	f.Date = c.QueryParam("date")
	return f, nil
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type statusRequest struct {
	Status Status `json:"status"`
}

type statusAction func(scope tenant.Scope, id uuid.UUID) (*Appointment, error)

// runAction resolves scope and id, runs the status action and writes the
// updated appointment.
func (h *Handler) runAction(c echo.Context, action statusAction) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := action(scope, id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Confirm(c echo.Context) error {
	return h.runAction(c, func(scope tenant.Scope, id uuid.UUID) (*Appointment, error) {
		return h.svc.Confirm(c.Request().Context(), scope, id)
	})
}

func (h *Handler) CheckIn(c echo.Context) error {
	return h.runAction(c, func(scope tenant.Scope, id uuid.UUID) (*Appointment, error) {
		return h.svc.CheckIn(c.Request().Context(), scope, id)
	})
}

func (h *Handler) Start(c echo.Context) error {
	return h.runAction(c, func(scope tenant.Scope, id uuid.UUID) (*Appointment, error) {
		return h.svc.Start(c.Request().Context(), scope, id)
	})
}

func (h *Handler) Complete(c echo.Context) error {
	return h.runAction(c, func(scope tenant.Scope, id uuid.UUID) (*Appointment, error) {
		return h.svc.Complete(c.Request().Context(), scope, id)
	})
}

func (h *Handler) MarkDNA(c echo.Context) error {
	return h.runAction(c, func(scope tenant.Scope, id uuid.UUID) (*Appointment, error) {
		return h.svc.MarkDNA(c.Request().Context(), scope, id)
	})
}

func (h *Handler) Cancel(c echo.Context) error {
	return h.runAction(c, func(scope tenant.Scope, id uuid.UUID) (*Appointment, error) {
		var req cancelRequest
		if err := c.Bind(&req); err != nil {
			return nil, apperr.Invalid("invalid request body")
		}
		return h.svc.Cancel(c.Request().Context(), scope, id, strings.TrimSpace(req.Reason))
	})
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	return h.runAction(c, func(scope tenant.Scope, id uuid.UUID) (*Appointment, error) {
		var req statusRequest
		if err := c.Bind(&req); err != nil {
			return nil, apperr.Invalid("invalid request body")
		}
		return h.svc.UpdateStatus(c.Request().Context(), scope, id, req.Status)
	})
}

func (h *Handler) Reschedule(c echo.Context) error {
	return h.runAction(c, func(scope tenant.Scope, id uuid.UUID) (*Appointment, error) {
		var req RescheduleRequest
		if err := c.Bind(&req); err != nil {
			return nil, bindError(err)
		}
		return h.svc.Reschedule(c.Request().Context(), scope, id, req)
	})
}

func (h *Handler) Availability(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	clinicianID, err := uuid.Parse(c.QueryParam("clinician_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "clinician_id is required")
	}
	av, err := h.svc.Availability(c.Request().Context(), scope, clinicianID, c.QueryParam("date"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, av)
}

func (h *Handler) DashboardStats(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	stats, err := h.svc.DashboardStats(c.Request().Context(), scope)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, stats)
}
