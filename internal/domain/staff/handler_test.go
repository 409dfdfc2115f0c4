package staff

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/gpcare/practice/internal/platform/auth"
	"github.com/gpcare/practice/internal/platform/tenant"
)

func request(e *echo.Echo, scope tenant.Scope, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	tenant.Set(c, scope)
	return c, rec
}

func TestHandler_CreateAndList(t *testing.T) {
	h := NewHandler(NewService(newMockRepo()))
	e := echo.New()
	scope := newScope()

	c, rec := request(e, scope, http.MethodPost, "/staff",
		`{"email":"gp@example.com","first_name":"Grace","last_name":"Hopper","role":"GP"}`)
	if err := h.CreateStaff(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	c, rec = request(e, scope, http.MethodGet, "/staff?role=GP,NURSE&active=true", "")
	if err := h.ListStaff(c); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("expected one result, got %s", rec.Body.String())
	}
}

func TestHandler_CreateInvalidRole(t *testing.T) {
	h := NewHandler(NewService(newMockRepo()))
	c, _ := request(echo.New(), newScope(), http.MethodPost, "/staff",
		`{"email":"x@example.com","first_name":"X","last_name":"Y","role":"WIZARD"}`)
	err := h.CreateStaff(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_GetUnknown(t *testing.T) {
	h := NewHandler(NewService(newMockRepo()))
	c, _ := request(echo.New(), newScope(), http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())
	err := h.GetStaff(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestHandler_WritesRequireManager(t *testing.T) {
	h := NewHandler(NewService(newMockRepo()))
	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth.WithIdentity(c, auth.Identity{UserID: "u1", PracticeID: uuid.NewString(), Role: auth.RoleReceptionist})
			return next(c)
		}
	}, tenant.Middleware())
	h.RegisterRoutes(e.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/staff",
		strings.NewReader(`{"email":"x@example.com","first_name":"X","last_name":"Y","role":"GP"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for receptionist, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/staff", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for list, got %d: %s", rec.Code, rec.Body.String())
	}
}
