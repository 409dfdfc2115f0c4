package billing

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

func serve(f *fixture, role, method, target, body string) *httptest.ResponseRecorder {
	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth.WithIdentity(c, auth.Identity{UserID: "u1", PracticeID: f.scope.PracticeID.String(), Role: role})
			return next(c)
		}
	}, tenant.Middleware())
	NewHandler(f.svc).RegisterRoutes(e.Group("/api/v1"))

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_InvoiceFlow(t *testing.T) {
	f := newFixture()
	rec := serve(f, auth.RoleReceptionist, http.MethodPost, "/api/v1/invoices",
		`{"patient_id":"`+f.patient.String()+`","items":[{"description":"Private sick note","quantity":1,"unit_pence":2500}]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"number":"INV-000001"`) {
		t.Errorf("expected invoice number, got %s", rec.Body.String())
	}

	var id string
	for k := range f.repo.invoices {
		id = k.String()
	}
	rec = serve(f, auth.RolePracticeManager, http.MethodPut, "/api/v1/invoices/"+id+"/issue", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ISSUED"`) {
		t.Fatalf("expected issued, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = serve(f, auth.RoleReceptionist, http.MethodPut, "/api/v1/invoices/"+id, `{"notes":"late"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 editing issued invoice, got %d", rec.Code)
	}

	rec = serve(f, auth.RoleReceptionist, http.MethodGet, "/api/v1/invoices?status=ISSUED", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("expected one issued invoice, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_ClinicalRolesCannotBill(t *testing.T) {
	f := newFixture()
	rec := serve(f, auth.RoleGP, http.MethodGet, "/api/v1/invoices", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for GP, got %d", rec.Code)
	}
}

func TestHandler_BadIDs(t *testing.T) {
	f := newFixture()
	if rec := serve(f, auth.RoleReceptionist, http.MethodGet, "/api/v1/invoices/not-a-uuid", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if rec := serve(f, auth.RoleReceptionist, http.MethodGet, "/api/v1/invoices/"+uuid.NewString(), ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if rec := serve(f, auth.RoleReceptionist, http.MethodGet, "/api/v1/invoices?patient_id=bad", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
