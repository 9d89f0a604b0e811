package cohort

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/ehrcore/internal/platform/auth"
	"github.com/ehr/ehrcore/internal/platform/fhir"
)

func newTestHandler() (*Handler, *echo.Echo) {
	authz := auth.NewRoleAuthorizer(auth.DefaultGrants())
	svc := NewService(NewInMemoryRepo(), authz, zerolog.Nop(), nil, nil)
	h := NewHandler(svc, authz)
	h.now = func() time.Time { return clock }

	e := echo.New()
	h.RegisterRoutes(e.Group("/api/v1"), e.Group("/fhir"))
	return h, e
}

func do(e *echo.Echo, method, path, body string, roles ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if len(roles) > 0 {
		req = req.WithContext(auth.WithIdentity(req.Context(), "user-1", roles))
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func createViaAPI(t *testing.T, e *echo.Echo, body string) Cohort {
	t.Helper()
	rec := do(e, http.MethodPost, "/api/v1/cohorts", body, "data_manager")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var c Cohort
	if err := json.Unmarshal(rec.Body.Bytes(), &c); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return c
}

func TestHandler_CreateAndGet(t *testing.T) {
	_, e := newTestHandler()
	created := createViaAPI(t, e, `{"name":"Diabetics","description":"Type 2","members":[3,1]}`)

	if created.ID == nil || created.UUID == "" || created.Creator != "user-1" {
		t.Fatalf("unexpected cohort %+v", created)
	}

	for _, ref := range []string{strconv.Itoa(*created.ID), created.UUID} {
		rec := do(e, http.MethodGet, "/api/v1/cohorts/"+ref, "", "registrar")
		if rec.Code != http.StatusOK {
			t.Fatalf("get %s: expected 200, got %d", ref, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"members":[1,3]`) {
			t.Errorf("expected sorted members, got %s", rec.Body.String())
		}
	}
}

func TestHandler_CreateValidationError(t *testing.T) {
	_, e := newTestHandler()
	rec := do(e, http.MethodPost, "/api/v1/cohorts", `{"description":"no name"}`, "data_manager")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var outcome fhir.OperationOutcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(outcome.Issue) != 1 || outcome.Issue[0].Diagnostics != KeyNameRequired {
		t.Errorf("unexpected outcome %+v", outcome)
	}
}

func TestHandler_CreateForbidden(t *testing.T) {
	_, e := newTestHandler()
	rec := do(e, http.MethodPost, "/api/v1/cohorts", `{"name":"a","description":"b"}`, "registrar")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestHandler_ReadRequiresViewCapability(t *testing.T) {
	_, e := newTestHandler()
	rec := do(e, http.MethodGet, "/api/v1/cohorts", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without identity, got %d", rec.Code)
	}
}

func TestHandler_GetNotFound(t *testing.T) {
	_, e := newTestHandler()
	rec := do(e, http.MethodGet, "/api/v1/cohorts/999", "", "registrar")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_MembershipAndContaining(t *testing.T) {
	_, e := newTestHandler()
	created := createViaAPI(t, e, `{"name":"a","description":"b"}`)
	base := "/api/v1/cohorts/" + strconv.Itoa(*created.ID) + "/members/"

	if rec := do(e, http.MethodPut, base+"8", "", "nurse"); rec.Code != http.StatusOK {
		t.Fatalf("add member: expected 200, got %d", rec.Code)
	}
	if rec := do(e, http.MethodPut, base+"8", "", "nurse"); rec.Code != http.StatusOK {
		t.Fatalf("repeat add: expected 200, got %d", rec.Code)
	}

	rec := do(e, http.MethodGet, "/api/v1/subjects/8/cohorts", "", "registrar")
	var containing []Cohort
	json.Unmarshal(rec.Body.Bytes(), &containing)
	if len(containing) != 1 {
		t.Fatalf("expected one cohort containing 8, got %s", rec.Body.String())
	}

	if rec := do(e, http.MethodDelete, base+"8", "", "nurse"); rec.Code != http.StatusOK {
		t.Fatalf("remove member: expected 200, got %d", rec.Code)
	}
	if rec := do(e, http.MethodPut, base+"abc", "", "nurse"); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad subject id, got %d", rec.Code)
	}
}

func TestHandler_VoidAndList(t *testing.T) {
	_, e := newTestHandler()
	created := createViaAPI(t, e, `{"name":"a","description":"b"}`)
	path := "/api/v1/cohorts/" + created.UUID

	if rec := do(e, http.MethodPost, path+"/void", `{"reason":"dup"}`, "nurse"); rec.Code != http.StatusForbidden {
		t.Fatalf("nurse void: expected 403, got %d", rec.Code)
	}
	if rec := do(e, http.MethodPost, path+"/void", `{"reason":"dup"}`, "data_manager"); rec.Code != http.StatusOK {
		t.Fatalf("void: expected 200, got %d", rec.Code)
	}

	rec := do(e, http.MethodGet, "/api/v1/cohorts", "", "registrar")
	if !strings.Contains(rec.Body.String(), `"total":0`) {
		t.Errorf("voided cohort must be hidden, got %s", rec.Body.String())
	}
	rec = do(e, http.MethodGet, "/api/v1/cohorts?include_voided=true", "", "registrar")
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("expected voided cohort listed, got %s", rec.Body.String())
	}

	if rec := do(e, http.MethodPost, path+"/unvoid", "", "data_manager"); rec.Code != http.StatusOK {
		t.Fatalf("unvoid: expected 200, got %d", rec.Code)
	}
}

func TestHandler_Purge(t *testing.T) {
	_, e := newTestHandler()
	created := createViaAPI(t, e, `{"name":"a","description":"b"}`)
	path := "/api/v1/cohorts/" + strconv.Itoa(*created.ID)

	if rec := do(e, http.MethodDelete, path, "", "data_manager"); rec.Code != http.StatusForbidden {
		t.Fatalf("data_manager purge: expected 403, got %d", rec.Code)
	}
	if rec := do(e, http.MethodDelete, path, "", auth.SuperuserRole); rec.Code != http.StatusNoContent {
		t.Fatalf("admin purge: expected 204, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, path, "", "registrar"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after purge, got %d", rec.Code)
	}
}

func TestHandler_FHIRGroup(t *testing.T) {
	_, e := newTestHandler()
	created := createViaAPI(t, e, `{"name":"Asthma","description":"d","members":[2]}`)
	createViaAPI(t, e, `{"name":"Diabetes","description":"d"}`)

	rec := do(e, http.MethodGet, "/fhir/Group/"+created.UUID, "", "registrar")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var group map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &group)
	if group["resourceType"] != "Group" || group["id"] != created.UUID {
		t.Errorf("unexpected group %v", group)
	}

	rec = do(e, http.MethodGet, "/fhir/Group?name=asth", "", "registrar")
	var bundle fhir.Bundle
	if err := json.Unmarshal(rec.Body.Bytes(), &bundle); err != nil {
		t.Fatalf("decode bundle: %v", err)
	}
	if bundle.Total == nil || *bundle.Total != 1 || len(bundle.Entry) != 1 {
		t.Errorf("expected one match, got %s", rec.Body.String())
	}

	rec = do(e, http.MethodGet, "/fhir/Group/missing", "", "registrar")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
