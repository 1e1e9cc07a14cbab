package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/backofficehq/backoffice/internal/api"
	"github.com/backofficehq/backoffice/internal/entity"
	"github.com/backofficehq/backoffice/internal/models"
)

var coursesCfg = &entity.Config{
	Kind:          "courses",
	DisplayName:   "Course",
	Route:         "courses",
	PermissionKey: "courses",
}

// writer has read+write on courses; reader only read.
var (
	writerActor = models.Actor{UserID: 1, CompanyID: 10, Name: "writer", Permissions: []string{"courses:read", "courses:write"}}
	readerActor = models.Actor{UserID: 2, CompanyID: 10, Name: "reader", Permissions: []string{"courses:read"}}
)

func mountCourses(r *gin.Engine, svc api.GenericService) {
	h := api.NewGenericHandler(svc, testLogger())

	g := r.Group("/courses")
	g.GET("", h.List(coursesCfg))
	g.POST("", h.Create(coursesCfg))
	g.POST("/upsert", h.Upsert(coursesCfg))
	g.GET("/:id", h.Get(coursesCfg))
	g.PUT("/:id", h.Update(coursesCfg))
	g.PATCH("/active/:id", h.ChangeStatus(coursesCfg, true))
	g.PATCH("/inactive/:id", h.ChangeStatus(coursesCfg, false))
	g.DELETE("/:id", h.Delete(coursesCfg))
}

func TestListPassesRawQuery(t *testing.T) {
	var gotQuery string

	svc := &mockGeneric{
		listFn: func(_ context.Context, _ entity.Kind, _ models.Actor, rawQuery string) (models.ListResult, error) {
			gotQuery = rawQuery

			return models.ListResult{Total: 1, Rows: []models.Record{{"id": 1, "name": "Maths"}}}, nil
		},
	}

	r := newTestRouter(readerActor)
	mountCourses(r, svc)

	w := doRequest(r, http.MethodGet, "/courses?page=2&limit=5&name=ma", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotQuery != "page=2&limit=5&name=ma" {
		t.Errorf("rawQuery = %q", gotQuery)
	}

	var resp models.ListResult
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Total != 1 || len(resp.Rows) != 1 {
		t.Errorf("result = %+v", resp)
	}
}

func TestWritesRequireWritePermission(t *testing.T) {
	svc := &mockGeneric{
		createFn: func(_ context.Context, _ entity.Kind, _ models.Actor, rec models.Record) (models.Record, error) {
			return rec, nil
		},
		deleteFn: func(_ context.Context, _ entity.Kind, _ models.Actor, _ int64, _ bool) error {
			return nil
		},
	}

	r := newTestRouter(readerActor)
	mountCourses(r, svc)

	if w := doRequest(r, http.MethodPost, "/courses", `{"name":"x"}`); w.Code != http.StatusForbidden {
		t.Errorf("create status = %d, want 403", w.Code)
	}
	if w := doRequest(r, http.MethodDelete, "/courses/1", ""); w.Code != http.StatusForbidden {
		t.Errorf("delete status = %d, want 403", w.Code)
	}

	// Reads still work.
	svc.listFn = func(_ context.Context, _ entity.Kind, _ models.Actor, _ string) (models.ListResult, error) {
		return models.ListResult{Rows: []models.Record{}}, nil
	}
	if w := doRequest(r, http.MethodGet, "/courses", ""); w.Code != http.StatusOK {
		t.Errorf("list status = %d, want 200", w.Code)
	}
}

func TestWildcardPermission(t *testing.T) {
	admin := models.Actor{UserID: 3, CompanyID: 10, Permissions: []string{"*"}}

	svc := &mockGeneric{
		createFn: func(_ context.Context, _ entity.Kind, _ models.Actor, rec models.Record) (models.Record, error) {
			rec["id"] = int64(7)

			return rec, nil
		},
	}

	r := newTestRouter(admin)
	mountCourses(r, svc)

	if w := doRequest(r, http.MethodPost, "/courses", `{"name":"x"}`); w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}
}

func TestCreateStatusCodes(t *testing.T) {
	svc := &mockGeneric{
		createFn: func(_ context.Context, _ entity.Kind, _ models.Actor, _ models.Record) (models.Record, error) {
			return nil, &models.ConflictError{Entity: "Course", Field: "name"}
		},
	}

	r := newTestRouter(writerActor)
	mountCourses(r, svc)

	w := doRequest(r, http.MethodPost, "/courses", `{"name":"dup"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}

	svc.createFn = func(_ context.Context, _ entity.Kind, _ models.Actor, _ models.Record) (models.Record, error) {
		return nil, models.ErrMissingField("name")
	}
	if w := doRequest(r, http.MethodPost, "/courses", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}

	if w := doRequest(r, http.MethodPost, "/courses", `not json`); w.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", w.Code)
	}
}

func TestGetNotFound(t *testing.T) {
	svc := &mockGeneric{
		getFn: func(_ context.Context, _ entity.Kind, _ models.Actor, _ int64) (models.Record, error) {
			return nil, models.ErrRecordNotFound
		},
	}

	r := newTestRouter(readerActor)
	mountCourses(r, svc)

	if w := doRequest(r, http.MethodGet, "/courses/99", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}

	if w := doRequest(r, http.MethodGet, "/courses/abc", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", w.Code)
	}
}

func TestChangeStatusRoutes(t *testing.T) {
	var gotActive *bool

	svc := &mockGeneric{
		changeStatusFn: func(_ context.Context, _ entity.Kind, _ models.Actor, _ int64, active bool) (models.Record, error) {
			gotActive = &active

			return models.Record{"id": 1, "active": active}, nil
		},
	}

	r := newTestRouter(writerActor)
	mountCourses(r, svc)

	if w := doRequest(r, http.MethodPatch, "/courses/inactive/1", ""); w.Code != http.StatusOK {
		t.Fatalf("deactivate status = %d", w.Code)
	}
	if gotActive == nil || *gotActive {
		t.Error("deactivate did not pass active=false")
	}

	if w := doRequest(r, http.MethodPatch, "/courses/active/1", ""); w.Code != http.StatusOK {
		t.Fatalf("activate status = %d", w.Code)
	}
	if gotActive == nil || !*gotActive {
		t.Error("activate did not pass active=true")
	}
}

func TestDeleteHardFlag(t *testing.T) {
	var gotHard bool

	svc := &mockGeneric{
		deleteFn: func(_ context.Context, _ entity.Kind, _ models.Actor, _ int64, hard bool) error {
			gotHard = hard

			return nil
		},
	}

	r := newTestRouter(writerActor)
	mountCourses(r, svc)

	w := doRequest(r, http.MethodDelete, "/courses/1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("soft delete status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"deleted":true`) {
		t.Errorf("delete body = %s, want deleted:true", w.Body.String())
	}
	if gotHard {
		t.Error("default delete was hard")
	}

	if w := doRequest(r, http.MethodDelete, "/courses/1?hard=true", ""); w.Code != http.StatusOK {
		t.Fatalf("hard delete status = %d, want 200", w.Code)
	}
	if !gotHard {
		t.Error("hard=true not passed through")
	}
}

func TestUpsertReturnsRecord(t *testing.T) {
	created := true

	svc := &mockGeneric{
		upsertFn: func(_ context.Context, _ entity.Kind, _ models.Actor, rec models.Record) (models.Record, bool, error) {
			return rec, created, nil
		},
	}

	r := newTestRouter(writerActor)
	mountCourses(r, svc)

	// Create-or-update both answer 200 with the resulting record.
	if w := doRequest(r, http.MethodPost, "/courses/upsert", `{"name":"x"}`); w.Code != http.StatusOK {
		t.Errorf("created upsert status = %d, want 200", w.Code)
	}

	created = false

	w := doRequest(r, http.MethodPost, "/courses/upsert", `{"name":"x"}`)
	if w.Code != http.StatusOK {
		t.Errorf("updated upsert status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"name":"x"`) {
		t.Errorf("upsert body = %s, want record echoed", w.Body.String())
	}
}
