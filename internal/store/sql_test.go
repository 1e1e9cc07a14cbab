package store

import (
	"strings"
	"testing"
	"time"

	"github.com/backofficehq/backoffice/internal/entity"
	"github.com/backofficehq/backoffice/internal/models"
)

func TestBuildWhereColumnEquality(t *testing.T) {
	where, args, err := buildWhere([]models.Filter{
		{Field: models.FieldCompanyID, Op: models.OpEq, Value: int64(7)},
	}, []any{"users"})
	if err != nil {
		t.Fatalf("buildWhere: %v", err)
	}

	if where != " AND company_id = $2" {
		t.Errorf("where = %q", where)
	}
	if len(args) != 2 || args[1] != int64(7) {
		t.Errorf("args = %v", args)
	}
}

func TestBuildWhereDocEqualityUsesContainment(t *testing.T) {
	where, args, err := buildWhere([]models.Filter{
		{Field: "courseId", Op: models.OpEq, Value: int64(42)},
	}, nil)
	if err != nil {
		t.Fatalf("buildWhere: %v", err)
	}

	if !strings.Contains(where, "doc @> $1::jsonb") {
		t.Errorf("where = %q, want containment clause", where)
	}
	if args[0] != `{"courseId":42}` {
		t.Errorf("probe = %v", args[0])
	}
}

func TestBuildWhereContains(t *testing.T) {
	where, _, err := buildWhere([]models.Filter{
		{Field: "name", Op: models.OpContains, Value: "ana"},
	}, nil)
	if err != nil {
		t.Fatalf("buildWhere: %v", err)
	}

	if !strings.Contains(where, "doc->>'name' ILIKE '%' || $1 || '%'") {
		t.Errorf("where = %q", where)
	}
}

func TestBuildWhereDateClauses(t *testing.T) {
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	where, _, err := buildWhere([]models.Filter{
		{Field: models.FieldCreatedAt, Op: models.OpDateEq, Value: day},
	}, nil)
	if err != nil {
		t.Fatalf("buildWhere date eq: %v", err)
	}
	if !strings.Contains(where, "created_at::date = $1::date") {
		t.Errorf("where = %q", where)
	}

	where, args, err := buildWhere([]models.Filter{
		{Field: models.FieldCreatedAt, Op: models.OpDateBetween, Value: day, Value2: day.AddDate(0, 0, 7)},
	}, nil)
	if err != nil {
		t.Fatalf("buildWhere date between: %v", err)
	}
	if !strings.Contains(where, "created_at >= $1 AND created_at <= $2") {
		t.Errorf("where = %q", where)
	}
	if len(args) != 2 {
		t.Errorf("args = %v", args)
	}

	if _, _, err := buildWhere([]models.Filter{
		{Field: "name", Op: models.OpDateEq, Value: day},
	}, nil); err == nil {
		t.Error("date filter on doc field did not fail")
	}
}

func TestBuildWhereRejectsUnsafeFieldNames(t *testing.T) {
	for _, field := range []string{"name'; DROP TABLE records; --", "a b", "1st", ""} {
		if _, _, err := buildWhere([]models.Filter{
			{Field: field, Op: models.OpContains, Value: "x"},
		}, nil); err == nil {
			t.Errorf("field %q accepted", field)
		}
	}
}

func TestBuildOrder(t *testing.T) {
	order, err := buildOrder(nil)
	if err != nil {
		t.Fatalf("buildOrder default: %v", err)
	}
	if order != " ORDER BY id DESC" {
		t.Errorf("default order = %q", order)
	}

	order, err = buildOrder([]models.Sort{
		{Field: "name", Dir: "asc"},
		{Field: models.FieldCreatedAt, Dir: "desc"},
	})
	if err != nil {
		t.Fatalf("buildOrder: %v", err)
	}
	if order != " ORDER BY doc->>'name' ASC, created_at DESC" {
		t.Errorf("order = %q", order)
	}

	if _, err := buildOrder([]models.Sort{{Field: "name", Dir: "sideways"}}); err == nil {
		t.Error("invalid direction accepted")
	}
}

func TestDocJSONStripsColumnFields(t *testing.T) {
	rec := models.Record{
		models.FieldID:        int64(3),
		models.FieldCompanyID: int64(1),
		models.FieldCreatedAt: time.Now(),
		models.FieldUpdatedAt: time.Now(),
		"name":                "Ana",
	}

	doc, err := docJSON(rec)
	if err != nil {
		t.Fatalf("docJSON: %v", err)
	}

	if string(doc) != `{"name":"Ana"}` {
		t.Errorf("doc = %s", doc)
	}

	// Input must not be mutated.
	if rec.ID() != 3 {
		t.Error("docJSON mutated its input")
	}
}

func TestAttachRelationMany(t *testing.T) {
	parents := []models.Record{
		{models.FieldID: int64(1), "name": "Algebra"},
		{models.FieldID: int64(2), "name": "Geometry"},
	}
	children := []models.Record{
		{models.FieldID: int64(10), "courseId": int64(1)},
		{models.FieldID: int64(11), "courseId": int64(1)},
	}

	rel := entity.Relation{Name: "classes", Kind: "classes", ForeignKey: "courseId", Many: true}
	attachRelation(parents, rel, children)

	got, ok := parents[0]["classes"].([]models.Record)
	if !ok || len(got) != 2 {
		t.Errorf("parent 1 classes = %v, want 2 children", parents[0]["classes"])
	}

	// Parents without children get an empty list, not nil.
	empty, ok := parents[1]["classes"].([]models.Record)
	if !ok || empty == nil || len(empty) != 0 {
		t.Errorf("parent 2 classes = %v, want empty list", parents[1]["classes"])
	}
}

func TestAttachRelationOne(t *testing.T) {
	classes := []models.Record{
		{models.FieldID: int64(20), "courseId": int64(5)},
		{models.FieldID: int64(21), "courseId": int64(99)},
	}
	courses := []models.Record{
		{models.FieldID: int64(5), "name": "Math"},
	}

	rel := entity.Relation{Name: "course", Kind: "courses", LocalKey: "courseId"}
	attachRelation(classes, rel, courses)

	course, ok := classes[0]["course"].(models.Record)
	if !ok || course.ID() != 5 {
		t.Errorf("class 20 course = %v, want course 5", classes[0]["course"])
	}

	if _, present := classes[1]["course"]; present {
		t.Error("class with dangling courseId got a course attached")
	}
}

func TestStatusPatch(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// Both markers are written whatever the record's shape looked like
	// before, so a deactivate is always observable.
	patch := statusPatch(false, now)
	if patch[models.FieldActive] != false {
		t.Errorf("active = %v", patch[models.FieldActive])
	}
	if patch[models.FieldInactiveAt] != now {
		t.Errorf("inactiveAt = %v", patch[models.FieldInactiveAt])
	}

	patch = statusPatch(true, now)
	if patch[models.FieldActive] != true {
		t.Errorf("active = %v", patch[models.FieldActive])
	}
	if patch[models.FieldInactiveAt] != nil {
		t.Errorf("inactiveAt = %v", patch[models.FieldInactiveAt])
	}
}

func TestSoftDeletePatchAlwaysStampsInactiveAt(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// A record carrying none of the markers still gets inactiveAt.
	patch := models.Record{"name": "Foo"}.SoftDeletePatch(now)
	if patch[models.FieldInactiveAt] != now {
		t.Errorf("inactiveAt = %v, want %v", patch[models.FieldInactiveAt], now)
	}
	if len(patch) != 1 {
		t.Errorf("patch = %v, want inactiveAt only", patch)
	}

	// Markers present on the shape are written alongside it.
	shaped := models.Record{"name": "Foo", models.FieldActive: true, models.FieldDeletedAt: nil}

	patch = shaped.SoftDeletePatch(now)
	if patch[models.FieldInactiveAt] != now || patch[models.FieldActive] != false || patch[models.FieldDeletedAt] != now {
		t.Errorf("patch = %v", patch)
	}
}
