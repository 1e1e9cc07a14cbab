package diff_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backofficehq/backoffice/internal/diff"
	"github.com/backofficehq/backoffice/internal/models"
)

func TestDiff_IdenticalRecords(t *testing.T) {
	t.Parallel()

	rec := models.Record{"name": "Foo", "price": 12.5, "active": true}

	assert.Empty(t, diff.Diff(rec, rec))
}

func TestDiff_SingleChangedField(t *testing.T) {
	t.Parallel()

	old := models.Record{"x": 1, "y": 2}
	updated := models.Record{"x": 1, "y": 3}

	changes := diff.Diff(old, updated)

	require.Len(t, changes, 1)
	assert.Equal(t, "y", changes[0].Column)
	assert.JSONEq(t, "2", string(changes[0].OldValue))
	assert.JSONEq(t, "3", string(changes[0].NewValue))
}

func TestDiff_DefaultIgnoreSet(t *testing.T) {
	t.Parallel()

	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	old := models.Record{"id": 1, "createdAt": t1, "x": 1}
	updated := models.Record{"id": 2, "createdAt": t2, "x": 1}

	assert.Empty(t, diff.Diff(old, updated))
}

func TestDiff_CustomIgnoreSet(t *testing.T) {
	t.Parallel()

	old := models.Record{"id": 1, "x": 1}
	updated := models.Record{"id": 2, "x": 2}

	changes := diff.Diff(old, updated, "x")

	// With only "x" ignored, the id change is reported.
	require.Len(t, changes, 1)
	assert.Equal(t, "id", changes[0].Column)
}

func TestDiff_EmptySideYieldsNothing(t *testing.T) {
	t.Parallel()

	rec := models.Record{"x": 1}

	assert.Empty(t, diff.Diff(nil, rec))
	assert.Empty(t, diff.Diff(rec, nil))
	assert.Empty(t, diff.Diff(models.Record{}, rec))
}

func TestDiff_NewOnlyKeysNotReported(t *testing.T) {
	t.Parallel()

	old := models.Record{"x": 1}
	updated := models.Record{"x": 1, "extra": "new"}

	assert.Empty(t, diff.Diff(old, updated))
}

func TestDiff_NumericStringLeniency(t *testing.T) {
	t.Parallel()

	old := models.Record{"qty": 5}
	updated := models.Record{"qty": "5"}

	assert.Empty(t, diff.Diff(old, updated), "number vs digit-string of same value must not diff")

	updated["qty"] = "5a"
	changes := diff.Diff(old, updated)
	require.Len(t, changes, 1)
	assert.Equal(t, "qty", changes[0].Column)
}

func TestDiff_StructuralValuesNotCollapsed(t *testing.T) {
	t.Parallel()

	old := models.Record{"meta": map[string]any{"a": 1}}
	updated := models.Record{"meta": map[string]any{"a": 2}}

	changes := diff.Diff(old, updated)

	require.Len(t, changes, 1)
	assert.Equal(t, "meta", changes[0].Column)
}

func TestDiff_SortedOutputOrder(t *testing.T) {
	t.Parallel()

	old := models.Record{"zeta": 1, "alpha": 1, "mid": 1}
	updated := models.Record{"zeta": 2, "alpha": 2, "mid": 2}

	changes := diff.Diff(old, updated)

	require.Len(t, changes, 3)
	assert.Equal(t, "alpha", changes[0].Column)
	assert.Equal(t, "mid", changes[1].Column)
	assert.Equal(t, "zeta", changes[2].Column)
}
