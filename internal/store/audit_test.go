package store_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/backofficehq/backoffice/internal/models"
	"github.com/backofficehq/backoffice/internal/store"
)

func TestAuditQueryPaging(t *testing.T) {
	base, actor := setupTestBase(t)
	ms := store.NewMutationStore(base)
	as := store.NewAuditStore(base)
	ctx := context.Background()

	for i := range 3 {
		if _, err := ms.Create(ctx, "gadgets", actor, models.Record{
			"name": fmt.Sprintf("Audited %d", i),
		}); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
	}

	entries, hasMore, err := as.Query(ctx, actor.CompanyID, models.AuditQueryOpts{
		Entity: "gadgets",
		Limit:  2,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if !hasMore {
		t.Error("hasMore = false, want true")
	}

	// Newest first.
	if entries[0].ID < entries[1].ID {
		t.Error("entries not in descending id order")
	}

	entries, hasMore, err = as.Query(ctx, actor.CompanyID, models.AuditQueryOpts{
		Entity: "gadgets",
		Action: models.ActionCreate,
		Limit:  10,
	})
	if err != nil {
		t.Fatalf("Query by action: %v", err)
	}
	if len(entries) != 3 || hasMore {
		t.Errorf("action filter returned %d entries, hasMore=%v", len(entries), hasMore)
	}
}

func TestPurgeOldEntries(t *testing.T) {
	base, actor := setupTestBase(t)
	ms := store.NewMutationStore(base)
	as := store.NewAuditStore(base)
	ctx := context.Background()

	old, err := ms.Create(ctx, "gadgets", actor, models.Record{"name": "Old"})
	if err != nil {
		t.Fatalf("Create old: %v", err)
	}

	// Backdate the first record's trail past the retention window.
	env := getTestEnv(t)

	tx, err := env.pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin backdate tx: %v", err)
	}
	if _, err := tx.Exec(ctx, "SELECT set_config('app.company_scope', 'all', true)"); err != nil {
		t.Fatalf("set scope: %v", err)
	}
	if _, err := tx.Exec(ctx,
		"UPDATE audit_log SET created_at = now() - INTERVAL '400 days' WHERE company_id = $1 AND entity_id = $2",
		actor.CompanyID, old.ID()); err != nil {
		t.Fatalf("backdating audit entry: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit backdate: %v", err)
	}

	fresh, err := ms.Create(ctx, "gadgets", actor, models.Record{"name": "Fresh"})
	if err != nil {
		t.Fatalf("Create fresh: %v", err)
	}

	if _, err := as.PurgeOldEntries(ctx, 365); err != nil {
		t.Fatalf("PurgeOldEntries: %v", err)
	}

	entries, _, err := as.Query(ctx, actor.CompanyID, models.AuditQueryOpts{Entity: "gadgets", Limit: 10})
	if err != nil {
		t.Fatalf("Query after purge: %v", err)
	}

	for _, e := range entries {
		if e.EntityID == old.ID() {
			t.Error("backdated entry survived the purge")
		}
	}

	var sawFresh bool
	for _, e := range entries {
		if e.EntityID == fresh.ID() {
			sawFresh = true
		}
	}
	if !sawFresh {
		t.Error("recent entry was purged")
	}
}

func TestPurgeDisabledRetention(t *testing.T) {
	base, _ := setupTestBase(t)
	as := store.NewAuditStore(base)

	n, err := as.PurgeOldEntries(context.Background(), 0)
	if err != nil {
		t.Fatalf("PurgeOldEntries: %v", err)
	}
	if n != 0 {
		t.Errorf("purged %d rows with retention disabled", n)
	}
}
