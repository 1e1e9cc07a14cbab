package store_test

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/backofficehq/backoffice/internal/db"
	"github.com/backofficehq/backoffice/internal/db/migrations"
	"github.com/backofficehq/backoffice/internal/dbpool"
	"github.com/backofficehq/backoffice/internal/entity"
	"github.com/backofficehq/backoffice/internal/models"
	"github.com/backofficehq/backoffice/internal/store"
)

// testEnv holds shared test infrastructure (single pool across all tests).
type testEnv struct {
	pool *dbpool.Pool
	log  *logrus.Logger
}

var (
	sharedEnv  *testEnv
	companySeq atomic.Int64
)

func getTestEnv(t *testing.T) *testEnv {
	t.Helper()

	if sharedEnv != nil {
		return sharedEnv
	}

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()

	pool, err := dbpool.NewPool(ctx, dbURL)
	if err != nil {
		t.Fatalf("connecting to test DB: %v", err)
	}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	companySeq.Store(time.Now().UnixNano())

	sharedEnv = &testEnv{pool: pool, log: log}

	return sharedEnv
}

// testRegistry configures the entities the store tests exercise: widgets
// carry soft-delete markers, a unique name, and a many-relation; gadgets
// carry no markers so deletes fall through to hard deletes.
func testRegistry(t *testing.T) *entity.Registry {
	t.Helper()

	reg := entity.NewRegistry()

	configs := []entity.Config{
		{
			Kind:          "widgets",
			DisplayName:   "Widget",
			Route:         "widgets",
			PermissionKey: "widgets",
			UniqueFields:  []string{"name"},
			Relations: map[string]entity.Relation{
				"parts": {Name: "parts", Kind: "parts", ForeignKey: "widgetId", Many: true},
			},
		},
		{
			Kind:          "parts",
			DisplayName:   "Part",
			Route:         "parts",
			PermissionKey: "parts",
			Relations: map[string]entity.Relation{
				"widget": {Name: "widget", Kind: "widgets", LocalKey: "widgetId"},
			},
		},
		{
			Kind:          "gadgets",
			DisplayName:   "Gadget",
			Route:         "gadgets",
			PermissionKey: "gadgets",
		},
	}

	for _, cfg := range configs {
		if err := reg.Register(cfg); err != nil {
			t.Fatalf("registering %s: %v", cfg.Kind, err)
		}
	}

	return reg
}

// setupTestBase creates a Base bound to a fresh company id, with its rows
// cleaned up after the test.
func setupTestBase(t *testing.T) (store.Base, models.Actor) {
	t.Helper()

	env := getTestEnv(t)
	companyID := companySeq.Add(1)

	t.Cleanup(func() {
		ctx := context.Background()

		tx, err := env.pool.Begin(ctx)
		if err != nil {
			return
		}
		defer tx.Rollback(ctx) //nolint:errcheck // best-effort cleanup

		// Cleanup crosses RLS, so take platform scope for the delete.
		if _, err := tx.Exec(ctx, "SELECT set_config('app.company_scope', 'all', true)"); err != nil {
			return
		}

		tx.Exec(ctx, "DELETE FROM audit_log WHERE company_id = $1", companyID) //nolint:errcheck // best-effort cleanup
		tx.Exec(ctx, "DELETE FROM records WHERE company_id = $1", companyID)   //nolint:errcheck // best-effort cleanup
		tx.Commit(ctx)                                                         //nolint:errcheck // best-effort cleanup
	})

	base := store.Base{Pool: env.pool, Log: env.log, Registry: testRegistry(t)}
	actor := models.Actor{UserID: 9001, CompanyID: companyID, Name: "test-actor"}

	return base, actor
}

// auditEntriesFor fetches the full trail for one record, oldest first.
func auditEntriesFor(t *testing.T, base store.Base, actor models.Actor, kind string, id int64) []models.AuditEntry {
	t.Helper()

	as := store.NewAuditStore(base)

	entries, _, err := as.Query(context.Background(), actor.CompanyID, models.AuditQueryOpts{
		Entity:   kind,
		EntityID: id,
		Limit:    1000,
	})
	if err != nil {
		t.Fatalf("querying audit trail: %v", err)
	}

	// Query returns newest first; reverse for chronological assertions.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	return entries
}
