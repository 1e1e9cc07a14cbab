// Package store provides data access for the back-office engine.
//
// The generic record store persists every entity kind in one JSONB-backed
// table; the mutation store wraps it with before/after snapshotting and the
// append-only audit trail. Shared helpers (transaction setup, tenant row
// level security, change notification) live in this file.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/backofficehq/backoffice/internal/dbpool"
	"github.com/backofficehq/backoffice/internal/entity"
)

const defaultQueryTimeout = 30 * time.Second

// Notifier receives committed-mutation events (fan-out to websocket clients).
type Notifier interface {
	Publish(companyID int64, entityName, action string, entityID int64)
}

// Base contains shared dependencies for all stores.
// Embed this in each store struct.
type Base struct {
	Pool     *dbpool.Pool
	Log      *logrus.Logger
	Registry *entity.Registry
	// Events is optional; nil disables change notifications.
	Events Notifier
}

// withTimeout creates a context with the default query timeout.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// setCompany sets the tenant context for RLS policies within a transaction.
// A zero companyID with allScope selects cross-tenant access for
// platform-level entities.
func setCompany(ctx context.Context, tx pgx.Tx, companyID int64, allScope bool) error {
	if allScope {
		if _, err := tx.Exec(ctx, "SELECT set_config('app.company_scope', 'all', true)"); err != nil {
			return fmt.Errorf("setting company scope: %w", err)
		}

		return nil
	}

	if companyID <= 0 {
		return fmt.Errorf("invalid company id %d", companyID)
	}

	_, err := tx.Exec(ctx, "SELECT set_config('app.company_id', $1::text, true)", companyID)
	if err != nil {
		return fmt.Errorf("setting company context: %w", err)
	}

	return nil
}

// beginTx starts a read-write transaction and sets the tenant context.
func (b *Base) beginTx(ctx context.Context, companyID int64, allScope bool) (pgx.Tx, error) {
	tx, err := b.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	if err := setCompany(ctx, tx, companyID, allScope); err != nil {
		tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on setup failure.

		return nil, err
	}

	return tx, nil
}

// beginReadTx starts a read-only transaction and sets the tenant context.
func (b *Base) beginReadTx(ctx context.Context, companyID int64, allScope bool) (pgx.Tx, error) {
	tx, err := b.Pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("beginning read transaction: %w", err)
	}

	if err := setCompany(ctx, tx, companyID, allScope); err != nil {
		tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on setup failure.

		return nil, err
	}

	return tx, nil
}

// publish sends a committed-mutation event when a notifier is configured.
func (b *Base) publish(companyID int64, entityName, action string, entityID int64) {
	if b.Events == nil {
		return
	}

	b.Events.Publish(companyID, entityName, action, entityID)
}
