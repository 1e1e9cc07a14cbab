package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/backofficehq/backoffice/internal/metrics"
	"github.com/backofficehq/backoffice/internal/models"
)

// purgeBatchSize limits how many audit rows one purge statement removes so
// long-running retention sweeps don't hold large locks.
const purgeBatchSize = 5000

// appendAudit inserts audit entries inside the caller's transaction so the
// trail commits or rolls back together with the mutation it describes.
func appendAudit(ctx context.Context, tx pgx.Tx, entries []models.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}

	var (
		sb   strings.Builder
		args []any
	)

	sb.WriteString("INSERT INTO audit_log (company_id, user_id, action, entity, entity_id, column_name, old_value, new_value) VALUES ")

	for i, e := range entries {
		if i > 0 {
			sb.WriteString(", ")
		}

		base := len(args)
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8)
		args = append(args, e.CompanyID, e.UserID, e.Action, e.Entity, e.EntityID, e.Column, e.OldValue, e.NewValue)
	}

	if _, err := tx.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("appending audit entries: %w", err)
	}

	metrics.AuditEntriesTotal.Add(float64(len(entries)))

	return nil
}

// AuditStore reads and maintains the audit trail.
type AuditStore struct {
	Base
}

// NewAuditStore creates an AuditStore.
func NewAuditStore(base Base) *AuditStore {
	return &AuditStore{Base: base}
}

// Query returns audit entries for a company, newest first, plus a flag
// telling whether more entries exist past the requested page.
func (s *AuditStore) Query(ctx context.Context, companyID int64, opts models.AuditQueryOpts) ([]models.AuditEntry, bool, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	var (
		sb   strings.Builder
		args []any
	)

	sb.WriteString("SELECT id, company_id, user_id, action, entity, entity_id, column_name, old_value, new_value, created_at FROM audit_log WHERE 1=1")

	if opts.Entity != "" {
		args = append(args, opts.Entity)
		fmt.Fprintf(&sb, " AND entity = $%d", len(args))
	}

	if opts.EntityID > 0 {
		args = append(args, opts.EntityID)
		fmt.Fprintf(&sb, " AND entity_id = $%d", len(args))
	}

	if opts.Action != "" {
		args = append(args, opts.Action)
		fmt.Fprintf(&sb, " AND action = $%d", len(args))
	}

	if opts.Since != nil {
		args = append(args, *opts.Since)
		fmt.Fprintf(&sb, " AND created_at >= $%d", len(args))
	}

	// limit+1 probes for a further page without a second count query.
	args = append(args, limit+1, opts.Offset)
	fmt.Fprintf(&sb, " ORDER BY id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx, companyID, false)
	if err != nil {
		return nil, false, fmt.Errorf("querying audit log: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	rows, err := tx.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, false, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	entries := make([]models.AuditEntry, 0, limit)

	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.UserID, &e.Action, &e.Entity, &e.EntityID,
			&e.Column, &e.OldValue, &e.NewValue, &e.CreatedAt); err != nil {
			return nil, false, fmt.Errorf("scanning audit entry: %w", err)
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterating audit entries: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("committing audit query: %w", err)
	}

	hasMore := len(entries) > limit
	if hasMore {
		entries = entries[:limit]
	}

	return entries, hasMore, nil
}

// PurgeOldEntries deletes audit entries older than the cutoff across all
// companies, in batches. Returns the number of rows removed.
func (s *AuditStore) PurgeOldEntries(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	var total int64

	for {
		ctx, cancel := withTimeout(ctx)

		tx, err := s.beginTx(ctx, 0, true)
		if err != nil {
			cancel()

			return total, fmt.Errorf("purging audit log: %w", err)
		}

		tag, err := tx.Exec(ctx,
			`DELETE FROM audit_log WHERE id IN (
				SELECT id FROM audit_log
				WHERE created_at < now() - make_interval(days => $1)
				ORDER BY id
				LIMIT $2
			)`,
			retentionDays, purgeBatchSize,
		)
		if err != nil {
			_ = tx.Rollback(ctx)
			cancel()

			return total, fmt.Errorf("purging audit batch: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			cancel()

			return total, fmt.Errorf("committing audit purge: %w", err)
		}

		cancel()

		total += tag.RowsAffected()
		if tag.RowsAffected() < purgeBatchSize {
			return total, nil
		}
	}
}
