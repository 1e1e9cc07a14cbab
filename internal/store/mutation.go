package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/backofficehq/backoffice/internal/diff"
	"github.com/backofficehq/backoffice/internal/entity"
	"github.com/backofficehq/backoffice/internal/metrics"
	"github.com/backofficehq/backoffice/internal/models"
)

// uniqueViolation is the Postgres error code for unique constraint failures.
const uniqueViolation = "23505"

// MutationStore performs all writes. Every mutation runs in one transaction
// together with its audit entries: a failed audit append rolls the data
// change back, so the trail can never lag the data.
type MutationStore struct {
	Base
}

// NewMutationStore creates a MutationStore.
func NewMutationStore(base Base) *MutationStore {
	return &MutationStore{Base: base}
}

// Create inserts a new record and audits the full payload.
func (s *MutationStore) Create(
	ctx context.Context, kind entity.Kind, actor models.Actor, rec models.Record,
) (models.Record, error) {
	cfg, err := s.Registry.Get(kind)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx, actor.CompanyID, cfg.NoCompanyScope)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", kind, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	created, err := s.createTx(ctx, tx, cfg, actor, rec)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing create: %w", err)
	}

	s.afterCommit(actor.CompanyID, string(kind), models.ActionCreate, created.ID())

	return created, nil
}

// Update merges a partial payload into an existing record. Changed fields
// are derived by diffing the pre-image against the merged result; each one
// becomes its own audit entry. A merge that changes nothing writes no audit
// entries.
func (s *MutationStore) Update(
	ctx context.Context, kind entity.Kind, actor models.Actor, id int64, patch models.Record,
) (models.Record, error) {
	cfg, err := s.Registry.Get(kind)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx, actor.CompanyID, cfg.NoCompanyScope)
	if err != nil {
		return nil, fmt.Errorf("updating %s: %w", kind, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	updated, err := s.updateTx(ctx, tx, cfg, actor, id, patch)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing update: %w", err)
	}

	s.afterCommit(actor.CompanyID, string(kind), models.ActionUpdate, id)

	return updated, nil
}

// ChangeStatus flips a record's active markers: activation clears them,
// deactivation stamps them. Runs through the regular update path so the
// flip is audited field by field.
func (s *MutationStore) ChangeStatus(
	ctx context.Context, kind entity.Kind, actor models.Actor, id int64, active bool,
) (models.Record, error) {
	cfg, err := s.Registry.Get(kind)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx, actor.CompanyID, cfg.NoCompanyScope)
	if err != nil {
		return nil, fmt.Errorf("changing %s status: %w", kind, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	updated, err := s.updateTx(ctx, tx, cfg, actor, id, statusPatch(active, time.Now().UTC()))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing status change: %w", err)
	}

	s.afterCommit(actor.CompanyID, string(kind), models.ActionUpdate, id)

	return updated, nil
}

// Delete removes a record. The default is a soft delete: inactiveAt and any
// further markers the record's shape carries are stamped and the row stays.
// hard forces a real DELETE, auditing the full pre-image.
func (s *MutationStore) Delete(
	ctx context.Context, kind entity.Kind, actor models.Actor, id int64, hard bool,
) error {
	cfg, err := s.Registry.Get(kind)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx, actor.CompanyID, cfg.NoCompanyScope)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", kind, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	old, err := findRecordTx(ctx, tx, string(kind), id)
	if err != nil {
		return err
	}

	action := models.ActionSoftDelete
	if hard {
		action = models.ActionDelete

		if err := s.hardDeleteTx(ctx, tx, cfg, actor, old); err != nil {
			return err
		}
	} else {
		patch := old.SoftDeletePatch(time.Now().UTC())
		if err := s.softDeleteTx(ctx, tx, cfg, actor, old, patch); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}

	s.afterCommit(actor.CompanyID, string(kind), action, id)

	return nil
}

// Upsert updates the record matching the given filters, or creates one when
// no match exists. Match resolution, the write, and the audit trail share
// one transaction so concurrent upserts cannot double-create.
func (s *MutationStore) Upsert(
	ctx context.Context, kind entity.Kind, actor models.Actor, match []models.Filter, rec models.Record,
) (models.Record, bool, error) {
	cfg, err := s.Registry.Get(kind)
	if err != nil {
		return nil, false, err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx, actor.CompanyID, cfg.NoCompanyScope)
	if err != nil {
		return nil, false, fmt.Errorf("upserting %s: %w", kind, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	where, args, err := buildWhere(match, []any{string(kind)})
	if err != nil {
		return nil, false, err
	}

	var existingID int64

	row := tx.QueryRow(ctx,
		"SELECT id FROM records WHERE entity = $1"+where+" ORDER BY id LIMIT 1 FOR UPDATE", args...)
	switch err := row.Scan(&existingID); {
	case errors.Is(err, pgx.ErrNoRows):
		created, err := s.createTx(ctx, tx, cfg, actor, rec)
		if err != nil {
			return nil, false, err
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, false, fmt.Errorf("committing upsert: %w", err)
		}

		s.afterCommit(actor.CompanyID, string(kind), models.ActionCreate, created.ID())

		return created, true, nil
	case err != nil:
		return nil, false, fmt.Errorf("matching upsert target: %w", err)
	}

	updated, err := s.updateTx(ctx, tx, cfg, actor, existingID, rec)
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("committing upsert: %w", err)
	}

	s.afterCommit(actor.CompanyID, string(kind), models.ActionUpdate, existingID)

	return updated, false, nil
}

// createTx inserts the record and its create audit entry.
func (s *MutationStore) createTx(
	ctx context.Context, tx pgx.Tx, cfg *entity.Config, actor models.Actor, rec models.Record,
) (models.Record, error) {
	doc, err := docJSON(rec)
	if err != nil {
		return nil, err
	}

	companyID := rec.Int64(models.FieldCompanyID)
	if companyID == 0 {
		companyID = actor.CompanyID
	}

	row := tx.QueryRow(ctx,
		"INSERT INTO records (company_id, entity, doc) VALUES ($1, $2, $3) RETURNING "+recordColumns,
		companyID, cfg.Kind, doc,
	)

	created, err := scanRecord(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("inserting %s: %w", cfg.Kind, translateDBErr(err))
	}

	payload := string(doc)
	entry := models.AuditEntry{
		CompanyID: companyID,
		UserID:    actor.UserID,
		Action:    models.ActionCreate,
		Entity:    string(cfg.Kind),
		EntityID:  created.ID(),
		NewValue:  &payload,
	}

	if err := appendAudit(ctx, tx, []models.AuditEntry{entry}); err != nil {
		return nil, err
	}

	return created, nil
}

// updateTx merges the patch into the stored doc, persists the result, and
// audits each changed field as its own update entry.
func (s *MutationStore) updateTx(
	ctx context.Context, tx pgx.Tx, cfg *entity.Config, actor models.Actor, id int64,
	patch models.Record,
) (models.Record, error) {
	old, err := findRecordTx(ctx, tx, string(cfg.Kind), id)
	if err != nil {
		return nil, err
	}

	merged := old.Clone()
	for k, v := range patch {
		if _, reserved := columnFields[k]; reserved {
			continue
		}

		merged[k] = v
	}

	changes := diff.Diff(old, merged)

	doc, err := docJSON(merged)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx,
		"UPDATE records SET doc = $1, updated_at = now() WHERE entity = $2 AND id = $3 RETURNING "+recordColumns,
		doc, cfg.Kind, id,
	)

	updated, err := scanRecord(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrRecordNotFound
		}

		return nil, fmt.Errorf("updating %s: %w", cfg.Kind, translateDBErr(err))
	}

	if len(changes) == 0 {
		return updated, nil
	}

	entries := make([]models.AuditEntry, 0, len(changes))

	for _, c := range changes {
		col := c.Column
		oldVal := string(c.OldValue)
		newVal := string(c.NewValue)

		entries = append(entries, models.AuditEntry{
			CompanyID: old.Int64(models.FieldCompanyID),
			UserID:    actor.UserID,
			Action:    models.ActionUpdate,
			Entity:    string(cfg.Kind),
			EntityID:  id,
			Column:    &col,
			OldValue:  &oldVal,
			NewValue:  &newVal,
		})
	}

	if err := appendAudit(ctx, tx, entries); err != nil {
		return nil, err
	}

	return updated, nil
}

// softDeleteTx stamps the record's soft-delete markers and appends a single
// soft_delete audit entry. The entry's column is always inactiveAt, whatever
// markers the shape carries; the old and new marker values travel as JSON
// objects.
func (s *MutationStore) softDeleteTx(
	ctx context.Context, tx pgx.Tx, cfg *entity.Config, actor models.Actor, old, patch models.Record,
) error {
	merged := old.Clone()
	for k, v := range patch {
		merged[k] = v
	}

	doc, err := docJSON(merged)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx,
		"UPDATE records SET doc = $1, updated_at = now() WHERE entity = $2 AND id = $3",
		doc, cfg.Kind, old.ID(),
	)
	if err != nil {
		return fmt.Errorf("soft-deleting %s: %w", cfg.Kind, err)
	}

	if tag.RowsAffected() == 0 {
		return models.ErrRecordNotFound
	}

	oldMarkers := models.Record{}
	newMarkers := models.Record{}

	for k := range patch {
		oldMarkers[k] = old[k]
		newMarkers[k] = merged[k]
	}

	oldJSON, err := json.Marshal(oldMarkers)
	if err != nil {
		return fmt.Errorf("encoding soft-delete markers: %w", err)
	}

	newJSON, err := json.Marshal(newMarkers)
	if err != nil {
		return fmt.Errorf("encoding soft-delete markers: %w", err)
	}

	col := models.FieldInactiveAt
	oldVal := string(oldJSON)
	newVal := string(newJSON)
	entry := models.AuditEntry{
		CompanyID: old.Int64(models.FieldCompanyID),
		UserID:    actor.UserID,
		Action:    models.ActionSoftDelete,
		Entity:    string(cfg.Kind),
		EntityID:  old.ID(),
		Column:    &col,
		OldValue:  &oldVal,
		NewValue:  &newVal,
	}

	return appendAudit(ctx, tx, []models.AuditEntry{entry})
}

// hardDeleteTx removes the row and audits the full pre-image.
func (s *MutationStore) hardDeleteTx(
	ctx context.Context, tx pgx.Tx, cfg *entity.Config, actor models.Actor, old models.Record,
) error {
	tag, err := tx.Exec(ctx,
		"DELETE FROM records WHERE entity = $1 AND id = $2", cfg.Kind, old.ID())
	if err != nil {
		return fmt.Errorf("deleting %s: %w", cfg.Kind, err)
	}

	if tag.RowsAffected() == 0 {
		return models.ErrRecordNotFound
	}

	doc, err := docJSON(old)
	if err != nil {
		return err
	}

	payload := string(doc)
	entry := models.AuditEntry{
		CompanyID: old.Int64(models.FieldCompanyID),
		UserID:    actor.UserID,
		Action:    models.ActionDelete,
		Entity:    string(cfg.Kind),
		EntityID:  old.ID(),
		OldValue:  &payload,
	}

	return appendAudit(ctx, tx, []models.AuditEntry{entry})
}

// afterCommit emits the mutation metric, the audit log line, and the change
// notification once the transaction is durable.
func (s *MutationStore) afterCommit(companyID int64, entityName, action string, entityID int64) {
	metrics.MutationsTotal.WithLabelValues(entityName, action).Inc()

	s.Log.WithFields(logrus.Fields{
		"company_id": companyID,
		"entity":     entityName,
		"entity_id":  entityID,
		"action":     action,
	}).Info("mutation committed")

	s.publish(companyID, entityName, action, entityID)
}

// statusPatch builds the marker updates for an activate/deactivate flip.
// Both markers are written regardless of the record's current shape: the doc
// is schemaless, and a flip must always be observable on the result.
func statusPatch(active bool, now time.Time) models.Record {
	patch := models.Record{models.FieldActive: active}

	if active {
		patch[models.FieldInactiveAt] = nil
	} else {
		patch[models.FieldInactiveAt] = now
	}

	return patch
}

// translateDBErr maps driver-level errors onto the model sentinels.
func translateDBErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return models.ErrDuplicateKey
	}

	return err
}
