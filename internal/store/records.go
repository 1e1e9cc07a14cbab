package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/backofficehq/backoffice/internal/entity"
	"github.com/backofficehq/backoffice/internal/models"
)

// recordColumns lists the columns selected for record queries.
const recordColumns = "id, company_id, doc, created_at, updated_at"

// includeFetchParallelism caps concurrent relation sub-fetches per list call.
const includeFetchParallelism = 4

// RecordStore is the generic data-access layer: every entity kind resolves
// through the registry to rows of the records table.
type RecordStore struct {
	Base
}

// NewRecordStore creates a RecordStore.
func NewRecordStore(base Base) *RecordStore {
	return &RecordStore{Base: base}
}

// scanRecord scans one row into a Record, merging the fixed columns into
// the field bag.
func scanRecord(scan func(dest ...any) error) (models.Record, error) {
	var (
		id        int64
		companyID int64
		doc       []byte
		createdAt time.Time
		updatedAt time.Time
	)

	if err := scan(&id, &companyID, &doc, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	rec := models.Record{}
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, fmt.Errorf("unmarshalling record doc: %w", err)
	}

	rec[models.FieldID] = id
	rec[models.FieldCompanyID] = companyID
	rec[models.FieldCreatedAt] = createdAt
	rec[models.FieldUpdatedAt] = updatedAt

	return rec, nil
}

// docJSON serializes the record's domain fields, stripping the
// column-backed ones.
func docJSON(rec models.Record) ([]byte, error) {
	doc := rec.Clone()
	if doc == nil {
		doc = models.Record{}
	}

	for field := range columnFields {
		delete(doc, field)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshalling record doc: %w", err)
	}

	return data, nil
}

// findRecordTx loads one record by id within a transaction.
func findRecordTx(ctx context.Context, tx pgx.Tx, entityName string, id int64) (models.Record, error) {
	row := tx.QueryRow(ctx,
		"SELECT "+recordColumns+" FROM records WHERE entity = $1 AND id = $2",
		entityName, id,
	)

	rec, err := scanRecord(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrRecordNotFound
		}

		return nil, fmt.Errorf("scanning record: %w", err)
	}

	return rec, nil
}

// FindOne returns a single record by id.
func (s *RecordStore) FindOne(ctx context.Context, kind entity.Kind, companyID, id int64) (models.Record, error) {
	cfg, err := s.Registry.Get(kind)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx, companyID, cfg.NoCompanyScope)
	if err != nil {
		return nil, fmt.Errorf("finding %s: %w", kind, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	rec, err := findRecordTx(ctx, tx, string(kind), id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing find: %w", err)
	}

	return rec, nil
}

// FindMany executes a structured list query and returns the matching page
// together with the total match count. Requested relation includes are
// resolved against the entity's allow-list after the main query commits.
func (s *RecordStore) FindMany(
	ctx context.Context, kind entity.Kind, companyID int64, q models.ListQuery,
) ([]models.Record, int64, error) {
	cfg, err := s.Registry.Get(kind)
	if err != nil {
		return nil, 0, err
	}

	where, args, err := buildWhere(q.Filters, []any{string(kind)})
	if err != nil {
		return nil, 0, err
	}

	order, err := buildOrder(q.Sort)
	if err != nil {
		return nil, 0, err
	}

	qctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(qctx, companyID, cfg.NoCompanyScope)
	if err != nil {
		return nil, 0, fmt.Errorf("listing %s: %w", kind, err)
	}
	defer tx.Rollback(qctx) //nolint:errcheck // best-effort rollback after commit.

	var total int64
	if err := tx.QueryRow(qctx,
		"SELECT COUNT(*) FROM records WHERE entity = $1"+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting %s: %w", kind, err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	query := fmt.Sprintf(
		"SELECT %s FROM records WHERE entity = $1%s%s LIMIT $%d OFFSET $%d",
		recordColumns, where, order, len(args)+1, len(args)+2,
	)
	args = append(args, limit, q.Skip)

	rows, err := tx.Query(qctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying %s: %w", kind, err)
	}
	defer rows.Close()

	recs := make([]models.Record, 0, limit)

	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning %s row: %w", kind, err)
		}

		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating %s rows: %w", kind, err)
	}

	if err := tx.Commit(qctx); err != nil {
		return nil, 0, fmt.Errorf("committing list: %w", err)
	}

	if err := s.resolveIncludes(ctx, cfg, companyID, recs, q.Include); err != nil {
		return nil, 0, err
	}

	return recs, total, nil
}

// Exists reports whether any record matches the given filters, optionally
// excluding one id (update-path uniqueness probes).
func (s *RecordStore) Exists(
	ctx context.Context, kind entity.Kind, companyID int64, filters []models.Filter, excludeID int64,
) (bool, error) {
	cfg, err := s.Registry.Get(kind)
	if err != nil {
		return false, err
	}

	where, args, err := buildWhere(filters, []any{string(kind)})
	if err != nil {
		return false, err
	}

	query := "SELECT EXISTS (SELECT 1 FROM records WHERE entity = $1" + where
	if excludeID > 0 {
		args = append(args, excludeID)
		query += fmt.Sprintf(" AND id <> $%d", len(args))
	}
	query += ")"

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx, companyID, cfg.NoCompanyScope)
	if err != nil {
		return false, fmt.Errorf("probing %s: %w", kind, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	var exists bool
	if err := tx.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("probing %s existence: %w", kind, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("committing probe: %w", err)
	}

	return exists, nil
}

// resolveIncludes attaches related records for every requested include that
// is present in the entity's relation allow-list. Unknown names are ignored.
// Relations are fetched concurrently, each in its own read transaction, but
// attaching mutates the shared parent maps and so runs single-threaded once
// the group has finished.
func (s *RecordStore) resolveIncludes(
	ctx context.Context, cfg *entity.Config, companyID int64, recs []models.Record, include []string,
) error {
	if len(recs) == 0 || len(include) == 0 {
		return nil
	}

	rels := make([]entity.Relation, 0, len(include))

	for _, name := range include {
		if rel, ok := cfg.Relations[name]; ok {
			rels = append(rels, rel)
		}
	}

	if len(rels) == 0 {
		return nil
	}

	// Each goroutine writes only its own slot.
	related := make([][]models.Record, len(rels))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(includeFetchParallelism)

	for i, rel := range rels {
		eg.Go(func() error {
			rows, err := s.fetchRelation(egCtx, companyID, recs, rel)
			if err != nil {
				return err
			}

			related[i] = rows

			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return err
	}

	for i, rel := range rels {
		attachRelation(recs, rel, related[i])
	}

	return nil
}

// fetchRelation loads one relation's records for the given parents.
func (s *RecordStore) fetchRelation(
	ctx context.Context, companyID int64, recs []models.Record, rel entity.Relation,
) ([]models.Record, error) {
	relCfg, err := s.Registry.Get(rel.Kind)
	if err != nil {
		return nil, err
	}

	if rel.Many {
		parentIDs := make([]int64, 0, len(recs))
		for _, rec := range recs {
			parentIDs = append(parentIDs, rec.ID())
		}

		if !fieldNamePattern.MatchString(rel.ForeignKey) {
			return nil, fmt.Errorf("invalid relation foreign key %q", rel.ForeignKey)
		}

		// The foreign key lives inside the child doc; jsonb array
		// containment matches the scalar value against the parent set.
		query := fmt.Sprintf(
			"SELECT %s FROM records WHERE entity = $1 AND to_jsonb($2::bigint[]) @> (doc->'%s')",
			recordColumns, rel.ForeignKey,
		)

		return s.selectRecords(ctx, companyID, relCfg.NoCompanyScope, query, string(rel.Kind), parentIDs)
	}

	ids := make([]int64, 0, len(recs))
	for _, rec := range recs {
		if id := rec.Int64(rel.LocalKey); id > 0 {
			ids = append(ids, id)
		}
	}

	if len(ids) == 0 {
		return nil, nil
	}

	query := "SELECT " + recordColumns + " FROM records WHERE entity = $1 AND id = ANY($2::bigint[])"

	return s.selectRecords(ctx, companyID, relCfg.NoCompanyScope, query, string(rel.Kind), ids)
}

// attachRelation writes one relation's fetched records onto the parents.
// Parents of a many-relation get a (possibly empty) list; parents of a
// one-relation get the related record or nothing.
func attachRelation(recs []models.Record, rel entity.Relation, related []models.Record) {
	if rel.Many {
		byParent := make(map[int64][]models.Record, len(recs))
		for _, child := range related {
			pid := child.Int64(rel.ForeignKey)
			byParent[pid] = append(byParent[pid], child)
		}

		for _, rec := range recs {
			children := byParent[rec.ID()]
			if children == nil {
				children = []models.Record{}
			}

			rec[rel.Name] = children
		}

		return
	}

	byID := make(map[int64]models.Record, len(related))
	for _, r := range related {
		byID[r.ID()] = r
	}

	for _, rec := range recs {
		if r, ok := byID[rec.Int64(rel.LocalKey)]; ok {
			rec[rel.Name] = r
		}
	}
}

// selectRecords runs a full record query in its own read transaction.
func (s *RecordStore) selectRecords(
	ctx context.Context, companyID int64, allScope bool, query string, args ...any,
) ([]models.Record, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx, companyID, allScope)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying related records: %w", err)
	}
	defer rows.Close()

	var recs []models.Record

	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning related record: %w", err)
		}

		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating related records: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing related query: %w", err)
	}

	return recs, nil
}
