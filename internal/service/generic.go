// Package service implements the entity-agnostic business layer between the
// HTTP handlers and the stores: payload validation, uniqueness checks,
// tenant injection, and the per-entity hook points.
package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/backofficehq/backoffice/internal/entity"
	"github.com/backofficehq/backoffice/internal/models"
	"github.com/backofficehq/backoffice/internal/query"
)

// RecordReader is the read side of the record store.
type RecordReader interface {
	FindOne(ctx context.Context, kind entity.Kind, companyID, id int64) (models.Record, error)
	FindMany(ctx context.Context, kind entity.Kind, companyID int64, q models.ListQuery) ([]models.Record, int64, error)
	Exists(ctx context.Context, kind entity.Kind, companyID int64, filters []models.Filter, excludeID int64) (bool, error)
}

// Mutator is the write side of the record store.
type Mutator interface {
	Create(ctx context.Context, kind entity.Kind, actor models.Actor, rec models.Record) (models.Record, error)
	Update(ctx context.Context, kind entity.Kind, actor models.Actor, id int64, patch models.Record) (models.Record, error)
	ChangeStatus(ctx context.Context, kind entity.Kind, actor models.Actor, id int64, active bool) (models.Record, error)
	Delete(ctx context.Context, kind entity.Kind, actor models.Actor, id int64, hard bool) error
	Upsert(ctx context.Context, kind entity.Kind, actor models.Actor, match []models.Filter, rec models.Record) (models.Record, bool, error)
}

// Generic serves every registered entity kind through one code path,
// parameterized by the entity's configuration.
type Generic struct {
	Registry  *entity.Registry
	Records   RecordReader
	Mutations Mutator
	Log       *logrus.Logger
}

// NewGeneric creates a Generic service.
func NewGeneric(reg *entity.Registry, records RecordReader, mutations Mutator, log *logrus.Logger) *Generic {
	return &Generic{Registry: reg, Records: records, Mutations: mutations, Log: log}
}

// List builds a structured query from the raw query string and returns the
// matching page. The entity's default sort applies when the client sent no
// order directives.
func (g *Generic) List(ctx context.Context, kind entity.Kind, actor models.Actor, rawQuery string) (models.ListResult, error) {
	cfg, err := g.Registry.Get(kind)
	if err != nil {
		return models.ListResult{}, err
	}

	q, err := query.Build(rawQuery, query.Scope{
		CompanyID: actor.CompanyID,
		UserID:    actor.UserID,
		NoCompany: cfg.NoCompanyScope,
	})
	if err != nil {
		return models.ListResult{}, err
	}

	if len(cfg.DefaultSort) > 0 && !hasOrderParam(rawQuery) {
		q.Sort = cfg.DefaultSort
	}

	rows, total, err := g.Records.FindMany(ctx, kind, actor.CompanyID, q)
	if err != nil {
		return models.ListResult{}, err
	}

	return models.ListResult{Total: total, Rows: rows}, nil
}

// Get returns a single record by id.
func (g *Generic) Get(ctx context.Context, kind entity.Kind, actor models.Actor, id int64) (models.Record, error) {
	if _, err := g.Registry.Get(kind); err != nil {
		return nil, err
	}

	return g.Records.FindOne(ctx, kind, actor.CompanyID, id)
}

// Create validates and inserts a new record. The tenant binding always
// comes from the actor; client-supplied ids and timestamps are dropped.
func (g *Generic) Create(ctx context.Context, kind entity.Kind, actor models.Actor, rec models.Record) (models.Record, error) {
	cfg, err := g.Registry.Get(kind)
	if err != nil {
		return nil, err
	}

	rec = sanitizePayload(rec)
	if !cfg.NoCompanyScope {
		rec[models.FieldCompanyID] = actor.CompanyID
	}

	for _, field := range cfg.RequiredFields {
		if isEmpty(rec[field]) {
			return nil, models.ErrMissingField(field)
		}
	}

	if err := g.checkUnique(ctx, cfg, actor, rec, 0); err != nil {
		return nil, err
	}

	if err := cfg.Hooks.BeforeCreate(ctx, actor, rec); err != nil {
		return nil, err
	}

	created, err := g.Mutations.Create(ctx, kind, actor, rec)
	if err != nil {
		return nil, translateDuplicate(cfg, err)
	}

	if err := cfg.Hooks.AfterCreate(ctx, actor, created); err != nil {
		g.Log.WithError(err).WithField("entity", kind).Warn("after-create hook failed")
	}

	return created, nil
}

// Update merges a partial payload into an existing record.
func (g *Generic) Update(ctx context.Context, kind entity.Kind, actor models.Actor, id int64, patch models.Record) (models.Record, error) {
	cfg, err := g.Registry.Get(kind)
	if err != nil {
		return nil, err
	}

	patch = sanitizePayload(patch)

	if err := g.checkUnique(ctx, cfg, actor, patch, id); err != nil {
		return nil, err
	}

	if err := cfg.Hooks.BeforeUpdate(ctx, actor, id, patch); err != nil {
		return nil, err
	}

	updated, err := g.Mutations.Update(ctx, kind, actor, id, patch)
	if err != nil {
		return nil, translateDuplicate(cfg, err)
	}

	if err := cfg.Hooks.AfterUpdate(ctx, actor, updated); err != nil {
		g.Log.WithError(err).WithField("entity", kind).Warn("after-update hook failed")
	}

	return updated, nil
}

// ChangeStatus activates or deactivates a record.
func (g *Generic) ChangeStatus(ctx context.Context, kind entity.Kind, actor models.Actor, id int64, active bool) (models.Record, error) {
	if _, err := g.Registry.Get(kind); err != nil {
		return nil, err
	}

	return g.Mutations.ChangeStatus(ctx, kind, actor, id, active)
}

// Upsert updates the record matching the entity's unique fields, creating
// it when absent. Entities without unique fields cannot be upserted.
func (g *Generic) Upsert(ctx context.Context, kind entity.Kind, actor models.Actor, rec models.Record) (models.Record, bool, error) {
	cfg, err := g.Registry.Get(kind)
	if err != nil {
		return nil, false, err
	}

	if len(cfg.UniqueFields) == 0 {
		return nil, false, &models.ValidationError{Field: "entity", Message: "does not support upsert"}
	}

	rec = sanitizePayload(rec)
	if !cfg.NoCompanyScope {
		rec[models.FieldCompanyID] = actor.CompanyID
	}

	match := make([]models.Filter, 0, len(cfg.UniqueFields)+1)

	for _, field := range cfg.UniqueFields {
		v, ok := rec[field]
		if !ok || isEmpty(v) {
			return nil, false, models.ErrMissingField(field)
		}

		match = append(match, models.Filter{Field: field, Op: models.OpEq, Value: v})
	}

	if !cfg.NoCompanyScope {
		match = append(match, models.Filter{Field: models.FieldCompanyID, Op: models.OpEq, Value: actor.CompanyID})
	}

	created, wasCreated, err := g.Mutations.Upsert(ctx, kind, actor, match, rec)
	if err != nil {
		return nil, false, translateDuplicate(cfg, err)
	}

	return created, wasCreated, nil
}

// Delete removes a record, softly unless hard is set.
func (g *Generic) Delete(ctx context.Context, kind entity.Kind, actor models.Actor, id int64, hard bool) error {
	if _, err := g.Registry.Get(kind); err != nil {
		return err
	}

	return g.Mutations.Delete(ctx, kind, actor, id, hard)
}

// checkUnique probes each configured unique field present in the payload.
// excludeID exempts the record being updated from matching itself.
func (g *Generic) checkUnique(ctx context.Context, cfg *entity.Config, actor models.Actor, rec models.Record, excludeID int64) error {
	for _, field := range cfg.UniqueFields {
		v, ok := rec[field]
		if !ok || isEmpty(v) {
			continue
		}

		filters := []models.Filter{{Field: field, Op: models.OpEq, Value: v}}
		if !cfg.NoCompanyScope {
			filters = append(filters, models.Filter{Field: models.FieldCompanyID, Op: models.OpEq, Value: actor.CompanyID})
		}

		exists, err := g.Records.Exists(ctx, cfg.Kind, actor.CompanyID, filters, excludeID)
		if err != nil {
			return err
		}

		if exists {
			return &models.ConflictError{Entity: cfg.DisplayName, Field: field}
		}
	}

	return nil
}

// sanitizePayload drops the server-owned fields from a client payload.
func sanitizePayload(rec models.Record) models.Record {
	out := rec.Clone()
	if out == nil {
		out = models.Record{}
	}

	delete(out, models.FieldID)
	delete(out, models.FieldCompanyID)
	delete(out, models.FieldCreatedAt)
	delete(out, models.FieldUpdatedAt)

	return out
}

// isEmpty treats nil and blank strings as absent for validation purposes.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}

	s, ok := v.(string)

	return ok && strings.TrimSpace(s) == ""
}

// translateDuplicate maps a constraint violation onto the client-facing
// conflict error carrying the entity display name.
func translateDuplicate(cfg *entity.Config, err error) error {
	if errors.Is(err, models.ErrDuplicateKey) {
		field := "key"
		if len(cfg.UniqueFields) > 0 {
			field = cfg.UniqueFields[0]
		}

		return &models.ConflictError{Entity: cfg.DisplayName, Field: field}
	}

	return err
}

// hasOrderParam reports whether the raw query carries any order directive.
func hasOrderParam(rawQuery string) bool {
	for _, pair := range strings.Split(rawQuery, "&") {
		if strings.HasPrefix(pair, "order-") {
			return true
		}
	}

	return false
}
