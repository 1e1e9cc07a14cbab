package api_test

import (
	"context"

	"github.com/backofficehq/backoffice/internal/entity"
	"github.com/backofficehq/backoffice/internal/models"
)

// mockGeneric implements api.GenericService for testing.
type mockGeneric struct {
	listFn         func(ctx context.Context, kind entity.Kind, actor models.Actor, rawQuery string) (models.ListResult, error)
	getFn          func(ctx context.Context, kind entity.Kind, actor models.Actor, id int64) (models.Record, error)
	createFn       func(ctx context.Context, kind entity.Kind, actor models.Actor, rec models.Record) (models.Record, error)
	updateFn       func(ctx context.Context, kind entity.Kind, actor models.Actor, id int64, patch models.Record) (models.Record, error)
	changeStatusFn func(ctx context.Context, kind entity.Kind, actor models.Actor, id int64, active bool) (models.Record, error)
	upsertFn       func(ctx context.Context, kind entity.Kind, actor models.Actor, rec models.Record) (models.Record, bool, error)
	deleteFn       func(ctx context.Context, kind entity.Kind, actor models.Actor, id int64, hard bool) error
}

func (m *mockGeneric) List(ctx context.Context, kind entity.Kind, actor models.Actor, rawQuery string) (models.ListResult, error) {
	return m.listFn(ctx, kind, actor, rawQuery)
}

func (m *mockGeneric) Get(ctx context.Context, kind entity.Kind, actor models.Actor, id int64) (models.Record, error) {
	return m.getFn(ctx, kind, actor, id)
}

func (m *mockGeneric) Create(ctx context.Context, kind entity.Kind, actor models.Actor, rec models.Record) (models.Record, error) {
	return m.createFn(ctx, kind, actor, rec)
}

func (m *mockGeneric) Update(ctx context.Context, kind entity.Kind, actor models.Actor, id int64, patch models.Record) (models.Record, error) {
	return m.updateFn(ctx, kind, actor, id, patch)
}

func (m *mockGeneric) ChangeStatus(ctx context.Context, kind entity.Kind, actor models.Actor, id int64, active bool) (models.Record, error) {
	return m.changeStatusFn(ctx, kind, actor, id, active)
}

func (m *mockGeneric) Upsert(ctx context.Context, kind entity.Kind, actor models.Actor, rec models.Record) (models.Record, bool, error) {
	return m.upsertFn(ctx, kind, actor, rec)
}

func (m *mockGeneric) Delete(ctx context.Context, kind entity.Kind, actor models.Actor, id int64, hard bool) error {
	return m.deleteFn(ctx, kind, actor, id, hard)
}

// mockAudit implements api.AuditService for testing.
type mockAudit struct {
	queryFn func(ctx context.Context, companyID int64, opts models.AuditQueryOpts) ([]models.AuditEntry, bool, error)
	purgeFn func(ctx context.Context, retentionDays int) (int64, error)
}

func (m *mockAudit) Query(ctx context.Context, companyID int64, opts models.AuditQueryOpts) ([]models.AuditEntry, bool, error) {
	return m.queryFn(ctx, companyID, opts)
}

func (m *mockAudit) PurgeOldEntries(ctx context.Context, retentionDays int) (int64, error) {
	return m.purgeFn(ctx, retentionDays)
}
