package service_test

import (
	"context"

	"github.com/backofficehq/backoffice/internal/entity"
	"github.com/backofficehq/backoffice/internal/models"
)

// mockRecords implements service.RecordReader with function fields.
type mockRecords struct {
	findOne  func(ctx context.Context, kind entity.Kind, companyID, id int64) (models.Record, error)
	findMany func(ctx context.Context, kind entity.Kind, companyID int64, q models.ListQuery) ([]models.Record, int64, error)
	exists   func(ctx context.Context, kind entity.Kind, companyID int64, filters []models.Filter, excludeID int64) (bool, error)
}

func (m *mockRecords) FindOne(ctx context.Context, kind entity.Kind, companyID, id int64) (models.Record, error) {
	return m.findOne(ctx, kind, companyID, id)
}

func (m *mockRecords) FindMany(ctx context.Context, kind entity.Kind, companyID int64, q models.ListQuery) ([]models.Record, int64, error) {
	return m.findMany(ctx, kind, companyID, q)
}

func (m *mockRecords) Exists(ctx context.Context, kind entity.Kind, companyID int64, filters []models.Filter, excludeID int64) (bool, error) {
	if m.exists == nil {
		return false, nil
	}

	return m.exists(ctx, kind, companyID, filters, excludeID)
}

// mockMutator implements service.Mutator with function fields.
type mockMutator struct {
	create       func(ctx context.Context, kind entity.Kind, actor models.Actor, rec models.Record) (models.Record, error)
	update       func(ctx context.Context, kind entity.Kind, actor models.Actor, id int64, patch models.Record) (models.Record, error)
	changeStatus func(ctx context.Context, kind entity.Kind, actor models.Actor, id int64, active bool) (models.Record, error)
	deleteFn     func(ctx context.Context, kind entity.Kind, actor models.Actor, id int64, hard bool) error
	upsert       func(ctx context.Context, kind entity.Kind, actor models.Actor, match []models.Filter, rec models.Record) (models.Record, bool, error)
}

func (m *mockMutator) Create(ctx context.Context, kind entity.Kind, actor models.Actor, rec models.Record) (models.Record, error) {
	return m.create(ctx, kind, actor, rec)
}

func (m *mockMutator) Update(ctx context.Context, kind entity.Kind, actor models.Actor, id int64, patch models.Record) (models.Record, error) {
	return m.update(ctx, kind, actor, id, patch)
}

func (m *mockMutator) ChangeStatus(ctx context.Context, kind entity.Kind, actor models.Actor, id int64, active bool) (models.Record, error) {
	return m.changeStatus(ctx, kind, actor, id, active)
}

func (m *mockMutator) Delete(ctx context.Context, kind entity.Kind, actor models.Actor, id int64, hard bool) error {
	return m.deleteFn(ctx, kind, actor, id, hard)
}

func (m *mockMutator) Upsert(ctx context.Context, kind entity.Kind, actor models.Actor, match []models.Filter, rec models.Record) (models.Record, bool, error) {
	return m.upsert(ctx, kind, actor, match, rec)
}
