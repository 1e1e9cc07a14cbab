package api

import (
	"context"

	"github.com/backofficehq/backoffice/internal/entity"
	"github.com/backofficehq/backoffice/internal/models"
)

// GenericService is the entity-agnostic business layer consumed by the
// generic handler.
type GenericService interface {
	List(ctx context.Context, kind entity.Kind, actor models.Actor, rawQuery string) (models.ListResult, error)
	Get(ctx context.Context, kind entity.Kind, actor models.Actor, id int64) (models.Record, error)
	Create(ctx context.Context, kind entity.Kind, actor models.Actor, rec models.Record) (models.Record, error)
	Update(ctx context.Context, kind entity.Kind, actor models.Actor, id int64, patch models.Record) (models.Record, error)
	ChangeStatus(ctx context.Context, kind entity.Kind, actor models.Actor, id int64, active bool) (models.Record, error)
	Upsert(ctx context.Context, kind entity.Kind, actor models.Actor, rec models.Record) (models.Record, bool, error)
	Delete(ctx context.Context, kind entity.Kind, actor models.Actor, id int64, hard bool) error
}

// AuditService reads and prunes the audit trail.
type AuditService interface {
	Query(ctx context.Context, companyID int64, opts models.AuditQueryOpts) ([]models.AuditEntry, bool, error)
	PurgeOldEntries(ctx context.Context, retentionDays int) (int64, error)
}
