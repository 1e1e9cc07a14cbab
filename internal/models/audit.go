package models

import "time"

// Audit actions recorded by the mutation layer.
const (
	ActionCreate     = "create"
	ActionUpdate     = "update"
	ActionSoftDelete = "soft_delete"
	ActionDelete     = "delete"
)

// AuditEntry is one append-only audit log row. Create mutations carry the
// full serialized payload in NewValue; update mutations carry one entry per
// changed column.
type AuditEntry struct {
	ID        int64     `json:"id"`
	CompanyID int64     `json:"-"`
	UserID    int64     `json:"user_id"`
	Action    string    `json:"action"`
	Entity    string    `json:"entity"`
	EntityID  int64     `json:"entity_id"`
	Column    *string   `json:"column,omitempty"`
	OldValue  *string   `json:"old_value,omitempty"`
	NewValue  *string   `json:"new_value,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditQueryOpts holds filters for querying the audit log.
type AuditQueryOpts struct {
	Entity   string
	EntityID int64
	Action   string
	Since    *time.Time
	Limit    int
	Offset   int
}
