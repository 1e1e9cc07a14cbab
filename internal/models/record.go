// Package models defines data types shared across the back-office engine.
package models

import (
	"encoding/json"
	"time"
)

// Reserved record fields backed by real columns rather than the JSONB doc.
const (
	FieldID        = "id"
	FieldCompanyID = "companyId"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// Soft-delete marker fields. A soft delete always stamps inactiveAt and
// additionally writes the markers present on the target record's shape; the
// row itself is never removed.
const (
	FieldInactiveAt = "inactiveAt"
	FieldDeletedAt  = "deletedAt"
	FieldActive     = "active"
	FieldStatus     = "status"
)

// softDeleteMarkers lists the recognized marker fields in a fixed order.
var softDeleteMarkers = []string{FieldInactiveAt, FieldDeletedAt, FieldActive, FieldStatus}

// Record is one row of whatever entity is being operated on. The engine
// treats it as an opaque keyed bag except for the reserved fields and the
// soft-delete markers above.
type Record map[string]any

// ID returns the record's numeric id, or 0 when absent.
func (r Record) ID() int64 {
	return r.Int64(FieldID)
}

// Int64 returns the named field coerced to int64 where the underlying value
// is a Go integer, a JSON number, or a json.Number. Returns 0 otherwise.
func (r Record) Int64(field string) int64 {
	switch v := r[field].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0
		}

		return n
	default:
		return 0
	}
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}

	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}

	return out
}

// SoftDeletePatch derives the marker fields to write for a soft delete.
// inactiveAt is always stamped so the delete is observable on any shape;
// the remaining markers are written only when the record's shape carries
// them (timestamps set to now, boolean flags to false).
func (r Record) SoftDeletePatch(now time.Time) Record {
	patch := Record{FieldInactiveAt: now}

	for _, marker := range softDeleteMarkers {
		if marker == FieldInactiveAt {
			continue
		}

		if _, ok := r[marker]; !ok {
			continue
		}

		switch marker {
		case FieldActive, FieldStatus:
			patch[marker] = false
		default:
			patch[marker] = now
		}
	}

	return patch
}

// ListResult is the paged response shape for list operations.
type ListResult struct {
	Total int64    `json:"total"`
	Rows  []Record `json:"rows"`
}
