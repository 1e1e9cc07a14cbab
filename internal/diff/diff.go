// Package diff compares two record snapshots and reports per-field changes.
// It backs the field-level audit trail written by the mutation layer.
package diff

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/backofficehq/backoffice/internal/models"
)

// DefaultIgnore lists the fields excluded from diffing unless the caller
// supplies its own ignore set.
var DefaultIgnore = []string{models.FieldID, models.FieldCreatedAt, models.FieldUpdatedAt}

// FieldChange is one changed column between two snapshots of a record.
type FieldChange struct {
	Column   string          `json:"column"`
	OldValue json.RawMessage `json:"old_value"`
	NewValue json.RawMessage `json:"new_value"`
}

// Diff returns the fields whose values differ between oldRec and newRec.
// Only keys present in oldRec are considered; keys that exist solely in
// newRec are not reported. When either snapshot is empty there is nothing
// to compare and the result is empty. Neither input is mutated.
//
// Values compare by their JSON representation, with one deliberate
// exception: a number and a digit-string of the same value are treated as
// equal, so type drift from store round-tripping does not produce spurious
// audit entries. Output order is the sorted key order of oldRec.
func Diff(oldRec, newRec models.Record, ignore ...string) []FieldChange {
	if len(oldRec) == 0 || len(newRec) == 0 {
		return nil
	}

	if len(ignore) == 0 {
		ignore = DefaultIgnore
	}

	ignored := make(map[string]struct{}, len(ignore))
	for _, k := range ignore {
		ignored[k] = struct{}{}
	}

	keys := make([]string, 0, len(oldRec))
	for k := range oldRec {
		if _, skip := ignored[k]; skip {
			continue
		}

		keys = append(keys, k)
	}

	sort.Strings(keys)

	var changes []FieldChange

	for _, k := range keys {
		newVal, present := newRec[k]
		if !present {
			continue
		}

		oldJSON, err := json.Marshal(oldRec[k])
		if err != nil {
			continue
		}

		newJSON, err := json.Marshal(newVal)
		if err != nil {
			continue
		}

		if bytes.Equal(oldJSON, newJSON) {
			continue
		}

		if numericallyEqual(oldJSON, newJSON) {
			continue
		}

		changes = append(changes, FieldChange{Column: k, OldValue: oldJSON, NewValue: newJSON})
	}

	return changes
}

// numericallyEqual reports whether two JSON values are the same number once
// string quoting is stripped. "5" and 5 are equal; "5a" and 5 are not.
func numericallyEqual(a, b []byte) bool {
	av, ok := asNumber(a)
	if !ok {
		return false
	}

	bv, ok := asNumber(b)
	if !ok {
		return false
	}

	return av == bv
}

// asNumber parses a JSON scalar (number or quoted numeric string) as float64.
func asNumber(raw []byte) (float64, bool) {
	s := string(raw)

	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}

	return v, true
}
