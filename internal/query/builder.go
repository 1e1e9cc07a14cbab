// Package query translates the open-ended query-parameter bag of a list
// request into a structured ListQuery: equality and contains filters, date
// ranges, relation includes, ordering, and the skip/limit pair.
package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/backofficehq/backoffice/internal/models"
)

// Scope carries the server-side request identity used for tenant scoping.
// It is derived from the authenticated principal, never from query input.
type Scope struct {
	CompanyID int64
	UserID    int64
	// NoCompany opts out of tenant scoping for public or cross-tenant routes.
	NoCompany bool
}

const (
	defaultLimit = 10
	maxLimit     = 1000

	orderPrefix = "order-"
)

// reservedParams are consumed by the builder itself and never become field
// filters. companyId is reserved so clients cannot steer tenant scoping.
var reservedParams = map[string]struct{}{
	"page":      {},
	"limit":     {},
	"show":      {},
	"self":      {},
	"companyId": {},
}

// acceptedDateLayouts for createdAt filter values.
var acceptedDateLayouts = []string{time.RFC3339, "2006-01-02"}

// Build parses rawQuery into a ListQuery under the given scope. Unrecognized
// parameters become equality filters on the named field; malformed values of
// recognized parameters are silently dropped, matching the lenient contract
// of the admin list endpoints.
func Build(rawQuery string, scope Scope) (models.ListQuery, error) {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return models.ListQuery{}, fmt.Errorf("parsing query parameters: %w", err)
	}

	q := models.ListQuery{
		Limit: parseLimit(values.Get("limit")),
	}

	q.Skip = parsePage(values.Get("page")) * q.Limit
	q.Sort = parseOrder(rawQuery)
	q.Include = parseShow(values.Get("show"))

	self := values.Get("self") == "true"

	for field, vals := range values {
		if len(vals) == 0 {
			continue
		}

		if _, reserved := reservedParams[field]; reserved {
			continue
		}

		if strings.HasPrefix(field, orderPrefix) {
			continue
		}

		// self=true pins the id to the requesting principal; a
		// client-supplied id must not widen that.
		if self && field == models.FieldID {
			continue
		}

		if f, ok := buildFilter(field, vals); ok {
			q.Filters = append(q.Filters, f)
		}
	}

	if self {
		q.Filters = append(q.Filters, models.Filter{Field: models.FieldID, Op: models.OpEq, Value: scope.UserID})
	}

	if !scope.NoCompany {
		q.Filters = append(q.Filters, models.Filter{Field: models.FieldCompanyID, Op: models.OpEq, Value: scope.CompanyID})
	}

	return q, nil
}

// buildFilter maps one query parameter onto a filter clause.
func buildFilter(field string, vals []string) (models.Filter, bool) {
	switch field {
	case "name":
		return models.Filter{Field: "name", Op: models.OpContains, Value: vals[0]}, true

	case "searchName":
		return models.Filter{Field: "searchName", Op: models.OpContains, Value: Normalize(vals[0])}, true

	case "active":
		switch vals[0] {
		case "true":
			return models.Filter{Field: "active", Op: models.OpEq, Value: true}, true
		case "false":
			return models.Filter{Field: "active", Op: models.OpEq, Value: false}, true
		default:
			return models.Filter{}, false
		}

	case models.FieldCreatedAt:
		return buildCreatedAtFilter(vals)

	default:
		return models.Filter{Field: field, Op: models.OpEq, Value: coerce(vals[0])}, true
	}
}

// buildCreatedAtFilter maps one value to date equality and two values to an
// inclusive range.
func buildCreatedAtFilter(vals []string) (models.Filter, bool) {
	first, ok := parseDate(vals[0])
	if !ok {
		return models.Filter{}, false
	}

	if len(vals) < 2 {
		return models.Filter{Field: models.FieldCreatedAt, Op: models.OpDateEq, Value: first}, true
	}

	second, ok := parseDate(vals[1])
	if !ok {
		return models.Filter{}, false
	}

	return models.Filter{Field: models.FieldCreatedAt, Op: models.OpDateBetween, Value: first, Value2: second}, true
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range acceptedDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// coerce turns a pure-digit string into an int64 so clients need not
// type-annotate query parameters. Anything else passes through unchanged.
func coerce(s string) any {
	if s == "" {
		return s
	}

	for _, r := range s {
		if r < '0' || r > '9' {
			return s
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return s
	}

	return n
}

// parseOrder scans the raw query string so repeated order-<field> directives
// keep their encounter order, which url.Values would lose. Invalid
// directions are dropped.
func parseOrder(rawQuery string) []models.Sort {
	var sorts []models.Sort

	for _, pair := range strings.Split(rawQuery, "&") {
		key, val, found := strings.Cut(pair, "=")
		if !found || !strings.HasPrefix(key, orderPrefix) {
			continue
		}

		field, err := url.QueryUnescape(strings.TrimPrefix(key, orderPrefix))
		if err != nil || field == "" {
			continue
		}

		dir, err := url.QueryUnescape(val)
		if err != nil {
			continue
		}

		if dir != "asc" && dir != "desc" {
			continue
		}

		sorts = append(sorts, models.Sort{Field: field, Dir: dir})
	}

	if len(sorts) == 0 {
		return []models.Sort{{Field: models.FieldID, Dir: "desc"}}
	}

	return sorts
}

// parseShow splits a CSV (optionally bracket-wrapped) include list.
func parseShow(s string) []string {
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	if s == "" {
		return nil
	}

	var names []string

	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			names = append(names, part)
		}
	}

	return names
}

func parseLimit(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return defaultLimit
	}

	if v > maxLimit {
		return maxLimit
	}

	return v
}

// parsePage reads the zero-based input page index.
func parsePage(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0
	}

	return v
}
