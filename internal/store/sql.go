package store

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/backofficehq/backoffice/internal/models"
)

// columnFields maps reserved record fields to their real columns; everything
// else lives inside the JSONB doc.
var columnFields = map[string]string{
	models.FieldID:        "id",
	models.FieldCompanyID: "company_id",
	models.FieldCreatedAt: "created_at",
	models.FieldUpdatedAt: "updated_at",
}

// fieldNamePattern restricts doc keys used in SQL to safe identifiers.
var fieldNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// docExpr returns the SQL expression extracting a doc field as text.
// The field name is validated against fieldNamePattern before inlining.
func docExpr(field string) (string, error) {
	if !fieldNamePattern.MatchString(field) {
		return "", fmt.Errorf("invalid filter field %q", field)
	}

	return "doc->>'" + field + "'", nil
}

// whereBuilder accumulates WHERE clauses with positional pgx arguments.
type whereBuilder struct {
	clauses []string
	args    []any
}

// next reserves the next positional placeholder.
func (w *whereBuilder) next(arg any) string {
	w.args = append(w.args, arg)

	return "$" + strconv.Itoa(len(w.args))
}

func (w *whereBuilder) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}

	return " AND " + strings.Join(w.clauses, " AND ")
}

// addFilter translates one filter clause into SQL.
func (w *whereBuilder) addFilter(f models.Filter) error {
	switch f.Op {
	case models.OpEq:
		return w.addEq(f)

	case models.OpContains:
		expr, err := docExpr(f.Field)
		if err != nil {
			return err
		}

		w.clauses = append(w.clauses, expr+" ILIKE '%' || "+w.next(f.Value)+" || '%'")

		return nil

	case models.OpDateEq:
		col, ok := columnFields[f.Field]
		if !ok {
			return fmt.Errorf("date filter on non-timestamp field %q", f.Field)
		}

		w.clauses = append(w.clauses, col+"::date = "+w.next(f.Value)+"::date")

		return nil

	case models.OpDateBetween:
		col, ok := columnFields[f.Field]
		if !ok {
			return fmt.Errorf("date filter on non-timestamp field %q", f.Field)
		}

		w.clauses = append(w.clauses, col+" >= "+w.next(f.Value)+" AND "+col+" <= "+w.next(f.Value2))

		return nil

	default:
		return fmt.Errorf("unsupported filter op %q", f.Op)
	}
}

// addEq emits an equality clause. Column-backed fields compare directly;
// doc fields use JSONB containment so a coerced numeric value matches a
// stored number and a string value matches a stored string.
func (w *whereBuilder) addEq(f models.Filter) error {
	if col, ok := columnFields[f.Field]; ok {
		w.clauses = append(w.clauses, col+" = "+w.next(f.Value))

		return nil
	}

	if !fieldNamePattern.MatchString(f.Field) {
		return fmt.Errorf("invalid filter field %q", f.Field)
	}

	probe, err := json.Marshal(map[string]any{f.Field: f.Value})
	if err != nil {
		return fmt.Errorf("encoding filter value for %q: %w", f.Field, err)
	}

	w.clauses = append(w.clauses, "doc @> "+w.next(string(probe))+"::jsonb")

	return nil
}

// buildWhere translates the query filters into a WHERE fragment appended to
// the entity match. Returns the SQL suffix and its arguments, with argument
// numbering starting after firstArgs existing placeholders.
func buildWhere(filters []models.Filter, firstArgs []any) (string, []any, error) {
	w := &whereBuilder{args: firstArgs}

	for _, f := range filters {
		if err := w.addFilter(f); err != nil {
			return "", nil, err
		}
	}

	return w.sql(), w.args, nil
}

// buildOrder translates sort directives into an ORDER BY fragment. Doc
// fields order by their text representation.
func buildOrder(sorts []models.Sort) (string, error) {
	if len(sorts) == 0 {
		return " ORDER BY id DESC", nil
	}

	parts := make([]string, 0, len(sorts))

	for _, s := range sorts {
		dir := strings.ToUpper(s.Dir)
		if dir != "ASC" && dir != "DESC" {
			return "", fmt.Errorf("invalid sort direction %q", s.Dir)
		}

		expr, ok := columnFields[s.Field]
		if !ok {
			var err error
			if expr, err = docExpr(s.Field); err != nil {
				return "", err
			}
		}

		parts = append(parts, expr+" "+dir)
	}

	return " ORDER BY " + strings.Join(parts, ", "), nil
}
