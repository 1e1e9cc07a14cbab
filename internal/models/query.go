package models

// FilterOp enumerates the clause kinds a list query can carry.
type FilterOp string

const (
	// OpEq is an exact equality clause.
	OpEq FilterOp = "eq"
	// OpContains is a case-insensitive substring clause.
	OpContains FilterOp = "contains"
	// OpDateEq matches a timestamp column on calendar date.
	OpDateEq FilterOp = "date_eq"
	// OpDateBetween is an inclusive timestamp range clause.
	OpDateBetween FilterOp = "date_between"
)

// Filter is a single where-clause of a list query.
type Filter struct {
	Field string
	Op    FilterOp
	Value any
	// Value2 is the upper bound for OpDateBetween.
	Value2 any
}

// Sort is one ordering directive; Dir is "asc" or "desc".
type Sort struct {
	Field string
	Dir   string
}

// ListQuery is the structured form of a list request: filters, relation
// includes, ordering, and the skip/limit pair. Built by the query package,
// executed by the store.
type ListQuery struct {
	Filters []Filter
	Include []string
	Sort    []Sort
	Skip    int
	Limit   int
}
