package query

import (
	"fmt"
	"reflect"
	"strings"
)

// SortField names a logical field for ORDER BY. The field is resolved
// to its physical column through the ProjectionMap at build time.
type SortField struct {
	Field      string
	Descending bool
}

// ParseSortFields splits a comma-separated sort expression such as
// "CanonicalName,-CreatedAt" into sort fields. A leading "-" marks a
// field descending. Empty input yields nil.
func ParseSortFields(s string) []SortField {
	if s == "" {
		return nil
	}

	var fields []SortField
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, desc := strings.CutPrefix(part, "-")
		fields = append(fields, SortField{Field: name, Descending: desc})
	}

	return fields
}

// predicate is a WHERE fragment whose parameters are written as "$%d"
// and renumbered when the final statement is assembled.
type predicate struct {
	expr string
	args []any
}

// Builder assembles SELECT statements over a ProjectionMap. Conditions
// accumulate through the Where methods and parameters are numbered in
// the order the conditions were added.
type Builder struct {
	projection  *ProjectionMap
	predicates  []predicate
	sortFields  []SortField
	defaultSort []SortField
}

// NewBuilder creates a Builder for the projection. The optional sort
// fields apply whenever OrderByFields is not called.
func NewBuilder(projection *ProjectionMap, defaultSort ...SortField) *Builder {
	return &Builder{
		projection:  projection,
		defaultSort: defaultSort,
	}
}

// OrderByFields overrides the default sort order.
func (b *Builder) OrderByFields(fields []SortField) *Builder {
	b.sortFields = fields
	return b
}

// WhereEquals adds an equality condition. Nil values are skipped.
func (b *Builder) WhereEquals(field string, value any) *Builder {
	if isNil(value) {
		return b
	}
	return b.where(b.projection.Column(field)+" = $%d", value)
}

// WhereContains adds a case-insensitive substring condition. Nil and
// empty values are skipped.
func (b *Builder) WhereContains(field string, value *string) *Builder {
	if value == nil || *value == "" {
		return b
	}
	return b.where(b.projection.Column(field)+" ILIKE $%d", "%"+*value+"%")
}

// WhereIn adds an IN condition. Empty slices are skipped.
func (b *Builder) WhereIn(field string, values []any) *Builder {
	if len(values) == 0 {
		return b
	}

	slots := make([]string, len(values))
	for i := range slots {
		slots[i] = "$%d"
	}
	expr := fmt.Sprintf("%s IN (%s)", b.projection.Column(field), strings.Join(slots, ", "))
	return b.where(expr, values...)
}

// WhereNullable adds an equality condition, or IS NULL when value is nil.
func (b *Builder) WhereNullable(field string, value any) *Builder {
	col := b.projection.Column(field)
	if isNil(value) {
		return b.where(col + " IS NULL")
	}
	return b.where(col+" = $%d", value)
}

// WhereSearch adds one ILIKE condition per field, joined with OR, all
// matching the same search term. Nil and empty terms are skipped.
func (b *Builder) WhereSearch(search *string, fields ...string) *Builder {
	if search == nil || *search == "" || len(fields) == 0 {
		return b
	}

	pattern := "%" + *search + "%"
	exprs := make([]string, len(fields))
	args := make([]any, len(fields))
	for i, field := range fields {
		exprs[i] = b.projection.Column(field) + " ILIKE $%d"
		args[i] = pattern
	}

	return b.where("("+strings.Join(exprs, " OR ")+")", args...)
}

// Build returns the SELECT statement with conditions and ordering.
func (b *Builder) Build() (string, []any) {
	where, args := b.buildWhere()
	sql := fmt.Sprintf(
		"SELECT %s FROM %s%s%s",
		b.projection.Columns(),
		b.projection.From(),
		where,
		b.buildOrderBy(),
	)
	return sql, args
}

// BuildCount returns a COUNT(*) statement with the current conditions.
func (b *Builder) BuildCount() (string, []any) {
	where, args := b.buildWhere()
	return fmt.Sprintf("SELECT COUNT(*) FROM %s%s", b.projection.From(), where), args
}

// BuildPage returns the SELECT statement with LIMIT and OFFSET derived
// from the one-based page number.
func (b *Builder) BuildPage(page, pageSize int) (string, []any) {
	where, args := b.buildWhere()
	sql := fmt.Sprintf(
		"SELECT %s FROM %s%s%s LIMIT %d OFFSET %d",
		b.projection.Columns(),
		b.projection.From(),
		where,
		b.buildOrderBy(),
		pageSize,
		(page-1)*pageSize,
	)
	return sql, args
}

// BuildSingle returns a SELECT statement keyed on a single field,
// ignoring any accumulated conditions.
func (b *Builder) BuildSingle(idField string, id any) (string, []any) {
	sql := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1",
		b.projection.Columns(),
		b.projection.From(),
		b.projection.Column(idField),
	)
	return sql, []any{id}
}

// BuildSingleOrNull returns the SELECT statement limited to one row.
func (b *Builder) BuildSingleOrNull() (string, []any) {
	where, args := b.buildWhere()
	sql := fmt.Sprintf(
		"SELECT %s FROM %s%s LIMIT 1",
		b.projection.Columns(),
		b.projection.From(),
		where,
	)
	return sql, args
}

func (b *Builder) where(expr string, args ...any) *Builder {
	b.predicates = append(b.predicates, predicate{expr: expr, args: args})
	return b
}

func (b *Builder) buildWhere() (string, []any) {
	if len(b.predicates) == 0 {
		return "", nil
	}

	exprs := make([]string, 0, len(b.predicates))
	args := make([]any, 0, len(b.predicates))
	param := 1

	for _, p := range b.predicates {
		expr := p.expr
		for _, arg := range p.args {
			expr = strings.Replace(expr, "$%d", fmt.Sprintf("$%d", param), 1)
			args = append(args, arg)
			param++
		}
		exprs = append(exprs, expr)
	}

	return " WHERE " + strings.Join(exprs, " AND "), args
}

func (b *Builder) buildOrderBy() string {
	fields := b.sortFields
	if len(fields) == 0 {
		fields = b.defaultSort
	}
	if len(fields) == 0 {
		return ""
	}

	parts := make([]string, len(fields))
	for i, f := range fields {
		dir := "ASC"
		if f.Descending {
			dir = "DESC"
		}
		parts[i] = b.projection.Column(f.Field) + " " + dir
	}

	return " ORDER BY " + strings.Join(parts, ", ")
}

func isNil(value any) bool {
	if value == nil {
		return true
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}

	return false
}
