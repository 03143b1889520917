package query_test

import (
	"testing"

	"github.com/kiranakit/reconcile/pkg/query"
)

func entryProjection() *query.ProjectionMap {
	return query.NewProjectionMap("public", "catalog_entries", "e").
		Project("id", "ID").
		Project("canonical_name", "CanonicalName").
		Project("current_stock", "CurrentStock")
}

func strPtr(s string) *string { return &s }

func TestProjectionMapFrom(t *testing.T) {
	p := entryProjection()
	if got, want := p.From(), "public.catalog_entries e"; got != want {
		t.Errorf("From() = %q, want %q", got, want)
	}
}

func TestProjectionMapColumns(t *testing.T) {
	p := entryProjection()
	if got, want := p.Columns(), "e.id, e.canonical_name, e.current_stock"; got != want {
		t.Errorf("Columns() = %q, want %q", got, want)
	}
}

func TestProjectionMapColumnLookup(t *testing.T) {
	p := entryProjection()

	tests := []struct {
		viewName string
		want     string
	}{
		{"CanonicalName", "e.canonical_name"},
		{"CurrentStock", "e.current_stock"},
		{"Unmapped", "Unmapped"},
	}

	for _, tt := range tests {
		if got := p.Column(tt.viewName); got != tt.want {
			t.Errorf("Column(%q) = %q, want %q", tt.viewName, got, tt.want)
		}
	}
}

func TestBuilderBuildWithConditions(t *testing.T) {
	sql, args := query.
		NewBuilder(entryProjection()).
		WhereEquals("CanonicalName", "toor dal").
		WhereContains("CanonicalName", strPtr("dal")).
		Build()

	want := "SELECT e.id, e.canonical_name, e.current_stock " +
		"FROM public.catalog_entries e " +
		"WHERE e.canonical_name = $1 AND e.canonical_name ILIKE $2"
	if sql != want {
		t.Errorf("Build() sql = %q, want %q", sql, want)
	}
	if len(args) != 2 || args[0] != "toor dal" || args[1] != "%dal%" {
		t.Errorf("Build() args = %v", args)
	}
}

func TestBuilderBuildPage(t *testing.T) {
	sql, _ := query.
		NewBuilder(entryProjection(), query.SortField{Field: "CanonicalName"}).
		BuildPage(2, 25)

	want := "SELECT e.id, e.canonical_name, e.current_stock " +
		"FROM public.catalog_entries e " +
		"ORDER BY e.canonical_name ASC LIMIT 25 OFFSET 25"
	if sql != want {
		t.Errorf("BuildPage() sql = %q, want %q", sql, want)
	}
}

func TestBuilderBuildSingle(t *testing.T) {
	sql, args := query.NewBuilder(entryProjection()).BuildSingle("ID", "abc")

	want := "SELECT e.id, e.canonical_name, e.current_stock " +
		"FROM public.catalog_entries e WHERE e.id = $1"
	if sql != want {
		t.Errorf("BuildSingle() sql = %q, want %q", sql, want)
	}
	if len(args) != 1 || args[0] != "abc" {
		t.Errorf("BuildSingle() args = %v", args)
	}
}

func TestParseSortFields(t *testing.T) {
	fields := query.ParseSortFields("CanonicalName,-CreatedAt")

	if len(fields) != 2 {
		t.Fatalf("fields = %d, want 2", len(fields))
	}
	if fields[0].Field != "CanonicalName" || fields[0].Descending {
		t.Errorf("fields[0] = %+v, want ascending CanonicalName", fields[0])
	}
	if fields[1].Field != "CreatedAt" || !fields[1].Descending {
		t.Errorf("fields[1] = %+v, want descending CreatedAt", fields[1])
	}
}

func TestBuilderWhereSearchSpansFields(t *testing.T) {
	sql, args := query.
		NewBuilder(entryProjection()).
		WhereSearch(strPtr("rice"), "CanonicalName", "ID").
		Build()

	want := "SELECT e.id, e.canonical_name, e.current_stock " +
		"FROM public.catalog_entries e " +
		"WHERE (e.canonical_name ILIKE $1 OR e.id ILIKE $2)"
	if sql != want {
		t.Errorf("Build() sql = %q, want %q", sql, want)
	}
	if len(args) != 2 {
		t.Errorf("args = %v, want two search patterns", args)
	}
}
