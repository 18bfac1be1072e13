package db

import (
	"strings"
	"testing"
)

func TestCompactSQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{name: "collapses whitespace", query: "SELECT id\n\t FROM   orders\nWHERE id = $1", want: "SELECT id FROM orders WHERE id = $1"},
		{name: "empty query", query: "   ", want: "sql.query"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := compactSQL(tt.query); got != tt.want {
				t.Fatalf("compactSQL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompactSQLTruncates(t *testing.T) {
	t.Parallel()

	got := compactSQL("SELECT " + strings.Repeat("x", 1000))
	if len(got) != maxTracedQueryLen {
		t.Fatalf("expected length %d, got %d", maxTracedQueryLen, len(got))
	}
}

func TestSQLVerb(t *testing.T) {
	t.Parallel()

	if got := sqlVerb("update orders set status = $1"); got != "UPDATE" {
		t.Fatalf("expected UPDATE, got %q", got)
	}
	if got := sqlVerb(""); got != "" {
		t.Fatalf("expected empty verb, got %q", got)
	}
}
