package gate

import (
	"strings"
	"testing"

	"github.com/tablegate/tablegate/internal/dialect"
	"github.com/tablegate/tablegate/internal/table"
)

func newTestRewriter(t *testing.T, kind dialect.Kind, rowCap int) *Rewriter {
	t.Helper()
	profile, err := dialect.ForKind(kind)
	if err != nil {
		t.Fatalf("ForKind(%q) error = %v", kind, err)
	}
	return NewRewriter(profile, table.WasteData(), rowCap)
}

func mustValidate(t *testing.T, kind dialect.Kind, raw string) ValidatedQuery {
	t.Helper()
	q, err := newTestValidator(t, kind).Validate(raw)
	if err != nil {
		t.Fatalf("Validate(%q) error = %v", raw, err)
	}
	return q
}

func TestRewriteAppendsRowCap(t *testing.T) {
	r := newTestRewriter(t, dialect.KindSQLite, 100)
	q := mustValidate(t, dialect.KindSQLite, "SELECT year FROM wastedata")

	got := r.Rewrite(q).String()
	if got != "SELECT year FROM wastedata LIMIT 100" {
		t.Fatalf("rewritten = %q", got)
	}
	if strings.Count(strings.ToUpper(got), "LIMIT") != 1 {
		t.Fatalf("expected exactly one limit clause in %q", got)
	}
}

func TestRewriteKeepsExistingLimit(t *testing.T) {
	r := newTestRewriter(t, dialect.KindPostgres, 100)
	q := mustValidate(t, dialect.KindPostgres, "SELECT year FROM wastedata LIMIT 5")

	got := r.Rewrite(q).String()
	if got != "SELECT year FROM wastedata LIMIT 5" {
		t.Fatalf("rewritten = %q", got)
	}
}

func TestRewriteIsIdempotent(t *testing.T) {
	kinds := []dialect.Kind{dialect.KindSQLite, dialect.KindPostgres, dialect.KindDuckDB, dialect.KindMSSQL}
	queries := []string{
		"SELECT * FROM wastedata",
		"SELECT city, wastecollected FROM wastedata WHERE city = 'Amman'",
		"SELECT city FROM wastedata WHERE city LIKE 'Am%'",
		"SELECT city FROM wastedata WHERE city IN ('Amman', 'Zarqa') AND year = 2023",
		"SELECT DISTINCT city FROM wastedata",
	}
	for _, kind := range kinds {
		r := newTestRewriter(t, kind, 100)
		for _, raw := range queries {
			once := r.Rewrite(mustValidate(t, kind, raw))
			twice := r.Rewrite(once)
			if once.String() != twice.String() {
				t.Fatalf("%s: rewrite not idempotent:\n once: %q\ntwice: %q", kind, once.String(), twice.String())
			}
		}
	}
}

func TestRewriteMSSQLUsesTop(t *testing.T) {
	r := newTestRewriter(t, dialect.KindMSSQL, 100)

	got := r.Rewrite(mustValidate(t, dialect.KindMSSQL, "SELECT city FROM dbo.wastedata")).String()
	if !strings.HasPrefix(got, "SELECT TOP 100 ") {
		t.Fatalf("rewritten = %q", got)
	}
	if strings.Contains(strings.ToUpper(got), "LIMIT") {
		t.Fatalf("unexpected LIMIT in %q", got)
	}

	got = r.Rewrite(mustValidate(t, dialect.KindMSSQL, "SELECT DISTINCT city FROM dbo.wastedata")).String()
	if !strings.HasPrefix(got, "SELECT DISTINCT TOP 100 ") {
		t.Fatalf("rewritten = %q", got)
	}

	got = r.Rewrite(mustValidate(t, dialect.KindMSSQL, "SELECT TOP 7 city FROM dbo.wastedata")).String()
	if !strings.HasPrefix(got, "SELECT TOP 7 ") {
		t.Fatalf("existing TOP was not preserved: %q", got)
	}
}

func TestRewriteFoldsEquality(t *testing.T) {
	r := newTestRewriter(t, dialect.KindPostgres, 100)
	q := mustValidate(t, dialect.KindPostgres, "SELECT wastecollected FROM wastedata WHERE city = 'Amman' AND year = 2023")

	got := r.Rewrite(q).String()
	if !strings.Contains(got, "LOWER(city) = LOWER('Amman')") {
		t.Fatalf("rewritten = %q", got)
	}
	if strings.Contains(got, "LOWER(year)") {
		t.Fatalf("numeric column was folded: %q", got)
	}
}

func TestRewriteFoldedFiltersMatchRegardlessOfLiteralCase(t *testing.T) {
	r := newTestRewriter(t, dialect.KindSQLite, 100)

	lower := r.Rewrite(mustValidate(t, dialect.KindSQLite, "SELECT * FROM wastedata WHERE city = 'Amman'")).String()
	upper := r.Rewrite(mustValidate(t, dialect.KindSQLite, "SELECT * FROM wastedata WHERE city = 'AMMAN'")).String()

	for _, got := range []string{lower, upper} {
		if !strings.Contains(got, "LOWER(city) = LOWER(") {
			t.Fatalf("filter not case-folded: %q", got)
		}
	}
}

func TestRewritePatternMatchUsesDialectIdiom(t *testing.T) {
	pg := newTestRewriter(t, dialect.KindPostgres, 100)
	got := pg.Rewrite(mustValidate(t, dialect.KindPostgres, "SELECT city FROM wastedata WHERE city LIKE 'Am%'")).String()
	if !strings.Contains(got, "city ILIKE 'Am%'") {
		t.Fatalf("postgres rewritten = %q", got)
	}

	ms := newTestRewriter(t, dialect.KindMSSQL, 100)
	got = ms.Rewrite(mustValidate(t, dialect.KindMSSQL, "SELECT city FROM dbo.wastedata WHERE city LIKE 'Am%'")).String()
	if !strings.Contains(got, "LOWER(city) LIKE LOWER('Am%')") {
		t.Fatalf("mssql rewritten = %q", got)
	}

	// sqlite LIKE is already case-insensitive; the comparison is untouched
	sq := newTestRewriter(t, dialect.KindSQLite, 100)
	got = sq.Rewrite(mustValidate(t, dialect.KindSQLite, "SELECT city FROM wastedata WHERE city LIKE 'Am%'")).String()
	if !strings.Contains(got, "city LIKE 'Am%'") {
		t.Fatalf("sqlite rewritten = %q", got)
	}
}

func TestRewriteFoldsMembership(t *testing.T) {
	r := newTestRewriter(t, dialect.KindDuckDB, 100)
	q := mustValidate(t, dialect.KindDuckDB, "SELECT * FROM wastedata WHERE city IN ('Amman', 'Zarqa')")

	got := r.Rewrite(q).String()
	if !strings.Contains(got, "LOWER(city) IN (LOWER('Amman'), LOWER('Zarqa'))") {
		t.Fatalf("rewritten = %q", got)
	}
}

func TestRewriteCarriesAliasQualifier(t *testing.T) {
	r := newTestRewriter(t, dialect.KindSQLite, 100)
	q := mustValidate(t, dialect.KindSQLite, "SELECT w.city FROM wastedata w WHERE w.city = 'Amman'")

	got := r.Rewrite(q).String()
	if got != "SELECT w.city FROM wastedata w WHERE LOWER(w.city) = LOWER('Amman') LIMIT 100" {
		t.Fatalf("rewritten = %q", got)
	}

	pg := newTestRewriter(t, dialect.KindPostgres, 100)
	got = pg.Rewrite(mustValidate(t, dialect.KindPostgres, "SELECT w.city FROM wastedata w WHERE w.city LIKE 'Am%'")).String()
	if !strings.Contains(got, "w.city ILIKE 'Am%'") {
		t.Fatalf("postgres rewritten = %q", got)
	}

	duck := newTestRewriter(t, dialect.KindDuckDB, 100)
	got = duck.Rewrite(mustValidate(t, dialect.KindDuckDB, "SELECT * FROM wastedata w WHERE w.city IN ('Amman', 'Zarqa')")).String()
	if !strings.Contains(got, "LOWER(w.city) IN (LOWER('Amman'), LOWER('Zarqa'))") {
		t.Fatalf("duckdb rewritten = %q", got)
	}
}

func TestRewriteQualifiedComparisonIsIdempotent(t *testing.T) {
	for _, kind := range []dialect.Kind{dialect.KindSQLite, dialect.KindPostgres, dialect.KindMSSQL} {
		r := newTestRewriter(t, kind, 100)
		relation := "wastedata"
		if kind == dialect.KindMSSQL {
			relation = "dbo.wastedata"
		}
		once := r.Rewrite(mustValidate(t, kind, "SELECT w.city FROM "+relation+" w WHERE w.city = 'Amman'"))
		twice := r.Rewrite(once)
		if once.String() != twice.String() {
			t.Fatalf("%s: rewrite not idempotent:\n once: %q\ntwice: %q", kind, once.String(), twice.String())
		}
	}
}

func TestRewriteIgnoresLimitInsideStringLiteral(t *testing.T) {
	r := newTestRewriter(t, dialect.KindPostgres, 100)
	q := mustValidate(t, dialect.KindPostgres, "SELECT year FROM wastedata WHERE city = 'no limit 5 here'")

	got := r.Rewrite(q).String()
	if !strings.HasSuffix(got, " LIMIT 100") {
		t.Fatalf("row cap suppressed by literal: %q", got)
	}
}

func TestRewriteLeavesProjectionAlone(t *testing.T) {
	r := newTestRewriter(t, dialect.KindPostgres, 100)
	q := mustValidate(t, dialect.KindPostgres, "SELECT city, SUM(wastecollected) AS total FROM wastedata GROUP BY city")

	got := r.Rewrite(q).String()
	if !strings.Contains(got, "SELECT city, SUM(wastecollected) AS total") {
		t.Fatalf("projection changed: %q", got)
	}
}
