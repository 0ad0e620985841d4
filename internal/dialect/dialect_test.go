package dialect

import "testing"

func TestForKindCoversAllBackends(t *testing.T) {
	cases := []struct {
		kind   Kind
		driver string
		style  LimitStyle
	}{
		{KindSQLite, "sqlite3", LimitSuffix},
		{KindPostgres, "pgx", LimitSuffix},
		{KindDuckDB, "duckdb", LimitSuffix},
		{KindMSSQL, "sqlserver", TopPrefix},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			profile, err := ForKind(tc.kind)
			if err != nil {
				t.Fatalf("ForKind() error = %v", err)
			}
			if profile.DriverName != tc.driver {
				t.Fatalf("DriverName = %q", profile.DriverName)
			}
			if profile.LimitStyle != tc.style {
				t.Fatalf("LimitStyle = %v", profile.LimitStyle)
			}
		})
	}
}

func TestForKindRejectsUnknown(t *testing.T) {
	if _, err := ForKind(Kind("oracle")); err == nil {
		t.Fatal("expected error")
	}
}

func TestQualifiedTable(t *testing.T) {
	mssql, _ := ForKind(KindMSSQL)
	if got := mssql.QualifiedTable("wastedata"); got != "dbo.wastedata" {
		t.Fatalf("QualifiedTable() = %q", got)
	}
	if got := mssql.QualifiedTable("dbo.WasteData"); got != "dbo.WasteData" {
		t.Fatalf("QualifiedTable() double-qualified: %q", got)
	}
	sqlite, _ := ForKind(KindSQLite)
	if got := sqlite.QualifiedTable("wastedata"); got != "wastedata" {
		t.Fatalf("QualifiedTable() = %q", got)
	}
}

func TestForbidsIdentifier(t *testing.T) {
	cases := []struct {
		kind  Kind
		ident string
		want  bool
	}{
		{KindSQLite, "sqlite_master", true},
		{KindSQLite, "SQLITE_SCHEMA", true},
		{KindSQLite, "main.sqlite_master", true},
		{KindSQLite, "wastedata", false},
		{KindPostgres, "pg_catalog.pg_tables", true},
		{KindPostgres, "information_schema.tables", true},
		{KindPostgres, "public.pg_shadow", true},
		{KindPostgres, "pg_roles", true},
		{KindPostgres, "page_counts", false},
		{KindDuckDB, "duckdb_settings", true},
		{KindDuckDB, "pragma_table_info", true},
		{KindMSSQL, "sys.tables", true},
		{KindMSSQL, "sysobjects", true},
		{KindMSSQL, "msdb.dbo.backupset", true},
		{KindMSSQL, "dbo.wastedata", false},
	}
	for _, tc := range cases {
		profile, err := ForKind(tc.kind)
		if err != nil {
			t.Fatalf("ForKind(%s) error = %v", tc.kind, err)
		}
		if got := profile.ForbidsIdentifier(tc.ident); got != tc.want {
			t.Errorf("%s ForbidsIdentifier(%q) = %v, want %v", tc.kind, tc.ident, got, tc.want)
		}
	}
}
