package dialect

import (
	"fmt"
	"strings"
)

// Kind identifies one supported backend. It is resolved from configuration
// once at startup; nothing downstream branches on backend names again.
type Kind string

const (
	KindSQLite   Kind = "sqlite"
	KindPostgres Kind = "postgres"
	KindDuckDB   Kind = "duckdb"
	KindMSSQL    Kind = "mssql"
)

// LimitStyle selects how a row cap is spelled.
type LimitStyle int

const (
	// LimitSuffix appends "LIMIT n" to the statement.
	LimitSuffix LimitStyle = iota
	// TopPrefix injects "TOP n" after SELECT / SELECT DISTINCT.
	TopPrefix
)

// Profile is the immutable description of one backend's SQL quirks. One
// value exists per Kind; the rewriter and validator consume it as data.
type Profile struct {
	Kind       Kind
	DriverName string
	LimitStyle LimitStyle

	// ILIKESupported reports whether the backend has a native
	// case-insensitive pattern operator.
	ILIKESupported bool
	// LikeFoldsCase reports whether plain LIKE already ignores case,
	// so pattern comparisons need no rewriting at all.
	LikeFoldsCase bool
	// FoldFunc wraps both sides of an equality or membership test.
	FoldFunc string

	// ForbiddenCatalogs are system schema/catalog name fragments that a
	// validated query must never reference. Entries ending in "." or "_"
	// match as prefixes of an identifier, others as whole identifiers.
	ForbiddenCatalogs []string

	// TableQualifier is prepended to the permitted table name when the
	// backend expects schema-qualified references.
	TableQualifier string

	// SyntaxHint is surfaced to the model inside the planner prompt.
	SyntaxHint string
}

func ForKind(kind Kind) (Profile, error) {
	switch kind {
	case KindSQLite:
		return Profile{
			Kind:              KindSQLite,
			DriverName:        "sqlite3",
			LimitStyle:        LimitSuffix,
			LikeFoldsCase:     true,
			FoldFunc:          "LOWER",
			ForbiddenCatalogs: []string{"sqlite_master", "sqlite_schema", "sqlite_temp_master", "sqlite_temp_schema"},
			SyntaxHint:        "SQLite SQL. Use LIMIT for row caps.",
		}, nil
	case KindPostgres:
		return Profile{
			Kind:              KindPostgres,
			DriverName:        "pgx",
			LimitStyle:        LimitSuffix,
			ILIKESupported:    true,
			FoldFunc:          "LOWER",
			ForbiddenCatalogs: []string{"pg_catalog", "information_schema", "pg_"},
			SyntaxHint:        "PostgreSQL SQL. Use LIMIT for row caps.",
		}, nil
	case KindDuckDB:
		return Profile{
			Kind:              KindDuckDB,
			DriverName:        "duckdb",
			LimitStyle:        LimitSuffix,
			ILIKESupported:    true,
			FoldFunc:          "LOWER",
			ForbiddenCatalogs: []string{"information_schema", "duckdb_", "pragma_"},
			SyntaxHint:        "DuckDB SQL (PostgreSQL-like). Use LIMIT for row caps.",
		}, nil
	case KindMSSQL:
		return Profile{
			Kind:              KindMSSQL,
			DriverName:        "sqlserver",
			LimitStyle:        TopPrefix,
			FoldFunc:          "LOWER",
			ForbiddenCatalogs: []string{"sys.", "sysobjects", "syscolumns", "information_schema", "msdb", "tempdb"},
			TableQualifier:    "dbo.",
			SyntaxHint:        "T-SQL. Use SELECT TOP n for row caps, never LIMIT.",
		}, nil
	default:
		return Profile{}, fmt.Errorf("unsupported backend kind: %q", kind)
	}
}

// QualifiedTable returns the permitted table reference as the backend
// expects it written, e.g. dbo.wastedata on SQL Server.
func (p Profile) QualifiedTable(name string) string {
	if p.TableQualifier != "" && !strings.HasPrefix(strings.ToLower(name), p.TableQualifier) {
		return p.TableQualifier + name
	}
	return name
}

// ForbidsIdentifier reports whether ident names or qualifies into a system
// catalog object. Dotted identifiers are checked component by component, so
// information_schema.tables and main.sqlite_master are caught the same as
// their bare forms.
func (p Profile) ForbidsIdentifier(ident string) bool {
	lowered := strings.ToLower(ident)
	parts := strings.Split(lowered, ".")
	for _, forbidden := range p.ForbiddenCatalogs {
		switch {
		case strings.HasSuffix(forbidden, "."):
			if strings.HasPrefix(lowered, forbidden) {
				return true
			}
			qualifier := strings.TrimSuffix(forbidden, ".")
			for _, part := range parts[:len(parts)-1] {
				if part == qualifier {
					return true
				}
			}
		case strings.HasSuffix(forbidden, "_"):
			for _, part := range parts {
				if strings.HasPrefix(part, forbidden) {
					return true
				}
			}
		default:
			for _, part := range parts {
				if part == forbidden {
					return true
				}
			}
		}
	}
	return false
}
