package executor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tablegate/tablegate/internal/gate"
)

// AnalysisRowBound caps how many rows are retained for downstream
// analysis. Callers still receive every returned row.
const AnalysisRowBound = 200

// Row is one result row as an ordered column→value mapping; ordering lives
// in ResultSet.Columns.
type Row = map[string]any

type ResultSet struct {
	Columns  []string
	Rows     []Row
	Duration time.Duration
}

// AnalysisRows returns the bounded prefix handed to the analysis composer.
func (rs ResultSet) AnalysisRows() []Row {
	if len(rs.Rows) <= AnalysisRowBound {
		return rs.Rows
	}
	return rs.Rows[:AnalysisRowBound]
}

// ExecutionError carries the backend's message for the caller; failures
// are surfaced, never retried.
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string { return fmt.Sprintf("query execution failed: %v", e.Err) }
func (e *ExecutionError) Unwrap() error { return e.Err }

// Executor runs validated queries against the backend pool under a query
// timeout. It accepts only gate.ValidatedQuery; there is no raw-string
// entry point.
type Executor struct {
	db      *sql.DB
	timeout time.Duration
}

func New(db *sql.DB, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Executor{db: db, timeout: timeout}
}

func (e *Executor) Execute(ctx context.Context, q gate.ValidatedQuery) (ResultSet, error) {
	if q.IsZero() {
		return ResultSet{}, &ExecutionError{Err: fmt.Errorf("empty validated query")}
	}

	queryCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	rows, err := e.db.QueryContext(queryCtx, q.String())
	if err != nil {
		return ResultSet{}, &ExecutionError{Err: err}
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return ResultSet{}, &ExecutionError{Err: fmt.Errorf("read columns: %w", err)}
	}

	resultRows := make([]Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return ResultSet{}, &ExecutionError{Err: fmt.Errorf("scan row: %w", err)}
		}
		row := make(Row, len(columns))
		for i, column := range columns {
			row[column] = normalizeValue(values[i])
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return ResultSet{}, &ExecutionError{Err: fmt.Errorf("iterate rows: %w", err)}
	}

	return ResultSet{
		Columns:  columns,
		Rows:     resultRows,
		Duration: time.Since(start),
	}, nil
}

func normalizeValue(value any) any {
	switch typed := value.(type) {
	case []byte:
		return string(typed)
	default:
		return typed
	}
}
