package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/tablegate/tablegate/internal/executor"
	"github.com/tablegate/tablegate/internal/gate"
	"github.com/tablegate/tablegate/internal/storage"
)

// Archiver writes an audit snapshot of each fresh result set to the object
// store as parquet. It is best-effort: the chat path never depends on it.
type Archiver struct {
	store storage.ObjectStore
}

func New(store storage.ObjectStore) *Archiver {
	return &Archiver{store: store}
}

type archivedRow struct {
	SessionID      string `parquet:"session_id"`
	SQL            string `parquet:"sql"`
	Columns        string `parquet:"columns"`
	RowIndex       int64  `parquet:"row_index"`
	RowJSON        string `parquet:"row_json"`
	ExecutedUnixMs int64  `parquet:"executed_unix_ms"`
}

// Archive encodes the result set and stores it under a time-bucketed key.
func (a *Archiver) Archive(ctx context.Context, sessionID string, q gate.ValidatedQuery, rs executor.ResultSet) (storage.ObjectInfo, error) {
	if a.store == nil {
		return storage.ObjectInfo{}, fmt.Errorf("object store is required")
	}

	now := time.Now().UTC()
	data, err := encodeResult(sessionID, q, rs, now)
	if err != nil {
		return storage.ObjectInfo{}, err
	}

	key := fmt.Sprintf("results/%s/%d-%s.parquet", now.Format("2006/01/02"), now.UnixMilli(), sanitizeKeyComponent(sessionID))
	info, err := a.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{ContentType: "application/vnd.apache.parquet"})
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("store archive object: %w", err)
	}
	return info, nil
}

func encodeResult(sessionID string, q gate.ValidatedQuery, rs executor.ResultSet, executedAt time.Time) ([]byte, error) {
	columns := strings.Join(rs.Columns, ",")
	rows := make([]archivedRow, 0, len(rs.Rows)+1)
	if len(rs.Rows) == 0 {
		// keep a record of empty results too
		rows = append(rows, archivedRow{
			SessionID:      sessionID,
			SQL:            q.String(),
			Columns:        columns,
			RowIndex:       -1,
			ExecutedUnixMs: executedAt.UnixMilli(),
		})
	}
	for i, row := range rs.Rows {
		payload, err := json.Marshal(row)
		if err != nil {
			return nil, fmt.Errorf("encode archived row %d: %w", i, err)
		}
		rows = append(rows, archivedRow{
			SessionID:      sessionID,
			SQL:            q.String(),
			Columns:        columns,
			RowIndex:       int64(i),
			RowJSON:        string(payload),
			ExecutedUnixMs: executedAt.UnixMilli(),
		})
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[archivedRow](buf)
	if _, err := writer.Write(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

func sanitizeKeyComponent(value string) string {
	value = strings.ReplaceAll(value, "/", "_")
	value = strings.ReplaceAll(value, "..", "_")
	if value == "" {
		return "anonymous"
	}
	return value
}
