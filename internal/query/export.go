package query

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"

	"flowtrace/internal/metrics"
	flowtraceerrors "flowtrace/pkg/errors"
)

// Export renders a filtered, projected row set as CSV or JSON text. CSV
// uses the column set of the first projected row.
func (m *Manager) Export(sessionID string, opts ExportOptions) (string, error) {
	start := time.Now()
	defer func() { metrics.RecordQueryDuration("export", time.Since(start)) }()

	s, err := m.get(sessionID)
	if err != nil {
		return "", err
	}

	rows := filterRows(s.rows, opts.Filter)
	projected := projectedRows(rows, opts.Fields)

	switch opts.To {
	case "json":
		raw, err := json.Marshal(projected)
		if err != nil {
			return "", flowtraceerrors.Query("query", "export", "failed to marshal json export").Wrap(err)
		}
		return string(raw), nil
	case "csv":
		return exportCSV(projected)
	default:
		return "", flowtraceerrors.Query("query", "export", "unsupported export format").WithMetadata("to", opts.To)
	}
}

func exportCSV(rows []map[string]interface{}) (string, error) {
	if len(rows) == 0 {
		return "", nil
	}
	columns := sortedFieldNames(countKeys(rows[0]))

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(columns); err != nil {
		return "", flowtraceerrors.Query("query", "export", "failed to write csv header").Wrap(err)
	}
	for _, row := range rows {
		record := make([]string, len(columns))
		for i, col := range columns {
			record[i] = fmt.Sprintf("%v", row[col])
		}
		if err := w.Write(record); err != nil {
			return "", flowtraceerrors.Query("query", "export", "failed to write csv row").Wrap(err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", flowtraceerrors.Query("query", "export", "csv writer failed").Wrap(err)
	}
	return buf.String(), nil
}

func countKeys(row map[string]interface{}) map[string]int {
	out := make(map[string]int, len(row))
	for k := range row {
		out[k] = 1
	}
	return out
}
