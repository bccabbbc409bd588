package query

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"flowtrace/internal/metrics"
	flowtraceerrors "flowtrace/pkg/errors"
)

// readSidecar loads and parses a segment file, resolving a relative
// fullLogFile path against the session's originating log directory.
func (s *Session) readSidecar(fullLogFile string) (map[string]interface{}, error) {
	path := fullLogFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.baseDir, fullLogFile)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, flowtraceerrors.NotFound("query", "expand", "sidecar file not found").
			WithMetadata("path", path).Wrap(err)
	}
	var full map[string]interface{}
	if err := json.Unmarshal(data, &full); err != nil {
		return nil, flowtraceerrors.Query("query", "expand", "sidecar file is not valid JSON").Wrap(err)
	}
	return full, nil
}

// Expand locates the unique event by timestamp, optionally disambiguated
// by event kind. If the event was not segmented, it echoes the row with an
// explanatory message; otherwise it reads and returns the sidecar's full
// content. Fails with NotFound when either the in-line event or its
// sidecar file is missing.
func (m *Manager) Expand(sessionID string, opts ExpandOptions) (ExpandResult, error) {
	start := time.Now()
	defer func() { metrics.RecordQueryDuration("expand", time.Since(start)) }()

	s, err := m.get(sessionID)
	if err != nil {
		return ExpandResult{}, err
	}

	var found *Row
	for i := range s.rows {
		ts, _ := toFloat(s.rows[i].Fields["timestamp"])
		if int64(ts) != opts.Timestamp {
			continue
		}
		if opts.Event != "" {
			if ev, _ := s.rows[i].Fields["event"].(string); ev != opts.Event {
				continue
			}
		}
		found = &s.rows[i]
		break
	}
	if found == nil {
		return ExpandResult{}, flowtraceerrors.NotFound("query", "expand", "no event found at timestamp").
			WithMetadata("timestamp", opts.Timestamp).WithMetadata("event", opts.Event)
	}

	fullLogFile, _ := found.Fields["fullLogFile"].(string)
	if fullLogFile == "" {
		return ExpandResult{
			TruncatedLog: project(found.Fields, nil),
			Message:      "event was not segmented; truncatedLog is the complete record",
		}, nil
	}

	full, err := s.readSidecar(fullLogFile)
	if err != nil {
		return ExpandResult{}, err
	}

	truncatedFields, _ := found.Fields["truncatedFields"].(map[string]interface{})
	return ExpandResult{
		TruncatedLog:    project(found.Fields, nil),
		FullLog:         full,
		TruncatedFields: truncatedFields,
	}, nil
}
