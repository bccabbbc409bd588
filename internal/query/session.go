// Package query implements the JSONL Query Session (§4.5): loading a main
// log file once into memory and serving read-only schema, search,
// aggregation, and expansion operations against it.
package query

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"flowtrace/internal/metrics"
	flowtraceerrors "flowtrace/pkg/errors"
)

// Row is one parsed line of a main log: the raw line text (for the
// filter DSL's substring matching) plus its decoded fields.
type Row struct {
	Raw    string
	Fields map[string]interface{}
}

// Session is the in-memory indexed store loaded by open: the ordered
// sequence of parsed rows, a field-name occurrence-count schema, the
// originating log's directory (used to resolve fullLogFile references),
// and a session identifier. It is read-only after construction and safe
// to share across concurrent callers.
type Session struct {
	ID         string
	rows       []Row
	schema     map[string]int
	baseDir    string
	parseCount int
}

// Manager holds every Session opened in this process, keyed by ID.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *logrus.Logger
}

// NewManager builds an empty session registry.
func NewManager(logger *logrus.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// OpenResult is the response to Open: the new session's id and the number
// of successfully parsed rows it holds.
type OpenResult struct {
	SessionID string `json:"sessionId"`
	Count     int    `json:"count"`
}

// Open parses path line by line, skipping blank lines. Each non-blank line
// is expected to be a single JSON object; a line that fails to parse is
// counted in ParseErrorsTotal and dropped, never raised. The schema is
// discovered by merging field-name occurrence counts across every row.
func (m *Manager) Open(path string) (OpenResult, error) {
	start := time.Now()
	defer func() { metrics.RecordQueryDuration("open", time.Since(start)) }()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return OpenResult{}, flowtraceerrors.NotFound("query", "open", "log file not found").WithMetadata("path", path)
		}
		return OpenResult{}, flowtraceerrors.Query("query", "open", "failed to open log file").Wrap(err)
	}
	defer f.Close()

	session := &Session{
		ID:      uuid.New().String(),
		schema:  make(map[string]int),
		baseDir: filepath.Dir(path),
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var fields map[string]interface{}
		if err := json.Unmarshal([]byte(line), &fields); err != nil {
			session.parseCount++
			metrics.RecordParseError()
			continue
		}
		for k := range fields {
			session.schema[k]++
		}
		session.rows = append(session.rows, Row{Raw: line, Fields: fields})
	}

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()
	metrics.SessionOpened()

	return OpenResult{SessionID: session.ID, Count: len(session.rows)}, nil
}

// Close discards a session, releasing its in-memory rows.
func (m *Manager) Close(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return flowtraceerrors.Query("query", "close", "unknown session id").WithMetadata("sessionId", sessionID)
	}
	delete(m.sessions, sessionID)
	metrics.SessionClosed()
	return nil
}

func (m *Manager) get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, flowtraceerrors.Query("query", "lookup", "unknown session id").WithMetadata("sessionId", sessionID)
	}
	return s, nil
}

// SchemaResult is the response to Schema: every field name observed across
// the session's rows with its occurrence count, plus the first row as a
// sample for callers discovering field availability.
type SchemaResult struct {
	Fields    map[string]int         `json:"fields"`
	SampleRow map[string]interface{} `json:"sampleRow,omitempty"`
}

// Schema returns the field-frequency map and the first row of a session.
func (m *Manager) Schema(sessionID string) (SchemaResult, error) {
	start := time.Now()
	defer func() { metrics.RecordQueryDuration("schema", time.Since(start)) }()

	s, err := m.get(sessionID)
	if err != nil {
		return SchemaResult{}, err
	}
	result := SchemaResult{Fields: s.schema}
	if len(s.rows) > 0 {
		result.SampleRow = project(s.rows[0].Fields, nil)
	}
	return result, nil
}

// sortedFieldNames returns a session's schema keys in a stable order, for
// callers that want deterministic column ordering (e.g. CSV export).
func sortedFieldNames(m map[string]int) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
