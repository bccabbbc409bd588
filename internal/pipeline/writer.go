package pipeline

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"flowtrace/internal/metrics"
	"flowtrace/pkg/types"
)

// writer is the append-only sink for the main log. Emission is serialized
// through mu the way the teacher's local file sink serializes writes per
// open file handle, so lines are never interleaved (§4.4's concurrency note).
type writer struct {
	mu        sync.Mutex
	file      *os.File
	stdout    bool
	segmenter *segmenter
	logger    *logrus.Logger

	lastErrLogMu sync.Mutex
	lastErrLog   time.Time
}

func newWriter(cfg types.Config, logger *logrus.Logger) (*writer, error) {
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &writer{
		file:   f,
		stdout: cfg.Stdout,
		logger: logger,
		segmenter: &segmenter{
			threshold: cfg.TruncateThreshold,
			dir:       cfg.SegmentDirectory,
			enabled:   cfg.EnableSegmentation,
			guard:     newDiskGuard(logger),
			logger:    logger,
		},
	}, nil
}

// write appends one event line to the main log. Per §7's EmissionError
// policy, a write failure is logged (rate-limited) and the event is
// dropped — the traced program is never interrupted by a logging failure.
func (w *writer) write(ev *types.TraceEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.segmenter.apply(ev)

	line, err := json.Marshal(ev)
	if err != nil {
		w.logFailure("marshal", err)
		metrics.RecordEmissionError("marshal")
		return
	}
	line = append(line, '\n')

	if _, err := w.file.Write(line); err != nil {
		w.logFailure("write", err)
		metrics.RecordEmissionError("write")
		return
	}
	if w.stdout {
		os.Stdout.Write(line)
	}
	metrics.RecordEvent(string(ev.Event))
}

// logFailure rate-limits the standard-error message a failing writer emits,
// matching §7's "a single rate-limited message goes to standard error."
func (w *writer) logFailure(op string, err error) {
	w.lastErrLogMu.Lock()
	defer w.lastErrLogMu.Unlock()
	if time.Since(w.lastErrLog) < time.Second {
		return
	}
	w.lastErrLog = time.Now()
	w.logger.WithError(err).WithField("op", op).Error("dropping trace event due to emission failure")
}

func (w *writer) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
