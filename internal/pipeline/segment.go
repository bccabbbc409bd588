package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"flowtrace/internal/metrics"
	"flowtrace/pkg/types"
)

// segmenter implements the size-triggered segmentation scheme from §4.4:
// any `args`/`result` field whose serialized length exceeds the configured
// threshold is written in full to a sidecar file, and replaced in the
// main-log line with a threshold-prefix plus the truncation marker.
type segmenter struct {
	threshold int
	dir       string
	enabled   bool
	guard     *diskGuard
	logger    *logrus.Logger
}

const truncationMarker = "…(truncated)"

// overflowProneFields lists the fields the segmentation pass inspects, per §4.4.
var overflowProneFields = []string{"args", "result"}

func (s *segmenter) apply(ev *types.TraceEvent) {
	if !s.enabled {
		return
	}

	fields := map[string]*string{"args": &ev.Args, "result": &ev.Result}
	var oversize []string
	for _, name := range overflowProneFields {
		if v := fields[name]; v != nil && len(*v) > s.threshold {
			oversize = append(oversize, name)
		}
	}
	if len(oversize) == 0 {
		return
	}

	full := *ev
	full.TruncatedFields = nil
	full.FullLogFile = ""

	if !s.ensureDir() {
		s.logger.WithField("dir", s.dir).Warn("segment directory unavailable, leaving record unsegmented")
		return
	}

	filename := fmt.Sprintf("flowtrace-%d-%s.json", ev.Timestamp, ev.Event)
	path := filepath.Join(s.dir, filename)

	if !s.guard.available(s.dir) {
		s.logger.WithField("dir", s.dir).Warn("insufficient disk space, skipping segmentation")
		return
	}

	pretty, err := json.MarshalIndent(full, "", "  ")
	if err != nil {
		s.logger.WithError(err).Error("failed to marshal segment record")
		return
	}
	if err := os.WriteFile(path, pretty, 0o644); err != nil {
		s.logger.WithError(err).WithField("path", path).Error("failed to write segment file")
		metrics.RecordEmissionError("segment_write")
		return
	}

	if ev.TruncatedFields == nil {
		ev.TruncatedFields = make(map[string]types.TruncatedField)
	}
	for _, name := range oversize {
		v := fields[name]
		original := *v
		prefix := original
		if len(prefix) > s.threshold {
			prefix = prefix[:s.threshold]
		}
		*v = prefix + truncationMarker
		ev.TruncatedFields[name] = types.TruncatedField{OriginalLength: len(original), Threshold: s.threshold}
		metrics.RecordSegmentation(name)
	}
	ev.FullLogFile = filepath.Join(s.dir, filename)
}

func (s *segmenter) ensureDir() bool {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.logger.WithError(err).WithField("dir", s.dir).Error("failed to create segment directory")
		return false
	}
	return true
}
