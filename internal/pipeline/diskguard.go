package pipeline

import (
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/sirupsen/logrus"
)

// diskGuard protects segment-file creation against a full disk, adapted
// from the teacher's local-file-sink disk-space protections
// (internal/sinks/local_file_sink.go's isDiskSpaceAvailable). Unlike the
// teacher's multi-gigabyte log-shipping budget, a single sidecar file is
// small, so the guard only refuses to write when free space is critically
// low rather than tracking a running disk-usage budget.
type diskGuard struct {
	minFreeBytes uint64
	logger       *logrus.Logger
}

func newDiskGuard(logger *logrus.Logger) *diskGuard {
	return &diskGuard{minFreeBytes: 16 * 1024 * 1024, logger: logger}
}

// available reports whether there is enough free space on the filesystem
// holding dir to safely write another segment file. Failure to stat the
// filesystem degrades to "available" — a guard that cannot observe disk
// pressure must not itself block emission.
func (g *diskGuard) available(dir string) bool {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	usage, err := disk.Usage(abs)
	if err != nil {
		g.logger.WithError(err).WithField("dir", dir).Debug("disk usage unavailable, assuming space is available")
		return true
	}
	return usage.Free >= g.minFreeBytes
}
