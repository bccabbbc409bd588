// Package launcher implements the Go-host side of the Launcher contract
// (§4.6): locating a target source tree, running the Instrumentation
// Engine over every source file the Selection Policy accepts, and
// handing the Event Pipeline the resolved configuration surface before
// the target is built or run. Acquiring an agent for a non-Go host and
// spawning the target process are the external collaborator's
// responsibility per §4.6's own wording ("specified only at its
// contract surface"); this package implements only the Go side of that
// contract.
package launcher

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"flowtrace/internal/policy"
	"flowtrace/internal/rewriter"
	flowtraceerrors "flowtrace/pkg/errors"
	"flowtrace/pkg/types"
)

// excludedDirs mirrors the teacher's directory walk's SkipDir list,
// adapted to the directories a Go source tree never wants rewritten.
var excludedDirs = map[string]bool{
	".git":         true,
	"vendor":       true,
	"node_modules": true,
	"testdata":     true,
}

// FileResult reports one source file's outcome.
type FileResult struct {
	Path      string
	Written   bool
	Functions []rewriter.FunctionResult
	Err       *flowtraceerrors.AppError
}

// Summary aggregates a whole-tree Inject run.
type Summary struct {
	FilesVisited     int
	FilesRewritten   int
	FunctionsWrapped int
	Results          []FileResult
}

// Launcher walks a target source tree and injects FlowTrace's
// instrumentation ahead of a build, per the AST-rewriter half of the
// Launcher contract.
type Launcher struct {
	rewriter *rewriter.Rewriter
	logger   *logrus.Logger
}

// New builds a Launcher from a resolved Selection Policy.
func New(p *policy.SelectionPolicy, logger *logrus.Logger) *Launcher {
	return &Launcher{rewriter: rewriter.New(p, logger), logger: logger}
}

// Inject walks root, rewrites every eligible ".go" file in place, and
// returns a summary. A single file's transform failure is recorded in
// the result list and does not abort the walk, matching §4.1's
// file-level degrade-and-continue semantics.
func (l *Launcher) Inject(root string) (Summary, error) {
	var summary Summary

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if excludedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}

		summary.FilesVisited++
		result := l.injectFile(path)
		summary.Results = append(summary.Results, result)
		if result.Written {
			summary.FilesRewritten++
		}
		for _, fr := range result.Functions {
			if fr.Transformed {
				summary.FunctionsWrapped++
			}
		}
		return nil
	})
	if err != nil {
		return summary, flowtraceerrors.Instrumentation("launcher", "Inject", "failed to walk source tree").
			Wrap(err).WithMetadata("root", root)
	}
	return summary, nil
}

func (l *Launcher) injectFile(path string) FileResult {
	src, err := os.ReadFile(path)
	if err != nil {
		return FileResult{Path: path, Err: flowtraceerrors.Instrumentation("launcher", "injectFile", "failed to read source file").
			Wrap(err).WithMetadata("path", path)}
	}

	out, results, err := l.rewriter.TransformFile(path, src)
	if err != nil {
		appErr, _ := flowtraceerrors.AsAppError(err)
		return FileResult{Path: path, Functions: results, Err: appErr}
	}

	anyTransformed := false
	for _, r := range results {
		if r.Transformed {
			anyTransformed = true
			break
		}
	}
	if !anyTransformed {
		return FileResult{Path: path, Functions: results}
	}

	info, statErr := os.Stat(path)
	mode := os.FileMode(0o644)
	if statErr == nil {
		mode = info.Mode()
	}
	if err := os.WriteFile(path, out, mode); err != nil {
		return FileResult{Path: path, Functions: results, Err: flowtraceerrors.Instrumentation("launcher", "injectFile", "failed to write rewritten source file").
			Wrap(err).WithMetadata("path", path)}
	}
	return FileResult{Path: path, Written: true, Functions: results}
}

// ConfigSurface is the exact set of values §4.6 says the launcher hands
// to the Selection Policy and Event Pipeline at startup: a
// package-prefix selector, the log file path, a duplicate-to-console
// flag, a maximum argument length, a segmentation threshold, a segment
// directory, and a master enable flag.
type ConfigSurface struct {
	PackagePrefix      string
	LogFile            string
	Stdout             bool
	MaxArgLength       int
	TruncateThreshold  int
	SegmentDirectory   string
	EnableSegmentation bool
	Enabled            bool
}

// Resolve folds a ConfigSurface into a full Config, applying it on top
// of whatever internal/config already resolved from file and
// environment. It exists because a launcher may be driven entirely by
// its own flags rather than FlowTrace's own config file.
func (c ConfigSurface) Resolve(base types.Config) types.Config {
	base.PackagePrefix = c.PackagePrefix
	base.LogFile = c.LogFile
	base.Stdout = c.Stdout
	base.MaxArgLength = c.MaxArgLength
	base.TruncateThreshold = c.TruncateThreshold
	base.SegmentDirectory = c.SegmentDirectory
	base.EnableSegmentation = c.EnableSegmentation
	base.Enabled = c.Enabled
	return base
}
