// Package app wires together FlowTrace's configuration, Selection
// Policy, Trace Event Pipeline, Instrumentation Engine, and Query
// Session into the single composition root cmd/flowtrace drives.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"flowtrace/internal/config"
	"flowtrace/internal/launcher"
	"flowtrace/internal/metrics"
	"flowtrace/internal/obstrace"
	"flowtrace/internal/pipeline"
	"flowtrace/internal/policy"
	"flowtrace/internal/query"
	"flowtrace/internal/rewriter"
	"flowtrace/pkg/agent"
	flowtraceerrors "flowtrace/pkg/errors"
	"flowtrace/pkg/types"
)

// App holds every component wired from a resolved Config: the Selection
// Policy gating instrumentation, the Trace Event Pipeline receiving
// ENTER/EXIT/EXCEPTION calls, the Launcher that injects instrumentation
// into a target source tree ahead of a build, the Query Session manager
// serving read queries against a completed log, and the ambient metrics
// and self-observability servers.
type App struct {
	config *types.Config
	logger *logrus.Logger

	Policy     *policy.SelectionPolicy
	Rewriter   *rewriter.Rewriter
	Launcher   *launcher.Launcher
	Pipeline   *pipeline.Pipeline
	Queries    *query.Manager
	obstrace   *obstrace.Manager
	metricsSrv *metrics.Server
}

// New resolves configuration from configFile and builds every component.
// Following the teacher's New/initializeComponents split, configuration
// is loaded and validated before any component is constructed, so a bad
// config fails fast.
func New(configFile string) (*App, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	sp, err := policy.New(cfg.Policy, cfg.PackagePrefix, logger)
	if err != nil {
		return nil, fmt.Errorf("build selection policy: %w", err)
	}

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build trace event pipeline: %w", err)
	}
	agent.Install(p)

	obs, err := obstrace.New(obstrace.DefaultConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("build self-observability tracer: %w", err)
	}

	a := &App{
		config:     &cfg,
		logger:     logger,
		Policy:     sp,
		Rewriter:   rewriter.New(sp, logger),
		Launcher:   launcher.New(sp, logger),
		Pipeline:   p,
		Queries:    query.NewManager(logger),
		obstrace:   obs,
		metricsSrv: metrics.NewServer(":9090", logger),
	}
	return a, nil
}

// Config returns the resolved configuration this App was built from.
func (a *App) Config() types.Config { return *a.config }

// StartMetrics launches the ambient Prometheus endpoint in the background.
func (a *App) StartMetrics() error {
	return a.metricsSrv.Start()
}

// Inject runs the Instrumentation Engine over a target source tree ahead
// of a build, per the Go-host half of the Launcher contract.
func (a *App) Inject(root string) (launcher.Summary, error) {
	_, span := a.obstrace.StartSpan(context.Background(), "app.Inject")
	defer span.End()
	return a.Launcher.Inject(root)
}

// OpenQuery loads a completed main log file into a new Query Session.
func (a *App) OpenQuery(path string) (query.OpenResult, error) {
	_, span := a.obstrace.StartSpan(context.Background(), "app.OpenQuery")
	defer span.End()
	return a.Queries.Open(path)
}

// Shutdown stops the pipeline, metrics server, and self-observability
// tracer in dependency order, matching the teacher's Stop method's
// best-effort shutdown style: every component gets a chance to close
// even if an earlier one fails.
func (a *App) Shutdown(ctx context.Context) error {
	var firstErr error
	recordErr := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if a.metricsSrv != nil {
		recordErr(a.metricsSrv.Stop())
	}
	if a.obstrace != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		recordErr(a.obstrace.Shutdown(shutdownCtx))
	}
	if a.Pipeline != nil {
		recordErr(a.Pipeline.Close())
	}

	if firstErr != nil {
		if appErr, ok := flowtraceerrors.AsAppError(firstErr); ok {
			return appErr
		}
		return fmt.Errorf("shutdown: %w", firstErr)
	}
	return nil
}
