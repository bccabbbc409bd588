// Package metrics exposes FlowTrace's Prometheus instrumentation.
//
// Metrics are package-level collectors. All but EventsEmittedTotal register
// with the default registry through promauto when the package loads;
// EventsEmittedTotal is registered by the first NewServer call, guarded by
// sync.Once the way the teacher's metrics package guards against duplicate
// registration when multiple agents share a process.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	// EventsEmittedTotal counts ENTER/EXIT/EXCEPTION records successfully written.
	EventsEmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowtrace_events_emitted_total",
			Help: "Total number of trace events written to the main log",
		},
		[]string{"event"},
	)

	// SegmentationsTotal counts fields replaced by a sidecar reference.
	SegmentationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowtrace_segmentations_total",
			Help: "Total number of oversize fields segmented to sidecar files",
		},
		[]string{"field"},
	)

	// WriterQueueDepth reports the number of events buffered ahead of the main log writer.
	WriterQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flowtrace_writer_queue_depth",
		Help: "Current number of events buffered ahead of the append-only writer",
	})

	// EmissionErrorsTotal counts dropped events due to writer I/O failure.
	EmissionErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowtrace_emission_errors_total",
			Help: "Total number of events dropped due to emission I/O failure",
		},
		[]string{"reason"},
	)

	// RewriteFailuresTotal counts AST rewriter degradations (function- or file-level).
	RewriteFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowtrace_rewrite_failures_total",
			Help: "Total number of functions or files the AST rewriter skipped",
		},
		[]string{"scope", "reason"},
	)

	// InstrumentationErrorsTotal counts modules the runtime interceptor could not wrap.
	InstrumentationErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowtrace_instrumentation_errors_total",
			Help: "Total number of modules the runtime interceptor left unwrapped",
		},
		[]string{"reason"},
	)

	// ModulesWrappedTotal tracks how many modules the interceptor has wrapped so far.
	ModulesWrappedTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flowtrace_modules_wrapped_total",
		Help: "Current number of modules wrapped by the runtime interceptor",
	})

	// ParseErrorsTotal counts malformed lines skipped while opening a main log.
	ParseErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowtrace_parse_errors_total",
		Help: "Total number of malformed lines skipped during Query Session open",
	})

	// QueryDurationSeconds times each Query Session operation by name.
	QueryDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowtrace_query_duration_seconds",
			Help:    "Time spent serving a Query Session operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// SessionsOpenGauge tracks the number of Query Sessions currently held in memory.
	SessionsOpenGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flowtrace_sessions_open",
		Help: "Current number of open Query Sessions",
	})

	metricsRegisteredOnce sync.Once
)

func safeRegister(collector prometheus.Collector) {
	defer func() {
		// Ignore "duplicate metrics collector registration attempted" panics;
		// this lets multiple in-process agents share a default registry.
		recover()
	}()
	prometheus.MustRegister(collector)
}

// Server exposes /metrics and /health over HTTP for operator scraping.
type Server struct {
	server *http.Server
	logger *logrus.Logger
}

// NewServer registers EventsEmittedTotal (once per process) and builds a metrics HTTP server.
func NewServer(addr string, logger *logrus.Logger) *Server {
	metricsRegisteredOnce.Do(func() {
		safeRegister(EventsEmittedTotal)
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{Addr: addr, Handler: mux},
		logger: logger,
	}
}

// Start launches the metrics HTTP server in the background.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.server.Addr).Info("starting metrics server")
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("metrics server error")
		}
	}()
	return nil
}

// Stop shuts the metrics HTTP server down.
func (s *Server) Stop() error {
	s.logger.Info("stopping metrics server")
	return s.server.Close()
}

// RecordEvent increments the emitted-event counter for the given event kind.
func RecordEvent(event string) {
	EventsEmittedTotal.WithLabelValues(event).Inc()
}

// RecordSegmentation increments the segmentation counter for a field name.
func RecordSegmentation(field string) {
	SegmentationsTotal.WithLabelValues(field).Inc()
}

// RecordEmissionError increments the emission-error counter for a reason.
func RecordEmissionError(reason string) {
	EmissionErrorsTotal.WithLabelValues(reason).Inc()
}

// RecordRewriteFailure increments the rewrite-failure counter.
func RecordRewriteFailure(scope, reason string) {
	RewriteFailuresTotal.WithLabelValues(scope, reason).Inc()
}

// RecordInstrumentationError increments the instrumentation-error counter.
func RecordInstrumentationError(reason string) {
	InstrumentationErrorsTotal.WithLabelValues(reason).Inc()
}

// RecordQueryDuration observes how long a named query operation took.
func RecordQueryDuration(operation string, d time.Duration) {
	QueryDurationSeconds.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordParseError increments the malformed-line counter during session open.
func RecordParseError() {
	ParseErrorsTotal.Inc()
}

// SessionOpened increments the open-session gauge.
func SessionOpened() {
	SessionsOpenGauge.Inc()
}

// SessionClosed decrements the open-session gauge.
func SessionClosed() {
	SessionsOpenGauge.Dec()
}
