package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Usage tracking metrics
	VisitsRecorded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "focusforge_visits_recorded_total",
			Help: "Total site visits recorded by the usage tracker",
		},
	)

	DwellSecondsCredited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "focusforge_dwell_seconds_credited_total",
			Help: "Total foreground dwell time credited to hostnames",
		},
	)

	Flushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusforge_flushes_total",
			Help: "Session flushes by outcome",
		},
		[]string{"result"},
	)

	TrackingActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "focusforge_tracking_active",
			Help: "1 while a foreground page is being timed, 0 when idle",
		},
	)

	StorageWriteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusforge_storage_write_failures_total",
			Help: "Storage writes that failed after retrying",
		},
		[]string{"partition"},
	)

	// Blocking metrics
	RuleSyncs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusforge_rule_syncs_total",
			Help: "Rule set replacements by study mode state and result",
		},
		[]string{"mode", "result"},
	)

	InstalledRules = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "focusforge_installed_rules",
			Help: "Number of block rules currently installed",
		},
	)

	BlockChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusforge_block_checks_total",
			Help: "Block decisions evaluated by the rule engine",
		},
		[]string{"result"},
	)

	// Suggestion metrics
	Suggestions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusforge_suggestions_total",
			Help: "AI suggestion requests by result",
		},
		[]string{"result"},
	)

	SuggestionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "focusforge_suggestion_duration_seconds",
			Help:    "Remote text-generation call duration in seconds",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30},
		},
	)

	// Message metrics
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusforge_messages_total",
			Help: "Messages handled by the router",
		},
		[]string{"kind", "transport"},
	)
)

func init() {
	prometheus.MustRegister(
		VisitsRecorded,
		DwellSecondsCredited,
		Flushes,
		TrackingActive,
		StorageWriteFailures,
		RuleSyncs,
		InstalledRules,
		BlockChecks,
		Suggestions,
		SuggestionDuration,
		MessagesTotal,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
