// Package api exposes the message router over a loopback HTTP API for the
// extension and the command line.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/goodtune/focusforge/internal/messaging"
	"github.com/goodtune/focusforge/internal/policy"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// Transport is the metrics label for messages arriving over HTTP
const Transport = "http"

const maxBodyBytes = 1 << 20

// RuleLister returns the installed rules
type RuleLister interface {
	Rules(ctx context.Context) ([]policy.Rule, error)
}

// Config holds API server configuration
type Config struct {
	Addr           string
	AllowedOrigins []string
	// SuggestionsPerMinute bounds remote AI calls; 0 disables the limit
	SuggestionsPerMinute int
}

// Server is the loopback HTTP API server
type Server struct {
	server   *http.Server
	router   *messaging.Router
	rules    RuleLister
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new API server
func NewServer(config Config, router *messaging.Router, rules RuleLister, logger zerolog.Logger) *Server {
	s := &Server{
		router: router,
		rules:  rules,
		logger: logger.With().Str("component", "api").Logger(),
	}

	s.server = &http.Server{
		Addr:              config.Addr,
		Handler:           s.Handler(config),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler builds the routed handler with middleware applied
func (s *Server) Handler(config Config) http.Handler {
	r := mux.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(s.logger))

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/message", s.handleMessage).Methods(http.MethodPost)
	v1.HandleFunc("/usage", s.handleGetUsage).Methods(http.MethodGet)
	v1.HandleFunc("/usage", s.handleResetUsage).Methods(http.MethodDelete)
	v1.HandleFunc("/config", s.handleGetConfig).Methods(http.MethodGet)
	v1.HandleFunc("/config", s.handleUpdateConfig).Methods(http.MethodPut)
	v1.HandleFunc("/config/sites", s.handleAddSite).Methods(http.MethodPost)
	v1.HandleFunc("/config/sites/{site}", s.handleRemoveSite).Methods(http.MethodDelete)
	v1.HandleFunc("/rules", s.handleRules).Methods(http.MethodGet)
	v1.HandleFunc("/check", s.handleCheck).Methods(http.MethodGet)

	var suggestion http.Handler = http.HandlerFunc(s.handleSuggestion)
	if config.SuggestionsPerMinute > 0 {
		suggestion = RateLimitMiddleware(NewRateLimiter(config.SuggestionsPerMinute, time.Minute))(suggestion)
	}
	v1.Handle("/suggestion", suggestion).Methods(http.MethodPost)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         86400,
	})

	return c.Handler(r)
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the API server
func (s *Server) Start() error {
	if s.listener == nil {
		ln, err := net.Listen("tcp", s.server.Addr)
		if err != nil {
			return err
		}
		s.listener = ln
	} else {
		s.logger.Debug().Msg("Using systemd socket-activated API listener")
	}

	s.logger.Info().Str("addr", s.listener.Addr().String()).Msg("Starting API server")
	go func() {
		if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()
	return nil
}

// Stop gracefully stops the API server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping API server")
	return s.server.Shutdown(ctx)
}

func (s *Server) respond(w http.ResponseWriter, resp interface{}) {
	status := http.StatusOK
	if sr, ok := resp.(messaging.StatusResponse); ok && sr.Status == messaging.StatusError {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, resp)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req messaging.Request) {
	s.respond(w, s.router.Handle(r.Context(), Transport, req))
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, messaging.StatusResponse{Status: messaging.StatusError, Error: err.Error()})
		return
	}
	s.respond(w, s.router.HandleJSON(r.Context(), Transport, body))
}

func (s *Server) handleGetUsage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.dispatch(w, r, messaging.Request{
		QueryUsage: true,
		Range:      q.Get("range"),
		Summary:    q.Get("summary") == "true" || q.Get("summary") == "1",
	})
}

func (s *Server) handleResetUsage(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, messaging.Request{Action: messaging.ActionResetUsage})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, messaging.Request{Action: messaging.ActionGetConfig})
}

type configUpdate struct {
	Sites       *[]string `json:"sites"`
	ModeEnabled *bool     `json:"modeEnabled"`
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var update configUpdate
	if !decodeBody(w, r, &update) {
		return
	}
	if update.Sites == nil && update.ModeEnabled == nil {
		writeJSON(w, http.StatusBadRequest, messaging.StatusResponse{Status: messaging.StatusError, Error: "sites or modeEnabled is required"})
		return
	}
	s.dispatch(w, r, messaging.Request{Sites: update.Sites, ModeEnabled: update.ModeEnabled})
}

func (s *Server) handleAddSite(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Site string `json:"site"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Site == "" {
		writeJSON(w, http.StatusBadRequest, messaging.StatusResponse{Status: messaging.StatusError, Error: "site is required"})
		return
	}
	s.dispatch(w, r, messaging.Request{AddSite: body.Site})
}

func (s *Server) handleRemoveSite(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, messaging.Request{RemoveSite: mux.Vars(r)["site"]})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, messaging.Request{Action: messaging.ActionCheckBlocked, URL: r.URL.Query().Get("url")})
}

func (s *Server) handleSuggestion(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Prompt string `json:"prompt"`
		Range  string `json:"range"`
	}
	if r.ContentLength != 0 && !decodeBody(w, r, &body) {
		return
	}
	s.dispatch(w, r, messaging.Request{Action: messaging.ActionFetchSuggestion, Prompt: body.Prompt, Range: body.Range})
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.rules.Rules(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, messaging.StatusResponse{Status: messaging.StatusError, Error: err.Error()})
		return
	}
	if rules == nil {
		rules = []policy.Rule{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rules": rules})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, messaging.StatusResponse{Status: messaging.StatusError, Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
