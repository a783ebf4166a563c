package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abramin/xreflens/internal/model"
	"github.com/abramin/xreflens/internal/query"
	"github.com/abramin/xreflens/internal/store"
)

// Server is the xreflens HTTP query server.
type Server struct {
	store      *store.Store
	source     *store.Source
	engine     *query.Engine
	httpServer *http.Server
	port       int
	logger     *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Port   int
	DBPath string
}

// New opens the index at cfg.DBPath read-only and creates a server over it.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	st, err := store.Open(cfg.DBPath, store.Options{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return newServer(st, cfg.Port, logger), nil
}

func newServer(st *store.Store, port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	src := store.NewSource(st)
	s := &Server{
		store:  st,
		source: src,
		engine: query.New(src, logger),
		port:   port,
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/query", s.corsMiddleware(s.handleQuery))
	mux.HandleFunc("/api/hierarchy", s.corsMiddleware(s.handleHierarchy))
	mux.HandleFunc("/api/symbol", s.corsMiddleware(s.handleSymbol))
	mux.HandleFunc("/api/stats", s.corsMiddleware(s.handleStats))
	mux.HandleFunc("/api/health", s.corsMiddleware(s.handleHealth))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the server and blocks until SIGINT or SIGTERM.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", fmt.Sprintf("http://localhost:%d", s.port))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		s.store.Close()
		return fmt.Errorf("server error: %w", err)
	}
	s.logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// corsMiddleware adds CORS headers for local development.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding JSON", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeQueryError maps query failures to HTTP statuses.
func (s *Server) writeQueryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, query.ErrInvalidLocus):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrNotIndexed):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, query.ErrUnsupportedKind):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.Error("query failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "query failed")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStats returns index statistics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stats, err := s.store.GetStats()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	s.writeJSON(w, http.StatusOK, stats)
}

// queryResponse is the body of /api/query.
type queryResponse struct {
	Kind string `json:"kind"`
	*query.Result
	// Lines holds "path:line:column:text" for each location when requested.
	Lines []string `json:"lines,omitempty"`
}

// handleQuery handles GET /api/query?kind=Definition&location=file:line:col[&text=1]
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	params := r.URL.Query()
	kind, err := query.ParseKind(params.Get("kind"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.engine.Query(kind, params.Get("location"))
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	if res.Locations != nil {
		res.Locations = query.SortLocations(res.Locations)
	}

	resp := queryResponse{Kind: kind.String(), Result: res}
	if params.Get("text") != "" {
		locs := res.Locations
		if res.Location != "" {
			locs = []string{res.Location}
		}
		for _, l := range locs {
			line, err := query.LocationWithText(l, s.source.Base())
			if err != nil {
				s.logger.Debug("location text unavailable", "location", l, "error", err)
				line = l
			}
			resp.Lines = append(resp.Lines, line)
		}
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// handleHierarchy handles GET /api/hierarchy?location=file:line:col[&format=dot]
func (s *Server) handleHierarchy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	location := r.URL.Query().Get("location")
	if location == "" {
		s.writeError(w, http.StatusBadRequest, "location parameter required")
		return
	}
	file, locus, err := query.ParseLocation(location)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	h, err := s.engine.ClassHierarchy(file, locus)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		filter := DefaultGraphFilter()
		filter.HideExternal = r.URL.Query().Get("hide_external") != ""
		s.writeJSON(w, http.StatusOK, NewGraphBuilder(s.source, filter).Build(h))
	case "dot":
		var buf bytes.Buffer
		if err := query.WriteDOT(&buf, h); err != nil {
			s.writeError(w, http.StatusInternalServerError, "failed to render graph")
			return
		}
		w.Header().Set("Content-Type", "text/vnd.graphviz")
		w.Write(buf.Bytes())
	default:
		s.writeError(w, http.StatusBadRequest, "unknown format "+format)
	}
}

// handleSymbol handles GET /api/symbol?usr=...
func (s *Server) handleSymbol(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	usr := r.URL.Query().Get("usr")
	if usr == "" {
		s.writeError(w, http.StatusBadRequest, "usr parameter required")
		return
	}

	sym, err := s.source.Symbol(usr)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}

	response := struct {
		USR string `json:"usr"`
		*model.Symbol
	}{
		USR:    usr,
		Symbol: sym,
	}
	s.writeJSON(w, http.StatusOK, response)
}
