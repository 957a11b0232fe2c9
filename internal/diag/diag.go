// Package diag serves the diagnostics HTTP endpoints: health, the
// operation list and, when MCP runs over HTTP, the MCP handler itself.
package diag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/iambrandonn/editorgate/internal/journal"
	"github.com/iambrandonn/editorgate/internal/resources"
	"github.com/iambrandonn/editorgate/internal/tracker"
)

// MCPPath is where the streamable MCP handler is mounted.
const MCPPath = "/mcp"

const shutdownTimeout = 5 * time.Second

// Options configures the diagnostics server.
type Options struct {
	Version string
	// MCP is mounted at MCPPath when non-nil.
	MCP http.Handler
}

// Server routes diagnostics requests.
type Server struct {
	router  *httprouter.Router
	tracker *tracker.Tracker
	opts    Options
	logger  *slog.Logger
	started time.Time
}

// New creates the diagnostics router over tr.
func New(tr *tracker.Tracker, opts Options, logger *slog.Logger) *Server {
	s := &Server{
		router:  httprouter.New(),
		tracker: tr,
		opts:    opts,
		logger:  logger,
		started: time.Now(),
	}

	s.router.GET("/healthz", s.healthz)
	s.router.GET("/operations", s.operations)
	s.router.GET("/operations/:id", s.operation)
	if opts.MCP != nil {
		for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete} {
			s.router.Handler(method, MCPPath, opts.MCP)
		}
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- server.Serve(ln)
	}()
	s.logger.Info("diagnostics listening", "addr", ln.Addr().String(), "mcp", s.opts.MCP != nil)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down diagnostics server: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Health is the /healthz body.
type Health struct {
	Status     string  `json:"status"`
	Version    string  `json:"version,omitempty"`
	UptimeS    float64 `json:"uptime_s"`
	Operations int     `json:"operations"`
	Running    int     `json:"running"`
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	snap := s.tracker.Snapshot()
	running := 0
	for _, rec := range snap {
		if !rec.Status.Terminal() {
			running++
		}
	}
	s.writeJSON(w, http.StatusOK, Health{
		Status:     "ok",
		Version:    s.opts.Version,
		UptimeS:    time.Since(s.started).Seconds(),
		Operations: len(snap),
		Running:    running,
	})
}

func (s *Server) operations(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query()
	status, err := tracker.ParseStatus(q.Get("status"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records := journal.Filter(s.tracker.Snapshot(), q.Get("action"), status)
	s.writeJSON(w, http.StatusOK, resources.OperationsView(records))
}

func (s *Server) operation(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := params.ByName("id")
	rec, ok := s.tracker.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("operation %s not found", id))
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("failed to encode diagnostics response", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(b); err != nil {
		s.logger.Debug("failed to write diagnostics response", "error", err)
	}
}
