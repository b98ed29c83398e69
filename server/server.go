package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cortexstack/agency/core"
	"github.com/cortexstack/agency/engine"
	"github.com/cortexstack/agency/logging"
)

// Options configures a Server.
type Options struct {
	// Logger receives one structured record per request.
	Logger logging.Logger

	// ReadTimeout and WriteTimeout bound the underlying http.Server.
	// Write is generous because an agent turn can span several model calls.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the HTTP API server over one Supervisor.
type Server struct {
	addr       string
	supervisor *engine.Supervisor
	logger     logging.Logger
	server     *http.Server

	readTimeout  time.Duration
	writeTimeout time.Duration
}

// New creates a server listening on addr (host:port).
func New(addr string, supervisor *engine.Supervisor, optFns ...func(o *Options)) *Server {
	opts := Options{
		Logger:       logging.NoOpLogger{},
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Server{
		addr:         addr,
		supervisor:   supervisor,
		logger:       opts.Logger,
		readTimeout:  opts.ReadTimeout,
		writeTimeout: opts.WriteTimeout,
	}
}

// Handler builds the route table. Exposed so tests can drive the API through
// httptest without binding a socket.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /agency/state", s.handleAgencyState)
	mux.HandleFunc("POST /agency/start", s.handleAgencyStart)
	mux.HandleFunc("POST /agency/stop", s.handleAgencyStop)
	mux.HandleFunc("GET /agency/states", s.handleSnapshotList)
	mux.HandleFunc("GET /agency/state/{name}", s.handleSnapshotGet)

	mux.HandleFunc("GET /agent/{id}/state", s.handleAgentState)
	mux.HandleFunc("POST /agent/{id}/message", s.handleAgentMessage)
	mux.HandleFunc("POST /agent/create", s.handleAgentCreate)

	mux.HandleFunc("GET /health", s.handleHealth)

	return s.withLogging(mux)
}

// Start begins serving HTTP requests and blocks until the listener fails or
// Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	s.logger.Info("server.listening", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("server.request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// agencyStateResponse is the live-agency view: snapshot documents omit the
// running flag, the live endpoint always carries it.
type agencyStateResponse struct {
	Running bool              `json:"running"`
	Agents  []core.AgentState `json:"agents"`
}

func (s *Server) handleAgencyState(w http.ResponseWriter, r *http.Request) {
	state, err := s.supervisor.State(r.Context())
	if errors.Is(err, core.ErrNotRunning) {
		s.writeJSON(w, http.StatusNotFound, agencyStateResponse{Running: false, Agents: []core.AgentState{}})
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, agencyStateResponse{Running: true, Agents: state.Agents})
}

type startRequest struct {
	// Snapshot optionally names a saved snapshot to resume from.
	Snapshot string `json:"snapshot,omitempty"`
}

func (s *Server) handleAgencyStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	if err := s.supervisor.Start(r.Context(), req.Snapshot); err != nil {
		s.writeError(w, err)
		return
	}
	state, err := s.supervisor.State(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, agencyStateResponse{Running: true, Agents: state.Agents})
}

func (s *Server) handleAgencyStop(w http.ResponseWriter, r *http.Request) {
	name, err := s.supervisor.Stop(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"snapshot": name})
}

func (s *Server) handleSnapshotList(w http.ResponseWriter, r *http.Request) {
	names, err := s.supervisor.ListSnapshots(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"states": names})
}

func (s *Server) handleSnapshotGet(w http.ResponseWriter, r *http.Request) {
	state, err := s.supervisor.LoadSnapshot(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleAgentState(w http.ResponseWriter, r *http.Request) {
	state, err := s.supervisor.AgentState(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

type messageRequest struct {
	Message string `json:"message"`
}

type messageResponse struct {
	Reply string          `json:"reply"`
	Agent core.AgentState `json:"agent"`
}

func (s *Server) handleAgentMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req messageRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	if req.Message == "" {
		s.writeBadRequest(w, errors.New("message must not be empty"))
		return
	}

	reply, err := s.supervisor.Dispatch(r.Context(), id, req.Message)
	if err != nil {
		s.writeError(w, err)
		return
	}
	state, err := s.supervisor.AgentState(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, messageResponse{Reply: reply, Agent: state})
}

type createAgentRequest struct {
	Name        string `json:"name"`
	Instruction string `json:"instruction"`
}

func (s *Server) handleAgentCreate(w http.ResponseWriter, r *http.Request) {
	var req createAgentRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	if req.Name == "" {
		s.writeBadRequest(w, errors.New("name must not be empty"))
		return
	}

	state, err := s.supervisor.CreateAgent(r.Context(), req.Name, req.Instruction)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, state)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// decodeBody parses an optional JSON body into v. An empty body is accepted
// so endpoints with all-optional fields can be called bare.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps domain sentinel errors onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrAlreadyRunning),
		errors.Is(err, core.ErrNotRunning),
		errors.Is(err, core.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, core.ErrCorrupt):
		status = http.StatusInternalServerError
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeBadRequest(w http.ResponseWriter, err error) {
	s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
}

// writeJSON encodes v to w, logging failures at debug level. Errors here
// typically mean the client disconnected mid-response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("server.write_failed", "error", err)
	}
}
