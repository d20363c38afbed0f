// Package stubserver is a small HTTP server with predictable endpoints used
// by the transport tests and the `scriptnet stub` command.
package stubserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// MaxBytes caps the /bytes endpoint.
const MaxBytes = 64 << 20

// Server represents the stub HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	logger *zap.Logger
	hangs  chan struct{}
	addr   string
}

// New creates a stub server that will listen on addr.
func New(addr string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		router: chi.NewRouter(),
		logger: logger,
		hangs:  make(chan struct{}, 16),
		addr:   addr,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)

	s.router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusNotFound, "not found")
	})

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.Get("/ok", s.handleOK)
	s.router.HandleFunc("/status/{code}", s.handleStatus)
	s.router.HandleFunc("/echo", s.handleEcho)
	s.router.Get("/bytes/{n}", s.handleBytes)
	s.router.Get("/hang", s.handleHang)
	s.router.Get("/slow/{ms}", s.handleSlow)
	s.router.Get("/redirect/{n}", s.handleRedirect)
}

// Handler exposes the router for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

// HangStarted receives a value each time a /hang request starts.
func (s *Server) HangStarted() <-chan struct{} {
	return s.hangs
}

// Start listens and serves until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting stub server", zap.String("addr", s.addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("shutting down stub server")
	return s.server.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("stub request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) handleOK(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, `{"ok":true}`)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(chi.URLParam(r, "code"))
	if err != nil || code < 100 || code > 999 {
		writeText(w, http.StatusBadRequest, "bad status code")
		return
	}
	writeText(w, code, r.URL.Query().Get("body"))
}

type echoPayload struct {
	Headers map[string]string `json:"headers"`
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Body    string            `json:"body"`
}

func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}
	payload := echoPayload{
		Headers: make(map[string]string, len(r.Header)),
		Method:  r.Method,
		Path:    r.URL.Path,
		Body:    string(body),
	}
	for name, values := range r.Header {
		payload.Headers[name] = strings.Join(values, ", ")
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) handleBytes(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || n < 0 || n > MaxBytes {
		writeText(w, http.StatusBadRequest, "bad byte count")
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(n))

	chunk := []byte(strings.Repeat("x", 64*1024))
	for n > 0 {
		size := min(n, len(chunk))
		if _, err := w.Write(chunk[:size]); err != nil {
			return
		}
		n -= size
	}
}

func (s *Server) handleHang(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	select {
	case s.hangs <- struct{}{}:
	default:
	}
	<-r.Context().Done()
}

func (s *Server) handleSlow(w http.ResponseWriter, r *http.Request) {
	ms, err := strconv.Atoi(chi.URLParam(r, "ms"))
	if err != nil || ms < 0 {
		writeText(w, http.StatusBadRequest, "bad delay")
		return
	}
	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
		s.handleOK(w, r)
	case <-r.Context().Done():
	}
}

func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || n < 0 {
		writeText(w, http.StatusBadRequest, "bad redirect count")
		return
	}
	target := "/ok"
	if n > 0 {
		target = "/redirect/" + strconv.Itoa(n-1)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func writeText(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, body)
}
