package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/benprew/showtrack"
	"github.com/julienschmidt/httprouter"
)

const JSON = "application/json"

// ShutdownTimeout is the time given for outstanding requests to finish before
// shutdown.
const ShutdownTimeout = 5 * time.Second

type Server struct {
	ln     net.Listener
	server *http.Server
	router *httprouter.Router

	SeasonService showtrack.SeasonService

	Logger *slog.Logger

	// bind address for the listener
	Addr string
}

func NewServer() *Server {
	s := &Server{
		server: &http.Server{ReadHeaderTimeout: 10 * time.Second},
	}
	s.router = s.routes()
	s.server.Handler = s.requestLogger(s.router)
	return s
}

// Open starts listening on Addr and serves requests in the background.
func (s *Server) Open() (err error) {
	if s.ln, err = net.Listen("tcp", s.Addr); err != nil {
		return err
	}
	s.logger().Info("http server listening", "addr", s.ln.Addr().String())

	go func() {
		if err := s.server.Serve(s.ln); err != nil && err != http.ErrServerClosed {
			s.logger().Error("http server stopped", "err", err)
		}
	}()
	return nil
}

// Close gracefully shuts down the server.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// URL returns the local base URL of the running server.
func (s *Server) URL() string {
	if s.ln == nil {
		return ""
	}
	return "http://" + s.ln.Addr().String()
}

// ServeHTTP lets the server be mounted directly, e.g. in httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.server.Handler.ServeHTTP(w, r)
}

func (s *Server) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// ErrorResponse represents a JSON structure for error output.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Error writes a JSON error and logs & reports internal errors.
func (s *Server) Error(w http.ResponseWriter, r *http.Request, err error) {
	// Extract error code & message.
	code, message := showtrack.ErrorCode(err), showtrack.ErrorMessage(err)

	// Log & report internal errors. The client only sees the generic message.
	if code == showtrack.EINTERNAL {
		showtrack.ReportError(r.Context(), err, r.Method+" "+r.URL.Path)
		LogError(r, err)
		message = "Internal error."
	}

	w.Header().Set("Content-Type", JSON)
	w.WriteHeader(ErrorStatusCode(code))
	encodeJSON(w, r, &ErrorResponse{Error: message})
}

// writeJSON encodes v as the 200 response body.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	w.Header().Set("Content-Type", JSON)
	encodeJSON(w, r, v)
}

// encodeJSON writes v to the response. The status line is already sent, so a
// failure can only be logged.
func encodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		LogError(r, err)
	}
}

// requestLogger attaches a request-scoped logger to the context and logs
// each request once it has been served.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := s.logger().With("method", r.Method, "path", r.URL.Path)
		r = r.WithContext(showtrack.NewContextWithLogger(r.Context(), logger))

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		logger.Debug("request", "status", sw.status, "duration", time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// lookup of application error codes to HTTP status codes.
var codes = map[string]int{
	showtrack.ECONFLICT:       http.StatusConflict,
	showtrack.EINVALID:        http.StatusBadRequest,
	showtrack.ENOTFOUND:       http.StatusNotFound,
	showtrack.ENOTIMPLEMENTED: http.StatusNotImplemented,
	showtrack.EUNAUTHORIZED:   http.StatusUnauthorized,
	showtrack.EINTERNAL:       http.StatusInternalServerError,
}

// ErrorStatusCode returns the associated HTTP status code for an application
// error code.
func ErrorStatusCode(code string) int {
	if v, ok := codes[code]; ok {
		return v
	}
	return http.StatusInternalServerError
}

// LogError logs an error with the HTTP route information.
func LogError(r *http.Request, err error) {
	showtrack.LoggerFromContext(r.Context()).Error("http error", "err", err)
}
