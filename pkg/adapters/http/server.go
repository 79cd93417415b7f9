package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aretw0/amrviz"
	"github.com/aretw0/amrviz/internal/logging"
	"github.com/aretw0/amrviz/pkg/domain"
	"github.com/aretw0/amrviz/pkg/service"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime"
)

//go:embed openapi.yaml
var openAPISpec []byte

//go:embed dashboard.html
var dashboardHTML []byte

// maxBodyBytes bounds the size of a solve request.
const maxBodyBytes = 1 << 20

// SessionHeader carries the session ID of a request.
const SessionHeader = "X-Session-ID"

// Service is the use-case layer the handlers call.
type Service interface {
	Solve(ctx context.Context, sessionID string, params domain.SolveParams) (*domain.SolveResult, error)
	Open(ctx context.Context, sessionID, name string) (io.ReadCloser, fs.FileInfo, error)
	Geometry(ctx context.Context, sessionID, name, scalar string) (*service.Geometry, error)
	Session(ctx context.Context, sessionID string) (*domain.Session, error)
	Sessions(ctx context.Context) ([]string, error)
	CreateSession(ctx context.Context) (*domain.Session, error)
}

// Server holds the dependencies of the handlers.
type Server struct {
	svc     Service
	streams *StreamManager
	metrics http.Handler
	spec    *openapi3.T
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithStreams enables GET /sessions/{id}/events. Pass the same manager to
// service.WithNotifier.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.streams = sm
	}
}

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// LoadSpec parses and validates the embedded OpenAPI document.
func LoadSpec() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openAPISpec)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI spec: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI spec: %w", err)
	}
	return doc, nil
}

// NewHandler creates the HTTP handler for svc.
func NewHandler(svc Service, opts ...Option) (http.Handler, error) {
	spec, err := LoadSpec()
	if err != nil {
		return nil, err
	}
	s := &Server{
		svc:    svc,
		spec:   spec,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/", s.Dashboard)
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openAPISpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Post("/solve", s.Solve)
	r.Get("/data/*", s.GetFile)
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Post("/", s.CreateSession)
		r.Get("/{id}", s.GetSession)
		r.Get("/{id}/data/*", s.GetSessionFile)
		r.Get("/{id}/geometry", s.GetGeometry)
		r.Get("/{id}/events", s.SubscribeEvents)
	})

	return enableCORS(r), nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+SessionHeader)
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>amrviz API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Details: details})
}

// Solve handles POST /solve.
func (s *Server) Solve(w http.ResponseWriter, r *http.Request) {
	sessionID, err := requestSessionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid session id", err.Error())
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if len(data) > maxBodyBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "Request body too large", "")
		return
	}
	params, err := s.decodeSolveRequest(data)
	if err != nil {
		status := http.StatusBadRequest
		msg := "Invalid parameters"
		if errors.Is(err, errNoInput) {
			msg = "No input data provided"
		}
		s.logger.Warn("Solve: rejected request", "session_id", sessionID, "error", err)
		writeError(w, status, msg, err.Error())
		return
	}

	res, err := s.svc.Solve(r.Context(), sessionID, params)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidParams) {
			writeError(w, http.StatusBadRequest, "Invalid parameters", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "An error occurred during computation", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// requestSessionID reads the session from the header, then the query,
// then falls back to the default session.
func requestSessionID(r *http.Request) (string, error) {
	var id string
	if v := r.Header.Get(SessionHeader); v != "" {
		err := runtime.BindStyledParameterWithOptions("simple", SessionHeader, v, &id, runtime.BindStyledParameterOptions{
			ParamLocation: runtime.ParamLocationHeader,
			Explode:       false,
			Required:      false,
		})
		if err != nil {
			return "", err
		}
	}
	if id == "" {
		if err := runtime.BindQueryParameter("form", true, false, "session_id", r.URL.Query(), &id); err != nil {
			return "", err
		}
	}
	if id == "" {
		return domain.DefaultSessionID, nil
	}
	return id, domain.ValidateSessionID(id)
}

func pathSessionID(r *http.Request) (string, error) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		return "", err
	}
	return id, domain.ValidateSessionID(id)
}

// GetFile handles GET /data/{filename} for the default session.
func (s *Server) GetFile(w http.ResponseWriter, r *http.Request) {
	s.serveFile(w, r, domain.DefaultSessionID, chi.URLParam(r, "*"))
}

// GetSessionFile handles GET /sessions/{id}/data/{filename}.
func (s *Server) GetSessionFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathSessionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid session id", err.Error())
		return
	}
	s.serveFile(w, r, id, chi.URLParam(r, "*"))
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, sessionID, name string) {
	rc, info, err := s.svc.Open(r.Context(), sessionID, name)
	if err != nil {
		if errors.Is(err, domain.ErrFileNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("File '%s' not found", name), "")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to open file", err.Error())
		return
	}
	defer rc.Close()

	ctype := mime.TypeByExtension(path.Ext(name))
	switch strings.ToLower(path.Ext(name)) {
	case ".vtu", ".pvd":
		ctype = "text/xml; charset=utf-8"
	}
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, path.Base(name), info.ModTime(), rs)
		return
	}
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("File download interrupted", "file", name, "error", err)
	}
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.svc.Sessions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions", err.Error())
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

// CreateSession handles POST /sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.svc.CreateSession(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create session", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathSessionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid session id", err.Error())
		return
	}
	sess, err := s.svc.Session(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Session '%s' not found", id), "")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load session", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// GetGeometry handles GET /sessions/{id}/geometry?file=&scalar=.
func (s *Server) GetGeometry(w http.ResponseWriter, r *http.Request) {
	id, err := pathSessionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid session id", err.Error())
		return
	}
	var file, scalar string
	if err := runtime.BindQueryParameter("form", true, true, "file", r.URL.Query(), &file); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid query", err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "scalar", r.URL.Query(), &scalar); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid query", err.Error())
		return
	}

	geo, err := s.svc.Geometry(r.Context(), id, file, scalar)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, geo)
	case errors.Is(err, domain.ErrFileNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("File '%s' not found", file), "")
	case errors.Is(err, domain.ErrInvalidParams):
		writeError(w, http.StatusBadRequest, "Invalid query", err.Error())
	default:
		writeError(w, http.StatusUnprocessableEntity, "Failed to read geometry", err.Error())
	}
}

// SubscribeEvents handles GET /sessions/{id}/events (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	if s.streams == nil {
		writeError(w, http.StatusNotFound, "Event streaming disabled", "")
		return
	}
	id, err := pathSessionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid session id", err.Error())
		return
	}
	s.streams.serveEvents(w, r, id, s.logger)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if s.spec.Info != nil {
		apiVersion = s.spec.Info.Version
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "amrviz-http",
		"version":     strings.TrimSpace(amrviz.Version),
		"api_version": apiVersion,
	})
}

// Dashboard serves the browser UI.
func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(dashboardHTML)
}
