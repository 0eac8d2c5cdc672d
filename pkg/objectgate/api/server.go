// Package api exposes the object pipeline over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/tendant/objectgate/pkg/objectgate"
)

// Config controls the HTTP surface
type Config struct {
	ServiceName string
	Logger      *slog.Logger // handler logger (default: slog.Default())
	LogLevel    slog.Level
	LogJSON     bool
	CORSOrigins []string // empty disables CORS handling
	UploadChunk int      // bytes read from a request body per put chunk (default: 64 KiB)
	Metrics     *Metrics // default: NewMetrics()

	// TrustSubjectHeader accepts X-Subject-ID on requests without a bearer
	// token. Enable only behind a proxy that sets the header itself.
	TrustSubjectHeader bool
}

// Server handles HTTP requests for the object pipeline
type Server struct {
	service     objectgate.Service
	logger      *slog.Logger
	metrics     *Metrics
	uploadChunk int
	config      Config
}

// NewServer creates a new HTTP server wrapper
func NewServer(service objectgate.Service, config Config) *Server {
	if config.ServiceName == "" {
		config.ServiceName = "objectgate"
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.UploadChunk <= 0 {
		config.UploadChunk = objectgate.DefaultChunkSize
	}
	if config.Metrics == nil {
		config.Metrics = NewMetrics()
	}
	return &Server{
		service:     service,
		logger:      config.Logger,
		metrics:     config.Metrics,
		uploadChunk: config.UploadChunk,
		config:      config,
	}
}

// Metrics returns the collectors the server records into
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Routes sets up the HTTP routes
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	requestLogger := httplog.NewLogger(s.config.ServiceName, httplog.Options{
		JSON:            s.config.LogJSON,
		LogLevel:        s.config.LogLevel,
		Concise:         true,
		QuietDownRoutes: []string{"/healthz", "/healthz/ready", "/metrics"},
		QuietDownPeriod: 10 * time.Second,
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(requestLogger))
	r.Use(middleware.Recoverer)
	if len(s.config.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.config.CORSOrigins,
			AllowedMethods: []string{"GET", "PUT", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type", "Content-Disposition",
				HeaderSubjectID, HeaderSubjectScope, HeaderObjectMeta, HeaderObjectData, HeaderObjectTagging},
			ExposedHeaders: []string{HeaderObjectMeta, HeaderObjectData, HeaderObjectTagging, HeaderObjectWriter},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.PlainText(w, r, http.StatusText(http.StatusOK))
	})
	r.Get("/healthz/ready", func(w http.ResponseWriter, r *http.Request) {
		render.PlainText(w, r, http.StatusText(http.StatusOK))
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(SubjectMiddleware(s.config.TrustSubjectHeader))

		r.With(s.metrics.Middleware("list")).Get("/objects", s.handleList)
		r.With(s.metrics.Middleware("put")).Put("/objects/{bucket}", s.handlePut)
		r.With(s.metrics.Middleware("get")).Get("/objects/{bucket}/*", s.handleGet)
		r.With(s.metrics.Middleware("put")).Put("/objects/{bucket}/*", s.handlePut)
		r.With(s.metrics.Middleware("delete")).Delete("/objects/{bucket}/*", s.handleDelete)
		r.With(s.metrics.Middleware("copy")).Post("/copy", s.handleCopy)
		r.With(s.metrics.Middleware("move")).Post("/move", s.handleMove)
		r.Get("/buckets", s.handleBuckets)
	})

	return r
}

func (s *Server) handleBuckets(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string][]string{"buckets": s.service.Buckets()})
}

// writeResult renders v with the HTTP status matching the operation status
func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, operation string, status objectgate.Status, v any) {
	s.metrics.observe(operation, status.Code)
	render.Status(r, httpStatus(status.Code))
	render.JSON(w, r, v)
}

func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, operation, message string) {
	st := objectgate.Status{Code: objectgate.CodeBadRequest, Message: message}
	s.writeResult(w, r, operation, st, map[string]objectgate.Status{"operation_status": st})
}

func httpStatus(code int) int {
	if code < 100 || code > 599 {
		return http.StatusInternalServerError
	}
	return code
}
