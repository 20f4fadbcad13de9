// Package httpapi exposes classification, batch and metrics operations over JSON/HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"ArticlesClassifier/internal/domain"
	"ArticlesClassifier/internal/logging"
	"ArticlesClassifier/internal/ports"
	"ArticlesClassifier/internal/usecase"
)

const defaultMaxUpload = 32 << 20

// Classifier is the single-article surface of the classification service.
type Classifier interface {
	ClassifyOne(ctx context.Context, article domain.Article) (domain.ClassificationResult, error)
	Health(ctx context.Context) usecase.HealthStatus
}

// BatchRunner processes one uploaded table.
type BatchRunner interface {
	Process(ctx context.Context, in usecase.BatchInput) (domain.BatchOutcome, error)
}

// Metrics records outcomes and computes snapshots.
type Metrics interface {
	RecordOutcomes(ctx context.Context, groundTruth, predicted [][]string) error
	ComputeSnapshot(ctx context.Context) (domain.MetricsSnapshot, error)
}

// Deps wires the HTTP surface.
type Deps struct {
	Classifier     Classifier
	Batch          BatchRunner
	Metrics        Metrics
	Artifacts      ports.ArtifactStore
	Logger         *slog.Logger
	Version        string
	MaxUploadBytes int64
}

// Server owns the route table.
type Server struct {
	classifier Classifier
	batch      BatchRunner
	metrics    Metrics
	artifacts  ports.ArtifactStore
	logger     *slog.Logger
	version    string
	maxUpload  int64
}

func New(deps Deps) *Server {
	deps.Logger = logging.OrDiscard(deps.Logger)
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = defaultMaxUpload
	}
	if deps.Version == "" {
		deps.Version = "dev"
	}
	return &Server{
		classifier: deps.Classifier,
		batch:      deps.Batch,
		metrics:    deps.Metrics,
		artifacts:  deps.Artifacts,
		logger:     deps.Logger,
		version:    deps.Version,
		maxUpload:  deps.MaxUploadBytes,
	}
}

// Handler returns the routed handler wrapped with logging and panic recovery.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /classify_article", s.handleClassifyArticle)
	mux.HandleFunc("POST /classify_articles_in_csv", s.handleClassifyCSV)
	mux.HandleFunc("GET /download/{filename}", s.handleDownload)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("POST /metrics/outcomes", s.handleRecordOutcomes)
	return s.recoverer(s.accessLog(mux))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(started))
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.logger.Error("handler panic", "path", r.URL.Path, "panic", v)
				writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal_error", Detail: "unexpected server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
