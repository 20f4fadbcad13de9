package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"ArticlesClassifier/internal/domain"
	"ArticlesClassifier/internal/usecase"
)

type articleRequest struct {
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
}

type classifyResponse struct {
	Title   string                `json:"title"`
	Labels  []domain.LabelScore   `json:"labels"`
	Backend domain.ClassifierType `json:"backend"`
}

type batchResponse struct {
	Message        string              `json:"message"`
	RunID          string              `json:"run_id"`
	ProcessedRows  int                 `json:"processed_rows"`
	SucceededRows  int                 `json:"succeeded_rows"`
	FailedRows     []domain.RowFailure `json:"failed_rows"`
	OutputFilename string              `json:"output_filename"`
}

type outcomesRequest struct {
	YTrue [][]string `json:"y_true"`
	YPred [][]string `json:"y_pred"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Articles classifier API",
		"version": s.version,
		"status":  "ok",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.classifier.Health(r.Context())
	status, code := "ok", http.StatusOK
	if !health.Ready {
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":  status,
		"ready":   health.Ready,
		"backend": health.Backend,
		"detail":  health.Detail,
	})
}

func (s *Server) handleClassifyArticle(w http.ResponseWriter, r *http.Request) {
	var req articleRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, domain.NewValidationError("invalid request body: %v", err))
		return
	}

	result, err := s.classifier.ClassifyOne(r.Context(), domain.Article{Title: req.Title, Abstract: req.Abstract})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	labels := result.Labels
	if labels == nil {
		labels = []domain.LabelScore{}
	}
	writeJSON(w, http.StatusOK, classifyResponse{Title: result.Title, Labels: labels, Backend: result.Backend})
}

func (s *Server) handleClassifyCSV(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.maxUpload {
		s.writeTooLarge(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeTooLarge(w)
			return
		}
		s.writeError(w, r, domain.NewValidationError("invalid multipart form: %v", err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, domain.NewValidationError("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		s.writeError(w, r, domain.NewValidationError("file must be a CSV, got %q", header.Filename))
		return
	}

	outcome, err := s.batch.Process(r.Context(), usecase.BatchInput{Name: header.Filename, Reader: file})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	failed := outcome.FailedRows
	if failed == nil {
		failed = []domain.RowFailure{}
	}
	writeJSON(w, http.StatusOK, batchResponse{
		Message:        "CSV processed successfully",
		RunID:          outcome.RunID,
		ProcessedRows:  outcome.TotalRows,
		SucceededRows:  outcome.SucceededRows,
		FailedRows:     failed,
		OutputFilename: outcome.ArtifactName,
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	body, err := s.artifacts.Open(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		s.logger.Warn("download interrupted", "file", name, "error", err)
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.metrics.ComputeSnapshot(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleRecordOutcomes(w http.ResponseWriter, r *http.Request) {
	var req outcomesRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 8<<20)).Decode(&req); err != nil {
		s.writeError(w, r, domain.NewValidationError("invalid request body: %v", err))
		return
	}
	if err := s.metrics.RecordOutcomes(r.Context(), req.YTrue, req.YPred); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.handleMetrics(w, r)
}

func (s *Server) writeTooLarge(w http.ResponseWriter) {
	writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{
		Error:  "too_large",
		Detail: "upload exceeds " + strconv.FormatInt(s.maxUpload, 10) + " bytes",
	})
}
