package usecase

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"ArticlesClassifier/internal/classifier"
	"ArticlesClassifier/internal/domain"
	"ArticlesClassifier/internal/ports"
)

const defaultProbeTimeout = 3 * time.Second

// ClassificationDeps wires the classification service.
type ClassificationDeps struct {
	Registry     *classifier.Registry
	Backend      string
	History      ports.PredictionHistory
	ProbeTimeout time.Duration
	Logger       *slog.Logger
	Clock        func() time.Time
}

// HealthStatus reports whether the active backend can serve requests.
type HealthStatus struct {
	Ready   bool                  `json:"ready"`
	Backend domain.ClassifierType `json:"backend"`
	Detail  string                `json:"detail,omitempty"`
}

// ClassificationService is the single entry point for classifying one article.
type ClassificationService struct {
	registry     *classifier.Registry
	backend      domain.ClassifierType
	history      ports.PredictionHistory
	probeTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time

	warmMu sync.Mutex
	warm   bool
}

// NewClassificationService validates the configured backend key; unknown keys fail here.
func NewClassificationService(deps ClassificationDeps) (*ClassificationService, error) {
	if deps.Registry == nil {
		return nil, errors.New("classifier registry is not configured")
	}
	backend, err := domain.ParseClassifierType(deps.Backend)
	if err != nil {
		return nil, err
	}
	if deps.ProbeTimeout <= 0 {
		deps.ProbeTimeout = defaultProbeTimeout
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &ClassificationService{
		registry:     deps.Registry,
		backend:      backend,
		history:      deps.History,
		probeTimeout: deps.ProbeTimeout,
		logger:       deps.Logger,
		now:          deps.Clock,
	}, nil
}

// Backend returns the active classifier type.
func (s *ClassificationService) Backend() domain.ClassifierType {
	return s.backend
}

// ClassifyOne validates the article, delegates to the active classifier and normalizes the
// labels (deduplicated, scores within [0,1], highest score first).
func (s *ClassificationService) ClassifyOne(ctx context.Context, article domain.Article) (domain.ClassificationResult, error) {
	validated, err := domain.NewArticle(article.Title, article.Abstract)
	if err != nil {
		return domain.ClassificationResult{}, err
	}
	validated.ID, validated.URL, validated.Source, validated.PublishedAt = article.ID, article.URL, article.Source, article.PublishedAt

	c, err := s.registry.Resolve(s.backend.String())
	if err != nil {
		return domain.ClassificationResult{}, err
	}

	started := s.now()
	scores, err := c.Classify(ctx, validated)
	if err != nil {
		s.logger.Warn("classification failed", "backend", s.backend, "title", validated.Title, "error", err)
		return domain.ClassificationResult{}, errors.Wrapf(err, "classify %q", validated.Title)
	}

	labels, err := normalizeLabels(scores)
	if err != nil {
		return domain.ClassificationResult{}, err
	}

	result := domain.ClassificationResult{
		Title:    validated.Title,
		Labels:   labels,
		Backend:  s.backend,
		Duration: s.now().Sub(started),
	}

	if s.history != nil {
		record := domain.PredictionRecord{
			ID:         uuid.NewString(),
			Title:      validated.Title,
			Predicted:  result.LabelNames(),
			Backend:    s.backend,
			RecordedAt: s.now().UTC(),
		}
		if err := s.history.Append(ctx, record); err != nil {
			s.logger.Error("append prediction history", "error", err)
		}
	}

	s.logger.Debug("article classified", "backend", s.backend, "labels", len(labels), "elapsed", result.Duration)
	return result, nil
}

// Warmup loads the active backend. It is a no-op after the first success.
func (s *ClassificationService) Warmup(ctx context.Context) error {
	s.warmMu.Lock()
	defer s.warmMu.Unlock()
	if s.warm {
		return nil
	}
	if _, err := s.registry.Warmup(ctx, s.backend.String()); err != nil {
		return err
	}
	s.warm = true
	return nil
}

// Health probes the active backend within the probe timeout.
func (s *ClassificationService) Health(ctx context.Context) HealthStatus {
	status := HealthStatus{Backend: s.backend}

	c, ok := s.registry.Lookup(s.backend)
	if !ok {
		status.Detail = "classifier not loaded"
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		status.Detail = err.Error()
		return status
	}
	status.Ready = true
	return status
}

// Close tears down the active classifier.
func (s *ClassificationService) Close() error {
	s.warmMu.Lock()
	s.warm = false
	s.warmMu.Unlock()
	return s.registry.Close()
}

func normalizeLabels(scores []domain.LabelScore) ([]domain.LabelScore, error) {
	out := make([]domain.LabelScore, 0, len(scores))
	pos := make(map[string]int, len(scores))
	for _, s := range scores {
		if math.IsNaN(s.Score) || s.Score < 0 || s.Score > 1 {
			return nil, errors.Wrapf(domain.ErrInferenceFailed, "score %v for %s outside [0,1]", s.Score, s.Label)
		}
		if i, ok := pos[s.Label]; ok {
			if s.Score > out[i].Score {
				out[i].Score = s.Score
			}
			continue
		}
		pos[s.Label] = len(out)
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}
