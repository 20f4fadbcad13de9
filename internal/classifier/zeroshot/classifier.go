// Package zeroshot scores every candidate label with a local model and keeps those above a
// confidence threshold.
package zeroshot

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/semaphore"

	"ArticlesClassifier/internal/domain"
	"ArticlesClassifier/internal/ports"
)

const defaultThreshold = 0.9

// Config tunes the zero-shot classifier.
type Config struct {
	Labels        []string
	Threshold     float64
	MaxConcurrent int64
	MaxInputChars int
}

// Classifier implements ports.Classifier over a ports.ScoringModel.
type Classifier struct {
	model  ports.ScoringModel
	cfg    Config
	vocab  domain.Vocabulary
	sem    *semaphore.Weighted
	logger *slog.Logger

	mu     sync.Mutex
	loaded bool
}

var _ ports.Classifier = (*Classifier)(nil)

// New builds the classifier; the model is loaded on first use or by Load.
func New(model ports.ScoringModel, cfg Config, logger *slog.Logger) *Classifier {
	if len(cfg.Labels) == 0 {
		cfg.Labels = domain.DefaultLabels
	}
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		cfg.Threshold = defaultThreshold
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Classifier{
		model:  model,
		cfg:    cfg,
		vocab:  domain.NewVocabulary(cfg.Labels),
		sem:    semaphore.NewWeighted(cfg.MaxConcurrent),
		logger: logger,
	}
}

func (c *Classifier) Type() domain.ClassifierType {
	return domain.ClassifierZeroShot
}

// Load loads the scoring model once. A failed load is retried on the next call.
func (c *Classifier) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}
	if err := c.model.Load(ctx); err != nil {
		return domain.MarkAs(err, domain.ErrModelUnavailable, "load zero-shot model")
	}
	c.loaded = true
	c.logger.Info("zero-shot model loaded", "labels", c.vocab.Len(), "threshold", c.cfg.Threshold)
	return nil
}

// Classify runs one inference and returns labels scoring at least the threshold,
// highest first. The result may be empty when nothing is confident enough.
func (c *Classifier) Classify(ctx context.Context, article domain.Article) ([]domain.LabelScore, error) {
	if err := c.Load(ctx); err != nil {
		return nil, err
	}

	text := article.Text()
	if c.cfg.MaxInputChars > 0 {
		if runes := []rune(text); len(runes) > c.cfg.MaxInputChars {
			c.logger.Warn("input clipped", "title", article.Title, "limit", c.cfg.MaxInputChars)
			text = string(runes[:c.cfg.MaxInputChars])
		}
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, errors.Wrap(err, "wait for inference slot")
	}
	scores, err := c.model.Score(ctx, text, c.vocab.Labels())
	c.sem.Release(1)
	if err != nil {
		if domain.IsUnavailable(err) || ctx.Err() != nil {
			return nil, errors.Wrap(err, "zero-shot inference")
		}
		return nil, domain.MarkAs(err, domain.ErrInferenceFailed, "zero-shot inference")
	}

	kept := make([]domain.LabelScore, 0, len(scores))
	for _, s := range scores {
		label, ok := c.vocab.Match(s.Label)
		if !ok {
			return nil, domain.MarkAs(nil, domain.ErrInferenceFailed, "model returned unknown label "+s.Label)
		}
		if math.IsNaN(s.Score) || s.Score < 0 || s.Score > 1 {
			return nil, errors.Wrapf(domain.ErrInferenceFailed, "score %v for %s outside [0,1]", s.Score, label)
		}
		if s.Score >= c.cfg.Threshold {
			kept = append(kept, domain.LabelScore{Label: label, Score: s.Score})
		}
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	return kept, nil
}

// Ping checks that the model backend is alive.
func (c *Classifier) Ping(ctx context.Context) error {
	if err := c.model.Ping(ctx); err != nil {
		return domain.MarkAs(err, domain.ErrModelUnavailable, "zero-shot ping")
	}
	return nil
}
