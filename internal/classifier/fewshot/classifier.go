// Package fewshot classifies articles by prompting a generation endpoint with labelled exemplars.
package fewshot

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"ArticlesClassifier/internal/domain"
	"ArticlesClassifier/internal/ports"
	"ArticlesClassifier/internal/retry"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultAssignedScore  = 0.8
	defaultMaxExamples    = 8
)

// Config tunes prompt construction, retries and pacing.
type Config struct {
	Labels            []string
	Examples          []Example
	MaxExamples       int
	RequestTimeout    time.Duration
	Retry             retry.Config
	AssignedScore     float64
	RequestsPerMinute int
	MaxInputChars     int
}

func (c *Config) applyDefaults() {
	if len(c.Labels) == 0 {
		c.Labels = domain.DefaultLabels
	}
	if c.Examples == nil {
		c.Examples = DefaultExamples()
	}
	if c.MaxExamples <= 0 {
		c.MaxExamples = defaultMaxExamples
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.Retry == (retry.Config{}) {
		c.Retry = retry.DefaultConfig()
	}
	if c.AssignedScore <= 0 || c.AssignedScore > 1 {
		c.AssignedScore = defaultAssignedScore
	}
}

// Classifier implements ports.Classifier over a ports.Generator.
type Classifier struct {
	gen     ports.Generator
	cfg     Config
	vocab   domain.Vocabulary
	limiter *rate.Limiter
	logger  *slog.Logger

	mu     sync.Mutex
	loaded bool
}

var _ ports.Classifier = (*Classifier)(nil)

// New builds a few-shot classifier. Nothing is contacted until Load or Classify.
func New(gen ports.Generator, cfg Config, logger *slog.Logger) *Classifier {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &Classifier{
		gen:    gen,
		cfg:    cfg,
		vocab:  domain.NewVocabulary(cfg.Labels),
		logger: logger,
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return c
}

func (c *Classifier) Type() domain.ClassifierType {
	return domain.ClassifierFewShot
}

// Load checks that the generation endpoint answers. Subsequent calls are no-ops.
func (c *Classifier) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}
	if err := c.gen.Ping(ctx); err != nil {
		return domain.MarkAs(err, domain.ErrBackendUnreachable, "few-shot warmup")
	}
	c.loaded = true
	c.logger.Info("generation endpoint ready", "examples", min(len(c.cfg.Examples), c.cfg.MaxExamples), "labels", c.vocab.Len())
	return nil
}

// Classify prompts the generator and maps its answer to vocabulary labels.
// Every returned label carries the configured assigned score.
func (c *Classifier) Classify(ctx context.Context, article domain.Article) ([]domain.LabelScore, error) {
	text := article.Text()
	if c.cfg.MaxInputChars > 0 && len([]rune(text)) > c.cfg.MaxInputChars {
		c.logger.Warn("input clipped", "title", article.Title, "limit", c.cfg.MaxInputChars)
		text = clip(text, c.cfg.MaxInputChars)
	}
	prompt := BuildPrompt(text, c.vocab.Labels(), c.cfg.Examples, c.cfg.MaxExamples)

	raw, err := retry.Do(ctx, retry.Options{
		Config:       c.cfg.Retry,
		ErrorChecker: IsTransient,
		Logger:       c.logger,
		Name:         "generate",
	}, func(ctx context.Context, attempt int) (string, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return "", err
				}
				// The next request slot lies beyond the caller's deadline.
				return "", domain.MarkAs(err, domain.ErrBackendUnreachable, "wait for request slot")
			}
		}
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
		return c.gen.Generate(callCtx, prompt)
	})
	if err != nil {
		var exhausted *retry.ExhaustedError
		switch {
		case errors.As(err, &exhausted):
			return nil, domain.MarkAs(err, domain.ErrBackendUnreachable, "few-shot generation")
		case ctx.Err() != nil, domain.IsUnavailable(err):
			return nil, errors.Wrap(err, "few-shot generation")
		default:
			return nil, domain.MarkAs(err, domain.ErrInferenceFailed, "few-shot generation")
		}
	}

	labels, unknown, err := ParseLabels(raw, c.vocab)
	if len(unknown) > 0 {
		c.logger.Debug("dropped unknown labels", "tokens", unknown)
	}
	if err != nil {
		c.logger.Warn("unparseable generation", "title", article.Title, "raw", clip(raw, 200))
		return nil, err
	}

	scores := make([]domain.LabelScore, 0, len(labels))
	for _, label := range labels {
		scores = append(scores, domain.LabelScore{Label: label, Score: c.cfg.AssignedScore})
	}
	return scores, nil
}

// Ping probes the generation endpoint.
func (c *Classifier) Ping(ctx context.Context) error {
	if err := c.gen.Ping(ctx); err != nil {
		return domain.MarkAs(err, domain.ErrBackendUnreachable, "few-shot ping")
	}
	return nil
}

// IsTransient reports failures worth retrying: per-attempt timeouts, network errors and
// errors that declare themselves temporary (HTTP 408, 429 and 5xx from the generators).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) {
		return temporary.Temporary()
	}
	return false
}
