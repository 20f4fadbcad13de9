package usecase

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"

	"ArticlesClassifier/internal/domain"
	"ArticlesClassifier/internal/ports"
)

// ScanDeps wires the daily scan pipeline.
type ScanDeps struct {
	Source ports.ArticleSource
	Batch  *BatchProcessor
	Logger *slog.Logger
}

// ScanPipeline fetches the day's articles and classifies them as one batch.
type ScanPipeline struct {
	source ports.ArticleSource
	batch  *BatchProcessor
	logger *slog.Logger
}

// NewScanPipeline constructs the orchestration component.
func NewScanPipeline(deps ScanDeps) *ScanPipeline {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	return &ScanPipeline{source: deps.Source, batch: deps.Batch, logger: deps.Logger}
}

// ProcessDay builds a CSV from the fetched articles and runs it through the batch processor.
// A day without articles yields ErrNotFound and writes nothing.
func (p *ScanPipeline) ProcessDay(ctx context.Context, day time.Time) (domain.BatchOutcome, error) {
	if p.source == nil || p.batch == nil {
		return domain.BatchOutcome{}, errors.New("scan pipeline is not configured")
	}

	articles, err := p.source.FetchDaily(ctx, day)
	if err != nil {
		return domain.BatchOutcome{}, errors.Wrap(err, "fetch daily")
	}
	if len(articles) == 0 {
		return domain.BatchOutcome{}, domain.NewNotFoundError("no articles published on %s", day.Format(time.DateOnly))
	}

	payload, err := articlesCSV(articles)
	if err != nil {
		return domain.BatchOutcome{}, err
	}

	name := fmt.Sprintf("scan_%s.csv", day.Format(time.DateOnly))
	p.logger.Info("classifying scanned articles", "day", day.Format(time.DateOnly), "articles", len(articles))
	return p.batch.Process(ctx, BatchInput{Name: name, Reader: bytes.NewReader(payload)})
}

func articlesCSV(articles []domain.Article) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"id", titleColumn, abstractColumn, "url", "source", "published_at"}); err != nil {
		return nil, errors.Wrap(err, "write header")
	}
	for _, a := range articles {
		published := ""
		if !a.PublishedAt.IsZero() {
			published = a.PublishedAt.Format(time.DateOnly)
		}
		if err := w.Write([]string{a.ID, a.Title, a.Abstract, a.URL, a.Source, published}); err != nil {
			return nil, errors.Wrapf(err, "write article %s", a.ID)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.Wrap(err, "flush csv")
	}
	return buf.Bytes(), nil
}
