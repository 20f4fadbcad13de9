package parser

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"

	"ArticlesClassifier/internal/config"
	"ArticlesClassifier/internal/domain"
	"ArticlesClassifier/internal/ports"
	"ArticlesClassifier/internal/scanner"
)

// StrategySource implements ArticleSource via registered scanner strategies.
// A failing site is logged and skipped; the call fails only when every site fails.
type StrategySource struct {
	registry *scanner.Registry
	sites    []config.SiteConfig
	logger   *slog.Logger
}

var _ ports.ArticleSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined sites.
func NewStrategySource(reg *scanner.Registry, sites []config.SiteConfig, logger *slog.Logger) *StrategySource {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &StrategySource{registry: reg, sites: sites, logger: logger}
}

// FetchDaily iterates over configured sites and merges their articles, first occurrence wins.
func (s *StrategySource) FetchDaily(ctx context.Context, day time.Time) ([]domain.Article, error) {
	if s.registry == nil {
		return nil, errors.New("scanner registry is not configured")
	}
	if len(s.sites) == 0 {
		return nil, errors.New("no sites configured")
	}

	s.logger.Debug("fetch daily", "sites", len(s.sites), "day", day.Format(time.DateOnly))

	var (
		aggregated []domain.Article
		failures   error
		failed     int
		seen       = map[string]struct{}{}
	)
	for _, site := range s.sites {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		results, err := s.scanSite(ctx, site, day)
		if err != nil {
			failed++
			failures = errors.CombineErrors(failures, err)
			s.logger.Warn("site scan failed", "site", site.Name, "error", err)
			continue
		}

		for _, article := range results {
			if _, dup := seen[article.ID]; dup {
				continue
			}
			seen[article.ID] = struct{}{}
			if article.Source == "" {
				article.Source = site.Name
			}
			aggregated = append(aggregated, article)
		}
		s.logger.Debug("site produced articles", "site", site.Name, "count", len(results))
	}

	if failed == len(s.sites) {
		return nil, errors.Wrap(failures, "all sites failed")
	}
	s.logger.Info("daily fetch done", "articles", len(aggregated), "failed_sites", failed)
	return aggregated, nil
}

func (s *StrategySource) scanSite(ctx context.Context, site config.SiteConfig, day time.Time) ([]domain.Article, error) {
	strategy, err := s.registry.Resolve(site.Scanner)
	if err != nil {
		return nil, errors.Wrapf(err, "site %s", site.Name)
	}

	results, err := strategy.Scan(ctx, scanner.Request{
		Day:        day,
		SiteName:   site.Name,
		Options:    site.Options,
		Categories: toScannerCategories(site.Categories),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scan site %s", site.Name)
	}
	return results, nil
}

func toScannerCategories(cfg []config.CategoryConfig) []scanner.Category {
	categories := make([]scanner.Category, 0, len(cfg))
	for _, cat := range cfg {
		categories = append(categories, scanner.Category{Name: cat.Name, URL: cat.URL})
	}
	return categories
}
