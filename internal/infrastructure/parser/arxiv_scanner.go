package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cockroachdb/errors"

	"ArticlesClassifier/internal/domain"
	"ArticlesClassifier/internal/scanner"
)

const (
	arxivBaseURL    = "https://arxiv.org"
	defaultPageSize = 200
	userAgent       = "ArticlesClassifier/1.0 (+daily listing scan)"
)

var (
	dateExpr  = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)
	spaceExpr = regexp.MustCompile(`\s+`)
)

// ArxivScanner crawls category listing pages and extracts the articles announced on a given day.
type ArxivScanner struct {
	client   *http.Client
	pageSize int
	logger   *slog.Logger
}

// NewArxivScanner wires an HTTP client; pageSize defaults to 200 and can be set per site
// with the "pageSize" option. "maxArticles" caps the result per category.
func NewArxivScanner(client *http.Client, logger *slog.Logger) *ArxivScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ArxivScanner{client: client, pageSize: defaultPageSize, logger: logger}
}

// Name identifies the strategy inside the registry.
func (a *ArxivScanner) Name() string {
	return "arxiv"
}

// Scan walks each category and returns the articles published on the requested day
// that carry both a title and an abstract.
func (a *ArxivScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Article, error) {
	if len(req.Categories) == 0 {
		return nil, errors.Newf("no categories provided for site %s", req.SiteName)
	}

	pageSize := req.IntOption("pageSize", a.pageSize)
	limit := req.IntOption("maxArticles", 0)
	targetDay := truncateDay(req.Day)

	var results []domain.Article
	seen := map[string]struct{}{}

	for _, cat := range req.Categories {
		taken := 0
		for skip := 0; ; skip += pageSize {
			pageURL, err := buildPageURL(cat.URL, skip, pageSize)
			if err != nil {
				return nil, errors.Wrapf(err, "category %s", cat.Name)
			}

			doc, err := a.fetchDocument(ctx, pageURL)
			if err != nil {
				return nil, errors.Wrapf(err, "category %s", cat.Name)
			}

			page, more := a.extractArticles(doc, targetDay, pageSize, req.SiteName, cat.Name)
			for _, article := range page {
				if _, dup := seen[article.ID]; dup {
					continue
				}
				if limit > 0 && taken >= limit {
					more = false
					break
				}
				seen[article.ID] = struct{}{}
				results = append(results, article)
				taken++
			}
			if !more {
				break
			}
		}
		a.logger.Debug("category scanned", "site", req.SiteName, "category", cat.Name, "articles", taken)
	}

	return results, nil
}

func (a *ArxivScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request listing")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("arxiv returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "parse listing")
	}
	return doc, nil
}

// extractArticles collects entries of targetDay; listings are newest first, so the
// first older entry ends the scan.
func (a *ArxivScanner) extractArticles(doc *goquery.Document, targetDay time.Time, pageSize int, siteName, category string) ([]domain.Article, bool) {
	var (
		collected []domain.Article
		more      = true
		processed int
	)

	doc.Find("dl > dt").EachWithBreak(func(i int, dt *goquery.Selection) bool {
		processed++

		article, err := parseEntry(dt, dt.Next(), siteName, category)
		if err != nil {
			a.logger.Debug("skip listing entry", "category", category, "position", i, "error", err)
			return true
		}

		day := truncateDay(article.PublishedAt)
		switch {
		case day.Equal(targetDay):
			collected = append(collected, article)
		case day.Before(targetDay):
			more = false
			return false
		}
		return true
	})

	if processed < pageSize {
		more = false
	}
	return collected, more
}

func parseEntry(dt, dd *goquery.Selection, siteName, category string) (domain.Article, error) {
	link := dt.Find(`a[href*="/abs/"]`).First()
	href, _ := link.Attr("href")
	if href == "" {
		return domain.Article{}, errors.New("entry has no abstract link")
	}

	id := strings.TrimSpace(link.Text())
	if id == "" {
		id = strings.TrimPrefix(href, "/abs/")
	}
	if !strings.HasPrefix(href, "http") {
		href = arxivBaseURL + "/" + strings.TrimPrefix(href, "/")
	}

	title := clean(strings.TrimPrefix(strings.TrimSpace(dd.Find(".list-title").First().Text()), "Title:"))
	abstract := clean(strings.TrimPrefix(strings.TrimSpace(dd.Find("p.mathjax").First().Text()), "Abstract:"))

	dateText := strings.TrimSpace(dd.Find(".list-date").First().Text())
	if dateText == "" {
		dateText = strings.TrimSpace(dd.Find(".list-dateline").First().Text())
	}
	match := dateExpr.FindString(dateText)
	if match == "" {
		return domain.Article{}, errors.Newf("entry %s has no date", id)
	}
	publishedAt, err := time.Parse("2 Jan 2006", match)
	if err != nil {
		return domain.Article{}, errors.Wrapf(err, "entry %s date", id)
	}

	source := siteName
	if category != "" {
		source = fmt.Sprintf("%s/%s", siteName, category)
	}

	article := domain.Article{
		ID:          id,
		Title:       title,
		Abstract:    abstract,
		URL:         href,
		Source:      source,
		PublishedAt: publishedAt,
	}
	if err := article.Validate(); err != nil {
		return domain.Article{}, errors.Wrapf(err, "entry %s", id)
	}
	return article, nil
}

func buildPageURL(base string, skip, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", errors.Wrapf(err, "invalid category url %s", base)
	}

	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("show", strconv.Itoa(pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func clean(s string) string {
	return strings.TrimSpace(spaceExpr.ReplaceAllString(s, " "))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
