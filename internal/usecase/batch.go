package usecase

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ArticlesClassifier/internal/domain"
	"ArticlesClassifier/internal/ports"
)

const (
	titleColumn    = "title"
	abstractColumn = "abstract"
	labelsColumn   = "labels"

	// ErrorMarker fills the labels cell of rows that could not be classified.
	ErrorMarker = "#error"

	artifactSuffix = "_classified.csv"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ArticleClassifier is the part of the classification service the batch processor needs.
type ArticleClassifier interface {
	ClassifyOne(ctx context.Context, article domain.Article) (domain.ClassificationResult, error)
}

// BatchDeps wires the batch processor.
type BatchDeps struct {
	Classifier ArticleClassifier
	Artifacts  ports.ArtifactStore
	Notifier   ports.Notifier
	Workers    int
	Logger     *slog.Logger
	Clock      func() time.Time
}

// BatchInput is one tabular upload.
type BatchInput struct {
	Name   string
	Reader io.Reader
}

// BatchProcessor classifies every row of a CSV input and publishes an augmented copy.
type BatchProcessor struct {
	classifier ArticleClassifier
	artifacts  ports.ArtifactStore
	notifier   ports.Notifier
	workers    int
	logger     *slog.Logger
	now        func() time.Time
}

// NewBatchProcessor constructs the batch use case; Workers defaults to 1.
func NewBatchProcessor(deps BatchDeps) *BatchProcessor {
	if deps.Workers <= 0 {
		deps.Workers = 1
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &BatchProcessor{
		classifier: deps.Classifier,
		artifacts:  deps.Artifacts,
		notifier:   deps.Notifier,
		workers:    deps.Workers,
		logger:     deps.Logger,
		now:        deps.Clock,
	}
}

type table struct {
	header   []string
	rows     [][]string
	title    int
	abstract int
	labels   int
}

// Process validates the header, classifies each row and writes the artifact once.
// Row failures are reported in the outcome; schema problems abort before any row runs.
func (p *BatchProcessor) Process(ctx context.Context, in BatchInput) (domain.BatchOutcome, error) {
	if p.classifier == nil || p.artifacts == nil {
		return domain.BatchOutcome{}, errors.New("batch processor is not configured")
	}

	started := p.now()
	outcome := domain.BatchOutcome{
		RunID:     uuid.NewString(),
		InputName: in.Name,
		StartedAt: started.UTC(),
	}
	logger := p.logger.With("run_id", outcome.RunID, "input", in.Name)

	tbl, err := readTable(in.Reader)
	if err != nil {
		return outcome, err
	}
	outcome.TotalRows = len(tbl.rows)
	logger.Info("batch started", "rows", outcome.TotalRows, "workers", p.workers)

	records, err := p.classifyRows(ctx, tbl)
	if err != nil {
		return outcome, err
	}

	for _, r := range records {
		if r.Failed() {
			outcome.FailedRows = append(outcome.FailedRows, domain.RowFailure{Row: r.Index, Reason: r.Err.Error()})
			continue
		}
		outcome.SucceededRows++
	}

	outcome.ArtifactName = ArtifactName(in.Name)
	err = p.artifacts.Write(ctx, outcome.ArtifactName, func(w io.Writer) error {
		return writeTable(w, tbl, records)
	})
	if err != nil {
		return outcome, errors.Wrapf(err, "publish %s", outcome.ArtifactName)
	}

	outcome.Duration = p.now().Sub(started)
	logger.Info("batch finished",
		"succeeded", outcome.SucceededRows,
		"failed", len(outcome.FailedRows),
		"artifact", outcome.ArtifactName,
		"elapsed", outcome.Duration)

	if p.notifier != nil {
		if err := p.notifier.PublishDigest(ctx, buildBatchDigest(outcome)); err != nil {
			logger.Warn("publish batch digest", "error", err)
		}
	}

	return outcome, nil
}

func (p *BatchProcessor) classifyRows(ctx context.Context, tbl table) ([]domain.BatchRecord, error) {
	records := make([]domain.BatchRecord, len(tbl.rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, row := range tbl.rows {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			records[i] = p.classifyRow(gctx, i, cell(row, tbl.title), cell(row, tbl.abstract))
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "batch cancelled")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "batch cancelled")
	}
	return records, nil
}

func (p *BatchProcessor) classifyRow(ctx context.Context, index int, title, abstract string) domain.BatchRecord {
	record := domain.BatchRecord{
		Index:    index,
		Title:    strings.TrimSpace(title),
		Abstract: strings.TrimSpace(abstract),
	}

	article, err := domain.NewArticle(record.Title, record.Abstract)
	if err != nil {
		record.Err = err
		return record
	}

	result, err := p.classifier.ClassifyOne(ctx, article)
	if err != nil {
		p.logger.Debug("row failed", "row", index, "error", err)
		record.Err = err
		return record
	}
	record.Labels = result.Labels
	return record
}

func readTable(r io.Reader) (table, error) {
	if r == nil {
		return table{}, domain.NewSchemaError("no input provided")
	}

	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return table{}, domain.NewSchemaError("input is empty")
	}
	if err != nil {
		return table{}, errors.Mark(errors.Wrap(err, "read header"), domain.ErrSchema)
	}

	tbl := table{header: header, title: -1, abstract: -1, labels: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case titleColumn:
			if tbl.title < 0 {
				tbl.title = i
			}
		case abstractColumn:
			if tbl.abstract < 0 {
				tbl.abstract = i
			}
		case labelsColumn:
			if tbl.labels < 0 {
				tbl.labels = i
			}
		}
	}

	var missing []string
	if tbl.title < 0 {
		missing = append(missing, titleColumn)
	}
	if tbl.abstract < 0 {
		missing = append(missing, abstractColumn)
	}
	if len(missing) > 0 {
		return table{}, domain.NewSchemaError("missing required column(s): %s", strings.Join(missing, ", "))
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return table{}, errors.Mark(errors.Wrap(err, "read rows"), domain.ErrSchema)
	}
	tbl.rows = rows
	return tbl, nil
}

func writeTable(w io.Writer, tbl table, records []domain.BatchRecord) error {
	header := append([]string(nil), tbl.header...)
	labelsAt := tbl.labels
	if labelsAt < 0 {
		labelsAt = len(header)
		header = append(header, labelsColumn)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "write header")
	}
	width := len(tbl.header)
	for i, row := range tbl.rows {
		out := make([]string, len(header), max(len(header), len(row)+1))
		copy(out, row[:min(len(row), width)])
		if records[i].Failed() {
			out[labelsAt] = ErrorMarker
		} else {
			out[labelsAt] = FormatLabels(records[i].Labels)
		}
		// Cells past the header width are kept after the labels column.
		if len(row) > width {
			out = append(out, row[width:]...)
		}
		if err := cw.Write(out); err != nil {
			return errors.Wrapf(err, "write row %d", i)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatLabels renders labels as label:score pairs joined by semicolons, scores with four decimals.
func FormatLabels(labels []domain.LabelScore) string {
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, l.Label+":"+strconv.FormatFloat(l.Score, 'f', 4, 64))
	}
	return strings.Join(parts, ";")
}

// ArtifactName derives the output file name from the uploaded name.
func ArtifactName(input string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(input), "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	name := strings.Trim(b.String(), ".")
	if name == "" {
		name = "batch"
	}
	return name + artifactSuffix
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func buildBatchDigest(o domain.BatchOutcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Batch %s classified\n", o.InputName)
	fmt.Fprintf(&b, "Rows: %d, succeeded: %d, failed: %d\n", o.TotalRows, o.SucceededRows, len(o.FailedRows))
	for i, f := range o.FailedRows {
		if i == 5 {
			fmt.Fprintf(&b, "... and %d more failures\n", len(o.FailedRows)-i)
			break
		}
		fmt.Fprintf(&b, "- row %d: %s\n", f.Row, f.Reason)
	}
	fmt.Fprintf(&b, "Artifact: %s", o.ArtifactName)
	return b.String()
}
