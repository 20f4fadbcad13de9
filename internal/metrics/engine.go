// Package metrics aggregates multi-label classification quality over the prediction history.
//
// A record carrying ground truth counts as correct only when the predicted label set equals
// the ground-truth set exactly. Labels predicted but absent from the truth are false
// positives; labels in the truth but not predicted are false negatives. Records without
// ground truth count as correct when at least one label was predicted and contribute no
// false positives or negatives.
package metrics

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"ArticlesClassifier/internal/domain"
	"ArticlesClassifier/internal/ports"
)

// Engine records outcomes and computes snapshots. It never mutates history while computing.
type Engine struct {
	history ports.PredictionHistory
	store   ports.SnapshotStore
	labels  []string
	now     func() time.Time
	logger  *slog.Logger
}

// Option customises an Engine.
type Option func(*Engine)

// WithSnapshotStore persists snapshots on Refresh.
func WithSnapshotStore(store ports.SnapshotStore) Option {
	return func(e *Engine) { e.store = store }
}

// WithClock overrides the clock used to stamp recorded outcomes.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine builds an engine over history. vocabulary seeds the reported label set.
func NewEngine(history ports.PredictionHistory, vocabulary []string, opts ...Option) *Engine {
	e := &Engine{
		history: history,
		labels:  vocabulary,
		now:     time.Now,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RecordOutcome appends a prediction together with its ground truth.
func (e *Engine) RecordOutcome(ctx context.Context, predicted, groundTruth []string) error {
	return e.history.Append(ctx, domain.PredictionRecord{
		ID:             uuid.NewString(),
		Predicted:      predicted,
		GroundTruth:    groundTruth,
		HasGroundTruth: true,
		RecordedAt:     e.now().UTC(),
	})
}

// RecordOutcomes appends aligned batches of ground truth and predictions.
func (e *Engine) RecordOutcomes(ctx context.Context, groundTruth, predicted [][]string) error {
	if len(groundTruth) != len(predicted) {
		return domain.NewValidationError("y_true has %d entries but y_pred has %d", len(groundTruth), len(predicted))
	}
	for i := range predicted {
		if err := e.RecordOutcome(ctx, predicted[i], groundTruth[i]); err != nil {
			return errors.Wrapf(err, "record outcome %d", i)
		}
	}
	return nil
}

// RecordPrediction appends a prediction without ground truth.
func (e *Engine) RecordPrediction(ctx context.Context, predicted []string) error {
	return e.history.Append(ctx, domain.PredictionRecord{
		ID:         uuid.NewString(),
		Predicted:  predicted,
		RecordedAt: e.now().UTC(),
	})
}

// ComputeSnapshot derives a snapshot from one consistent view of the history.
// Computing twice without intervening appends yields identical snapshots.
func (e *Engine) ComputeSnapshot(ctx context.Context) (domain.MetricsSnapshot, error) {
	records, err := e.history.List(ctx)
	if err != nil {
		return domain.MetricsSnapshot{}, errors.Wrap(err, "list prediction history")
	}
	return Compute(records, e.labels), nil
}

// Refresh computes a snapshot and persists it when a store is configured.
func (e *Engine) Refresh(ctx context.Context) (domain.MetricsSnapshot, error) {
	snapshot, err := e.ComputeSnapshot(ctx)
	if err != nil {
		return domain.MetricsSnapshot{}, err
	}
	if e.store != nil {
		if err := e.store.SaveSnapshot(ctx, snapshot); err != nil {
			return domain.MetricsSnapshot{}, errors.Wrap(err, "save metrics snapshot")
		}
	}
	e.logger.Debug("metrics refreshed", "samples", snapshot.Overall.TotalSamples, "micro_f1", snapshot.Overall.MicroF1)
	return snapshot, nil
}

// Latest returns the persisted snapshot, computing a fresh one when nothing was stored.
func (e *Engine) Latest(ctx context.Context) (domain.MetricsSnapshot, error) {
	if e.store != nil {
		snapshot, err := e.store.LatestSnapshot(ctx)
		switch {
		case err == nil:
			return snapshot, nil
		case !domain.IsNotFound(err):
			return domain.MetricsSnapshot{}, errors.Wrap(err, "load metrics snapshot")
		}
	}
	return e.ComputeSnapshot(ctx)
}

// Compute is the pure aggregation over records.
func Compute(records []domain.PredictionRecord, vocabulary []string) domain.MetricsSnapshot {
	if len(records) == 0 {
		return domain.EmptySnapshot()
	}

	var (
		correct, falsePositives, falseNegatives int
		lastUpdated                             time.Time
	)
	seen := make(map[string]struct{}, len(vocabulary))
	for _, label := range vocabulary {
		if label = strings.TrimSpace(label); label != "" {
			seen[label] = struct{}{}
		}
	}

	for _, r := range records {
		predicted := labelSet(r.Predicted)
		for label := range predicted {
			seen[label] = struct{}{}
		}
		if r.RecordedAt.After(lastUpdated) {
			lastUpdated = r.RecordedAt
		}

		if !r.HasGroundTruth {
			if len(predicted) > 0 {
				correct++
			}
			continue
		}

		truth := labelSet(r.GroundTruth)
		for label := range truth {
			seen[label] = struct{}{}
		}

		fp := difference(predicted, truth)
		fn := difference(truth, predicted)
		falsePositives += fp
		falseNegatives += fn
		if fp == 0 && fn == 0 {
			correct++
		}
	}

	total := len(records)
	precision := ratio(correct, correct+falsePositives)
	recall := ratio(correct, correct+falseNegatives)
	f1 := 0.0
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	accuracy := ratio(correct, total)

	labels := make([]string, 0, len(seen))
	for label := range seen {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	return domain.MetricsSnapshot{
		Overall: domain.OverallMetrics{
			MicroF1:              f1,
			Precision:            precision,
			Recall:               recall,
			OverallAccuracy:      accuracy,
			TotalSamples:         total,
			CorrectPredictions:   correct,
			IncorrectPredictions: total - correct,
		},
		Confusion: domain.ConfusionSummary{
			CorrectPredictions: correct,
			FalsePositives:     falsePositives,
			FalseNegatives:     falseNegatives,
			TotalPredictions:   total,
			Accuracy:           accuracy,
		},
		Labels:      labels,
		LastUpdated: lastUpdated,
		HasData:     true,
	}
}

func labelSet(labels []string) map[string]struct{} {
	set := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		if l = strings.TrimSpace(l); l != "" {
			set[l] = struct{}{}
		}
	}
	return set
}

// difference counts members of a missing from b.
func difference(a, b map[string]struct{}) int {
	n := 0
	for k := range a {
		if _, ok := b[k]; !ok {
			n++
		}
	}
	return n
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
