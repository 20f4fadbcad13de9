package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArticlesClassifier/internal/classifier"
	"ArticlesClassifier/internal/domain"
	"ArticlesClassifier/internal/metrics"
	"ArticlesClassifier/internal/ports"
)

// funcClassifier delegates Classify to fn and counts loads.
type funcClassifier struct {
	kind    domain.ClassifierType
	fn      func(ctx context.Context, a domain.Article) ([]domain.LabelScore, error)
	pingErr error

	mu    sync.Mutex
	loads int
}

func (c *funcClassifier) Type() domain.ClassifierType { return c.kind }

func (c *funcClassifier) Load(ctx context.Context) error {
	c.mu.Lock()
	c.loads++
	c.mu.Unlock()
	return nil
}

func (c *funcClassifier) Classify(ctx context.Context, a domain.Article) ([]domain.LabelScore, error) {
	return c.fn(ctx, a)
}

func (c *funcClassifier) Ping(ctx context.Context) error { return c.pingErr }

func newService(t *testing.T, c *funcClassifier, history ports.PredictionHistory) *ClassificationService {
	t.Helper()

	reg := classifier.NewRegistry(time.Second, nil)
	reg.Register(c.kind, func() (ports.Classifier, error) { return c, nil })

	svc, err := NewClassificationService(ClassificationDeps{
		Registry: reg,
		Backend:  c.kind.String(),
		History:  history,
	})
	require.NoError(t, err)
	return svc
}

func fixed(scores ...domain.LabelScore) func(context.Context, domain.Article) ([]domain.LabelScore, error) {
	return func(context.Context, domain.Article) ([]domain.LabelScore, error) { return scores, nil }
}

func TestClassifyOneNormalizesLabels(t *testing.T) {
	t.Parallel()

	history := metrics.NewMemoryHistory()
	svc := newService(t, &funcClassifier{
		kind: domain.ClassifierZeroShot,
		fn: fixed(
			domain.LabelScore{Label: "Neurological", Score: 0.5},
			domain.LabelScore{Label: "Oncological", Score: 0.95},
			domain.LabelScore{Label: "Neurological", Score: 0.7},
			domain.LabelScore{Label: "Hepatorenal", Score: 0.95},
		),
	}, history)

	result, err := svc.ClassifyOne(context.Background(), domain.Article{Title: "  A title ", Abstract: "An abstract"})
	require.NoError(t, err)

	assert.Equal(t, "A title", result.Title)
	assert.Equal(t, domain.ClassifierZeroShot, result.Backend)
	assert.Equal(t, []domain.LabelScore{
		{Label: "Oncological", Score: 0.95},
		{Label: "Hepatorenal", Score: 0.95},
		{Label: "Neurological", Score: 0.7},
	}, result.Labels)

	records, err := history.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"Oncological", "Hepatorenal", "Neurological"}, records[0].Predicted)
	assert.False(t, records[0].HasGroundTruth)
	assert.NotEmpty(t, records[0].ID)
}

func TestClassifyOneRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	called := false
	svc := newService(t, &funcClassifier{
		kind: domain.ClassifierZeroShot,
		fn: func(context.Context, domain.Article) ([]domain.LabelScore, error) {
			called = true
			return nil, nil
		},
	}, nil)

	_, err := svc.ClassifyOne(context.Background(), domain.Article{Title: "Title", Abstract: "   "})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
	assert.False(t, called)
}

func TestClassifyOneRejectsOutOfRangeScores(t *testing.T) {
	t.Parallel()

	svc := newService(t, &funcClassifier{
		kind: domain.ClassifierFewShot,
		fn:   fixed(domain.LabelScore{Label: "Oncological", Score: 1.5}),
	}, nil)

	_, err := svc.ClassifyOne(context.Background(), domain.Article{Title: "T", Abstract: "A"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInferenceFailed))
}

func TestClassifyOnePropagatesBackendKind(t *testing.T) {
	t.Parallel()

	svc := newService(t, &funcClassifier{
		kind: domain.ClassifierFewShot,
		fn: func(context.Context, domain.Article) ([]domain.LabelScore, error) {
			return nil, domain.MarkAs(errors.New("dial tcp: refused"), domain.ErrBackendUnreachable, "generate")
		},
	}, nil)

	_, err := svc.ClassifyOne(context.Background(), domain.Article{Title: "T", Abstract: "A"})
	require.Error(t, err)
	assert.True(t, domain.IsUnavailable(err))
	assert.False(t, domain.IsValidation(err))
}

func TestNewClassificationServiceRejectsUnknownBackend(t *testing.T) {
	t.Parallel()

	_, err := NewClassificationService(ClassificationDeps{
		Registry: classifier.NewRegistry(0, nil),
		Backend:  "ensemble",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnknownClassifierType))
}

func TestHealthAndWarmup(t *testing.T) {
	t.Parallel()

	c := &funcClassifier{kind: domain.ClassifierZeroShot, fn: fixed()}
	svc := newService(t, c, nil)

	status := svc.Health(context.Background())
	assert.False(t, status.Ready)
	assert.Equal(t, domain.ClassifierZeroShot, status.Backend)

	require.NoError(t, svc.Warmup(context.Background()))
	require.NoError(t, svc.Warmup(context.Background()))
	assert.Equal(t, 1, c.loads)

	status = svc.Health(context.Background())
	assert.True(t, status.Ready)

	c.pingErr = errors.New("model crashed")
	status = svc.Health(context.Background())
	assert.False(t, status.Ready)
	assert.Contains(t, status.Detail, "model crashed")

	require.NoError(t, svc.Close())
}
