package fewshot

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArticlesClassifier/internal/domain"
	"ArticlesClassifier/internal/retry"
)

type temporaryError struct{ temporary bool }

func (e temporaryError) Error() string   { return "upstream failure" }
func (e temporaryError) Temporary() bool { return e.temporary }

// scriptedGenerator fails the first failures calls with err and then answers reply.
type scriptedGenerator struct {
	failures int32
	err      error
	reply    string
	pingErr  error

	calls      atomic.Int32
	lastPrompt atomic.Value
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	n := g.calls.Add(1)
	g.lastPrompt.Store(prompt)
	if n <= g.failures {
		return "", g.err
	}
	return g.reply, nil
}

func (g *scriptedGenerator) Ping(ctx context.Context) error { return g.pingErr }

func fastRetry() retry.Config {
	return retry.Config{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, BackoffMultiple: 2}
}

func testArticle() domain.Article {
	return domain.Article{Title: "Cardiac  outcomes", Abstract: "Blood pressure\nand heart rate."}
}

func TestClassifyParsesMultiLabelAnswer(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{reply: " Cardiovascular | hepatorenal\nsome trailing explanation"}
	c := New(gen, Config{Retry: fastRetry()}, nil)

	labels, err := c.Classify(context.Background(), testArticle())
	require.NoError(t, err)
	require.Len(t, labels, 2)
	assert.Equal(t, domain.LabelScore{Label: "Cardiovascular", Score: 0.8}, labels[0])
	assert.Equal(t, "Hepatorenal", labels[1].Label)

	prompt := gen.lastPrompt.Load().(string)
	assert.True(t, strings.HasSuffix(prompt, "Cardiac outcomes\nBlood pressure and heart rate.\nCategory:"))
	assert.Contains(t, prompt, "Categories: Cardiovascular, Neurological, Hepatorenal, Oncological")
	assert.Equal(t, 8, strings.Count(prompt, "\nCategory: "))
}

func TestClassifyRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{failures: 2, err: temporaryError{temporary: true}, reply: "Oncological"}
	c := New(gen, Config{Retry: fastRetry()}, nil)

	labels, err := c.Classify(context.Background(), testArticle())
	require.NoError(t, err)
	assert.Equal(t, "Oncological", labels[0].Label)
	assert.EqualValues(t, 3, gen.calls.Load())
}

func TestClassifyExhaustedRetriesReportBackendUnreachable(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{failures: 100, err: temporaryError{temporary: true}, reply: "Oncological"}
	c := New(gen, Config{Retry: fastRetry()}, nil)

	done := make(chan struct{})
	var (
		labels []domain.LabelScore
		err    error
	)
	go func() {
		defer close(done)
		labels, err = c.Classify(context.Background(), testArticle())
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("classification did not terminate")
	}

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBackendUnreachable))
	assert.Empty(t, labels)
	assert.EqualValues(t, 4, gen.calls.Load())
}

func TestClassifyPermanentFailureIsInferenceError(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{failures: 100, err: temporaryError{temporary: false}}
	c := New(gen, Config{Retry: fastRetry()}, nil)

	_, err := c.Classify(context.Background(), testArticle())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInferenceFailed))
	assert.EqualValues(t, 1, gen.calls.Load())
}

func TestClassifyPacingBeyondDeadlineIsUnreachable(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{reply: "Oncological"}
	c := New(gen, Config{Retry: fastRetry(), RequestsPerMinute: 1}, nil)

	_, err := c.Classify(context.Background(), testArticle())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	started := time.Now()
	_, err = c.Classify(ctx, testArticle())
	require.Error(t, err)
	assert.Less(t, time.Since(started), 150*time.Millisecond)
	assert.True(t, errors.Is(err, domain.ErrBackendUnreachable))
	assert.False(t, errors.Is(err, domain.ErrInferenceFailed))
	assert.EqualValues(t, 1, gen.calls.Load())
}

func TestClassifyUnparseableOutputKeepsRawText(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{reply: "I cannot decide"}
	c := New(gen, Config{Retry: fastRetry()}, nil)

	_, err := c.Classify(context.Background(), testArticle())
	require.Error(t, err)
	assert.True(t, domain.IsParse(err))

	var parseErr *domain.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "I cannot decide", parseErr.Raw)
}

func TestLoadReportsUnreachableEndpoint(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{pingErr: errors.New("connection refused")}
	c := New(gen, Config{}, nil)

	err := c.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBackendUnreachable))
}

func TestParseLabels(t *testing.T) {
	t.Parallel()

	vocab := domain.NewVocabulary(domain.DefaultLabels)

	cases := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "single", raw: "Neurological", want: []string{"Neurological"}},
		{name: "prefixed", raw: "Category: Neurological|Oncological", want: []string{"Neurological", "Oncological"}},
		{name: "commas and case", raw: "oncological, CARDIOVASCULAR", want: []string{"Oncological", "Cardiovascular"}},
		{name: "duplicates dropped", raw: "Hepatorenal|hepatorenal", want: []string{"Hepatorenal"}},
		{name: "unknown tokens ignored", raw: "Dermatological|Hepatorenal", want: []string{"Hepatorenal"}},
		{name: "leading blank lines", raw: "\n\n  Oncological.\nExplanation", want: []string{"Oncological"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, _, err := ParseLabels(tc.raw, vocab)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestBuildPromptRespectsMaxExamples(t *testing.T) {
	t.Parallel()

	prompt := BuildPrompt("T\nA", []string{"X", "Y"}, DefaultExamples(), 2)
	assert.Equal(t, 2, strings.Count(prompt, "Title: "))
	assert.Contains(t, prompt, "Category: Neurological|Hepatorenal")
	assert.NotContains(t, prompt, "interpeduncular")
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	assert.True(t, IsTransient(temporaryError{temporary: true}))
	assert.False(t, IsTransient(temporaryError{temporary: false}))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.False(t, IsTransient(errors.New("bad request")))
	assert.False(t, IsTransient(nil))
}
