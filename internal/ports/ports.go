package ports

import (
	"context"
	"io"
	"time"

	"ArticlesClassifier/internal/domain"
)

// Classifier assigns labels to a single article. Implementations are long-lived and
// safe for concurrent use once Load has succeeded.
type Classifier interface {
	Type() domain.ClassifierType
	Load(ctx context.Context) error
	Classify(ctx context.Context, article domain.Article) ([]domain.LabelScore, error)
	Ping(ctx context.Context) error
}

// ScoringModel scores every candidate label for a text in one inference call.
type ScoringModel interface {
	Load(ctx context.Context) error
	Score(ctx context.Context, text string, labels []string) ([]domain.LabelScore, error)
	Ping(ctx context.Context) error
}

// Generator completes a text prompt against a language-model endpoint.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Ping(ctx context.Context) error
}

// PredictionHistory is the append-only log the metrics engine reads from.
type PredictionHistory interface {
	Append(ctx context.Context, record domain.PredictionRecord) error
	List(ctx context.Context) ([]domain.PredictionRecord, error)
}

// SnapshotStore persists the latest computed metrics snapshot.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snapshot domain.MetricsSnapshot) error
	LatestSnapshot(ctx context.Context) (domain.MetricsSnapshot, error)
}

// ArtifactStore publishes batch output files and serves them back.
type ArtifactStore interface {
	Write(ctx context.Context, name string, write func(w io.Writer) error) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// ArticleSource pulls fresh articles from upstream providers.
type ArticleSource interface {
	FetchDaily(ctx context.Context, day time.Time) ([]domain.Article, error)
}

// Notifier streams batch digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when recurring jobs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
