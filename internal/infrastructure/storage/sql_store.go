package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/cockroachdb/errors"

	"ArticlesClassifier/internal/domain"
	"ArticlesClassifier/internal/ports"
)

const (
	historyTable  = "prediction_history"
	snapshotTable = "metrics_snapshots"
)

// SQLStore persists prediction history and metrics snapshots in SQLite or Postgres.
type SQLStore struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	now     func() time.Time
}

var (
	_ ports.PredictionHistory = (*SQLStore)(nil)
	_ ports.SnapshotStore     = (*SQLStore)(nil)
)

// NewSQLStore wires a sql.DB; the dialect selects the placeholder format.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	var placeholder sq.PlaceholderFormat = sq.Question
	if dialect == DialectPostgres {
		placeholder = sq.Dollar
	}
	return &SQLStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholder),
		now:     time.Now,
	}
}

// Append inserts one history record.
func (s *SQLStore) Append(ctx context.Context, record domain.PredictionRecord) error {
	predicted, err := json.Marshal(nonNil(record.Predicted))
	if err != nil {
		return errors.Wrap(err, "encode predicted labels")
	}

	var truth sql.NullString
	if record.HasGroundTruth {
		raw, err := json.Marshal(nonNil(record.GroundTruth))
		if err != nil {
			return errors.Wrap(err, "encode ground truth")
		}
		truth = sql.NullString{String: string(raw), Valid: true}
	}

	query, args, err := s.builder.
		Insert(historyTable).
		Columns("id", "title", "predicted", "ground_truth", "has_ground_truth", "backend", "recorded_at").
		Values(record.ID, record.Title, string(predicted), truth, record.HasGroundTruth, string(record.Backend), record.RecordedAt.UnixNano()).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "build insert")
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "insert prediction")
	}
	return nil
}

// List reads the whole history in one statement, oldest first.
func (s *SQLStore) List(ctx context.Context) ([]domain.PredictionRecord, error) {
	query, args, err := s.builder.
		Select("id", "title", "predicted", "ground_truth", "has_ground_truth", "backend", "recorded_at").
		From(historyTable).
		OrderBy("recorded_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build select")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query history")
	}
	defer rows.Close()

	var records []domain.PredictionRecord
	for rows.Next() {
		var (
			r         domain.PredictionRecord
			predicted string
			truth     sql.NullString
			backend   string
			recorded  int64
		)
		if err := rows.Scan(&r.ID, &r.Title, &predicted, &truth, &r.HasGroundTruth, &backend, &recorded); err != nil {
			return nil, errors.Wrap(err, "scan history row")
		}
		if err := json.Unmarshal([]byte(predicted), &r.Predicted); err != nil {
			return nil, errors.Wrapf(err, "decode predicted labels of %s", r.ID)
		}
		if truth.Valid {
			if err := json.Unmarshal([]byte(truth.String), &r.GroundTruth); err != nil {
				return nil, errors.Wrapf(err, "decode ground truth of %s", r.ID)
			}
		}
		r.Backend = domain.ClassifierType(backend)
		r.RecordedAt = time.Unix(0, recorded).UTC()
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate history")
	}
	return records, nil
}

// SaveSnapshot appends a snapshot; LatestSnapshot returns the newest one.
func (s *SQLStore) SaveSnapshot(ctx context.Context, snapshot domain.MetricsSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "encode snapshot")
	}

	query, args, err := s.builder.
		Insert(snapshotTable).
		Columns("payload", "computed_at").
		Values(string(payload), s.now().UTC().UnixNano()).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "build insert")
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "insert snapshot")
	}
	return nil
}

func (s *SQLStore) LatestSnapshot(ctx context.Context) (domain.MetricsSnapshot, error) {
	query, args, err := s.builder.
		Select("payload").
		From(snapshotTable).
		OrderBy("id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return domain.MetricsSnapshot{}, errors.Wrap(err, "build select")
	}

	var payload string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.MetricsSnapshot{}, domain.NewNotFoundError("no metrics snapshot stored")
	}
	if err != nil {
		return domain.MetricsSnapshot{}, errors.Wrap(err, "query snapshot")
	}

	var snapshot domain.MetricsSnapshot
	if err := json.Unmarshal([]byte(payload), &snapshot); err != nil {
		return domain.MetricsSnapshot{}, errors.Wrap(err, "decode snapshot")
	}
	return snapshot, nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
