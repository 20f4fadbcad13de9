package storage

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect names a supported database/sql driver.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

// ParseDialect accepts the driver names used in configuration.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pq":
		return DialectPostgres, nil
	}
	return "", errors.Newf("unsupported storage driver %q", s)
}

// Open connects to the database and prepares the schema.
func Open(ctx context.Context, dialect Dialect, dsn string, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	if dialect == DialectSQLite {
		// one writer at a time; WAL lets readers proceed during writes
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA busy_timeout = 5000",
		} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				_ = db.Close()
				return nil, errors.Wrapf(err, "apply %s", pragma)
			}
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	if err := Migrate(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, err
	}

	if logger != nil {
		logger.Info("database opened", "driver", dialect)
	}
	return db, nil
}

// Migrate creates the history and snapshot tables when missing.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	snapshotID := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if dialect == DialectPostgres {
		snapshotID = "id BIGSERIAL PRIMARY KEY"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS prediction_history (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			predicted TEXT NOT NULL,
			ground_truth TEXT,
			has_ground_truth BOOLEAN NOT NULL DEFAULT FALSE,
			backend TEXT NOT NULL DEFAULT '',
			recorded_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_prediction_history_recorded_at ON prediction_history (recorded_at)`,
		`CREATE TABLE IF NOT EXISTS metrics_snapshots (
			` + snapshotID + `,
			payload TEXT NOT NULL,
			computed_at BIGINT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "migrate schema")
		}
	}
	return nil
}
