package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gatherpoint/api/internal/gateway/helpers"
	"github.com/gatherpoint/api/internal/gateway/types"
)

// snapshotSchemaVersion guards the stored payload shape. A row with an
// unknown version is treated as absent (fall back to seed data) rather
// than migrated.
const snapshotSchemaVersion = 1

// SQLiteStorage implements the durable-storage port: the full event
// collection JSON-serialized in a single keyed row.
type SQLiteStorage struct {
	db *sql.DB
}

// OpenSQLiteStorage opens (creating if needed) the snapshot database
// with WAL mode and a busy timeout so concurrent instances on the same
// file do not trip over each other.
func OpenSQLiteStorage(path string) (*SQLiteStorage, error) {
	escapedPath := url.PathEscape(path)
	dsn := fmt.Sprintf("file:%s?mode=rwc&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", escapedPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	db.SetMaxOpenConns(4)

	storage := &SQLiteStorage{db: db}
	if err := storage.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return storage, nil
}

func (s *SQLiteStorage) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS snapshots (
			key            TEXT PRIMARY KEY,
			schema_version INTEGER NOT NULL,
			payload        BLOB NOT NULL,
			updated_at     TEXT NOT NULL
		)`)
	return err
}

func (s *SQLiteStorage) LoadEvents(ctx context.Context) ([]types.Event, bool, error) {
	var version int
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT schema_version, payload FROM snapshots WHERE key = ?`,
		helpers.EventsSnapshotKey,
	).Scan(&version, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot: %w", err)
	}
	if version != snapshotSchemaVersion {
		log.Printf("ignoring snapshot with unknown schema version %d", version)
		return nil, false, nil
	}

	var events []types.Event
	if err := json.Unmarshal(payload, &events); err != nil {
		return nil, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return events, true, nil
}

func (s *SQLiteStorage) SaveEvents(ctx context.Context, events []types.Event) error {
	payload, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (key, schema_version, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			schema_version = excluded.schema_version,
			payload        = excluded.payload,
			updated_at     = excluded.updated_at`,
		helpers.EventsSnapshotKey, snapshotSchemaVersion, payload,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
