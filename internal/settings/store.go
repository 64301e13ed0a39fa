package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const (
	keyVolume      = "volume"
	keyLastChannel = "last_channel"
)

// Values are the settings that survive a restart
type Values struct {
	Volume      int
	LastChannel string
}

// Store persists settings and now-playing history in SQLite
type Store struct {
	db        *sqlx.DB
	sessionID string
	logger    zerolog.Logger
}

// Open opens (or creates) the settings database at dbPath
func Open(dbPath string, logger zerolog.Logger) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps in-memory databases consistent
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 10000", // Wait up to 10 seconds on lock
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);

		CREATE TABLE IF NOT EXISTS now_playing (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			text TEXT NOT NULL,
			played_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_now_playing_played_at ON now_playing(played_at);
	`

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{
		db:        db,
		sessionID: uuid.NewString(),
		logger:    logger.With().Str("component", "settings").Logger(),
	}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SessionID identifies the history rows written through this store
func (s *Store) SessionID() string {
	return s.sessionID
}

// ReadVolume returns the persisted volume. A missing, unparsable or
// out-of-range value is reported as absent.
func (s *Store) ReadVolume(ctx context.Context) (int, bool, error) {
	raw, ok, err := s.get(ctx, keyVolume)
	if err != nil || !ok {
		return 0, false, err
	}

	vol, err := strconv.Atoi(raw)
	if err != nil || vol < 0 || vol > 100 {
		s.logger.Warn().Str("value", raw).Msg("Ignoring invalid persisted volume")
		return 0, false, nil
	}
	return vol, true, nil
}

// ReadLastChannel returns the persisted channel id
func (s *Store) ReadLastChannel(ctx context.Context) (string, bool, error) {
	id, ok, err := s.get(ctx, keyLastChannel)
	if err != nil || !ok || id == "" {
		return "", false, err
	}
	return id, true, nil
}

// Write stores both settings in one transaction.
// An empty LastChannel leaves the stored channel untouched.
func (s *Store) Write(ctx context.Context, v Values) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	now := time.Now().Unix()

	if _, err := tx.ExecContext(ctx, query, keyVolume, strconv.Itoa(v.Volume), now); err != nil {
		return fmt.Errorf("failed to write volume: %w", err)
	}
	if v.LastChannel != "" {
		if _, err := tx.ExecContext(ctx, query, keyLastChannel, v.LastChannel, now); err != nil {
			return fmt.Errorf("failed to write last channel: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settings: %w", err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM settings WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}
