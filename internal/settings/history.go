package settings

import (
	"context"
	"fmt"
	"time"
)

// Entry is one recorded now-playing change
type Entry struct {
	ID        int64
	SessionID string
	ChannelID string
	Text      string
	PlayedAt  time.Time
}

type entryRow struct {
	ID        int64  `db:"id"`
	SessionID string `db:"session_id"`
	ChannelID string `db:"channel_id"`
	Text      string `db:"text"`
	PlayedAt  int64  `db:"played_at"`
}

// Record appends a now-playing change to the history
func (s *Store) Record(ctx context.Context, channelID, text string, at time.Time) error {
	query := `
		INSERT INTO now_playing (session_id, channel_id, text, played_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, s.sessionID, channelID, text, at.Unix()); err != nil {
		return fmt.Errorf("failed to record now playing: %w", err)
	}
	return nil
}

// Recent returns up to limit history entries, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows []entryRow
	query := `
		SELECT id, session_id, channel_id, text, played_at
		FROM now_playing
		ORDER BY played_at DESC, id DESC
		LIMIT ?
	`
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, Entry{
			ID:        r.ID,
			SessionID: r.SessionID,
			ChannelID: r.ChannelID,
			Text:      r.Text,
			PlayedAt:  time.Unix(r.PlayedAt, 0),
		})
	}
	return entries, nil
}

// Prune deletes history entries older than the cutoff
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM now_playing WHERE played_at < ?`, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n, nil
}
