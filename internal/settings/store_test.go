package settings

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// createTestStore creates an in-memory store for testing
func createTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(":memory:", zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestStore_EmptyReadsAbsent(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	if _, ok, err := store.ReadVolume(ctx); err != nil || ok {
		t.Errorf("ReadVolume on empty store = ok %v, err %v", ok, err)
	}
	if _, ok, err := store.ReadLastChannel(ctx); err != nil || ok {
		t.Errorf("ReadLastChannel on empty store = ok %v, err %v", ok, err)
	}
}

func TestStore_WriteAndRead(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	if err := store.Write(ctx, Values{Volume: 42, LastChannel: "hiphop"}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	vol, ok, err := store.ReadVolume(ctx)
	if err != nil || !ok || vol != 42 {
		t.Errorf("ReadVolume = %d, %v, %v", vol, ok, err)
	}
	id, ok, err := store.ReadLastChannel(ctx)
	if err != nil || !ok || id != "hiphop" {
		t.Errorf("ReadLastChannel = %q, %v, %v", id, ok, err)
	}

	// Overwrite; empty channel keeps the stored one
	if err := store.Write(ctx, Values{Volume: 7}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	vol, _, _ = store.ReadVolume(ctx)
	id, _, _ = store.ReadLastChannel(ctx)
	if vol != 7 || id != "hiphop" {
		t.Errorf("after overwrite got volume %d channel %q", vol, id)
	}
}

func TestStore_InvalidVolumeReadsAbsent(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{name: "not a number", value: "loud"},
		{name: "negative", value: "-3"},
		{name: "too large", value: "101"},
		{name: "empty", value: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := createTestStore(t)
			ctx := context.Background()

			if _, err := store.db.Exec(`INSERT INTO settings (key, value) VALUES ('volume', ?)`, tt.value); err != nil {
				t.Fatal(err)
			}
			if _, ok, err := store.ReadVolume(ctx); err != nil || ok {
				t.Errorf("ReadVolume(%q) = ok %v, err %v; want absent", tt.value, ok, err)
			}
		})
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pyxis.db")
	ctx := context.Background()

	store, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Write(ctx, Values{Volume: 55, LastChannel: "news"}); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	reopened, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = reopened.Close() }()

	vol, _, _ := reopened.ReadVolume(ctx)
	id, _, _ := reopened.ReadLastChannel(ctx)
	if vol != 55 || id != "news" {
		t.Errorf("after reopen got volume %d channel %q", vol, id)
	}
	if reopened.SessionID() == store.SessionID() {
		t.Error("each open should start a new history session")
	}
}

func TestStore_History(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	records := []struct {
		channel string
		text    string
		offset  time.Duration
	}{
		{"a", "first", 0},
		{"a", "second", time.Minute},
		{"b", "third", 2 * time.Minute},
	}
	for _, r := range records {
		if err := store.Record(ctx, r.channel, r.text, base.Add(r.offset)); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	entries, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Text != "third" || entries[1].Text != "second" {
		t.Errorf("unexpected order: %+v", entries)
	}
	if entries[0].SessionID != store.SessionID() {
		t.Errorf("SessionID = %q", entries[0].SessionID)
	}
	if !entries[0].PlayedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("PlayedAt = %v", entries[0].PlayedAt)
	}

	n, err := store.Prune(ctx, base.Add(30*time.Second))
	if err != nil || n != 1 {
		t.Errorf("Prune = %d, %v; want 1", n, err)
	}
	all, _ := store.Recent(ctx, 10)
	if len(all) != 2 {
		t.Errorf("expected 2 entries after prune, got %d", len(all))
	}
}
