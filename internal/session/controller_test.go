package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jfmyers9/pyxis/internal/channel"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name        string
		persisted   Persisted
		fallback    string
		wantChannel string
		wantVolume  int
		wantWrite   bool
	}{
		{
			name:        "empty settings fall back to first channel and default volume",
			persisted:   Persisted{},
			wantChannel: "a",
			wantVolume:  100,
			wantWrite:   true,
		},
		{
			name:        "persisted values are used",
			persisted:   Persisted{ChannelID: "b", Volume: 30, HasVolume: true},
			wantChannel: "b",
			wantVolume:  30,
			wantWrite:   false,
		},
		{
			name:        "unknown channel falls back",
			persisted:   Persisted{ChannelID: "gone", Volume: 30, HasVolume: true},
			wantChannel: "a",
			wantVolume:  30,
			wantWrite:   true,
		},
		{
			name:        "configured fallback channel",
			persisted:   Persisted{},
			fallback:    "b",
			wantChannel: "b",
			wantVolume:  100,
			wantWrite:   true,
		},
		{
			name:        "unknown fallback channel uses first listed",
			persisted:   Persisted{},
			fallback:    "nope",
			wantChannel: "a",
			wantVolume:  100,
			wantWrite:   true,
		},
		{
			name:        "out of range volume uses default",
			persisted:   Persisted{ChannelID: "b", Volume: 250, HasVolume: true},
			wantChannel: "b",
			wantVolume:  100,
			wantWrite:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(c *Config) { c.FallbackChannel = tt.fallback })
			s := h.init(t, tt.persisted)

			if s.SelectedID() != tt.wantChannel {
				t.Errorf("selected = %q, want %q", s.SelectedID(), tt.wantChannel)
			}
			if s.Volume != tt.wantVolume {
				t.Errorf("volume = %d, want %d", s.Volume, tt.wantVolume)
			}
			if s.IsPlaying || s.PollTimerActive {
				t.Error("session must start stopped")
			}

			wrote := h.store.writeCount() > 0
			if wrote != tt.wantWrite {
				t.Errorf("wrote settings = %v, want %v", wrote, tt.wantWrite)
			}
			if wrote {
				last := h.store.last()
				if last.LastChannel != tt.wantChannel || last.Volume != tt.wantVolume {
					t.Errorf("persisted %+v", last)
				}
			}
			if n := len(h.proc.snapshot()); n != 0 {
				t.Errorf("Initialize must not touch the player, got %d calls", n)
			}
		})
	}
}

func TestInitialize_EmptyDirectory(t *testing.T) {
	h := newHarness(t, nil)
	h.dir.channels = nil

	s, err := h.ctrl.Initialize(context.Background(), Persisted{})
	if err == nil {
		t.Fatal("expected error for empty directory")
	}
	if s.SelectedChannel != nil {
		t.Error("nothing should be selected")
	}

	if _, err := h.ctrl.ToggleStartStop(context.Background()); !errors.Is(err, ErrNoSelection) {
		t.Errorf("ToggleStartStop: expected ErrNoSelection, got %v", err)
	}
	if h.proc.count("start") != 0 {
		t.Error("player must not start without a selection")
	}
}

func TestPlayChannel_Scenario(t *testing.T) {
	h := newHarness(t, nil)
	h.dir.setText("b", "Artist - Song")

	s := h.init(t, Persisted{})
	if s.SelectedID() != "a" || s.Volume != 100 {
		t.Fatalf("initial state %+v", s)
	}

	s = h.play(t, "b")
	if s.SelectedID() != "b" || !s.IsPlaying || !s.PollTimerActive {
		t.Fatalf("after play: %+v", s)
	}

	calls := h.proc.snapshot()
	want := []string{"stop", "target:" + chanB.URL, "start:" + chanB.URL, "volume"}
	if len(calls) != len(want) {
		t.Fatalf("player calls = %q, want %q", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, calls[i], want[i])
		}
	}

	// Immediate poll on play
	if h.dir.fetchCount() != 1 {
		t.Errorf("expected one immediate fetch, got %d", h.dir.fetchCount())
	}
	if s.LastNowPlaying == nil || s.LastNowPlaying.Text != "Artist - Song" {
		t.Fatalf("LastNowPlaying = %+v", s.LastNowPlaying)
	}

	if np := h.ctrl.OnPollTick(context.Background()); np != nil {
		t.Errorf("unchanged poll returned %+v", np)
	}

	h.dir.setText("b", "Other - Tune")
	np := h.ctrl.OnPollTick(context.Background())
	if np == nil {
		t.Fatal("changed poll returned nothing")
	}
	if !np.Changed || np.Text != "Other - Tune" || np.ChannelID != "b" {
		t.Errorf("NowPlaying = %+v", np)
	}
	if got := h.ctrl.State().LastNowPlaying; got == nil || got.Text != "Other - Tune" {
		t.Errorf("LastNowPlaying not updated: %+v", got)
	}

	if last := h.store.last(); last.LastChannel != "b" {
		t.Errorf("selection not persisted: %+v", last)
	}
}

func TestPlayChannel_InvalidLeavesStateUnchanged(t *testing.T) {
	t.Run("while stopped", func(t *testing.T) {
		h := newHarness(t, nil)
		before := h.init(t, Persisted{})

		after, err := h.ctrl.PlayChannel(context.Background(), "does-not-exist")
		if !errors.Is(err, ErrInvalidChannel) {
			t.Fatalf("expected ErrInvalidChannel, got %v", err)
		}
		var ice *InvalidChannelError
		if !errors.As(err, &ice) || ice.ID != "does-not-exist" {
			t.Errorf("expected InvalidChannelError with id, got %v", err)
		}
		if !errors.Is(err, channel.ErrNotFound) {
			t.Errorf("cause should be preserved, got %v", err)
		}

		if after.IsPlaying || after.PollTimerActive || after.SelectedID() != before.SelectedID() {
			t.Errorf("state changed: before %+v after %+v", before, after)
		}
		if n := len(h.proc.snapshot()); n != 0 {
			t.Errorf("expected no player calls, got %q", h.proc.snapshot())
		}
	})

	t.Run("while playing", func(t *testing.T) {
		h := newHarness(t, nil)
		h.init(t, Persisted{})
		h.play(t, "a")
		h.proc.reset()

		after, err := h.ctrl.PlayChannel(context.Background(), "nope")
		if !errors.Is(err, ErrInvalidChannel) {
			t.Fatalf("expected ErrInvalidChannel, got %v", err)
		}
		if !after.IsPlaying || !after.PollTimerActive || after.SelectedID() != "a" {
			t.Errorf("playback disturbed: %+v", after)
		}
		if n := len(h.proc.snapshot()); n != 0 {
			t.Errorf("expected no player calls, got %q", h.proc.snapshot())
		}
	})
}

func TestPlayThenStop(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, h *harness)
	}{
		{name: "from stopped", setup: func(t *testing.T, h *harness) {}},
		{name: "from playing same channel", setup: func(t *testing.T, h *harness) { h.play(t, "a") }},
		{name: "from playing other channel", setup: func(t *testing.T, h *harness) { h.play(t, "b") }},
		{name: "after explicit stop", setup: func(t *testing.T, h *harness) {
			h.play(t, "b")
			h.ctrl.Stop()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.init(t, Persisted{})
			tt.setup(t, h)

			h.play(t, "a")
			s := h.ctrl.Stop()

			if s.IsPlaying || s.PollTimerActive {
				t.Errorf("after stop: %+v", s)
			}
			if s.SelectedID() != "a" {
				t.Errorf("stop must keep the selection, got %q", s.SelectedID())
			}
			if h.proc.IsActive() {
				t.Error("player still active")
			}
		})
	}
}

func TestStop_IdempotentAndSwallowsErrors(t *testing.T) {
	h := newHarness(t, nil)
	h.init(t, Persisted{})

	h.proc.stopErr = errBoom
	h.ctrl.Stop()
	s := h.ctrl.Stop()
	if s.IsPlaying || s.PollTimerActive {
		t.Errorf("state %+v", s)
	}

	// A failing stop must not prevent a new play
	s = h.play(t, "b")
	if !s.IsPlaying {
		t.Error("play after failing stop should succeed")
	}
}

func TestPlayChannel_StartFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.init(t, Persisted{})
	h.proc.startErr = errBoom

	s, err := h.ctrl.PlayChannel(context.Background(), "b")
	var pe *PlayerError
	if !errors.As(err, &pe) || pe.Op != "start" || !errors.Is(err, errBoom) {
		t.Fatalf("expected start PlayerError, got %v", err)
	}
	if s.IsPlaying || s.PollTimerActive {
		t.Errorf("failed start must leave session stopped: %+v", s)
	}
	if s.SelectedID() != "b" {
		t.Errorf("attempted selection should be recorded, got %q", s.SelectedID())
	}
	if h.dir.fetchCount() != 0 {
		t.Error("failed start must not poll")
	}

	h.proc.startErr = nil
	s, err = h.ctrl.ToggleStartStop(context.Background())
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !s.IsPlaying || s.SelectedID() != "b" {
		t.Errorf("retry should play b: %+v", s)
	}
}

func TestToggleStartStop_IsItsOwnInverse(t *testing.T) {
	h := newHarness(t, nil)
	before := h.init(t, Persisted{ChannelID: "b"})

	s, err := h.ctrl.ToggleStartStop(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !s.IsPlaying || !s.PollTimerActive || s.SelectedID() != "b" {
		t.Fatalf("first toggle: %+v", s)
	}

	s, err = h.ctrl.ToggleStartStop(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if s.IsPlaying || s.PollTimerActive {
		t.Fatalf("second toggle: %+v", s)
	}
	if s.SelectedID() != before.SelectedID() {
		t.Errorf("selection changed from %q to %q", before.SelectedID(), s.SelectedID())
	}
	if h.proc.count("start:"+chanB.URL) != 1 {
		t.Errorf("expected one start of b, calls %q", h.proc.snapshot())
	}
}

func TestAdjustVolume_NoopWhenStopped(t *testing.T) {
	h := newHarness(t, nil)
	before := h.init(t, Persisted{ChannelID: "a", Volume: 50, HasVolume: true})
	writes := h.store.writeCount()

	for _, d := range []Direction{Up, Down} {
		after := h.ctrl.AdjustVolume(d)
		if after.Volume != before.Volume {
			t.Errorf("AdjustVolume(%s) changed volume while stopped", d)
		}
	}
	if n := len(h.proc.snapshot()); n != 0 {
		t.Errorf("expected no player calls, got %q", h.proc.snapshot())
	}
	if h.store.writeCount() != writes {
		t.Error("stopped volume adjust must not persist")
	}
}

func TestAdjustVolume_Clamps(t *testing.T) {
	h := newHarness(t, nil)
	h.init(t, Persisted{ChannelID: "a", Volume: 0, HasVolume: true})
	h.play(t, "a")
	h.proc.reset()

	var s State
	for i := 0; i < 100; i++ {
		s = h.ctrl.AdjustVolume(Up)
	}
	if s.Volume != 100 {
		t.Fatalf("after 100 steps volume = %d", s.Volume)
	}
	if n := h.proc.count("volume"); n != 100 {
		t.Errorf("expected 100 volume commands, got %d", n)
	}

	s = h.ctrl.AdjustVolume(Up)
	if s.Volume != 100 {
		t.Errorf("volume exceeded 100: %d", s.Volume)
	}
	if n := h.proc.count("volume"); n != 100 {
		t.Errorf("clamped step should not reach the player, got %d commands", n)
	}

	s = h.ctrl.AdjustVolume(Down)
	if s.Volume != 99 {
		t.Errorf("down step = %d", s.Volume)
	}
	if last := h.store.last(); last.Volume != 99 {
		t.Errorf("volume not persisted: %+v", last)
	}
}

func TestAdjustVolume_PlayerErrorKeepsValue(t *testing.T) {
	h := newHarness(t, nil)
	h.init(t, Persisted{ChannelID: "a", Volume: 10, HasVolume: true})
	h.play(t, "a")
	h.proc.volumeErr = errBoom

	s := h.ctrl.AdjustVolume(Up)
	if s.Volume != 11 {
		t.Errorf("volume = %d, want 11", s.Volume)
	}
}

func TestOnPollTick_StoppedDoesNotFetch(t *testing.T) {
	h := newHarness(t, nil)
	h.init(t, Persisted{})

	if np := h.ctrl.OnPollTick(context.Background()); np != nil {
		t.Errorf("got %+v while stopped", np)
	}
	if h.dir.fetchCount() != 0 {
		t.Errorf("fetched %d times while stopped", h.dir.fetchCount())
	}
}

func TestPollTick_FetchErrorIsNoChange(t *testing.T) {
	h := newHarness(t, nil)
	h.init(t, Persisted{})
	h.dir.setText("a", "first")
	h.play(t, "a")

	h.dir.fetchErr = errBoom
	if np := h.ctrl.OnPollTick(context.Background()); np != nil {
		t.Errorf("fetch error returned %+v", np)
	}
	s := h.ctrl.State()
	if !s.IsPlaying || !s.PollTimerActive {
		t.Error("fetch error must not disturb playback")
	}
	if s.LastNowPlaying == nil || s.LastNowPlaying.Text != "first" {
		t.Errorf("LastNowPlaying changed on error: %+v", s.LastNowPlaying)
	}
}

func TestPollTick_PlayerExitedStopsSession(t *testing.T) {
	h := newHarness(t, nil)
	h.init(t, Persisted{})
	h.play(t, "a")
	fetches := h.dir.fetchCount()

	h.proc.exit()
	if np := h.ctrl.OnPollTick(context.Background()); np != nil {
		t.Errorf("tick after player exit returned %+v", np)
	}
	if h.dir.fetchCount() != fetches {
		t.Error("tick after player exit must not fetch")
	}
	s := h.ctrl.State()
	if s.IsPlaying || s.PollTimerActive {
		t.Errorf("session should be stopped: %+v", s)
	}
	if s.SelectedID() != "a" {
		t.Errorf("selection lost: %q", s.SelectedID())
	}

	// Toggling restarts the same channel
	if _, err := h.ctrl.ToggleStartStop(context.Background()); err != nil {
		t.Fatalf("ToggleStartStop: %v", err)
	}
	if !h.ctrl.State().IsPlaying {
		t.Error("toggle should restart playback")
	}
}

func TestPollTick_StaleGenerationIgnored(t *testing.T) {
	h := newHarness(t, nil)
	h.init(t, Persisted{})
	h.play(t, "a")
	oldGen := h.ctrl.Generation()

	h.play(t, "b")
	h.dir.setText("b", "new")
	fetches := h.dir.fetchCount()

	if np := h.ctrl.PollTick(context.Background(), oldGen); np != nil {
		t.Errorf("stale tick returned %+v", np)
	}
	if h.dir.fetchCount() != fetches {
		t.Error("stale tick must not fetch")
	}

	h.ctrl.Stop()
	if np := h.ctrl.PollTick(context.Background(), h.ctrl.Generation()); np != nil {
		t.Errorf("tick while stopped returned %+v", np)
	}
}

func TestPollTick_InFlightResultDiscardedOnSwitch(t *testing.T) {
	h := newHarness(t, nil)
	h.init(t, Persisted{})
	h.dir.setText("a", "old")
	h.play(t, "a")
	h.dir.setText("a", "changed while switching")

	// The channel switches while the fetch for a is in flight
	h.dir.onFetch = func(id string) {
		h.dir.setText("b", "b text")
		if _, err := h.ctrl.PlayChannel(context.Background(), "b"); err != nil {
			t.Errorf("PlayChannel(b): %v", err)
		}
	}

	if np := h.ctrl.OnPollTick(context.Background()); np != nil {
		t.Errorf("in-flight result for a applied: %+v", np)
	}

	s := h.ctrl.State()
	if s.SelectedID() != "b" {
		t.Fatalf("selected = %q", s.SelectedID())
	}
	if s.LastNowPlaying == nil || s.LastNowPlaying.ChannelID != "b" {
		t.Errorf("LastNowPlaying should belong to b, got %+v", s.LastNowPlaying)
	}
}

func TestPlayChannel_RestartDebounce(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.RestartDebounce = 750 * time.Millisecond })
	h.init(t, Persisted{})

	h.play(t, "a")
	h.play(t, "a")
	if n := h.proc.count("start"); n != 1 {
		t.Errorf("repeated play inside window started %d times", n)
	}

	// A different channel is never debounced
	h.play(t, "b")
	if n := h.proc.count("start"); n != 2 {
		t.Errorf("switch should start, got %d starts", n)
	}

	h.clock.Advance(time.Second)
	h.play(t, "b")
	if n := h.proc.count("start"); n != 3 {
		t.Errorf("play after window should restart, got %d starts", n)
	}
}

func TestPollTimer_TicksCarryGeneration(t *testing.T) {
	h := newHarness(t, nil)
	h.init(t, Persisted{})

	ticks := make(chan uint64, 4)
	h.ctrl.SetTickHandler(func(gen uint64) { ticks <- gen })

	h.play(t, "a")
	gen := h.ctrl.Generation()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("poll ticker not registered: %v", err)
	}
	h.clock.Advance(30 * time.Second)

	select {
	case got := <-ticks:
		if got != gen {
			t.Errorf("tick generation = %d, want %d", got, gen)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no tick delivered")
	}

	h.ctrl.Stop()
	if np := h.ctrl.PollTick(context.Background(), gen); np != nil {
		t.Error("tick after stop must be ignored")
	}
	if err := h.clock.BlockUntilContext(ctx, 0); err != nil {
		t.Errorf("poll ticker not released after stop: %v", err)
	}
}

func TestPollTimer_DirectPolling(t *testing.T) {
	h := newHarness(t, nil)
	h.init(t, Persisted{})
	h.dir.setText("a", "one")
	h.play(t, "a")
	h.dir.setText("a", "two")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatal(err)
	}
	h.clock.Advance(30 * time.Second)

	waitFor(t, "timer poll", func() bool {
		np := h.ctrl.State().LastNowPlaying
		return np != nil && np.Text == "two"
	})
}

func TestHistory_RecordsChanges(t *testing.T) {
	h := newHarness(t, nil)
	hist := &fakeHistory{}
	h.ctrl.SetHistory(hist)
	h.init(t, Persisted{})

	h.dir.setText("a", "one")
	h.play(t, "a")
	h.ctrl.OnPollTick(context.Background())
	h.dir.setText("a", "two")
	h.ctrl.OnPollTick(context.Background())

	hist.mu.Lock()
	defer hist.mu.Unlock()
	want := []string{"a:one", "a:two"}
	if len(hist.records) != len(want) {
		t.Fatalf("records = %q, want %q", hist.records, want)
	}
	for i := range want {
		if hist.records[i] != want[i] {
			t.Errorf("record %d = %q, want %q", i, hist.records[i], want[i])
		}
	}
}

func TestShutdown(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.PersistInterval = time.Hour })
	h.init(t, Persisted{})
	h.play(t, "b")
	h.ctrl.AdjustVolume(Down)

	// Throttled: the play and volume change are still pending
	if last := h.store.last(); last.LastChannel == "b" {
		t.Fatalf("expected throttled write, got %+v", last)
	}

	h.ctrl.Shutdown()
	if h.proc.IsActive() {
		t.Error("shutdown must stop the player")
	}
	last := h.store.last()
	if last.LastChannel != "b" || last.Volume != 99 {
		t.Errorf("shutdown flush wrote %+v", last)
	}

	writes := h.store.writeCount()
	h.ctrl.Shutdown()
	if h.store.writeCount() != writes {
		t.Error("second shutdown wrote again")
	}

	if _, err := h.ctrl.PlayChannel(context.Background(), "a"); !errors.Is(err, ErrClosed) {
		t.Errorf("play after shutdown: expected ErrClosed, got %v", err)
	}
}

func TestPersistence_ThrottledFlushTimer(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.PersistInterval = 2 * time.Second })
	h.init(t, Persisted{})
	if h.store.writeCount() != 1 {
		t.Fatalf("initial fallback write missing")
	}

	h.play(t, "b")
	if last := h.store.last(); last.LastChannel == "b" {
		t.Fatal("write inside interval should be deferred")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	// Poll ticker plus flush timer
	if err := h.clock.BlockUntilContext(ctx, 2); err != nil {
		t.Fatal(err)
	}
	h.clock.Advance(2 * time.Second)

	waitFor(t, "deferred settings write", func() bool {
		return h.store.last().LastChannel == "b"
	})
}

func TestPersistence_WriteErrorIsNonFatal(t *testing.T) {
	h := newHarness(t, nil)
	h.store.writeErr = errBoom
	h.init(t, Persisted{})

	s := h.play(t, "b")
	if !s.IsPlaying {
		t.Fatal("persist errors must not affect playback")
	}

	h.store.mu.Lock()
	h.store.writeErr = nil
	h.store.mu.Unlock()

	h.ctrl.Flush()
	if last := h.store.last(); last.LastChannel != "b" || last.Volume != 100 {
		t.Errorf("retry after error wrote %+v", last)
	}
}

func TestLoadPersisted(t *testing.T) {
	vol := 42
	store := &fakeStore{volume: &vol, channel: "b"}
	p := LoadPersisted(context.Background(), store, nopLogger())
	if p.ChannelID != "b" || !p.HasVolume || p.Volume != 42 {
		t.Errorf("LoadPersisted = %+v", p)
	}

	store = &fakeStore{readErr: errBoom}
	p = LoadPersisted(context.Background(), store, nopLogger())
	if p.ChannelID != "" || p.HasVolume {
		t.Errorf("read errors should yield absent values, got %+v", p)
	}
}
