package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jfmyers9/pyxis/internal/channel"
	"github.com/jfmyers9/pyxis/internal/settings"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

var (
	chanA = channel.Channel{ID: "a", Name: "Alpha", Genre: "rock", URL: "http://stream/a"}
	chanB = channel.Channel{ID: "b", Name: "Bravo", Genre: "hiphop", URL: "http://stream/b"}
)

type fakeDirectory struct {
	mu       sync.Mutex
	channels []channel.Channel
	texts    map[string]string
	fetchErr error
	fetches  int
	onFetch  func(id string)
}

func newFakeDirectory(channels ...channel.Channel) *fakeDirectory {
	return &fakeDirectory{channels: channels, texts: map[string]string{}}
}

func (d *fakeDirectory) ListChannels(ctx context.Context) ([]channel.Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]channel.Channel(nil), d.channels...), nil
}

func (d *fakeDirectory) ResolveChannel(ctx context.Context, id string) (channel.Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, ch := range d.channels {
		if ch.ID == id {
			return ch, nil
		}
	}
	return channel.Channel{}, channel.ErrNotFound
}

func (d *fakeDirectory) FetchNowPlaying(ctx context.Context, id string) (string, error) {
	d.mu.Lock()
	d.fetches++
	hook := d.onFetch
	d.onFetch = nil
	text, err := d.texts[id], d.fetchErr
	d.mu.Unlock()

	if hook != nil {
		hook(id)
	}
	return text, err
}

func (d *fakeDirectory) setText(id, text string) {
	d.mu.Lock()
	d.texts[id] = text
	d.mu.Unlock()
}

func (d *fakeDirectory) fetchCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fetches
}

type fakePlayer struct {
	mu        sync.Mutex
	calls     []string
	target    string
	active    bool
	startErr  error
	stopErr   error
	volumeErr error
}

func (p *fakePlayer) SetTarget(url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "target:"+url)
	p.target = url
	return nil
}

func (p *fakePlayer) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "start:"+p.target)
	if p.startErr != nil {
		return p.startErr
	}
	p.active = true
	return nil
}

func (p *fakePlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "stop")
	p.active = false
	return p.stopErr
}

func (p *fakePlayer) SetVolume(level int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "volume")
	return p.volumeErr
}

func (p *fakePlayer) IsActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// exit simulates the player process ending on its own
func (p *fakePlayer) exit() {
	p.mu.Lock()
	p.active = false
	p.mu.Unlock()
}

func (p *fakePlayer) count(prefix string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (p *fakePlayer) reset() {
	p.mu.Lock()
	p.calls = nil
	p.mu.Unlock()
}

func (p *fakePlayer) snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

type fakeStore struct {
	mu       sync.Mutex
	volume   *int
	channel  string
	writes   []settings.Values
	writeErr error
	readErr  error
}

func (s *fakeStore) ReadVolume(ctx context.Context) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return 0, false, s.readErr
	}
	if s.volume == nil {
		return 0, false, nil
	}
	return *s.volume, true, nil
}

func (s *fakeStore) ReadLastChannel(ctx context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return "", false, s.readErr
	}
	return s.channel, s.channel != "", nil
}

func (s *fakeStore) Write(ctx context.Context, v settings.Values) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.writes = append(s.writes, v)
	vol := v.Volume
	s.volume = &vol
	s.channel = v.LastChannel
	return nil
}

func (s *fakeStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

func (s *fakeStore) last() settings.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.writes) == 0 {
		return settings.Values{}
	}
	return s.writes[len(s.writes)-1]
}

type fakeHistory struct {
	mu      sync.Mutex
	records []string
}

func (h *fakeHistory) Record(ctx context.Context, channelID, text string, at time.Time) error {
	h.mu.Lock()
	h.records = append(h.records, channelID+":"+text)
	h.mu.Unlock()
	return nil
}

type recorder struct {
	mu         sync.Mutex
	states     []State
	nowPlaying []channel.NowPlaying
}

func (r *recorder) StateChanged(s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *recorder) NowPlayingChanged(ch channel.Channel, np channel.NowPlaying) {
	r.mu.Lock()
	r.nowPlaying = append(r.nowPlaying, np)
	r.mu.Unlock()
}

type harness struct {
	ctrl  *Controller
	dir   *fakeDirectory
	proc  *fakePlayer
	store *fakeStore
	clock *clockwork.FakeClock
}

// newHarness builds a controller over fakes with write-through persistence
func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()

	h := &harness{
		dir:   newFakeDirectory(chanA, chanB),
		proc:  &fakePlayer{},
		store: &fakeStore{},
		clock: clockwork.NewFakeClock(),
	}
	cfg := Config{
		PollInterval:    30 * time.Second,
		PersistInterval: 0,
		RestartDebounce: 0,
		DefaultVolume:   100,
		Clock:           h.clock,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	h.ctrl = New(cfg, h.dir, h.proc, h.store, zerolog.Nop())
	t.Cleanup(h.ctrl.Shutdown)
	return h
}

func (h *harness) init(t *testing.T, p Persisted) State {
	t.Helper()
	s, err := h.ctrl.Initialize(context.Background(), p)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return s
}

func (h *harness) play(t *testing.T, id string) State {
	t.Helper()
	s, err := h.ctrl.PlayChannel(context.Background(), id)
	if err != nil {
		t.Fatalf("PlayChannel(%q): %v", id, err)
	}
	return s
}

// waitFor polls cond until it holds or the deadline passes
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

var errBoom = errors.New("boom")
