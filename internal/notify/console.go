package notify

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jfmyers9/pyxis/internal/channel"
	"github.com/jfmyers9/pyxis/internal/presentation"
	"github.com/jfmyers9/pyxis/internal/session"
)

// Console prints now-playing changes and notices as plain lines
type Console struct {
	mu    sync.Mutex
	out   io.Writer
	quiet bool
	now   func() time.Time
}

// NewConsole writes to out. When quiet, now-playing lines are suppressed
// but notices are still printed.
func NewConsole(out io.Writer, quiet bool) *Console {
	return &Console{out: out, quiet: quiet, now: time.Now}
}

// StateChanged is a no-op; the console only reports now-playing text
func (c *Console) StateChanged(session.State) {}

// NowPlayingChanged prints "HH:MM - Channel: text"
func (c *Console) NowPlayingChanged(ch channel.Channel, np channel.NowPlaying) {
	if c.quiet || np.Text == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.out, presentation.ConsoleLine(c.now(), ch, np))
}

// Notice prints a user-facing failure
func (c *Console) Notice(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.out, "pyxis: %v\n", err)
}

// Noticers fans a notice out to several sinks
type Noticers []interface{ Notice(error) }

func (n Noticers) Notice(err error) {
	for _, x := range n {
		x.Notice(err)
	}
}
