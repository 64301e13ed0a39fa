package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/jfmyers9/pyxis/internal/channel"
	"github.com/jfmyers9/pyxis/internal/presentation"
	"github.com/jfmyers9/pyxis/internal/router"
	"github.com/jfmyers9/pyxis/internal/session"
	"github.com/rivo/tview"
)

const maxRecent = 5

// Config holds TUI configuration options
type Config struct {
	RefreshRate time.Duration // How often pending changes are drawn
	LabelWidth  int           // Channel labels are truncated to this many cells, 0 for no limit
}

// DefaultConfig returns the default TUI configuration
func DefaultConfig() Config {
	return Config{
		RefreshRate: 200 * time.Millisecond,
		LabelWidth:  40,
	}
}

// Poster queues a signal for the router without waiting
type Poster interface {
	Post(sig router.Signal) bool
}

// recentItem is one now-playing line in the recent panel
type recentItem struct {
	Channel string
	Text    string
	At      time.Time
}

// App is the terminal tray: a play/stop header, the volume line, a genre
// tree of channels and the last few now-playing changes.
type App struct {
	app    *tview.Application
	header *tview.TextView
	tree   *tview.TreeView
	recent *tview.TextView
	status *tview.TextView

	config Config
	poster Poster

	// Guarded by mu. Listener callbacks only record state; the refresh
	// loop is the sole source of redraws.
	mu         sync.Mutex
	state      session.State
	channels   []channel.Channel
	recentBuf  [maxRecent]recentItem
	recentN    int
	dirty      bool
	lastHeader string
	lastRecent string
	lastMenu   string

	cancelFunc context.CancelFunc
}

// New creates a tray that posts user input to poster
func New(cfg Config, poster Poster) *App {
	if cfg.RefreshRate <= 0 {
		cfg.RefreshRate = DefaultConfig().RefreshRate
	}
	a := &App{
		app:    tview.NewApplication(),
		config: cfg,
		poster: poster,
	}
	a.setupUI()
	return a
}

// setupUI creates the UI layout
func (a *App) setupUI() {
	a.header = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.header.SetBorder(true).
		SetTitle(" Pyxis ").
		SetTitleAlign(tview.AlignLeft)
	// Scrolling over the header changes the volume, clicking it toggles playback
	a.header.SetMouseCapture(a.handleHeaderMouse)

	a.tree = tview.NewTreeView().
		SetRoot(tview.NewTreeNode("channels")).
		SetTopLevel(1)
	a.tree.SetBorder(true).
		SetTitle(" Channels ").
		SetTitleAlign(tview.AlignLeft)
	a.tree.SetSelectedFunc(a.handleSelect)

	a.recent = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.recent.SetBorder(true).
		SetTitle(" Recent ").
		SetTitleAlign(tview.AlignLeft)

	a.status = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[gray]q:quit  enter:play channel  space:play/stop  s:stop  +/-:volume[-]")

	body := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(a.tree, 0, 1, true).
		AddItem(a.recent, 0, 1, false)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.header, 6, 1, false).
		AddItem(body, 0, 1, true).
		AddItem(a.status, 1, 1, false)

	a.app.SetInputCapture(a.handleKeyEvent)
	a.app.EnableMouse(true)
	a.app.SetRoot(flex, true).SetFocus(a.tree)
}

// handleKeyEvent maps keys to router signals
func (a *App) handleKeyEvent(event *tcell.EventKey) *tcell.EventKey {
	switch event.Rune() {
	case 'q', 'Q':
		a.Stop()
		return nil
	case ' ', 'p', 'P':
		a.post(router.Signal{Kind: router.StateActivated})
		return nil
	case 's', 'S':
		a.post(router.Signal{Kind: router.StopKey})
		return nil
	case '+', '=':
		a.post(router.Signal{Kind: router.ScrollUp})
		return nil
	case '-', '_':
		a.post(router.Signal{Kind: router.ScrollDown})
		return nil
	}
	return event
}

func (a *App) handleHeaderMouse(action tview.MouseAction, event *tcell.EventMouse) (tview.MouseAction, *tcell.EventMouse) {
	switch action {
	case tview.MouseScrollUp:
		a.post(router.Signal{Kind: router.ScrollUp})
		return action, nil
	case tview.MouseScrollDown:
		a.post(router.Signal{Kind: router.ScrollDown})
		return action, nil
	case tview.MouseLeftClick:
		a.post(router.Signal{Kind: router.StateActivated})
		return action, nil
	}
	return action, event
}

// handleSelect plays a channel leaf or folds a genre node
func (a *App) handleSelect(node *tview.TreeNode) {
	if id, ok := node.GetReference().(string); ok && id != "" {
		a.post(router.Signal{Kind: router.ChannelActivated, ChannelID: id})
		return
	}
	node.SetExpanded(!node.IsExpanded())
}

func (a *App) post(sig router.Signal) {
	if a.poster != nil {
		a.poster.Post(sig)
	}
}

// SetChannels replaces the channel list shown in the tree
func (a *App) SetChannels(channels []channel.Channel) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.channels = append([]channel.Channel(nil), channels...)
	a.dirty = true
}

// StateChanged records a new snapshot for the next refresh
func (a *App) StateChanged(s session.State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = s
	a.dirty = true
}

// NowPlayingChanged adds a line to the recent panel
func (a *App) NowPlayingChanged(ch channel.Channel, np channel.NowPlaying) {
	if np.Text == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	// Re-announcements of the same text only refresh the header
	if last, ok := a.lastRecentItem(); ok && last.Channel == presentation.ChannelLabel(ch) && last.Text == np.Text {
		a.dirty = true
		return
	}
	a.recentBuf[a.recentN%maxRecent] = recentItem{
		Channel: presentation.ChannelLabel(ch),
		Text:    np.Text,
		At:      np.FetchedAt,
	}
	a.recentN++
	a.dirty = true
}

// lastRecentItem must be called with a.mu held
func (a *App) lastRecentItem() (recentItem, bool) {
	if a.recentN == 0 {
		return recentItem{}, false
	}
	return a.recentBuf[(a.recentN-1)%maxRecent], true
}

// recentItems returns recent lines newest first. Must be called with a.mu held.
func (a *App) recentItems() []recentItem {
	n := a.recentN
	if n > maxRecent {
		n = maxRecent
	}
	out := make([]recentItem, n)
	for i := 0; i < n; i++ {
		out[i] = a.recentBuf[(a.recentN-1-i)%maxRecent]
	}
	return out
}

// Run draws the tray until ctx is cancelled or the user quits
func (a *App) Run(ctx context.Context) error {
	ctx, a.cancelFunc = context.WithCancel(ctx)
	defer a.cancelFunc()

	go a.refreshLoop(ctx)

	if err := a.app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func (a *App) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(a.config.RefreshRate)
	defer ticker.Stop()

	a.refresh()
	for {
		select {
		case <-ctx.Done():
			a.app.Stop()
			return
		case <-ticker.C:
			a.mu.Lock()
			dirty := a.dirty
			a.dirty = false
			a.mu.Unlock()
			if dirty {
				a.refresh()
			}
		}
	}
}

// refresh updates all UI components from the recorded state
func (a *App) refresh() {
	a.app.QueueUpdateDraw(func() {
		a.mu.Lock()
		defer a.mu.Unlock()

		if text := renderHeader(a.state); text != a.lastHeader {
			a.lastHeader = text
			a.header.SetText(text)
		}
		if text := renderRecent(a.recentItems(), a.config.LabelWidth); text != a.lastRecent {
			a.lastRecent = text
			a.recent.SetText(text)
		}

		menu := presentation.BuildMenu(a.channels, a.state)
		if key := menuKey(menu); key != a.lastMenu {
			a.lastMenu = key
			a.rebuildTree(menu)
		}
	})
}

// rebuildTree replaces the tree contents, keeping the cursor on the same channel
func (a *App) rebuildTree(menu presentation.Menu) {
	var currentID string
	if cur := a.tree.GetCurrentNode(); cur != nil {
		currentID, _ = cur.GetReference().(string)
	}

	root := tview.NewTreeNode("channels")
	var current, selected *tview.TreeNode
	for _, g := range menu.Genres {
		genre := tview.NewTreeNode(g.Label).
			SetColor(tcell.ColorYellow).
			SetSelectable(true)
		root.AddChild(genre)

		for _, item := range g.Channels {
			label := presentation.Truncate(item.Label, a.config.LabelWidth)
			node := tview.NewTreeNode(label).SetReference(item.ID)
			if item.Selected {
				node.SetText("● " + label).SetColor(tcell.ColorGreen)
				selected = node
			}
			if item.ID == currentID {
				current = node
			}
			genre.AddChild(node)
		}
	}

	a.tree.SetRoot(root)
	switch {
	case current != nil:
		a.tree.SetCurrentNode(current)
	case selected != nil:
		a.tree.SetCurrentNode(selected)
	}
}

// Stop stops the TUI application
func (a *App) Stop() {
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	a.app.Stop()
}

// renderHeader builds the play/stop item, the now-playing line and the volume line
func renderHeader(s session.State) string {
	var sb strings.Builder
	sb.WriteString("\n")

	icon := "[gray]■[-]" // Stop square
	if s.IsPlaying {
		icon = "[green]▶[-]" // Play triangle
	}
	sb.WriteString(fmt.Sprintf("%s [white::b]%s[-:-:-]\n", icon, tview.Escape(presentation.StateLabel(s))))

	text := ""
	if s.IsPlaying && s.LastNowPlaying != nil && s.LastNowPlaying.ChannelID == s.SelectedID() {
		text = s.LastNowPlaying.Text
	}
	if text == "" {
		sb.WriteString("[gray]-[-]\n")
	} else {
		sb.WriteString(fmt.Sprintf("[yellow]%s[-]\n", tview.Escape(text)))
	}

	sb.WriteString(fmt.Sprintf("[gray]%s[-]", presentation.VolumeLabel(s.Volume)))
	return sb.String()
}

// renderRecent lists recent now-playing changes, newest first
func renderRecent(items []recentItem, width int) string {
	if len(items) == 0 {
		return "[gray]Nothing played yet[-]"
	}
	var sb strings.Builder
	for i, item := range items {
		if i > 0 {
			sb.WriteString("\n")
		}
		line := presentation.Truncate(item.Channel+": "+item.Text, width)
		if !item.At.IsZero() {
			sb.WriteString(fmt.Sprintf("[gray]%s[-] ", item.At.Format("15:04")))
		}
		sb.WriteString(fmt.Sprintf("[white]%s[-]", tview.Escape(line)))
	}
	return sb.String()
}

// menuKey summarizes the parts of a menu that change the tree
func menuKey(m presentation.Menu) string {
	var sb strings.Builder
	for _, g := range m.Genres {
		sb.WriteString(g.Key)
		sb.WriteString("{")
		for _, item := range g.Channels {
			sb.WriteString(item.ID)
			if item.Selected {
				sb.WriteString("*")
			}
			sb.WriteString(",")
		}
		sb.WriteString("}")
	}
	return sb.String()
}
