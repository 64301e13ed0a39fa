package session

import (
	"context"
	"time"

	"github.com/jfmyers9/pyxis/internal/settings"
	"github.com/rs/zerolog"
)

// persistTimeout bounds a single settings write
const persistTimeout = 5 * time.Second

// LoadPersisted reads the saved selection and volume. Read errors are
// logged and treated as absent values.
func LoadPersisted(ctx context.Context, store SettingsStore, logger zerolog.Logger) Persisted {
	var p Persisted

	id, ok, err := store.ReadLastChannel(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read last channel")
	} else if ok {
		p.ChannelID = id
	}

	vol, ok, err := store.ReadVolume(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read volume")
	} else if ok {
		p.Volume = vol
		p.HasVolume = true
	}

	return p
}

// persistLocked writes dirty settings. Unless force is set, writes are
// throttled to one per PersistInterval; a skipped write is retried by a
// flush timer so the last change always lands.
func (c *Controller) persistLocked(force bool) {
	if !c.dirty || c.store == nil {
		return
	}

	if !force && c.cfg.PersistInterval > 0 {
		elapsed := c.clock.Since(c.lastPersist)
		if !c.lastPersist.IsZero() && elapsed < c.cfg.PersistInterval {
			c.scheduleFlushLocked(c.cfg.PersistInterval - elapsed)
			return
		}
	}

	values := settings.Values{
		Volume:      c.state.Volume,
		LastChannel: c.state.SelectedID(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	c.lastPersist = c.clock.Now()
	if err := c.store.Write(ctx, values); err != nil {
		// Stays dirty; in-memory state remains authoritative
		c.logger.Warn().Err(err).Msg("Failed to persist settings")
		return
	}
	c.dirty = false

	c.logger.Debug().
		Int("volume", values.Volume).
		Str("channel", values.LastChannel).
		Msg("Settings persisted")
}

func (c *Controller) scheduleFlushLocked(after time.Duration) {
	if c.flushTimer != nil || c.closed {
		return
	}
	c.flushTimer = c.clock.AfterFunc(after, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.flushTimer = nil
		if c.closed {
			return
		}
		c.persistLocked(true)
	})
}

// Flush writes dirty settings immediately
func (c *Controller) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.persistLocked(true)
}
