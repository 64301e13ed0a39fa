package session

import "context"

// startTimerLocked starts the poll ticker for the current playback
func (c *Controller) startTimerLocked() {
	c.stopTimerLocked()

	stop := make(chan struct{})
	gen := c.gen
	ticker := c.clock.NewTicker(c.cfg.PollInterval)
	c.timerStop = stop
	c.state.PollTimerActive = true

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.Chan():
				c.tick(gen)
			}
		}
	}()
}

// stopTimerLocked cancels the poll ticker. A tick already in flight
// carries the old generation and is ignored by PollTick.
func (c *Controller) stopTimerLocked() {
	if c.timerStop != nil {
		close(c.timerStop)
		c.timerStop = nil
	}
	c.state.PollTimerActive = false
}

func (c *Controller) tick(gen uint64) {
	c.mu.Lock()
	handler := c.onTick
	c.mu.Unlock()

	if handler != nil {
		handler(gen)
		return
	}
	c.PollTick(context.Background(), gen)
}
