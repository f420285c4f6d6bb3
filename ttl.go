package lokidb

import (
	"time"
)

// ttlConfig holds a collection's TTL sweep configuration and the
// machinery to run it periodically, per spec §4.4: a document expires
// age after its meta.updated (falling back to meta.created when a
// document was never updated).
type ttlConfig struct {
	age      time.Duration
	interval time.Duration
	stop     chan struct{}
	stopped  bool
}

// EnableTTL turns on periodic expiry: every interval, every document
// whose age relative to meta.updated (or meta.created, if never updated)
// exceeds age is removed. Calling EnableTTL again replaces the previous
// configuration and restarts the sweep goroutine.
func (c *Collection) EnableTTL(age, interval time.Duration) {
	c.mu.Lock()
	if c.ttl != nil && !c.ttl.stopped {
		close(c.ttl.stop)
	}
	cfg := &ttlConfig{age: age, interval: interval, stop: make(chan struct{})}
	c.ttl = cfg
	c.mu.Unlock()

	go c.runTTL(cfg)
}

// DisableTTL stops the periodic sweep. RemoveExpired can still be called
// directly afterwards.
func (c *Collection) DisableTTL() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ttl != nil && !c.ttl.stopped {
		close(c.ttl.stop)
		c.ttl.stopped = true
	}
}

func (c *Collection) runTTL(cfg *ttlConfig) {
	ticker := time.NewTicker(cfg.interval)
	defer ticker.Stop()
	for {
		select {
		case <-cfg.stop:
			return
		case <-ticker.C:
			c.RemoveExpired(cfg.age)
		}
	}
}

// RemoveExpired removes every document older than age relative to its
// last update (or creation, if never updated), returning the number
// removed.
func (c *Collection) RemoveExpired(age time.Duration) int {
	c.mu.Lock()
	now := time.Now()
	positions := make([]int, 0)
	for i, doc := range c.data {
		m := asMeta(doc)
		ts := m.Updated
		if ts.IsZero() {
			ts = m.Created
		}
		if ts.IsZero() {
			continue
		}
		if now.Sub(ts) > age {
			positions = append(positions, i)
		}
	}
	c.mu.Unlock()

	if len(positions) == 0 {
		return 0
	}
	if err := c.RemoveBatchByPositions(positions); err != nil {
		c.log.WithError(err).Warn("ttl sweep failed")
		return 0
	}
	c.log.WithField("count", len(positions)).Debug("ttl sweep removed expired documents")
	return len(positions)
}
