// Package metrics aggregates per-session counters from pipeline events.
package metrics

import (
	"sync"
	"time"

	"github.com/normanking/safeshell/internal/bus"
)

// SessionStats holds the counters for the current session.
type SessionStats struct {
	StartTime time.Time

	// Total counts every command the pipeline received.
	Total int

	// PerTier counts tier assignments keyed by tier label ("1".."4").
	PerTier map[string]int

	// Blocked counts lockdown refusals.
	Blocked int

	// Denied counts AI validation denials.
	Denied int

	// Corrected counts typo suggestions offered.
	Corrected int

	// Translated counts accepted natural language translations.
	Translated int

	// Executed counts dispatched commands, including non-zero exits.
	Executed int

	// ExecFailures counts commands that failed to run at all.
	ExecFailures int

	// TotalExecMs sums wall time of dispatched commands.
	TotalExecMs int64

	LastEvent     string
	LastEventTime time.Time
}

// Uptime reports how long the session has been running.
func (s *SessionStats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// Collector subscribes to the bus and aggregates session counters.
type Collector struct {
	b       *bus.Bus
	mu      sync.RWMutex
	session SessionStats
	sub     bus.SubscriptionID
	stopped bool
}

// NewCollector creates a collector for the given bus.
func NewCollector(b *bus.Bus) *Collector {
	return &Collector{
		b: b,
		session: SessionStats{
			StartTime: time.Now(),
			PerTier:   make(map[string]int),
		},
	}
}

// Start begins listening. Safe to call once per collector.
func (c *Collector) Start() {
	if c.b == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || c.sub != "" {
		return
	}
	c.sub = c.b.Subscribe(bus.EventType(""), c.handleEvent)
}

// Stop removes the subscription.
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}
	c.stopped = true

	if c.sub != "" {
		c.b.Unsubscribe(c.sub)
		c.sub = ""
	}
}

// Snapshot returns a copy of the current session stats.
func (c *Collector) Snapshot() SessionStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := c.session
	stats.PerTier = make(map[string]int, len(c.session.PerTier))
	for tier, n := range c.session.PerTier {
		stats.PerTier[tier] = n
	}
	return stats
}

func (c *Collector) handleEvent(event bus.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch event.Type {
	case bus.EventCommandReceived:
		c.session.Total++
	case bus.EventCommandTranslated:
		c.session.Translated++
	case bus.EventTierAssigned:
		if event.Tier != "" {
			c.session.PerTier[event.Tier]++
		}
		if event.Suggestion != "" {
			c.session.Corrected++
		}
	case bus.EventCommandBlocked:
		c.session.Blocked++
	case bus.EventValidationVerdict:
		if event.Verdict == "deny" {
			c.session.Denied++
		}
	case bus.EventCommandExecuted:
		c.session.Executed++
		c.session.TotalExecMs += event.DurationMs
	case bus.EventCommandFailed:
		c.session.ExecFailures++
	}

	c.session.LastEvent = string(event.Type)
	c.session.LastEventTime = event.Timestamp
}
