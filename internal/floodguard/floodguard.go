// Package floodguard provides client-side flood protection so an automated
// client paces itself below the thresholds that get connections kicked by
// server-side spam filters.
package floodguard

import (
	"sync"
	"time"
)

// Config holds flood guard settings.
type Config struct {
	Enabled        bool          // Whether the guard is enabled
	MaxMessages    int           // Max messages allowed in the time window
	TimeWindow     time.Duration // Time window for rate limiting
	RepeatCooldown time.Duration // How long before the same message can be sent again
}

// DefaultConfig returns sensible defaults for the flood guard.
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		MaxMessages:    5,
		TimeWindow:     10 * time.Second,
		RepeatCooldown: 30 * time.Second,
	}
}

// ConfigFromYAML creates a Config from YAML-loaded values.
func ConfigFromYAML(enabled bool, maxMessages, timeWindowSeconds, repeatCooldownSeconds int) Config {
	cfg := DefaultConfig()
	cfg.Enabled = enabled
	if maxMessages > 0 {
		cfg.MaxMessages = maxMessages
	}
	if timeWindowSeconds > 0 {
		cfg.TimeWindow = time.Duration(timeWindowSeconds) * time.Second
	}
	if repeatCooldownSeconds > 0 {
		cfg.RepeatCooldown = time.Duration(repeatCooldownSeconds) * time.Second
	}
	return cfg
}

// Guard tracks outgoing message activity for a single connection.
type Guard struct {
	mu           sync.Mutex
	config       Config
	messageTimes []time.Time          // Timestamps of recent sends
	lastMessages map[string]time.Time // message content -> last sent time
}

// NewGuard creates a new flood guard with the given config.
func NewGuard(config Config) *Guard {
	return &Guard{
		config:       config,
		messageTimes: make([]time.Time, 0, config.MaxMessages),
		lastMessages: make(map[string]time.Time),
	}
}

// Result contains the outcome of a guard check.
type Result struct {
	Allowed bool
	Reason  string
	Wait    time.Duration // How long to wait before retrying (if not allowed)
}

// Check determines if a message should be sent now.
func (g *Guard) Check(message string) Result {
	if !g.config.Enabled {
		return Result{Allowed: true}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	g.cleanup(now)

	// Duplicate suppression
	if lastTime, exists := g.lastMessages[message]; exists {
		elapsed := now.Sub(lastTime)
		if elapsed < g.config.RepeatCooldown {
			return Result{
				Allowed: false,
				Reason:  "duplicate message within repeat cooldown",
				Wait:    g.config.RepeatCooldown - elapsed,
			}
		}
	}

	// Window rate limit
	if len(g.messageTimes) >= g.config.MaxMessages {
		oldest := g.messageTimes[0]
		return Result{
			Allowed: false,
			Reason:  "send rate above configured window limit",
			Wait:    oldest.Add(g.config.TimeWindow).Sub(now),
		}
	}

	// Message allowed - record it
	g.messageTimes = append(g.messageTimes, now)
	g.lastMessages[message] = now

	return Result{Allowed: true}
}

// cleanup removes expired entries.
func (g *Guard) cleanup(now time.Time) {
	cutoff := now.Add(-g.config.TimeWindow)
	newTimes := g.messageTimes[:0]
	for _, msgTime := range g.messageTimes {
		if msgTime.After(cutoff) {
			newTimes = append(newTimes, msgTime)
		}
	}
	g.messageTimes = newTimes

	repeatCutoff := now.Add(-g.config.RepeatCooldown)
	for msg, msgTime := range g.lastMessages {
		if msgTime.Before(repeatCutoff) {
			delete(g.lastMessages, msg)
		}
	}
}

// Reset clears all tracking data.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.messageTimes = make([]time.Time, 0, g.config.MaxMessages)
	g.lastMessages = make(map[string]time.Time)
}
