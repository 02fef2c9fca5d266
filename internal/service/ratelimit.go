package service

import (
	"fmt"
	"sync"
	"time"

	"sendgate/internal/constants"
	"sendgate/internal/models"
)

// RateLimiter throttles sends per channel using a rolling window of send
// records. It is an injected instance, never process-global; the router owns
// exactly-once RecordSend semantics via the approval state machine.
type RateLimiter struct {
	mu      sync.Mutex
	limits  map[models.Channel]models.RateLimitConfig
	windows map[models.Channel][]models.SendWindow

	// now is swappable in tests
	now func() time.Time
}

// NewRateLimiter builds a limiter with the given per-channel limits;
// channels absent from the map fall back to the built-in defaults.
func NewRateLimiter(limits map[models.Channel]models.RateLimitConfig) *RateLimiter {
	merged := models.DefaultRateLimits()
	for ch, cfg := range limits {
		merged[ch] = cfg
	}
	return &RateLimiter{
		limits:  merged,
		windows: make(map[models.Channel][]models.SendWindow),
		now:     time.Now,
	}
}

// CanSend reports whether a send on the channel may proceed now. Denials
// carry a human-readable reason with current/limit counts or remaining wait.
func (rl *RateLimiter) CanSend(channel models.Channel) models.Decision {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cfg, ok := rl.limits[channel]
	if !ok {
		return models.Deny(fmt.Sprintf("no rate limit configured for channel %q", channel))
	}

	now := rl.now()
	hourAgo := now.Add(-time.Hour)
	dayAgo := now.Add(-24 * time.Hour)

	var hourCount, dayCount int
	var lastSent time.Time
	for _, w := range rl.windows[channel] {
		if w.SentAt.After(dayAgo) {
			dayCount++
			if w.SentAt.After(hourAgo) {
				hourCount++
			}
			if w.SentAt.After(lastSent) {
				lastSent = w.SentAt
			}
		}
	}

	if hourCount >= cfg.PerHour {
		return models.Deny(fmt.Sprintf("hourly limit reached for %s: %d/%d", channel, hourCount, cfg.PerHour))
	}
	if dayCount >= cfg.PerDay {
		return models.Deny(fmt.Sprintf("daily limit reached for %s: %d/%d", channel, dayCount, cfg.PerDay))
	}

	if !lastSent.IsZero() {
		elapsed := now.Sub(lastSent)
		if elapsed < cfg.MinDelay {
			remaining := cfg.MinDelay - elapsed
			// Round up so "wait 0s" never appears while a wait remains
			seconds := int((remaining + time.Second - 1) / time.Second)
			return models.Deny(fmt.Sprintf("minimum delay on %s not met: wait %ds", channel, seconds))
		}
	}

	return models.Allow()
}

// RecordSend appends a window entry for an actual delivery attempt and
// prunes entries past the 24-hour horizon so the limiter never grows
// unbounded. Call exactly once per adapter invocation.
func (rl *RateLimiter) RecordSend(channel models.Channel, approvalID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	horizon := now.Add(-time.Duration(constants.RateWindowHorizonHours) * time.Hour)

	kept := rl.windows[channel][:0]
	for _, w := range rl.windows[channel] {
		if w.SentAt.After(horizon) {
			kept = append(kept, w)
		}
	}
	rl.windows[channel] = append(kept, models.SendWindow{
		Channel:    channel,
		ApprovalID: approvalID,
		SentAt:     now,
	})
}

// WindowCount returns how many entries the channel currently holds; used by
// tests and the metrics gauge.
func (rl *RateLimiter) WindowCount(channel models.Channel) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows[channel])
}
