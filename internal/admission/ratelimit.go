// Package admission decides whether an inbound message may enter the reply
// pipeline: per-sender and per-group sliding-window rate limits plus
// near-duplicate suppression.
package admission

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	ScopeSender = "sender"
	ScopeGroup  = "group"

	ReasonSenderLimit = "sender limit exceeded"
	ReasonGroupLimit  = "group limit exceeded"
)

// LimitError is what the pipeline returns for a rate-limited message so
// transports can map it to 429 without matching reason strings.
type LimitError struct {
	Scope     string
	Reason    string
	Remaining int
}

func (e *LimitError) Error() string {
	return "rate limit exceeded: " + e.Reason
}

type RateLimiterConfig struct {
	// SenderLimit is the number of admissions per sender per window. Zero is
	// legal and rejects every message; misconfiguration is a negative value.
	SenderLimit int
	// GroupLimit is the number of admissions per group per window.
	GroupLimit int
	Window     time.Duration
}

func (c RateLimiterConfig) Validate() error {
	if c.SenderLimit < 0 {
		return errors.New("sender limit must not be negative")
	}
	if c.GroupLimit < 0 {
		return errors.New("group limit must not be negative")
	}
	if c.Window <= 0 {
		return errors.New("window must be positive")
	}
	return nil
}

// Verdict is the outcome of one admission check. Remaining is the smaller of
// the two scopes' leftover quotas after the check, floored at zero.
type Verdict struct {
	Allowed   bool
	Scope     string
	Reason    string
	Remaining int
}

// Err returns nil for an allowed verdict and a *LimitError otherwise.
func (v Verdict) Err() error {
	if v.Allowed {
		return nil
	}
	return &LimitError{Scope: v.Scope, Reason: v.Reason, Remaining: v.Remaining}
}

// RateLimiter enforces independent sliding windows per hashed sender and per
// group. The sender scope is checked first; a sender slot is consumed even
// when the group window then rejects, so a sender hammering a saturated
// group still burns through its own quota.
type RateLimiter struct {
	mu      sync.Mutex
	senders map[string][]time.Time
	groups  map[string][]time.Time
	cfg     RateLimiterConfig
}

func NewRateLimiter(cfg RateLimiterConfig) (*RateLimiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("rate limiter config: %w", err)
	}
	return &RateLimiter{
		senders: make(map[string][]time.Time),
		groups:  make(map[string][]time.Time),
		cfg:     cfg,
	}, nil
}

// Check admits or rejects one message. An empty groupID means a direct chat,
// which is limited on the sender scope only.
func (r *RateLimiter) Check(senderID, groupID string) Verdict {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.cfg.Window)

	senderWindow := prune(r.senders[senderID], cutoff)
	if len(senderWindow) >= r.cfg.SenderLimit {
		r.senders[senderID] = senderWindow
		return Verdict{Scope: ScopeSender, Reason: ReasonSenderLimit}
	}
	senderWindow = append(senderWindow, now)
	r.senders[senderID] = senderWindow

	var groupWindow []time.Time
	if groupID != "" {
		groupWindow = prune(r.groups[groupID], cutoff)
		if len(groupWindow) >= r.cfg.GroupLimit {
			r.groups[groupID] = groupWindow
			return Verdict{Scope: ScopeGroup, Reason: ReasonGroupLimit}
		}
		groupWindow = append(groupWindow, now)
		r.groups[groupID] = groupWindow
	}

	remaining := r.cfg.SenderLimit - len(senderWindow)
	if groupID != "" {
		remaining = min(remaining, r.cfg.GroupLimit-len(groupWindow))
	}
	return Verdict{Allowed: true, Remaining: max(remaining, 0)}
}

// ResetSender clears a sender's window so their next message is admitted.
func (r *RateLimiter) ResetSender(senderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.senders, senderID)
}

// ResetGroup clears a group's window.
func (r *RateLimiter) ResetGroup(groupID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.groups, groupID)
}

// Tracked reports how many sender and group windows are held.
func (r *RateLimiter) Tracked() (senders, groups int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.senders), len(r.groups)
}

// prune drops timestamps at or before cutoff, reusing the backing array.
func prune(window []time.Time, cutoff time.Time) []time.Time {
	pruned := window[:0]
	for _, ts := range window {
		if ts.After(cutoff) {
			pruned = append(pruned, ts)
		}
	}
	return pruned
}
