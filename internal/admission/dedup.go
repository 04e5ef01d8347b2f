package admission

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kenchan6666/mikabot/internal/fuzzy"
)

// sweepInterval bounds how often the deduplicator scans its whole map for
// senders with no live entries left.
const sweepInterval = time.Minute

type DedupConfig struct {
	Enabled bool
	// Threshold is the similarity (0-1] at or above which a message counts
	// as a repeat of a recent one.
	Threshold float64
	Window    time.Duration
}

func (c DedupConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Threshold <= 0 || c.Threshold > 1 {
		return errors.New("threshold must be in (0, 1]")
	}
	if c.Window <= 0 {
		return errors.New("window must be positive")
	}
	return nil
}

type dedupEntry struct {
	text string
	seen time.Time
}

// Deduplicator suppresses near-identical repeats from one sender within a
// short window. A suppressed repeat is not recorded, so the text becomes
// admissible again as soon as the original leaves the window, no matter how
// many times it was retried in between.
type Deduplicator struct {
	mu        sync.Mutex
	recent    map[string][]dedupEntry
	lastSweep time.Time
	matcher   *fuzzy.Matcher
	cfg       DedupConfig
}

func NewDeduplicator(cfg DedupConfig) (*Deduplicator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("deduplicator config: %w", err)
	}
	return &Deduplicator{
		recent:  make(map[string][]dedupEntry),
		matcher: fuzzy.New(),
		cfg:     cfg,
	}, nil
}

// IsDuplicate reports whether text is a near-repeat of something the sender
// said within the window, recording it for future checks when it is not.
func (d *Deduplicator) IsDuplicate(senderID, text string) bool {
	if !d.cfg.Enabled {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	d.sweepLocked(now)

	cutoff := now.Add(-d.cfg.Window)
	entries := d.recent[senderID]
	pruned := entries[:0]
	for _, e := range entries {
		if e.seen.After(cutoff) {
			pruned = append(pruned, e)
		}
	}

	for _, e := range pruned {
		if d.matcher.Similarity(text, e.text) >= d.cfg.Threshold {
			d.recent[senderID] = pruned
			return true
		}
	}

	d.recent[senderID] = append(pruned, dedupEntry{text: text, seen: now})
	return false
}

// Tracked reports how many senders currently hold recent entries.
func (d *Deduplicator) Tracked() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.recent)
}

// sweepLocked drops senders whose entries have all expired, at most once per
// sweepInterval so steady traffic does not pay a full-map scan on every call.
func (d *Deduplicator) sweepLocked(now time.Time) {
	if now.Sub(d.lastSweep) < sweepInterval {
		return
	}
	d.lastSweep = now

	cutoff := now.Add(-d.cfg.Window)
	for sender, entries := range d.recent {
		live := false
		for _, e := range entries {
			if e.seen.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(d.recent, sender)
		}
	}
}
