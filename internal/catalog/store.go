// Package catalog maintains an in-memory snapshot of the Taiko song list,
// refreshed on demand from taiko.wiki with a local file fallback, enriched
// with community difficulty ratings, and queried by fuzzy name match.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kenchan6666/mikabot/internal/metrics"
)

type Source string

const (
	SourcePrimary  Source = "primary"
	SourceFallback Source = "fallback"
)

const (
	DefaultRefreshInterval = time.Hour
	DefaultFetchTimeout    = 10 * time.Second
)

// Snapshot is an immutable view of the catalog. Readers always hold either
// the previous or the next snapshot, never a partially built one.
type Snapshot struct {
	Entries   []Entry
	FetchedAt time.Time
	Source    Source

	names  []string
	byName map[string]int
}

func newSnapshot(entries []Entry, source Source) *Snapshot {
	names := make([]string, len(entries))
	byName := make(map[string]int, len(entries))
	for i, e := range entries {
		names[i] = e.Name
		byName[e.Name] = i
	}
	return &Snapshot{
		Entries:   entries,
		FetchedAt: time.Now(),
		Source:    source,
		names:     names,
		byName:    byName,
	}
}

// Fetcher is the primary catalog source.
type Fetcher interface {
	FetchSongs(ctx context.Context) ([]byte, error)
}

type StoreConfig struct {
	// FallbackPath is the local copy of the song list, read when the primary
	// source fails and rewritten after every successful primary fetch.
	FallbackPath string
	// RefreshInterval is how long a snapshot stays fresh. Zero means the
	// default; negative is invalid.
	RefreshInterval time.Duration
	// FetchTimeout bounds one primary fetch attempt.
	FetchTimeout time.Duration
}

// Store owns the catalog snapshot. Freshness is demand-driven: callers run
// EnsureFresh before querying, and concurrent callers share a single
// refresh.
type Store struct {
	log     *slog.Logger
	fetcher Fetcher
	cfg     StoreConfig

	snap  atomic.Pointer[Snapshot]
	group singleflight.Group
}

func NewStore(log *slog.Logger, fetcher Fetcher, cfg StoreConfig) (*Store, error) {
	if fetcher == nil {
		return nil, errors.New("catalog store: fetcher is required")
	}
	if cfg.FallbackPath == "" {
		return nil, errors.New("catalog store: fallback path is required")
	}
	if cfg.RefreshInterval < 0 {
		return nil, errors.New("catalog store: refresh interval must not be negative")
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.FetchTimeout < 0 {
		return nil, errors.New("catalog store: fetch timeout must not be negative")
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	return &Store{log: log, fetcher: fetcher, cfg: cfg}, nil
}

// Snapshot returns the current snapshot, nil before the first successful
// refresh. It never blocks.
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Stale reports whether the snapshot is missing, empty, or past the refresh
// interval.
func (s *Store) Stale() bool {
	return s.stale(s.snap.Load(), time.Now())
}

func (s *Store) stale(snap *Snapshot, now time.Time) bool {
	return snap == nil || len(snap.Entries) == 0 || now.Sub(snap.FetchedAt) >= s.cfg.RefreshInterval
}

// EnsureFresh refreshes the snapshot if it is stale: primary source first,
// local fallback second. usedFallback reports whether this call had to serve
// the fallback copy. When both sources fail the existing snapshot, stale or
// not, is kept and the joined error is returned.
func (s *Store) EnsureFresh(ctx context.Context) (usedFallback bool, err error) {
	if !s.stale(s.snap.Load(), time.Now()) {
		return false, nil
	}

	v, err, _ := s.group.Do("refresh", func() (any, error) {
		// Another caller may have finished a refresh while we waited.
		if !s.stale(s.snap.Load(), time.Now()) {
			return false, nil
		}
		return s.refresh(ctx)
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (s *Store) refresh(ctx context.Context) (bool, error) {
	start := time.Now()
	defer func() {
		metrics.CatalogRefreshDuration.Observe(time.Since(start).Seconds())
	}()

	primaryErr := s.refreshFromPrimary(ctx)
	if primaryErr == nil {
		return false, nil
	}
	s.log.Warn("catalog primary source failed, trying fallback", "error", primaryErr)

	fallbackErr := s.refreshFromFallback()
	if fallbackErr == nil {
		return true, nil
	}

	// Keep whatever snapshot is already published; stale data beats none.
	return false, errors.Join(primaryErr, fallbackErr)
}

func (s *Store) refreshFromPrimary(ctx context.Context) error {
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	raw, err := s.fetcher.FetchSongs(fetchCtx)
	if err != nil {
		metrics.CatalogRefreshTotal.WithLabelValues(string(SourcePrimary), "error").Inc()
		return err
	}

	entries, skipped, err := Normalize(raw)
	if err != nil {
		metrics.CatalogRefreshTotal.WithLabelValues(string(SourcePrimary), "error").Inc()
		return fmt.Errorf("normalizing primary song list: %w", err)
	}
	if len(entries) == 0 {
		metrics.CatalogRefreshTotal.WithLabelValues(string(SourcePrimary), "error").Inc()
		return errors.New("primary song list has no usable entries")
	}

	s.publish(entries, skipped, SourcePrimary)
	metrics.CatalogRefreshTotal.WithLabelValues(string(SourcePrimary), "success").Inc()

	if err := s.writeFallback(raw); err != nil {
		s.log.Warn("failed to persist catalog fallback", "path", s.cfg.FallbackPath, "error", err)
	}
	return nil
}

func (s *Store) refreshFromFallback() error {
	raw, err := os.ReadFile(s.cfg.FallbackPath)
	if err != nil {
		metrics.CatalogRefreshTotal.WithLabelValues(string(SourceFallback), "error").Inc()
		return fmt.Errorf("reading fallback: %w", err)
	}

	entries, skipped, err := Normalize(raw)
	if err != nil {
		metrics.CatalogRefreshTotal.WithLabelValues(string(SourceFallback), "error").Inc()
		return fmt.Errorf("normalizing fallback song list: %w", err)
	}
	if len(entries) == 0 {
		metrics.CatalogRefreshTotal.WithLabelValues(string(SourceFallback), "error").Inc()
		return errors.New("fallback song list has no usable entries")
	}

	s.publish(entries, skipped, SourceFallback)
	metrics.CatalogRefreshTotal.WithLabelValues(string(SourceFallback), "success").Inc()
	return nil
}

func (s *Store) publish(entries []Entry, skipped int, source Source) {
	s.snap.Store(newSnapshot(entries, source))
	metrics.CatalogEntries.Set(float64(len(entries)))
	if skipped > 0 {
		s.log.Debug("skipped unusable catalog records", "count", skipped)
	}
	s.log.Info("catalog snapshot published", "entries", len(entries), "source", source)
}

func (s *Store) writeFallback(raw []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.cfg.FallbackPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.cfg.FallbackPath, raw, 0o644)
}
