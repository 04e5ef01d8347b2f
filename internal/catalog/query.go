package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/kenchan6666/mikabot/internal/fuzzy"
	"github.com/kenchan6666/mikabot/internal/metrics"
)

const DefaultQueryThreshold = 0.7

type QueryConfig struct {
	// Threshold is the minimum similarity for a fuzzy hit, on the 0-1 scale.
	// Zero means the default.
	Threshold float64
}

// QueryService resolves free-text song names against the current snapshot
// and enriches hits with overlay ratings. Freshness is the caller's job:
// run Store.EnsureFresh before querying.
type QueryService struct {
	log     *slog.Logger
	store   *Store
	overlay *Overlay
	matcher *fuzzy.Matcher
	cfg     QueryConfig
}

// NewQueryService wires the store and overlay together. overlay may be nil
// to serve catalog data without enrichment.
func NewQueryService(log *slog.Logger, store *Store, overlay *Overlay, cfg QueryConfig) (*QueryService, error) {
	if store == nil {
		return nil, errors.New("query service: store is required")
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultQueryThreshold
	}
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("query service: threshold %v outside (0, 1]", cfg.Threshold)
	}
	return &QueryService{
		log:     log,
		store:   store,
		overlay: overlay,
		matcher: fuzzy.New(),
		cfg:     cfg,
	}, nil
}

// Query finds the entry best matching a free-text name at the configured
// threshold.
func (s *QueryService) Query(name string) (Entry, bool) {
	return s.QueryThreshold(name, s.cfg.Threshold)
}

// QueryThreshold finds the best match at an explicit threshold. Scores are
// compared on the 0-100 scale, so a 0.7 threshold admits matches scoring 70
// and above. An empty snapshot never matches.
func (s *QueryService) QueryThreshold(name string, threshold float64) (Entry, bool) {
	snap := s.store.Snapshot()
	if snap == nil || len(snap.Entries) == 0 {
		metrics.CatalogQueriesTotal.WithLabelValues("miss").Inc()
		return Entry{}, false
	}

	name = strings.TrimSpace(name)

	var (
		idx   int
		score float64
	)
	if i, ok := snap.byName[name]; ok {
		idx, score = i, 1.0
	} else {
		idx, score = s.matcher.BestMatch(name, snap.names)
	}
	if idx < 0 || score*100 < threshold*100 {
		metrics.CatalogQueriesTotal.WithLabelValues("miss").Inc()
		return Entry{}, false
	}

	entry := snap.Entries[idx]
	entry.Artists = slices.Clone(entry.Artists)
	s.enrich(&entry)
	metrics.CatalogQueriesTotal.WithLabelValues("hit").Inc()
	return entry, true
}

// All returns a copy of every entry in the snapshot.
func (s *QueryService) All() []Entry {
	snap := s.store.Snapshot()
	if snap == nil {
		return nil
	}
	out := make([]Entry, len(snap.Entries))
	copy(out, snap.Entries)
	for i := range out {
		out[i].Artists = slices.Clone(out[i].Artists)
	}
	return out
}

// enrich merges overlay ratings into a matched entry: real difficulty and
// category always, the detail URL when the catalog has none, and tempo only
// when the catalog tempo is unknown. Catalog data wins otherwise.
func (s *QueryService) enrich(e *Entry) {
	if s.overlay == nil {
		return
	}
	rec, ok := s.overlay.Lookup(e.Name)
	if !ok {
		rec, ok = s.overlay.LookupFuzzy(e.Name)
	}
	if !ok {
		return
	}

	e.RealDifficulty = rec.RealDifficulty
	e.Category = rec.Category
	if e.DetailURL == "" {
		e.DetailURL = rec.URL
	}
	if e.Tempo == 0 && rec.Tempo > 0 {
		e.Tempo = rec.Tempo
	}
}
