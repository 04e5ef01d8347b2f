package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/kenchan6666/mikabot/internal/fuzzy"
)

// overlayFuzzyCutoff is the similarity below which an overlay record is not
// considered the same song as a catalog entry.
const overlayFuzzyCutoff = 0.8

// Record is one community difficulty rating from the parsed rating table.
type Record struct {
	Name           string  `json:"name"`
	Stars          int     `json:"stars"`
	RealDifficulty float64 `json:"real_difficulty"`
	Category       string  `json:"difficulty_category"`
	Tempo          int     `json:"bpm"`
	Genre          string  `json:"genre"`
	URL            string  `json:"url"`
}

type overlayFile struct {
	TotalSongs int      `json:"total_songs"`
	Songs      []Record `json:"songs"`
}

// CategoryFor maps a community real-difficulty value to its label.
func CategoryFor(real float64) string {
	switch {
	case real >= 11.3:
		return "超级难"
	case real >= 11.0:
		return "很难"
	case real >= 10.7:
		return "难"
	case real >= 10.4:
		return "中等"
	default:
		return "其他"
	}
}

// Overlay serves difficulty ratings from a local JSON file. The file loads
// lazily on first lookup; a failed load logs a warning and leaves the overlay
// empty so the catalog keeps working without enrichment. Reload re-reads the
// file explicitly.
type Overlay struct {
	log     *slog.Logger
	path    string
	matcher *fuzzy.Matcher

	mu     sync.Mutex
	loaded bool
	byName map[string]Record
	names  []string
}

func NewOverlay(log *slog.Logger, path string) *Overlay {
	return &Overlay{log: log, path: path, matcher: fuzzy.New()}
}

// Lookup returns the record stored under exactly this name.
func (o *Overlay) Lookup(name string) (Record, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.loadLocked()
	rec, ok := o.byName[name]
	return rec, ok
}

// LookupFuzzy returns the closest record at or above the fuzzy cutoff.
func (o *Overlay) LookupFuzzy(name string) (Record, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.loadLocked()
	if len(o.names) == 0 {
		return Record{}, false
	}
	idx, score := o.matcher.BestMatch(name, o.names)
	if idx < 0 || score < overlayFuzzyCutoff {
		return Record{}, false
	}
	return o.byName[o.names[idx]], true
}

// Reload re-reads the overlay file, replacing the loaded records on success.
func (o *Overlay) Reload() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.loaded = true
	return o.reloadLocked()
}

// Size reports how many records are loaded, loading first if needed.
func (o *Overlay) Size() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.loadLocked()
	return len(o.names)
}

func (o *Overlay) loadLocked() {
	if o.loaded {
		return
	}
	o.loaded = true
	if o.path == "" {
		return
	}
	if err := o.reloadLocked(); err != nil {
		o.log.Warn("difficulty overlay unavailable, continuing without enrichment",
			"path", o.path, "error", err)
	}
}

func (o *Overlay) reloadLocked() error {
	raw, err := os.ReadFile(o.path)
	if err != nil {
		return fmt.Errorf("reading overlay: %w", err)
	}

	var doc overlayFile
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parsing overlay: %w", err)
	}

	byName := make(map[string]Record, len(doc.Songs))
	names := make([]string, 0, len(doc.Songs))
	for _, rec := range doc.Songs {
		rec.Name = strings.TrimSpace(rec.Name)
		if rec.Name == "" {
			continue
		}
		if _, dup := byName[rec.Name]; dup {
			continue
		}
		if rec.Category == "" && rec.RealDifficulty > 0 {
			rec.Category = CategoryFor(rec.RealDifficulty)
		}
		byName[rec.Name] = rec
		names = append(names, rec.Name)
	}

	o.byName = byName
	o.names = names
	o.log.Info("difficulty overlay loaded", "songs", len(names))
	return nil
}
