package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Entry is one normalized song in the catalog snapshot. Tempo and Difficulty
// are 0 when the source carried nothing usable; RealDifficulty, Category and
// DetailURL are filled from the difficulty overlay at query time.
type Entry struct {
	Name           string   `json:"name"`
	Tempo          int      `json:"bpm"`
	Difficulty     int      `json:"difficulty"`
	Genre          string   `json:"genre,omitempty"`
	Artists        []string `json:"artists,omitempty"`
	SongNo         string   `json:"song_no,omitempty"`
	Romaji         string   `json:"romaji,omitempty"`
	TitleEn        string   `json:"title_en,omitempty"`
	TitleKo        string   `json:"title_ko,omitempty"`
	RealDifficulty float64  `json:"real_difficulty,omitempty"`
	Category       string   `json:"difficulty_category,omitempty"`
	DetailURL      string   `json:"url,omitempty"`
}

// rawSong holds the fields a song record may carry. The upstream list mixes
// record shapes, so every ambiguous field stays raw until a typed parse
// succeeds.
type rawSong struct {
	Title           string          `json:"title"`
	Name            string          `json:"name"`
	SongName        string          `json:"song_name"`
	BPM             json.RawMessage `json:"bpm"`
	Courses         json.RawMessage `json:"courses"`
	DifficultyStars json.RawMessage `json:"difficulty_stars"`
	Difficulty      json.RawMessage `json:"difficulty"`
	Stars           json.RawMessage `json:"stars"`
	Genre           json.RawMessage `json:"genre"`
	Artists         json.RawMessage `json:"artists"`
	Artist          json.RawMessage `json:"artist"`
	SongNo          json.RawMessage `json:"songNo"`
	Romaji          string          `json:"romaji"`
	TitleEn         string          `json:"titleEn"`
	TitleKo         string          `json:"titleKo"`
}

// courseRank orders course names hardest first. When a record nests its
// difficulty under named courses, the hardest course with a usable level
// wins.
var courseRank = []string{"ura", "oni", "hard", "normal", "easy"}

// Normalize parses a raw song-list payload into catalog entries. Records
// without a usable name are dropped, later records with an already-seen name
// are ignored, and individually malformed records are skipped; skipped
// reports how many records were left out. Only a payload that is not a JSON
// array at all is an error.
func Normalize(raw []byte) (entries []Entry, skipped int, err error) {
	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, 0, fmt.Errorf("song list is not a JSON array: %w", err)
	}

	entries = make([]Entry, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		var rs rawSong
		if err := json.Unmarshal(rec, &rs); err != nil {
			skipped++
			continue
		}

		name := firstNonEmpty(rs.Title, rs.Name, rs.SongName)
		if name == "" {
			skipped++
			continue
		}
		if _, dup := seen[name]; dup {
			skipped++
			continue
		}
		seen[name] = struct{}{}

		entries = append(entries, Entry{
			Name:       name,
			Tempo:      parseTempo(rs.BPM),
			Difficulty: parseDifficulty(rs),
			Genre:      strings.Join(parseStrings(rs.Genre), "/"),
			Artists:    parseStrings(coalesce(rs.Artists, rs.Artist)),
			SongNo:     asString(rs.SongNo),
			Romaji:     strings.TrimSpace(rs.Romaji),
			TitleEn:    strings.TrimSpace(rs.TitleEn),
			TitleKo:    strings.TrimSpace(rs.TitleKo),
		})
	}
	return entries, skipped, nil
}

// parseTempo accepts a scalar BPM, a numeric string, or a {min,max} range.
// Ranges prefer max, then min. Anything else is 0.
func parseTempo(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	if v, ok := asInt(raw); ok {
		return v
	}
	var r struct {
		Min json.RawMessage `json:"min"`
		Max json.RawMessage `json:"max"`
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return 0
	}
	if v, ok := asInt(r.Max); ok && v > 0 {
		return v
	}
	if v, ok := asInt(r.Min); ok {
		return v
	}
	return 0
}

// parseDifficulty prefers the hardest named course, then the generic
// star-count fields.
func parseDifficulty(rs rawSong) int {
	if v, ok := parseCourses(rs.Courses); ok {
		return v
	}
	for _, raw := range []json.RawMessage{rs.DifficultyStars, rs.Difficulty, rs.Stars} {
		if v, ok := asInt(raw); ok && v > 0 {
			return v
		}
	}
	return 0
}

// parseCourses walks courseRank and returns the first course with a usable
// level. A course value may be a bare number or an object with a level
// field; null courses are common and skipped.
func parseCourses(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var courses map[string]json.RawMessage
	if err := json.Unmarshal(raw, &courses); err != nil {
		return 0, false
	}
	for _, course := range courseRank {
		c, ok := courses[course]
		if !ok {
			continue
		}
		if v, ok := asInt(c); ok && v > 0 {
			return v, true
		}
		var leveled struct {
			Level json.RawMessage `json:"level"`
		}
		if err := json.Unmarshal(c, &leveled); err == nil {
			if v, ok := asInt(leveled.Level); ok && v > 0 {
				return v, true
			}
		}
	}
	return 0, false
}

// asInt parses a JSON number or a numeric string.
func asInt(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int(n), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return int(f), true
		}
	}
	return 0, false
}

// asString parses a JSON string or renders a JSON number as one.
func asString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatInt(int64(n), 10)
	}
	return ""
}

// parseStrings accepts a single string or an array of strings, dropping
// empties.
func parseStrings(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		return []string{s}
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func coalesce(values ...json.RawMessage) json.RawMessage {
	for _, v := range values {
		if len(v) > 0 && string(v) != "null" {
			return v
		}
	}
	return nil
}
