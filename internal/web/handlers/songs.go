package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/kenchan6666/mikabot/internal/catalog"
	"github.com/samber/lo"
)

// SongIndex is the slice of the catalog query service the handlers need.
type SongIndex interface {
	All() []catalog.Entry
	QueryThreshold(name string, threshold float64) (catalog.Entry, bool)
}

type SongHandler struct {
	songs SongIndex
	log   *slog.Logger
}

func NewSongHandler(songs SongIndex, log *slog.Logger) *SongHandler {
	return &SongHandler{songs: songs, log: log}
}

type songResponse struct {
	Name           string   `json:"name"`
	BPM            int      `json:"bpm"`
	Difficulty     int      `json:"difficulty"`
	Genre          string   `json:"genre,omitempty"`
	Artists        []string `json:"artists,omitempty"`
	Romaji         string   `json:"romaji,omitempty"`
	TitleEn        string   `json:"title_en,omitempty"`
	TitleKo        string   `json:"title_ko,omitempty"`
	RealDifficulty float64  `json:"real_difficulty,omitempty"`
	Category       string   `json:"difficulty_category,omitempty"`
	URL            string   `json:"url,omitempty"`
}

type songListResponse struct {
	Count int            `json:"count"`
	Songs []songResponse `json:"songs"`
}

func toSongResponse(e catalog.Entry) songResponse {
	return songResponse{
		Name:           e.Name,
		BPM:            e.Tempo,
		Difficulty:     e.Difficulty,
		Genre:          e.Genre,
		Artists:        e.Artists,
		Romaji:         e.Romaji,
		TitleEn:        e.TitleEn,
		TitleKo:        e.TitleKo,
		RealDifficulty: e.RealDifficulty,
		Category:       e.Category,
		URL:            e.DetailURL,
	}
}

func (h *SongHandler) List(w http.ResponseWriter, r *http.Request) {
	songs := lo.Map(h.songs.All(), func(e catalog.Entry, _ int) songResponse {
		return toSongResponse(e)
	})
	if songs == nil {
		songs = []songResponse{}
	}

	writeJSON(w, http.StatusOK, songListResponse{Count: len(songs), Songs: songs})
}

func (h *SongHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	name := q.Get("q")
	if name == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	threshold := catalog.DefaultQueryThreshold
	if raw := q.Get("threshold"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 || parsed > 1 {
			writeError(w, http.StatusBadRequest, "threshold must be a number in (0, 1]")
			return
		}
		threshold = parsed
	}

	entry, ok := h.songs.QueryThreshold(name, threshold)
	if !ok {
		writeError(w, http.StatusNotFound, "song not found")
		return
	}

	writeJSON(w, http.StatusOK, toSongResponse(entry))
}
