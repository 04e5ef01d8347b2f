// Seed script for local development. Writes the catalog fallback and the
// community difficulty overlay under data/ so the bot can answer song
// queries before its first taiko.wiki sync.
//
// Usage:
//
//	go run scripts/seed.go
//	go run scripts/seed.go --data-dir data --force  (overwrite existing fixtures)
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/kenchan6666/mikabot/internal/catalog"
)

// wikiSong mirrors the record shape of the taiko.wiki song list endpoint.
type wikiSong struct {
	Title   string         `json:"title"`
	SongNo  string         `json:"songNo"`
	BPM     any            `json:"bpm"`
	Courses map[string]any `json:"courses"`
	Genre   []string       `json:"genre"`
	Artists []string       `json:"artists,omitempty"`
	Romaji  string         `json:"romaji,omitempty"`
}

type bpmRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

func oni(level int) map[string]any {
	return map[string]any{
		"easy":   map[string]any{"level": 5},
		"normal": map[string]any{"level": 7},
		"hard":   map[string]any{"level": 8},
		"oni":    map[string]any{"level": level},
		"ura":    nil,
	}
}

var songs = []wikiSong{
	{Title: "夏祭り", SongNo: "1", BPM: 180, Courses: oni(7), Genre: []string{"ポップス"}, Artists: []string{"ジッタリン・ジン"}, Romaji: "Natsu Matsuri"},
	{Title: "紅蓮華", SongNo: "2", BPM: 117, Courses: oni(7), Genre: []string{"アニメ"}, Artists: []string{"LiSA"}, Romaji: "Gurenge"},
	{Title: "残酷な天使のテーゼ", SongNo: "3", BPM: 128, Courses: oni(7), Genre: []string{"アニメ"}, Artists: []string{"高橋洋子"}, Romaji: "Zankoku na Tenshi no These"},
	{Title: "千本桜", SongNo: "4", BPM: 154, Courses: oni(8), Genre: []string{"ボーカロイド曲"}, Artists: []string{"黒うさP feat. 初音ミク"}, Romaji: "Senbonzakura"},
	{Title: "夜に駆ける", SongNo: "5", BPM: 130, Courses: oni(8), Genre: []string{"ポップス"}, Artists: []string{"YOASOBI"}, Romaji: "Yoru ni Kakeru"},
	{Title: "さいたま2000", SongNo: "6", BPM: 180, Courses: oni(8), Genre: []string{"ナムコオリジナル"}, Romaji: "Saitama 2000"},
	{Title: "Xa", SongNo: "7", BPM: 185, Courses: oni(10), Genre: []string{"ナムコオリジナル"}, Romaji: "Xa"},
	{Title: "第六天魔王", SongNo: "8", BPM: 200, Courses: oni(10), Genre: []string{"ナムコオリジナル"}, Romaji: "Dairokuten Maou"},
	{Title: "幽玄ノ乱", SongNo: "9", BPM: 300, Courses: oni(10), Genre: []string{"ナムコオリジナル"}, Romaji: "Yuugen no Ran"},
	{Title: "〆ドレー2000", SongNo: "10", BPM: bpmRange{Min: 100, Max: 360}, Courses: oni(10), Genre: []string{"ナムコオリジナル"}, Romaji: "Shimedoree 2000"},
	{Title: "ドンカマ2000", SongNo: "11", BPM: bpmRange{Min: 90, Max: 999}, Courses: oni(10), Genre: []string{"ナムコオリジナル"}, Romaji: "Donkama 2000"},
}

var ratings = []catalog.Record{
	{Name: "Xa", Stars: 10, RealDifficulty: 10.52, Category: "中等", Tempo: 185, Genre: "ナムコオリジナル", URL: "https://taiko.wiki/song/Xa"},
	{Name: "第六天魔王", Stars: 10, RealDifficulty: 10.94, Category: "难", Tempo: 200, Genre: "ナムコオリジナル", URL: "https://taiko.wiki/song/第六天魔王"},
	{Name: "〆ドレー2000", Stars: 10, RealDifficulty: 11.05, Category: "很难", Tempo: 360, Genre: "ナムコオリジナル", URL: "https://taiko.wiki/song/〆ドレー2000"},
	{Name: "幽玄ノ乱", Stars: 10, RealDifficulty: 11.21, Category: "很难", Tempo: 300, Genre: "ナムコオリジナル", URL: "https://taiko.wiki/song/幽玄ノ乱"},
	{Name: "ドンカマ2000", Stars: 10, RealDifficulty: 11.31, Category: "超级难", Tempo: 999, Genre: "ナムコオリジナル", URL: "https://taiko.wiki/song/ドンカマ2000"},
}

func main() {
	dataDir := flag.String("data-dir", "data", "Directory for catalog fixtures")
	force := flag.Bool("force", false, "Overwrite fixtures that already exist")
	flag.Parse()

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		log.Fatalf("creating %s: %v", *dataDir, err)
	}

	log.Printf("Seeding %d songs and %d difficulty ratings...", len(songs), len(ratings))

	if err := writeJSON(filepath.Join(*dataDir, "database.json"), songs, *force); err != nil {
		log.Fatalf("writing catalog fallback: %v", err)
	}

	overlay := struct {
		TotalSongs int              `json:"total_songs"`
		Songs      []catalog.Record `json:"songs"`
	}{len(ratings), ratings}
	if err := writeJSON(filepath.Join(*dataDir, "song_difficulty_database.json"), overlay, *force); err != nil {
		log.Fatalf("writing difficulty overlay: %v", err)
	}

	log.Println("Done!")
	log.Println("")
	log.Println("To start the bot:")
	log.Println("  go run ./cmd/bot")
	log.Println("  Point the LangBot webhook at http://localhost:8000/webhook/langbot")
}

func writeJSON(path string, v any, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			fmt.Printf("  - %s already exists, skipping (use --force to overwrite)\n", path)
			return nil
		}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return err
	}
	fmt.Printf("  ✓ %s (%d bytes)\n", path, len(data))
	return nil
}
