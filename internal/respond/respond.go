// Package respond turns an admitted message plus its gathered context into
// the bot's in-character reply.
package respond

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kenchan6666/mikabot/internal/catalog"
	"github.com/kenchan6666/mikabot/internal/db"
	"github.com/kenchan6666/mikabot/internal/intent"
	"github.com/kenchan6666/mikabot/internal/language"
	"github.com/kenchan6666/mikabot/internal/llm"
	"github.com/kenchan6666/mikabot/internal/metrics"
)

// Request carries everything the prompt needs. History is newest-first, the
// order ListRecentConversations returns it in.
type Request struct {
	Message          string
	Language         string
	Intent           intent.Intent
	Song             *catalog.Entry
	UsedFallback     bool
	Impression       string
	InteractionCount int64
	History          []db.Conversation
}

// Responder builds persona prompts and calls the configured LLM.
type Responder struct {
	log      *slog.Logger
	llm      llm.Client
	botName  string
	provider string
}

func New(log *slog.Logger, client llm.Client, botName, provider string) *Responder {
	return &Responder{
		log:      log,
		llm:      client,
		botName:  botName,
		provider: provider,
	}
}

// Reply always returns something sendable: the LLM's reply on success, the
// degradation line when the provider fails. Errors are logged, never
// surfaced.
func (r *Responder) Reply(ctx context.Context, req Request) string {
	system := r.systemPrompt(req.Language)
	user := r.userPrompt(req)

	start := time.Now()
	text, err := r.llm.Complete(ctx, system, user)
	metrics.LLMCallDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.LLMCallsTotal.WithLabelValues(r.provider, "error").Inc()
		r.log.Warn("llm call failed, degrading to fallback line",
			"provider", r.provider,
			"intent", string(req.Intent),
			"error", err)
		return FallbackLine(r.botName, req.Language)
	}
	metrics.LLMCallsTotal.WithLabelValues(r.provider, "success").Inc()

	text = strings.TrimSpace(text)
	if text == "" {
		return FallbackLine(r.botName, req.Language)
	}
	return text
}

// FallbackLine is the themed reply used when the LLM is unavailable.
func FallbackLine(botName, lang string) string {
	if lang == language.Chinese {
		return fmt.Sprintf("Don! %s暂时无法回应，但我会尽快回来的！🥁", botName)
	}
	return fmt.Sprintf("Don! %s is temporarily unavailable, but I'll be back soon! 🥁", botName)
}

func (r *Responder) systemPrompt(lang string) string {
	langName := "English"
	if lang == language.Chinese {
		langName = "中文 (Chinese)"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, a cheerful Taiko no Tatsujin drum spirit! 🥁\n\n", r.botName)
	sb.WriteString("Your personality:\n")
	sb.WriteString("- You love Taiko no Tatsujin (太鼓の達人) and everything about rhythm games\n")
	sb.WriteString("- You're playful and enthusiastic, using game terminology like \"Don!\" and \"Katsu!\"\n")
	sb.WriteString("- You respond in a friendly, themed way with emojis 🥁🎶\n")
	sb.WriteString("- You are a Gold 5th Dan (金五段) player: confident on mid-tier charts, openly scared of 魔王 difficulty\n")
	fmt.Fprintf(&sb, "- You speak %s (the user's language)\n\n", langName)
	sb.WriteString("Keep replies short enough for a chat message. Never break character.")
	return sb.String()
}

func (r *Responder) userPrompt(req Request) string {
	var sb strings.Builder

	if req.Impression != "" {
		fmt.Fprintf(&sb, "What you remember about this user: %s\n", req.Impression)
		fmt.Fprintf(&sb, "Total interactions so far: %d\n\n", req.InteractionCount)
	}

	if len(req.History) > 0 {
		sb.WriteString("Recent conversation:\n")
		// History arrives newest-first; render oldest-first so it reads
		// top to bottom.
		for i := len(req.History) - 1; i >= 0; i-- {
			c := req.History[i]
			fmt.Fprintf(&sb, "User: %s\n", c.UserMessage)
			fmt.Fprintf(&sb, "%s: %s\n", r.botName, c.BotResponse)
		}
		sb.WriteString("\n")
	}

	if req.Song != nil {
		sb.WriteString("Song information:\n")
		fmt.Fprintf(&sb, "- Name: %s\n", req.Song.Name)
		if req.Song.Tempo > 0 {
			fmt.Fprintf(&sb, "- BPM: %d\n", req.Song.Tempo)
		}
		if req.Song.Difficulty > 0 {
			fmt.Fprintf(&sb, "- Difficulty: %d stars\n", req.Song.Difficulty)
		}
		if req.Song.Genre != "" {
			fmt.Fprintf(&sb, "- Genre: %s\n", req.Song.Genre)
		}
		if req.Song.RealDifficulty > 0 {
			fmt.Fprintf(&sb, "- Community rating: %.1f (%s)\n", req.Song.RealDifficulty, req.Song.Category)
		}
		if req.UsedFallback {
			sb.WriteString("Note: this data comes from the local cache and may not be the latest. " +
				"Mention that naturally (e.g. \"使用缓存数据，可能不是最新的\" / \"using cached data, may not be latest\").\n")
		}
		sb.WriteString("\n")
	}

	if hint := scenarioHint(req.Intent); hint != "" {
		sb.WriteString(hint)
		sb.WriteString("\n\n")
	}

	fmt.Fprintf(&sb, "User message: %s\n\n", req.Message)
	fmt.Fprintf(&sb, "Respond as %s with themed content, incorporating game elements and emojis.", r.botName)
	return sb.String()
}

func scenarioHint(in intent.Intent) string {
	switch in {
	case intent.SongQuery:
		return "The user is asking about a specific song. Answer with the accurate numbers above and playful commentary."
	case intent.SongRecommendation:
		return "The user wants song recommendations. Suggest a few songs that fit what they asked for."
	case intent.DifficultyAdvice:
		return "The user wants practice or difficulty advice. Be encouraging and concrete."
	case intent.GameTips:
		return "The user wants play technique tips. Share practical drumming advice."
	case intent.Greeting:
		return "The user is greeting you. Greet them back warmly."
	case intent.Help:
		return "The user is asking what you can do. Explain your song lookup and chat abilities in character."
	case intent.Goodbye:
		return "The user is saying goodbye. Send them off cheerfully."
	default:
		return ""
	}
}
