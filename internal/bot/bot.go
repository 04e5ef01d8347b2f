// Package bot runs inbound messages through the reply pipeline: mention
// gating, admission, content screening, intent routing, catalog lookups,
// reply generation, and persistence.
package bot

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/kenchan6666/mikabot/internal/admission"
	"github.com/kenchan6666/mikabot/internal/catalog"
	"github.com/kenchan6666/mikabot/internal/contentfilter"
	"github.com/kenchan6666/mikabot/internal/db"
	"github.com/kenchan6666/mikabot/internal/intent"
	"github.com/kenchan6666/mikabot/internal/langbot"
	"github.com/kenchan6666/mikabot/internal/language"
	"github.com/kenchan6666/mikabot/internal/metrics"
	"github.com/kenchan6666/mikabot/internal/privacy"
	"github.com/kenchan6666/mikabot/internal/respond"
	"github.com/samber/lo"
)

// DefaultMentionPattern matches the bot's name anywhere in a message. Longer
// alternatives come first so stripping removes "mika酱" whole instead of
// leaving the 酱 behind.
const DefaultMentionPattern = `(?i)(mika酱|mika|米卡)`

type Config struct {
	// MentionPattern gates the pipeline; messages that do not match it are
	// ignored entirely.
	MentionPattern string
	// AllowedGroups restricts which group chats the bot answers in when
	// non-empty. Direct chats are always answered.
	AllowedGroups   []string
	DefaultLanguage string
	// HistoryLimit is how many recent conversations feed the prompt.
	HistoryLimit int32
	// ConversationTTL of zero means db.DefaultConversationTTL.
	ConversationTTL time.Duration
	// CleanupInterval is how often Run deletes expired conversations.
	CleanupInterval time.Duration
}

// Inbound is one message entering the pipeline. GroupID is empty for direct
// chats. BotUUID is set when the event form carried one, and enables the
// LangBot push on top of the webhook response.
type Inbound struct {
	MessageID string
	SenderID  string
	GroupID   string
	Text      string
	BotUUID   string
}

// Outcome is what the pipeline produced. A skipped message has no reply and
// names why it was dropped.
type Outcome struct {
	Reply      string
	Skipped    bool
	SkipReason string
}

type Bot struct {
	log       *slog.Logger
	repo      db.Repository
	limiter   *admission.RateLimiter
	dedup     *admission.Deduplicator
	store     CatalogStore
	queries   SongQueries
	responder ResponseBuilder
	filter    *contentfilter.Filter
	sender    MessageSender
	mention   *regexp.Regexp
	config    Config
}

func New(
	log *slog.Logger,
	repo db.Repository,
	limiter *admission.RateLimiter,
	dedup *admission.Deduplicator,
	store CatalogStore,
	queries SongQueries,
	responder ResponseBuilder,
	filter *contentfilter.Filter,
	sender MessageSender,
	config Config,
) (*Bot, error) {
	if config.MentionPattern == "" {
		config.MentionPattern = DefaultMentionPattern
	}
	mention, err := regexp.Compile(config.MentionPattern)
	if err != nil {
		return nil, fmt.Errorf("compiling mention pattern: %w", err)
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = 10
	}
	if config.ConversationTTL <= 0 {
		config.ConversationTTL = db.DefaultConversationTTL
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Hour
	}
	if config.DefaultLanguage == "" {
		config.DefaultLanguage = language.Chinese
	}
	return &Bot{
		log:       log,
		repo:      repo,
		limiter:   limiter,
		dedup:     dedup,
		store:     store,
		queries:   queries,
		responder: responder,
		filter:    filter,
		sender:    sender,
		mention:   mention,
		config:    config,
	}, nil
}

// HandleMessage runs one message through the pipeline and returns the reply.
// A skipped Outcome is not an error. Rate limiting is: the returned
// *admission.LimitError lets transports map it to 429 without string
// matching.
func (b *Bot) HandleMessage(ctx context.Context, in Inbound) (Outcome, error) {
	if !b.mention.MatchString(in.Text) {
		return Outcome{Skipped: true, SkipReason: "no mention"}, nil
	}

	if in.GroupID != "" && len(b.config.AllowedGroups) > 0 && !lo.Contains(b.config.AllowedGroups, in.GroupID) {
		b.log.InfoContext(ctx, "message from disallowed group", "group_id", in.GroupID)
		return Outcome{Skipped: true, SkipReason: "group not allowed"}, nil
	}

	hashed := privacy.HashUserID(in.SenderID)
	log := b.log.With("user", privacy.Abbrev(hashed), "message_id", in.MessageID)

	if verdict := b.limiter.Check(hashed, in.GroupID); !verdict.Allowed {
		metrics.RateLimitRejections.WithLabelValues(verdict.Scope).Inc()
		log.WarnContext(ctx, "message rate limited", "scope", verdict.Scope, "remaining", verdict.Remaining)
		return Outcome{}, verdict.Err()
	}

	if b.dedup.IsDuplicate(hashed, in.Text) {
		metrics.DuplicatesSuppressed.Inc()
		log.InfoContext(ctx, "near-duplicate message suppressed")
		return Outcome{Skipped: true, SkipReason: "duplicate message"}, nil
	}

	if blocked, reason := b.filter.Check(in.Text, ""); blocked {
		metrics.MessagesFiltered.WithLabelValues(reason).Inc()
		log.InfoContext(ctx, "message filtered", "reason", reason)
		return Outcome{Skipped: true, SkipReason: "filtered: " + reason}, nil
	}

	text := b.stripMention(in.Text)
	msgIntent := intent.Detect(text)

	song, usedFallback := b.songContext(ctx, log, msgIntent, text)

	user, impression, history := b.loadContext(ctx, log, hashed)
	lang := language.Resolve(user.PreferredLanguage.String, language.Detect(text), b.config.DefaultLanguage)

	reply := b.responder.Reply(ctx, respond.Request{
		Message:          text,
		Language:         lang,
		Intent:           msgIntent,
		Song:             song,
		UsedFallback:     usedFallback,
		Impression:       impression.Content,
		InteractionCount: impression.InteractionCount,
		History:          history,
	})

	ex := exchange{
		hashed:   hashed,
		groupID:  in.GroupID,
		message:  text,
		reply:    reply,
		language: lang,
		count:    impression.InteractionCount,
	}
	if song != nil {
		ex.songName = song.Name
	}
	if err := b.persistExchange(ctx, ex); err != nil {
		log.ErrorContext(ctx, "failed to persist exchange", "error", err)
	} else {
		metrics.ConversationsStored.Inc()
	}

	b.deliver(ctx, log, in, reply)

	return Outcome{Reply: reply}, nil
}

// stripMention removes the bot's name and the punctuation hanging off it so
// intent detection sees only the request itself.
func (b *Bot) stripMention(text string) string {
	stripped := b.mention.ReplaceAllString(text, "")
	stripped = strings.TrimLeft(stripped, " \t,:，：!！、")
	return strings.TrimSpace(stripped)
}

// songContext refreshes the catalog and resolves the song a message asks
// about. Greetings, help requests, and farewells skip the lookup; any other
// message may name a song mid-chat, so they all get a shot at extraction.
func (b *Bot) songContext(ctx context.Context, log *slog.Logger, in intent.Intent, text string) (*catalog.Entry, bool) {
	switch in {
	case intent.Greeting, intent.Help, intent.Goodbye:
		return nil, false
	}

	name, ok := intent.ExtractSongQuery(text)
	if !ok {
		return nil, false
	}

	usedFallback, err := b.store.EnsureFresh(ctx)
	if err != nil {
		log.WarnContext(ctx, "catalog refresh failed, using stale data", "error", err)
	} else if usedFallback {
		log.WarnContext(ctx, "catalog refreshed from local fallback")
	}

	entry, found := b.queries.Query(name)
	if !found {
		log.InfoContext(ctx, "no song matched query", "query", name)
		return nil, usedFallback
	}
	return &entry, usedFallback
}

// loadContext gathers the stored user, impression, and recent history.
// Missing rows are normal on first contact; lookup failures degrade to an
// empty context rather than dropping the reply.
func (b *Bot) loadContext(ctx context.Context, log *slog.Logger, hashed string) (db.User, db.Impression, []db.Conversation) {
	user, err := b.repo.GetUser(ctx, hashed)
	if err != nil && !db.IsNoRows(err) {
		log.WarnContext(ctx, "loading user failed", "error", err)
	}

	impression, err := b.repo.GetImpression(ctx, hashed)
	if err != nil && !db.IsNoRows(err) {
		log.WarnContext(ctx, "loading impression failed", "error", err)
	}

	history, err := b.repo.ListRecentConversations(ctx, db.ListRecentConversationsParams{
		HashedUserID: hashed,
		Limit:        b.config.HistoryLimit,
	})
	if err != nil {
		log.WarnContext(ctx, "loading history failed", "error", err)
	}

	return user, impression, history
}

type exchange struct {
	hashed   string
	groupID  string
	message  string
	reply    string
	language string
	songName string
	// count is the interaction count before this exchange.
	count int64
}

// persistExchange records the turn in one transaction: the user row with the
// reply language, the impression whose incremented count drives the
// relationship tier, and the conversation itself.
func (b *Bot) persistExchange(ctx context.Context, ex exchange) error {
	return b.repo.WithTx(ctx, func(r db.Repository) error {
		if _, err := r.UpsertUser(ctx, db.UpsertUserParams{
			HashedUserID:      ex.hashed,
			PreferredLanguage: nullString(ex.language),
		}); err != nil {
			return fmt.Errorf("upserting user: %w", err)
		}

		if _, err := r.UpsertImpression(ctx, db.UpsertImpressionParams{
			HashedUserID: ex.hashed,
			Content:      relationshipStatus(ex.count + 1),
		}); err != nil {
			return fmt.Errorf("upserting impression: %w", err)
		}

		if _, err := r.CreateConversation(ctx, db.CreateConversationParams{
			HashedUserID: ex.hashed,
			GroupID:      nullString(ex.groupID),
			UserMessage:  ex.message,
			BotResponse:  ex.reply,
			Language:     ex.language,
			SongName:     nullString(ex.songName),
			TTL:          b.config.ConversationTTL,
		}); err != nil {
			return fmt.Errorf("creating conversation: %w", err)
		}
		return nil
	})
}

// relationshipStatus maps a lifetime interaction count to the tier the
// persona prompt leans on.
func relationshipStatus(count int64) string {
	switch {
	case count <= 2:
		return "new"
	case count <= 10:
		return "acquaintance"
	case count <= 50:
		return "friend"
	default:
		return "regular"
	}
}

// deliver pushes the reply through LangBot when the inbound event named a
// bot instance. Webhook callers already get the reply in the response body,
// so a push failure is logged and swallowed.
func (b *Bot) deliver(ctx context.Context, log *slog.Logger, in Inbound, reply string) {
	if in.BotUUID == "" || !b.sender.Enabled() {
		return
	}

	targetType, targetID := langbot.TargetPerson, in.SenderID
	if in.GroupID != "" {
		targetType, targetID = langbot.TargetGroup, in.GroupID
	}

	if err := b.sender.SendMessage(ctx, in.BotUUID, targetType, targetID, reply); err != nil {
		log.WarnContext(ctx, "langbot send failed", "target_type", targetType, "error", err)
	}
}

// Run drives the retention cleaner until ctx is cancelled. Expired
// conversations are deleted on start and then once per CleanupInterval.
func (b *Bot) Run(ctx context.Context) {
	b.log.InfoContext(ctx, "retention cleaner running", "interval", b.config.CleanupInterval)
	for ctx.Err() == nil {
		cleanupCtx, cancel := context.WithTimeout(ctx, time.Minute)
		deleted, err := b.repo.DeleteExpiredConversations(cleanupCtx)
		cancel()
		if err != nil {
			b.log.Error("deleting expired conversations", "error", err)
		} else if deleted > 0 {
			b.log.Info("deleted expired conversations", "count", deleted)
		}

		sleepWithContext(ctx, b.config.CleanupInterval)
	}
	b.log.Info("retention cleaner stopped")
}

func sleepWithContext(ctx context.Context, dur time.Duration) {
	timer := time.NewTimer(dur)
	defer timer.Stop()

	select {
	case <-timer.C:
		return
	case <-ctx.Done():
		return
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
