package db

import (
	"context"
	"database/sql"
	"time"
)

// DefaultConversationTTL is how long conversation rows are kept before the
// retention cleaner removes them.
const DefaultConversationTTL = 90 * 24 * time.Hour

// User is a chat participant, keyed by the SHA-256 hash of their platform ID.
// Raw platform IDs never reach the database.
type User struct {
	HashedUserID      string
	PreferredLanguage sql.NullString
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Impression is the bot's accumulated sense of a user, fed back into prompts.
type Impression struct {
	HashedUserID      string
	Content           string
	InteractionCount  int64
	LastInteractionAt time.Time
	UpdatedAt         time.Time
}

// Conversation is one user message / bot response exchange.
type Conversation struct {
	ID           int64
	HashedUserID string
	GroupID      sql.NullString
	UserMessage  string
	BotResponse  string
	Language     string
	SongName     sql.NullString
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

type UpsertUserParams struct {
	HashedUserID      string
	PreferredLanguage sql.NullString
}

type UpsertImpressionParams struct {
	HashedUserID string
	Content      string
}

type CreateConversationParams struct {
	HashedUserID string
	GroupID      sql.NullString
	UserMessage  string
	BotResponse  string
	Language     string
	SongName     sql.NullString
	// TTL of zero means DefaultConversationTTL.
	TTL time.Duration
}

type ListRecentConversationsParams struct {
	HashedUserID string
	Limit        int32
}

// Repository defines the interface for database operations
type Repository interface {
	// Users
	UpsertUser(ctx context.Context, arg UpsertUserParams) (User, error)
	GetUser(ctx context.Context, hashedUserID string) (User, error)

	// Impressions
	UpsertImpression(ctx context.Context, arg UpsertImpressionParams) (Impression, error)
	GetImpression(ctx context.Context, hashedUserID string) (Impression, error)

	// Conversations
	CreateConversation(ctx context.Context, arg CreateConversationParams) (Conversation, error)
	ListRecentConversations(ctx context.Context, arg ListRecentConversationsParams) ([]Conversation, error)
	DeleteExpiredConversations(ctx context.Context) (int64, error)

	// Transaction support
	WithTx(ctx context.Context, fn func(repo Repository) error) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}
