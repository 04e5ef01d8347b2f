package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kenchan6666/mikabot/internal/db"
	"github.com/kenchan6666/mikabot/internal/metrics"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// querier is satisfied by both *sql.DB and *sql.Tx so every repository
// method works inside and outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository implements db.Repository using SQLite
type Repository struct {
	db *sql.DB
	q  querier
}

// New creates a new SQLite repository
func New(ctx context.Context, dbPath string) (*Repository, error) {
	// Strip sqlite:// prefix if present
	dbPath = strings.TrimPrefix(dbPath, "sqlite://")

	isNew := false
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		isNew = true
	}

	sqliteDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening SQLite database: %w", err)
	}

	// Each new connection to :memory: gets a fresh empty database, so the
	// pool must hold exactly one.
	if strings.Contains(dbPath, ":memory:") {
		sqliteDB.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := sqliteDB.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		sqliteDB.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := sqliteDB.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		sqliteDB.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := sqliteDB.ExecContext(ctx, schemaSQL); err != nil {
		sqliteDB.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	if isNew {
		slog.Info("created new SQLite database", "path", dbPath)
	}

	return &Repository{db: sqliteDB, q: sqliteDB}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) Ping(ctx context.Context) error {
	stats := r.db.Stats()
	metrics.DBPoolTotalConns.Set(float64(stats.OpenConnections))
	metrics.DBPoolIdleConns.Set(float64(stats.Idle))
	metrics.DBPoolAcquiredConns.Set(float64(stats.InUse))
	metrics.DBPoolMaxConns.Set(float64(stats.MaxOpenConnections))
	return r.db.PingContext(ctx)
}

func (r *Repository) WithTx(ctx context.Context, fn func(repo db.Repository) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	// If fn() panics, the normal err-check rollback below won't run.
	// recover() catches the panic so we can roll back the tx, then re-panic.
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	txRepo := &Repository{db: r.db, q: tx}

	if err := fn(txRepo); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// User methods

func (r *Repository) UpsertUser(ctx context.Context, arg db.UpsertUserParams) (db.User, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO users (hashed_user_id, preferred_language, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (hashed_user_id) DO UPDATE SET
			preferred_language = COALESCE(excluded.preferred_language, users.preferred_language),
			updated_at = excluded.updated_at
	`, arg.HashedUserID, nullString(arg.PreferredLanguage), now, now)
	if err != nil {
		return db.User{}, err
	}

	return r.GetUser(ctx, arg.HashedUserID)
}

func (r *Repository) GetUser(ctx context.Context, hashedUserID string) (db.User, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT hashed_user_id, preferred_language, created_at, updated_at
		FROM users
		WHERE hashed_user_id = ?
	`, hashedUserID)

	return scanUser(row)
}

// Impression methods

func (r *Repository) UpsertImpression(ctx context.Context, arg db.UpsertImpressionParams) (db.Impression, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO impressions (hashed_user_id, content, interaction_count, last_interaction_at, updated_at)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT (hashed_user_id) DO UPDATE SET
			content = excluded.content,
			interaction_count = impressions.interaction_count + 1,
			last_interaction_at = excluded.last_interaction_at,
			updated_at = excluded.updated_at
	`, arg.HashedUserID, arg.Content, now, now)
	if err != nil {
		return db.Impression{}, err
	}

	return r.GetImpression(ctx, arg.HashedUserID)
}

func (r *Repository) GetImpression(ctx context.Context, hashedUserID string) (db.Impression, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT hashed_user_id, content, interaction_count, last_interaction_at, updated_at
		FROM impressions
		WHERE hashed_user_id = ?
	`, hashedUserID)

	return scanImpression(row)
}

// Conversation methods

func (r *Repository) CreateConversation(ctx context.Context, arg db.CreateConversationParams) (db.Conversation, error) {
	ttl := arg.TTL
	if ttl == 0 {
		ttl = db.DefaultConversationTTL
	}
	now := time.Now().UTC()

	result, err := r.q.ExecContext(ctx, `
		INSERT INTO conversations (hashed_user_id, group_id, user_message, bot_response, language, song_name, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, arg.HashedUserID, nullString(arg.GroupID), arg.UserMessage, arg.BotResponse,
		arg.Language, nullString(arg.SongName), now.Format(time.RFC3339), now.Add(ttl).Format(time.RFC3339))
	if err != nil {
		return db.Conversation{}, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return db.Conversation{}, err
	}

	row := r.q.QueryRowContext(ctx, `
		SELECT id, hashed_user_id, group_id, user_message, bot_response, language, song_name, created_at, expires_at
		FROM conversations
		WHERE id = ?
	`, id)

	return scanConversation(row)
}

func (r *Repository) ListRecentConversations(ctx context.Context, arg db.ListRecentConversationsParams) ([]db.Conversation, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, hashed_user_id, group_id, user_message, bot_response, language, song_name, created_at, expires_at
		FROM conversations
		WHERE hashed_user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, arg.HashedUserID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanConversations(rows)
}

func (r *Repository) DeleteExpiredConversations(ctx context.Context) (int64, error) {
	result, err := r.q.ExecContext(ctx, `
		DELETE FROM conversations WHERE expires_at <= ?
	`, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Helper functions

func scanUser(row *sql.Row) (db.User, error) {
	var u db.User
	var createdAtStr, updatedAtStr string
	err := row.Scan(&u.HashedUserID, &u.PreferredLanguage, &createdAtStr, &updatedAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return db.User{}, db.ErrNoRows
	}
	if err != nil {
		return db.User{}, err
	}
	u.CreatedAt = parseTime(createdAtStr)
	u.UpdatedAt = parseTime(updatedAtStr)
	return u, nil
}

func scanImpression(row *sql.Row) (db.Impression, error) {
	var imp db.Impression
	var lastInteractionStr, updatedAtStr string
	err := row.Scan(&imp.HashedUserID, &imp.Content, &imp.InteractionCount, &lastInteractionStr, &updatedAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return db.Impression{}, db.ErrNoRows
	}
	if err != nil {
		return db.Impression{}, err
	}
	imp.LastInteractionAt = parseTime(lastInteractionStr)
	imp.UpdatedAt = parseTime(updatedAtStr)
	return imp, nil
}

func scanConversation(row *sql.Row) (db.Conversation, error) {
	var c db.Conversation
	var createdAtStr, expiresAtStr string
	err := row.Scan(&c.ID, &c.HashedUserID, &c.GroupID, &c.UserMessage, &c.BotResponse,
		&c.Language, &c.SongName, &createdAtStr, &expiresAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return db.Conversation{}, db.ErrNoRows
	}
	if err != nil {
		return db.Conversation{}, err
	}
	c.CreatedAt = parseTime(createdAtStr)
	c.ExpiresAt = parseTime(expiresAtStr)
	return c, nil
}

func scanConversations(rows *sql.Rows) ([]db.Conversation, error) {
	var convs []db.Conversation
	for rows.Next() {
		var c db.Conversation
		var createdAtStr, expiresAtStr string
		if err := rows.Scan(&c.ID, &c.HashedUserID, &c.GroupID, &c.UserMessage, &c.BotResponse,
			&c.Language, &c.SongName, &createdAtStr, &expiresAtStr); err != nil {
			return nil, err
		}
		c.CreatedAt = parseTime(createdAtStr)
		c.ExpiresAt = parseTime(expiresAtStr)
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// parseTime reads the RFC3339 text this package writes. Anything else in the
// column is a bug, so a zero time on failure is acceptable.
func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func nullString(s sql.NullString) any {
	if s.Valid {
		return s.String
	}
	return nil
}
