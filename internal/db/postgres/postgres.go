package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kenchan6666/mikabot/internal/db"
	"github.com/kenchan6666/mikabot/internal/metrics"
)

//go:embed schema.sql
var schemaSQL string

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so every repository
// method works inside and outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements db.Repository using PostgreSQL via pgx
type Repository struct {
	pool *pgxpool.Pool
	q    querier
}

// New creates a new PostgreSQL repository and applies the schema.
func New(ctx context.Context, databaseURL string) (*Repository, error) {
	pool, err := db.NewPool(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Repository{pool: pool, q: pool}, nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// Ping verifies connectivity and refreshes the pool gauges so the health
// endpoint doubles as the stats scrape point.
func (r *Repository) Ping(ctx context.Context) error {
	stat := r.pool.Stat()
	metrics.DBPoolTotalConns.Set(float64(stat.TotalConns()))
	metrics.DBPoolIdleConns.Set(float64(stat.IdleConns()))
	metrics.DBPoolAcquiredConns.Set(float64(stat.AcquiredConns()))
	metrics.DBPoolMaxConns.Set(float64(stat.MaxConns()))
	return r.pool.Ping(ctx)
}

func (r *Repository) WithTx(ctx context.Context, fn func(repo db.Repository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	// If fn() panics, the normal err-check rollback below won't run.
	// recover() catches the panic so we can roll back the tx (releasing the
	// db connection), then re-panic.
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback(ctx)
			panic(p)
		}
	}()

	txRepo := &Repository{pool: r.pool, q: tx}

	if err := fn(txRepo); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("transaction error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// User methods

func (r *Repository) UpsertUser(ctx context.Context, arg db.UpsertUserParams) (db.User, error) {
	return scanUser(r.q.QueryRow(ctx, `
		INSERT INTO users (hashed_user_id, preferred_language)
		VALUES ($1, $2)
		ON CONFLICT (hashed_user_id) DO UPDATE SET
			preferred_language = COALESCE(EXCLUDED.preferred_language, users.preferred_language),
			updated_at = now()
		RETURNING hashed_user_id, preferred_language, created_at, updated_at
	`, arg.HashedUserID, arg.PreferredLanguage))
}

func (r *Repository) GetUser(ctx context.Context, hashedUserID string) (db.User, error) {
	return scanUser(r.q.QueryRow(ctx, `
		SELECT hashed_user_id, preferred_language, created_at, updated_at
		FROM users
		WHERE hashed_user_id = $1
	`, hashedUserID))
}

// Impression methods

func (r *Repository) UpsertImpression(ctx context.Context, arg db.UpsertImpressionParams) (db.Impression, error) {
	return scanImpression(r.q.QueryRow(ctx, `
		INSERT INTO impressions (hashed_user_id, content, interaction_count)
		VALUES ($1, $2, 1)
		ON CONFLICT (hashed_user_id) DO UPDATE SET
			content = EXCLUDED.content,
			interaction_count = impressions.interaction_count + 1,
			last_interaction_at = now(),
			updated_at = now()
		RETURNING hashed_user_id, content, interaction_count, last_interaction_at, updated_at
	`, arg.HashedUserID, arg.Content))
}

func (r *Repository) GetImpression(ctx context.Context, hashedUserID string) (db.Impression, error) {
	return scanImpression(r.q.QueryRow(ctx, `
		SELECT hashed_user_id, content, interaction_count, last_interaction_at, updated_at
		FROM impressions
		WHERE hashed_user_id = $1
	`, hashedUserID))
}

// Conversation methods

func (r *Repository) CreateConversation(ctx context.Context, arg db.CreateConversationParams) (db.Conversation, error) {
	ttl := arg.TTL
	if ttl == 0 {
		ttl = db.DefaultConversationTTL
	}

	return scanConversation(r.q.QueryRow(ctx, `
		INSERT INTO conversations (hashed_user_id, group_id, user_message, bot_response, language, song_name, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, hashed_user_id, group_id, user_message, bot_response, language, song_name, created_at, expires_at
	`, arg.HashedUserID, arg.GroupID, arg.UserMessage, arg.BotResponse,
		arg.Language, arg.SongName, time.Now().UTC().Add(ttl)))
}

func (r *Repository) ListRecentConversations(ctx context.Context, arg db.ListRecentConversationsParams) ([]db.Conversation, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, hashed_user_id, group_id, user_message, bot_response, language, song_name, created_at, expires_at
		FROM conversations
		WHERE hashed_user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, arg.HashedUserID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []db.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

func (r *Repository) DeleteExpiredConversations(ctx context.Context) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM conversations WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Helper functions

func scanUser(row pgx.Row) (db.User, error) {
	var u db.User
	err := row.Scan(&u.HashedUserID, &u.PreferredLanguage, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return db.User{}, db.ErrNoRows
	}
	if err != nil {
		return db.User{}, err
	}
	return u, nil
}

func scanImpression(row pgx.Row) (db.Impression, error) {
	var imp db.Impression
	err := row.Scan(&imp.HashedUserID, &imp.Content, &imp.InteractionCount, &imp.LastInteractionAt, &imp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return db.Impression{}, db.ErrNoRows
	}
	if err != nil {
		return db.Impression{}, err
	}
	return imp, nil
}

func scanConversation(row pgx.Row) (db.Conversation, error) {
	var c db.Conversation
	err := row.Scan(&c.ID, &c.HashedUserID, &c.GroupID, &c.UserMessage, &c.BotResponse,
		&c.Language, &c.SongName, &c.CreatedAt, &c.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return db.Conversation{}, db.ErrNoRows
	}
	if err != nil {
		return db.Conversation{}, err
	}
	return c, nil
}
