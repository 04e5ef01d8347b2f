package bot

import (
	"context"

	"github.com/kenchan6666/mikabot/internal/catalog"
	"github.com/kenchan6666/mikabot/internal/respond"
)

// CatalogStore defines the catalog refresh interface used by Bot.
type CatalogStore interface {
	EnsureFresh(ctx context.Context) (usedFallback bool, err error)
}

// SongQueries defines the song lookup interface used by Bot.
type SongQueries interface {
	Query(name string) (catalog.Entry, bool)
}

// ResponseBuilder defines the reply generation interface used by Bot.
type ResponseBuilder interface {
	Reply(ctx context.Context, req respond.Request) string
}

// MessageSender defines the outbound platform interface used by Bot.
type MessageSender interface {
	Enabled() bool
	SendMessage(ctx context.Context, botUUID, targetType, targetID, text string) error
}
