package cmd

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/chatloom/chatloom/pkg/persistence"
	"github.com/chatloom/chatloom/pkg/persistence/file"
	"github.com/chatloom/chatloom/pkg/persistence/postgresql"
	"github.com/chatloom/chatloom/pkg/persistence/redis"
)

var supportedPersistenceProviders = []string{"file", "postgres", "postgresql", "redis", "rediss"}

// conversationTTL bounds Redis conversation keys. SQL and file backends keep
// history until it is explicitly cleared.
const conversationTTL = 30 * 24 * time.Hour

// NewPersistence creates a persistence backend from the database URL scheme.
// Unrecognized schemes fall back to file storage.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case "redis", "rediss":
		return redis.NewPersistence(ctx, databaseURL, conversationTTL)
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	parts := strings.Split(databaseURL, "://")

	provider := parts[0]
	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return "file"
}
