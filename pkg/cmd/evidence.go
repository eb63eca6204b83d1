package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/regenera-io/regenera/pkg/evidence"
)

// NewEvidenceStore selects the evidence store from the URL: redis:// for a
// shared store, empty for in-process memory.
func NewEvidenceStore(ctx context.Context, logger *slog.Logger, url string) evidence.Store {
	if url == "" {
		return evidence.NewMemoryStore()
	}

	if strings.HasPrefix(url, "redis://") {
		options, err := redis.ParseURL(url)
		if err != nil {
			panic(err)
		}

		store, err := evidence.NewRedisStore(ctx, logger, options.Addr, options.Password, options.DB)
		if err != nil {
			panic(err)
		}

		return store
	}

	panic("unsupported evidence store url: " + url)
}
