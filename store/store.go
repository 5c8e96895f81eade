package store

import (
	"context"
	"fmt"

	"github.com/strangelove-ventures/cctp-bridge/types"
)

// New opens the TransferStore selected by cfg.Backend.
func New(ctx context.Context, cfg types.StoreSettings) (types.TransferStore, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(ctx, RedisConfig{
			Address:  cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	case "sqlite":
		return NewSQLiteStore(cfg.SQLPath)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func matches(status types.Status, statuses []types.Status) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func checkStale(stored, rec *types.TransferRecord) error {
	if stored == nil || rec.Status.Supersedes(stored.Status) {
		return nil
	}
	return fmt.Errorf("saving transfer %s as %s over %s: %w", rec.ID, rec.Status, stored.Status, types.ErrStaleTransfer)
}
