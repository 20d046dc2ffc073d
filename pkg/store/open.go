package store

import (
	"context"
	"fmt"

	"xroute/config"
)

// Open returns the persister selected by cfg.Driver. The memory driver
// has no persister.
func Open(ctx context.Context, cfg config.StoreConfig) (Persister, error) {
	switch cfg.Driver {
	case "", "memory":
		return nil, nil
	case "file":
		fs, err := NewFileStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case "redis":
		rs, err := NewRedisStore(cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		return rs, nil
	case "postgres":
		ps, err := NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return ps, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
