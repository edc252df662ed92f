package storage

import (
	"context"
	"fmt"

	"github.com/cppla/postdesk/config"
)

// Open builds the backend selected by cfg.StorageBackend.
func Open(ctx context.Context, cfg config.AppConfig) (Backend, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		return NewMemoryBackend(), nil
	case config.BackendSQLite, "":
		return NewSQLiteBackend(cfg.SQLitePath)
	case config.BackendRedis:
		return NewRedisBackend(ctx, RedisOptions{
			Addr:     cfg.RedisAddr(),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	case config.BackendMySQL:
		db, err := config.OpenDatabase(cfg)
		if err != nil {
			return nil, err
		}
		return NewGormBackend(db)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
