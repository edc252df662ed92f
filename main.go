package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/postdesk/config"
	"github.com/cppla/postdesk/routes"
	"github.com/cppla/postdesk/storage"
	"github.com/cppla/postdesk/store"
	"github.com/cppla/postdesk/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer utils.Logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		utils.Logger.Fatal("open storage backend", zap.String("backend", cfg.StorageBackend), zap.Error(err))
	}
	if rb, ok := backend.(*storage.RedisBackend); ok {
		// token revocation shares the storage connection
		utils.SetRedis(rb.Client())
	}
	adapter := storage.NewAdapter(backend, cfg.StorageNamespace)

	posts := store.New(adapter,
		store.WithLogger(utils.Logger.Named("store")),
		store.WithRetention(cfg.Retention()),
	)
	if _, err := posts.Load(ctx); err != nil {
		utils.Logger.Warn("initial save failed, serving unsaved state", zap.Error(err))
	}
	utils.StartPurgeSweeper(ctx, posts, cfg.PurgeInterval())

	if cfg.WatchConfig {
		w, err := utils.WatchConfig(config.Path(), utils.DefaultDebounce)
		if err != nil {
			utils.Logger.Warn("config hot reloading unavailable", zap.Error(err))
		} else {
			defer w.Close()
		}
	}

	if !cfg.AuthEnabled() {
		utils.Logger.Warn("JWT_SECRET not set: mutation routes are open (local mode)")
	}

	r := routes.SetupRouter(cfg, posts)

	utils.Sugar.Infof("Starting server on port %s (graceful), storage=%s", cfg.AppPort, cfg.StorageBackend)
	err = utils.GraceServer(":"+cfg.AppPort, r,
		func(context.Context) error {
			cancel()
			return nil
		},
		func(ctx context.Context) error {
			if !posts.Dirty() {
				return nil
			}
			flushCtx, done := context.WithTimeout(ctx, 5*time.Second)
			defer done()
			return posts.Flush(flushCtx)
		},
		func(context.Context) error { return adapter.Close() },
	)
	if err != nil {
		utils.Logger.Fatal("server stopped with error", zap.Error(err))
	}
}
