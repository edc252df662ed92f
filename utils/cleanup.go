package utils

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Purger removes soft-deleted records whose recovery window has passed.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// StartPurgeSweeper launches a background goroutine that periodically purges
// expired posts until ctx is cancelled. It is best-effort and logs failures.
func StartPurgeSweeper(ctx context.Context, p Purger, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			// Wait first; Load has already purged once at startup
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			removed, err := p.PurgeExpired(ctx)
			if err != nil {
				Logger.Warn("purge sweep failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				Logger.Info("purge sweep removed expired posts", zap.Int("removed", removed))
			}
		}
	}()
}
