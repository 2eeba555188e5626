package service

import (
	"bitwise74/account-api/internal/store"
	"context"
	"time"

	"go.uber.org/zap"
)

// TokenCleanup periodically clears verification and reset tokens that
// expired without being used. It stops when ctx is cancelled.
func TokenCleanup(ctx context.Context, t time.Duration, s store.Store) {
	ticker := time.NewTicker(t)

	zap.L().Debug("Token cleanup attached", zap.Duration("tick_every", t))

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				cleared, err := s.ClearExpiredTokens(ctx, now.UTC())
				if err != nil {
					zap.L().Error("Failed to clear expired tokens", zap.Error(err))
					continue
				}

				if cleared > 0 {
					zap.L().Debug("Cleared expired tokens", zap.Int64("cleared", cleared))
				}
			}
		}
	}()
}
