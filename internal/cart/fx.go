package cart

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/qatech/internal/cart/domain"
	"github.com/smallbiznis/qatech/internal/cart/service"
	"github.com/smallbiznis/qatech/internal/cart/store"
	"github.com/smallbiznis/qatech/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const purgeInterval = time.Hour

var Module = fx.Module("cart.service",
	fx.Provide(NewStore),
	fx.Provide(service.New),
)

type StoreParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Redis     *redis.Client `optional:"true"`
}

// NewStore prefers Redis and falls back to the cart_sessions table, which is
// purged of expired rows on an hourly ticker.
func NewStore(p StoreParams) domain.Store {
	log := p.Log.Named("cart.store")
	if p.Redis != nil {
		log.Info("cart store: redis")
		return store.NewRedisStore(p.Redis)
	}

	log.Info("cart store: database")
	gormStore := store.NewGormStore(p.DB, p.Clock)
	ctx, cancel := context.WithCancel(context.Background())
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				ticker := time.NewTicker(purgeInterval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						n, err := gormStore.PurgeExpired(ctx)
						if err != nil {
							log.Warn("purge expired carts failed", zap.Error(err))
							continue
						}
						if n > 0 {
							log.Info("purged expired carts", zap.Int64("count", n))
						}
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
	return gormStore
}
