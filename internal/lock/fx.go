package lock

import (
	"context"
	"errors"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/hydrapay/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("lock",
	fx.Provide(NewLocker),
)

type Params struct {
	fx.In

	Lc     fx.Lifecycle
	Config config.Config
	Log    *zap.Logger
}

// NewLocker picks the backend from LOCK_BACKEND.
func NewLocker(p Params) (Locker, error) {
	cfg := p.Config.Lock
	log := p.Log.Named("lock")

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", config.LockBackendMemory:
		return NewKeyedMutex(), nil
	case config.LockBackendRedis:
	default:
		return nil, errors.New("unknown lock backend: " + cfg.Backend)
	}

	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("lock redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	log.Info("using redis lock backend", zap.String("addr", addr))
	return NewRedisLocker(client, cfg.TTL, cfg.RetryInterval, log)
}
