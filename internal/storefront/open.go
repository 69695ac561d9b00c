package storefront

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/ecobuy/internal/cache"
	"github.com/angelmondragon/ecobuy/internal/remote"
	"github.com/angelmondragon/ecobuy/pkg/config"
	"github.com/angelmondragon/ecobuy/pkg/logger"
	"github.com/angelmondragon/ecobuy/pkg/metrics"
	redisclient "github.com/angelmondragon/ecobuy/pkg/redis"
	"github.com/prometheus/client_golang/prometheus"
)

// Open builds a restored store from configuration: the cache backend, the
// account service client when one is configured, and metrics on reg (nil
// disables them). The returned close func stops the store and its
// connections.
func Open(ctx context.Context, cfg *config.StorefrontConfig, logg *logger.Logger, reg prometheus.Registerer) (*Store, func(), error) {
	if logg == nil {
		logg = logger.Nop()
	}

	var rc *redisclient.Client
	if strings.EqualFold(strings.TrimSpace(cfg.Cache.Backend), config.CacheBackendRedis) {
		var err error
		rc, err = redisclient.New(ctx, cfg.Redis.Full(), logg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect cache redis: %w", err)
		}
	}
	closeRedis := func() {
		if rc != nil {
			if err := rc.Close(); err != nil {
				logg.Error(context.Background(), "storefront.redis.close_failed", err)
			}
		}
	}

	backend, err := cache.NewBackend(cfg.Cache, rc)
	if err != nil {
		closeRedis()
		return nil, nil, err
	}
	c, err := cache.New(backend, logg)
	if err != nil {
		closeRedis()
		return nil, nil, err
	}

	params := Params{
		Cache:         c,
		Logger:        logg,
		Metrics:       metrics.NewStoreMetrics(reg),
		SyncQueueSize: cfg.AccountService.SyncQueueSize,
	}
	if cfg.AccountService.Enabled() {
		client, err := remote.New(cfg.AccountService)
		if err != nil {
			closeRedis()
			return nil, nil, err
		}
		params.Accounts = client
	}

	store, err := New(params)
	if err != nil {
		closeRedis()
		return nil, nil, err
	}
	if err := store.Restore(ctx); err != nil {
		store.Close()
		closeRedis()
		return nil, nil, err
	}
	return store, func() {
		store.Close()
		closeRedis()
	}, nil
}
