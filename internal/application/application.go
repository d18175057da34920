// Package application wires a configured store, the optional Redis host
// lock and the core services together. Both binaries start from here.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis"

	"github.com/JonMunkholm/offerloader/internal/config"
	"github.com/JonMunkholm/offerloader/internal/core"
	"github.com/JonMunkholm/offerloader/internal/lock"
	"github.com/JonMunkholm/offerloader/internal/store/memory"
	"github.com/JonMunkholm/offerloader/internal/store/mongo"
	"github.com/JonMunkholm/offerloader/internal/store/postgres"
)

// App holds the services built over one store.
type App struct {
	Store     core.Store
	Offers    *core.OfferService
	Users     *core.UserService
	Comments  *core.CommentService
	Favorites *core.FavoritesService
	Hosts     *core.HostResolver
	Sink      *core.OfferSink

	redis *redis.Client
}

// New opens the store selected by cfg.Store.Driver and builds the services.
// An empty driver selects the memory store.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &App{Store: store}

	var locker core.Locker
	if cfg.Redis.Addr != "" {
		client, err := lock.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			_ = store.Close(ctx)
			return nil, err
		}
		a.redis = client
		locker = lock.NewRedisLocker(client, lock.Options{TTL: cfg.Redis.LockTTL})
		slog.Info("host lock enabled", "redis", cfg.Redis.Addr)
	}

	a.Favorites = core.NewFavoritesService(store.Users(), store.Offers())
	a.Offers = core.NewOfferService(store.Offers(), store.Users(), a.Favorites)
	a.Users = core.NewUserService(store.Users())
	a.Comments = core.NewCommentService(store.Comments(), store.Offers(), store.Users())
	a.Hosts = core.NewHostResolver(store.Users(), locker)
	a.Sink = core.NewOfferSink(a.Hosts, store.Offers())
	return a, nil
}

// OpenStore connects to the configured backend.
func OpenStore(ctx context.Context, cfg *config.Config) (core.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		s, err := postgres.Open(ctx, postgres.Options{
			URL:             cfg.Database.URL,
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, nil
	case config.DriverMongo:
		s, err := mongo.Open(ctx, mongo.Options{
			URI:            cfg.Mongo.URI,
			Database:       cfg.Mongo.Database,
			ConnectTimeout: cfg.Mongo.ConnectTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("open mongo store: %w", err)
		}
		return s, nil
	case config.DriverMemory, config.DriverNone:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// Importer builds an importer from cfg.Import. totalBytes is the input size
// used for progress logging, 0 when unknown.
func Importer(cfg *config.Config, totalBytes int64) (*core.Importer, error) {
	policy, err := core.ParseFailurePolicy(cfg.Import.FailurePolicy)
	if err != nil {
		return nil, err
	}
	return core.NewImporter(core.ImportOptions{
		MaxInFlight:  cfg.Import.MaxInFlight,
		Policy:       policy,
		MaxLineBytes: cfg.Import.MaxLineBytes,
		TotalBytes:   totalBytes,
	}), nil
}

// Close releases the store and the Redis connection.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}
