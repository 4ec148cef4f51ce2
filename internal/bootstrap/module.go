package bootstrap

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"readconfirm/internal/bootstrap/config"
	"readconfirm/internal/bootstrap/database"
	"readconfirm/internal/bootstrap/logging"
	"readconfirm/internal/infrastructure/access"
	cacheinfra "readconfirm/internal/infrastructure/cache"
	"readconfirm/internal/infrastructure/metrics"
	"readconfirm/internal/infrastructure/nonce"
	sqliterepo "readconfirm/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "readconfirm/internal/infrastructure/persistence/sqlite/uow"
	"readconfirm/internal/ports"
	"readconfirm/internal/transport/httpserver"
	"readconfirm/internal/usecase/confirmation"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewContentRepository,
			fx.As(new(ports.ContentRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewUserRepository,
			fx.As(new(ports.UserRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewOptionRepository,
			fx.As(new(ports.OptionRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			access.NewRolePolicy,
			fx.As(new(ports.AccessPolicy)),
		),
	),
	fx.Provide(provideCache),
	fx.Provide(provideTokenIssuer),
	fx.Provide(metrics.NewRegistry),
	fx.Provide(provideService),
	fx.Provide(provideHTTPServer),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

// provideCache picks the backend named by cache.backend. The none backend yields a
// nil cache, which turns off token reuse protection and settings caching.
func provideCache(lc fx.Lifecycle, ctx context.Context, cfg config.Config, db *gorm.DB) (ports.Cache, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	switch cfg.Cache.Backend {
	case config.CacheBackendRedis:
		client, err := cacheinfra.DialRedis(cfg.Cache.RedisAddr, cfg.Cache.RedisDB)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(_ context.Context) error {
				client.Close()
				return nil
			},
		})
		logging.Info(logCtx, "cache backend selected", slog.String("backend", "redis"), slog.String("addr", cfg.Cache.RedisAddr))
		return cacheinfra.NewRedisCache(client), nil
	case config.CacheBackendMemory:
		logging.Info(logCtx, "cache backend selected", slog.String("backend", "memory"))
		return cacheinfra.NewMemoryCache(cfg.Cache.CleanupInterval), nil
	case config.CacheBackendNone:
		logging.Warn(logCtx, "cache disabled, action tokens can be replayed within their lifetime")
		return nil, nil
	default:
		cache := cacheinfra.NewSQLiteCache(db)
		purgeCtx, stopPurge := context.WithCancel(logCtx)
		done := make(chan struct{})
		lc.Append(fx.Hook{
			OnStart: func(_ context.Context) error {
				go func() {
					defer close(done)
					cache.RunPurge(purgeCtx, cfg.Cache.CleanupInterval)
				}()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				stopPurge()
				select {
				case <-done:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
		})
		logging.Info(logCtx, "cache backend selected", slog.String("backend", "sqlite"), slog.Duration("cleanup_interval", cfg.Cache.CleanupInterval))
		return cache, nil
	}
}

func provideTokenIssuer(cfg config.Config, cache ports.Cache) (ports.TokenIssuer, error) {
	issuer, err := nonce.NewHMACIssuer(cfg.Security.NonceSecret, cfg.Security.NonceLifetime, cache)
	if err != nil {
		return nil, err
	}
	return issuer, nil
}

type serviceParams struct {
	fx.In

	Config  config.Config
	Content ports.ContentRepository
	Users   ports.UserRepository
	Options ports.OptionRepository
	UoW     ports.UnitOfWork
	Access  ports.AccessPolicy
	Tokens  ports.TokenIssuer
	Cache   ports.Cache
	Metrics *metrics.Registry
}

func provideService(p serviceParams) *confirmation.Service {
	return confirmation.NewService(confirmation.Dependencies{
		Content:    p.Content,
		Users:      p.Users,
		Options:    p.Options,
		UnitOfWork: p.UoW,
		Access:     p.Access,
		Tokens:     p.Tokens,
		Cache:      p.Cache,
		Metrics:    p.Metrics,
	}, confirmation.Options{
		PostTypes:       p.Config.Confirmation.PostTypes,
		TypeLabels:      p.Config.Confirmation.TypeLabels,
		MaxWriteRetries: p.Config.Confirmation.MaxWriteRetries,
	})
}

func provideHTTPServer(cfg config.Config, svc *confirmation.Service, reg *metrics.Registry) (*httpserver.Server, error) {
	return httpserver.New(svc, reg, httpserver.Options{
		Addr:            cfg.HTTP.Addr,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		UserHeader:      cfg.Auth.UserHeader,
	})
}

func provideApp(cfg config.Config, db *gorm.DB, server *httpserver.Server) *App {
	return &App{
		Config: cfg,
		DB:     db,
		HTTP:   server,
	}
}
