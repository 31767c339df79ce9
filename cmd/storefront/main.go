package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-faster/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"goflare.io/storefront"
	"goflare.io/storefront/cart"
	"goflare.io/storefront/catalog"
	"goflare.io/storefront/config"
	"goflare.io/storefront/driver"
	"goflare.io/storefront/models/enum"
	"goflare.io/storefront/server"
	"goflare.io/storefront/wishlist"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := newLogger(cfg.App)
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err = run(ctx, cfg, logger); err != nil {
		logger.Fatal("storefront stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	var redisClient *redis.Client
	needRedis := cfg.Store.Driver == enum.StoreDriverRedis || cfg.Redis.WishlistKey != ""
	if needRedis {
		client, err := driver.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		redisClient = client
		closers = append(closers, func() { _ = client.Close() })
	}

	// 1. 購物車儲存
	repo, closeRepo, err := newRepository(ctx, cfg, redisClient, logger)
	if err != nil {
		return err
	}
	closers = append(closers, closeRepo)

	cache := cart.NewCache(repo, logger.Named("cart.cache"))
	cartService := cart.NewService(repo, cache, cart.NewMetrics(registry), logger.Named("cart"))

	initial, err := cache.Read(ctx)
	if err != nil {
		return errors.Wrap(err, "initial cart load")
	}
	totals := cart.NewTotalWatcher(cache, initial)
	closers = append(closers, totals.Close)

	// 2. 商品目錄與收藏
	lookup, err := newCatalog(cfg, logger)
	if err != nil {
		return err
	}

	var favourites wishlist.Checker = wishlist.NewStatic()
	if cfg.Redis.WishlistKey != "" {
		favourites = wishlist.NewRedis(redisClient, cfg.Redis.WishlistKey, logger.Named("wishlist"))
	}

	svc := storefront.NewService(cartService, cache, lookup, favourites,
		storefront.WorkingHours{Open: cfg.Shop.OpenHour, Close: cfg.Shop.CloseHour},
		logger.Named("storefront"))

	// 3. 變更通知
	if cfg.NATS.URL != "" {
		natsConn, err := driver.ConnectNATS(cfg.NATS.URL, "storefront", logger)
		if err != nil {
			return err
		}
		wp := storefront.NewWorkerPool(cfg.NATS.Workers, 256, logger.Named("worker"))
		em := storefront.NewEventManager(natsConn, cfg.NATS.Subject, logger.Named("events"))
		stopPublishing := em.PublishChanges(svc.Subscribe, cache, wp)

		em.RegisterHandler(func(_ context.Context, event *storefront.CartChangedEvent) error {
			logger.Debug("Cart change observed on bus",
				zap.String("event_id", event.ID),
				zap.Uint64("version", event.Version),
				zap.Int64("item_count", event.ItemCount))
			return nil
		})
		sub, err := em.SubscribeToEvents(wp)
		if err != nil {
			stopPublishing()
			wp.Shutdown()
			natsConn.Close()
			return err
		}

		closers = append(closers, func() {
			_ = sub.Unsubscribe()
			stopPublishing()
			wp.Shutdown()
			natsConn.Close()
		})
	}

	srv := &http.Server{
		Addr: cfg.App.Addr,
		Handler: server.New(svc, server.Options{
			CurrencySymbol: cfg.Shop.CurrencySymbol,
			Gatherer:       registry,
		}, logger.Named("http")),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			zap.String("addr", cfg.App.Addr),
			zap.String("store", string(cfg.Store.Driver)),
			zap.Int("cart_items", int(totals.ItemCount())))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "listen")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown", zap.Error(err))
	}
	logger.Info("graceful shutdown complete")
	return nil
}

func newRepository(ctx context.Context, cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) (cart.Repository, func(), error) {
	repoLogger := logger.Named("cart.store")
	noop := func() {}

	switch cfg.Store.Driver {
	case enum.StoreDriverMemory:
		return cart.NewMemoryRepository(repoLogger), noop, nil
	case enum.StoreDriverFile:
		return cart.NewFileRepository(cfg.Store.FilePath, repoLogger), noop, nil
	case enum.StoreDriverRedis:
		return cart.NewRedisRepository(redisClient, cfg.Store.StorageKey, repoLogger), noop, nil
	case enum.StoreDriverPostgres:
		db, err := driver.ConnectSQL(ctx, cfg.DB.DSN)
		if err != nil {
			return nil, nil, err
		}
		if cfg.DB.Migrate {
			if err = driver.Migrate(ctx, db.Raw()); err != nil {
				db.Close()
				return nil, nil, err
			}
		}
		tm := driver.NewTransactionManager(db.Pool, logger.Named("tx"))
		return cart.NewPostgresRepository(db.Pool, tm, cfg.Store.StorageKey, repoLogger), db.Close, nil
	default:
		return nil, nil, errors.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func newCatalog(cfg *config.Config, logger *zap.Logger) (catalog.Lookup, error) {
	var source catalog.Lookup
	switch {
	case cfg.Catalog.StripeKey != "":
		stripeLookup := catalog.NewStripeFromKey(cfg.Catalog.StripeKey, logger.Named("catalog.stripe"))
		source = catalog.NewBreaker(stripeLookup, cfg.Catalog.BreakerFailures, cfg.Catalog.BreakerTimeout, logger.Named("catalog.breaker"))
	case cfg.Catalog.SeedFile != "":
		static, err := catalog.LoadStatic(cfg.Catalog.SeedFile)
		if err != nil {
			return nil, err
		}
		source = static
	default:
		logger.Warn("No catalog configured, product lookups will fail")
		source = catalog.NewStatic()
	}

	if cfg.Catalog.CacheTTL <= 0 {
		return source, nil
	}
	cached, err := catalog.NewCached(source, cfg.Catalog.CacheTTL, logger.Named("catalog.cache"))
	if err != nil {
		return nil, err
	}
	return cached, nil
}

func newLogger(app config.AppConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(app.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "parse log level")
	}

	zapConfig := zap.NewDevelopmentConfig()
	if app.IsProd() {
		zapConfig = zap.NewProductionConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	return zapConfig.Build()
}
