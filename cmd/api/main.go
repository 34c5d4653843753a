package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/avilesmarco/storefront-backend/api/routes"
	"github.com/avilesmarco/storefront-backend/internal/cart"
	"github.com/avilesmarco/storefront-backend/internal/cartstore"
	"github.com/avilesmarco/storefront-backend/internal/catalog"
	"github.com/avilesmarco/storefront-backend/internal/checkout"
	"github.com/avilesmarco/storefront-backend/internal/orders"
	"github.com/avilesmarco/storefront-backend/pkg/config"
	"github.com/avilesmarco/storefront-backend/pkg/db"
	"github.com/avilesmarco/storefront-backend/pkg/logger"
	"github.com/avilesmarco/storefront-backend/pkg/metrics"
	"github.com/avilesmarco/storefront-backend/pkg/migrate"
	"github.com/avilesmarco/storefront-backend/pkg/outbox"
	pkgredis "github.com/avilesmarco/storefront-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	var dbClient *db.Client
	if cfg.FeatureFlags.UseSQLite {
		dbClient, err = db.OpenSQLite("")
	} else {
		dbClient, err = db.New(context.Background(), cfg.DB, logg)
	}
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if !cfg.FeatureFlags.UseSQLite {
		if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
			logg.Error(context.Background(), "failed to run dev migrations", err)
			os.Exit(1)
		}
	}

	redisClient, err := pkgredis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	catalogRepo := catalog.NewRepository(dbClient.DB())
	cartRepo := cartstore.NewRepository(dbClient.DB())
	orderRepo := orders.NewRepository(dbClient.DB())
	events := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	cartStore, err := cartstore.NewService(dbClient, cartRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart store", err)
		os.Exit(1)
	}

	cartManager, err := cart.NewManager(cart.ManagerParams{
		Remote:  cartStore,
		Logger:  logg,
		Metrics: checkoutMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cart manager", err)
		os.Exit(1)
	}
	defer cartManager.Close()

	checkoutService, err := checkout.NewService(checkout.Params{
		Client:  dbClient,
		Carts:   cartRepo,
		Orders:  orderRepo,
		Catalog: catalogRepo,
		Events:  events,
		Locks: func(ownerID uuid.UUID) (checkout.Lock, error) {
			key := redisClient.LockKey("checkout:" + ownerID.String())
			return pkgredis.NewLock(redisClient, key, cfg.Checkout.LockTTL)
		},
		Metrics: checkoutMetrics,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(dbClient, orderRepo, catalogRepo, events, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:      cfg,
			Logger:      logg,
			DB:          dbClient,
			Redis:       redisClient,
			CartManager: cartManager,
			Catalog:     catalogRepo,
			Checkout:    checkoutService,
			Orders:      ordersService,
			Registry:    registry,
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logg.Info(logg.WithField(ctx, "signal", sig.String()), "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
