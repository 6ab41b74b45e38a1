package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	drivermongo "go.mongodb.org/mongo-driver/mongo"

	"github.com/firefly/security-center/internal/api"
	"github.com/firefly/security-center/internal/api/handler"
	"github.com/firefly/security-center/internal/api/metrics"
	"github.com/firefly/security-center/internal/core/ports"
	"github.com/firefly/security-center/internal/core/service"
	"github.com/firefly/security-center/internal/infrastructure/cache"
	"github.com/firefly/security-center/internal/infrastructure/config"
	"github.com/firefly/security-center/internal/infrastructure/db/mongo"
	"github.com/firefly/security-center/internal/infrastructure/db/redis"
	"github.com/firefly/security-center/internal/infrastructure/directory"
	"github.com/firefly/security-center/internal/infrastructure/idp"
	"github.com/firefly/security-center/internal/infrastructure/queue"
	"github.com/firefly/security-center/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Starts the REST API and the party change workers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if !cfg.NeedsMongo() {
			return errors.New("MONGO_URI is required for identity links")
		}
		mongoClient, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return fmt.Errorf("failed to connect to mongo: %w", err)
		}
		defer func() { _ = mongoClient.Disconnect(context.Background()) }()
		log.Info().Str("database", cfg.Mongo.Database).Msg("connected to mongo")

		checks := map[string]handler.Check{
			"mongo": func(ctx context.Context) error { return mongo.Ping(ctx, db) },
		}

		var rdb *goredis.Client
		if cfg.NeedsRedis() {
			rdb, err = redis.Connect(ctx, redis.Config{
				Addr:           cfg.Redis.Addr,
				DB:             cfg.Redis.DB,
				Password:       cfg.Redis.Password,
				PoolSize:       cfg.Redis.PoolSize,
				CommandTimeout: cfg.Session.CacheTimeout,
			})
			if err != nil {
				return fmt.Errorf("failed to connect to redis: %w", err)
			}
			defer rdb.Close()
			log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")
			checks["redis"] = func(ctx context.Context) error { return redis.Ping(ctx, rdb, 0) }
		}

		links := mongo.NewIdentityLinkRepository(db)
		if err := links.EnsureIndexes(ctx); err != nil {
			return err
		}

		provider, err := buildProvider(ctx, db, rdb)
		if err != nil {
			return err
		}
		log.Info().Str("provider", provider.Name()).Msg("identity provider selected")

		sessionCache := buildSessionCache(rdb)

		customers := directory.NewCustomers(cfg.Services.CustomerMgmtURL, cfg.Session.ResolverTimeout)
		contracts := directory.NewContracts(cfg.Services.ContractMgmtURL, cfg.Session.ResolverTimeout)
		reference := directory.NewReferenceData(cfg.Services.ReferenceDataURL, cfg.Session.ResolverTimeout)
		products := directory.NewProducts(cfg.Services.ProductMgmtURL, cfg.Session.ResolverTimeout)

		observer := metrics.Observer{}
		resolverLog := logger.For("resolver")
		timeout := cfg.Session.ResolverTimeout
		roles := service.NewRoleResolver(reference, timeout, observer, resolverLog)
		productResolver := service.NewProductResolver(products, timeout, observer, resolverLog)
		relations := service.NewRelationshipResolver(contracts, roles, productResolver, timeout, observer, resolverLog)
		profiles := service.NewProfileResolver(customers, timeout, observer, resolverLog)

		aggregator := service.NewSessionAggregator(profiles, relations, cfg.Session.Timeout, logger.For("aggregator"),
			service.WithAggregationHook(metrics.RecordAggregation))
		sessions := service.NewSessionStore(sessionCache, aggregator, service.SessionPolicy{
			Timeout:      cfg.Session.Timeout,
			Sliding:      cfg.Session.SlidingExpiration,
			MaxTTL:       cfg.Session.MaxTTL,
			CacheTimeout: cfg.Session.CacheTimeout,
		}, logger.For("sessions"), service.WithLookupHook(metrics.RecordCacheLookup))

		mapper := service.NewIdentityMapper(customers, links, logger.For("mapper"),
			service.WithFallback(cfg.Mapping.FallbackEnabled),
			service.WithLookupTimeout(cfg.Mapping.LookupTimeout),
			service.WithMappingHook(metrics.RecordMapping))
		authService := service.NewAuthService(provider, mapper, sessions, cfg.IDP.Timeout, logger.For("auth"),
			service.WithOutcomeHook(metrics.RecordAuthOutcome))
		authorization := service.NewAuthorizationService(sessions)

		workerCtx, stopWorkers := context.WithCancel(context.Background())
		defer stopWorkers()
		dispatcher := queue.NewDispatcher(cfg.Limits.DispatcherWorkers,
			service.NewPartyChangeService(sessions, logger.For("party_changes")), logger.For("dispatcher"))
		dispatcher.Start(workerCtx)

		e := api.NewRouter(api.RouterOptions{
			Auth:           authService,
			Sessions:       sessions,
			Authorization:  authorization,
			Introspector:   authService,
			Dispatcher:     dispatcher,
			Checks:         checks,
			Log:            logger.For("http"),
			LoginPerMinute: cfg.Limits.LoginPerMinute,
			LoginBurst:     cfg.Limits.LoginBurst,
		})

		srv := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           e,
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("server listening")
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		case sig := <-shutdown:
			log.Info().Str("signal", sig.String()).Msg("shutting down gracefully")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		stopWorkers()
		dispatcher.Wait()
		log.Info().Msg("server stopped")
		return nil
	},
}

// buildProvider wires the local provider's stores only when it is selected.
func buildProvider(ctx context.Context, db *drivermongo.Database, rdb *goredis.Client) (ports.IdentityProvider, error) {
	var stores idp.LocalStores
	if cfg.IDP.Provider == config.ProviderLocal {
		accounts := mongo.NewAccountRepository(db)
		if err := accounts.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		stores.Accounts = accounts
		if rdb != nil {
			stores.Revocations = redis.NewRevocationList(rdb)
		}
	}
	provider, err := idp.New(cfg, stores)
	if err != nil {
		return nil, fmt.Errorf("failed to build identity provider: %w", err)
	}
	return provider, nil
}

func buildSessionCache(rdb *goredis.Client) ports.SessionCache {
	if cfg.Session.Cache == config.CacheRedis && rdb != nil {
		return redis.NewSessionCache(rdb)
	}
	return cache.NewMemory(cfg.Session.CacheSize, cfg.Session.MaxTTL)
}
