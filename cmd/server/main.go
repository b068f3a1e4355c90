package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/cricketduel/backend/docs"
	"github.com/cricketduel/backend/internal/audit"
	"github.com/cricketduel/backend/internal/config"
	"github.com/cricketduel/backend/internal/database"
	"github.com/cricketduel/backend/internal/events"
	"github.com/cricketduel/backend/internal/handlers"
	"github.com/cricketduel/backend/internal/logger"
	"github.com/cricketduel/backend/internal/metrics"
	"github.com/cricketduel/backend/internal/providers"
	"github.com/cricketduel/backend/internal/services"
	"github.com/cricketduel/backend/internal/store"
	"github.com/cricketduel/backend/internal/store/memory"
	"github.com/cricketduel/backend/internal/store/postgres"
)

// @title CricketDuel API
// @version 1.0
// @description Head-to-head cricket fantasy sessions with a wallet ledger and distributor hierarchy
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, cfgErr := config.Load()

	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfgErr != nil {
		log.Info("config file not found, using environment and defaults", zap.Error(cfgErr))
	}

	docs.SwaggerInfo.Host = "localhost:" + cfg.Port

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore := openStore(ctx, cfg, log)
	defer closeStore()

	redisClient := database.InitRedis(log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	publisher := newPublisher(cfg, log)
	defer publisher.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	betting := config.LoadBettingConfig()
	auditLog := audit.NewLogger(log)

	ledger := services.NewLedgerService(st, auditLog, m, log)
	sessions := services.NewSessionService(st, ledger, betting, publisher, m, log)
	settlement := services.NewSettlementService(st, ledger, newStatsProvider(cfg, redisClient, log), betting, publisher, m, log)
	invites := services.NewInviteService(st, sessions, betting, log)
	distributors := services.NewDistributorService(st, ledger, auditLog, log)
	auth := services.NewAuthService(st, redisClient, config.LoadAuthConfig(), log)

	if cfg.MasterUsername != "" {
		if _, err := distributors.PromoteMaster(ctx, cfg.MasterUsername); err != nil {
			log.Warn("could not promote master distributor", zap.String("username", cfg.MasterUsername), zap.Error(err))
		}
	}

	matchSync := services.NewMatchSyncService(st, newMatchFeed(cfg, log), log)
	sweeper := services.NewSweeper(settlement, matchSync, st, betting.SettlementSweepInterval, log)
	go sweeper.Start(ctx)

	router := &handlers.Router{
		Auth:          handlers.NewAuthHandler(auth, log),
		Sessions:      handlers.NewSessionHandler(sessions, settlement, log),
		Matches:       handlers.NewMatchHandler(matchSync, log),
		Invites:       handlers.NewInviteHandler(invites, log),
		Wallet:        handlers.NewWalletHandler(ledger, log),
		Distributors:  handlers.NewDistributorHandler(distributors, log),
		Authenticator: auth,
		Health:        st.Ping,
		Gatherer:      reg,
		CORSOrigins:   cfg.CORSOrigins,
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("addr", server.Addr), zap.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	log.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	log.Info("server stopped")
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, func()) {
	switch cfg.StoreDriver {
	case "memory":
		mem := memory.New()
		if cfg.FixturesPath != "" {
			fixtures, err := memory.LoadFixtures(cfg.FixturesPath)
			if err != nil {
				log.Fatal("failed to load fixtures", zap.String("path", cfg.FixturesPath), zap.Error(err))
			}
			mem.Seed(fixtures)
			log.Info("memory store seeded",
				zap.Int("teams", len(fixtures.Teams)),
				zap.Int("players", len(fixtures.Players)),
				zap.Int("matches", len(fixtures.Matches)),
			)
		}
		return mem, func() {}
	case "postgres":
		db := database.InitDatabase(log)
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatal("failed to apply schema", zap.Error(err))
		}
		return postgres.New(db), func() { db.Close() }
	}

	log.Fatal("unknown store driver", zap.String("driver", cfg.StoreDriver))
	return nil, nil
}

func newPublisher(cfg *config.Config, log *zap.Logger) events.Publisher {
	if cfg.KafkaBrokers == "" {
		log.Info("kafka not configured, session events are dropped")
		return events.Nop{}
	}
	return events.NewKafkaPublisher(events.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
}

func newStatsProvider(cfg *config.Config, rdb *redis.Client, log *zap.Logger) services.MatchScoreProvider {
	if cfg.StatsAPIKey == "" {
		log.Info("stats feed not configured, settlement uses recorded stats")
		return providers.Nop{}
	}

	client := providers.NewCricAPIClient(cfg.StatsBaseURL, cfg.StatsAPIKey, cfg.StatsTimeout)
	if rdb == nil {
		return client
	}
	return providers.NewCached(client, rdb, cfg.StatsCacheTTL, log)
}

func newMatchFeed(cfg *config.Config, log *zap.Logger) services.MatchFeed {
	if cfg.StatsAPIKey == "" {
		log.Info("match feed not configured, statuses change only through the admin endpoint")
		return nil
	}
	return providers.NewCricAPIClient(cfg.StatsBaseURL, cfg.StatsAPIKey, cfg.StatsTimeout)
}
