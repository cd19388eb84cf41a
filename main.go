package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"surplusbid/internal/auctionstore"
	"surplusbid/internal/bidledger"
	"surplusbid/internal/config"
	"surplusbid/internal/database/db_client"
	"surplusbid/internal/database/migrations"
	"surplusbid/internal/directory"
	"surplusbid/internal/http/auctionhandler"
	"surplusbid/internal/http/http_server"
	"surplusbid/internal/redis/redis_client"
	"surplusbid/internal/redis/watcher/endwatcher"
	"surplusbid/internal/viewsync"
	"surplusbid/internal/watchreg"
	"surplusbid/internal/ws"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	var err error
	var cfg *config.Config
	var redisClient *redis.Client

	// 1. Load configuration
	cfg, err = config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Redis
	redisClient, err = redis_client.NewRedisClient(cfg.RedisHost, int(cfg.RedisPort))
	if err != nil {
		Log.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()
	Log.Debug("Redis client created successfully")

	// 4. Postgres db client + schema
	pgDb, err := db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
	if err != nil {
		Log.Fatal("pg-open", zap.Error(err))
	}
	defer pgDb.Close()

	if err := migrations.Up(pgDb); err != nil {
		Log.Fatal("pg-migrate", zap.Error(err))
	}

	// 5. Core components
	dir := directory.New(pgDb)
	store := auctionstore.New(pgDb, redisClient, dir)
	ledger := bidledger.New(pgDb, redisClient, dir, cfg.BidMinIncrement, cfg.BidRetryBudget)
	watchers := watchreg.New(redisClient)

	// 6. Background: end-timer expiry watcher flips stored status
	go endwatcher.Run(ctx, redisClient, store)

	// 7. Background: periodic view-counter flush
	viewsync.Run(ctx, redisClient, pgDb, cfg.ViewFlushInterval)

	// 8. WebSockets hub + per-auction Redis fan-out
	hub := ws.NewHub()
	wsSrv := ws.NewWsServer(hub, redisClient, store)

	// 9. HTTP + WS server
	handler := auctionhandler.New(store, ledger, watchers, dir)
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, handler)
	if err := httpServer.Start(); err != nil {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
}
