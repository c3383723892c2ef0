package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nekogravitycat/reservation-engine/internal/app"
	"github.com/nekogravitycat/reservation-engine/internal/config"
	"github.com/nekogravitycat/reservation-engine/internal/db"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/lock"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/logger"
)

func main() {
	// For receiving Ctrl+C / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: "reservation-engine"}).Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	logg := logger.New(logger.Options{
		ServiceName: "reservation-engine",
		Level:       logger.ParseLevel(cfg.LogLevel),
		Format:      cfg.LogFormat,
		WarnStack:   !cfg.IsProduction,
	})
	fatal := func(msg string, err error) {
		logg.Error(ctx, msg, err)
		os.Exit(1)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		fatal("invalid timezone", err)
	}
	windows, err := app.WindowsFromConfig(cfg.BusinessHoursDefault, cfg.BusinessHoursVenue)
	if err != nil {
		fatal("invalid business hours", err)
	}
	ranks, err := app.RanksFromConfig(cfg.PriorityTableVersion, cfg.PriorityTable)
	if err != nil {
		fatal("invalid priority table", err)
	}

	// Connect DB
	var pool *pgxpool.Pool
	if cfg.StoreDriver == config.StoreDriverPostgres {
		if cfg.AutoMigrate {
			if err := db.Migrate(cfg.DBDSN); err != nil {
				fatal("failed to migrate database", err)
			}
			logg.Info(ctx, "database migrations applied")
		}

		pool, err = db.NewPool(ctx, cfg.DBDSN, cfg.DBMaxConns)
		if err != nil {
			fatal("failed to connect to db", err)
		}
		defer pool.Close()
	} else {
		logg.Warn(ctx, "using in-memory stores; data is lost on restart")
	}

	// Connect Redis for shared locks
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = lock.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			fatal("failed to connect to redis", err)
		}
		defer redisClient.Close()
	}

	container, err := app.NewContainer(app.Config{
		IsProduction:    cfg.IsProduction,
		ProdOrigins:     cfg.ProdOrigins,
		DBPool:          pool,
		Redis:           redisClient,
		LockTTL:         cfg.LockTTL,
		LockWait:        cfg.LockWait,
		JWTSecret:       cfg.JWTSecret,
		JWTTTL:          cfg.JWTAccessTokenTTL,
		Location:        loc,
		Windows:         windows,
		Ranks:           ranks,
		HolidayCacheTTL: cfg.HolidayCacheTTL,
		Logger:          logg,
	})
	if err != nil {
		fatal("failed to init application", err)
	}

	// Use http.Server for graceful shutdown
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           container.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run server in separate goroutine
	go func() {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"addr":           cfg.HTTPAddr,
			"store":          cfg.StoreDriver,
			"priority_table": ranks.Version,
		}), "server running")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server error", err)
		}
	}()

	// Wait for Ctrl+C
	<-ctx.Done()
	logg.Info(context.Background(), "shutdown signal received")

	// Create a shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(shutdownCtx, "server forced to shutdown", err)
	}

	logg.Info(context.Background(), "server exited gracefully")
}
