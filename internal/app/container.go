package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/nekogravitycat/reservation-engine/internal/api"
	"github.com/nekogravitycat/reservation-engine/internal/auth"
	"github.com/nekogravitycat/reservation-engine/internal/booking"
	"github.com/nekogravitycat/reservation-engine/internal/holiday"
	"github.com/nekogravitycat/reservation-engine/internal/interval"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/lock"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/logger"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/metrics"
	"github.com/nekogravitycat/reservation-engine/internal/priority"
	"github.com/nekogravitycat/reservation-engine/internal/reservation"
	"github.com/nekogravitycat/reservation-engine/internal/resource"
)

const lockNamespace = "reservation-engine:lock:"

// Config holds the dependencies and settings required to start the application.
type Config struct {
	IsProduction bool
	ProdOrigins  string
	// DBPool backs every store when set. Without it the stores live in memory.
	DBPool *pgxpool.Pool
	// Redis, when set, shares booking locks across instances.
	Redis   *redis.Client
	LockTTL time.Duration
	// LockWait bounds how long a Postgres transaction waits for resource locks.
	LockWait        time.Duration
	JWTSecret       string
	JWTTTL          time.Duration
	Location        *time.Location
	Windows         resource.Windows
	Ranks           priority.Table
	HolidayCacheTTL time.Duration
	Logger          *logger.Logger
	Clock           func() time.Time

	// Seeds for the in-memory stores.
	SeedResources []*resource.Resource
	SeedHolidays  []holiday.Holiday
}

// Container holds the initialized components that are needed externally.
type Container struct {
	Router     *gin.Engine
	JWTManager *auth.JWTManager
	Registry   *prometheus.Registry
	Booking    booking.Service
	Resources  resource.Service
	Holidays   *holiday.CachedSource
}

// NewContainer initializes all modules and returns the container.
func NewContainer(cfg Config) (*Container, error) {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Windows.Default == (interval.Window{}) {
		cfg.Windows = resource.DefaultWindows()
	}

	// Init Components
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Stores
	var (
		resRepo     resource.Repository
		bookingRepo reservation.Repository
		holidaySrc  holiday.Source
	)
	if cfg.DBPool != nil {
		resRepo = resource.NewPgxRepository(cfg.DBPool)
		bookingRepo = reservation.NewPgxRepository(cfg.DBPool, cfg.LockWait)
		holidaySrc = holiday.NewPgxSource(cfg.DBPool)
	} else {
		resRepo = resource.NewMemoryRepository(cfg.SeedResources...)
		bookingRepo = reservation.NewMemoryRepository()
		holidaySrc = holiday.NewMemorySource(cfg.SeedHolidays...)
	}
	holidays := holiday.NewCachedSource(holidaySrc, cfg.HolidayCacheTTL)

	locker, err := newLocker(cfg)
	if err != nil {
		return nil, err
	}

	// Resource Module
	resService := resource.NewService(resRepo)

	// Booking Module
	bookingService := booking.NewService(bookingRepo, resService, holidays, locker, booking.Options{
		Windows:  cfg.Windows,
		Location: cfg.Location,
		Ranks:    cfg.Ranks,
		Clock:    cfg.Clock,
		Logger:   cfg.Logger,
		Metrics:  metrics.NewBookingMetrics(registry),
	})

	// API Router Config
	routerParams := api.Config{
		IsProduction:   cfg.IsProduction,
		ProdOrigins:    cfg.ProdOrigins,
		Logger:         cfg.Logger,
		Gatherer:       registry,
		ResService:     resService,
		Windows:        cfg.Windows,
		BookingService: bookingService,
		Holidays:       holidays,
		JWTManager:     jwtManager,
		Ready:          readiness(cfg),
	}

	// Router
	router := api.NewRouter(routerParams)

	return &Container{
		Router:     router,
		JWTManager: jwtManager,
		Registry:   registry,
		Booking:    bookingService,
		Resources:  resService,
		Holidays:   holidays,
	}, nil
}

// newLocker picks the lock taken before a booking transaction starts. The
// Postgres store also takes transaction-scoped advisory locks on the same keys.
func newLocker(cfg Config) (lock.Locker, error) {
	switch {
	case cfg.Redis != nil:
		l, err := lock.NewRedisLocker(cfg.Redis, lockNamespace, cfg.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("init redis locker: %w", err)
		}
		return l, nil
	default:
		return lock.NewKeyedLocker(), nil
	}
}

func readiness(cfg Config) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if cfg.DBPool != nil {
			if err := cfg.DBPool.Ping(ctx); err != nil {
				return err
			}
		}
		if cfg.Redis != nil {
			if err := cfg.Redis.Ping(ctx).Err(); err != nil {
				return err
			}
		}
		return nil
	}
}

// WindowsFromConfig builds the per-kind business windows from "HH:MM-HH:MM" strings.
func WindowsFromConfig(general, venue string) (resource.Windows, error) {
	def, err := interval.ParseWindow(general)
	if err != nil {
		return resource.Windows{}, fmt.Errorf("invalid default business hours: %w", err)
	}
	v, err := interval.ParseWindow(venue)
	if err != nil {
		return resource.Windows{}, fmt.Errorf("invalid venue business hours: %w", err)
	}
	return resource.Windows{
		Default: def,
		ByKind:  map[resource.Kind]interval.Window{resource.KindVenue: v},
	}, nil
}

// RanksFromConfig parses table as "role=rank,..." or returns the default table when it is empty.
func RanksFromConfig(version, table string) (priority.Table, error) {
	if table == "" {
		return priority.DefaultTable(), nil
	}
	return priority.ParseTable(version, table)
}
