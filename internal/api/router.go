package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nekogravitycat/reservation-engine/internal/auth"
	"github.com/nekogravitycat/reservation-engine/internal/booking"
	bookingHttp "github.com/nekogravitycat/reservation-engine/internal/booking/http"
	"github.com/nekogravitycat/reservation-engine/internal/holiday"
	holidayHttp "github.com/nekogravitycat/reservation-engine/internal/holiday/http"
	"github.com/nekogravitycat/reservation-engine/internal/pkg/logger"
	"github.com/nekogravitycat/reservation-engine/internal/resource"
	resourceHttp "github.com/nekogravitycat/reservation-engine/internal/resource/http"
)

// Config holds the services and settings the router is assembled from.
type Config struct {
	IsProduction   bool
	ProdOrigins    string
	Logger         *logger.Logger
	Gatherer       prometheus.Gatherer
	ResService     resource.Service
	Windows        resource.Windows
	BookingService booking.Service
	Holidays       holiday.Source
	JWTManager     *auth.JWTManager
	// Ready reports whether backing stores are reachable. Nil means always ready.
	Ready func(ctx context.Context) error
}

// NewRouter initializes the HTTP router engine.
// It is responsible for assembling middleware (CORS, Logger, Auth) and registering routes for various modules.
func NewRouter(cfg Config) *gin.Engine {
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	r := gin.New()

	// Global Middleware:
	// - Logger: Attaches a request id and logs request information.
	// - Recovery: Captures panics to prevent server crashes and returns a 500 error.
	r.Use(logger.Middleware(cfg.Logger), Recovery(cfg.Logger))

	// Configure CORS (Cross-Origin Resource Sharing).
	// cors.New panics without any allowed origin, so an empty list disables it.
	if origins := allowedOrigins(cfg); len(origins) > 0 {
		config := cors.DefaultConfig()
		config.AllowOrigins = origins
		config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
		config.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", logger.RequestIDHeader}
		config.ExposeHeaders = []string{logger.RequestIDHeader}
		r.Use(cors.New(config))
	}

	r.GET("/healthz", func(c *gin.Context) {
		if cfg.Ready != nil {
			if err := cfg.Ready(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	// authMiddleware: Validates if the request contains a valid JWT.
	authMiddleware := auth.AuthRequired(cfg.JWTManager)

	// Initialize HTTP Handlers for each module (injecting Service dependencies).
	bookingHandler := bookingHttp.NewHandler(cfg.BookingService)
	resourceHandler := resourceHttp.NewHandler(cfg.ResService, cfg.Windows)
	holidayHandler := holidayHttp.NewHandler(cfg.Holidays)

	// Register API routes under /v1
	v1 := r.Group("/v1")
	{
		bookingHttp.RegisterRoutes(v1, bookingHandler, authMiddleware)
		resourceHttp.RegisterRoutes(v1, resourceHandler, authMiddleware)
		holidayHttp.RegisterRoutes(v1, holidayHandler, authMiddleware)
	}

	return r
}

func allowedOrigins(cfg Config) []string {
	if !cfg.IsProduction {
		return []string{
			"http://localhost:8081", // Swagger
			"http://localhost:3000",
		}
	}
	var out []string
	for _, o := range strings.Split(cfg.ProdOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
