package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/uptwn/booking-backend/internal/config"
	"github.com/uptwn/booking-backend/internal/database"
	"github.com/uptwn/booking-backend/internal/events"
	"github.com/uptwn/booking-backend/internal/handlers"
	"github.com/uptwn/booking-backend/internal/middleware"
	"github.com/uptwn/booking-backend/internal/services"
	"github.com/uptwn/booking-backend/internal/utils"
	"github.com/uptwn/booking-backend/pkg/jwt"
	"github.com/uptwn/booking-backend/pkg/validator"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.WithFields(logrus.Fields{"version": version, "build_time": buildTime}).Info("Starting booking backend")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := validator.RegisterWithGin(); err != nil {
		logger.Fatalf("Failed to register validators: %v", err)
	}

	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	rdb := connectRedis(cfg.Redis, logger)
	if rdb != nil {
		defer rdb.Close()
	}

	publisher, publisherName := connectPublisher(cfg.RabbitMQ, logger)
	defer publisher.Close()

	clock := utils.SystemClock{}

	// Repositories
	repos := services.BookingRepos{
		Listings:      database.NewListingRepository(db.DB),
		Inventory:     database.NewInventoryRepository(db.DB),
		Holds:         database.NewHoldRepository(db.DB),
		Bookings:      database.NewBookingRepository(db.DB),
		Notifications: database.NewNotificationRepository(db.DB),
	}
	maintenanceRepo := database.NewMaintenanceRepository(db.DB)

	// Services
	seatLockService := services.NewSeatLockService(db.DB, repos.Inventory, cfg.Booking, clock, logger)
	holdService := services.NewCapacityHoldService(db.DB, repos.Inventory, repos.Holds, repos.Bookings, cfg.Booking, clock, logger)
	bookingService := services.NewBookingService(db.DB, repos, publisher, cfg.Booking, clock, logger)
	restaurantService := services.NewRestaurantBookingService(db.DB, repos, publisher, cfg.Booking, clock, logger)
	timeSlotService := services.NewTimeSlotService(repos.Listings, repos.Inventory, maintenanceRepo, clock, logger)

	sweeper := services.NewSweeperService(maintenanceRepo, cfg.Sweeper.Interval, clock, logger)
	sweeper.Start()
	defer sweeper.Stop()

	cronService := services.NewCronService(sweeper, cfg.Sweeper, logger)
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}

	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTokenExpiry)

	var bucket middleware.Bucket
	if rdb != nil {
		bucket = middleware.NewRedisBucket(rdb, cfg.RateLimit)
	}

	// Handlers
	inventoryHandler := handlers.NewInventoryHandler(seatLockService, holdService, timeSlotService, logger)
	bookingHandler := handlers.NewBookingHandler(bookingService, restaurantService, logger)
	adminHandler := handlers.NewAdminHandler(sweeper, cronService, logger)

	var redisPing handlers.Pinger
	if rdb != nil {
		redisPing = redisPinger{rdb}
	}
	healthHandler := handlers.NewHealthHandler(db, redisPing, publisherName, version)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", healthHandler.Health)

	auth := middleware.AuthMiddleware(jwtService, logger)
	limit := middleware.RateLimit(bucket, cfg.RateLimit, logger)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/listings/:id/time-slots", inventoryHandler.ListTimeSlots)
		v1.GET("/listings/:id/restaurant-slots", bookingHandler.ListRestaurantSlots)
		v1.GET("/time-slots/:id/seat-map", inventoryHandler.GetSeatMap)

		slots := v1.Group("/time-slots/:id", auth)
		{
			slots.POST("/seats/lock", limit, inventoryHandler.LockSeats)
			slots.DELETE("/seats/lock", inventoryHandler.ReleaseSeats)
			slots.POST("/hold", limit, inventoryHandler.CreateHold)
			slots.DELETE("/hold/:hold_id", inventoryHandler.ReleaseHold)
		}

		bookings := v1.Group("/bookings", auth)
		{
			bookings.POST("", limit, bookingHandler.CreateBooking)
			bookings.GET("", bookingHandler.ListBookings)
			bookings.GET("/number/:number", bookingHandler.GetBookingByNumber)
			bookings.GET("/:id", bookingHandler.GetBooking)
			bookings.PATCH("/:id/cancel", bookingHandler.CancelBooking)
		}

		v1.POST("/restaurant-bookings", auth, limit, bookingHandler.CreateRestaurantBooking)

		admin := v1.Group("/admin", auth, middleware.RequireRole("admin"))
		{
			admin.POST("/sweeper/run", adminHandler.RunSweeper)
			admin.POST("/seat-availability/cleanup", adminHandler.CleanupSeatAvailability)
			admin.GET("/seat-availability/stats", adminHandler.SeatAvailabilityStats)
			admin.POST("/listings/expire", adminHandler.ExpireListings)
			admin.GET("/jobs", adminHandler.GetJobStatus)
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cronService.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// connectRedis returns nil when Redis is not configured or unreachable;
// rate limiting is then disabled.
func connectRedis(cfg config.RedisConfig, logger *logrus.Logger) *redis.Client {
	if cfg.Addr == "" {
		logger.Info("REDIS_ADDR not set, rate limiting disabled")
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("Redis unreachable, rate limiting disabled")
		rdb.Close()
		return nil
	}

	logger.WithField("addr", cfg.Addr).Info("Redis connection established")
	return rdb
}

// connectPublisher falls back to a no-op publisher when RabbitMQ is not
// configured or unreachable. Bookings never depend on event delivery.
func connectPublisher(cfg config.RabbitMQConfig, logger *logrus.Logger) (events.Publisher, string) {
	if cfg.URL == "" {
		logger.Info("RABBITMQ_URL not set, booking events disabled")
		return events.NoopPublisher{}, "noop"
	}

	publisher, err := events.NewAMQPPublisher(cfg.URL, cfg.Exchange)
	if err != nil {
		logger.WithError(err).Warn("RabbitMQ unreachable, booking events disabled")
		return events.NoopPublisher{}, "noop"
	}

	logger.WithField("exchange", cfg.Exchange).Info("Booking events publisher connected")
	return publisher, "amqp"
}

type redisPinger struct {
	rdb *redis.Client
}

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}
