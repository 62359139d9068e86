package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ridelink/internal/config"
	"ridelink/internal/handlers"
	"ridelink/internal/middleware"
	mongorepo "ridelink/internal/repositories/mongodb"
	"ridelink/internal/services"
	"ridelink/pkg/cache"
	"ridelink/pkg/database"
	"ridelink/pkg/lock"
	"ridelink/pkg/logger"
	"ridelink/pkg/payment"
	"ridelink/routes"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.NewLogger(&logger.Config{
		Level:  logger.LogLevel(cfg.App.LogLevel),
		Format: cfg.App.LogFormat,
		Output: "stdout",
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	db, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	})
	if err != nil {
		appLogger.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer db.Close()

	// Locking is in-process by default; redis promotes it to cross-node when
	// the deployment runs more than one instance.
	var locker lock.Locker = lock.NewKeyedMutex()
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			appLogger.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisCache.Close()
		locker = lock.NewRedisLocker(redisCache.Client(), cfg.Redis.LockTimeout, cfg.Redis.LockTimeout)
		appLogger.Info("Using redis distributed locking")
	}

	rideRepo := mongorepo.NewRideRepository(db.Database)
	bookingRepo := mongorepo.NewBookingRepository(db.Database)
	walletRepo := mongorepo.NewWalletRepository(db.Database)
	transactionRepo := mongorepo.NewTransactionRepository(db.Database)

	mpesaProvider := payment.NewMpesaProvider(&payment.MpesaConfig{
		ConsumerKey:    cfg.Payment.Mpesa.ConsumerKey,
		ConsumerSecret: cfg.Payment.Mpesa.ConsumerSecret,
		Shortcode:      cfg.Payment.Mpesa.Shortcode,
		Passkey:        cfg.Payment.Mpesa.Passkey,
		CallbackURL:    cfg.Payment.Mpesa.CallbackURL,
		BaseURL:        cfg.Payment.Mpesa.BaseURL,
		Timeout:        cfg.Payment.Mpesa.Timeout,
	})
	stripeProvider := payment.NewStripeProvider(&payment.StripeConfig{
		SecretKey:     cfg.Payment.Stripe.SecretKey,
		WebhookSecret: cfg.Payment.Stripe.WebhookSecret,
		SuccessURL:    cfg.Payment.Stripe.SuccessURL,
		CancelURL:     cfg.Payment.Stripe.CancelURL,
		Currency:      cfg.Payment.Currency,
	})

	notifier := services.NewNotificationService(nil, appLogger)
	defer notifier.Close()

	inventoryService := services.NewInventoryService(rideRepo, locker, appLogger)
	ledgerService := services.NewLedgerService(walletRepo, transactionRepo, locker, appLogger, cfg.Wallet.OpeningBalance)
	bookingService := services.NewBookingService(bookingRepo, rideRepo, inventoryService, notifier, locker, appLogger)
	rideService := services.NewRideService(rideRepo, bookingRepo, appLogger)
	reconciliationService := services.NewReconciliationService(
		ledgerService,
		bookingService,
		rideRepo,
		bookingRepo,
		walletRepo,
		mpesaProvider,
		stripeProvider,
		notifier,
		locker,
		appLogger,
	)

	rideHandler := handlers.NewRideHandler(rideService)
	bookingHandler := handlers.NewBookingHandler(bookingService, reconciliationService)
	walletHandler := handlers.NewWalletHandler(ledgerService, reconciliationService)
	paymentHandler := handlers.NewPaymentHandler(reconciliationService, stripeProvider, appLogger)

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(appLogger))

	routes.SetupRoutes(router, cfg.Security.JWTSecret, rideHandler, bookingHandler, walletHandler, paymentHandler)

	router.GET("/health", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": cfg.App.Version,
		})
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: router,
	}

	go func() {
		appLogger.Infof("Starting server on port %d", cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		appLogger.Errorf("Forced shutdown: %v", err)
	}
}
