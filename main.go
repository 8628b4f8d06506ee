package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-api/cache"
	"storefront-api/config"
	"storefront-api/database"
	"storefront-api/handlers"
	"storefront-api/kafka"
	"storefront-api/middleware"
	"storefront-api/payments"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize database
	db, err := database.InitDB(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Initialize Redis
	redisClient, err := cache.InitRedis(&cfg.Redis, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer redisClient.Close()

	// Initialize Kafka producer
	producer, err := kafka.InitProducer(cfg.Kafka.Broker, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
	}
	defer producer.Close()

	// Initialize OpenTelemetry
	shutdown, err := middleware.InitTracing("storefront-api")
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdown()

	// Initialize Stripe client
	stripeClient := payments.NewClient(cfg.Stripe.SecretKey, logger)

	// Setup REST API with Gin
	router := gin.New()
	router.Use(gin.Recovery())
	// OpenTelemetry middleware must be first to extract trace context
	router.Use(otelgin.Middleware("storefront-api"))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	// Health check endpoint
	router.GET("/health", handlers.HealthCheck)

	// Metrics endpoint
	router.GET("/metrics", middleware.PrometheusHandler())

	authHandler := handlers.NewAuthHandler(db, []byte(cfg.Auth.JWTSecret), producer, cfg.Kafka.UserTopic, logger)
	productHandler := handlers.NewProductHandler(db, redisClient, logger)
	cartHandler := handlers.NewCartHandler(db, logger)
	favoritesHandler := handlers.NewFavoritesHandler(db, logger)
	orderHandler := handlers.NewOrderHandler(db, stripeClient, producer, cfg.Kafka.Topic, logger)
	promoHandler := handlers.NewPromoHandler(db, logger)
	shippingHandler := handlers.NewShippingHandler(logger)
	stripeHandler := handlers.NewStripeHandler(db, stripeClient, producer, cfg.Kafka.Topic, cfg.Stripe.WebhookSecret, logger)
	adminHandler := handlers.NewAdminHandler(db, cfg.Auth.CookieSecure, logger)

	api := router.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.GET("/verify", authHandler.VerifyEmail)
		}

		api.GET("/products", productHandler.GetProducts)
		api.GET("/products/:id", productHandler.GetProduct)

		api.GET("/cart/:user_id", cartHandler.GetCart)
		api.POST("/cart", cartHandler.AddItem)
		api.DELETE("/cart/:user_id", cartHandler.ClearCart)

		api.GET("/favorites/:user_id", favoritesHandler.List)
		api.POST("/favorites", favoritesHandler.Toggle)

		api.POST("/orders", orderHandler.CreateOrder)
		api.GET("/orders/:user_id", orderHandler.ListOrders)

		api.POST("/promo", promoHandler.Validate)
		api.POST("/shipping", shippingHandler.Estimate)

		api.GET("/stripe", stripeHandler.GetPaymentStatus)
		api.POST("/stripe", stripeHandler.RecreateIntent)
		api.POST("/stripe/webhook", stripeHandler.Webhook)

		admin := api.Group("/admin")
		{
			// Session endpoints do their own cookie handling
			admin.POST("/auth", adminHandler.Login)
			admin.GET("/auth", adminHandler.Validate)
			admin.DELETE("/auth", adminHandler.Logout)

			authed := admin.Group("")
			authed.Use(middleware.AdminSessionGuard(db, logger))
			{
				authed.GET("/stock", adminHandler.GetStock)
				authed.PUT("/stock", adminHandler.UpdateStock)
				authed.GET("/products", productHandler.GetProducts)
			authed.POST("/products", productHandler.CreateProduct)
				authed.PUT("/products/:id", productHandler.UpdateProduct)
				authed.DELETE("/products/:id", productHandler.DeleteProduct)
			}
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Storefront API started", zap.String("port", cfg.Server.Port))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
