package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/BazaarDev/bazaar_api/internal/cache"
	"github.com/BazaarDev/bazaar_api/internal/config"
	"github.com/BazaarDev/bazaar_api/internal/database"
	"github.com/BazaarDev/bazaar_api/internal/handler"
	"github.com/BazaarDev/bazaar_api/internal/middleware"
	"github.com/BazaarDev/bazaar_api/internal/repository"
	"github.com/BazaarDev/bazaar_api/internal/service"
	"github.com/BazaarDev/bazaar_api/internal/store"
	"github.com/BazaarDev/bazaar_api/internal/utils"
)

// main is the application entrypoint for the Bazaar marketplace API.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Msg("starting bazaar api")

	utils.SetJWTSecret(cfg.JWTSecret)

	// 3. Connect database
	db, err := database.Connect(&cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "database connection failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// 3a. Run migrations
	if err := runMigrations(db.DB); err != nil {
		log.Error().Err(err).Msg("migration failed")
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
	log.Info().Msg("migrations completed successfully")

	// 3b. Connect to Redis. The resolver cache degrades to a no-op without it.
	var resolverCache *cache.ResolverCache
	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("redis connection failed - resolver cache disabled")
	} else {
		defer redisClient.Close()
		resolverCache = cache.NewResolverCache(redisClient, cfg.Catalog.ResolverTTL)
		log.Info().Msg("redis connected successfully")
	}

	// 4. Initialize the tabular store and catalog engine
	st := store.New(db)
	topo := repository.DefaultTopology()

	resolver := repository.NewOwnerResolver(st, topo.VendorCandidates, topo.ProfileRelation, resolverCache)
	locator := repository.NewLocator(st)
	writer := repository.NewAdaptiveWriter(st, resolver)

	// 5. Initialize services
	mediaSvc, err := service.NewMediaService(&cfg.S3)
	if err != nil {
		log.Warn().Err(err).Msg("media service initialization failed - uploads will be disabled")
	}
	moderationSvc := service.NewModerationService(cfg)

	productSvc := service.NewProductService(st, locator, writer, resolver, topo, mediaSvc, cfg.Catalog.SearchPageSize)
	vendorSvc := service.NewVendorService(st, resolver, cfg.JWTExpiry)
	adminAuthSvc := service.NewAdminAuthService(st, cfg.JWTExpiry)

	// 6. Initialize handlers and middleware
	rateLimiter := middleware.NewInvalidAuthRateLimiter()
	jwtMw := middleware.NewJWTMiddleware()

	handlers := &Handlers{
		Health:        handler.NewHealthHandler(db),
		Product:       handler.NewProductHandler(productSvc),
		VendorProduct: handler.NewVendorProductHandler(productSvc, mediaSvc, moderationSvc),
		Vendor:        handler.NewVendorHandler(vendorSvc, rateLimiter),
		Auth:          handler.NewAuthHandler(adminAuthSvc, rateLimiter),
	}

	// 7. Setup router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.LoggingMiddleware())
	setupRoutes(router, handlers, jwtMw)

	// 8. Start HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 9. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// 10. Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health        *handler.HealthHandler
	Product       *handler.ProductHandler
	VendorProduct *handler.VendorProductHandler
	Vendor        *handler.VendorHandler
	Auth          *handler.AuthHandler
}

// setupRoutes registers all routes.
func setupRoutes(router *gin.Engine, handlers *Handlers, jwtMiddleware *middleware.JWTMiddleware) {
	router.GET("/v1/health", handlers.Health.GetHealth)

	// Public catalog
	router.GET("/v1/products/search", handlers.Product.SearchProducts)
	router.GET("/v1/products/:id", handlers.Product.GetProduct)
	router.GET("/v1/vendors/:key/products", handlers.Product.GetVendorProducts)

	// Vendor onboarding
	router.POST("/v1/vendors/register", handlers.Vendor.Register)
	router.POST("/v1/vendors/login", handlers.Vendor.Login)
	router.GET("/v1/vendors/me", jwtMiddleware.Handle(), handlers.Vendor.Profile)

	// Vendor product management
	vendor := router.Group("/v1/vendor")
	vendor.Use(jwtMiddleware.Handle())
	{
		vendor.GET("/products", handlers.VendorProduct.ListOwnProducts)
		vendor.POST("/products", handlers.VendorProduct.CreateProduct)
		vendor.PUT("/products/:id", handlers.VendorProduct.UpdateProduct)
		vendor.DELETE("/products/:id", handlers.VendorProduct.DeleteProduct)
		vendor.POST("/products/:id/image", handlers.VendorProduct.UploadProductImage)
	}

	// Admin console
	admin := router.Group("/v1/admin")
	admin.POST("/auth/login", handlers.Auth.Login)
	admin.Use(jwtMiddleware.Handle(), jwtMiddleware.RequireAdmin())
	{
		admin.GET("/products", handlers.Product.SearchProducts)
		admin.GET("/products/:id", handlers.Product.GetProduct)
		admin.POST("/products", handlers.VendorProduct.CreateProduct)
		admin.PUT("/products/:id", handlers.VendorProduct.UpdateProduct)
		admin.DELETE("/products/:id", handlers.VendorProduct.DeleteProduct)
		admin.GET("/vendors/:key/products", handlers.Product.GetVendorProducts)
	}
}

// runMigrations runs database migrations using golang-migrate.
func runMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
