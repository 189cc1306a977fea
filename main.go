// Package main provides the main entry point for the campaign engine
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aikyo-io/campaign-engine/app/handlers"
	"github.com/aikyo-io/campaign-engine/app/middleware"
	"github.com/aikyo-io/campaign-engine/app/router"
	"github.com/aikyo-io/campaign-engine/app/scheduler"
	"github.com/aikyo-io/campaign-engine/app/services"
	"github.com/aikyo-io/campaign-engine/audience"
	businessflow "github.com/aikyo-io/campaign-engine/business_flow"
	"github.com/aikyo-io/campaign-engine/config"
	"github.com/aikyo-io/campaign-engine/dispatch"
	"github.com/aikyo-io/campaign-engine/journey"
	"github.com/aikyo-io/campaign-engine/models"
	"github.com/aikyo-io/campaign-engine/repository"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router     *router.FiberRouter
	config     *config.ProductionConfig
	server     *fiber.App
	dispatcher *dispatch.Dispatcher
	stopFuncs  []func()
}

func main() {
	log.Println("Starting campaign engine...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	// Let in-flight sends record their outcomes before exiting
	quiesceWithTimeout(app.dispatcher, cfg.Dispatch.QuiesceTimeout)

	log.Println("Server stopped")
}

// quiesceWithTimeout waits for the dispatcher to drain, giving up after the
// configured timeout so shutdown never hangs on a stuck provider
func quiesceWithTimeout(d *dispatch.Dispatcher, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		d.Quiesce()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		log.Printf("Dispatcher quiesce timed out after %s; abandoning in-flight sends", timeout)
	}
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeSenders builds one sender per configured channel
func initializeSenders(cfg *config.ChannelsConfig) []dispatch.Sender {
	return []dispatch.Sender{
		services.NewLineSender(&cfg.Line),
		services.NewMessengerSender(&cfg.Messenger),
		services.NewEmailSender(&cfg.Email),
		services.NewSMSSender(&cfg.SMS),
	}
}

// initializePools sizes one worker pool per channel from the channel's rate limit
func initializePools(cfg *config.ProductionConfig) map[models.Channel]*dispatch.Pool {
	workers := int64(cfg.Dispatch.WorkersPerChannel)
	return map[models.Channel]*dispatch.Pool{
		models.ChannelLine: dispatch.NewPool(dispatch.PoolConfig{
			Workers:       workers,
			RatePerSecond: float64(cfg.Channels.Line.RateLimit),
			SendTimeout:   cfg.Channels.Line.Timeout,
		}),
		models.ChannelMessenger: dispatch.NewPool(dispatch.PoolConfig{
			Workers:       workers,
			RatePerSecond: float64(cfg.Channels.Messenger.RateLimit),
			SendTimeout:   cfg.Channels.Messenger.Timeout,
		}),
		models.ChannelEmail: dispatch.NewPool(dispatch.PoolConfig{
			Workers:       workers,
			RatePerSecond: float64(cfg.Channels.Email.RateLimit),
			SendTimeout:   cfg.Channels.Email.Timeout,
		}),
		models.ChannelSMS: dispatch.NewPool(dispatch.PoolConfig{
			Workers:       workers,
			RatePerSecond: float64(cfg.Channels.SMS.RateLimit),
			SendTimeout:   cfg.Channels.SMS.Timeout,
		}),
	}
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		cancel := startCacheHealthMonitor(context.Background(), rc, 30*time.Second)
		stopFuncs = append(stopFuncs, cancel)
	}

	// Initialize repositories
	customerRepo := repository.NewCustomerRepository(db)
	billingRepo := repository.NewBillingRepository(db)
	eventRepo := repository.NewEventRepository(db)
	tagRepo := repository.NewTagRepository(db)
	customerTagRepo := repository.NewCustomerTagRepository(db)
	segmentRepo := repository.NewSegmentRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	broadcastRepo := repository.NewBroadcastRepository(db)
	deliveryRepo := repository.NewDeliveryRepository(db)
	automationRepo := repository.NewAutomationRepository(db)
	instanceRepo := repository.NewJourneyInstanceRepository(db)

	// Initialize engine components
	resolver := audience.NewResolver(customerRepo, billingRepo, eventRepo, customerTagRepo)
	templateStore := services.NewTemplateStoreClient(&cfg.Templates)
	dispatcher := dispatch.NewDispatcher(
		repository.NewGormTxManager(db),
		broadcastRepo,
		deliveryRepo,
		templateStore,
		initializeSenders(&cfg.Channels),
		initializePools(cfg),
		log.Default(),
	)
	tracker := dispatch.NewTracker(deliveryRepo)
	journeyEngine := journey.NewEngine(instanceRepo, customerRepo, tagRepo, customerTagRepo, eventRepo, resolver, dispatcher, log.Default())

	// Initialize token service
	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PrivateKey,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	// Initialize flows
	segmentFlow := businessflow.NewSegmentFlow(segmentRepo, resolver, db, rc, &cfg.Cache)
	campaignFlow := businessflow.NewCampaignFlow(campaignRepo, resolver, dispatcher, db)
	messageFlow := businessflow.NewMessageFlow(broadcastRepo, tracker)
	automationFlow := businessflow.NewAutomationFlow(automationRepo, db)

	// Initialize handlers
	segmentHandler := handlers.NewSegmentHandler(segmentFlow)
	campaignHandler := handlers.NewCampaignHandler(campaignFlow)
	messageHandler := handlers.NewMessageHandler(messageFlow)
	automationHandler := handlers.NewAutomationHandler(automationFlow)

	// Initialize auth middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	// Initialize router
	appRouter := router.NewFiberRouter(
		authMiddleware,
		segmentHandler,
		campaignHandler,
		messageHandler,
		automationHandler,
		cfg.Security.AllowedOrigins,
	)

	// Start background schedulers
	campaignSched := scheduler.NewCampaignScheduler(
		campaignRepo,
		deliveryRepo,
		resolver,
		dispatcher,
		&cfg.Logging,
		cfg.Scheduler.CampaignTickInterval,
		cfg.Scheduler.LockTTL,
	)
	stopFuncs = append(stopFuncs, campaignSched.Start(context.Background()))

	journeySched := scheduler.NewJourneyScheduler(
		automationRepo,
		instanceRepo,
		journeyEngine,
		&cfg.Logging,
		cfg.Scheduler.JourneyTickInterval,
		cfg.Scheduler.JourneyWorkers,
		cfg.Scheduler.LockTTL,
	)
	stopFuncs = append(stopFuncs, journeySched.Start(context.Background()))

	// Create application struct from FiberRouter
	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:     fiberRouter,
		config:     cfg,
		server:     fiberRouter.GetApp(),
		dispatcher: dispatcher,
		stopFuncs:  stopFuncs,
	}

	return application, nil
}
