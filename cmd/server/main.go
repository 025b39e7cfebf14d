// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	_ "fleetpulse/docs"
	"fleetpulse/internal/bus"
	"fleetpulse/internal/config"
	"fleetpulse/internal/database"
	"fleetpulse/internal/hub"
	"fleetpulse/internal/repository"
	"fleetpulse/internal/routes"
	"fleetpulse/internal/rules"
	"fleetpulse/internal/scheduler"
	"fleetpulse/internal/service"
	"fleetpulse/internal/utils"
)

// Application represents the main application
type Application struct {
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	database *database.DB
	redis    *redis.Client
	wsHub    *hub.Hub

	// Services
	deviceService    *service.DeviceService
	telemetryService *service.TelemetryService
	eventService     *service.EventService

	// Repositories
	deviceRepo    repository.DeviceRepository
	telemetryRepo repository.TelemetryRepository
	eventRepo     repository.EventRepository

	// Background workers
	scheduler  *scheduler.Scheduler
	subscriber *bus.Subscriber

	// cancel stops background workers during shutdown
	cancel context.CancelFunc
}

// @title FleetPulse API
// @version 1.0.0
// @description Fleet telemetry ingestion, incident detection and real-time notification service
// @termsOfService http://swagger.io/terms/

// @contact.name FleetPulse API Support
// @contact.email support@fleetpulse.io

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1
func main() {
	app, err := NewApplication()
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "fleetpulse")
	serviceLogger.LogServiceStart(cfg.App.Version, cfg.App.Environment)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	if err := app.initializeDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initializeRedis(); err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	app.initializeRepositories()
	app.initializeServices()

	if err := app.initializeServer(); err != nil {
		return nil, fmt.Errorf("failed to initialize server: %w", err)
	}

	return app, nil
}

// initializeDatabase sets up database connection and runs migrations
func (app *Application) initializeDatabase() error {
	db, err := database.NewConnection(&app.config.Database, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}

	app.database = db

	migrator := database.NewMigrator(db, app.logger, &app.config.Database)
	if err := migrator.Up(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	app.logger.Info("Database initialized successfully")
	return nil
}

// initializeRedis sets up the redis client used by the announce bus
func (app *Application) initializeRedis() error {
	client := bus.NewRedisClient(&app.config.Redis, app.config.GetRedisAddr())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := bus.Ping(ctx, client); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	app.redis = client
	app.logger.Info("Redis initialized successfully",
		zap.String("address", app.config.GetRedisAddr()),
	)
	return nil
}

// initializeRepositories creates repository instances
func (app *Application) initializeRepositories() {
	app.deviceRepo = repository.NewDeviceRepository(app.database, app.logger)
	app.telemetryRepo = repository.NewTelemetryRepository(app.database, app.logger)
	app.eventRepo = repository.NewEventRepository(app.database, app.logger)

	app.logger.Info("Repositories initialized successfully")
}

// initializeServices creates service and worker instances
func (app *Application) initializeServices() {
	app.wsHub = hub.New(app.logger)

	announcer := bus.NewPublisher(app.redis, app.logger)

	app.deviceService = service.NewDeviceService(app.deviceRepo, app.logger)
	app.telemetryService = service.NewTelemetryService(
		app.deviceRepo,
		app.telemetryRepo,
		announcer,
		app.logger,
	)
	app.eventService = service.NewEventService(app.eventRepo, app.logger)

	engine := rules.NewEngine(app.deviceRepo, app.telemetryRepo, &app.config.Rules, app.logger)
	gate := rules.NewGate(app.eventRepo, app.logger)

	app.scheduler = scheduler.New(
		engine,
		gate,
		app.deviceRepo,
		app.wsHub,
		&app.config.Scheduler,
		app.logger,
	)
	app.subscriber = bus.NewSubscriber(app.redis, app.wsHub, app.logger)

	app.logger.Info("Services initialized successfully")
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() error {
	routerManager := routes.NewRouter(
		app.config,
		app.logger,
		app.database,
		app.redis,
		app.wsHub,
		app.deviceService,
		app.telemetryService,
		app.eventService,
	)

	router := routerManager.SetupRouter()

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
	)

	return nil
}

// startBackgroundServices starts the scheduler and the telemetry subscriber
func (app *Application) startBackgroundServices() {
	ctx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel

	app.scheduler.Start(ctx)
	go app.subscriber.Run(ctx)

	app.logger.Info("Background services started",
		zap.Duration("detect_interval", app.config.Scheduler.DetectInterval),
		zap.Duration("status_interval", app.config.Scheduler.StatusInterval),
	)
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "fleetpulse")
	serviceLogger.LogServiceStop("shutdown signal received")

	// Stop background workers first
	if app.cancel != nil {
		app.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("Redis close error", zap.Error(err))
		} else {
			app.logger.Info("Redis connection closed")
		}
	}

	if app.database != nil {
		if err := app.database.Close(); err != nil {
			app.logger.Error("Database close error", zap.Error(err))
		} else {
			app.logger.Info("Database connection closed")
		}
	}

	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}
}

func (app *Application) Start() error {
	go func() {
		app.logger.Info("Starting HTTP server",
			zap.String("address", app.server.Addr),
		)

		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	app.startBackgroundServices()
	app.waitForShutdown()

	return nil
}
