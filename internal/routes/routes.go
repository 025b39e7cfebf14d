// internal/routes/routes.go
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"fleetpulse/internal/config"
	"fleetpulse/internal/database"
	"fleetpulse/internal/handler"
	"fleetpulse/internal/hub"
	"fleetpulse/internal/middleware"
	"fleetpulse/internal/service"
	"fleetpulse/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config           *config.Config
	logger           *zap.Logger
	db               *database.DB
	redis            *redis.Client
	wsHub            *hub.Hub
	deviceService    *service.DeviceService
	telemetryService *service.TelemetryService
	eventService     *service.EventService
}

// NewRouter creates a new router instance
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	db *database.DB,
	redisClient *redis.Client,
	wsHub *hub.Hub,
	deviceService *service.DeviceService,
	telemetryService *service.TelemetryService,
	eventService *service.EventService,
) *Router {
	return &Router{
		config:           config,
		logger:           logger,
		db:               db,
		redis:            redisClient,
		wsHub:            wsHub,
		deviceService:    deviceService,
		telemetryService: telemetryService,
		eventService:     eventService,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	if r.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))

	router.Use(middleware.CORSMiddleware(&r.config.Security))

	r.logger.Info("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	healthHandler := handler.NewHealthHandler(r.db, r.redis, r.wsHub, r.config, r.logger)
	deviceHandler := handler.NewDeviceHandler(r.deviceService, r.logger)
	telemetryHandler := handler.NewTelemetryHandler(r.telemetryService, r.logger)
	eventHandler := handler.NewEventHandler(r.eventService, r.logger)
	wsHandler := handler.NewWebSocketHandler(r.wsHub, r.logger)

	r.addHealthRoutes(router, healthHandler)

	apiV1 := router.Group("/api/v1")
	deviceHandler.RegisterRoutes(apiV1)
	telemetryHandler.RegisterRoutes(apiV1)
	eventHandler.RegisterRoutes(apiV1)

	router.GET("/ws", wsHandler.HandleConnection)

	r.addDocumentationRoutes(router)

	r.logger.Info("All routes configured successfully")
}

// addHealthRoutes sets up health check routes
func (r *Router) addHealthRoutes(router *gin.Engine, handler *handler.HealthHandler) {
	health := router.Group("")
	{
		health.GET("/health", handler.HealthCheck)
		health.GET("/health/db", handler.DatabaseHealthCheck)
		health.GET("/ready", handler.ReadinessCheck)
		health.GET("/live", handler.LivenessCheck)
	}
}

// addDocumentationRoutes sets up documentation routes
func (r *Router) addDocumentationRoutes(router *gin.Engine) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
}
