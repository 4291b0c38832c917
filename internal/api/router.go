package api

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/99minutos/courier-tracking/docs"
	"github.com/99minutos/courier-tracking/internal/api/handler"
	"github.com/99minutos/courier-tracking/internal/api/middleware"
	"github.com/99minutos/courier-tracking/internal/core/domain"
	"github.com/99minutos/courier-tracking/internal/core/ports"
	"github.com/99minutos/courier-tracking/internal/infrastructure/http/handlers"
	"github.com/99minutos/courier-tracking/internal/infrastructure/realtime"
)

// Deps carries everything the router needs to build its handlers.
type Deps struct {
	Log       zerolog.Logger
	JWTSecret string

	AuthService     ports.AuthService
	DeliveryService ports.DeliveryService
	LocationService ports.LocationService
	Registry        *realtime.Registry
	Readiness       *handlers.HealthDependenciesHandler

	WSPingInterval time.Duration
	WSWriteTimeout time.Duration
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.CORS())
	e.Use(echoprometheus.NewMiddleware("tracking"))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(d.AuthService)
	deliveryHandler := handler.NewDeliveryHandler(d.DeliveryService)
	locationHandler := handler.NewLocationHandler(d.LocationService)
	streamHandler := handler.NewStreamHandler(d.DeliveryService, d.Registry, d.WSPingInterval, d.WSWriteTimeout, d.Log)

	// --- Operational routes (no auth required) ---
	e.GET("/health", handlers.NewHealthHandler().Liveness)
	if d.Readiness != nil {
		e.GET("/health/ready", d.Readiness.Readiness)
	}
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Auth routes ---
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)

	// --- Authenticated API ---
	v1 := e.Group("/v1", middleware.Auth(d.JWTSecret))

	v1.POST("/locations", locationHandler.Report)
	v1.GET("/locations/ws/:delivery_id", streamHandler.Subscribe)

	v1.POST("/deliveries", deliveryHandler.Create, middleware.RBAC(domain.RoleCustomer, domain.RoleAdmin))
	v1.GET("/deliveries", deliveryHandler.List)
	v1.GET("/deliveries/:id", deliveryHandler.Get)
	v1.GET("/deliveries/:id/locations", locationHandler.History)
	v1.POST("/deliveries/:id/assign", deliveryHandler.Assign, middleware.RBAC(domain.RoleAdmin))
	v1.POST("/deliveries/:id/complete", deliveryHandler.Complete, middleware.RBAC(domain.RoleCourier))

	return e
}
