// Package app wires repositories, services and handlers into a Fiber app.
package app

import (
	"context"
	"time"

	"storefront/internal/config"
	"storefront/internal/gateway"
	"storefront/internal/handlers"
	"storefront/internal/idempotency"
	"storefront/internal/middleware"
	"storefront/internal/pricing"
	"storefront/internal/repositories"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps are the long-lived resources the app is built from.
type Deps struct {
	Config      *config.Config
	Log         *zap.Logger
	DB          *gorm.DB
	Idempotency idempotency.Store
	Gateway     gateway.Client
	// Events is nil when no broker is configured.
	Events services.EventPublisher
}

// App is the HTTP application plus the handler for broker messages, both
// served by the same services.
type App struct {
	*fiber.App
	Events *handlers.EventHandler
}

// connectionChecker is implemented by publishers that hold a live
// broker connection.
type connectionChecker interface {
	IsConnected() bool
}

// New builds the application.
func New(deps Deps) *App {
	cfg, log := deps.Config, deps.Log
	respond := handlers.NewResponder(log, !cfg.IsProduction())

	productRepo := repositories.NewGORMProductRepository(deps.DB)
	userRepo := repositories.NewGORMUserRepository(deps.DB)
	addressRepo := repositories.NewGORMAddressRepository(deps.DB)
	cartRepo := repositories.NewGORMCartRepository(deps.DB)
	ruleRepo := repositories.NewGORMShippingRuleRepository(deps.DB)
	orderRepo := repositories.NewGORMOrderRepository(deps.DB)
	intentRepo := repositories.NewGORMPaymentIntentRepository(deps.DB)

	engine := pricing.NewEngine(ruleRepo, pricing.Defaults{
		FreeShippingThreshold: cfg.FreeShippingThreshold,
		ShippingFee:           cfg.DefaultShippingFee,
	}, log)

	authService := services.NewAuthService(userRepo, cfg.JWTSecret, log)
	productService := services.NewProductService(productRepo)
	addressService := services.NewAddressService(addressRepo)
	cartService := services.NewCartService(cartRepo, productRepo, engine)
	assembler := services.NewOrderAssembler(productRepo, addressRepo, cartRepo, engine)
	orderService := services.NewOrderService(assembler, orderRepo, deps.Idempotency, deps.Events, log)
	paymentService := services.NewPaymentService(assembler, orderService, orderRepo, intentRepo, deps.Gateway, deps.Idempotency,
		services.PaymentConfig{
			KeyID:     cfg.GatewayKeyID,
			KeySecret: cfg.GatewayKeySecret,
			Currency:  cfg.Currency,
		}, log)

	app := fiber.New(fiber.Config{
		AppName:      "storefront",
		ErrorHandler: errorHandler(respond),
	})
	app.Use(recover.New())
	app.Use(middleware.RequestLogger(log))

	app.Get("/health", healthHandler(deps))

	apiV1 := app.Group("/api/v1")
	handlers.NewAuthHandler(authService, respond).RegisterRoutes(apiV1)

	protected := apiV1.Group("", middleware.AuthRequired(authService, log, !cfg.IsProduction()))
	handlers.NewProductHandler(productService, respond).RegisterRoutes(protected)
	handlers.NewAddressHandler(addressService, respond).RegisterRoutes(protected)
	handlers.NewCartHandler(cartService, respond).RegisterRoutes(protected)
	handlers.NewPaymentHandler(paymentService, respond).RegisterRoutes(protected)
	handlers.NewOrderHandler(orderService, respond).RegisterRoutes(protected)

	return &App{
		App:    app,
		Events: handlers.NewEventHandler(orderService, log),
	}
}

// errorHandler keeps unhandled errors in the {message, error?} shape.
func errorHandler(respond *handlers.Responder) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return c.Status(fiberErr.Code).JSON(fiber.Map{"message": fiberErr.Message})
		}
		return respond.Error(c, err)
	}
}

func healthHandler(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		status := fiber.StatusOK
		database := "connected"
		if sqlDB, err := deps.DB.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			database = "unavailable"
			status = fiber.StatusServiceUnavailable
		}
		state := "healthy"
		broker := "disabled"
		if deps.Events != nil {
			broker = "connected"
			// orders still commit without the broker, so this only degrades
			if checker, ok := deps.Events.(connectionChecker); ok && !checker.IsConnected() {
				broker = "disconnected"
				state = "degraded"
			}
		}
		if status != fiber.StatusOK {
			state = "degraded"
		}
		return c.Status(status).JSON(fiber.Map{
			"status":   state,
			"time":     time.Now().Format(time.RFC3339),
			"database": database,
			"rabbitMQ": broker,
		})
	}
}
