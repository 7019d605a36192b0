package routes

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tair/rent-payments/api-gateway/config"
	"github.com/tair/rent-payments/api-gateway/health"
	"github.com/tair/rent-payments/api-gateway/middleware"
	"github.com/tair/rent-payments/api-gateway/proxy"
)

// RouteDefinition defines a route mapping
type RouteDefinition struct {
	Prefix       string
	ServiceName  string
	Description  string
	RequireAuth  bool // Requires authentication
	RequireAdmin bool // Requires admin role
}

// Routes holds all route definitions
var Routes = []RouteDefinition{
	// Gateway webhooks authenticate with their signature, not a JWT; the
	// payment service verifies it before applying anything.
	{
		Prefix:       "/api/webhooks",
		ServiceName:  "payment",
		Description:  "Payment gateway webhook deliveries",
		RequireAuth:  false,
		RequireAdmin: false,
	},

	// Payment engine routes
	{
		Prefix:       "/api/payments",
		ServiceName:  "payment",
		Description:  "Payment lifecycle (mixed: some need admin)",
		RequireAuth:  true,
		RequireAdmin: false,
	},
	{
		Prefix:       "/api/iban",
		ServiceName:  "payment",
		Description:  "IBAN validation",
		RequireAuth:  true,
		RequireAdmin: false,
	},
}

// SetupRoutes configures all routes in the gateway
func SetupRoutes(app *fiber.App, cfg *config.GatewayConfig, cbManager *middleware.CircuitBreakerManager, redisClient *redis.Client) {
	// Create reverse proxy
	reverseProxy := proxy.NewReverseProxy(cfg)

	// Create health checker
	healthChecker := health.NewHealthChecker(cfg)

	// Gateway quick health check (no downstream checks)
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(healthChecker.QuickCheck())
	})

	// Liveness probe (for Kubernetes)
	app.Get("/health/live", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "alive",
		})
	})

	// Readiness probe (checks downstream services)
	app.Get("/health/ready", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		healthStatus := healthChecker.CheckAllServices(ctx)

		statusCode := fiber.StatusOK
		if healthStatus.Status == "unhealthy" {
			statusCode = fiber.StatusServiceUnavailable
		}

		return c.Status(statusCode).JSON(healthStatus)
	})

	// Detailed service health checks
	app.Get("/health/services", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
		defer cancel()

		healthStatus := healthChecker.CheckAllServices(ctx)
		return c.JSON(healthStatus)
	})

	// Circuit breaker and load balancer stats (admin only)
	app.Get("/gateway/stats", middleware.AuthMiddleware(), middleware.AdminMiddleware(), func(c *fiber.Ctx) error {
		lbStats := make(map[string]interface{})
		for name, lb := range reverseProxy.GetLoadBalancers() {
			lbStats[name] = lb.GetStats()
		}
		return c.JSON(fiber.Map{
			"circuit_breakers": cbManager.GetAllStats(),
			"load_balancers":   lbStats,
		})
	})

	// Cached responses go stale after payment mutations; admins can flush.
	app.Post("/gateway/cache/invalidate", middleware.AuthMiddleware(), middleware.AdminMiddleware(), func(c *fiber.Ctx) error {
		if redisClient == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Cache not available",
			})
		}
		if err := middleware.InvalidateCache(redisClient, "cache:*"); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"message": "Cache invalidated"})
	})

	// API routes overview
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Rent Payments API Gateway",
			"version": "1.0.0",
			"routes":  Routes,
		})
	})

	// Register all service routes
	for _, route := range Routes {
		registerServiceRoutes(app, route, reverseProxy)
	}
}

// registerServiceRoutes registers all HTTP methods for a service prefix
func registerServiceRoutes(app *fiber.App, route RouteDefinition, proxyHandler *proxy.ReverseProxy) {
	// Create handler function
	handler := func(c *fiber.Ctx) error {
		return proxyHandler.ProxyRequest(c, route.ServiceName)
	}

	// Apply middleware based on route requirements
	var middlewares []fiber.Handler

	if route.RequireAdmin {
		// Admin routes need both auth and admin check
		middlewares = append(middlewares, middleware.AuthMiddleware(), middleware.AdminMiddleware())
	} else if route.RequireAuth {
		// Auth required routes
		middlewares = append(middlewares, middleware.AuthMiddleware())
	}
	// Public routes have no middleware

	// Create a route group for this service
	group := app.Group(route.Prefix, middlewares...)

	// Handle all HTTP methods with wildcard path
	group.All("/*", handler)

	// Also handle the exact prefix path (without /*)
	if len(middlewares) > 0 {
		app.All(route.Prefix, append(middlewares, handler)...)
	} else {
		app.All(route.Prefix, handler)
	}
}
