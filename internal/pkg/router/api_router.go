package router

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"

	"github.com/DavidKroell/Vendora/app/controllers"
	"github.com/DavidKroell/Vendora/internal/pkg/env"
	"github.com/DavidKroell/Vendora/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api/v1")

	// Webhook ingress. The rate limit sits in front of signature
	// verification so a flood of garbage never reaches the HMAC check.
	api.Post("/payments/webhook", webhookLimiter(), controllers.HandlePaymentWebhook)

	// Public catalog and checkout
	api.Get("/categories", controllers.HandleListCategories)
	api.Get("/products", controllers.HandleListProducts)
	api.Get("/products/:id", controllers.HandleGetProduct)
	api.Post("/checkout", controllers.HandleCheckout)
	api.Get("/orders/:id", controllers.HandleGetOrder)

	// Admin surface, protected by the pre-shared API key
	admin := api.Group("/admin", middleware.AdminAPIKeyMiddleware())
	admin.Post("/categories", controllers.HandleAdminCreateCategory)
	admin.Post("/products", controllers.HandleAdminCreateProduct)
	admin.Post("/products/:id/restock", controllers.HandleAdminRestock)
	admin.Get("/queue", controllers.HandleAdminQueueStats)
	admin.Get("/divergences", controllers.HandleAdminDivergences)
	admin.Post("/payments/:payment_id/sync", controllers.HandleAdminSyncPayment)
	admin.Get("/transactions/:id/history", controllers.HandleAdminTransactionHistory)
}

// webhookLimiter allows 100 requests per 60s sliding window per client IP,
// counted in Redis so all instances share the same window.
func webhookLimiter() fiber.Handler {
	port, err := strconv.Atoi(env.GetEnv("CACHE_PORT", "6379"))
	if err != nil {
		port = 6379
	}

	return limiter.New(limiter.Config{
		Max:        100,
		Expiration: 60 * time.Second,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage: redisstorage.New(redisstorage.Config{
			Host: env.GetEnv("CACHE_HOST", "localhost"),
			Port: port,
		}),
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited"})
		},
	})
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
