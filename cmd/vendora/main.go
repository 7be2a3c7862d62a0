package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/DavidKroell/Vendora/app/controllers"
	"github.com/DavidKroell/Vendora/app/repository"
	"github.com/DavidKroell/Vendora/internal/pkg/cache"
	"github.com/DavidKroell/Vendora/internal/pkg/database"
	"github.com/DavidKroell/Vendora/internal/pkg/env"
	"github.com/DavidKroell/Vendora/internal/pkg/jobqueue"
	"github.com/DavidKroell/Vendora/internal/pkg/notify"
	"github.com/DavidKroell/Vendora/internal/pkg/payment"
	"github.com/DavidKroell/Vendora/internal/pkg/reaper"
	"github.com/DavidKroell/Vendora/internal/pkg/router"
	"github.com/DavidKroell/Vendora/internal/pkg/shop"
)

func main() {
	app, shutdown := NewApplication()

	// Graceful shutdown: stop accepting requests, then drain background
	// workers so no payment update is lost mid-flight.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	shutdown()
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() (*fiber.App, func()) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	gateway := payment.NewClientFromEnv()
	notifier := notify.NewTelegramNotifierFromEnv()
	shopService := shop.NewService(repository.GetGlobalRepositories(), gateway, notifier)

	controllers.InitializeShopController(shopService)

	manager := jobqueue.GetManager()
	manager.GetQueue().SetPaymentApplier(shopService)
	controllers.InitializeWebhookController(manager.GetQueue())
	manager.Start()

	orderReaper := reaper.NewFromEnv(shopService)
	orderReaper.Start()

	app := fiber.New(fiber.Config{
		AppName: "Vendora",
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	router.InstallRouter(app)

	shutdown := func() {
		orderReaper.Stop()
		manager.Stop()
	}
	return app, shutdown
}
