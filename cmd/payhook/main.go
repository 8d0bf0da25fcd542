package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/PayHook/internal/pkg/cache"
	"github.com/ManuelReschke/PayHook/internal/pkg/env"
	"github.com/ManuelReschke/PayHook/internal/pkg/router"
	"github.com/ManuelReschke/PayHook/internal/pkg/service"
)

func main() {
	app, services := NewApplication()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down")
		if err := app.Shutdown(); err != nil {
			log.Printf("Shutdown failed: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	if cerr := services.Close(); cerr != nil {
		log.Printf("Failed to close services: %v", cerr)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() (*fiber.App, *service.Services) {
	env.SetupEnvFile()

	services, err := service.Setup()
	if err != nil {
		log.Fatalf("Failed to set up webhook services: %v", err)
	}

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName:     "PayHook",
		BodyLimit:   services.Config.BodyLimitBytes,
		ProxyHeader: env.GetEnv("APP_PROXY_HEADER", ""),
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// ROUTER
	router.InstallRouter(app, router.Dependencies{
		Pipeline:            services.Pipeline,
		Monitor:             services.Monitor,
		MonitorStorage:      cache.NewFiberStorage(),
		MonitorUser:         env.GetEnv("MONITOR_USER", ""),
		MonitorPasswordHash: env.GetEnv("MONITOR_PASSWORD_HASH", ""),
		WebhookTimeout:      services.Config.RequestTimeout(),
	})

	return app, services
}
