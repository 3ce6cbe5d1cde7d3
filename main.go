package main

import (
	"fmt"
	"log"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/facturly/facturly/app/controllers"
	"github.com/facturly/facturly/internal/pkg/billing"
	"github.com/facturly/facturly/internal/pkg/cache"
	"github.com/facturly/facturly/internal/pkg/database"
	"github.com/facturly/facturly/internal/pkg/env"
	"github.com/facturly/facturly/internal/pkg/router"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	cfg, err := billing.LoadConfig()
	if err != nil {
		log.Fatalf("billing configuration invalid: %v", err)
	}
	catalog, err := billing.NewPlanCatalog(cfg)
	if err != nil {
		log.Fatalf("billing plan catalog invalid: %v", err)
	}

	db := database.GetDB()
	gateway := billing.NewStripeGateway(cfg.StripeSecretKey)
	repo := billing.NewRepository(db)
	profiles := billing.NewProfileDirectory(db)
	svc := billing.NewService(repo, profiles, gateway, catalog, cfg)
	deduper := billing.NewEventDeduper()
	processor := billing.NewProcessor(repo, gateway, catalog, deduper, cfg.StripeWebhookSecret)

	app := fiber.New(fiber.Config{
		BodyLimit: 1 << 20, // webhook and JSON bodies only
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app, controllers.NewBillingController(svc, processor))

	return app
}
