package main

import (
	"context"

	"github.com/Abraxas-365/provisioning/pkg/config"
	"github.com/Abraxas-365/provisioning/pkg/httpx"
	"github.com/Abraxas-365/provisioning/pkg/logx"
	"github.com/gofiber/fiber/v2"
)

func main() {
	logx.Info("🚀 Starting Provisioning API...")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logx.Fatalf("Invalid configuration: %v", err)
	}

	container := NewContainer(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	container.StartBackgroundServices(ctx)

	app := httpx.NewApp(httpx.AppOptions{
		Name:        cfg.Server.AppName,
		CORSOrigins: cfg.Server.CORSOrigins,
		Debug:       cfg.Server.Debug,
		AccessLog:   true,
	})

	app.Get("/health", healthCheckHandler(container))

	// /api/v1/me, /api/v1/identities/:id/*
	container.ClaimsHandlers.RegisterRoutes(app, container.AuthMiddleware)
	logx.Info("✓ Identity routes registered")

	if container.SignInHandlers != nil {
		container.SignInHandlers.RegisterRoutes(app)
		logx.Warn("✓ Development sign-in route registered")
	}

	// /api/v1/principals/*
	container.ProvisioningHandlers.RegisterRoutes(app, container.AuthMiddleware)
	logx.Info("✓ Provisioning routes registered")

	app.Use(httpx.NotFoundHandler)

	httpx.Serve(app, cfg.Server.Port, func() {
		cancel()
		container.Cleanup()
	})
}

func healthCheckHandler(container *Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		health := fiber.Map{
			"status":   "healthy",
			"service":  "provisioner",
			"version":  container.Config.Server.Version,
			"idp":      container.Config.IdentityProvider.Driver,
			"profiles": container.Config.ProfileStore.BaseURL,
		}

		if container.Redis != nil {
			if err := container.Redis.Ping(c.UserContext()).Err(); err != nil {
				health["redis"] = "unhealthy"
				health["status"] = "degraded"
			} else {
				health["redis"] = "healthy"
			}
		}

		status := fiber.StatusOK
		if health["status"] == "degraded" {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(health)
	}
}
