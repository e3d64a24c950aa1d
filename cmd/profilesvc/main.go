// Command profilesvc serves the relational profile store that the
// provisioner reaches through its HTTP gateway.
package main

import (
	"context"
	"time"

	"github.com/Abraxas-365/provisioning/pkg/config"
	"github.com/Abraxas-365/provisioning/pkg/httpx"
	"github.com/Abraxas-365/provisioning/pkg/logx"
	"github.com/Abraxas-365/provisioning/pkg/profile/profileapi"
	"github.com/Abraxas-365/provisioning/pkg/profile/profileinfra"
	"github.com/Abraxas-365/provisioning/pkg/profile/profilesrv"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func main() {
	logx.Info("🚀 Starting Profile Service...")

	cfg := config.Load()

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logx.Fatalf("Failed to connect to database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	logx.Info("  ✅ Database connected")

	repo := profileinfra.NewPostgresRepository(db)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := repo.EnsureSchema(ctx); err != nil {
		logx.Fatalf("Failed to apply schema: %v", err)
	}
	cancel()
	logx.Info("  ✅ Schema ready")

	if cfg.ProfileStore.ServiceToken == "" {
		logx.Warn("  ⚠️ PROFILE_STORE_SERVICE_TOKEN is empty, the API accepts unauthenticated calls")
	}

	app := httpx.NewApp(httpx.AppOptions{
		Name:        "Profile Service",
		CORSOrigins: cfg.Server.CORSOrigins,
		Debug:       cfg.Server.Debug,
		AccessLog:   true,
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := db.PingContext(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "db": "unhealthy"})
		}
		return c.JSON(fiber.Map{"status": "healthy", "db": "healthy", "service": "profilesvc"})
	})

	// /api/v1/profiles/*
	profileapi.NewHandlers(profilesrv.NewService(repo)).
		RegisterRoutes(app, profileapi.ServiceAuth(cfg.ProfileStore.ServiceToken))
	logx.Info("✓ Profile routes registered")

	app.Use(httpx.NotFoundHandler)

	httpx.Serve(app, cfg.ProfileStore.Port, func() {
		if err := db.Close(); err != nil {
			logx.Errorf("Error closing database: %v", err)
		}
	})
}
