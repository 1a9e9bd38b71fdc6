// Package router provides HTTP routing, middleware configuration, and server setup
package router

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/orbitcrm/outreach-engine/app/handlers"
	"github.com/orbitcrm/outreach-engine/app/middleware"
	"github.com/orbitcrm/outreach-engine/utils"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// FiberRouter implements Router using Fiber
type FiberRouter struct {
	app             *fiber.App
	campaignHandler handlers.CampaignHandlerInterface
	redirectHandler handlers.RedirectHandlerInterface
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(campaignHandler handlers.CampaignHandlerInterface, redirectHandler handlers.RedirectHandlerInterface) Router {
	app := fiber.New(fiber.Config{
		AppName:      "Outreach Engine API",
		ServerHeader: "outreach-engine",
		BodyLimit:    2 * 1024 * 1024,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return &FiberRouter{
		app:             app,
		campaignHandler: campaignHandler,
		redirectHandler: redirectHandler,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.setupMiddleware()

	// Public surface: redirects, health, metrics. No tenant identity needed.
	r.app.Get("/r/:code", r.redirectHandler.Visit)
	r.app.Get("/healthz", healthCheck)
	r.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := r.app.Group("/api/v1", middleware.TenantContext())

	campaigns := api.Group("/campaigns")
	campaigns.Post("/", r.campaignHandler.Create)
	campaigns.Get("/", r.campaignHandler.List)
	campaigns.Get("/:uuid", r.campaignHandler.Get)
	campaigns.Put("/:uuid", r.campaignHandler.Update)
	campaigns.Delete("/:uuid", r.campaignHandler.Delete)
	campaigns.Post("/:uuid/schedule", r.campaignHandler.Schedule)
	campaigns.Post("/:uuid/start", r.campaignHandler.Start)
	campaigns.Post("/:uuid/pause", r.campaignHandler.Pause)
	campaigns.Post("/:uuid/resume", r.campaignHandler.Resume)
	campaigns.Post("/:uuid/recipients", r.campaignHandler.AddRecipient)
	campaigns.Delete("/:uuid/recipients/:id", r.campaignHandler.RemoveRecipient)
	campaigns.Get("/:uuid/stats", r.campaignHandler.Stats)
}

func (r *FiberRouter) setupMiddleware() {
	r.app.Use(recover.New())
	r.app.Use(requestid.New())
	r.app.Use(helmet.New())
	r.app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "X-Request-ID", "X-Tenant-ID", "X-User-ID"},
	}))
	r.app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: time.Minute,
		Next: func(c fiber.Ctx) bool {
			// Redirects and probes are exempt; campaign clicks arrive in bursts.
			return c.Path() == "/healthz" || c.Path() == "/metrics" ||
				len(c.Path()) > 3 && c.Path()[:3] == "/r/"
		},
	}))
	r.app.Use(middleware.Metrics())
}

// Start begins listening on the given address
func (r *FiberRouter) Start(address string) error {
	return r.app.Listen(address)
}

// GetApp returns the underlying Fiber application
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

func healthCheck(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": utils.UTCNow().Format(time.RFC3339),
	})
}
