package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ToffenYT/varsly/internal/events"
	"github.com/ToffenYT/varsly/internal/keywords"
	"github.com/ToffenYT/varsly/internal/middleware"
	"github.com/ToffenYT/varsly/internal/store"
	"github.com/ToffenYT/varsly/internal/telemetry"
	"github.com/ToffenYT/varsly/internal/unsubscribe"
)

// Router both delivery paths
type Router interface {
	Immediater
	Digester
}

// Deps everything the HTTP surface calls into
type Deps struct {
	Store     store.Store
	Signer    *unsubscribe.Signer
	Events    events.Publisher
	Router    Router
	Pipeline  Ingester
	APIKey    string
	Telemetry *telemetry.Telemetry

	// WebhookDelivery registers /v1/hooks/alert-created; leave false when ingest sends inline
	WebhookDelivery bool

	// AccessLog disables the request log when false
	AccessLog bool
	TimeZone  string
}

// NewApp fiber app with middleware and every route registered
func NewApp(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "varsly",
		ErrorHandler:          ErrorHandler,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	if d.AccessLog {
		app.Use(fiberlogger.New(fiberlogger.Config{
			Format:     `{"time":"${time}","status":${status},"latency":"${latency}","ip":"${ip}","method":"${method}","path":"${path}","user_agent":"${ua}","error":"${error}"}` + "\n",
			TimeFormat: "2006-01-02T15:04:05Z07:00",
			TimeZone:   d.TimeZone,
		}))
	}
	app.Use(middleware.Tracing(d.Telemetry, "/healthz", "/v1/healthz", "/metrics"))
	app.Use(middleware.PrometheusMiddleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
		AllowHeaders: "Accept, Authorization, Content-Type, Origin, X-API-Key",
		MaxAge:       86400,
	}))

	SetupRoutes(app, d)
	return app
}

// SetupRoutes registers every route on app
func SetupRoutes(app *fiber.App, d Deps) {
	app.Get("/healthz", HealthCheck)
	app.Get("/metrics", middleware.PrometheusHandler())

	v1 := app.Group("/v1")
	v1.Get("/healthz", HealthCheck)
	v1.Get("/readiness", ReadinessCheck(d.Store))

	// public: the token is the credential
	SetupUnsubscribeRoutes(v1, NewUnsubscribeHandler(d.Signer, d.Store, d.Events))

	guard := middleware.APIKeyRequired(d.APIKey)

	if d.WebhookDelivery {
		hooks := v1.Group("/hooks", guard)
		SetupHookRoutes(hooks, NewHookHandler(d.Router))
	}

	internal := v1.Group("/internal", guard)
	SetupInternalRoutes(internal, NewInternalHandler(d.Pipeline, d.Router))

	subscribers := v1.Group("/subscribers", guard)
	SetupSubscriberRoutes(subscribers, NewSubscriberHandler(keywords.NewService(d.Store), d.Store))
}
