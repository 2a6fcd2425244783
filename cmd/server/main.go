package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"strings"

	"github.com/gofiber/contrib/otelfiber/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/jackc/pgx/v5/stdlib"

	"meetspot-api/internal/api"
	"meetspot-api/internal/config"
	"meetspot-api/internal/crypto"
	"meetspot-api/internal/events"
	"meetspot-api/internal/places"
	"meetspot-api/internal/repository"
	"meetspot-api/internal/service"
	"meetspot-api/internal/tracing"
	_ "meetspot-api/migrations"
)

func main() {
	cfg := config.Load()

	api.SetupGlobalHandler("meetspot-api")

	shutdownTracer, err := tracing.InitTracerProvider("meetspot-api")
	if err != nil {
		log.Fatalf("Failed to initialize OpenTelemetry: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("Error shutting down tracer provider: %v", err)
		}
	}()

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		handleMigrations(cfg)
		return
	}

	db := connectDB(cfg)
	defer db.Close()

	encryptionKey, err := crypto.DeriveKey(cfg.EncryptionSecret)
	if err != nil {
		log.Fatalf("Failed to derive encryption key: %v", err)
	}

	eventPublisher, err := events.NewNatsPublisher(cfg.NATSURL)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	log.Println("Successfully connected to NATS.")

	placesClient, err := places.NewGoogleClient(cfg.GoogleMapsAPIKey)
	if err != nil {
		log.Fatalf("Failed to create maps client: %v", err)
	}

	userRepo := repository.NewPostgresUserRepository(db)
	tokenRepo := repository.NewPostgresTokenRepository(db)
	meetingRepo := repository.NewPostgresMeetingRequestRepository(db)

	authService := service.NewAuthService(userRepo, tokenRepo)
	meetingService := service.NewMeetingService(meetingRepo, eventPublisher, placesClient, encryptionKey)

	_, err = events.NewCalculationSubscriber(cfg.NATSURL, meetingService)
	if err != nil {
		log.Printf("WARNING: Failed to start calculation subscriber: %v", err)
		// Keep serving; NATS may not be up yet.
	}

	authHandler := api.NewAuthHandler(authService)
	oauthHandler := api.NewOAuthHandler(cfg, authService)
	meetingHandler := api.NewMeetingHandler(meetingService)

	app := fiber.New()
	app.Use(otelfiber.Middleware())
	app.Use(api.PrometheusMiddleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.CORSOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": "meetspot-api"})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/v1")

	authRoutes := v1.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Post("/refresh", authHandler.Refresh)
	authRoutes.Post("/logout", authHandler.Logout)
	authRoutes.Get("/:provider/login", oauthHandler.Login)
	authRoutes.Get("/:provider/callback", oauthHandler.Callback)

	userRoutes := v1.Group("/users")
	userRoutes.Use(api.AuthMiddleware())
	userRoutes.Get("/me", authHandler.GetProfile)

	meetingRoutes := v1.Group("/meeting-requests")

	// User B responds with nothing but the capability token.
	meetingRoutes.Post("/:id/respond", meetingHandler.Respond)

	meetingRoutes.Use(api.AuthMiddleware())
	meetingRoutes.Post("/", meetingHandler.CreateRequest)
	meetingRoutes.Get("/", meetingHandler.ListRequests)
	meetingRoutes.Get("/:id", meetingHandler.GetRequest)
	meetingRoutes.Put("/:id", meetingHandler.UpdateRequest)
	meetingRoutes.Delete("/:id", meetingHandler.DeleteRequest)
	meetingRoutes.Get("/:id/status", meetingHandler.GetStatus)
	meetingRoutes.Get("/:id/results", meetingHandler.GetResults)
	meetingRoutes.Get("/:id/contact", meetingHandler.GetContact)
	meetingRoutes.Post("/:id/select-spot", meetingHandler.SelectSpot)

	log.Printf("Listening meetspot-api on port %s", cfg.AppPort)
	log.Fatal(app.Listen(":" + cfg.AppPort))
}

func connectDB(cfg *config.Config) *sqlx.DB {
	db, err := sqlx.Connect("pgx", cfg.DatabaseURL())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Successfully connected to the database.")
	return db
}

func handleMigrations(cfg *config.Config) {
	log.Println("Running database migrations...")

	db, err := sql.Open("pgx", cfg.DatabaseURL())
	if err != nil {
		log.Fatalf("failed to connect to database for migration: %v", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("failed to set goose dialect: %v", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		log.Fatalf("goose: failed to run migrations: %v", err)
	}

	log.Println("Migrations applied successfully!")
}
