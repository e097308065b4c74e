package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ballup-api/apperr"
	"ballup-api/handlers"
	"ballup-api/middleware"
	"ballup-api/models"
	"ballup-api/realtime"
	"ballup-api/services"
	"ballup-api/storage"
	"ballup-api/utils"
	"ballup-api/workers"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = "production"
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable not set")
	}

	app := fiber.New(fiber.Config{
		BodyLimit:    10 * 1024 * 1024, // 10MB, court photos are the largest payload
		ErrorHandler: apperr.ErrorHandler(appEnv),
	})

	// CORS for the mobile and web clients
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOrigins = "http://localhost:3000"
	}
	originsList := strings.Split(allowedOrigins, ",")
	for i, origin := range originsList {
		originsList[i] = strings.TrimSpace(origin)
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(originsList, ","),
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Requested-With",
		MaxAge:       86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Location{},
		&models.Game{},
		&models.GameParticipant{},
		&models.AdminLog{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	securityLog, err := zap.NewProduction()
	if appEnv == "development" {
		securityLog, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatal("failed to build security logger:", err)
	}
	defer securityLog.Sync()

	// Rate limiting: in-memory counters unless a shared redis store is
	// configured for multi-instance deployments.
	rateLimitEnabled := utils.EnvBool("ENABLE_RATE_LIMIT", true)
	tiers := middleware.LoadTiers()

	var counterStore middleware.CounterStore
	var memStore *middleware.MemoryStore
	if redisURL := os.Getenv("RATE_LIMIT_REDIS_URL"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Fatal("invalid RATE_LIMIT_REDIS_URL:", err)
		}
		counterStore = middleware.NewRedisStore(redis.NewClient(opts))
		log.Println("✅ Rate limiter using shared redis counter store")
	} else {
		memStore = middleware.NewMemoryStore()
		counterStore = memStore
		log.Println("✅ Rate limiter using in-memory counter store (resets on restart)")
	}
	limiter := middleware.NewLimiter(counterStore, securityLog, rateLimitEnabled)

	photoStore, err := storage.NewPhotoStore()
	if err != nil {
		log.Fatal("failed to initialize photo storage:", err)
	}
	if photoStore == nil {
		log.Println("⚠️  S3_BUCKET not set — court photo uploads disabled")
	}

	// Real-time fan-out
	socketsEnabled := utils.EnvBool("ENABLE_SOCKETS", true)
	hub := realtime.NewHub()
	var publisher realtime.Publisher = hub
	if !socketsEnabled {
		publisher = realtime.NopPublisher{}
	}

	authService := services.NewAuthService(db, jwtSecret, securityLog)
	gameService := services.NewGameService(db, publisher)
	locationService := services.NewLocationService(db, photoStorePtr(photoStore))
	userService := services.NewUserService(db)
	adminService := services.NewAdminService(db)

	gameService.StartStatusScheduler()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sweep func() int
	if memStore != nil {
		sweep = memStore.Sweep
	}
	reconciler := workers.NewReconciler(db, sweep)
	go reconciler.Poll(ctx, 5*time.Minute)

	api := app.Group("/api", limiter.ByIP(tiers.General))
	handlers.SetupAuthRoutes(api, authService, limiter, tiers)
	handlers.SetupGameRoutes(api, gameService, jwtSecret, limiter, tiers)
	handlers.SetupLocationRoutes(api, locationService, jwtSecret, limiter, tiers)
	handlers.SetupUserRoutes(api, userService, jwtSecret, limiter, tiers)
	handlers.SetupAdminRoutes(api, adminService, db, jwtSecret, limiter, tiers)

	if socketsEnabled {
		wsHandler := realtime.NewHandler(hub, db, jwtSecret)
		app.Use("/ws", wsHandler.Upgrade)
		app.Get("/ws", websocket.New(wsHandler.Serve))
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Printf("✅ Game status scheduler running (1m tick)")
	log.Printf("✅ Counter reconciliation running (every 5m)")
	log.Printf("✅ CORS configured for origins: %s", strings.Join(originsList, ","))
	if socketsEnabled {
		log.Println("✅ Realtime socket endpoint at /ws")
	}

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

// photoStorePtr avoids passing a typed-nil interface into the location
// service when object storage is not configured.
func photoStorePtr(p *storage.PhotoStore) services.PhotoUploader {
	if p == nil {
		return nil
	}
	return p
}
