package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"debate-arena-system/handlers"
	"debate-arena-system/models"
	"debate-arena-system/services"
	"debate-arena-system/utils"
	"debate-arena-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Engine tuning. Durations are fixed here; only external endpoints and
// credentials come from the environment.
const (
	battleDuration   = 3 * time.Minute
	botFallbackAfter = 10 * time.Second
	swipeRequestTTL  = 30 * time.Second
	heartbeatTimeout = 60 * time.Second
	sweepInterval    = 15 * time.Second
	messageCooldown  = 3 * time.Second
	maxMessageLen    = 500
	swipeDeckSize    = 20
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		ReadBufferSize: 16 * 1024,
	})

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("ALLOWED_ORIGINS not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(allowedOriginsList, ","),
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles, X-Service-Token, X-Device-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.ArenaUser{},
		&models.BattleRecord{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	authServiceURL := os.Getenv("AUTH_SERVICE_URL")
	if authServiceURL == "" {
		log.Fatal("AUTH_SERVICE_URL environment variable not set")
	}
	arenaServiceToken := os.Getenv("ARENA_SERVICE_TOKEN")
	if arenaServiceToken == "" {
		log.Fatal("ARENA_SERVICE_TOKEN environment variable not set")
	}
	judgeURL := os.Getenv("AI_JUDGE_URL")
	if judgeURL == "" {
		log.Fatal("AI_JUDGE_URL environment variable not set")
	}
	syncServiceURL := os.Getenv("SYNC_SERVICE_URL")
	if syncServiceURL == "" {
		log.Fatal("SYNC_SERVICE_URL environment variable not set")
	}

	authClient := services.NewAuthServiceClient(authServiceURL, arenaServiceToken)
	judge := services.NewAIJudgeClient(judgeURL, os.Getenv("AI_JUDGE_TOKEN"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	archiver := workers.NewTranscriptArchiver(64)
	archiver.Start(ctx)

	hub := handlers.NewHub()
	directory := services.NewUserDirectory(db)
	records := services.NewBattleRecordStore(db)
	personas := services.NewPersonaDeck()

	presence := services.NewPresenceRegistry(hub, heartbeatTimeout)
	battles := services.NewBattleEngine(judge, records, archiver, hub, battleDuration)
	queue := services.NewMatchQueue(battles, personas, hub, botFallbackAfter)
	swipe := services.NewSwipeMatcher(presence, battles, personas, hub, swipeRequestTTL, swipeDeckSize)

	// Offline cascade: each step is isolated inside the registry, so a
	// failure in one never blocks the others.
	presence.OnOffline(func(userID, reason string) { queue.Leave(userID) })
	presence.OnOffline(func(userID, reason string) { battles.HandleDisconnect(userID) })
	presence.OnOffline(func(userID, reason string) { swipe.HandleUserOffline(userID) })

	presence.StartSweeper(sweepInterval)
	defer presence.StopSweeper()

	syncWorker := workers.NewArenaUserSyncWorker(db, syncServiceURL, "/api/v1/public/profiles", arenaServiceToken)
	syncWorker.Start(ctx)

	gateway := &handlers.Gateway{
		Hub:       hub,
		Presence:  presence,
		Queue:     queue,
		Swipe:     swipe,
		Battles:   battles,
		Directory: directory,
		Limiter:   handlers.NewMessageLimiter(messageCooldown, maxMessageLen),
	}

	handlers.SetupArenaRoutes(app, gateway, authClient)

	// HTTP routes require the platform gateway's service token; the
	// WebSocket endpoint above authenticates sessions itself.
	handlers.SetupHistoryRoutes(app, records, battles)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("arena server running on http://localhost:5300")
	log.Println("presence sweeper running (every 15s)")
	log.Println("arena user sync worker running")
	log.Println("transcript archiver running")

	<-ctx.Done()
	log.Println("Shutting down server...")
}
