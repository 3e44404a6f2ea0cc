package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	config "github.com/maheshrc27/travelpost-bot/configs"
	"github.com/maheshrc27/travelpost-bot/internal/api/handlers"
	"github.com/maheshrc27/travelpost-bot/internal/api/middleware"
	"github.com/maheshrc27/travelpost-bot/internal/bot"
	"github.com/maheshrc27/travelpost-bot/internal/conversation"
	job "github.com/maheshrc27/travelpost-bot/internal/jobs"
	"github.com/maheshrc27/travelpost-bot/internal/queue"
	"github.com/maheshrc27/travelpost-bot/internal/repository"
	"github.com/maheshrc27/travelpost-bot/internal/service"
	"github.com/maheshrc27/travelpost-bot/pkg/utils"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx := context.Background()

	ws, err := repository.OpenWorksheet(ctx, cfg.Sheets)
	if err != nil {
		log.Fatalf("Failed to open posts worksheet: %v", err)
	}
	postRepo := repository.NewPostRepository(ws)
	if err := postRepo.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to prepare posts worksheet: %v", err)
	}

	var db *sql.DB
	var historyRepo repository.PostingHistoryRepository
	if cfg.PostgresURI != "" {
		db, err = repository.ConnectPostgres(ctx, cfg.PostgresURI)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		historyRepo = repository.NewPostingHistoryRepository(db)
		if err := historyRepo.Migrate(ctx); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)

	var sessions conversation.SessionStore = conversation.NewMemoryStore(cfg.SessionTTL)
	var rdb *redis.Client
	if cfg.SessionStore == config.SessionStoreRedis {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisURI})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("Redis is unreachable: %v", err)
		}
		sessions = conversation.NewRedisStore(rdb, cfg.SessionTTL)
	}

	telegramService := service.NewTelegramService(*cfg)
	r2Service, err := service.NewR2Service(ctx, *cfg)
	if err != nil {
		log.Fatalf("Failed to init R2: %v", err)
	}
	var imageHost service.ImageHost
	if cfg.R2.Enabled() {
		imageHost = r2Service
	} else {
		log.Println("R2 is not configured, images will be hosted through Telegram")
	}

	generationService := service.NewGenerationService(*cfg)
	imageService := service.NewImageService(*cfg)
	postService := service.NewPostService(postRepo, historyRepo, generationService, imageService, imageHost, telegramService, cfg.Telegram.ChannelID)

	machine := conversation.NewMachine(postRepo, sessions, postService)
	scheduler := queue.NewScheduler(client)
	travelBot := bot.NewBot(postRepo, postService, machine, telegramService, scheduler, cfg.Location(), cfg.ListLimit)

	// queue
	queueW := queue.NewQueue(postRepo, postService, telegramService)
	server := asynq.NewServer(redisConn, asynq.Config{
		Concurrency: 4,
	})
	mux := asynq.NewServeMux()
	queueW.Register(mux)

	log.Println("Starting the Asynq server...")
	if err := server.Start(mux); err != nil {
		log.Fatalf("Could not start Asynq server: %v", err)
	}

	// cron jobs
	sweepJob := job.NewPublishSweepJob(postRepo, client)
	c := cron.New()
	if err := c.AddFunc("@every 1m", sweepJob.SweepDuePosts); err != nil {
		log.Fatalf("Failed to schedule sweep job: %v", err)
	}
	c.Start()

	pollCtx, stopPolling := context.WithCancel(ctx)
	if cfg.Telegram.WebhookURL != "" {
		if cfg.Telegram.WebhookSecret == "" {
			secret, err := utils.GenerateWebhookSecret(43)
			if err != nil {
				log.Fatalf("Failed to generate webhook secret: %v", err)
			}
			cfg.Telegram.WebhookSecret = secret
		}
		if err := telegramService.SetWebhook(ctx, cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
			log.Fatalf("Failed to set webhook: %v", err)
		}
		log.Printf("Webhook set to %s", cfg.Telegram.WebhookURL)
	} else {
		if err := telegramService.DeleteWebhook(ctx); err != nil {
			log.Printf("Warning: Failed to delete webhook: %v", err)
		}
		log.Println("No webhook URL, polling for updates")
		go travelBot.Poll(pollCtx, telegramService)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(recover.New())
	app.Use(logger.New())

	health := handlers.NewHealthHandler(cfg.Sheets.Backend)
	app.Get("/healthz", health.Health)

	// Updates arrive by polling otherwise, so the route only exists in webhook mode.
	if cfg.Telegram.WebhookURL != "" {
		webhookMiddleware := middleware.NewWebhookMiddleware(*cfg)
		webhook := handlers.NewWebhookHandler(travelBot)
		app.Post("/telegram/webhook", webhookMiddleware.SecretToken(), webhook.ReceiveUpdate)
	}

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Server is running on http://localhost:%s", cfg.Port)

	gracefulShutdown(func() {
		stopPolling()
		if err := app.Shutdown(); err != nil {
			log.Printf("Failed to shut down server: %v", err)
		}
		travelBot.Wait()
		c.Stop()
		server.Shutdown()
		client.Close()
		if rdb != nil {
			rdb.Close()
		}
		if db != nil {
			closeDB(db)
		}
	})
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(stop func()) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	stop()
	log.Println("Server shutdown complete.")
}
