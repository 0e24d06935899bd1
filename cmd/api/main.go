// mtchat API Gateway
//
// This service is the embeddable chat backend: a single Fiber process
// exposing a Management API (host-application-facing, admin-token
// gated) and a Chat API + WebSocket plane (end-user-facing, scope-claim
// gated). PostgreSQL is the system of record; Redis is optional
// infrastructure behind presence, the notification debounce register,
// and the dialog-list cache, each of which degrades independently when
// no KV store is configured.
//
// STARTUP SEQUENCE:
// 1. Load configuration from environment variables
// 2. Initialize structured logging with appropriate levels
// 3. Create worker pools for concurrent operations
// 4. Establish Redis connection with fallback to memory cache
// 5. Connect to PostgreSQL and run migrations
// 6. Initialize the object store, presence tracker, realtime hub,
//    webhook sender and notification scheduler
// 7. Wire the dialog and message services
// 8. Setup HTTP handlers with dependency injection
// 9. Configure Fiber web server with middleware
// 10. Register API routes and start server
// 11. Setup graceful shutdown handling
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"

	"github.com/pohodnya/mtchat/internal/access"
	"github.com/pohodnya/mtchat/internal/auth"
	"github.com/pohodnya/mtchat/internal/config"
	"github.com/pohodnya/mtchat/internal/database"
	"github.com/pohodnya/mtchat/internal/dialogservice"
	"github.com/pohodnya/mtchat/internal/handlers"
	"github.com/pohodnya/mtchat/internal/messageservice"
	"github.com/pohodnya/mtchat/internal/middleware"
	"github.com/pohodnya/mtchat/internal/models"
	"github.com/pohodnya/mtchat/internal/objectstore"
	"github.com/pohodnya/mtchat/internal/presence"
	"github.com/pohodnya/mtchat/internal/realtime"
	"github.com/pohodnya/mtchat/internal/scheduler"
	"github.com/pohodnya/mtchat/internal/services"
	"github.com/pohodnya/mtchat/internal/webhook"
	"github.com/pohodnya/mtchat/internal/workers"
)

func main() {
	// PHASE 1: CONFIGURATION AND LOGGING SETUP
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.Server.Environment == "development" {
		opts.Level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, opts))
	slog.SetDefault(logger)

	// PHASE 2: WORKER POOL INITIALIZATION
	// Notification/webhook pools absorb fan-out work off the request
	// path; the archive pool runs the periodic auto-archive sweep.
	poolManager := workers.NewPoolManager(workers.PoolConfig{
		NotificationWorkers: 10,
		WebhookWorkers:      5,
		ArchiveWorkers:      2,
	})

	// PHASE 3: KEY/VALUE STORE SETUP WITH GRACEFUL DEGRADATION
	// Redis backs presence, the notification debounce register, and the
	// dialog-list cache. Every one of those degrades independently when
	// this connection is unavailable.
	var redisClient *redis.Client
	var cache services.CacheService = services.NewMemoryCache()
	if cfg.KV.URL != "" {
		opt, err := redis.ParseURL(cfg.KV.URL)
		if err != nil {
			slog.Warn("invalid KV_URL, falling back to memory cache", "error", err)
		} else {
			opt.Password = cfg.KV.Password
			opt.DB = cfg.KV.DB
			client := redis.NewClient(opt)
			pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := client.Ping(pingCtx).Err(); err != nil {
				slog.Warn("KV store connection failed, falling back to memory cache", "error", err)
				client.Close()
			} else {
				slog.Info("KV store connection established")
				redisClient = client
				cache = services.NewRedisCache(client)
			}
			pingCancel()
		}
	} else {
		slog.Info("no KV_URL configured, presence/notifications/dialog-list cache run degraded")
	}

	// PHASE 4: DATABASE CONNECTION SETUP
	slog.Info("connecting to PostgreSQL")
	db, err := database.NewConnection(cfg)
	if err != nil {
		log.Fatal("database connection required:", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		slog.Error("database migration failed", "error", err)
	}

	// PHASE 5: DOMAIN INFRASTRUCTURE
	objectStore, err := objectstore.New(context.Background(), cfg.ObjectStore)
	if err != nil {
		slog.Warn("object store initialization failed, attachment endpoints disabled", "error", err)
		objectStore = nil
	}
	presenceTracker := presence.New(redisClient)
	evaluator := access.New(db)
	hub := realtime.New(db, presenceTracker)
	webhookSender := webhook.New(cfg.Webhook)

	sched := scheduler.New(redisClient, db, webhookSender, poolManager, scheduler.Config{
		Delay:             time.Duration(cfg.Notification.DelaySecs) * time.Second,
		JobTimeout:        time.Duration(cfg.Notification.JobTimeoutSecs) * time.Second,
		ArchiveAfter:      time.Duration(cfg.Notification.ArchiveAfterDays) * 24 * time.Hour,
		ArchiveCronExpr:   cfg.Notification.ArchiveCron,
		ArchiveJobTimeout: time.Duration(cfg.Notification.ArchiveTimeoutSecs) * time.Second,
	})
	if err := sched.StartArchiveCron(func(ctx context.Context, dialogID, userID string) {
		hub.SendToUser(userID, realtime.Frame(models.EventDialogArchived, models.DialogEventData{DialogID: dialogID}))
	}); err != nil {
		slog.Error("failed to start archive cron", "error", err)
	}

	// PHASE 6: SERVICES
	dialogs := dialogservice.New(db, evaluator, hub, webhookSender, cache)
	messages := messageservice.New(db, evaluator, objectStore, hub, webhookSender, sched)

	// PHASE 7: HANDLER INITIALIZATION
	managementHandler := handlers.NewManagementHandler(dialogs)
	dialogHandler := handlers.NewDialogHandler(dialogs)
	messageHandler := handlers.NewMessageHandler(messages)
	uploadHandler := handlers.NewUploadHandler(objectStore, evaluator, db)
	realtimeHandler := handlers.NewRealtimeHandler(hub)
	healthHandler := handlers.NewHealthHandler(cfg, poolManager, presenceTracker, objectStore, webhookSender)

	// PHASE 8: FIBER WEB SERVER CONFIGURATION
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		ErrorHandler: middleware.ErrorHandler(),
	})

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(cors.New(cors.Config{
		AllowOrigins: joinOrigins(cfg.Server.CORSAllowOrigins),
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-User-ID,X-Scope-Config",
	}))

	// PHASE 9: ROUTE REGISTRATION
	// Every route lives under /api/v1, including health — the embedding
	// host pins a version of this surface, not an unversioned root.
	v1 := app.Group("/api/v1")
	v1.Get("/health", healthHandler.HandleHealth)

	admin := v1.Group("/management", auth.AdminMiddleware(cfg.Admin))
	admin.Post("/dialogs", managementHandler.CreateDialog)
	admin.Get("/dialogs/:dialogId", managementHandler.GetDialog)
	admin.Delete("/dialogs/:dialogId", managementHandler.DeleteDialog)
	admin.Post("/dialogs/:dialogId/participants", managementHandler.AddParticipant)
	admin.Delete("/dialogs/:dialogId/participants/:userId", managementHandler.RemoveParticipant)
	admin.Put("/dialogs/:dialogId/access-scopes", managementHandler.ReplaceScopes)

	v1.Get("/dialogs", dialogHandler.ListParticipating)
	v1.Get("/dialogs/available", dialogHandler.ListAvailable)
	v1.Get("/dialogs/by-object", dialogHandler.GetByObject)
	v1.Get("/dialogs/:dialogId", dialogHandler.GetDetail)
	v1.Get("/dialogs/:dialogId/participants", dialogHandler.ListParticipants)
	v1.Post("/dialogs/:dialogId/join", dialogHandler.Join)
	v1.Post("/dialogs/:dialogId/leave", dialogHandler.Leave)
	v1.Post("/dialogs/:dialogId/archive", dialogHandler.Archive)
	v1.Post("/dialogs/:dialogId/unarchive", dialogHandler.Unarchive)
	v1.Post("/dialogs/:dialogId/pin", dialogHandler.Pin)
	v1.Post("/dialogs/:dialogId/unpin", dialogHandler.Unpin)
	v1.Post("/dialogs/:dialogId/mute", dialogHandler.Mute)
	v1.Post("/dialogs/:dialogId/unmute", dialogHandler.Unmute)

	v1.Post("/dialogs/:dialogId/messages", messageHandler.Send)
	v1.Get("/dialogs/:dialogId/messages", messageHandler.List)
	v1.Put("/dialogs/:dialogId/messages/:messageId", messageHandler.Edit)
	v1.Delete("/dialogs/:dialogId/messages/:messageId", messageHandler.Delete)
	v1.Post("/dialogs/:dialogId/read", messageHandler.AdvanceRead)

	v1.Post("/dialogs/:dialogId/attachments/presign-upload", uploadHandler.PresignUpload)
	v1.Get("/attachments/:attachmentId/url", uploadHandler.PresignDownload)

	v1.Use("/ws", realtimeHandler.Upgrade)
	v1.Get("/ws", websocket.New(realtimeHandler.Serve))

	// PHASE 10: GRACEFUL SHUTDOWN HANDLING
	// Stop accepting and drain in-flight requests first, so nothing still
	// being served loses its pools, cache or database underneath it.
	shutdownDone := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c

		slog.Info("shutting down")
		if err := app.Shutdown(); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		sched.Stop()
		poolManager.Shutdown()
		if err := cache.Close(); err != nil {
			slog.Error("cache close error", "error", err)
		}
		if err := db.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
		slog.Info("shutdown complete")
		close(shutdownDone)
	}()

	// PHASE 11: SERVER STARTUP
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	slog.Info("starting mtchat API server", "address", addr, "environment", cfg.Server.Environment)
	if err := app.Listen(addr); err != nil {
		poolManager.Shutdown()
		log.Fatal(err)
	}
	<-shutdownDone
}

func joinOrigins(origins []string) string {
	out := ""
	for i, o := range origins {
		if i > 0 {
			out += ","
		}
		out += o
	}
	if out == "" {
		return "*"
	}
	return out
}
