package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pohodnya/mtchat/internal/config"
	"github.com/pohodnya/mtchat/internal/objectstore"
	"github.com/pohodnya/mtchat/internal/presence"
	"github.com/pohodnya/mtchat/internal/webhook"
	"github.com/pohodnya/mtchat/internal/workers"
)

// HealthHandler reports liveness plus the configured-or-degraded state
// of every optional dependency (KV store, object store, webhook).
type HealthHandler struct {
	config      *config.Config
	poolManager *workers.PoolManager
	presence    *presence.Tracker
	store       *objectstore.Store
	webhook     *webhook.Sender
}

func NewHealthHandler(cfg *config.Config, poolManager *workers.PoolManager, presenceTracker *presence.Tracker, store *objectstore.Store, sender *webhook.Sender) *HealthHandler {
	return &HealthHandler{
		config:      cfg,
		poolManager: poolManager,
		presence:    presenceTracker,
		store:       store,
		webhook:     sender,
	}
}

func (h *HealthHandler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":                "ok",
		"message":               "mtchat is running",
		"timestamp":             time.Now(),
		"environment":           h.config.Server.Environment,
		"worker_stats":          h.poolManager.GetStats(),
		"presence_configured":   h.presence.Configured(),
		"object_store_configured": h.store.Configured(),
		"webhook_configured":   h.webhook.Configured(),
	})
}
