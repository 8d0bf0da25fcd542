package controllers

import (
	"context"
	"strings"

	"github.com/ManuelReschke/PayHook/internal/pkg/webhook"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// MonitorService is the read-only ledger view served to operators.
type MonitorService interface {
	GetStatistics(ctx context.Context, provider string, hours int) (webhook.Statistics, error)
	GetFailedWebhooks(ctx context.Context, provider string, limit int) ([]webhook.FailedWebhook, error)
	GetStuckWebhooks(ctx context.Context, provider string, limit int) ([]webhook.FailedWebhook, error)
	HealthCheck(ctx context.Context) (webhook.Health, error)
}

type MonitorController struct {
	monitor MonitorService
}

func NewMonitorController(monitor MonitorService) *MonitorController {
	return &MonitorController{monitor: monitor}
}

// HandleMonitor serves ?action=stats (default), ?action=failed and ?action=stuck.
func (m *MonitorController) HandleMonitor(c *fiber.Ctx) error {
	provider, ok := monitorProvider(c.Query("provider"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": webhook.MessageUnsupported})
	}

	switch strings.ToLower(c.Query("action", "stats")) {
	case "stats":
		stats, err := m.monitor.GetStatistics(c.UserContext(), provider, c.QueryInt("hours", webhook.DefaultStatsHours))
		if err != nil {
			return monitorError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "data": stats})
	case "failed":
		failed, err := m.monitor.GetFailedWebhooks(c.UserContext(), provider, c.QueryInt("limit", webhook.DefaultFailedLimit))
		if err != nil {
			return monitorError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "data": failed})
	case "stuck":
		stuck, err := m.monitor.GetStuckWebhooks(c.UserContext(), provider, c.QueryInt("limit", webhook.DefaultFailedLimit))
		if err != nil {
			return monitorError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "data": stuck})
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Unknown action"})
	}
}

type monitorActionRequest struct {
	Action string `json:"action"`
}

// HandleMonitorAction serves {"action": "health_check"}.
func (m *MonitorController) HandleMonitorAction(c *fiber.Ctx) error {
	var req monitorActionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid JSON payload"})
	}
	if req.Action != "health_check" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Unknown action"})
	}

	health, err := m.monitor.HealthCheck(c.UserContext())
	if err != nil {
		return monitorError(c, err)
	}
	status := fiber.StatusOK
	if !health.Healthy {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{"success": health.Healthy, "data": health})
}

func monitorProvider(raw string) (string, bool) {
	if strings.TrimSpace(raw) == "" {
		return "", true
	}
	p, err := webhook.ParseProvider(raw)
	if err != nil {
		return "", false
	}
	return string(p), true
}

func monitorError(c *fiber.Ctx, err error) error {
	log.Errorf("[Monitor] Query failed: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Monitor query failed"})
}
