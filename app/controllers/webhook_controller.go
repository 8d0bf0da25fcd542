package controllers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuelReschke/PayHook/internal/pkg/webhook"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// WebhookHandler runs a delivery through the webhook pipeline.
type WebhookHandler interface {
	Handle(ctx context.Context, d *webhook.Delivery) *webhook.Result
}

type WebhookController struct {
	pipeline WebhookHandler
	timeout  time.Duration
}

// NewWebhookController creates the controller. timeout bounds a single
// delivery including retries; zero means no extra bound.
func NewWebhookController(pipeline WebhookHandler, timeout time.Duration) *WebhookController {
	return &WebhookController{pipeline: pipeline, timeout: timeout}
}

type webhookData struct {
	EventID          string `json:"eventId"`
	ProcessingTimeMs int64  `json:"processingTimeMs"`
}

type webhookResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    *webhookData `json:"data,omitempty"`
}

func (w *WebhookController) HandleWebhook(c *fiber.Ctx) error {
	provider, err := webhook.ParseProvider(c.Params("provider"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(webhookResponse{Message: webhook.MessageUnsupported})
	}

	requestID := strings.TrimSpace(c.Get(webhook.HeaderMercadoPagoRequestID))
	if requestID == "" {
		requestID = uuid.New().String()
	}

	delivery := &webhook.Delivery{
		Provider:  provider,
		Header:    http.Header(c.GetReqHeaders()),
		Query:     queryValues(c),
		RawBody:   append([]byte(nil), c.BodyRaw()...),
		ClientIP:  c.IP(),
		RequestID: requestID,
	}

	ctx := c.UserContext()
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	res := w.pipeline.Handle(ctx, delivery)
	body := webhookResponse{Success: res.Success, Message: res.Message}
	if res.EventID != "" {
		body.Data = &webhookData{EventID: res.EventID, ProcessingTimeMs: res.ProcessingTimeMs()}
	}
	return c.Status(res.HTTPStatus).JSON(body)
}

// HandlePing lets providers and operators check that an endpoint is routed.
func (w *WebhookController) HandlePing(c *fiber.Ctx) error {
	provider, err := webhook.ParseProvider(c.Params("provider"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(webhookResponse{Message: webhook.MessageUnsupported})
	}
	return c.JSON(fiber.Map{
		"status":    "ok",
		"provider":  provider,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func queryValues(c *fiber.Ctx) url.Values {
	values := url.Values{}
	c.Request().URI().QueryArgs().VisitAll(func(key, value []byte) {
		values.Add(string(key), string(value))
	})
	return values
}
