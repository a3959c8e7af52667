package webhook

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Excel-Technologies-Ltd/uber-direct/internal/metrics"
	"github.com/Excel-Technologies-Ltd/uber-direct/internal/models"
	"github.com/Excel-Technologies-Ltd/uber-direct/internal/tasks"
)

// SignatureHeader carries the provider's HMAC over the raw request body.
const SignatureHeader = "X-Uber-Signature"

// SecretSource yields the signing secret for a webhook event kind.
type SecretSource interface {
	WebhookSecret(kind models.EventKind) (string, error)
}

// Handler receives provider webhooks. Each endpoint verifies authenticity
// first, enqueues the event for asynchronous reconciliation, and
// acknowledges immediately; the HTTP response is never held open waiting for
// downstream persistence.
type Handler struct {
	secrets SecretSource
	queue   tasks.Queue
	log     *zap.Logger
}

// NewHandler creates a new webhook handler.
func NewHandler(secrets SecretSource, queue tasks.Queue, log *zap.Logger) *Handler {
	return &Handler{secrets: secrets, queue: queue, log: log}
}

// RegisterRoutes mounts the webhook endpoints, one per event kind.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/delivery_status", h.DeliveryStatus)
	g.POST("/courier_update", h.CourierUpdate)
	g.POST("/refund_request", h.RefundRequest)
}

func (h *Handler) DeliveryStatus(c echo.Context) error {
	return h.receive(c, models.EventDeliveryStatus)
}

func (h *Handler) CourierUpdate(c echo.Context) error {
	return h.receive(c, models.EventCourierUpdate)
}

func (h *Handler) RefundRequest(c echo.Context) error {
	return h.receive(c, models.EventRefundRequest)
}

func (h *Handler) receive(c echo.Context, endpointKind models.EventKind) error {
	secret, err := h.secrets.WebhookSecret(endpointKind)
	if err != nil {
		h.log.Error("webhook secret not configured", zap.String("kind", string(endpointKind)), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: err.Error()})
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}

	// Verify signature FIRST: nothing is parsed or scheduled before the
	// request proves authentic.
	signature := c.Request().Header.Get(SignatureHeader)
	if signature == "" {
		metrics.WebhookEvents.WithLabelValues(string(endpointKind), "rejected").Inc()
		return c.JSON(http.StatusForbidden, models.ErrorResponse{Message: "Missing Uber webhook signature"})
	}
	if !VerifySignature(secret, body, signature) {
		metrics.WebhookEvents.WithLabelValues(string(endpointKind), "rejected").Inc()
		return c.JSON(http.StatusForbidden, models.ErrorResponse{Message: "Invalid Uber webhook signature"})
	}

	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid webhook payload"})
	}
	if _, err := models.ParseEventKind(probe.Kind); err != nil {
		metrics.WebhookEvents.WithLabelValues(probe.Kind, "invalid_kind").Inc()
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid kind: " + probe.Kind})
	}

	if _, err := h.queue.Enqueue(c.Request().Context(), tasks.JobWebhookEvent, json.RawMessage(body)); err != nil {
		h.log.Error("webhook enqueue failed", zap.String("kind", probe.Kind), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to schedule webhook processing"})
	}
	metrics.WebhookEvents.WithLabelValues(probe.Kind, "accepted").Inc()

	return c.JSON(http.StatusOK, map[string]string{"message": "Webhook received successfully"})
}
