package delivery

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Excel-Technologies-Ltd/uber-direct/internal/models"
	"github.com/Excel-Technologies-Ltd/uber-direct/internal/uber"
)

// Handler handles HTTP requests for the delivery lifecycle.
type Handler struct {
	svc      ServiceInterface
	validate *validator.Validate // For request body validation
}

// NewHandler creates a new delivery handler.
func NewHandler(svc ServiceInterface) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

// RegisterRoutes mounts the delivery endpoints on the given group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/quote", h.CreateQuote)
	g.POST("", h.CreateDelivery)
	g.POST("/cancel", h.CancelDelivery)
	g.GET("", h.ListDeliveries)
	g.GET("/order/:orderId", h.GetDelivery)
	g.POST("/proof", h.ProofOfDelivery)
}

// RegisterHooks mounts the host-application document-event hooks.
func (h *Handler) RegisterHooks(g *echo.Group) {
	g.POST("/invoice_updated", h.InvoiceUpdated)
}

// CreateQuote requests a delivery quote for a dropoff address. The provider
// response is returned verbatim; attaching the quote to an order is the
// caller's job.
func (h *Handler) CreateQuote(c echo.Context) error {
	var req models.CreateQuoteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "All address fields are required"})
	}

	quote, err := h.svc.CreateQuote(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSONBlob(http.StatusOK, quote)
}

// CreateDelivery creates a delivery for a fulfilled invoice.
func (h *Handler) CreateDelivery(c echo.Context) error {
	var req models.CreateDeliveryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invoice ID is required"})
	}

	resp, err := h.svc.CreateDeliveryForOrder(c.Request().Context(), req.InvoiceID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message":  "Delivery created successfully",
		"delivery": json.RawMessage(resp),
	})
}

// CancelDelivery cancels the delivery attached to an order.
func (h *Handler) CancelDelivery(c echo.Context) error {
	var req models.CancelDeliveryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Order ID and cancelation reason are required"})
	}

	if err := h.svc.CancelDelivery(c.Request().Context(), req.OrderID, req.CancelationReason, req.AdditionalDescription); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message":  "Delivery cancelled successfully",
		"order_id": req.OrderID,
	})
}

// GetDelivery returns the provider's delivery body for an order.
func (h *Handler) GetDelivery(c echo.Context) error {
	orderID := c.Param("orderId")
	if orderID == "" {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Order ID is required"})
	}

	resp, err := h.svc.GetDelivery(c.Request().Context(), orderID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSONBlob(http.StatusOK, resp)
}

// ListDeliveries lists provider deliveries with optional filters.
func (h *Handler) ListDeliveries(c echo.Context) error {
	var req models.ListDeliveriesRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid query parameters"})
	}

	resp, err := h.svc.ListDeliveries(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSONBlob(http.StatusOK, resp)
}

// ProofOfDelivery fetches the proof-of-delivery artifact for an order. The
// body, if any, is forwarded to the provider unmodified.
func (h *Handler) ProofOfDelivery(c echo.Context) error {
	orderID := c.QueryParam("order_id")
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if orderID == "" {
		var probe struct {
			OrderID string `json:"order_id"`
		}
		if len(body) > 0 {
			_ = json.Unmarshal(body, &probe)
		}
		orderID = probe.OrderID
	}
	if orderID == "" {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Order ID is required"})
	}

	resp, err := h.svc.ProofOfDelivery(c.Request().Context(), orderID, body)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSONBlob(http.StatusOK, resp)
}

// InvoiceUpdated is the host's document-event hook. It acknowledges
// immediately; the delivery creation itself runs on the background queue.
func (h *Handler) InvoiceUpdated(c echo.Context) error {
	var hook models.InvoiceUpdatedHook
	if err := c.Bind(&hook); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(hook); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Order ID is required"})
	}

	enqueued, err := h.svc.HandleInvoiceUpdated(c.Request().Context(), hook)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"order_id": hook.OrderID,
		"enqueued": enqueued,
	})
}

// fail maps service errors onto HTTP responses.
func (h *Handler) fail(c echo.Context, err error) error {
	var apiErr *uber.APIError
	var authErr *uber.AuthError
	switch {
	case errors.Is(err, models.ErrNotFound):
		return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: err.Error()})
	case errors.Is(err, models.ErrValidation):
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: err.Error()})
	case errors.Is(err, models.ErrConfiguration):
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: err.Error()})
	case errors.As(err, &apiErr):
		return c.JSON(http.StatusBadGateway, models.ErrorResponse{Message: apiErr.Error()})
	case errors.As(err, &authErr):
		return c.JSON(http.StatusBadGateway, models.ErrorResponse{Message: authErr.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Internal server error"})
	}
}
