package uber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Excel-Technologies-Ltd/uber-direct/internal/metrics"
	"github.com/Excel-Technologies-Ltd/uber-direct/internal/models"
)

const requestTimeout = 10 * time.Second

// APIError is a non-2xx response from the delivery provider. The body is
// kept verbatim so callers can surface the provider's own message.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("uber api returned status %d: %s", e.StatusCode, e.Body)
}

// TokenSource yields a usable bearer token for a customer id.
type TokenSource interface {
	BearerToken(ctx context.Context, customerID string) (string, error)
}

// Param is one query parameter. List filters are sent in the caller's
// insertion order, which url.Values cannot preserve.
type Param struct {
	Key   string
	Value string
}

// Client talks to the Uber Direct customer API. Every operation builds a
// customer-scoped URL, attaches a bearer token and JSON headers, and either
// returns the parsed body unmodified or an APIError. There is no retry
// logic: callers sit behind webhook redelivery or user re-submission, which
// retry at the edge.
type Client struct {
	baseURL    string
	customerID string
	tokens     TokenSource
	httpClient *http.Client
}

// NewClient builds a delivery API client with a bounded request timeout.
func NewClient(baseURL, customerID string, tokens TokenSource) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		customerID: customerID,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// CreateQuote requests a priced, time-bounded quote for a pickup/dropoff pair.
func (c *Client) CreateQuote(ctx context.Context, payload models.QuoteRequest) (json.RawMessage, error) {
	return c.do(ctx, "create_quote", http.MethodPost, "/delivery_quotes", payload)
}

// CreateDelivery creates a delivery. The payload carries an idempotency key,
// so repeating the call for the same order is safe.
func (c *Client) CreateDelivery(ctx context.Context, payload models.DeliveryRequest) (json.RawMessage, error) {
	return c.do(ctx, "create_delivery", http.MethodPost, "/deliveries", payload)
}

// GetDelivery fetches a single delivery by its provider id.
func (c *Client) GetDelivery(ctx context.Context, deliveryID string) (json.RawMessage, error) {
	return c.do(ctx, "get_delivery", http.MethodGet, "/deliveries/"+url.PathEscape(deliveryID), nil)
}

// ListDeliveries lists deliveries with the given filters, preserving the
// caller's parameter order.
func (c *Client) ListDeliveries(ctx context.Context, params []Param) (json.RawMessage, error) {
	return c.do(ctx, "list_deliveries", http.MethodGet, "/deliveries"+encodeParams(params), nil)
}

// CancelDelivery cancels a delivery with a reason and optional description.
func (c *Client) CancelDelivery(ctx context.Context, deliveryID, reason, description string) (json.RawMessage, error) {
	payload := map[string]string{"cancelation_reason": reason}
	if description != "" {
		payload["additional_description"] = description
	}
	return c.do(ctx, "cancel_delivery", http.MethodPost, "/deliveries/"+url.PathEscape(deliveryID)+"/cancel", payload)
}

// ProofOfDelivery fetches the proof-of-delivery artifact for a delivery.
func (c *Client) ProofOfDelivery(ctx context.Context, deliveryID string, payload json.RawMessage) (json.RawMessage, error) {
	return c.do(ctx, "proof_of_delivery", http.MethodPost, "/deliveries/"+url.PathEscape(deliveryID)+"/proof-of-delivery", payload)
}

func (c *Client) do(ctx context.Context, op, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("uber.Client: marshal %s payload: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	token, err := c.tokens.BearerToken(ctx, c.customerID)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return nil, fmt.Errorf("uber.Client: build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ProviderRequests.WithLabelValues(op, "error").Inc()
		return nil, fmt.Errorf("uber.Client: %s: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("uber.Client: read %s response: %w", op, err)
	}

	metrics.ProviderRequests.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	return json.RawMessage(data), nil
}

func (c *Client) url(path string) string {
	return c.baseURL + "/customers/" + url.PathEscape(c.customerID) + path
}

// encodeParams serializes query parameters as key=value pairs joined by "&",
// keeping insertion order. Values are escaped.
func encodeParams(params []Param) string {
	if len(params) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(params))
	for _, p := range params {
		pairs = append(pairs, p.Key+"="+url.QueryEscape(p.Value))
	}
	return "?" + strings.Join(pairs, "&")
}
