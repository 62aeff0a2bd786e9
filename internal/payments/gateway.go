package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/clinic-booking/pkg/logging"
)

var paymentsTracer = otel.Tracer("clinic.internal.payments")

const defaultBaseURL = "https://api.razorpay.com"

// OrderRequest asks the gateway for an order the checkout widget can pay.
type OrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

type Order struct {
	ID         string `json:"id"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amount_paid"`
	Currency   string `json:"currency"`
	Receipt    string `json:"receipt"`
	Status     string `json:"status"`
	Notes      Notes  `json:"notes"`
	CreatedAt  int64  `json:"created_at"`
}

type RefundRequest struct {
	PaymentID string
	Amount    int64
	Receipt   string
	Notes     map[string]string
}

type Refund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	Notes     Notes  `json:"notes"`
	CreatedAt int64  `json:"created_at"`
}

// Notes is the gateway's key/value metadata. Empty notes arrive as a JSON
// array rather than an object.
type Notes map[string]string

func (n *Notes) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] == '[' || bytes.Equal(trimmed, []byte("null")) {
		*n = Notes{}
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return err
	}
	*n = m
	return nil
}

// APIError is a non-2xx gateway response.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("payments: gateway status %d: %s %s", e.StatusCode, e.Code, e.Description)
}

// Client talks to a Razorpay-compatible REST API.
type Client struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

func NewClient(keyID, keySecret string, logger *logging.Logger) *Client {
	if strings.TrimSpace(keyID) == "" || strings.TrimSpace(keySecret) == "" {
		panic("payments: gateway key id and secret required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		keyID:      keyID,
		keySecret:  keySecret,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// WithBaseURL overrides the API host (e.g., a local mock).
func (c *Client) WithBaseURL(baseURL string) *Client {
	if baseURL == "" {
		return c
	}
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

func (c *Client) WithHTTPClient(client *http.Client) *Client {
	if client != nil {
		c.httpClient = client
	}
	return c
}

// KeyID is public and handed to the checkout widget.
func (c *Client) KeyID() string {
	return c.keyID
}

func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	ctx, span := paymentsTracer.Start(ctx, "payments.create_order")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.receipt", req.Receipt),
		attribute.Int64("clinic.amount", req.Amount),
	)
	if req.Amount <= 0 {
		return nil, fmt.Errorf("payments: order amount must be positive")
	}

	body := map[string]any{
		"amount":   req.Amount,
		"currency": req.Currency,
		"receipt":  req.Receipt,
	}
	if len(req.Notes) > 0 {
		body["notes"] = req.Notes
	}
	var order Order
	if err := c.do(ctx, http.MethodPost, "/v1/orders", body, &order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create order failed")
		return nil, err
	}
	c.logger.Info("gateway order created", "order_id", order.ID, "receipt", req.Receipt, "amount", order.Amount)
	return &order, nil
}

func (c *Client) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	ctx, span := paymentsTracer.Start(ctx, "payments.fetch_order")
	defer span.End()
	var order Order
	if err := c.do(ctx, http.MethodGet, "/v1/orders/"+url.PathEscape(orderID), nil, &order); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &order, nil
}

// Refund refunds a captured payment. A zero amount refunds the remainder.
func (c *Client) Refund(ctx context.Context, req RefundRequest) (*Refund, error) {
	ctx, span := paymentsTracer.Start(ctx, "payments.refund")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.payment_id", req.PaymentID),
		attribute.Int64("clinic.amount", req.Amount),
	)
	if req.PaymentID == "" {
		return nil, fmt.Errorf("payments: refund requires payment id")
	}

	body := map[string]any{}
	if req.Amount > 0 {
		body["amount"] = req.Amount
	}
	if req.Receipt != "" {
		body["receipt"] = req.Receipt
	}
	if len(req.Notes) > 0 {
		body["notes"] = req.Notes
	}
	var refund Refund
	if err := c.do(ctx, http.MethodPost, "/v1/payments/"+url.PathEscape(req.PaymentID)+"/refund", body, &refund); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refund failed")
		return nil, err
	}
	c.logger.Info("refund processed", "refund_id", refund.ID, "payment_id", req.PaymentID, "status", refund.Status, "amount", refund.Amount)
	return &refund, nil
}

// VerifyCheckoutSignature checks the signature the checkout widget returns
// after a successful payment.
func (c *Client) VerifyCheckoutSignature(orderID, paymentID, signature string) bool {
	return VerifySignature(c.keySecret, orderID+"|"+paymentID, signature)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("payments: marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("payments: build request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("payments: gateway http: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode >= http.StatusMultipleChoices {
		var parsed struct {
			Error struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		}
		_ = json.Unmarshal(respBody, &parsed)
		c.logger.Error("gateway request failed", "path", path, "status", resp.StatusCode, "code", parsed.Error.Code)
		return &APIError{StatusCode: resp.StatusCode, Code: parsed.Error.Code, Description: parsed.Error.Description}
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("payments: decode response: %w", err)
		}
	}
	return nil
}
