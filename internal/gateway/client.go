package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/digital-storefront/internal/domain/payment"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 2048
)

var (
	ErrMissingCredentials = errors.New("gateway: api key and private key are required")
	ErrMissingBaseURL     = errors.New("gateway: base url is required")
)

// ClientConfig configures the REST gateway client.
type ClientConfig struct {
	BaseURL      string
	APIKey       string
	PrivateKey   string
	MerchantCode string
	CallbackURL  string
	ReturnURL    string
	HTTPClient   *http.Client
}

// Client talks to a REST payment gateway that hosts the payment page and reports
// status per transaction reference.
type Client struct {
	baseURL      string
	apiKey       string
	privateKey   []byte
	merchantCode string
	callbackURL  string
	returnURL    string
	http         *http.Client
}

var _ payment.Gateway = (*Client)(nil)

func NewClient(cfg ClientConfig) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, ErrMissingBaseURL
	}
	if cfg.APIKey == "" || cfg.PrivateKey == "" {
		return nil, ErrMissingCredentials
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:      baseURL,
		apiKey:       cfg.APIKey,
		privateKey:   []byte(cfg.PrivateKey),
		merchantCode: cfg.MerchantCode,
		callbackURL:  cfg.CallbackURL,
		returnURL:    cfg.ReturnURL,
		http:         httpClient,
	}, nil
}

type orderItemPayload struct {
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

type createPayload struct {
	Method        string             `json:"method"`
	MerchantRef   string             `json:"merchant_ref"`
	Amount        int64              `json:"amount"`
	CustomerName  string             `json:"customer_name"`
	CustomerEmail string             `json:"customer_email"`
	CustomerPhone string             `json:"customer_phone,omitempty"`
	OrderItems    []orderItemPayload `json:"order_items"`
	CallbackURL   string             `json:"callback_url,omitempty"`
	ReturnURL     string             `json:"return_url,omitempty"`
	ExpiredTime   int64              `json:"expired_time,omitempty"`
	Signature     string             `json:"signature"`
}

type transactionData struct {
	Reference   string `json:"reference"`
	MerchantRef string `json:"merchant_ref"`
	CheckoutURL string `json:"checkout_url"`
	Status      string `json:"status"`
	Amount      int64  `json:"amount"`
	ExpiredTime int64  `json:"expired_time"`
	Note        string `json:"note"`
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// CreateTransaction opens a remote transaction for the session total. Fee is sent as
// its own line so the item lines add up to the amount.
func (c *Client) CreateTransaction(ctx context.Context, req payment.CreateRequest) (payment.Transaction, error) {
	items := make([]orderItemPayload, 0, len(req.Items)+1)
	for _, line := range req.Items {
		items = append(items, orderItemPayload{
			SKU:      line.ID,
			Name:     itemName(line.Title, line.Tier),
			Price:    line.UnitPrice,
			Quantity: line.Quantity,
		})
	}
	if req.Fee > 0 {
		items = append(items, orderItemPayload{SKU: "FEE", Name: "Biaya layanan", Price: req.Fee, Quantity: 1})
	}

	payload := createPayload{
		Method:        req.Method,
		MerchantRef:   req.OrderID,
		Amount:        req.Amount,
		CustomerName:  defaultString(req.Customer.Name, "Pelanggan"),
		CustomerEmail: req.Customer.Email,
		CustomerPhone: req.Customer.Phone,
		OrderItems:    items,
		CallbackURL:   c.callbackURL,
		ReturnURL:     c.returnURL,
		Signature:     c.RequestSignature(req.OrderID, req.Amount),
	}
	if !req.ExpiresAt.IsZero() {
		payload.ExpiredTime = req.ExpiresAt.Unix()
	}

	var data transactionData
	if err := c.do(ctx, http.MethodPost, "/transaction/create", nil, payload, &data); err != nil {
		return payment.Transaction{}, err
	}
	if data.Reference == "" {
		return payment.Transaction{}, fmt.Errorf("%w: response has no reference", payment.ErrGatewayRejected)
	}

	tx := payment.Transaction{
		TransactionID: data.Reference,
		PaymentURL:    data.CheckoutURL,
	}
	if data.ExpiredTime > 0 {
		tx.ExpiresAt = time.Unix(data.ExpiredTime, 0).UTC()
	}
	return tx, nil
}

func (c *Client) GetStatus(ctx context.Context, transactionID string) (payment.StatusUpdate, error) {
	var data transactionData
	query := url.Values{"reference": {transactionID}}
	if err := c.do(ctx, http.MethodGet, "/transaction/detail", query, nil, &data); err != nil {
		return payment.StatusUpdate{}, err
	}
	return data.toUpdate(transactionID), nil
}

func (c *Client) Cancel(ctx context.Context, transactionID string) error {
	body := map[string]string{"reference": transactionID}
	return c.do(ctx, http.MethodPost, "/transaction/cancel", nil, body, nil)
}

// RequestSignature signs merchantCode+orderID+amount with the private key.
func (c *Client) RequestSignature(orderID string, amount int64) string {
	mac := hmac.New(sha256.New, c.privateKey)
	mac.Write([]byte(c.merchantCode + orderID + strconv.FormatInt(amount, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gateway: marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("gateway: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("gateway: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := drainError(resp.Body)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("gateway: %s %s status %d: %s", method, path, resp.StatusCode, msg)
		}
		return fmt.Errorf("%w: %s %s status %d: %s", payment.ErrGatewayRejected, method, path, resp.StatusCode, msg)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("gateway: decode response: %w", err)
	}
	if !env.Success {
		return fmt.Errorf("%w: %s", payment.ErrGatewayRejected, defaultString(env.Message, "request not accepted"))
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("gateway: decode data: %w", err)
	}
	return nil
}

func (d transactionData) toUpdate(fallbackID string) payment.StatusUpdate {
	id := d.Reference
	if id == "" {
		id = fallbackID
	}
	update := payment.StatusUpdate{
		TransactionID: id,
		Status:        mapRemoteStatus(d.Status),
		Reason:        d.Note,
	}
	if update.Status == payment.StatusFailed && update.Reason == "" {
		update.Reason = "gateway reported " + strings.ToLower(strings.TrimSpace(d.Status))
	}
	if update.Status == payment.StatusPaid {
		update.SettledAmount = d.Amount
	}
	return update
}

// mapRemoteStatus translates gateway status strings. Unknown values read as pending.
// Cancelled is kept for cancellations the customer asked for, so a cancel initiated
// on the gateway side reads as failed.
func mapRemoteStatus(remote string) payment.Status {
	switch strings.ToUpper(strings.TrimSpace(remote)) {
	case "PAID", "SETTLED", "SUCCESS":
		return payment.StatusPaid
	case "EXPIRED":
		return payment.StatusExpired
	case "FAILED", "REFUND", "CANCELLED", "CANCELED", "CANCEL":
		return payment.StatusFailed
	default:
		return payment.StatusPending
	}
}

func itemName(title, tier string) string {
	if tier == "" {
		return title
	}
	return title + " (" + tier + ")"
}

func drainError(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(data))
}

func defaultString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
