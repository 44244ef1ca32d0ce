package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/example/digital-storefront/internal/domain/payment"
)

const (
	stripeCurrency = "idr"
	// Stripe treats IDR as a two-decimal currency.
	stripeMinorUnits = 100

	stripeMinExpiry = 30 * time.Minute
	stripeMaxExpiry = 24 * time.Hour
)

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Expire(id string, params *stripe.CheckoutSessionExpireParams) (*stripe.CheckoutSession, error)
}

// StripeConfig configures the Stripe Checkout adapter.
type StripeConfig struct {
	APIKey     string
	SuccessURL string
	CancelURL  string
	Backends   *stripe.Backends
	Clock      func() time.Time

	sessions stripeSessionAPI
}

// StripeGateway runs payment sessions as Stripe Checkout Sessions.
type StripeGateway struct {
	sessions   stripeSessionAPI
	successURL string
	cancelURL  string
	clock      func() time.Time
}

var _ payment.Gateway = (*StripeGateway)(nil)

func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	sessions := cfg.sessions
	if sessions == nil {
		apiKey := strings.TrimSpace(cfg.APIKey)
		if apiKey == "" {
			return nil, errors.New("stripe: api key is required")
		}
		sessions = client.New(apiKey, cfg.Backends).CheckoutSessions
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &StripeGateway{
		sessions:   sessions,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		clock:      clock,
	}, nil
}

func (g *StripeGateway) CreateTransaction(ctx context.Context, req payment.CreateRequest) (payment.Transaction, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(g.successURL),
		CancelURL:         stripe.String(g.cancelURL),
		ClientReferenceID: stripe.String(req.OrderID),
		Metadata: map[string]string{
			"order_id":    req.OrderID,
			"customer_id": req.Customer.ID,
			"method":      req.Method,
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey("checkout-" + req.OrderID)
	if req.Customer.Email != "" {
		params.CustomerEmail = stripe.String(req.Customer.Email)
	}
	if !req.ExpiresAt.IsZero() {
		ttl := req.ExpiresAt.Sub(g.clock())
		if ttl >= stripeMinExpiry && ttl <= stripeMaxExpiry {
			params.ExpiresAt = stripe.Int64(req.ExpiresAt.Unix())
		}
	}

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Items)+1)
	for _, line := range req.Items {
		lineItems = append(lineItems, stripeLine(itemName(line.Title, line.Tier), line.UnitPrice, int64(line.Quantity)))
	}
	if req.Fee > 0 {
		lineItems = append(lineItems, stripeLine("Biaya layanan", req.Fee, 1))
	}
	params.LineItems = lineItems

	session, err := g.sessions.New(params)
	if err != nil {
		return payment.Transaction{}, classifyStripeError("create checkout session", err)
	}

	tx := payment.Transaction{
		TransactionID: session.ID,
		PaymentURL:    session.URL,
	}
	if session.ExpiresAt > 0 {
		tx.ExpiresAt = time.Unix(session.ExpiresAt, 0).UTC()
	}
	return tx, nil
}

func (g *StripeGateway) GetStatus(ctx context.Context, transactionID string) (payment.StatusUpdate, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	session, err := g.sessions.Get(transactionID, params)
	if err != nil {
		return payment.StatusUpdate{}, classifyStripeError("get checkout session", err)
	}

	update := payment.StatusUpdate{TransactionID: transactionID, Status: payment.StatusPending}
	switch {
	case session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		update.Status = payment.StatusPaid
		update.SettledAmount = session.AmountTotal / stripeMinorUnits
		if session.AmountTotal%stripeMinorUnits != 0 {
			// a fraction of a rupiah matches no quote; pass the raw amount so it fails the total check
			update.SettledAmount = session.AmountTotal
		}
	case session.Status == stripe.CheckoutSessionStatusExpired:
		update.Status = payment.StatusExpired
	}
	return update, nil
}

func (g *StripeGateway) Cancel(ctx context.Context, transactionID string) error {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx

	if _, err := g.sessions.Expire(transactionID, params); err != nil {
		return classifyStripeError("expire checkout session", err)
	}
	return nil
}

func stripeLine(name string, unitPrice, quantity int64) *stripe.CheckoutSessionLineItemParams {
	return &stripe.CheckoutSessionLineItemParams{
		Quantity: stripe.Int64(max(quantity, 1)),
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(stripeCurrency),
			UnitAmount: stripe.Int64(unitPrice * stripeMinorUnits),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(name),
			},
		},
	}
}

// classifyStripeError marks 4xx responses other than 429 as rejected.
func classifyStripeError(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		code := se.HTTPStatusCode
		if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
			return fmt.Errorf("%w: stripe: %s: %s", payment.ErrGatewayRejected, op, se.Msg)
		}
	}
	return fmt.Errorf("stripe: %s: %w", op, err)
}
