package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"

	"github.com/example/digital-storefront/internal/domain/event"
	"github.com/example/digital-storefront/internal/domain/order"
	"github.com/example/digital-storefront/internal/email"
	"github.com/example/digital-storefront/internal/support"
)

// Mailer delivers customer and support emails.
type Mailer interface {
	SendOrderConfirmation(to string, o order.OrderPlaced) error
	SendSupportTicket(to string, t support.Ticket) error
}

// Alerter posts short admin alerts.
type Alerter interface {
	SendMessage(ctx context.Context, text string) error
}

// Handler processes storefront events for sending notifications
type Handler struct {
	mailer       Mailer
	alerter      Alerter
	supportEmail string
	logger       *zap.Logger
}

// NewHandler creates a new notification handler. mailer and alerter may be nil.
func NewHandler(mailer Mailer, alerter Alerter, supportEmail string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		mailer:       mailer,
		alerter:      alerter,
		supportEmail: supportEmail,
		logger:       logger.Named("notifier"),
	}
}

// HandleEvent processes an event from Kafka
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var evt event.Event
	if err := json.Unmarshal(value, &evt); err != nil {
		h.logger.Error("failed to unmarshal event", zap.ByteString("key", key), zap.Error(err))
		return err
	}
	return h.Handle(ctx, evt)
}

// Handle dispatches a decoded event. Unknown event types are ignored.
func (h *Handler) Handle(ctx context.Context, evt event.Event) error {
	switch evt.EventType {
	case order.EventOrderPlaced:
		return h.handleOrderPlaced(ctx, evt)
	case support.EventTicketSubmitted:
		return h.handleTicketSubmitted(ctx, evt)
	default:
		return nil
	}
}

func (h *Handler) handleOrderPlaced(ctx context.Context, evt event.Event) error {
	var e order.OrderPlaced
	if err := evt.Decode(&e); err != nil {
		h.logger.Error("failed to unmarshal OrderPlaced event", zap.String("event_id", evt.ID), zap.Error(err))
		return err
	}

	log := h.logger.With(zap.String("order_id", e.OrderID), zap.String("transaction_id", e.TransactionID))
	log.Info("processing OrderPlaced event")

	var errs []error
	if h.mailer != nil && e.CustomerEmail != "" {
		if err := h.mailer.SendOrderConfirmation(e.CustomerEmail, e); err != nil {
			log.Error("failed to send order confirmation", zap.Error(err))
			errs = append(errs, fmt.Errorf("order email: %w", err))
		} else {
			log.Info("order confirmation email sent")
		}
	}
	if h.alerter != nil {
		if err := h.alerter.SendMessage(ctx, orderAlert(e)); err != nil {
			log.Error("failed to send order alert", zap.Error(err))
			errs = append(errs, fmt.Errorf("order alert: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (h *Handler) handleTicketSubmitted(ctx context.Context, evt event.Event) error {
	var t support.Ticket
	if err := evt.Decode(&t); err != nil {
		h.logger.Error("failed to unmarshal TicketSubmitted event", zap.String("event_id", evt.ID), zap.Error(err))
		return err
	}

	log := h.logger.With(zap.String("ticket_id", t.ID))
	log.Info("processing TicketSubmitted event")

	var errs []error
	if h.mailer != nil && h.supportEmail != "" {
		if err := h.mailer.SendSupportTicket(h.supportEmail, t); err != nil {
			log.Error("failed to forward ticket", zap.Error(err))
			errs = append(errs, fmt.Errorf("ticket email: %w", err))
		}
	}
	if h.alerter != nil {
		if err := h.alerter.SendMessage(ctx, ticketAlert(t)); err != nil {
			log.Error("failed to send ticket alert", zap.Error(err))
			errs = append(errs, fmt.Errorf("ticket alert: %w", err))
		}
	}
	return errors.Join(errs...)
}

func orderAlert(e order.OrderPlaced) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Pesanan baru</b> %s\n", html.EscapeString(e.OrderID))
	fmt.Fprintf(&b, "Metode: %s\n", html.EscapeString(e.Method))
	for _, item := range e.Items {
		fmt.Fprintf(&b, "• %s %s x%d\n", html.EscapeString(item.Title), html.EscapeString(item.Tier), item.Quantity)
	}
	fmt.Fprintf(&b, "Total: <b>%s</b>", email.FormatRupiah(e.Total))
	return b.String()
}

// ticketAlert uses ticket text as is; it was sanitized on submission.
func ticketAlert(t support.Ticket) string {
	return fmt.Sprintf("<b>Tiket baru</b> %s\nDari: %s (%s)\nPerihal: %s\n\n%s",
		t.ID, t.Name, html.EscapeString(t.Email), t.Subject, t.Message)
}
