package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/digital-storefront/internal/domain/event"
	"github.com/example/digital-storefront/internal/domain/order"
	"github.com/example/digital-storefront/internal/support"
)

// ============================================
// Test Helpers
// ============================================

type fakeMailer struct {
	orders    []string
	tickets   []string
	orderErr  error
	ticketErr error
}

func (m *fakeMailer) SendOrderConfirmation(to string, o order.OrderPlaced) error {
	m.orders = append(m.orders, to)
	return m.orderErr
}

func (m *fakeMailer) SendSupportTicket(to string, t support.Ticket) error {
	m.tickets = append(m.tickets, to)
	return m.ticketErr
}

type fakeAlerter struct {
	messages []string
	err      error
}

func (a *fakeAlerter) SendMessage(ctx context.Context, text string) error {
	a.messages = append(a.messages, text)
	return a.err
}

func encodeEvent(t *testing.T, aggregateType, eventType string, data any) []byte {
	t.Helper()
	evt, err := event.New("agg-1", aggregateType, eventType, data, time.Now())
	require.NoError(t, err)
	raw, err := json.Marshal(evt)
	require.NoError(t, err)
	return raw
}

func testOrderPlaced(customerEmail string) order.OrderPlaced {
	return order.OrderPlaced{
		OrderID:       "ord-1",
		TransactionID: "T-1",
		CustomerEmail: customerEmail,
		Method:        "QRIS",
		Items:         []order.OrderItem{{ProductRef: "wifi-install", Title: "WiFi", Tier: "Basic", Quantity: 1, UnitPrice: 150000}},
		Subtotal:      150000,
		Fee:           1800,
		Total:         151800,
	}
}

// ============================================
// OrderPlaced Tests
// ============================================

func TestHandleEvent_OrderPlacedSendsEmailAndAlert(t *testing.T) {
	mailer := &fakeMailer{}
	alerter := &fakeAlerter{}
	h := NewHandler(mailer, alerter, "cs@example.com", nil)

	value := encodeEvent(t, order.AggregateType, order.EventOrderPlaced, testOrderPlaced("budi@example.com"))
	require.NoError(t, h.HandleEvent(context.Background(), []byte("ord-1"), value))

	assert.Equal(t, []string{"budi@example.com"}, mailer.orders)
	require.Len(t, alerter.messages, 1)
	assert.Contains(t, alerter.messages[0], "ord-1")
	assert.Contains(t, alerter.messages[0], "Rp 151.800")
}

func TestHandleEvent_OrderWithoutEmailOnlyAlerts(t *testing.T) {
	mailer := &fakeMailer{}
	alerter := &fakeAlerter{}
	h := NewHandler(mailer, alerter, "", nil)

	value := encodeEvent(t, order.AggregateType, order.EventOrderPlaced, testOrderPlaced(""))
	require.NoError(t, h.HandleEvent(context.Background(), nil, value))

	assert.Empty(t, mailer.orders)
	assert.Len(t, alerter.messages, 1)
}

func TestHandleEvent_EmailFailureStillAlerts(t *testing.T) {
	mailer := &fakeMailer{orderErr: errors.New("smtp down")}
	alerter := &fakeAlerter{}
	h := NewHandler(mailer, alerter, "", nil)

	value := encodeEvent(t, order.AggregateType, order.EventOrderPlaced, testOrderPlaced("budi@example.com"))
	err := h.HandleEvent(context.Background(), nil, value)

	assert.ErrorContains(t, err, "smtp down")
	assert.Len(t, alerter.messages, 1)
}

// ============================================
// TicketSubmitted Tests
// ============================================

func TestHandleEvent_TicketSubmitted(t *testing.T) {
	mailer := &fakeMailer{}
	alerter := &fakeAlerter{}
	h := NewHandler(mailer, alerter, "cs@example.com", nil)

	ticket := support.Ticket{ID: "tk-1", Name: "Budi", Email: "budi@example.com", Subject: "Jadwal", Message: "Kapan"}
	value := encodeEvent(t, support.AggregateType, support.EventTicketSubmitted, ticket)
	require.NoError(t, h.HandleEvent(context.Background(), nil, value))

	assert.Equal(t, []string{"cs@example.com"}, mailer.tickets)
	require.Len(t, alerter.messages, 1)
	assert.Contains(t, alerter.messages[0], "Jadwal")
}

func TestHandleEvent_AlertFailureIsReturned(t *testing.T) {
	h := NewHandler(nil, &fakeAlerter{err: errors.New("telegram down")}, "", nil)

	ticket := support.Ticket{ID: "tk-1", Subject: "Jadwal"}
	value := encodeEvent(t, support.AggregateType, support.EventTicketSubmitted, ticket)
	err := h.HandleEvent(context.Background(), nil, value)
	assert.ErrorContains(t, err, "telegram down")
}

// ============================================
// Other Events
// ============================================

func TestHandleEvent_IgnoresUnknownEvents(t *testing.T) {
	mailer := &fakeMailer{}
	alerter := &fakeAlerter{}
	h := NewHandler(mailer, alerter, "cs@example.com", nil)

	value := encodeEvent(t, "Cart", "ItemAddedToCart", map[string]string{})
	require.NoError(t, h.HandleEvent(context.Background(), nil, value))
	assert.Empty(t, mailer.orders)
	assert.Empty(t, alerter.messages)
}

func TestHandleEvent_InvalidJSON(t *testing.T) {
	h := NewHandler(nil, nil, "", nil)

	err := h.HandleEvent(context.Background(), nil, []byte("not json"))
	assert.Error(t, err)
}
