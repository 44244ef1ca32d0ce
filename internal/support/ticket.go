package support

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/example/digital-storefront/internal/domain/event"
)

const (
	AggregateType        = "Ticket"
	EventTicketSubmitted = "TicketSubmitted"

	maxNameLength    = 100
	maxSubjectLength = 200
	maxMessageLength = 5000
)

var ErrInvalidTicket = errors.New("invalid support ticket")

// Ticket is a customer support request relayed to the support inbox.
type Ticket struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id,omitempty"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Subject    string    `json:"subject"`
	Message    string    `json:"message"`
	OrderID    string    `json:"order_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Service struct {
	publisher Publisher
	policy    *bluemonday.Policy
	logger    *zap.Logger
	clock     func() time.Time
}

func NewService(publisher Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		publisher: publisher,
		policy:    bluemonday.StrictPolicy(),
		logger:    logger.Named("support"),
		clock:     time.Now,
	}
}

// Submit validates and sanitizes the ticket, then publishes TicketSubmitted.
// Without a publisher the ticket is only logged.
func (s *Service) Submit(ctx context.Context, t Ticket) (Ticket, error) {
	t = s.sanitize(t)
	if err := validate(t); err != nil {
		return Ticket{}, err
	}

	t.ID = uuid.New().String()
	t.CreatedAt = s.clock().UTC()

	if s.publisher == nil {
		s.logger.Warn("no publisher configured, ticket not relayed", zap.String("ticket_id", t.ID))
		return t, nil
	}

	evt, err := event.New(t.ID, AggregateType, EventTicketSubmitted, t, t.CreatedAt)
	if err != nil {
		return Ticket{}, err
	}
	if err := s.publisher.Publish(ctx, t.ID, evt); err != nil {
		return Ticket{}, fmt.Errorf("publish ticket: %w", err)
	}

	s.logger.Info("support ticket submitted",
		zap.String("ticket_id", t.ID),
		zap.String("customer_id", t.CustomerID),
	)
	return t, nil
}

func (s *Service) sanitize(t Ticket) Ticket {
	clean := func(v string) string {
		return strings.TrimSpace(s.policy.Sanitize(v))
	}
	t.Name = clean(t.Name)
	t.Email = strings.TrimSpace(t.Email)
	t.Subject = clean(t.Subject)
	t.Message = clean(t.Message)
	t.OrderID = clean(t.OrderID)
	return t
}

func validate(t Ticket) error {
	switch {
	case t.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidTicket)
	case utf8.RuneCountInString(t.Name) > maxNameLength:
		return fmt.Errorf("%w: name is too long", ErrInvalidTicket)
	case t.Email == "":
		return fmt.Errorf("%w: email is required", ErrInvalidTicket)
	case t.Subject == "":
		return fmt.Errorf("%w: subject is required", ErrInvalidTicket)
	case utf8.RuneCountInString(t.Subject) > maxSubjectLength:
		return fmt.Errorf("%w: subject is too long", ErrInvalidTicket)
	case t.Message == "":
		return fmt.Errorf("%w: message is required", ErrInvalidTicket)
	case utf8.RuneCountInString(t.Message) > maxMessageLength:
		return fmt.Errorf("%w: message is too long", ErrInvalidTicket)
	}
	addr, err := mail.ParseAddress(t.Email)
	if err != nil || addr.Address != t.Email {
		return fmt.Errorf("%w: email is invalid", ErrInvalidTicket)
	}
	return nil
}
