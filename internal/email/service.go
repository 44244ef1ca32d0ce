package email

import (
	"fmt"
	"net/smtp"

	"github.com/example/digital-storefront/internal/domain/order"
	"github.com/example/digital-storefront/internal/support"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service handles email sending via SMTP
type Service struct {
	host     string
	port     string
	from     string
	sendMail sendFunc
}

// NewService creates a new email service
func NewService(host, port, from string) *Service {
	return &Service{
		host:     host,
		port:     port,
		from:     from,
		sendMail: smtp.SendMail,
	}
}

// SendOrderConfirmation sends the receipt for a paid order
func (s *Service) SendOrderConfirmation(to string, o order.OrderPlaced) error {
	subject := fmt.Sprintf("Pembayaran diterima - Pesanan %s", shortID(o.OrderID))
	return s.send(to, subject, BuildOrderConfirmationBody(o))
}

// SendSupportTicket forwards a ticket to the support inbox
func (s *Service) SendSupportTicket(to string, t support.Ticket) error {
	subject := fmt.Sprintf("[Tiket %s] %s", shortID(t.ID), t.Subject)
	return s.send(to, subject, BuildSupportTicketBody(t))
}

func (s *Service) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nReply-To: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, s.from, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return s.sendMail(addr, nil, s.from, []string{to}, []byte(msg))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
