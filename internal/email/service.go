package email

import (
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service handles email sending via SMTP
type Service struct {
	host string
	port string
	from string
	send sendFunc
}

func NewService(host, port, from string) *Service {
	return &Service{
		host: host,
		port: port,
		from: from,
		send: smtp.SendMail,
	}
}

// SendOrderConfirmation sends an order confirmation email
func (s *Service) SendOrderConfirmation(to string, c Confirmation) error {
	body, err := BuildOrderConfirmationBody(c)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Confirmation de commande n°%s", shortID(c.OrderID))
	return s.deliver(to, subject, body)
}

// SendStatusUpdate tells the customer their order changed status
func (s *Service) SendStatusUpdate(to string, u StatusUpdate) error {
	body, err := BuildStatusUpdateBody(u)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Commande n°%s : %s", shortID(u.OrderID), u.Label)
	return s.deliver(to, subject, body)
}

func (s *Service) deliver(to, subject, body string) error {
	if strings.ContainsAny(to, "\r\n") {
		return fmt.Errorf("invalid recipient %q", to)
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, mime.QEncoding.Encode("utf-8", subject), body)
	return s.send(net.JoinHostPort(s.host, s.port), nil, s.from, []string{to}, []byte(msg))
}

func shortID(orderID string) string {
	if len(orderID) > 8 {
		return orderID[:8]
	}
	return orderID
}
