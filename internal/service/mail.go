package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Notifier delivers a plain text message to a single recipient
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

type SMTPNotifier struct {
	dialer *gomail.Dialer
	from   string
}

type SMTPOpts struct {
	Host     string
	Port     int
	Username string
	Password string
	// Sender address, defaults to Username
	From string
}

func NewSMTPNotifier(o SMTPOpts) (*SMTPNotifier, error) {
	if o.Host == "" {
		return nil, errors.New("no mail host provided")
	}

	if o.From == "" {
		o.From = o.Username
	}

	if o.From == "" {
		return nil, errors.New("no mail sender address provided")
	}

	return &SMTPNotifier{
		dialer: gomail.NewDialer(o.Host, o.Port, o.Username, o.Password),
		from:   o.From,
	}, nil
}

func (n *SMTPNotifier) Send(_ context.Context, to, subject, body string) error {
	if to == "" || to == n.from {
		return errors.New("invalid email address")
	}

	m := gomail.NewMessage()

	m.SetHeader("From", n.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	return n.dialer.DialAndSend(m)
}

// ConsoleNotifier writes messages to the log instead of sending them. Used
// when no mail host is configured.
type ConsoleNotifier struct{}

func (ConsoleNotifier) Send(_ context.Context, to, subject, body string) error {
	zap.L().Info("Outgoing mail",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", body))

	return nil
}
