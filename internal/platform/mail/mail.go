// Package mail sends transactional email over SMTP.
package mail

import (
	"fmt"

	gomail "gopkg.in/gomail.v2"

	"github.com/cafeteria-hr/service_layer/internal/config"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
	HTML    bool
}

// Sender delivers messages. The worker is the only caller; the API process
// enqueues send_email tasks instead of sending inline.
type Sender interface {
	Enabled() bool
	Send(msg Message) error
}

// SMTPSender delivers through a configured SMTP relay.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender builds a sender from configuration.
func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   from,
	}
}

// Enabled reports that mail actually leaves the process.
func (s *SMTPSender) Enabled() bool { return true }

// Send delivers one message.
func (s *SMTPSender) Send(msg Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.HTML {
		m.SetBody("text/html", msg.Body)
	} else {
		m.SetBody("text/plain", msg.Body)
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}

// NoopSender drops messages. Used in development when SMTP is not
// configured.
type NoopSender struct{}

func (NoopSender) Enabled() bool      { return false }
func (NoopSender) Send(Message) error { return nil }
