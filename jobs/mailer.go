package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"
)

// Mailer sends a plain-text message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer relays through an unauthenticated SMTP server such as Mailpit or
// a local MTA, upgrading to STARTTLS when the server offers it.
type SMTPMailer struct {
	host string
	port int
	from string
}

// NewSMTPMailer constructs an SMTPMailer.
func NewSMTPMailer(host string, port int, from string) *SMTPMailer {
	return &SMTPMailer{host: host, port: port, from: from}
}

// Send delivers the message, giving up when ctx is done.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg, err := m.message(to, subject, body)
	if err != nil {
		return err
	}
	client, err := mail.NewClient(m.host,
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithPort(m.port),
	)
	if err != nil {
		return fmt.Errorf("mailer: client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mailer: send to %s: %w", to, err)
	}
	return nil
}

// message builds the MIME message. Headers are RFC 2047 encoded, so display
// names in subjects survive any charset.
func (m *SMTPMailer) message(to, subject, body string) (*mail.Msg, error) {
	if strings.ContainsAny(subject, "\r\n") {
		return nil, fmt.Errorf("mailer: line break in subject")
	}
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("mailer: from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("mailer: to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

var _ Mailer = (*SMTPMailer)(nil)
