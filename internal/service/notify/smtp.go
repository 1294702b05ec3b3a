package notify

import (
	"context"
	"fmt"

	gomail "gopkg.in/gomail.v2"
)

// SMTPSender delivers alert emails through an SMTP relay.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

var _ EmailSender = (*SMTPSender)(nil)

// NewSMTPSender constructs an SMTPSender.
func NewSMTPSender(host string, port int, user, pass, from string) *SMTPSender {
	if from == "" {
		from = user
	}
	return &SMTPSender{dialer: gomail.NewDialer(host, port, user, pass), from: from}
}

// Send delivers one HTML message addressed to all recipients.
func (s *SMTPSender) Send(_ context.Context, recipients []string, subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", recipients...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
