package email

import (
	"context"
	"fmt"
	"log"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGrid implements Mailer over the SendGrid v3 API.
type SendGrid struct {
	client *sendgrid.Client
	config Config
}

// NewSendGrid returns a SendGrid-backed mailer.
func NewSendGrid(config Config) *SendGrid {
	return &SendGrid{
		client: sendgrid.NewSendClient(config.SendGridAPIKey),
		config: config,
	}
}

// Send dispatches one message. Provider errors are surfaced to the caller;
// no retries happen here.
func (s *SendGrid) Send(_ context.Context, to, subject, body string) error {
	from := mail.NewEmail(s.config.FromName, s.config.FromAddress)
	message := mail.NewSingleEmail(from, subject, mail.NewEmail("", to), body, body)

	response, err := s.client.Send(message)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("send email: sendgrid status %d", response.StatusCode)
	}
	return nil
}

// LogMailer implements Mailer by logging instead of sending. It backs
// deployments without an API key, such as local development.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to, subject, _ string) error {
	log.Printf("email to %s suppressed (no mail provider configured): %s", to, subject)
	return nil
}
