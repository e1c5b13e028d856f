// Package email provides the outbound mail capability used to deliver
// one-time passcodes.
package email

import "context"

// Mailer dispatches a single message to one recipient.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Config holds outbound email settings.
type Config struct {
	SendGridAPIKey string `env:"BLINDLOG_SENDGRID_API_KEY"`
	FromAddress    string `env:"BLINDLOG_EMAIL_FROM"      envDefault:"support@blindlog.me"`
	FromName       string `env:"BLINDLOG_EMAIL_FROM_NAME" envDefault:"Blindlog"`
}
