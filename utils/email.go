package utils

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// ErrEmailDisabled is returned when no mail provider key is configured.
var ErrEmailDisabled = errors.New("SENDGRID_API_KEY is not set in environment variables")

// EmailSender delivers a single message
type EmailSender interface {
	SendEmail(ctx context.Context, toName, toEmail, subject, textContent, htmlContent string) error
}

// SendGridSender sends email using SendGrid
type SendGridSender struct {
	apiKey   string
	fromName string
	fromAddr string
}

func NewSendGridSender(apiKey, fromName, fromAddr string) *SendGridSender {
	return &SendGridSender{apiKey: apiKey, fromName: fromName, fromAddr: fromAddr}
}

// SendEmail sends an email using SendGrid
func (s *SendGridSender) SendEmail(ctx context.Context, toName, toEmail, subject, textContent, htmlContent string) error {
	if s.apiKey == "" {
		return ErrEmailDisabled
	}

	from := mail.NewEmail(s.fromName, s.fromAddr)
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, textContent, htmlContent)
	client := sendgrid.NewSendClient(s.apiKey)

	response, err := client.SendWithContext(ctx, message)
	if err != nil {
		log.Printf("Error sending email to %s: %v", toEmail, err)
		return err
	}

	if response.StatusCode >= 400 {
		log.Printf("SendGrid API Error: Status Code %d, Body: %s", response.StatusCode, response.Body)
		return fmt.Errorf("failed to send email, status code: %d", response.StatusCode)
	}

	log.Printf("Email sent successfully to %s. Status Code: %d", toEmail, response.StatusCode)
	return nil
}

// RetryingSender retries a failed send a fixed number of times, waiting
// Backoff*attempt between attempts.
type RetryingSender struct {
	Next     EmailSender
	Attempts int
	Backoff  time.Duration
}

func NewRetryingSender(next EmailSender, attempts int) *RetryingSender {
	if attempts < 1 {
		attempts = 1
	}
	return &RetryingSender{Next: next, Attempts: attempts, Backoff: time.Second}
}

func (s *RetryingSender) SendEmail(ctx context.Context, toName, toEmail, subject, textContent, htmlContent string) error {
	var lastErr error
	for attempt := 1; attempt <= s.Attempts; attempt++ {
		lastErr = s.Next.SendEmail(ctx, toName, toEmail, subject, textContent, htmlContent)
		if lastErr == nil {
			return nil
		}
		// A missing key will not fix itself between attempts.
		if errors.Is(lastErr, ErrEmailDisabled) {
			return lastErr
		}
		slog.Warn("email send failed", "to", toEmail, "attempt", attempt, "of", s.Attempts, "error", lastErr)

		if attempt < s.Attempts {
			select {
			case <-time.After(s.Backoff * time.Duration(attempt)):
			case <-ctx.Done():
				return fmt.Errorf("email send aborted after %d attempts: %w", attempt, ctx.Err())
			}
		}
	}
	return fmt.Errorf("failed to send email after %d attempts: %w", s.Attempts, lastErr)
}
