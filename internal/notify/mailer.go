package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mailgun/mailgun-go/v4"
)

// Notifier delivers messages to User B. SMS delivery is a logging stub;
// email goes through Mailgun when configured.
type Notifier interface {
	SendEmail(ctx context.Context, to, subject, body string) error
	SendSMS(ctx context.Context, to, message string) error
}

type MailgunNotifier struct {
	mg     *mailgun.MailgunImpl
	domain string
}

func NewMailgunNotifier(domain, apiKey string) *MailgunNotifier {
	return &MailgunNotifier{
		mg:     mailgun.NewMailgun(domain, apiKey),
		domain: domain,
	}
}

func (n *MailgunNotifier) SendEmail(ctx context.Context, to, subject, body string) error {
	sender := fmt.Sprintf("Find A Meeting Spot <noreply@%s>", n.domain)
	message := n.mg.NewMessage(sender, subject, body, to)

	_, id, err := n.mg.Send(ctx, message)
	if err != nil {
		slog.ErrorContext(ctx, "Mailgun send failed", "to", to, "error", err)
		return err
	}

	slog.InfoContext(ctx, "Email sent via Mailgun", "to", to, "message_id", id)
	return nil
}

func (n *MailgunNotifier) SendSMS(ctx context.Context, to, message string) error {
	// TODO: wire a Twilio sender once an account exists; until then log only.
	slog.InfoContext(ctx, "SMS delivery stubbed", "to", to, "message", message)
	return nil
}

// LogNotifier is the development fallback: deliveries are logged, never sent.
type LogNotifier struct{}

func (LogNotifier) SendEmail(ctx context.Context, to, subject, body string) error {
	slog.InfoContext(ctx, "Development mode: would send email", "to", to, "subject", subject, "body", body)
	return nil
}

func (LogNotifier) SendSMS(ctx context.Context, to, message string) error {
	slog.InfoContext(ctx, "Development mode: would send SMS", "to", to, "message", message)
	return nil
}
