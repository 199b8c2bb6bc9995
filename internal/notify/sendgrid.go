package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridMailer delivers mail through the SendGrid v3 API.
type SendGridMailer struct {
	client   *sendgrid.Client
	from     string
	fromName string
}

func NewSendGridMailer(apiKey, from, fromName string) (*SendGridMailer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("sendgrid api key is empty")
	}
	if from == "" {
		return nil, fmt.Errorf("from address is empty")
	}
	return &SendGridMailer{client: sendgrid.NewSendClient(apiKey), from: from, fromName: fromName}, nil
}

func (m *SendGridMailer) Send(ctx context.Context, to, subject, text, html string) error {
	msg := mail.NewSingleEmail(mail.NewEmail(m.fromName, m.from), subject, mail.NewEmail("", to), text, html)
	resp, err := m.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send failed: status=%d body=%s", resp.StatusCode, resp.Body)
	}
	log.Printf("[sendgrid] mail sent: status=%d to=%s subject=%s", resp.StatusCode, to, subject)
	return nil
}

// LogMailer writes messages to the log instead of sending them. Used when no
// SendGrid key is configured.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to, subject, text, _ string) error {
	log.Printf("[mail] to=%s subject=%q\n%s", to, subject, text)
	return nil
}
