// Package notify sends order emails. Sends are best-effort: callers enqueue on
// a Dispatcher after commit and never see delivery errors.
package notify

import (
	"bytes"
	"context"
	"fmt"

	"autospa/internal/domain"
)

// Notifier delivers customer-facing order messages.
type Notifier interface {
	SendOrderConfirmation(ctx context.Context, recipient string, o domain.Order) error
	SendStatusUpdate(ctx context.Context, recipient string, o domain.Order, status domain.OrderStatus) error
}

// Mailer is the transport an EmailNotifier hands finished messages to.
type Mailer interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

// EmailNotifier renders the order templates and mails them.
type EmailNotifier struct {
	mailer Mailer
	views  *Views
}

func NewEmailNotifier(m Mailer, v *Views) *EmailNotifier {
	return &EmailNotifier{mailer: m, views: v}
}

func (n *EmailNotifier) SendOrderConfirmation(ctx context.Context, recipient string, o domain.Order) error {
	subject := fmt.Sprintf("Confirmación de tu pedido %s", o.Number)
	return n.send(ctx, recipient, subject, "order_confirmation", orderView(o, ""))
}

func (n *EmailNotifier) SendStatusUpdate(ctx context.Context, recipient string, o domain.Order, status domain.OrderStatus) error {
	v := orderView(o, status)
	subject := fmt.Sprintf("Tu pedido %s está %s", o.Number, v.StatusLabel)
	return n.send(ctx, recipient, subject, "status_update", v)
}

func (n *EmailNotifier) send(ctx context.Context, to, subject, tmpl string, v view) error {
	if to == "" {
		return fmt.Errorf("notify %s: empty recipient", tmpl)
	}
	var html bytes.Buffer
	if err := n.views.Render(&html, tmpl, v); err != nil {
		return fmt.Errorf("render %s: %w", tmpl, err)
	}
	return n.mailer.Send(ctx, to, subject, v.Text(), html.String())
}
