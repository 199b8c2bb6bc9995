package notify

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"autospa/internal/domain"
)

type sentMail struct{ to, subject, text, html string }

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) Send(_ context.Context, to, subject, text, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to, subject, text, html})
	return nil
}

func sampleOrder() domain.Order {
	return domain.Order{
		ID: "o1", Number: "ORD-20250314-000001",
		CustomerName: "Ana <b>", CustomerEmail: "ana@example.cl",
		Shipping: domain.ShippingAddress{FullName: "Ana", Street: "Av. Apoquindo", Number: "3000",
			Commune: "Las Condes", Region: "RM", Phone: "+56912345678"},
		Items: []domain.OrderItem{
			{ProductID: "p1", SKU: "LAV-SHA-1L", Name: "Shampoo", Qty: 2, UnitPrice: 1000, LineTotal: 2000},
		},
		Subtotal: 2000, Tax: 380, Total: 2380,
		Status: domain.OrderPending, PaymentStatus: domain.PaymentPending,
	}
}

func TestCLP(t *testing.T) {
	cases := map[int64]string{0: "$0", 990: "$990", 2380: "$2.380", 11900: "$11.900", 1234567: "$1.234.567", -5000: "-$5.000"}
	for in, want := range cases {
		if got := CLP(in); got != want {
			t.Errorf("CLP(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestOrderConfirmationRendersTotals(t *testing.T) {
	views, err := NewViews()
	if err != nil {
		t.Fatal(err)
	}
	m := &fakeMailer{}
	n := NewEmailNotifier(m, views)
	if err := n.SendOrderConfirmation(context.Background(), "ana@example.cl", sampleOrder()); err != nil {
		t.Fatal(err)
	}
	if len(m.sent) != 1 {
		t.Fatalf("sent %d mails", len(m.sent))
	}
	got := m.sent[0]
	if !strings.Contains(got.subject, "ORD-20250314-000001") {
		t.Fatalf("subject: %q", got.subject)
	}
	for _, want := range []string{"$2.380", "$380", "LAV-SHA-1L", "Las Condes", "Ana &lt;b&gt;"} {
		if !strings.Contains(got.html, want) {
			t.Errorf("html body missing %q", want)
		}
	}
	if !strings.Contains(got.text, "Total: $2.380") {
		t.Errorf("text body: %s", got.text)
	}
}

func TestStatusUpdateUsesNewStatus(t *testing.T) {
	views, err := NewViews()
	if err != nil {
		t.Fatal(err)
	}
	m := &fakeMailer{}
	if err := NewEmailNotifier(m, views).SendStatusUpdate(context.Background(), "ana@example.cl", sampleOrder(), domain.OrderCancelled); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(m.sent[0].subject, "cancelado") || !strings.Contains(m.sent[0].html, "devolución") {
		t.Fatalf("unexpected mail: %+v", m.sent[0])
	}
}

func TestEmptyRecipientFails(t *testing.T) {
	views, _ := NewViews()
	err := NewEmailNotifier(&fakeMailer{}, views).SendOrderConfirmation(context.Background(), "", sampleOrder())
	if err == nil {
		t.Fatal("expected error for empty recipient")
	}
}

type flakyNotifier struct {
	mu    sync.Mutex
	calls int
	block bool
}

func (f *flakyNotifier) SendOrderConfirmation(ctx context.Context, _ string, _ domain.Order) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return errors.New("smtp down")
}

func (f *flakyNotifier) SendStatusUpdate(context.Context, string, domain.Order, domain.OrderStatus) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return nil
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(prev) })
	return &buf
}

func TestDispatcherLogsAndSwallowsFailures(t *testing.T) {
	buf := captureLog(t)
	fn := &flakyNotifier{}
	d := NewDispatcher(fn, time.Second, 4)

	d.OrderPlaced(sampleOrder())
	d.StatusChanged(sampleOrder(), domain.OrderShipped)
	if err := d.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fn.calls != 2 {
		t.Fatalf("calls = %d", fn.calls)
	}
	out := buf.String()
	if !strings.Contains(out, `"action":"notify.failed"`) || !strings.Contains(out, "smtp down") {
		t.Fatalf("failure not logged: %s", out)
	}
	if !strings.Contains(out, `"action":"notify.sent"`) {
		t.Fatalf("success not logged: %s", out)
	}
}

func TestDispatcherTimesOutSlowSends(t *testing.T) {
	buf := captureLog(t)
	d := NewDispatcher(&flakyNotifier{block: true}, 20*time.Millisecond, 1)
	d.OrderPlaced(sampleOrder())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !strings.Contains(buf.String(), "deadline exceeded") {
		t.Fatalf("timeout not logged: %s", buf.String())
	}
}

func TestDispatcherDropsAfterClose(t *testing.T) {
	buf := captureLog(t)
	fn := &flakyNotifier{}
	d := NewDispatcher(fn, time.Second, 1)
	_ = d.Close(context.Background())

	d.OrderPlaced(sampleOrder())
	if fn.calls != 0 || !strings.Contains(buf.String(), `"reason":"closed"`) {
		t.Fatalf("calls=%d log=%s", fn.calls, buf.String())
	}
}
