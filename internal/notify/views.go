package notify

import (
	"embed"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strconv"
	"strings"

	html "github.com/gofiber/template/html/v2"

	"autospa/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// Views renders the embedded email bodies.
type Views struct{ engine *html.Engine }

func NewViews() (*Views, error) {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, err
	}
	engine := html.NewFileSystem(http.FS(sub), ".html")
	engine.AddFunc("clp", CLP)
	if err := engine.Load(); err != nil {
		return nil, fmt.Errorf("load email templates: %w", err)
	}
	return &Views{engine: engine}, nil
}

func (v *Views) Render(w io.Writer, name string, data any) error {
	return v.engine.Render(w, name, data)
}

// CLP formats whole pesos the Chilean way: $11.900.
func CLP(n int64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	s := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String()
}

var statusLabels = map[domain.OrderStatus]string{
	domain.OrderPending:    "pendiente",
	domain.OrderProcessing: "en preparación",
	domain.OrderShipped:    "en camino",
	domain.OrderDelivered:  "entregado",
	domain.OrderCancelled:  "cancelado",
}

type view struct {
	Order       domain.Order
	Status      domain.OrderStatus
	StatusLabel string
}

func orderView(o domain.Order, status domain.OrderStatus) view {
	if status == "" {
		status = o.Status
	}
	return view{Order: o, Status: status, StatusLabel: statusLabels[status]}
}

// Text is the plain-text alternative of the rendered HTML body.
func (v view) Text() string {
	o := v.Order
	var b strings.Builder
	fmt.Fprintf(&b, "Hola %s,\n\n", o.CustomerName)
	fmt.Fprintf(&b, "Pedido %s (%s)\n\n", o.Number, v.StatusLabel)
	for _, it := range o.Items {
		name := it.Name
		if it.VariantName != "" {
			name += " - " + it.VariantName
		}
		fmt.Fprintf(&b, "  %d x %s  %s\n", it.Qty, name, CLP(it.LineTotal))
	}
	fmt.Fprintf(&b, "\nSubtotal: %s\nIVA (19%%): %s\nDespacho: %s\nTotal: %s\n",
		CLP(o.Subtotal), CLP(o.Tax), CLP(o.ShippingCost), CLP(o.Total))
	return b.String()
}
