package domain

import "strings"

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered, OrderCancelled},
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	st := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled:
		return st, true
	}
	return "", false
}

func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	st := PaymentStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return st, true
	}
	return "", false
}

// CanTransition reports whether an order may move from one status to another.
// Delivered and cancelled are terminal.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	for _, next := range orderTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type ShippingAddress struct {
	FullName string `json:"fullName" db:"ship_full_name"`
	Phone    string `json:"phone" db:"ship_phone"`
	Street   string `json:"street" db:"ship_street"`
	Number   string `json:"number" db:"ship_number"`
	Apt      string `json:"apt,omitempty" db:"ship_apt"`
	Commune  string `json:"commune" db:"ship_commune"`
	City     string `json:"city" db:"ship_city"`
	Region   string `json:"region" db:"ship_region"`
	Notes    string `json:"notes,omitempty" db:"ship_notes"`
}

// OrderItem is frozen at purchase time. UnitPrice is tax-exclusive.
type OrderItem struct {
	OrderID     string `db:"order_id" json:"-"`
	Position    int    `db:"position" json:"-"`
	ProductID   string `db:"product_id" json:"productId"`
	VariantID   string `db:"variant_id" json:"variantId,omitempty"`
	SKU         string `db:"sku" json:"sku"`
	Name        string `db:"name" json:"name"`
	VariantName string `db:"variant_name" json:"variantName,omitempty"`
	Qty         int    `db:"qty" json:"qty"`
	UnitPrice   int64  `db:"unit_price" json:"unitPrice"`
	LineTotal   int64  `db:"line_total" json:"lineTotal"`
}

func (it OrderItem) Target() StockTarget {
	return StockTarget{ProductID: it.ProductID, VariantID: it.VariantID}
}

type Order struct {
	ID            string          `db:"id" json:"id"`
	Number        string          `db:"order_number" json:"number"`
	UserID        *string         `db:"user_id" json:"userId,omitempty"`
	SessionID     string          `db:"session_id" json:"-"`
	CustomerName  string          `db:"customer_name" json:"customerName"`
	CustomerEmail string          `db:"customer_email" json:"customerEmail"`
	CustomerRUT   string          `db:"customer_rut" json:"customerRut,omitempty"`
	Shipping      ShippingAddress `db:"-" json:"shipping"`
	Subtotal      int64           `db:"subtotal" json:"subtotal"`
	Tax           int64           `db:"tax" json:"tax"`
	ShippingCost  int64           `db:"shipping_cost" json:"shippingCost"`
	Total         int64           `db:"total" json:"total"`
	Status        OrderStatus     `db:"status" json:"status"`
	PaymentStatus PaymentStatus   `db:"payment_status" json:"paymentStatus"`
	CreatedAt     string          `db:"created_at" json:"createdAt"`
	UpdatedAt     string          `db:"updated_at" json:"updatedAt,omitempty"`
	Items         []OrderItem     `db:"-" json:"items"`
}

// Owner returns who placed the order.
func (o Order) Owner() Owner {
	if o.UserID != nil && *o.UserID != "" {
		return UserOwner(*o.UserID)
	}
	return OwnerFrom(OwnerGuest, o.SessionID)
}

// OwnedBy reports whether the requesting identity placed the order.
func (o Order) OwnedBy(userID, sessionID string) bool {
	if o.UserID != nil && *o.UserID != "" {
		return userID != "" && userID == *o.UserID
	}
	return sessionID != "" && sessionID == o.SessionID
}

// OrderSummary is the list projection used by history and admin pages.
type OrderSummary struct {
	ID            string        `db:"id" json:"id"`
	Number        string        `db:"order_number" json:"number"`
	CustomerName  string        `db:"customer_name" json:"customerName"`
	CustomerEmail string        `db:"customer_email" json:"customerEmail"`
	Total         int64         `db:"total" json:"total"`
	Status        OrderStatus   `db:"status" json:"status"`
	PaymentStatus PaymentStatus `db:"payment_status" json:"paymentStatus"`
	CreatedAt     string        `db:"created_at" json:"createdAt"`
}
