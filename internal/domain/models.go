package domain

type Category struct {
	ID        string `db:"id" json:"id"`
	Slug      string `db:"slug" json:"slug"`
	Name      string `db:"name" json:"name"`
	CreatedAt string `db:"created_at" json:"createdAt"`
	UpdatedAt string `db:"updated_at" json:"updatedAt,omitempty"`
}

const (
	ProductActive   = "active"
	ProductInactive = "inactive"
)

// Product prices are tax-exclusive whole pesos.
type Product struct {
	ID          string `db:"id" json:"id"`
	CategoryID  string `db:"category_id" json:"categoryId"`
	SKU         string `db:"sku" json:"sku"`
	Slug        string `db:"slug" json:"slug"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
	BasePrice   int64  `db:"base_price" json:"basePrice"`
	OfferPrice  *int64 `db:"offer_price" json:"offerPrice,omitempty"`
	Stock       int    `db:"stock" json:"stock"`
	Status      string `db:"status" json:"status"`
	ImagesJSON  string `db:"images_json" json:"-"`
	CreatedAt   string `db:"created_at" json:"createdAt"`
	UpdatedAt   string `db:"updated_at" json:"updatedAt,omitempty"`
}

func (p Product) IsActive() bool { return p.Status == ProductActive }

type Variant struct {
	ID            string `db:"id" json:"id"`
	ProductID     string `db:"product_id" json:"productId"`
	SKU           string `db:"sku" json:"sku"`
	Name          string `db:"name" json:"name"`
	PriceModifier int64  `db:"price_modifier" json:"priceModifier"`
	PriceOverride *int64 `db:"price_override" json:"priceOverride,omitempty"`
	Stock         int    `db:"stock" json:"stock"`
	CreatedAt     string `db:"created_at" json:"createdAt"`
	UpdatedAt     string `db:"updated_at" json:"updatedAt,omitempty"`
}

// StockTarget names the counter a stock mutation applies to: the variant when
// one is selected, the product otherwise.
type StockTarget struct {
	ProductID string
	VariantID string
}

func (t StockTarget) IsVariant() bool { return t.VariantID != "" }

func (t StockTarget) String() string {
	if t.IsVariant() {
		return "product " + t.ProductID + " variant " + t.VariantID
	}
	return "product " + t.ProductID
}

type CartLine struct {
	ID        string `db:"id" json:"id"`
	Owner     Owner  `db:"-" json:"-"`
	OwnerKind string `db:"owner_kind" json:"-"`
	OwnerID   string `db:"owner_id" json:"-"`
	ProductID string `db:"product_id" json:"productId"`
	VariantID string `db:"variant_id" json:"variantId,omitempty"`
	Qty       int    `db:"qty" json:"qty"`
	CreatedAt string `db:"created_at" json:"createdAt"`
	UpdatedAt string `db:"updated_at" json:"updatedAt,omitempty"`
}

func (l CartLine) Target() StockTarget {
	return StockTarget{ProductID: l.ProductID, VariantID: l.VariantID}
}

type Availability struct {
	Status string `json:"status"` // IN_STOCK | LOW_STOCK | OUT_OF_STOCK
	Qty    int    `json:"qty"`
}
