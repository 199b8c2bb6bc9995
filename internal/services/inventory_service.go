package services

import (
	"context"
	"time"

	"autospa/internal/domain"
	"autospa/internal/repos"
)

// lowStockAt is the count from which an item reads IN_STOCK.
const lowStockAt = 5

var timeNow = time.Now

type InventoryService struct {
	store *repos.Store
}

func NewInventoryService(store *repos.Store) *InventoryService {
	return &InventoryService{store: store}
}

// availability converts qty into IN_STOCK / LOW_STOCK / OUT_OF_STOCK.
func availability(qty int) domain.Availability {
	status := "OUT_OF_STOCK"
	switch {
	case qty >= lowStockAt:
		status = "IN_STOCK"
	case qty > 0:
		status = "LOW_STOCK"
	}
	return domain.Availability{Status: status, Qty: qty}
}

// CheckAvailability reports the stock of a product or variant. Unknown
// targets read as out of stock.
func (s *InventoryService) CheckAvailability(ctx context.Context, t domain.StockTarget) (domain.Availability, error) {
	qty, err := s.store.Inventory.Qty(ctx, t)
	if domain.IsNotFound(err) {
		return availability(0), nil
	}
	if err != nil {
		return domain.Availability{}, err
	}
	return availability(qty), nil
}

func (s *InventoryService) SetStock(ctx context.Context, t domain.StockTarget, qty int) error {
	return s.store.Inventory.Set(ctx, t, qty)
}

func (s *InventoryService) ListAll(ctx context.Context) ([]repos.InventoryRow, error) {
	return s.store.Inventory.ListAll(ctx)
}

func (s *InventoryService) LowStock(ctx context.Context, threshold int) ([]repos.InventoryRow, error) {
	if threshold <= 0 {
		threshold = lowStockAt
	}
	return s.store.Inventory.LowStock(ctx, threshold)
}
