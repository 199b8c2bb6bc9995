package handlers

import (
	"autospa/internal/config"
	"autospa/internal/repos"
	"autospa/internal/services"
)

// Deps holds the services and the handlers built on them.
type Deps struct {
	Auth      *services.AuthService
	Catalog   *services.CatalogService
	Cart      *services.CartService
	Orders    *services.OrderService
	Inventory *services.InventoryService

	AuthHandler      *AuthHandler
	CategoryHandler  *CategoryHandler
	ProductHandler   *ProductHandler
	InventoryHandler *InventoryHandler
	CartHandler      *CartHandler
	OrderHandler     *OrderHandler
	AdminHandler     *AdminHandler
}

// NewDeps wires services over store. n receives order events after commit and
// may be nil.
func NewDeps(store *repos.Store, cfg config.Config, n services.Notifications) *Deps {
	catalogSvc := services.NewCatalogService(store)
	invSvc := services.NewInventoryService(store)
	cartSvc := services.NewCartService(store)
	orderSvc := services.NewOrderService(store, n, cfg.OrderPrefix)
	authSvc := services.NewAuthService(store, cartSvc, services.AuthConfig{
		AccessSecret:  cfg.JWTSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
	})

	return &Deps{
		Auth:      authSvc,
		Catalog:   catalogSvc,
		Cart:      cartSvc,
		Orders:    orderSvc,
		Inventory: invSvc,

		AuthHandler:      &AuthHandler{Auth: authSvc},
		CategoryHandler:  &CategoryHandler{Catalog: catalogSvc},
		ProductHandler:   &ProductHandler{Catalog: catalogSvc},
		InventoryHandler: &InventoryHandler{Inv: invSvc},
		CartHandler:      &CartHandler{Cart: cartSvc},
		OrderHandler:     &OrderHandler{Order: orderSvc},
		AdminHandler:     &AdminHandler{OrderSvc: orderSvc, Inv: invSvc, Auth: authSvc},
	}
}
