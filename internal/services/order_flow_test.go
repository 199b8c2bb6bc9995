package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"autospa/internal/domain"
	"autospa/internal/notify"
	"autospa/internal/repos"
	"autospa/internal/services"
)

func memdb(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func addProduct(t *testing.T, db *sqlx.DB, id string, base int64, stock int) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO products(id, sku, slug, name, base_price, stock, status, created_at)
		VALUES(?,?,?,?,?,?,'active',?)`, id, "SKU-"+strings.ToUpper(id), "slug-"+id, "Product "+id, base, stock, repos.Timestamp(time.Now()))
	if err != nil {
		t.Fatal(err)
	}
}

type recorder struct {
	mu     sync.Mutex
	placed []domain.Order
	status []domain.OrderStatus
}

func (r *recorder) OrderPlaced(o domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.placed = append(r.placed, o)
}

func (r *recorder) StatusChanged(_ domain.Order, s domain.OrderStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = append(r.status, s)
}

type fixture struct {
	db     *sqlx.DB
	store  *repos.Store
	carts  *services.CartService
	orders *services.OrderService
	rec    *recorder
}

func newFixture(t *testing.T) *fixture {
	db := memdb(t)
	store := repos.NewStore(db)
	rec := &recorder{}
	return &fixture{
		db: db, store: store, rec: rec,
		carts:  services.NewCartService(store),
		orders: services.NewOrderService(store, rec, "TEST"),
	}
}

func checkout() services.CheckoutInput {
	return services.CheckoutInput{
		Contact: services.Contact{Name: "Ana Pérez", Email: "ana@example.cl", RUT: "76.086.428-5"},
		Shipping: domain.ShippingAddress{
			FullName: "Ana Pérez", Phone: "+56 9 1234 5678", Street: "Av. Apoquindo", Number: "3000",
			Commune: "Las Condes", City: "Santiago", Region: "Metropolitana",
		},
	}
}

func stockOf(t *testing.T, f *fixture, target domain.StockTarget) int {
	t.Helper()
	q, err := f.store.Inventory.Qty(context.Background(), target)
	if err != nil {
		t.Fatal(err)
	}
	return q
}

func TestOrderFlow_AddCartCheckout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	addProduct(t, f.db, "a", 1000, 5)
	owner := domain.GuestOwner("sid-1")

	if err := f.carts.Add(ctx, owner, "a", "", 2); err != nil {
		t.Fatal(err)
	}
	cv, err := f.carts.View(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if len(cv.Lines) != 1 || cv.Lines[0].UnitPriceWithTax != 1190 || cv.Total != 2380 {
		t.Fatalf("bad cart view: %+v", cv)
	}

	o, err := f.orders.Place(ctx, owner, checkout())
	if err != nil {
		t.Fatal(err)
	}
	if o.Subtotal != 2000 || o.Tax != 380 || o.ShippingCost != 0 || o.Total != 2380 {
		t.Fatalf("totals = %d/%d/%d/%d", o.Subtotal, o.Tax, o.ShippingCost, o.Total)
	}
	if o.Status != domain.OrderPending || o.PaymentStatus != domain.PaymentPending {
		t.Fatalf("status = %s/%s", o.Status, o.PaymentStatus)
	}
	if !strings.HasPrefix(o.Number, "TEST-") || !strings.HasSuffix(o.Number, "-000001") {
		t.Fatalf("order number = %s", o.Number)
	}
	if o.CustomerRUT != "76.086.428-5" || o.Shipping.Phone != "+56912345678" || o.SessionID != "sid-1" || o.UserID != nil {
		t.Fatalf("customer data not normalized: %+v", o)
	}
	if got := stockOf(t, f, domain.StockTarget{ProductID: "a"}); got != 3 {
		t.Fatalf("stock = %d, want 3", got)
	}
	if lines, _ := f.store.Carts.FindLines(ctx, owner); len(lines) != 0 {
		t.Fatalf("cart not cleared: %d lines", len(lines))
	}
	if len(f.rec.placed) != 1 || f.rec.placed[0].ID != o.ID {
		t.Fatal("confirmation not queued")
	}

	stored, err := f.store.Orders.FindByID(ctx, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored.Items) != 1 || stored.Items[0].UnitPrice != 1000 || stored.Items[0].LineTotal != 2000 {
		t.Fatalf("stored items: %+v", stored.Items)
	}
}

func TestPlaceRejectsEmptyCartAndMissingAddress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := domain.GuestOwner("sid-empty")

	if _, err := f.orders.Place(ctx, owner, checkout()); !domain.IsValidation(err) {
		t.Fatalf("empty cart: want validation error, got %v", err)
	}

	addProduct(t, f.db, "a", 1000, 5)
	_ = f.carts.Add(ctx, owner, "a", "", 1)
	in := checkout()
	in.Shipping.Commune = "  "
	_, err := f.orders.Place(ctx, owner, in)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != "shipping.commune" {
		t.Fatalf("want commune validation error, got %v", err)
	}

	in = checkout()
	in.Contact.RUT = "76.086.428-4"
	if _, err := f.orders.Place(ctx, owner, in); !domain.IsValidation(err) {
		t.Fatalf("bad RUT accepted: %v", err)
	}
	if got := stockOf(t, f, domain.StockTarget{ProductID: "a"}); got != 5 {
		t.Fatalf("rejected checkout touched stock: %d", got)
	}
}

func TestPlaceFailsFastOnStaleLines(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	addProduct(t, f.db, "a", 1000, 5)
	addProduct(t, f.db, "b", 500, 5)
	owner := domain.UserOwner("u-cliente")
	_ = f.carts.Add(ctx, owner, "a", "", 1)
	_ = f.carts.Add(ctx, owner, "b", "", 1)

	if _, err := f.db.Exec(`UPDATE products SET status = 'inactive' WHERE id = 'b'`); err != nil {
		t.Fatal(err)
	}
	_, err := f.orders.Place(ctx, owner, checkout())
	if !domain.IsConflict(err, domain.ConflictStaleCart) {
		t.Fatalf("want stale cart conflict, got %v", err)
	}
	lines, _ := f.store.Carts.FindLines(ctx, owner)
	if len(lines) != 1 || lines[0].ProductID != "a" {
		t.Fatalf("only the valid line should remain: %+v", lines)
	}
	if got := stockOf(t, f, domain.StockTarget{ProductID: "a"}); got != 5 {
		t.Fatalf("rejected checkout touched stock: %d", got)
	}

	o, err := f.orders.Place(ctx, owner, checkout())
	if err != nil {
		t.Fatalf("retry should succeed: %v", err)
	}
	if o.UserID == nil || *o.UserID != "u-cliente" || o.Total != 1190 {
		t.Fatalf("retry order: %+v", o)
	}
}

func TestPlaceRemovesLinesForDeletedProductsAndVariants(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := domain.GuestOwner("sid-2")
	_ = f.store.Carts.Add(ctx, owner, "p-gone", "", 1)
	_ = f.store.Carts.Add(ctx, owner, "p-microfibra", "v-deleted", 1)
	_ = f.store.Carts.Add(ctx, owner, "p-shampoo-1l", "", 1)

	_, err := f.orders.Place(ctx, owner, checkout())
	if !domain.IsConflict(err, domain.ConflictStaleCart) || !strings.Contains(err.Error(), "2 item(s)") {
		t.Fatalf("got %v", err)
	}
	if lines, _ := f.store.Carts.FindLines(ctx, owner); len(lines) != 1 {
		t.Fatalf("lines left = %d", len(lines))
	}
}

func TestPlaceRejectsInsufficientStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	addProduct(t, f.db, "a", 1000, 5)
	owner := domain.GuestOwner("sid-3")
	_ = f.carts.Add(ctx, owner, "a", "", 4)
	_, _ = f.db.Exec(`UPDATE products SET stock = 3 WHERE id = 'a'`)

	_, err := f.orders.Place(ctx, owner, checkout())
	if !domain.IsConflict(err, domain.ConflictInsufficientStock) || !strings.Contains(err.Error(), "Product a") {
		t.Fatalf("want insufficient stock naming the product, got %v", err)
	}
	if lines, _ := f.store.Carts.FindLines(ctx, owner); len(lines) != 1 {
		t.Fatal("cart must be kept on rejection")
	}
}

func TestUnitPricePrecedence(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	override := int64(4000)
	if _, err := f.db.Exec(`UPDATE product_variants SET price_override = ? WHERE id = 'v-microfibra-60'`, override); err != nil {
		t.Fatal(err)
	}
	owner := domain.GuestOwner("sid-4")
	_ = f.carts.Add(ctx, owner, "p-microfibra", "v-microfibra-60", 1) // override 4000
	_ = f.carts.Add(ctx, owner, "p-microfibra", "v-microfibra-40", 1) // base 3490
	_ = f.carts.Add(ctx, owner, "p-aplicador", "", 1)                 // offer 8990

	cv, _ := f.carts.View(ctx, owner)
	if cv.Subtotal != (3490+2500)+3490+9990 {
		t.Fatalf("display subtotal uses base+modifier, got %d", cv.Subtotal)
	}

	o, err := f.orders.Place(ctx, owner, checkout())
	if err != nil {
		t.Fatal(err)
	}
	prices := map[string]int64{}
	for _, it := range o.Items {
		prices[it.SKU] = it.UnitPrice
	}
	if prices["ACC-MIC-60"] != 4000 || prices["ACC-MIC-40"] != 3490 || prices["ACC-APL-2"] != 8990 {
		t.Fatalf("unit prices: %v", prices)
	}
	if got := stockOf(t, f, domain.StockTarget{ProductID: "p-microfibra", VariantID: "v-microfibra-60"}); got != 19 {
		t.Fatalf("variant stock = %d, want 19", got)
	}
}

func TestOrderSnapshotSurvivesCatalogEdits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	addProduct(t, f.db, "a", 1000, 5)
	owner := domain.GuestOwner("sid-5")
	_ = f.carts.Add(ctx, owner, "a", "", 1)
	o, err := f.orders.Place(ctx, owner, checkout())
	if err != nil {
		t.Fatal(err)
	}

	catalog := services.NewCatalogService(f.store)
	if _, err := catalog.UpdateProduct(ctx, "a", services.ProductInput{SKU: "NEW-SKU", Name: "Renamed", BasePrice: 9999}); err != nil {
		t.Fatal(err)
	}
	got, err := f.orders.Get(ctx, services.Viewer{SessionID: "sid-5"}, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	it := got.Items[0]
	if it.Name != "Product a" || it.SKU != "SKU-A" || it.UnitPrice != 1000 || got.Total != 1190 {
		t.Fatalf("snapshot changed: %+v", it)
	}
}

func TestCancelRestoresStockOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	addProduct(t, f.db, "a", 1000, 10)
	owner := domain.GuestOwner("sid-6")
	_ = f.carts.Add(ctx, owner, "a", "", 2)
	o, err := f.orders.Place(ctx, owner, checkout())
	if err != nil {
		t.Fatal(err)
	}
	target := domain.StockTarget{ProductID: "a"}
	if got := stockOf(t, f, target); got != 8 {
		t.Fatalf("stock after order = %d", got)
	}

	viewer := services.Viewer{SessionID: "sid-6"}
	if _, err := f.orders.Cancel(ctx, viewer, o.ID); err != nil {
		t.Fatal(err)
	}
	if got := stockOf(t, f, target); got != 10 {
		t.Fatalf("stock after cancel = %d", got)
	}
	if _, err := f.orders.UpdateStatus(ctx, o.ID, domain.OrderCancelled); !domain.IsConflict(err, domain.ConflictTransition) {
		t.Fatalf("second cancel: want transition conflict, got %v", err)
	}
	if got := stockOf(t, f, target); got != 10 {
		t.Fatalf("stock restored twice: %d", got)
	}
	if len(f.rec.status) != 1 || f.rec.status[0] != domain.OrderCancelled {
		t.Fatalf("status events: %v", f.rec.status)
	}
}

func TestCustomerCancelOnlyWhilePending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	addProduct(t, f.db, "a", 1000, 10)
	owner := domain.UserOwner("u-cliente")
	_ = f.carts.Add(ctx, owner, "a", "", 1)
	o, _ := f.orders.Place(ctx, owner, checkout())

	if _, err := f.orders.UpdateStatus(ctx, o.ID, domain.OrderProcessing); err != nil {
		t.Fatal(err)
	}
	if _, err := f.orders.Cancel(ctx, services.Viewer{UserID: "u-cliente"}, o.ID); !domain.IsConflict(err, domain.ConflictTransition) {
		t.Fatalf("customer cancel of processing order: %v", err)
	}
	if _, err := f.orders.Cancel(ctx, services.Viewer{UserID: "u-admin", Admin: true}, o.ID); err != nil {
		t.Fatalf("admin cancel: %v", err)
	}
	if _, err := f.orders.UpdateStatus(ctx, o.ID, domain.OrderShipped); !domain.IsConflict(err, domain.ConflictTransition) {
		t.Fatalf("cancelled is terminal: %v", err)
	}
}

func TestOrderVisibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	addProduct(t, f.db, "a", 1000, 10)
	owner := domain.GuestOwner("sid-7")
	_ = f.carts.Add(ctx, owner, "a", "", 1)
	o, _ := f.orders.Place(ctx, owner, checkout())

	if _, err := f.orders.Get(ctx, services.Viewer{SessionID: "sid-other"}, o.ID); !domain.IsAuthorization(err) {
		t.Fatalf("stranger saw order: %v", err)
	}
	if _, err := f.orders.Get(ctx, services.Viewer{UserID: "u-cliente"}, o.ID); !domain.IsAuthorization(err) {
		t.Fatalf("other user saw guest order: %v", err)
	}
	if _, err := f.orders.Get(ctx, services.Viewer{UserID: "u-admin", Admin: true}, o.ID); err != nil {
		t.Fatalf("admin: %v", err)
	}
	list, _ := f.orders.List(ctx, services.Viewer{SessionID: "sid-7"})
	if len(list) != 1 || list[0].Number != o.Number {
		t.Fatalf("guest history: %+v", list)
	}
}

func TestConcurrentOrdersNeverOversell(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	const stock, qty, shoppers = 10, 3, 8
	addProduct(t, f.db, "a", 1000, stock)
	for i := 0; i < shoppers; i++ {
		if err := f.carts.Add(ctx, domain.GuestOwner(sid(i)), "a", "", qty); err != nil {
			t.Fatal(err)
		}
	}

	var wg sync.WaitGroup
	errs := make([]error, shoppers)
	for i := 0; i < shoppers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.orders.Place(ctx, domain.GuestOwner(sid(i)), checkout())
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case !domain.IsConflict(err, domain.ConflictInsufficientStock):
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != stock/qty {
		t.Fatalf("%d orders succeeded, want %d", ok, stock/qty)
	}
	if got := stockOf(t, f, domain.StockTarget{ProductID: "a"}); got != stock-ok*qty {
		t.Fatalf("stock = %d", got)
	}
	var orders int
	_ = f.db.Get(&orders, `SELECT COUNT(*) FROM orders`)
	if orders != ok {
		t.Fatalf("%d orders persisted for %d successes", orders, ok)
	}
}

func sid(i int) string { return "sid-c" + string(rune('a'+i)) }

type brokenNotifier struct{}

func (brokenNotifier) SendOrderConfirmation(context.Context, string, domain.Order) error {
	return errors.New("mail provider unavailable")
}

func (brokenNotifier) SendStatusUpdate(context.Context, string, domain.Order, domain.OrderStatus) error {
	return errors.New("mail provider unavailable")
}

func TestNotificationFailureDoesNotFailCheckout(t *testing.T) {
	ctx := context.Background()
	db := memdb(t)
	store := repos.NewStore(db)
	d := notify.NewDispatcher(brokenNotifier{}, time.Second, 8)
	orders := services.NewOrderService(store, d, "ORD")
	carts := services.NewCartService(store)

	owner := domain.GuestOwner("sid-8")
	_ = carts.Add(ctx, owner, "p-shampoo-1l", "", 1)
	o, err := orders.Place(ctx, owner, checkout())
	if err != nil {
		t.Fatalf("checkout failed because of email: %v", err)
	}
	if _, err := orders.UpdateStatus(ctx, o.ID, domain.OrderProcessing); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if got, _ := store.Orders.FindByID(ctx, o.ID); got.Status != domain.OrderProcessing {
		t.Fatalf("status = %s", got.Status)
	}
}

// occupyNumbers stores placeholder orders holding today's first n numbers.
func occupyNumbers(t *testing.T, f *fixture, n int) {
	t.Helper()
	day := time.Now().Format("20060102")
	ts := repos.Timestamp(time.Now())
	for i := 1; i <= n; i++ {
		o := &domain.Order{
			ID:            fmt.Sprintf("held-%d", i),
			Number:        fmt.Sprintf("TEST-%s-%06d", day, i),
			Status:        domain.OrderPending,
			PaymentStatus: domain.PaymentPending,
			CreatedAt:     ts,
			Items:         []domain.OrderItem{},
		}
		if err := f.store.Orders.Create(context.Background(), o); err != nil {
			t.Fatal(err)
		}
	}
}

func TestPlaceRetriesOrderNumberCollision(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	addProduct(t, f.db, "a", 1000, 5)
	occupyNumbers(t, f, 2)
	owner := domain.GuestOwner("sid-num")
	_ = f.carts.Add(ctx, owner, "a", "", 1)

	o, err := f.orders.Place(ctx, owner, checkout())
	if err != nil {
		t.Fatalf("place after collisions: %v", err)
	}
	if !strings.HasSuffix(o.Number, "-000003") {
		t.Fatalf("number = %s, want the first free one", o.Number)
	}
	if got := stockOf(t, f, domain.StockTarget{ProductID: "a"}); got != 4 {
		t.Fatalf("stock = %d, want 4", got)
	}
}

func TestPlaceGivesUpAfterRepeatedCollisions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	addProduct(t, f.db, "a", 1000, 5)
	occupyNumbers(t, f, 5)
	owner := domain.GuestOwner("sid-num")
	_ = f.carts.Add(ctx, owner, "a", "", 2)

	_, err := f.orders.Place(ctx, owner, checkout())
	if !domain.IsConflict(err, domain.ConflictOrderNumber) {
		t.Fatalf("want duplicate order number conflict, got %v", err)
	}
	if got := stockOf(t, f, domain.StockTarget{ProductID: "a"}); got != 5 {
		t.Fatalf("stock = %d, want 5 after rollback", got)
	}
	if lines, _ := f.store.Carts.FindLines(ctx, owner); len(lines) != 1 || lines[0].Qty != 2 {
		t.Fatalf("cart must be kept, got %+v", lines)
	}
}

func TestCartTotalIsSumOfLineTotals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	// 1003 * 1.19 = 1193.57 per unit; tax on the 3-unit subtotal would round to 572.
	addProduct(t, f.db, "a", 1003, 10)
	addProduct(t, f.db, "b", 2000, 10)
	owner := domain.GuestOwner("sid-sum")
	_ = f.carts.Add(ctx, owner, "a", "", 3)
	_ = f.carts.Add(ctx, owner, "b", "", 1)

	cv, err := f.carts.View(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	var sum int64
	for _, l := range cv.Lines {
		sum += l.LineTotal
	}
	if sum != 3*1194+2380 || cv.Total != sum {
		t.Fatalf("total = %d, line totals = %d", cv.Total, sum)
	}
	if cv.Subtotal != 5009 || cv.Tax != cv.Total-cv.Subtotal {
		t.Fatalf("subtotal/tax = %d/%d", cv.Subtotal, cv.Tax)
	}
}
