package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"stockledger/server/internal/events"
	"stockledger/server/internal/models"
	"stockledger/server/internal/services"
	"stockledger/server/internal/utils"

	"gorm.io/gorm"
)

func TestConfirmOrderCreatesOneEntryPerLine(t *testing.T) {
	f := newFixture(t)
	x := f.product(t, "Flour", 2, 0)
	y := f.product(t, "Cheese", 3, 0)
	order := f.order(t,
		services.PurchaseOrderItemInput{ProductID: x.ID, Quantity: 10, UnitPrice: 2},
		services.PurchaseOrderItemInput{ProductID: y.ID, Quantity: 5, UnitPrice: 3},
	)
	if order.TotalAmount != 35 {
		t.Fatalf("TotalAmount = %v, want 35", order.TotalAmount)
	}

	res := f.confirm(t, order.ID)
	if res.EntriesCreated != 2 || res.DuplicateActivation {
		t.Fatalf("first confirmation: entries=%d duplicate=%v", res.EntriesCreated, res.DuplicateActivation)
	}
	if res.PreviousStatus != models.PurchaseOrderStatusPending || !res.Order.IsConfirmed() {
		t.Fatalf("unexpected statuses %s -> %s", res.PreviousStatus, res.Order.Status)
	}
	if res.Order.ConfirmedAt == nil {
		t.Fatal("ConfirmedAt should be set")
	}

	entries := f.orderEntries(t, order.ID)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	totals := map[string]float64{}
	for _, e := range entries {
		if e.Direction != models.MovementIn {
			t.Fatalf("entry direction = %s", e.Direction)
		}
		if !e.MovementDate.Equal(order.OrderDate) {
			t.Fatalf("movement date %v, want order date %v", e.MovementDate, order.OrderDate)
		}
		if e.TotalCost == nil {
			t.Fatal("order entry without total cost")
		}
		totals[e.ProductID] = *e.TotalCost
	}
	if totals[x.ID] != 20 || totals[y.ID] != 15 {
		t.Fatalf("totals = %v, want 20 and 15", totals)
	}

	// same confirmation again
	again := f.confirm(t, order.ID)
	if again.EntriesCreated != 0 {
		t.Fatalf("re-confirmation created %d entries", again.EntriesCreated)
	}
	if got := len(f.orderEntries(t, order.ID)); got != 2 {
		t.Fatalf("entry count after re-confirmation = %d, want 2", got)
	}

	if got := len(f.events.OfType(events.PurchaseOrderStatusChanged)); got != 2 {
		t.Fatalf("status events = %d, want 2", got)
	}
	if got := len(f.events.OfType(events.StockMovementCreated)); got != 2 {
		t.Fatalf("movement events = %d, want 2", got)
	}
}

func TestReconfirmAfterCancelIsDuplicateActivation(t *testing.T) {
	f := newFixture(t)
	x := f.product(t, "Flour", 2, 0)
	order := f.order(t, services.PurchaseOrderItemInput{ProductID: x.ID, Quantity: 10, UnitPrice: 2})
	ctx := context.Background()

	f.confirm(t, order.ID)
	if _, err := f.orders.UpdateStatus(ctx, order.ID, services.StatusTransitionInput{Status: models.PurchaseOrderStatusCancelled}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := len(f.orderEntries(t, order.ID)); got != 1 {
		t.Fatalf("cancelling a confirmed order changed entries to %d", got)
	}

	res := f.confirm(t, order.ID)
	if !res.DuplicateActivation || res.EntriesCreated != 0 {
		t.Fatalf("expected duplicate activation, got %+v", res)
	}
	if !res.Order.IsConfirmed() {
		t.Fatalf("status = %s, want confirmed", res.Order.Status)
	}
	if got := len(f.orderEntries(t, order.ID)); got != 1 {
		t.Fatalf("entry count = %d, want 1", got)
	}
}

func TestConcurrentConfirmationWritesEntriesOnce(t *testing.T) {
	f := newFixture(t)
	x := f.product(t, "Flour", 2, 0)
	y := f.product(t, "Cheese", 3, 0)
	order := f.order(t,
		services.PurchaseOrderItemInput{ProductID: x.ID, Quantity: 10, UnitPrice: 2},
		services.PurchaseOrderItemInput{ProductID: y.ID, Quantity: 5, UnitPrice: 3},
	)

	const attempts = 5
	var wg sync.WaitGroup
	results := make([]*services.StatusTransitionResult, attempts)
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.orders.UpdateStatus(context.Background(), order.ID, services.StatusTransitionInput{
				Status: models.PurchaseOrderStatusConfirmed,
			})
		}(i)
	}
	wg.Wait()

	created := 0
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("attempt %d failed: %v", i, errs[i])
		}
		created += results[i].EntriesCreated
	}
	if created != 2 {
		t.Fatalf("entries created across attempts = %d, want 2", created)
	}
	if got := len(f.orderEntries(t, order.ID)); got != 2 {
		t.Fatalf("ledger holds %d order entries, want 2", got)
	}
}

func TestCancelPendingOrderWritesNothing(t *testing.T) {
	f := newFixture(t)
	x := f.product(t, "Flour", 2, 0)
	order := f.order(t, services.PurchaseOrderItemInput{ProductID: x.ID, Quantity: 10, UnitPrice: 2})

	res, err := f.orders.UpdateStatus(context.Background(), order.ID, services.StatusTransitionInput{
		Status: models.PurchaseOrderStatusCancelled,
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if res.EntriesCreated != 0 || !res.Order.IsCancelled() {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := len(f.orderEntries(t, order.ID)); got != 0 {
		t.Fatalf("cancel created %d entries", got)
	}
}

func TestConfirmValidatesBeforeWriting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty := f.order(t)
	_, err := f.orders.UpdateStatus(ctx, empty.ID, services.StatusTransitionInput{Status: models.PurchaseOrderStatusConfirmed})
	var verr *services.ValidationError
	if !errors.As(err, &verr) || verr.Fields["items"] == "" {
		t.Fatalf("expected items validation error, got %v", err)
	}
	got, err := f.orders.GetPurchaseOrder(ctx, empty.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsPending() {
		t.Fatalf("status = %s, want pending", got.Status)
	}

	_, err = f.orders.UpdateStatus(ctx, empty.ID, services.StatusTransitionInput{Status: "shipped"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("unknown status: got %v", err)
	}

	_, err = f.orders.UpdateStatus(ctx, "missing", services.StatusTransitionInput{Status: models.PurchaseOrderStatusConfirmed})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("missing order: got %v", err)
	}
}

func TestCreateOrderRejectsMalformedLines(t *testing.T) {
	f := newFixture(t)
	x := f.product(t, "Flour", 2, 0)

	_, err := f.orders.CreatePurchaseOrder(context.Background(), services.PurchaseOrderInput{
		Supplier: "Metro",
		Items: []services.PurchaseOrderItemInput{
			{ProductID: x.ID, Quantity: 0, UnitPrice: 2},
			{ProductID: x.ID, Quantity: 1, UnitPrice: -1},
		},
	})
	var verr *services.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if verr.Fields["items[0].quantity"] == "" || verr.Fields["items[1].unit_price"] == "" {
		t.Fatalf("fields = %v", verr.Fields)
	}

	_, err = f.orders.CreatePurchaseOrder(context.Background(), services.PurchaseOrderInput{
		Supplier: "Metro",
		Items:    []services.PurchaseOrderItemInput{{ProductID: "nope", Quantity: 1, UnitPrice: 1}},
	})
	if !errors.As(err, &verr) || verr.Fields["items[0].product_id"] == "" {
		t.Fatalf("unknown product: got %v", err)
	}

	_, err = f.orders.CreatePurchaseOrder(context.Background(), services.PurchaseOrderInput{})
	if !errors.As(err, &verr) || verr.Fields["Supplier"] != "required" {
		t.Fatalf("missing supplier: got %v", err)
	}
}

func TestFailedInsertRollsBackStatus(t *testing.T) {
	f := newFixture(t)
	x := f.product(t, "Flour", 2, 0)
	y := f.product(t, "Cheese", 3, 0)
	order := f.order(t,
		services.PurchaseOrderItemInput{ProductID: x.ID, Quantity: 10, UnitPrice: 2},
		services.PurchaseOrderItemInput{ProductID: y.ID, Quantity: 5, UnitPrice: 3},
	)

	inserts := 0
	err := f.db.Callback().Create().Before("gorm:create").Register("test:fail_second_movement", func(db *gorm.DB) {
		if db.Statement.Table == "stock_movements" {
			inserts++
			if inserts == 2 {
				db.AddError(errors.New("disk full"))
			}
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	_, err = f.orders.UpdateStatus(context.Background(), order.ID, services.StatusTransitionInput{
		Status: models.PurchaseOrderStatusConfirmed,
	})
	if err == nil {
		t.Fatal("expected the transition to fail")
	}

	got, err := f.orders.GetPurchaseOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsPending() || got.ConfirmedAt != nil {
		t.Fatalf("order kept status %s after rollback", got.Status)
	}
	var count int64
	f.db.Unscoped().Model(&models.StockMovement{}).Count(&count)
	if count != 0 {
		t.Fatalf("rollback left %d movements", count)
	}
}

type busyLocker struct{}

func (busyLocker) Lock(_ context.Context, orderID string) (func(), error) {
	return nil, errors.Join(services.ErrConflict, errors.New("held by another instance"))
}

func TestLockContentionIsConflict(t *testing.T) {
	f := newFixture(t)
	x := f.product(t, "Flour", 2, 0)
	order := f.order(t, services.PurchaseOrderItemInput{ProductID: x.ID, Quantity: 10, UnitPrice: 2})

	locked := services.NewPurchaseOrderService(f.db, utils.DiscardLogger(), events.Noop{}, busyLocker{})
	_, err := locked.UpdateStatus(context.Background(), order.ID, services.StatusTransitionInput{
		Status: models.PurchaseOrderStatusConfirmed,
	})
	if !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if got := len(f.orderEntries(t, order.ID)); got != 0 {
		t.Fatalf("entries written despite lock: %d", got)
	}
}

func TestUpdateOrderFreezesItemsOnceConfirmed(t *testing.T) {
	f := newFixture(t)
	x := f.product(t, "Flour", 2, 0)
	ctx := context.Background()
	order := f.order(t, services.PurchaseOrderItemInput{ProductID: x.ID, Quantity: 10, UnitPrice: 2})

	updated, err := f.orders.UpdatePurchaseOrder(ctx, order.ID, services.PurchaseOrderInput{
		Supplier: "Selgros",
		Items:    []services.PurchaseOrderItemInput{{ProductID: x.ID, Quantity: 4, UnitPrice: 2.5}},
	})
	if err != nil {
		t.Fatalf("update pending order: %v", err)
	}
	if updated.Supplier != "Selgros" || len(updated.Items) != 1 || updated.TotalAmount != 10 {
		t.Fatalf("unexpected update result %+v", updated)
	}
	if !updated.IsPending() {
		t.Fatalf("update changed status to %s", updated.Status)
	}

	f.confirm(t, order.ID)

	_, err = f.orders.UpdatePurchaseOrder(ctx, order.ID, services.PurchaseOrderInput{
		Supplier: "Selgros",
		Items:    []services.PurchaseOrderItemInput{{ProductID: x.ID, Quantity: 40, UnitPrice: 2.5}},
	})
	if !errors.Is(err, services.ErrConflict) {
		t.Fatalf("changing lines of a confirmed order: got %v", err)
	}

	notes, err := f.orders.UpdatePurchaseOrder(ctx, order.ID, services.PurchaseOrderInput{Supplier: "Selgros", Notes: "paid"})
	if err != nil {
		t.Fatalf("notes update on confirmed order: %v", err)
	}
	if notes.Notes != "paid" || !notes.IsConfirmed() {
		t.Fatalf("unexpected %+v", notes)
	}
}

func TestListPurchaseOrdersFilters(t *testing.T) {
	f := newFixture(t)
	x := f.product(t, "Flour", 2, 0)
	a := f.order(t, services.PurchaseOrderItemInput{ProductID: x.ID, Quantity: 1, UnitPrice: 2})
	f.order(t, services.PurchaseOrderItemInput{ProductID: x.ID, Quantity: 2, UnitPrice: 2})
	f.confirm(t, a.ID)

	confirmed, err := f.orders.ListPurchaseOrders(context.Background(), services.PurchaseOrderFilter{Status: models.PurchaseOrderStatusConfirmed})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(confirmed) != 1 || confirmed[0].ID != a.ID {
		t.Fatalf("confirmed filter returned %d orders", len(confirmed))
	}
	if _, err := f.orders.ListPurchaseOrders(context.Background(), services.PurchaseOrderFilter{Status: "bogus"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("bogus status: got %v", err)
	}
}
