package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"stockledger/server/internal/models"
	"stockledger/server/internal/services"
)

func TestStocktakeWindowsByPreviousCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	x, err := f.catalog.CreateProduct(ctx, services.ProductInput{Name: "Oil", UnitPrice: 10, CurrentQuantity: 5})
	if err != nil {
		t.Fatalf("product: %v", err)
	}

	d1 := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 4, 3, 10, 0, 0, 0, time.UTC)
	count1 := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	count2 := time.Date(2026, 4, 4, 0, 0, 0, 0, time.UTC)

	for _, m := range []models.StockMovement{
		{ProductID: x.ID, Direction: models.MovementIn, Source: models.MovementSourceAdjustment, Quantity: 10, MovementDate: d1},
		{ProductID: x.ID, Direction: models.MovementOut, Source: models.MovementSourceWaste, Quantity: 3, MovementDate: d1},
		{ProductID: x.ID, Direction: models.MovementIn, Source: models.MovementSourceAdjustment, Quantity: 4, MovementDate: d2},
		{ProductID: x.ID, Direction: models.MovementOut, Source: models.MovementSourceSale, Quantity: 1, MovementDate: d2},
	} {
		m := m
		if _, err := f.ledger.Append(ctx, &m); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	first, err := f.stocktakes.CreateTheoreticalSnapshot(ctx, x.ID, services.StocktakeInput{ActualQuantity: 11, SnapshotDate: &count1})
	if err != nil {
		t.Fatalf("first stocktake: %v", err)
	}
	// baseline 5 from the catalog, only the d1 movements fall before count1
	if first.InitialQuantity != 5 || first.InQuantity != 10 || first.OutQuantity != 3 {
		t.Fatalf("first window %+v", first)
	}
	if first.TheoreticalQuantity != 12 || first.Variance != 1 || first.VarianceValue != 10 {
		t.Fatalf("first result theoretical=%v variance=%v value=%v", first.TheoreticalQuantity, first.Variance, first.VarianceValue)
	}

	product, _ := f.catalog.GetProduct(ctx, x.ID)
	if product.CurrentQuantity != 11 {
		t.Fatalf("catalog quantity = %v, want 11", product.CurrentQuantity)
	}

	second, err := f.stocktakes.CreateTheoreticalSnapshot(ctx, x.ID, services.StocktakeInput{ActualQuantity: 15, SnapshotDate: &count2})
	if err != nil {
		t.Fatalf("second stocktake: %v", err)
	}
	if second.InitialQuantity != 11 || second.InQuantity != 4 || second.OutQuantity != 1 {
		t.Fatalf("second window %+v", second)
	}
	// 11 + 4 - 1 = 14 theoretical, 15 counted: a surplus
	if second.Variance != -1 {
		t.Fatalf("second variance = %v, want -1", second.Variance)
	}

	list, err := f.stocktakes.List(ctx, x.ID)
	if err != nil || len(list) != 2 || list[0].ID != second.ID {
		t.Fatalf("list = %+v, %v", list, err)
	}

	if _, err := f.stocktakes.CreateTheoreticalSnapshot(ctx, x.ID, services.StocktakeInput{ActualQuantity: 1, SnapshotDate: &count1}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("backdated stocktake: got %v", err)
	}
	if _, err := f.stocktakes.CreateTheoreticalSnapshot(ctx, x.ID, services.StocktakeInput{ActualQuantity: -2}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("negative count: got %v", err)
	}
	if _, err := f.stocktakes.CreateTheoreticalSnapshot(ctx, "missing", services.StocktakeInput{ActualQuantity: 1}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("missing product: got %v", err)
	}
}

func TestFirstStocktakeLeavesLaterMovementsForTheNextCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	x, err := f.catalog.CreateProduct(ctx, services.ProductInput{Name: "Rice", UnitPrice: 2, CurrentQuantity: 5})
	if err != nil {
		t.Fatalf("product: %v", err)
	}

	count1 := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	count2 := time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)
	for _, m := range []models.StockMovement{
		{ProductID: x.ID, Direction: models.MovementIn, Source: models.MovementSourceAdjustment, Quantity: 10, MovementDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ProductID: x.ID, Direction: models.MovementIn, Source: models.MovementSourceAdjustment, Quantity: 7, MovementDate: time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC)},
	} {
		m := m
		if _, err := f.ledger.Append(ctx, &m); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	first, err := f.stocktakes.CreateTheoreticalSnapshot(ctx, x.ID, services.StocktakeInput{ActualQuantity: 15, SnapshotDate: &count1})
	if err != nil {
		t.Fatalf("first stocktake: %v", err)
	}
	if first.InitialQuantity != 5 || first.InQuantity != 10 || first.TheoreticalQuantity != 15 {
		t.Fatalf("first window %+v, want baseline 5 and only the January receipt", first)
	}

	second, err := f.stocktakes.CreateTheoreticalSnapshot(ctx, x.ID, services.StocktakeInput{ActualQuantity: 22, SnapshotDate: &count2})
	if err != nil {
		t.Fatalf("second stocktake: %v", err)
	}
	if second.InQuantity != 7 || second.TheoreticalQuantity != 22 || second.Variance != 0 {
		t.Fatalf("second window %+v, want the May receipt counted once", second)
	}
}
