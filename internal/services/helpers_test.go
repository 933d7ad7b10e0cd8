package services_test

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"stockledger/server/internal/events"
	"stockledger/server/internal/models"
	"stockledger/server/internal/services"
	"stockledger/server/internal/utils"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory database. One connection keeps the
// data alive and serialises transactions the way row locks would.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type fixture struct {
	db         *gorm.DB
	events     *events.Recorder
	catalog    *services.CatalogService
	ledger     *services.LedgerService
	orders     *services.PurchaseOrderService
	outbound   *services.OutboundService
	snapshots  *services.SnapshotService
	variance   *services.VarianceService
	stocktakes *services.StocktakeService
	inputs     *services.InputsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	log := utils.DiscardLogger()
	rec := &events.Recorder{}
	return &fixture{
		db:         db,
		events:     rec,
		catalog:    services.NewCatalogService(db, log),
		ledger:     services.NewLedgerService(db, log, rec),
		orders:     services.NewPurchaseOrderService(db, log, rec, nil),
		outbound:   services.NewOutboundService(db, log),
		snapshots:  services.NewSnapshotService(db, log, rec),
		variance:   services.NewVarianceService(db, log),
		stocktakes: services.NewStocktakeService(db, log, rec),
		inputs:     services.NewInputsService(db),
	}
}

func (f *fixture) product(t *testing.T, name string, price, wastePercent float64) *models.Product {
	t.Helper()
	p, err := f.catalog.CreateProduct(context.Background(), services.ProductInput{
		Name:         name,
		Unit:         models.ProductUnitMass,
		UnitPrice:    price,
		WastePercent: wastePercent,
	})
	if err != nil {
		t.Fatalf("create product %s: %v", name, err)
	}
	return p
}

func (f *fixture) order(t *testing.T, items ...services.PurchaseOrderItemInput) *models.PurchaseOrder {
	t.Helper()
	date := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	o, err := f.orders.CreatePurchaseOrder(context.Background(), services.PurchaseOrderInput{
		Supplier:  "Metro",
		OrderDate: &date,
		Operator:  "anna",
		Items:     items,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

func (f *fixture) confirm(t *testing.T, orderID string) *services.StatusTransitionResult {
	t.Helper()
	res, err := f.orders.UpdateStatus(context.Background(), orderID, services.StatusTransitionInput{
		Status: models.PurchaseOrderStatusConfirmed,
	})
	if err != nil {
		t.Fatalf("confirm order: %v", err)
	}
	return res
}

func (f *fixture) orderEntries(t *testing.T, orderID string) []models.StockMovement {
	t.Helper()
	entries, err := f.ledger.ListMovements(context.Background(), services.MovementFilter{
		Source:            models.MovementSourceOrder,
		SourceReferenceID: orderID,
	})
	if err != nil {
		t.Fatalf("list order entries: %v", err)
	}
	return entries
}

func (f *fixture) waste(t *testing.T, productID string, qty float64, date time.Time) {
	t.Helper()
	if err := f.db.Create(&models.WasteRecord{ProductID: productID, Quantity: qty, Date: date}).Error; err != nil {
		t.Fatalf("create waste: %v", err)
	}
}

func productLine(productID string, qty float64) models.IngredientRef {
	return models.IngredientRef{Kind: models.IngredientKindProduct, ProductID: &productID, Quantity: qty}
}

func recipeLine(recipeID string, qty float64) models.IngredientRef {
	return models.IngredientRef{Kind: models.IngredientKindRecipe, SubRecipeID: &recipeID, Quantity: qty}
}

func (f *fixture) dish(t *testing.T, name string, sold float64, lines ...models.IngredientRef) *models.Dish {
	t.Helper()
	d := &models.Dish{Name: name, SoldCount: sold}
	for _, l := range lines {
		d.Ingredients = append(d.Ingredients, models.DishIngredient{IngredientRef: l})
	}
	if err := f.db.Create(d).Error; err != nil {
		t.Fatalf("create dish: %v", err)
	}
	return d
}

func (f *fixture) recipe(t *testing.T, name string, portion float64, lines ...models.IngredientRef) *models.Recipe {
	t.Helper()
	r := &models.Recipe{Name: name, PortionSize: portion}
	for _, l := range lines {
		r.Ingredients = append(r.Ingredients, models.RecipeIngredient{IngredientRef: l})
	}
	if err := f.db.Create(r).Error; err != nil {
		t.Fatalf("create recipe: %v", err)
	}
	return r
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func ptr[T any](v T) *T { return &v }
