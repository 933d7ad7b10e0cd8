package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"stockledger/server/internal/models"
	"stockledger/server/internal/services"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
)

func TestOutboundSumsFourSources(t *testing.T) {
	f := newFixture(t)
	x := f.product(t, "Tomato", 1, 0)
	other := f.product(t, "Basil", 1, 0)
	ctx := context.Background()
	day := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, err := f.ledger.Append(ctx, &models.StockMovement{ProductID: x.ID, Direction: models.MovementOut, Source: models.MovementSourceSale, Quantity: 1.5, MovementDate: day}); err != nil {
		t.Fatalf("append sale: %v", err)
	}
	// adjustments are not outbound sales
	if _, err := f.ledger.Append(ctx, &models.StockMovement{ProductID: x.ID, Direction: models.MovementOut, Source: models.MovementSourceAdjustment, Quantity: 100, MovementDate: day}); err != nil {
		t.Fatalf("append adjustment: %v", err)
	}
	f.waste(t, x.ID, 2, day)
	f.waste(t, other.ID, 50, day)

	pizza := f.dish(t, "Margherita", 4, productLine(x.ID, 0.25), productLine(other.ID, 0.01))
	salad := f.dish(t, "Salad", 0, productLine(x.ID, 0.5))
	if err := f.db.Create(&models.PersonalMealRecord{DishID: salad.ID, Count: 2, Date: day}).Error; err != nil {
		t.Fatalf("meal: %v", err)
	}
	if err := f.db.Create(&models.PersonalMealRecord{DishID: pizza.ID, Count: 1, Date: day}).Error; err != nil {
		t.Fatalf("meal: %v", err)
	}

	b, err := f.outbound.Outbound(ctx, x.ID, services.Period{})
	if err != nil {
		t.Fatalf("outbound: %v", err)
	}
	if !almostEqual(b.Sales, 1.5) || !almostEqual(b.Waste, 2) {
		t.Fatalf("sales=%v waste=%v", b.Sales, b.Waste)
	}
	if !almostEqual(b.PersonalMeals, 2*0.5+1*0.25) {
		t.Fatalf("personal meals = %v", b.PersonalMeals)
	}
	if !almostEqual(b.DishSales, 4*0.25) {
		t.Fatalf("dish sales = %v", b.DishSales)
	}
	if !almostEqual(b.Total, b.Sales+b.Waste+b.PersonalMeals+b.DishSales) {
		t.Fatalf("total %v is not the sum of its parts", b.Total)
	}

	// one more waste record moves only the waste component
	f.waste(t, x.ID, 0.75, day)
	after, err := f.outbound.Outbound(ctx, x.ID, services.Period{})
	if err != nil {
		t.Fatalf("outbound: %v", err)
	}
	if !almostEqual(after.Total-b.Total, 0.75) || !almostEqual(after.Waste-b.Waste, 0.75) {
		t.Fatalf("additivity broken: before %+v after %+v", b, after)
	}
	if after.Sales != b.Sales || after.PersonalMeals != b.PersonalMeals || after.DishSales != b.DishSales {
		t.Fatal("unrelated components changed")
	}
}

func TestOutboundSumsRepeatedIngredientLines(t *testing.T) {
	f := newFixture(t)
	x := f.product(t, "Cheese", 1, 0)
	f.dish(t, "Four cheese", 2, productLine(x.ID, 0.1), productLine(x.ID, 0.05))

	b, err := f.outbound.Outbound(context.Background(), x.ID, services.Period{})
	if err != nil {
		t.Fatalf("outbound: %v", err)
	}
	if !almostEqual(b.DishSales, 2*0.15) {
		t.Fatalf("dish sales = %v, want 0.3", b.DishSales)
	}
}

func TestOutboundExpandsSubRecipes(t *testing.T) {
	f := newFixture(t)
	flour := f.product(t, "Flour", 1, 0)
	// 1000 g of dough uses 600 g of flour
	dough := f.recipe(t, "Dough", 1000, productLine(flour.ID, 600))
	// a double batch recipe nested on top
	base := f.recipe(t, "Pizza base", 2, recipeLine(dough.ID, 500))
	f.dish(t, "Pizza", 10, recipeLine(dough.ID, 250), recipeLine(base.ID, 1))

	b, err := f.outbound.Outbound(context.Background(), flour.ID, services.Period{})
	if err != nil {
		t.Fatalf("outbound: %v", err)
	}
	// per pizza: 250*600/1000 = 150, plus 1 * (500*600/1000)/2 = 150
	if !almostEqual(b.DishSales, 10*300) {
		t.Fatalf("dish sales = %v, want 3000", b.DishSales)
	}
}

func TestOutboundSkipsDishWithRecipeCycle(t *testing.T) {
	f := newFixture(t)
	x := f.product(t, "Salt", 1, 0)
	a := f.recipe(t, "A", 1, productLine(x.ID, 1))
	b := f.recipe(t, "B", 1, recipeLine(a.ID, 1))
	// close the loop A -> B -> A
	if err := f.db.Create(&models.RecipeIngredient{RecipeID: a.ID, IngredientRef: recipeLine(b.ID, 1)}).Error; err != nil {
		t.Fatalf("cycle line: %v", err)
	}
	f.dish(t, "Loop", 1, recipeLine(a.ID, 1))
	f.dish(t, "Fries", 5, productLine(x.ID, 0.01))

	log, hook := logrustest.NewNullLogger()
	out, err := services.NewOutboundService(f.db, log).Outbound(context.Background(), x.ID, services.Period{})
	if err != nil {
		t.Fatalf("outbound: %v", err)
	}
	if !almostEqual(out.DishSales, 0.05) {
		t.Fatalf("dish sales = %v, want 0.05 from Fries only", out.DishSales)
	}
	warned := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["dish"] == "Loop" {
			warned++
		}
	}
	if warned != 1 {
		t.Fatalf("warnings for Loop = %d, want 1", warned)
	}
}

func TestBrokenDishDoesNotFailUnrelatedProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tomato := f.product(t, "Tomato", 1, 0)
	day := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.waste(t, tomato.ID, 2, day)

	bread := f.dish(t, "Bread", 3, recipeLine(uuid.NewString(), 1))
	if err := f.db.Create(&models.PersonalMealRecord{DishID: bread.ID, Count: 1, Date: day}).Error; err != nil {
		t.Fatalf("meal: %v", err)
	}

	out, err := f.outbound.Outbound(ctx, tomato.ID, services.Period{})
	if err != nil {
		t.Fatalf("outbound: %v", err)
	}
	if out.Total != 2 || out.DishSales != 0 || out.PersonalMeals != 0 {
		t.Fatalf("breakdown %+v, want waste only", out)
	}

	rows, err := f.variance.Grid(ctx, services.Period{})
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	if len(rows) != 1 || rows[0].Outbound.Total != 2 {
		t.Fatalf("grid = %+v", rows)
	}
}

func TestOutboundSharedSubRecipeIsNotACycle(t *testing.T) {
	f := newFixture(t)
	x := f.product(t, "Butter", 1, 0)
	sauce := f.recipe(t, "Sauce", 1, productLine(x.ID, 2))
	left := f.recipe(t, "Left", 1, recipeLine(sauce.ID, 1))
	right := f.recipe(t, "Right", 1, recipeLine(sauce.ID, 1))
	f.dish(t, "Both", 1, recipeLine(left.ID, 1), recipeLine(right.ID, 1))

	b, err := f.outbound.Outbound(context.Background(), x.ID, services.Period{})
	if err != nil {
		t.Fatalf("outbound: %v", err)
	}
	if !almostEqual(b.DishSales, 4) {
		t.Fatalf("dish sales = %v, want 4", b.DishSales)
	}
}

func TestOutboundPeriodAppliesToDatedSources(t *testing.T) {
	f := newFixture(t)
	x := f.product(t, "Milk", 1, 0)
	ctx := context.Background()
	jan := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	f.waste(t, x.ID, 1, jan)
	f.waste(t, x.ID, 2, mar)
	if _, err := f.ledger.Append(ctx, &models.StockMovement{ProductID: x.ID, Direction: models.MovementOut, Source: models.MovementSourceSale, Quantity: 4, MovementDate: jan}); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.dish(t, "Latte", 3, productLine(x.ID, 0.2))

	march := services.Period{From: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), To: time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)}
	b, err := f.outbound.Outbound(ctx, x.ID, march)
	if err != nil {
		t.Fatalf("outbound: %v", err)
	}
	if b.Waste != 2 || b.Sales != 0 || !almostEqual(b.DishSales, 0.6) {
		t.Fatalf("march breakdown %+v", b)
	}

	if _, err := f.outbound.Outbound(ctx, "missing", services.Period{}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("missing product: got %v", err)
	}
}
