package models

import (
	"fmt"

	"gorm.io/gorm"
)

// AutoMigrate creates or updates every table of the service.
// Referenced tables go first.
func AutoMigrate(db *gorm.DB) error {
	tables := []interface{}{
		&Product{},
		&StockMovement{},
		&MovementCorrection{},
		&PurchaseOrder{},
		&PurchaseOrderItem{},
		&WasteRecord{},
		&Recipe{},
		&RecipeIngredient{},
		&Dish{},
		&DishIngredient{},
		&PersonalMealRecord{},
		&InventorySnapshot{},
		&StocktakeSnapshot{},
	}
	for _, table := range tables {
		if err := db.AutoMigrate(table); err != nil {
			return fmt.Errorf("auto migrate %T: %w", table, err)
		}
	}
	return nil
}
