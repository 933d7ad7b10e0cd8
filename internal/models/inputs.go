package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Waste records, personal meals and dishes are owned by other workflows.
// The reconciliation core only reads them.

// WasteRecord is a quantity of a product thrown away
type WasteRecord struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	ProductID string    `json:"product_id" gorm:"type:uuid;not null;index"`
	Product   *Product  `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Quantity  float64   `json:"quantity" gorm:"type:decimal(12,4);not null"`
	Date      time.Time `json:"date" gorm:"not null;index"`
	Reason    string    `json:"reason" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName returns the table name
func (WasteRecord) TableName() string {
	return "waste_records"
}

// BeforeCreate generates the UUID
func (w *WasteRecord) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	return nil
}

// PersonalMealRecord is a number of dishes eaten by staff
type PersonalMealRecord struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	DishID    string    `json:"dish_id" gorm:"type:uuid;not null;index"`
	Count     float64   `json:"count" gorm:"type:decimal(10,2);not null"`
	Date      time.Time `json:"date" gorm:"not null;index"`
	StaffName string    `json:"staff_name" gorm:"type:varchar(255)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName returns the table name
func (PersonalMealRecord) TableName() string {
	return "personal_meal_records"
}

// BeforeCreate generates the UUID
func (p *PersonalMealRecord) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// IngredientKind tags what an ingredient line points at.
type IngredientKind string

const (
	IngredientKindProduct IngredientKind = "product" // raw product from the catalog
	IngredientKindRecipe  IngredientKind = "recipe"  // semi-finished preparation
)

// IngredientRef is the tagged variant shared by dish and recipe lines.
// Exactly one of ProductID / SubRecipeID is set, matching Kind.
type IngredientRef struct {
	Kind        IngredientKind `json:"kind" gorm:"type:varchar(20);not null;default:'product'"`
	ProductID   *string        `json:"product_id" gorm:"type:uuid;index"`
	SubRecipeID *string        `json:"sub_recipe_id" gorm:"type:uuid;index"`
	Quantity    float64        `json:"quantity" gorm:"type:decimal(12,4);not null"` // per one unit of the owner
}

// Dish is a menu item together with its cumulative sale aggregate
type Dish struct {
	ID          string           `json:"id" gorm:"type:uuid;primaryKey"`
	Name        string           `json:"name" gorm:"type:varchar(255);not null"`
	SoldCount   float64          `json:"sold_count" gorm:"type:decimal(12,2);not null;default:0"`
	CreatedAt   time.Time        `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time        `json:"updated_at" gorm:"autoUpdateTime"`
	Ingredients []DishIngredient `json:"ingredients" gorm:"foreignKey:DishID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name
func (Dish) TableName() string {
	return "dishes"
}

// BeforeCreate generates the UUID
func (d *Dish) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}

// DishIngredient is one ingredient line of a dish
type DishIngredient struct {
	ID            string `json:"id" gorm:"type:uuid;primaryKey"`
	DishID        string `json:"dish_id" gorm:"type:uuid;not null;index"`
	IngredientRef `gorm:"embedded"`
}

// TableName returns the table name
func (DishIngredient) TableName() string {
	return "dish_ingredients"
}

// BeforeCreate generates the UUID
func (di *DishIngredient) BeforeCreate(tx *gorm.DB) error {
	if di.ID == "" {
		di.ID = uuid.New().String()
	}
	return nil
}

// Recipe is a semi-finished preparation (dough, sauce) used by dishes
type Recipe struct {
	ID          string             `json:"id" gorm:"type:uuid;primaryKey"`
	Name        string             `json:"name" gorm:"type:varchar(255);not null"`
	PortionSize float64            `json:"portion_size" gorm:"type:decimal(10,4);not null;default:1"` // ingredient quantities are per PortionSize units
	CreatedAt   time.Time          `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time          `json:"updated_at" gorm:"autoUpdateTime"`
	Ingredients []RecipeIngredient `json:"ingredients" gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name
func (Recipe) TableName() string {
	return "recipes"
}

// BeforeCreate generates the UUID
func (r *Recipe) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.PortionSize == 0 {
		r.PortionSize = 1
	}
	return nil
}

// RecipeIngredient is one ingredient line of a recipe
type RecipeIngredient struct {
	ID            string `json:"id" gorm:"type:uuid;primaryKey"`
	RecipeID      string `json:"recipe_id" gorm:"type:uuid;not null;index"`
	IngredientRef `gorm:"embedded"`
}

// TableName returns the table name
func (RecipeIngredient) TableName() string {
	return "recipe_ingredients"
}

// BeforeCreate generates the UUID
func (ri *RecipeIngredient) BeforeCreate(tx *gorm.DB) error {
	if ri.ID == "" {
		ri.ID = uuid.New().String()
	}
	return nil
}
