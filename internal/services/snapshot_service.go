package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stockledger/server/internal/events"
	"stockledger/server/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SnapshotService keeps the single editable count of each product.
type SnapshotService struct {
	db        *gorm.DB
	logger    *logrus.Logger
	publisher events.Publisher
}

func NewSnapshotService(db *gorm.DB, logger *logrus.Logger, publisher events.Publisher) *SnapshotService {
	return &SnapshotService{db: db, logger: logger, publisher: publisher}
}

type SnapshotInput struct {
	InitialQuantity float64 `json:"initial_quantity" validate:"gte=0"`
	FinalQuantity   float64 `json:"final_quantity" validate:"gte=0"`
	Notes           string  `json:"notes"`
}

// SnapshotPatch changes only the fields that are set.
type SnapshotPatch struct {
	InitialQuantity *float64 `json:"initial_quantity" validate:"omitempty,gte=0"`
	FinalQuantity   *float64 `json:"final_quantity" validate:"omitempty,gte=0"`
	Notes           *string  `json:"notes"`
}

// Upsert creates the product's snapshot or updates it in place with one
// INSERT ... ON CONFLICT (product_id) DO UPDATE statement.
func (s *SnapshotService) Upsert(ctx context.Context, productID string, input SnapshotInput) (*models.InventorySnapshot, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	if _, err := findProduct(db, productID); err != nil {
		return nil, err
	}

	if err := upsertSnapshot(db, productID, input); err != nil {
		return nil, err
	}
	return s.saved(ctx, productID)
}

func upsertSnapshot(db *gorm.DB, productID string, input SnapshotInput) error {
	row := models.InventorySnapshot{
		ProductID:       productID,
		InitialQuantity: input.InitialQuantity,
		FinalQuantity:   input.FinalQuantity,
		Notes:           input.Notes,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"initial_quantity", "final_quantity", "notes", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return fmt.Errorf("upsert snapshot %s: %w", productID, err)
	}
	return nil
}

// Create fails with ErrConflict when the product already has a snapshot.
func (s *SnapshotService) Create(ctx context.Context, productID string, input SnapshotInput) (*models.InventorySnapshot, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findProduct(tx, productID); err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&models.InventorySnapshot{}).Where("product_id = ?", productID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("snapshot for product %s already exists: %w", productID, ErrConflict)
		}
		return tx.Create(&models.InventorySnapshot{
			ProductID:       productID,
			InitialQuantity: input.InitialQuantity,
			FinalQuantity:   input.FinalQuantity,
			Notes:           input.Notes,
		}).Error
	})
	if err != nil {
		if !isDomainError(err) && strings.Contains(strings.ToLower(err.Error()), "unique") {
			return nil, fmt.Errorf("snapshot for product %s already exists: %w", productID, ErrConflict)
		}
		return nil, err
	}
	return s.saved(ctx, productID)
}

// Update fails with ErrNotFound when the product has no snapshot yet.
func (s *SnapshotService) Update(ctx context.Context, productID string, patch SnapshotPatch) (*models.InventorySnapshot, error) {
	if err := validateStruct(patch); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	if patch.InitialQuantity != nil {
		updates["initial_quantity"] = *patch.InitialQuantity
	}
	if patch.FinalQuantity != nil {
		updates["final_quantity"] = *patch.FinalQuantity
	}
	if patch.Notes != nil {
		updates["notes"] = *patch.Notes
	}

	res := s.db.WithContext(ctx).Model(&models.InventorySnapshot{}).Where("product_id = ?", productID).Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("update snapshot: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("snapshot for product %s: %w", productID, ErrNotFound)
	}
	return s.saved(ctx, productID)
}

func (s *SnapshotService) Get(ctx context.Context, productID string) (*models.InventorySnapshot, error) {
	var snapshot models.InventorySnapshot
	if err := s.db.WithContext(ctx).Where("product_id = ?", productID).First(&snapshot).Error; err != nil {
		return nil, dbError(err, "snapshot for product "+productID)
	}
	return &snapshot, nil
}

func (s *SnapshotService) List(ctx context.Context) ([]models.InventorySnapshot, error) {
	var snapshots []models.InventorySnapshot
	if err := s.db.WithContext(ctx).Preload("Product").Order("updated_at DESC").Find(&snapshots).Error; err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return snapshots, nil
}

// saved re-reads the row and announces it.
func (s *SnapshotService) saved(ctx context.Context, productID string) (*models.InventorySnapshot, error) {
	snapshot, err := s.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"product_id": productID,
		"initial":    snapshot.InitialQuantity,
		"final":      snapshot.FinalQuantity,
	}).Info("inventory snapshot saved")
	publish(ctx, s.publisher, s.logger, events.New(events.InventorySnapshotSaved, productID, snapshot))
	return snapshot, nil
}

// snapshotQuantities returns zeros when the product has no snapshot.
func snapshotQuantities(db *gorm.DB, productID string) (initial, final float64, found bool, err error) {
	var rows []models.InventorySnapshot
	if err := db.Where("product_id = ?", productID).Limit(1).Find(&rows).Error; err != nil {
		return 0, 0, false, err
	}
	if len(rows) == 0 {
		return 0, 0, false, nil
	}
	return rows[0].InitialQuantity, rows[0].FinalQuantity, true, nil
}
