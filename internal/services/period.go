package services

import (
	"time"

	"gorm.io/gorm"
)

// Period bounds a reporting window. Both ends are inclusive and a zero
// bound is open, so the zero Period means all time.
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (p Period) validate() error {
	if !p.From.IsZero() && !p.To.IsZero() && p.To.Before(p.From) {
		return newValidationError("to", "must not be before from")
	}
	return nil
}

// scope filters column by the window.
func (p Period) scope(column string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if !p.From.IsZero() {
			db = db.Where(column+" >= ?", p.From)
		}
		if !p.To.IsZero() {
			db = db.Where(column+" <= ?", p.To)
		}
		return db
	}
}
