package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"stockledger/server/internal/models"
)

// unitFactor converts a written unit into the base unit of its family:
// kg for mass, l for volume, pcs for count.
type unitFactor struct {
	family models.ProductUnit
	factor float64
}

var knownUnits = map[string]unitFactor{
	"kg": {models.ProductUnitMass, 1}, "кг": {models.ProductUnitMass, 1},
	"g": {models.ProductUnitMass, 0.001}, "г": {models.ProductUnitMass, 0.001}, "gr": {models.ProductUnitMass, 0.001},
	"l": {models.ProductUnitVolume, 1}, "л": {models.ProductUnitVolume, 1},
	"ml": {models.ProductUnitVolume, 0.001}, "мл": {models.ProductUnitVolume, 0.001},
	"pcs": {models.ProductUnitCount, 1}, "шт": {models.ProductUnitCount, 1}, "pc": {models.ProductUnitCount, 1},
}

// "2,5 kg", "250g", "1.5", "12 шт"
var quantityCell = regexp.MustCompile(`^\s*(\d+(?:[.,]\d+)?)\s*([\p{L}]*)\.?\s*$`)

// ParseQuantity reads a counted quantity as written in a sheet and converts
// it into the base unit of the product's family. A bare number is taken as
// already being in the base unit.
func ParseQuantity(text string, unit models.ProductUnit) (float64, error) {
	m := quantityCell.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return 0, fmt.Errorf("cannot read quantity %q", text)
	}
	value, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil {
		return 0, fmt.Errorf("cannot read quantity %q: %w", text, err)
	}
	if m[2] == "" {
		return value, nil
	}

	uf, ok := knownUnits[m[2]]
	if !ok {
		return 0, fmt.Errorf("unknown unit %q", m[2])
	}
	if unit != "" && uf.family != unit {
		return 0, fmt.Errorf("unit %q does not measure %s", m[2], unit)
	}
	return value * uf.factor, nil
}
