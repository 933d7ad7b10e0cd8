package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"stockledger/server/internal/events"
	"stockledger/server/internal/models"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
	"gorm.io/gorm"
)

// SnapshotImportRow is one counted product taken from a sheet.
type SnapshotImportRow struct {
	Row             int     `json:"row"` // 1-based, as shown by spreadsheet tools
	ProductID       string  `json:"product_id"`
	ProductName     string  `json:"product_name"`
	InitialQuantity float64 `json:"initial_quantity"`
	FinalQuantity   float64 `json:"final_quantity"`
}

type SnapshotImportResult struct {
	Imported int                 `json:"imported"`
	Rows     []SnapshotImportRow `json:"rows"`
}

type sheetColumns struct {
	product, initial, final, notes int
}

var headerKeywords = map[string][]string{
	"product": {"product", "name", "наименование", "товар", "продукт"},
	"initial": {"initial", "opening", "начал"},
	"final":   {"final", "closing", "actual", "факт", "конеч"},
	"notes":   {"notes", "comment", "примеч", "коммент"},
}

// ImportSheet upserts snapshots from an XLSX or CSV count sheet. Products
// are matched by name. Every row is checked first and nothing is written
// if any row is wrong. A missing quantity column keeps the stored value.
func (s *SnapshotService) ImportSheet(ctx context.Context, r io.Reader, filename string) (*SnapshotImportResult, error) {
	rows, err := readSheet(r, filename)
	if err != nil {
		return nil, newValidationError("file", err.Error())
	}
	header, cols, err := findHeader(rows)
	if err != nil {
		return nil, newValidationError("file", err.Error())
	}

	db := s.db.WithContext(ctx)
	var products []models.Product
	if err := db.Find(&products).Error; err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	byName := make(map[string]models.Product, len(products))
	for _, p := range products {
		byName[strings.ToLower(strings.TrimSpace(p.Name))] = p
	}
	var existing []models.InventorySnapshot
	if err := db.Find(&existing).Error; err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	current := make(map[string]models.InventorySnapshot, len(existing))
	for _, snap := range existing {
		current[snap.ProductID] = snap
	}

	verr := &ValidationError{}
	result := &SnapshotImportResult{}
	inputs := make(map[string]SnapshotInput)
	for i := header + 1; i < len(rows); i++ {
		line := rows[i]
		name := strings.TrimSpace(cell(line, cols.product))
		if name == "" {
			continue
		}
		key := fmt.Sprintf("row %d", i+1)
		product, ok := byName[strings.ToLower(name)]
		if !ok {
			verr.Add(key, fmt.Sprintf("unknown product %q", name))
			continue
		}
		if _, dup := inputs[product.ID]; dup {
			verr.Add(key, fmt.Sprintf("product %q listed twice", name))
			continue
		}

		prev := current[product.ID]
		input := SnapshotInput{
			InitialQuantity: prev.InitialQuantity,
			FinalQuantity:   prev.FinalQuantity,
			Notes:           prev.Notes,
		}
		if q, set, err := quantityAt(line, cols.initial, product.Unit); err != nil {
			verr.Add(key, "initial: "+err.Error())
			continue
		} else if set {
			input.InitialQuantity = q
		}
		if q, set, err := quantityAt(line, cols.final, product.Unit); err != nil {
			verr.Add(key, "final: "+err.Error())
			continue
		} else if set {
			input.FinalQuantity = q
		}
		if cols.notes >= 0 {
			input.Notes = strings.TrimSpace(cell(line, cols.notes))
		}

		inputs[product.ID] = input
		result.Rows = append(result.Rows, SnapshotImportRow{
			Row:             i + 1,
			ProductID:       product.ID,
			ProductName:     product.Name,
			InitialQuantity: input.InitialQuantity,
			FinalQuantity:   input.FinalQuantity,
		})
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	if len(result.Rows) == 0 {
		return nil, newValidationError("file", "no product rows found")
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		for _, row := range result.Rows {
			if err := upsertSnapshot(tx, row.ProductID, inputs[row.ProductID]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Imported = len(result.Rows)

	s.logger.WithField("rows", result.Imported).Info("inventory snapshots imported")
	for _, row := range result.Rows {
		publish(ctx, s.publisher, s.logger, events.New(events.InventorySnapshotSaved, row.ProductID, row))
	}
	return result, nil
}

func readSheet(r io.Reader, filename string) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return readXLSX(data)
	case ".csv", ".txt", "":
		return readCSV(data)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(filename))
	}
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

// readCSV accepts UTF-8 or Windows-1251 with a comma or semicolon delimiter.
func readCSV(data []byte) ([][]string, error) {
	if !utf8.Valid(data) {
		if decoded, _, err := transform.Bytes(charmap.Windows1251.NewDecoder(), data); err == nil {
			data = decoded
		}
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(data)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return rows, nil
}

func detectDelimiter(data []byte) rune {
	firstLine := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		firstLine = data[:i]
	}
	if bytes.Count(firstLine, []byte(";")) > bytes.Count(firstLine, []byte(",")) {
		return ';'
	}
	return ','
}

// findHeader looks for the header among the first ten rows. The row with
// the most recognised column names wins.
func findHeader(rows [][]string) (int, sheetColumns, error) {
	best, bestCols, bestMatches := -1, sheetColumns{}, 0
	for i := 0; i < len(rows) && i < 10; i++ {
		cols := sheetColumns{product: -1, initial: -1, final: -1, notes: -1}
		matches := 0
		for j, raw := range rows[i] {
			title := strings.ToLower(strings.TrimSpace(strings.Trim(raw, "\"'\t")))
			switch {
			case cols.initial < 0 && hasKeyword(title, "initial"):
				cols.initial = j
			case cols.final < 0 && hasKeyword(title, "final"):
				cols.final = j
			case cols.notes < 0 && hasKeyword(title, "notes"):
				cols.notes = j
			case cols.product < 0 && hasKeyword(title, "product"):
				cols.product = j
			default:
				continue
			}
			matches++
		}
		if cols.product >= 0 && matches > bestMatches {
			best, bestCols, bestMatches = i, cols, matches
		}
	}
	if best < 0 {
		return 0, sheetColumns{}, fmt.Errorf("no header row with a product column")
	}
	if bestCols.initial < 0 && bestCols.final < 0 {
		return 0, sheetColumns{}, fmt.Errorf("no initial or final quantity column")
	}
	return best, bestCols, nil
}

func hasKeyword(title, column string) bool {
	for _, kw := range headerKeywords[column] {
		if strings.Contains(title, kw) {
			return true
		}
	}
	return false
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// quantityAt reports set=false for a missing column or an empty cell.
func quantityAt(row []string, idx int, unit models.ProductUnit) (float64, bool, error) {
	raw := strings.TrimSpace(cell(row, idx))
	if raw == "" {
		return 0, false, nil
	}
	q, err := ParseQuantity(raw, unit)
	if err != nil {
		return 0, false, err
	}
	return q, true, nil
}
