package benefits

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/cafeteria-hr/service_layer/internal/domain/user"
	apperr "github.com/cafeteria-hr/service_layer/internal/errors"
	"github.com/cafeteria-hr/service_layer/internal/storage"
)

var importColumns = []string{"name", "description", "coins_cost", "min_level_cost", "adaptation_required", "amount", "category"}

// RowError describes one rejected import row.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportResult summarises a bulk import.
type ImportResult struct {
	Created int        `json:"created"`
	Errors  []RowError `json:"errors,omitempty"`
}

// Import reads an Excel workbook and creates the listed benefits.
func (s *Service) Import(ctx context.Context, actor user.User, r io.Reader) (ImportResult, error) {
	if actor.Role == user.RoleEmployee {
		return ImportResult{}, apperr.Forbidden("insufficient permissions")
	}
	f, err := excelize.OpenReader(r)
	if err != nil {
		return ImportResult{}, apperr.Validation("file is not a valid xlsx workbook")
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return ImportResult{}, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return ImportResult{}, apperr.Validation("workbook is empty")
	}
	if err := checkHeader(rows[0]); err != nil {
		return ImportResult{}, err
	}

	var result ImportResult
	for i, row := range rows[1:] {
		rowNum := i + 2
		in, err := s.parseRow(ctx, row)
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Message: err.Error()})
			continue
		}
		if _, err := s.Create(ctx, actor, in); err != nil {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Message: err.Error()})
			continue
		}
		result.Created++
	}
	s.log.WithField("created", result.Created).
		WithField("rejected", len(result.Errors)).
		Info("benefit import finished")
	return result, nil
}

func checkHeader(header []string) error {
	if len(header) < len(importColumns) {
		return apperr.Validation("missing columns: expected " + strings.Join(importColumns, ", "))
	}
	for i, want := range importColumns {
		if !strings.EqualFold(strings.TrimSpace(header[i]), want) {
			return apperr.Validation(fmt.Sprintf("column %d must be %q", i+1, want))
		}
	}
	return nil
}

func (s *Service) parseRow(ctx context.Context, row []string) (Input, error) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	in := Input{
		Name:        cell(0),
		Description: cell(1),
	}
	var err error
	if raw := cell(2); raw != "" {
		if in.CoinsCost, err = strconv.Atoi(raw); err != nil {
			return Input{}, fmt.Errorf("invalid coins_cost %q", raw)
		}
	}
	if raw := cell(3); raw != "" {
		if in.MinLevelCost, err = strconv.Atoi(raw); err != nil {
			return Input{}, fmt.Errorf("invalid min_level_cost %q", raw)
		}
	}
	if raw := cell(4); raw != "" {
		adapt, err := strconv.ParseBool(raw)
		if err != nil {
			return Input{}, fmt.Errorf("invalid adaptation_required %q", raw)
		}
		in.AdaptationRequired = adapt
	}
	if raw := cell(5); raw != "" {
		amount, err := strconv.Atoi(raw)
		if err != nil {
			return Input{}, fmt.Errorf("invalid amount %q", raw)
		}
		in.Amount = &amount
	}
	if name := cell(6); name != "" {
		id, err := s.findCategory(ctx, name)
		if err != nil {
			return Input{}, fmt.Errorf("unknown category %q", name)
		}
		in.CategoryID = id
	}
	return in, nil
}

func (s *Service) findCategory(ctx context.Context, name string) (string, error) {
	categories, err := s.categories.ListCategories(ctx)
	if err != nil {
		return "", err
	}
	for _, c := range categories {
		if strings.EqualFold(c.Name, name) {
			return c.ID, nil
		}
	}
	return "", fmt.Errorf("category %q not found", name)
}

// Export writes the catalogue as an Excel workbook.
func (s *Service) Export(ctx context.Context, actor user.User, w io.Writer) error {
	if actor.Role == user.RoleEmployee {
		return apperr.Forbidden("insufficient permissions")
	}
	benefits, err := s.store.ListBenefits(ctx, storage.BenefitFilter{})
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := []interface{}{"name", "description", "is_active", "coins_cost", "min_level_cost", "adaptation_required", "amount", "real_currency_cost"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, b := range benefits {
		amount := ""
		if b.Amount != nil {
			amount = strconv.Itoa(*b.Amount)
		}
		row := []interface{}{
			b.Name, b.Description, b.IsActive, b.CoinsCost, b.MinLevelCost,
			b.AdaptationRequired, amount, b.RealCurrencyCost,
		}
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cellRef, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
