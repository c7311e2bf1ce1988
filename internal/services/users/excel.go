package users

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/cafeteria-hr/service_layer/internal/domain/user"
	apperr "github.com/cafeteria-hr/service_layer/internal/errors"
	"github.com/cafeteria-hr/service_layer/internal/storage"
)

// importColumns is the required header row for bulk user import.
var importColumns = []string{"email", "lastname", "firstname", "middlename", "role", "hired_at", "legal_entity", "position", "coins"}

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

// Import reads an Excel workbook and creates the listed users. Rows that
// fail validation are reported individually and do not abort the rest.
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
		rowNum := i + 2 // 1-based, after header
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
		Info("user import finished")
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

func (s *Service) parseRow(ctx context.Context, row []string) (CreateInput, error) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	in := CreateInput{
		Email:      cell(0),
		Lastname:   cell(1),
		Firstname:  cell(2),
		Middlename: cell(3),
	}
	if raw := cell(4); raw != "" {
		role := user.ParseRole(raw)
		if role == "" {
			return CreateInput{}, fmt.Errorf("unknown role %q", raw)
		}
		in.Role = string(role)
	}
	if raw := cell(5); raw != "" {
		hiredAt, err := parseDate(raw)
		if err != nil {
			return CreateInput{}, fmt.Errorf("invalid hired_at %q", raw)
		}
		in.HiredAt = hiredAt
	}
	if name := cell(6); name != "" {
		entity, err := s.findLegalEntity(ctx, name)
		if err != nil {
			return CreateInput{}, fmt.Errorf("unknown legal entity %q", name)
		}
		in.LegalEntityID = entity
	}
	if name := cell(7); name != "" {
		p, err := s.positions.GetPositionByName(ctx, name)
		if err != nil {
			return CreateInput{}, fmt.Errorf("unknown position %q", name)
		}
		in.PositionID = p.ID
	}
	if raw := cell(8); raw != "" {
		coins, err := strconv.Atoi(raw)
		if err != nil || coins < 0 {
			return CreateInput{}, fmt.Errorf("invalid coins %q", raw)
		}
		in.Coins = coins
	}
	return in, nil
}

func (s *Service) findLegalEntity(ctx context.Context, name string) (string, error) {
	entities, err := s.entities.ListLegalEntities(ctx)
	if err != nil {
		return "", err
	}
	for _, le := range entities {
		if strings.EqualFold(le.Name, name) {
			return le.ID, nil
		}
	}
	return "", fmt.Errorf("legal entity %q not found", name)
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "02.01.2006", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format")
}

// Export writes all users visible to the actor as an Excel workbook.
func (s *Service) Export(ctx context.Context, actor user.User, w io.Writer) error {
	users, err := s.List(ctx, actor, storage.UserFilter{})
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := []interface{}{"email", "lastname", "firstname", "middlename", "role", "hired_at", "is_active", "is_adapted", "is_verified", "coins", "level"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	now := time.Now().UTC()
	for i, u := range users {
		row := []interface{}{
			u.Email, u.Lastname, u.Firstname, u.Middlename, string(u.Role),
			u.HiredAt.Format("2006-01-02"), u.IsActive, u.IsAdapted, u.IsVerified,
			u.Coins, u.Level(now),
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
