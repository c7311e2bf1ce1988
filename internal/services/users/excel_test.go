package users

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/cafeteria-hr/service_layer/internal/domain/user"
)

func buildWorkbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := make([]interface{}, len(importColumns))
	for i, c := range importColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		t.Fatalf("write header: %v", err)
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			t.Fatalf("write row %d: %v", i+2, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return &buf
}

func TestImportRoleAliases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wb := buildWorkbook(t, [][]interface{}{
		{"boss@corp.com", "Ivanova", "Olga", "", "Администратор", "2023-01-10", "", "", "50"},
		{"line@corp.com", "Petrov", "Ivan", "", "сотрудник", "2023-02-01", "", "", "0"},
		{"odd@corp.com", "Sidorov", "Petr", "", "boss", "", "", "", ""},
	})

	result, err := f.svc.Import(ctx, f.admin, wb)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if result.Created != 2 {
		t.Fatalf("expected 2 created, got %d (errors %v)", result.Created, result.Errors)
	}
	if len(result.Errors) != 1 || result.Errors[0].Row != 4 ||
		!strings.Contains(result.Errors[0].Message, "unknown role") {
		t.Errorf("expected row 4 rejected for its role, got %v", result.Errors)
	}

	boss, err := f.store.GetUserByEmail(ctx, "boss@corp.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if boss.Role != user.RoleAdmin {
		t.Errorf("expected admin role, got %q", boss.Role)
	}
	line, err := f.store.GetUserByEmail(ctx, "line@corp.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if line.Role != user.RoleEmployee {
		t.Errorf("expected employee role, got %q", line.Role)
	}
}
