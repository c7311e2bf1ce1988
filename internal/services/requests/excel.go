package requests

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/cafeteria-hr/service_layer/internal/domain/user"
	apperr "github.com/cafeteria-hr/service_layer/internal/errors"
	"github.com/cafeteria-hr/service_layer/internal/storage"
)

// Export writes the requests visible to the actor as an Excel workbook.
func (s *Service) Export(ctx context.Context, actor user.User, filter storage.RequestFilter, w io.Writer) error {
	if actor.Role == user.RoleEmployee {
		return apperr.Forbidden("insufficient permissions")
	}
	reqs, err := s.List(ctx, actor, filter)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := []interface{}{"id", "status", "comment", "benefit", "user_email", "user_fullname", "performer_email", "performer_fullname", "created_at", "updated_at"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, req := range reqs {
		benefitName := ""
		if req.BenefitID != "" {
			if b, err := s.benefits.GetBenefit(ctx, req.BenefitID); err == nil {
				benefitName = b.Name
			}
		}
		userEmail, userName := s.userRef(ctx, req.UserID)
		perfEmail, perfName := s.userRef(ctx, req.PerformerID)

		row := []interface{}{
			req.ID, string(req.Status), req.Comment, benefitName,
			userEmail, userName, perfEmail, perfName,
			req.CreatedAt.Format("2006-01-02 15:04:05"),
			req.UpdatedAt.Format("2006-01-02 15:04:05"),
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

func (s *Service) userRef(ctx context.Context, id string) (email, fullname string) {
	if id == "" {
		return "", ""
	}
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return "", ""
	}
	return u.Email, u.FullName()
}
