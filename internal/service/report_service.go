package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/omeasupport/dispatch-service/internal/errs"
	"github.com/omeasupport/dispatch-service/internal/lifecycle"
	"github.com/omeasupport/dispatch-service/internal/model"
)

type ReportService struct {
	db  *gorm.DB
	now Clock
}

func NewReportService(db *gorm.DB, now Clock) *ReportService {
	if now == nil {
		now = time.Now
	}
	return &ReportService{db: db, now: now}
}

type SubmitReportInput struct {
	Solution string
	Duration string
	Price    float64
	Status   model.TicketStatus
}

// Submit records the closing report for a completed ticket and writes the
// report's final disposition back onto the ticket. A completed job stays
// completed; a partial fix retroactively moves the ticket to suspendu.
// Reports are append-only; there is no update or delete.
func (s *ReportService) Submit(ctx context.Context, ticketID, technicianID uint64, in SubmitReportInput) (*model.Report, error) {
	if in.Solution == "" || in.Duration == "" {
		return nil, errs.Validation("solution et duree sont requis")
	}
	if in.Price < 0 {
		return nil, errs.Validation("prix doit être positif")
	}
	if !lifecycle.ValidFinalStatus(in.Status) {
		return nil, errs.Validation("statut doit être completed ou suspendu")
	}

	var out model.Report
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t model.Ticket
		if err := tx.First(&t, ticketID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.NotFound("ticket introuvable")
			}
			return errs.Internal("lecture du ticket impossible", err)
		}
		if err := lifecycle.Check(lifecycle.OpReport, t.Status); err != nil {
			return err
		}

		report := model.Report{
			TicketID:     t.ID,
			ClientID:     t.ClientID,
			TechnicianID: technicianID,
			Solution:     in.Solution,
			Duration:     in.Duration,
			Price:        in.Price,
			Status:       in.Status,
			WorkedOn:     s.now(),
		}
		if err := tx.Create(&report).Error; err != nil {
			return errs.Internal("création du rapport impossible", err)
		}
		if err := setStatus(tx, t.ID, t.Status, in.Status); err != nil {
			return err
		}
		out = report
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
