package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/omeasupport/dispatch-service/internal/errs"
	"github.com/omeasupport/dispatch-service/internal/model"
)

type PaymentService struct {
	db      *gorm.DB
	baseURL string
}

func NewPaymentService(db *gorm.DB, baseURL string) *PaymentService {
	return &PaymentService{db: db, baseURL: baseURL}
}

// Link returns the payment link for a finished ticket, creating the pending
// payment row on first call. Only the owning client can ask, and only once
// the ticket is completed or suspendu. Idempotent per ticket.
func (s *PaymentService) Link(ctx context.Context, ticketID, clientID uint64) (*model.Payment, error) {
	var out model.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t model.Ticket
		if err := tx.Where("id = ? AND user_id = ?", ticketID, clientID).First(&t).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.NotFound("ticket introuvable")
			}
			return errs.Internal("lecture du ticket impossible", err)
		}
		if t.Status != model.TicketStatusCompleted && t.Status != model.TicketStatusSuspended {
			return errs.InvalidTransition("le lien de paiement n'est disponible que pour les tickets terminés ou suspendus")
		}

		err := tx.Where("ticket_id = ?", t.ID).First(&out).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.Internal("lecture du paiement impossible", err)
		}

		// Amount comes from the closing report when one exists.
		var amount float64
		var report model.Report
		if rerr := tx.Where("ticket_id = ?", t.ID).Order("created_at DESC").First(&report).Error; rerr == nil {
			amount = report.Price
		}

		out = model.Payment{
			ClientID: t.ClientID,
			TicketID: t.ID,
			Amount:   amount,
			Method:   "stripe",
			Status:   model.PaymentStatusPending,
			Link:     fmt.Sprintf("%s/pay?ticket_id=%d", s.baseURL, t.ID),
		}
		if cerr := tx.Create(&out).Error; cerr != nil {
			if errors.Is(cerr, gorm.ErrDuplicatedKey) {
				return tx.Where("ticket_id = ?", t.ID).First(&out).Error
			}
			return errs.Internal("création du paiement impossible", cerr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
