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

type InterventionService struct {
	db  *gorm.DB
	now Clock
}

func NewInterventionService(db *gorm.DB, now Clock) *InterventionService {
	if now == nil {
		now = time.Now
	}
	return &InterventionService{db: db, now: now}
}

// Start opens (or resumes) the technician's work session on a ticket and
// moves the ticket to in_progress. Repeated calls are idempotent once the
// start time is set. The partial unique index on open interventions makes
// the find-or-create race-safe: the loser of a concurrent create gets a
// duplicate-key error and picks up the winner's row.
func (s *InterventionService) Start(ctx context.Context, ticketID, technicianID uint64) (*model.Intervention, error) {
	var out model.Intervention
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t model.Ticket
		if err := tx.First(&t, ticketID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.NotFound("ticket non trouvé")
			}
			return errs.Internal("lecture du ticket impossible", err)
		}
		if err := lifecycle.Check(lifecycle.OpStart, t.Status); err != nil {
			return err
		}

		iv, err := s.findOrCreateOpen(tx, &t, technicianID)
		if err != nil {
			return err
		}

		if iv.StartedAt == nil {
			startedAt := s.now()
			res := tx.Model(&model.Intervention{}).
				Where("id = ? AND heure_debut IS NULL", iv.ID).
				Update("heure_debut", startedAt)
			if res.Error != nil {
				return errs.Internal("démarrage de la session impossible", res.Error)
			}
			if res.RowsAffected > 0 {
				iv.StartedAt = &startedAt
			}
		}

		next, _ := lifecycle.Result(lifecycle.OpStart)
		if t.Status != next {
			if err := setStatus(tx, t.ID, t.Status, next); err != nil {
				return err
			}
		}
		out = *iv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// End closes the technician's open session and moves the ticket to
// completed. This is the only path into completed.
func (s *InterventionService) End(ctx context.Context, ticketID, technicianID uint64) (*model.Intervention, error) {
	var out model.Intervention
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t model.Ticket
		if err := tx.First(&t, ticketID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.NotFound("ticket non trouvé")
			}
			return errs.Internal("lecture du ticket impossible", err)
		}
		if err := lifecycle.Check(lifecycle.OpEnd, t.Status); err != nil {
			return err
		}

		var iv model.Intervention
		err := tx.Where("ticket_id = ? AND technician_id = ? AND heure_fin IS NULL", t.ID, technicianID).
			First(&iv).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.InvalidState("intervention non commencée ou déjà terminée")
			}
			return errs.Internal("lecture de l'intervention impossible", err)
		}
		if iv.StartedAt == nil {
			return errs.InvalidState("intervention non commencée ou déjà terminée")
		}

		endedAt := s.now()
		res := tx.Model(&model.Intervention{}).
			Where("id = ? AND heure_fin IS NULL", iv.ID).
			Update("heure_fin", endedAt)
		if res.Error != nil {
			return errs.Internal("clôture de la session impossible", res.Error)
		}
		if res.RowsAffected == 0 {
			return errs.InvalidState("intervention non commencée ou déjà terminée")
		}
		iv.EndedAt = &endedAt

		next, _ := lifecycle.Result(lifecycle.OpEnd)
		if err := setStatus(tx, t.ID, t.Status, next); err != nil {
			return err
		}
		out = iv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *InterventionService) findOrCreateOpen(tx *gorm.DB, t *model.Ticket, technicianID uint64) (*model.Intervention, error) {
	var iv model.Intervention
	err := tx.Where("ticket_id = ? AND technician_id = ? AND heure_fin IS NULL", t.ID, technicianID).
		First(&iv).Error
	if err == nil {
		return &iv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.Internal("lecture de l'intervention impossible", err)
	}

	iv = model.Intervention{
		TicketID:     t.ID,
		ClientID:     t.ClientID,
		TechnicianID: technicianID,
		TakenOn:      s.now(),
	}
	err = tx.Create(&iv).Error
	if err == nil {
		return &iv, nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost the race against a concurrent start: use the winner's row.
		var won model.Intervention
		ferr := tx.Where("ticket_id = ? AND technician_id = ? AND heure_fin IS NULL", t.ID, technicianID).
			First(&won).Error
		if ferr != nil {
			return nil, errs.Internal("lecture de l'intervention impossible", ferr)
		}
		return &won, nil
	}
	return nil, errs.Internal("création de l'intervention impossible", err)
}
