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

type TicketService struct {
	db  *gorm.DB
	now Clock
}

func NewTicketService(db *gorm.DB, now Clock) *TicketService {
	if now == nil {
		now = time.Now
	}
	return &TicketService{db: db, now: now}
}

type CreateTicketInput struct {
	ProblemType   string
	Description   string
	Address       string
	Photos        []string
	AppointmentAt *time.Time
}

// Create files a new ticket for clientID. Tickets always start pending.
func (s *TicketService) Create(ctx context.Context, clientID uint64, in CreateTicketInput) (*model.Ticket, error) {
	if in.ProblemType == "" || in.Description == "" || in.Address == "" {
		return nil, errs.Validation("type_probleme, description et adresse sont requis")
	}
	ticket := &model.Ticket{
		ClientID:      clientID,
		ProblemType:   in.ProblemType,
		Description:   in.Description,
		Address:       in.Address,
		Photos:        model.PhotoList(in.Photos),
		Status:        model.TicketStatusPending,
		AppointmentAt: in.AppointmentAt,
	}
	if err := s.db.WithContext(ctx).Create(ticket).Error; err != nil {
		return nil, errs.Internal("création du ticket impossible", err)
	}
	return ticket, nil
}

// GetForClient is the ownership-scoped read: a client only ever sees their
// own tickets, anything else is indistinguishable from absent.
func (s *TicketService) GetForClient(ctx context.Context, id, clientID uint64) (*model.Ticket, error) {
	var t model.Ticket
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, clientID).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("ticket introuvable")
		}
		return nil, errs.Internal("lecture du ticket impossible", err)
	}
	return &t, nil
}

// Get is the unscoped read used by technician-facing endpoints.
func (s *TicketService) Get(ctx context.Context, id uint64) (*model.Ticket, error) {
	var t model.Ticket
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("ticket introuvable")
		}
		return nil, errs.Internal("lecture du ticket impossible", err)
	}
	return &t, nil
}

func (s *TicketService) ListForClient(ctx context.Context, clientID uint64) ([]model.Ticket, error) {
	var items []model.Ticket
	err := s.db.WithContext(ctx).
		Where("user_id = ?", clientID).
		Order("created_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, errs.Internal("liste des tickets impossible", err)
	}
	return items, nil
}

func (s *TicketService) ListAll(ctx context.Context) ([]model.Ticket, error) {
	var items []model.Ticket
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, errs.Internal("liste des tickets impossible", err)
	}
	return items, nil
}

// Reschedule moves the appointment and the ticket to planified. Only legal
// while no work session has happened, and only toward the future.
func (s *TicketService) Reschedule(ctx context.Context, id, clientID uint64, at time.Time) (*model.Ticket, error) {
	if !at.After(s.now()) {
		return nil, errs.Validation("la date du rendez-vous doit être dans le futur")
	}
	var out model.Ticket
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t model.Ticket
		if err := tx.Where("id = ? AND user_id = ?", id, clientID).First(&t).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.NotFound("ticket introuvable")
			}
			return errs.Internal("lecture du ticket impossible", err)
		}
		if err := lifecycle.Check(lifecycle.OpReschedule, t.Status); err != nil {
			return err
		}
		next, _ := lifecycle.Result(lifecycle.OpReschedule)
		res := tx.Model(&model.Ticket{}).
			Where("id = ? AND statut = ?", t.ID, t.Status).
			Updates(map[string]interface{}{"date_rdv": at, "statut": next})
		if res.Error != nil {
			return errs.Internal("replanification impossible", res.Error)
		}
		if res.RowsAffected == 0 {
			return errs.InvalidTransition("le statut du ticket a changé entre-temps")
		}
		return tx.First(&out, t.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a ticket the client owns, along with its interventions,
// reports and payment row. Refused once work has started or finished.
func (s *TicketService) Delete(ctx context.Context, id, clientID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t model.Ticket
		if err := tx.First(&t, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.NotFound("ticket introuvable")
			}
			return errs.Internal("lecture du ticket impossible", err)
		}
		if t.ClientID != clientID {
			return errs.Forbidden("non autorisé à supprimer ce ticket")
		}
		if err := lifecycle.Check(lifecycle.OpDelete, t.Status); err != nil {
			return err
		}
		for _, dep := range []interface{}{&model.Intervention{}, &model.Report{}, &model.Payment{}} {
			if err := tx.Where("ticket_id = ?", t.ID).Delete(dep).Error; err != nil {
				return errs.Internal("suppression des enregistrements liés impossible", err)
			}
		}
		res := tx.Where("id = ? AND statut = ?", t.ID, t.Status).Delete(&model.Ticket{})
		if res.Error != nil {
			return errs.Internal("suppression du ticket impossible", res.Error)
		}
		if res.RowsAffected == 0 {
			return errs.InvalidTransition("le statut du ticket a changé entre-temps")
		}
		return nil
	})
}

type DashboardSummary struct {
	TicketsToday     int64   `json:"tickets_today"`
	PendingTickets   int64   `json:"pending_tickets"`
	CompletedTickets int64   `json:"completed_tickets"`
	DistanceTraveled float64 `json:"distance_traveled"`
}

type Dashboard struct {
	Summary            DashboardSummary    `json:"dashboard_summary"`
	ActiveIntervention *model.Intervention `json:"active_intervention,omitempty"`
	ActiveTicket       *model.Ticket       `json:"active_ticket,omitempty"`
	RecentTickets      []model.Ticket      `json:"recent_tickets"`
	AllTickets         []model.Ticket      `json:"all_tickets"`
}

// Dashboard assembles the technician landing view: daily counters, the
// technician's open work session if any, and the ticket backlog.
func (s *TicketService) Dashboard(ctx context.Context, technicianID uint64) (*Dashboard, error) {
	db := s.db.WithContext(ctx)
	out := &Dashboard{}

	now := s.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	counts := []struct {
		dst  *int64
		cond *gorm.DB
	}{
		{&out.Summary.TicketsToday, db.Model(&model.Ticket{}).Where("created_at >= ?", startOfDay)},
		{&out.Summary.PendingTickets, db.Model(&model.Ticket{}).Where("statut = ?", model.TicketStatusPending)},
		{&out.Summary.CompletedTickets, db.Model(&model.Ticket{}).Where("statut = ?", model.TicketStatusCompleted)},
	}
	for _, c := range counts {
		if err := c.cond.Count(c.dst).Error; err != nil {
			return nil, errs.Internal("comptage des tickets impossible", err)
		}
	}

	var active model.Intervention
	err := db.Where("technician_id = ? AND heure_fin IS NULL", technicianID).First(&active).Error
	switch {
	case err == nil:
		out.ActiveIntervention = &active
		var t model.Ticket
		if err := db.First(&t, active.TicketID).Error; err == nil {
			out.ActiveTicket = &t
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, errs.Internal("lecture de l'intervention active impossible", err)
	}

	err = db.Where("statut IN ?", []model.TicketStatus{
		model.TicketStatusPending, model.TicketStatusAssigned, model.TicketStatusInProgress,
	}).Order("created_at DESC").Limit(3).Find(&out.RecentTickets).Error
	if err != nil {
		return nil, errs.Internal("liste des tickets récents impossible", err)
	}

	if err := db.Order("created_at DESC").Find(&out.AllTickets).Error; err != nil {
		return nil, errs.Internal("liste des tickets impossible", err)
	}
	return out, nil
}
