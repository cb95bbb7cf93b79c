package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeasupport/dispatch-service/internal/errs"
	"github.com/omeasupport/dispatch-service/internal/model"
)

func TestTicketCreate(t *testing.T) {
	db := newTestDB(t)
	client := seedUser(t, db, "client@example.com", model.RoleClient)
	svc := NewTicketService(db, nil)
	ctx := context.Background()

	t.Run("new tickets start pending", func(t *testing.T) {
		at := time.Now().Add(48 * time.Hour)
		tk, err := svc.Create(ctx, client.ID, CreateTicketInput{
			ProblemType:   "électricité",
			Description:   "prise qui chauffe",
			Address:       "3 avenue Foch",
			Photos:        []string{"tickets/abc.jpg"},
			AppointmentAt: &at,
		})
		require.NoError(t, err)
		assert.Equal(t, model.TicketStatusPending, tk.Status)
		assert.Equal(t, client.ID, tk.ClientID)
		assert.Equal(t, model.PhotoList{"tickets/abc.jpg"}, tk.Photos)
		require.NotNil(t, tk.AppointmentAt)
	})

	t.Run("missing fields rejected", func(t *testing.T) {
		_, err := svc.Create(ctx, client.ID, CreateTicketInput{ProblemType: "x"})
		require.Error(t, err)
		assert.Equal(t, errs.KindValidation, errs.KindOf(err))
	})
}

func TestTicketOwnershipScoping(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com", model.RoleClient)
	other := seedUser(t, db, "other@example.com", model.RoleClient)
	tk := seedTicket(t, db, owner.ID, model.TicketStatusPending)
	svc := NewTicketService(db, nil)
	ctx := context.Background()

	t.Run("owner reads own ticket", func(t *testing.T) {
		got, err := svc.GetForClient(ctx, tk.ID, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, tk.ID, got.ID)
	})

	t.Run("another client sees not found", func(t *testing.T) {
		_, err := svc.GetForClient(ctx, tk.ID, other.ID)
		require.Error(t, err)
		assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
	})

	t.Run("technician read is unscoped", func(t *testing.T) {
		got, err := svc.Get(ctx, tk.ID)
		require.NoError(t, err)
		assert.Equal(t, tk.ID, got.ID)
	})

	t.Run("reschedule by non-owner is not found", func(t *testing.T) {
		_, err := svc.Reschedule(ctx, tk.ID, other.ID, time.Now().Add(time.Hour))
		require.Error(t, err)
		assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
	})

	t.Run("delete by non-owner is forbidden and keeps the ticket", func(t *testing.T) {
		err := svc.Delete(ctx, tk.ID, other.ID)
		require.Error(t, err)
		assert.Equal(t, errs.KindForbidden, errs.KindOf(err))

		var count int64
		require.NoError(t, db.Model(&model.Ticket{}).Where("id = ?", tk.ID).Count(&count).Error)
		assert.EqualValues(t, 1, count)
	})
}

func TestTicketReschedule(t *testing.T) {
	db := newTestDB(t)
	client := seedUser(t, db, "client@example.com", model.RoleClient)
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	svc := NewTicketService(db, fixedClock(now))
	ctx := context.Background()

	t.Run("past appointment rejected, status untouched", func(t *testing.T) {
		tk := seedTicket(t, db, client.ID, model.TicketStatusPending)
		_, err := svc.Reschedule(ctx, tk.ID, client.ID, now.Add(-time.Hour))
		require.Error(t, err)
		assert.Equal(t, errs.KindValidation, errs.KindOf(err))
		assert.Equal(t, model.TicketStatusPending, ticketStatus(t, db, tk.ID))
	})

	t.Run("future appointment moves ticket to planified", func(t *testing.T) {
		tk := seedTicket(t, db, client.ID, model.TicketStatusPending)
		at := now.Add(72 * time.Hour)
		got, err := svc.Reschedule(ctx, tk.ID, client.ID, at)
		require.NoError(t, err)
		assert.Equal(t, model.TicketStatusPlanified, got.Status)
		require.NotNil(t, got.AppointmentAt)
		assert.True(t, got.AppointmentAt.Equal(at))
	})

	t.Run("rejected once work started or finished", func(t *testing.T) {
		for _, status := range []model.TicketStatus{
			model.TicketStatusInProgress, model.TicketStatusCompleted, model.TicketStatusSuspended,
		} {
			tk := seedTicket(t, db, client.ID, status)
			_, err := svc.Reschedule(ctx, tk.ID, client.ID, now.Add(time.Hour))
			require.Error(t, err, "status %s", status)
			assert.Equal(t, errs.KindInvalidTransition, errs.KindOf(err))
			assert.Equal(t, status, ticketStatus(t, db, tk.ID))
		}
	})
}

func TestTicketDelete(t *testing.T) {
	db := newTestDB(t)
	client := seedUser(t, db, "client@example.com", model.RoleClient)
	tech := seedUser(t, db, "tech@example.com", model.RoleTechnician)
	svc := NewTicketService(db, nil)
	ctx := context.Background()

	t.Run("delete cascades to dependent records", func(t *testing.T) {
		tk := seedTicket(t, db, client.ID, model.TicketStatusPlanified)
		require.NoError(t, db.Create(&model.Intervention{
			TicketID: tk.ID, ClientID: client.ID, TechnicianID: tech.ID, TakenOn: time.Now(),
		}).Error)
		require.NoError(t, db.Create(&model.Payment{
			TicketID: tk.ID, ClientID: client.ID, Method: "stripe", Status: model.PaymentStatusPending,
		}).Error)

		require.NoError(t, svc.Delete(ctx, tk.ID, client.ID))

		var count int64
		require.NoError(t, db.Model(&model.Ticket{}).Where("id = ?", tk.ID).Count(&count).Error)
		assert.EqualValues(t, 0, count)
		for _, m := range []interface{}{&model.Intervention{}, &model.Payment{}} {
			require.NoError(t, db.Model(m).Where("ticket_id = ?", tk.ID).Count(&count).Error)
			assert.EqualValues(t, 0, count)
		}
	})

	t.Run("rejected once work started or finished", func(t *testing.T) {
		for _, status := range []model.TicketStatus{
			model.TicketStatusInProgress, model.TicketStatusCompleted, model.TicketStatusSuspended,
		} {
			tk := seedTicket(t, db, client.ID, status)
			err := svc.Delete(ctx, tk.ID, client.ID)
			require.Error(t, err, "status %s", status)
			assert.Equal(t, errs.KindInvalidTransition, errs.KindOf(err))
		}
	})

	t.Run("unknown ticket is not found", func(t *testing.T) {
		err := svc.Delete(ctx, 99999, client.ID)
		require.Error(t, err)
		assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
	})
}

func TestTicketLists(t *testing.T) {
	db := newTestDB(t)
	alice := seedUser(t, db, "alice@example.com", model.RoleClient)
	bob := seedUser(t, db, "bob@example.com", model.RoleClient)
	svc := NewTicketService(db, nil)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	mk := func(clientID uint64, createdAt time.Time) *model.Ticket {
		tk := &model.Ticket{
			ClientID: clientID, ProblemType: "p", Description: "d", Address: "a",
			Status: model.TicketStatusPending, CreatedAt: createdAt,
		}
		require.NoError(t, db.Create(tk).Error)
		return tk
	}
	older := mk(alice.ID, base)
	newer := mk(alice.ID, base.Add(time.Hour))
	mk(bob.ID, base.Add(30*time.Minute))

	t.Run("client list is scoped and newest first", func(t *testing.T) {
		items, err := svc.ListForClient(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, newer.ID, items[0].ID)
		assert.Equal(t, older.ID, items[1].ID)
	})

	t.Run("technician list sees everything", func(t *testing.T) {
		items, err := svc.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, items, 3)
	})
}

func TestDashboard(t *testing.T) {
	db := newTestDB(t)
	client := seedUser(t, db, "client@example.com", model.RoleClient)
	tech := seedUser(t, db, "tech@example.com", model.RoleTechnician)
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	svc := NewTicketService(db, fixedClock(now))
	ctx := context.Background()

	seedTicket(t, db, client.ID, model.TicketStatusPending)
	done := seedTicket(t, db, client.ID, model.TicketStatusCompleted)
	working := seedTicket(t, db, client.ID, model.TicketStatusInProgress)
	_ = done

	started := now.Add(-time.Hour)
	require.NoError(t, db.Create(&model.Intervention{
		TicketID: working.ID, ClientID: client.ID, TechnicianID: tech.ID,
		StartedAt: &started, TakenOn: started,
	}).Error)

	dash, err := svc.Dashboard(ctx, tech.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, dash.Summary.TicketsToday)
	assert.EqualValues(t, 1, dash.Summary.PendingTickets)
	assert.EqualValues(t, 1, dash.Summary.CompletedTickets)
	require.NotNil(t, dash.ActiveIntervention)
	require.NotNil(t, dash.ActiveTicket)
	assert.Equal(t, working.ID, dash.ActiveTicket.ID)
	assert.Len(t, dash.AllTickets, 3)
	assert.NotEmpty(t, dash.RecentTickets)
}
