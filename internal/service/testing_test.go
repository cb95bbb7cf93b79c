package service

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/omeasupport/dispatch-service/internal/model"
)

// newTestDB opens a file-backed sqlite database with the same schema shape
// as the postgres migrations, including the partial unique index guarding
// open interventions.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "dispatch_test.db") +
		"?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Ticket{},
		&model.Intervention{},
		&model.Report{},
		&model.Payment{},
	))
	require.NoError(t, db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_open_intervention
		 ON interventions(ticket_id, technician_id) WHERE heure_fin IS NULL`,
	).Error)
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string, role model.Role) *model.User {
	t.Helper()
	u := &model.User{
		LastName:     "Test",
		FirstName:    "User",
		Email:        email,
		PasswordHash: "x",
		Phone:        "06" + email,
		Role:         role,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedTicket(t *testing.T, db *gorm.DB, clientID uint64, status model.TicketStatus) *model.Ticket {
	t.Helper()
	tk := &model.Ticket{
		ClientID:    clientID,
		ProblemType: "plomberie",
		Description: "fuite sous l'évier",
		Address:     "12 rue des Lilas",
		Photos:      model.PhotoList{},
		Status:      status,
	}
	require.NoError(t, db.Create(tk).Error)
	return tk
}

func ticketStatus(t *testing.T, db *gorm.DB, id uint64) model.TicketStatus {
	t.Helper()
	var tk model.Ticket
	require.NoError(t, db.First(&tk, id).Error)
	return tk.Status
}

func fixedClock(at time.Time) Clock {
	return func() time.Time { return at }
}
