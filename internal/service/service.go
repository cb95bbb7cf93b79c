package service

import (
	"time"

	"gorm.io/gorm"

	"github.com/omeasupport/dispatch-service/internal/errs"
	"github.com/omeasupport/dispatch-service/internal/model"
)

// Clock supplies the current time. Injected so transition tests can use
// fixed times.
type Clock func() time.Time

// setStatus performs a compare-and-swap on the ticket status column. The
// WHERE guard on the previous status means a concurrent writer that got
// there first makes this a no-op, which we surface as a transition
// conflict instead of silently clobbering the other write.
func setStatus(tx *gorm.DB, ticketID uint64, from, to model.TicketStatus) error {
	res := tx.Model(&model.Ticket{}).
		Where("id = ? AND statut = ?", ticketID, from).
		Update("statut", to)
	if res.Error != nil {
		return errs.Internal("mise à jour du statut impossible", res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.InvalidTransition("le statut du ticket a changé entre-temps")
	}
	return nil
}
