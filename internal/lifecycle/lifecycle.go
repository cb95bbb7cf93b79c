// Package lifecycle owns the ticket status state machine. Every mutating
// operation on a ticket consults it before writing; no other package decides
// whether a status change is legal.
package lifecycle

import (
	"github.com/omeasupport/dispatch-service/internal/errs"
	"github.com/omeasupport/dispatch-service/internal/model"
)

// Operation is a ticket mutation gated by the state machine.
type Operation string

const (
	OpReschedule Operation = "reschedule"
	OpDelete     Operation = "delete"
	OpStart      Operation = "start"
	OpEnd        Operation = "end"
	OpReport     Operation = "report"
)

// notStarted are the statuses where a client can still edit the ticket and a
// technician can still take it: no work session has happened yet.
// "assign" is reserved for a future claim operation; nothing produces it
// today, but data holding it must keep working.
var notStarted = map[model.TicketStatus]bool{
	model.TicketStatusPending:   true,
	model.TicketStatusAssigned:  true,
	model.TicketStatusPlanified: true,
}

var allowed = map[Operation]map[model.TicketStatus]bool{
	OpReschedule: notStarted,
	OpDelete:     notStarted,
	OpStart:      notStarted,
	OpEnd:        {model.TicketStatusInProgress: true},
	OpReport:     {model.TicketStatusCompleted: true},
}

// Allowed reports whether op is legal for a ticket currently in status.
func Allowed(op Operation, status model.TicketStatus) bool {
	return allowed[op][status]
}

// Check returns an InvalidTransition error when op is not legal for status.
func Check(op Operation, status model.TicketStatus) error {
	if Allowed(op, status) {
		return nil
	}
	switch op {
	case OpReschedule:
		return errs.InvalidTransition("impossible de replanifier un ticket %s", status)
	case OpDelete:
		return errs.InvalidTransition("impossible de supprimer un ticket %s", status)
	case OpStart:
		return errs.InvalidTransition("impossible de démarrer l'intervention, le ticket est déjà %s", status)
	case OpEnd:
		return errs.InvalidTransition("impossible de terminer l'intervention d'un ticket %s", status)
	case OpReport:
		return errs.InvalidTransition("le rapport ne peut être créé que pour un ticket completed, statut actuel: %s", status)
	}
	return errs.InvalidTransition("opération %s interdite pour un ticket %s", op, status)
}

// Result gives the status a successful op moves the ticket to. OpDelete
// removes the row and OpReport carries its own final status, so neither is
// answered here.
func Result(op Operation) (model.TicketStatus, bool) {
	switch op {
	case OpReschedule:
		return model.TicketStatusPlanified, true
	case OpStart:
		return model.TicketStatusInProgress, true
	case OpEnd:
		return model.TicketStatusCompleted, true
	}
	return "", false
}

// ValidFinalStatus reports whether s is an acceptable report disposition.
// A report confirms completion or retroactively suspends the job.
func ValidFinalStatus(s model.TicketStatus) bool {
	return s == model.TicketStatusCompleted || s == model.TicketStatusSuspended
}
