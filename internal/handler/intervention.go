package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/omeasupport/dispatch-service/internal/kafka"
	"github.com/omeasupport/dispatch-service/internal/middleware"
	"github.com/omeasupport/dispatch-service/internal/service"
)

type InterventionHandler struct {
	interventions *service.InterventionService
	tickets       *service.TicketService
	producer      kafka.TicketEventProducer
}

func NewInterventionHandler(interventions *service.InterventionService, tickets *service.TicketService, producer kafka.TicketEventProducer) *InterventionHandler {
	return &InterventionHandler{interventions: interventions, tickets: tickets, producer: producer}
}

// Start opens (or resumes) the technician's work session on a ticket and
// moves the ticket to in_progress.
func (h *InterventionHandler) Start(c *gin.Context) {
	claims := middleware.Claims(c)
	id, ok := ticketID(c)
	if !ok {
		return
	}
	intervention, err := h.interventions.Start(c.Request.Context(), id, claims.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	h.notify(c, id, "ticket.started")
	respond(c, http.StatusOK, "intervention démarrée", intervention)
}

// End closes the open work session and moves the ticket to completed.
func (h *InterventionHandler) End(c *gin.Context) {
	claims := middleware.Claims(c)
	id, ok := ticketID(c)
	if !ok {
		return
	}
	intervention, err := h.interventions.End(c.Request.Context(), id, claims.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	h.notify(c, id, "ticket.completed")
	respond(c, http.StatusOK, "intervention terminée", intervention)
}

func (h *InterventionHandler) notify(c *gin.Context, ticketID uint64, event string) {
	if t, err := h.tickets.Get(c.Request.Context(), ticketID); err == nil {
		h.producer.ProduceTicketEvent(c.Request.Context(), event, t)
	}
}
