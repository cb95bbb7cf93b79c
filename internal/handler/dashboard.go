package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/omeasupport/dispatch-service/internal/middleware"
	"github.com/omeasupport/dispatch-service/internal/service"
)

type DashboardHandler struct {
	tickets *service.TicketService
}

func NewDashboardHandler(tickets *service.TicketService) *DashboardHandler {
	return &DashboardHandler{tickets: tickets}
}

// Show renders the technician landing view: daily counters, the open work
// session if any, and the ticket backlog.
func (h *DashboardHandler) Show(c *gin.Context) {
	claims := middleware.Claims(c)
	dashboard, err := h.tickets.Dashboard(c.Request.Context(), claims.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "tableau de bord", dashboard)
}
