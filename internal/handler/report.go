package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/omeasupport/dispatch-service/internal/errs"
	"github.com/omeasupport/dispatch-service/internal/middleware"
	"github.com/omeasupport/dispatch-service/internal/model"
	"github.com/omeasupport/dispatch-service/internal/service"
)

type ReportHandler struct {
	reports *service.ReportService
}

func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

type submitReportRequest struct {
	Solution string  `json:"solution" binding:"required"`
	Duration string  `json:"duree" binding:"required"`
	Price    float64 `json:"prix"`
	Status   string  `json:"statut" binding:"required"`
}

// Submit files the closing report for a completed ticket.
func (h *ReportHandler) Submit(c *gin.Context) {
	claims := middleware.Claims(c)
	id, ok := ticketID(c)
	if !ok {
		return
	}
	var req submitReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errs.Validation("solution, duree et statut sont requis"))
		return
	}
	report, err := h.reports.Submit(c.Request.Context(), id, claims.UserID, service.SubmitReportInput{
		Solution: req.Solution,
		Duration: req.Duration,
		Price:    req.Price,
		Status:   model.TicketStatus(req.Status),
	})
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "rapport enregistré", report)
}
