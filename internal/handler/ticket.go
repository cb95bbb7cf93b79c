package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/omeasupport/dispatch-service/internal/errs"
	"github.com/omeasupport/dispatch-service/internal/kafka"
	"github.com/omeasupport/dispatch-service/internal/middleware"
	"github.com/omeasupport/dispatch-service/internal/model"
	"github.com/omeasupport/dispatch-service/internal/service"
	"github.com/omeasupport/dispatch-service/internal/storage"
)

type TicketHandler struct {
	tickets  *service.TicketService
	payments *service.PaymentService
	photos   *storage.PhotoStore
	producer kafka.TicketEventProducer
}

func NewTicketHandler(tickets *service.TicketService, payments *service.PaymentService, photos *storage.PhotoStore, producer kafka.TicketEventProducer) *TicketHandler {
	return &TicketHandler{tickets: tickets, payments: payments, photos: photos, producer: producer}
}

type createTicketRequest struct {
	ProblemType string   `form:"type_probleme" json:"type_probleme" binding:"required"`
	Description string   `form:"description" json:"description" binding:"required"`
	Address     string   `form:"adresse" json:"adresse" binding:"required"`
	Photos      []string `json:"photos"`
	DateRdv     string   `form:"date_rdv" json:"date_rdv"`
}

// Create files a new ticket. Accepts JSON with photo references, or
// multipart form data with photo files that get stored first.
func (h *TicketHandler) Create(c *gin.Context) {
	claims := middleware.Claims(c)
	var req createTicketRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, errs.Validation("type_probleme, description et adresse sont requis"))
		return
	}
	var appointment *time.Time
	if req.DateRdv != "" {
		at, err := parseTime(req.DateRdv)
		if err != nil {
			fail(c, errs.Validation("date_rdv invalide"))
			return
		}
		appointment = &at
	}

	photos := req.Photos
	if form, err := c.MultipartForm(); err == nil && form != nil {
		for _, fh := range form.File["photos"] {
			ref, err := h.photos.SaveTicketPhoto(c, fh)
			if err != nil {
				fail(c, errs.Validation("photo invalide"))
				return
			}
			photos = append(photos, ref)
		}
	}

	ticket, err := h.tickets.Create(c.Request.Context(), claims.UserID, service.CreateTicketInput{
		ProblemType:   req.ProblemType,
		Description:   req.Description,
		Address:       req.Address,
		Photos:        photos,
		AppointmentAt: appointment,
	})
	if err != nil {
		fail(c, err)
		return
	}
	h.producer.ProduceTicketEvent(c.Request.Context(), "ticket.created", ticket)
	respond(c, http.StatusCreated, "ticket créé avec succès", ticket)
}

// List returns the caller's tickets newest first. Technicians see every
// ticket, clients only their own.
func (h *TicketHandler) List(c *gin.Context) {
	claims := middleware.Claims(c)
	var (
		items []model.Ticket
		err   error
	)
	if claims.Role == model.RoleTechnician {
		items, err = h.tickets.ListAll(c.Request.Context())
	} else {
		items, err = h.tickets.ListForClient(c.Request.Context(), claims.UserID)
	}
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "liste des tickets", items)
}

// Get returns one ticket. For clients the lookup is ownership-scoped, so a
// foreign ticket is indistinguishable from an absent one.
func (h *TicketHandler) Get(c *gin.Context) {
	claims := middleware.Claims(c)
	id, ok := ticketID(c)
	if !ok {
		return
	}
	var (
		ticket *model.Ticket
		err    error
	)
	if claims.Role == model.RoleTechnician {
		ticket, err = h.tickets.Get(c.Request.Context(), id)
	} else {
		ticket, err = h.tickets.GetForClient(c.Request.Context(), id, claims.UserID)
	}
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "détail du ticket", ticket)
}

type rescheduleRequest struct {
	DateRdv string `json:"date_rdv" binding:"required"`
}

func (h *TicketHandler) Reschedule(c *gin.Context) {
	claims := middleware.Claims(c)
	id, ok := ticketID(c)
	if !ok {
		return
	}
	var req rescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errs.Validation("date_rdv est requis"))
		return
	}
	at, err := parseTime(req.DateRdv)
	if err != nil {
		fail(c, errs.Validation("date_rdv invalide"))
		return
	}
	ticket, err := h.tickets.Reschedule(c.Request.Context(), id, claims.UserID, at)
	if err != nil {
		fail(c, err)
		return
	}
	h.producer.ProduceTicketEvent(c.Request.Context(), "ticket.rescheduled", ticket)
	respond(c, http.StatusOK, "rendez-vous replanifié", ticket)
}

func (h *TicketHandler) Delete(c *gin.Context) {
	claims := middleware.Claims(c)
	id, ok := ticketID(c)
	if !ok {
		return
	}
	ticket, _ := h.tickets.GetForClient(c.Request.Context(), id, claims.UserID)
	if err := h.tickets.Delete(c.Request.Context(), id, claims.UserID); err != nil {
		fail(c, err)
		return
	}
	if ticket != nil {
		h.producer.ProduceTicketEvent(c.Request.Context(), "ticket.deleted", ticket)
	}
	respond(c, http.StatusOK, "ticket supprimé", nil)
}

// PaymentLink returns (creating on first call) the payment link for a
// finished ticket.
func (h *TicketHandler) PaymentLink(c *gin.Context) {
	claims := middleware.Claims(c)
	id, ok := ticketID(c)
	if !ok {
		return
	}
	payment, err := h.payments.Link(c.Request.Context(), id, claims.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "lien de paiement", payment)
}

func ticketID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		fail(c, errs.Validation("identifiant de ticket invalide"))
		return 0, false
	}
	return id, true
}

// parseTime accepts RFC 3339 or the "2006-01-02 15:04:05" shape the
// mobile client sends.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02 15:04:05", s, time.Local)
}
