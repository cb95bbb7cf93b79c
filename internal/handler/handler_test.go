package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/omeasupport/dispatch-service/internal/auth"
	"github.com/omeasupport/dispatch-service/internal/handler"
	"github.com/omeasupport/dispatch-service/internal/middleware"
	"github.com/omeasupport/dispatch-service/internal/model"
	"github.com/omeasupport/dispatch-service/internal/router"
	"github.com/omeasupport/dispatch-service/internal/service"
	"github.com/omeasupport/dispatch-service/internal/storage"
)

// eventRecorder stands in for the Kafka producer.
type eventRecorder struct {
	events []string
}

func (r *eventRecorder) ProduceTicketEvent(_ context.Context, event string, _ *model.Ticket) {
	r.events = append(r.events, event)
}

type testEnv struct {
	srv    http.Handler
	db     *gorm.DB
	events *eventRecorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := filepath.Join(t.TempDir(), "dispatch_test.db") +
		"?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{}, &model.Ticket{}, &model.Intervention{}, &model.Report{}, &model.Payment{},
	))
	require.NoError(t, db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_open_intervention
		 ON interventions(ticket_id, technician_id) WHERE heure_fin IS NULL`,
	).Error)

	photos, err := storage.NewPhotoStore(t.TempDir())
	require.NoError(t, err)

	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	events := &eventRecorder{}

	userSvc := service.NewUserService(db)
	ticketSvc := service.NewTicketService(db, nil)
	interventionSvc := service.NewInterventionService(db, nil)
	reportSvc := service.NewReportService(db, nil)
	paymentSvc := service.NewPaymentService(db, "https://paiement.test")

	srv := router.New(router.Handlers{
		Auth:         handler.NewAuthHandler(userSvc, jwtManager, photos),
		Ticket:       handler.NewTicketHandler(ticketSvc, paymentSvc, photos, events),
		Intervention: handler.NewInterventionHandler(interventionSvc, ticketSvc, events),
		Report:       handler.NewReportHandler(reportSvc),
		Dashboard:    handler.NewDashboardHandler(ticketSvc),
		AuthGuard:    middleware.NewAuthMiddleware(jwtManager),
		UploadDir:    photos.Dir(),
	})
	return &testEnv{srv: srv, db: db, events: events}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.srv.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope struct {
		Status  bool            `json:"status"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	out := map[string]interface{}{}
	if len(envelope.Data) > 0 {
		require.NoError(t, json.Unmarshal(envelope.Data, &out))
	}
	return out
}

func (e *testEnv) register(t *testing.T, email string, role model.Role) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"nom": "Test", "prenom": "User",
		"email": email, "password": "s3cret!",
		"telephone": "06" + email, "role": string(role),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	token, _ := decodeData(t, w)["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func (e *testEnv) createTicket(t *testing.T, token string) uint64 {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/tickets", token, gin.H{
		"type_probleme": "plomberie",
		"description":   "fuite sous l'évier",
		"adresse":       "12 rue des Lilas",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id, _ := decodeData(t, w)["id"].(float64)
	require.NotZero(t, id)
	return uint64(id)
}

func TestAuthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	t.Run("register then login", func(t *testing.T) {
		env.register(t, "awa@example.com", model.RoleClient)

		w := env.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{
			"email": "awa@example.com", "password": "s3cret!",
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, decodeData(t, w)["token"])
	})

	t.Run("wrong password is 401", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{
			"email": "awa@example.com", "password": "nope",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("profile requires a token", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/auth/profile", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("profile round trip", func(t *testing.T) {
		token := env.register(t, "moussa@example.com", model.RoleTechnician)

		w := env.do(t, http.MethodGet, "/api/v1/auth/profile", token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = env.do(t, http.MethodPut, "/api/v1/auth/profile", token, gin.H{"ville": "Thiès"})
		require.Equal(t, http.StatusOK, w.Code)

		w = env.do(t, http.MethodPost, "/api/v1/auth/change-password", token, gin.H{
			"current_password": "s3cret!", "new_password": "encore-plus-s3cret",
		})
		require.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRoleEnforcement(t *testing.T) {
	env := newTestEnv(t)
	client := env.register(t, "client@example.com", model.RoleClient)
	tech := env.register(t, "tech@example.com", model.RoleTechnician)

	t.Run("technician cannot file tickets", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/tickets", tech, gin.H{
			"type_probleme": "x", "description": "y", "adresse": "z",
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("client cannot open the dashboard", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/dashboard", client, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("client cannot start interventions", func(t *testing.T) {
		id := env.createTicket(t, client)
		w := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/tickets/%d/start", id), client, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestTicketEndpoints(t *testing.T) {
	env := newTestEnv(t)
	client := env.register(t, "client@example.com", model.RoleClient)
	other := env.register(t, "other@example.com", model.RoleClient)

	id := env.createTicket(t, client)

	t.Run("missing fields are 422", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/tickets", client, gin.H{"description": "seule"})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("owner sees the ticket, others get 404", func(t *testing.T) {
		w := env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/tickets/%d", id), client, nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/tickets/%d", id), other, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("reschedule to the past is 422", func(t *testing.T) {
		w := env.do(t, http.MethodPut, fmt.Sprintf("/api/v1/tickets/%d/reschedule", id), client, gin.H{
			"date_rdv": time.Now().Add(-time.Hour).Format(time.RFC3339),
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("reschedule to the future planifies", func(t *testing.T) {
		w := env.do(t, http.MethodPut, fmt.Sprintf("/api/v1/tickets/%d/reschedule", id), client, gin.H{
			"date_rdv": time.Now().Add(48 * time.Hour).Format(time.RFC3339),
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, string(model.TicketStatusPlanified), decodeData(t, w)["statut"])
	})

	t.Run("payment link before completion is 400", func(t *testing.T) {
		w := env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/tickets/%d/payment", id), client, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("delete emits an event", func(t *testing.T) {
		w := env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/tickets/%d", id), client, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, env.events.events, "ticket.deleted")
	})
}

func TestInterventionAndReportEndpoints(t *testing.T) {
	env := newTestEnv(t)
	client := env.register(t, "client@example.com", model.RoleClient)
	tech := env.register(t, "tech@example.com", model.RoleTechnician)

	id := env.createTicket(t, client)

	t.Run("end before start is 400", func(t *testing.T) {
		w := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/tickets/%d/end", id), tech, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("start moves the ticket to in_progress", func(t *testing.T) {
		w := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/tickets/%d/start", id), tech, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/tickets/%d", id), tech, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, string(model.TicketStatusInProgress), decodeData(t, w)["statut"])
	})

	t.Run("dashboard shows the active intervention", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/dashboard", tech, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotNil(t, decodeData(t, w)["active_intervention"])
	})

	t.Run("report before end is 400", func(t *testing.T) {
		w := env.do(t, http.MethodPut, fmt.Sprintf("/api/v1/tickets/%d/report", id), tech, gin.H{
			"solution": "joint remplacé", "duree": "1h", "prix": 50.0, "statut": "completed",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("end then report then payment link", func(t *testing.T) {
		w := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/tickets/%d/end", id), tech, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = env.do(t, http.MethodPut, fmt.Sprintf("/api/v1/tickets/%d/report", id), tech, gin.H{
			"solution": "joint remplacé", "duree": "1h", "prix": 50.0, "statut": "suspendu",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/tickets/%d/payment", id), client, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		link, _ := decodeData(t, w)["payment_link"].(string)
		assert.Equal(t, fmt.Sprintf("https://paiement.test/pay?ticket_id=%d", id), link)
	})

	t.Run("lifecycle events reached the producer", func(t *testing.T) {
		assert.Contains(t, env.events.events, "ticket.created")
		assert.Contains(t, env.events.events, "ticket.started")
		assert.Contains(t, env.events.events, "ticket.completed")
	})
}
