package application

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/omeasupport/dispatch-service/internal/auth"
	"github.com/omeasupport/dispatch-service/internal/config"
	"github.com/omeasupport/dispatch-service/internal/database"
	"github.com/omeasupport/dispatch-service/internal/handler"
	"github.com/omeasupport/dispatch-service/internal/kafka"
	"github.com/omeasupport/dispatch-service/internal/middleware"
	"github.com/omeasupport/dispatch-service/internal/router"
	"github.com/omeasupport/dispatch-service/internal/service"
	"github.com/omeasupport/dispatch-service/internal/storage"
)

// API is the HTTP application (mode api).
type API struct {
	cfg      *config.Config
	httpSrv  *http.Server
	producer *kafka.Producer
}

func NewAPI(cfg *config.Config) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := database.MigrateUp(cfg.DatabaseURL()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	photos, err := storage.NewPhotoStore(cfg.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicTicket)

	userSvc := service.NewUserService(db)
	ticketSvc := service.NewTicketService(db, nil)
	interventionSvc := service.NewInterventionService(db, nil)
	reportSvc := service.NewReportService(db, nil)
	paymentSvc := service.NewPaymentService(db, cfg.PaymentBaseURL)

	h := router.Handlers{
		Auth:         handler.NewAuthHandler(userSvc, jwtManager, photos),
		Ticket:       handler.NewTicketHandler(ticketSvc, paymentSvc, photos, producer),
		Intervention: handler.NewInterventionHandler(interventionSvc, ticketSvc, producer),
		Report:       handler.NewReportHandler(reportSvc),
		Dashboard:    handler.NewDashboardHandler(ticketSvc),
		AuthGuard:    middleware.NewAuthMiddleware(jwtManager),
		UploadDir:    photos.Dir(),
	}

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.New(h),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &API{cfg: cfg, httpSrv: httpSrv, producer: producer}, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (a *API) Run(ctx context.Context) error {
	host := a.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	base := "http://" + host + ":" + a.cfg.HTTPPort
	log.Printf("HTTP server listening on %s", a.httpSrv.Addr)
	log.Printf("  Swagger UI:    %s/swagger", base)
	log.Printf("  Swagger spec:  %s/swagger/openapi.json", base)
	log.Printf("  Health:        %s/health", base)
	log.Printf("  Ready:         %s/ready", base)
	log.Printf("  API v1:        %s/api/v1/", base)

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := a.producer.Close(); err != nil {
		log.Printf("kafka close: %v", err)
	}
	return nil
}
