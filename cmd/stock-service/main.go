package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/resicare/resicare-backend/internal/stock/consumers"
	"github.com/resicare/resicare-backend/internal/stock/events"
	"github.com/resicare/resicare-backend/internal/stock/handler"
	"github.com/resicare/resicare-backend/internal/stock/repository"
	"github.com/resicare/resicare-backend/internal/stock/service"
	"github.com/resicare/resicare-backend/pkg/authn"
	"github.com/resicare/resicare-backend/pkg/config"
	"github.com/resicare/resicare-backend/pkg/database"
	"github.com/resicare/resicare-backend/pkg/httputil"
	"github.com/resicare/resicare-backend/pkg/i18n"
	"github.com/resicare/resicare-backend/pkg/logger"
	"github.com/resicare/resicare-backend/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("stock-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("stock-service", cfg.Server.Environment)
	log.Info().Msg("starting Stock Service")

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	publisher, err := events.NewStockEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Repositories
	itemRepo := repository.NewItemRepository(db)
	lotRepo := repository.NewLotRepository(db)
	movementRepo := repository.NewMovementRepository(db)
	rxRepo := repository.NewPrescriptionRepository(db)
	adminRepo := repository.NewAdministrationRepository(db)
	auditRepo := repository.NewAuditTrailRepository(db)
	patientRepo := repository.NewPatientCacheRepository(db)

	// Services
	stockService := service.NewStockService(
		db, itemRepo, lotRepo, movementRepo, rxRepo, adminRepo, auditRepo,
		publisher, log, cfg.Stock.NearExpiryDays,
	)
	prescriptionService := service.NewPrescriptionService(rxRepo, itemRepo, patientRepo, log)

	// Handlers
	itemHandler := handler.NewItemHandler(stockService, log)
	lotHandler := handler.NewLotHandler(stockService, log)
	administrationHandler := handler.NewAdministrationHandler(stockService, log)
	prescriptionHandler := handler.NewPrescriptionHandler(prescriptionService, log)
	movementHandler := handler.NewMovementHandler(stockService, log)
	healthHandler := handler.NewHealthHandler(db, rmq)

	// Resident event consumer keeps the patient cache current
	patientConsumer, err := consumers.NewPatientEventConsumer(rmq, patientRepo, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create patient event consumer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := patientConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start patient event consumer")
	}

	verifier := authn.NewVerifier(&cfg.JWT)

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(i18n.Middleware)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Accept-Language"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(httputil.Authenticate(verifier))

	r.Get("/health", healthHandler.Check)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/stock-items", func(r chi.Router) {
			r.Get("/", itemHandler.List)
			r.Post("/", itemHandler.Create)
			r.Get("/{id}", itemHandler.Get)
			r.Put("/{id}", itemHandler.Update)
		})
		r.Get("/stock-items-bajo-stock", itemHandler.LowStock)
		r.Get("/stock-items-proximos-vencer", itemHandler.NearExpiry)

		r.Route("/lotes-stock", func(r chi.Router) {
			r.Get("/", lotHandler.List)
			r.Post("/", lotHandler.Receive)
			r.Get("/{id}", lotHandler.Get)
			r.Put("/{id}", lotHandler.Update)
			r.Delete("/{id}", lotHandler.Delete)
		})

		r.Route("/medicaciones", func(r chi.Router) {
			r.Get("/", prescriptionHandler.ListByPatient)
			r.Post("/", prescriptionHandler.Create)
			r.Get("/{id}", prescriptionHandler.Get)
			r.Put("/{id}", prescriptionHandler.Update)
		})
		r.Get("/medicamentos/estado", prescriptionHandler.Audit)

		r.Route("/registro-medicaciones", func(r chi.Router) {
			r.Get("/", administrationHandler.List)
			r.Post("/", administrationHandler.Create)
		})

		r.Get("/movimientos-stock", movementHandler.List)
		r.Get("/reportes/consumos", movementHandler.Consumption)
		r.Get("/auditoria-stock", movementHandler.AuditTrail)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
