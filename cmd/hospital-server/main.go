package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/bits-grahate/hospital-management-system/internal/config"
	"github.com/bits-grahate/hospital-management-system/internal/domain/appointment"
	"github.com/bits-grahate/hospital-management-system/internal/domain/billing"
	"github.com/bits-grahate/hospital-management-system/internal/domain/doctor"
	"github.com/bits-grahate/hospital-management-system/internal/domain/patient"
	"github.com/bits-grahate/hospital-management-system/internal/platform/clients"
	"github.com/bits-grahate/hospital-management-system/internal/platform/db"
	"github.com/bits-grahate/hospital-management-system/internal/platform/events"
	"github.com/bits-grahate/hospital-management-system/internal/platform/lock"
	"github.com/bits-grahate/hospital-management-system/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hospital-server",
		Short: "Hospital back-office API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Booking and reschedule critical sections run under a distributed
	// lock when Redis is configured; a single-instance deployment falls
	// back to in-process locking.
	locker := lock.NewMemoryLocker()
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		locker = lock.NewRedisLocker(redis.NewClient(opts), 30*time.Second)
		logger.Info().Msg("using redis slot locking")
	}

	inTx := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.WithTx(ctx, pool, fn)
	}

	httpClient := clients.NewHTTPClient(cfg.ClientTimeout())

	// Repositories.
	patientRepo := patient.NewRepoPG(pool)
	doctorRepo := doctor.NewRepoPG(pool)
	apptRepo := appointment.NewRepoPG(pool)
	billRepo := billing.NewRepoPG(pool)
	processedRepo := billing.NewProcessedEventRepoPG(pool)
	eventRepo := events.NewRepoPG(pool)

	// Services. Collaborator lookups go over HTTP when a base URL is
	// configured and stay in-process otherwise.
	patientSvc := patient.NewService(patientRepo, logger)

	var counter doctor.AppointmentCounter = apptRepo
	if cfg.AppointmentServiceURL != "" {
		counter = clients.NewAppointmentClient(cfg.AppointmentServiceURL, httpClient)
	}
	doctorSvc := doctor.NewService(doctorRepo, counter, cfg.DailyCap, logger)

	var directory appointment.PatientDirectory = &localPatientDirectory{svc: patientSvc}
	if cfg.PatientServiceURL != "" {
		directory = clients.NewPatientClient(cfg.PatientServiceURL, httpClient)
	}

	var availability appointment.AvailabilityChecker = doctorSvc
	if cfg.DoctorServiceURL != "" {
		availability = clients.NewDoctorClient(cfg.DoctorServiceURL, httpClient)
	}

	emitter := events.NewEmitter(eventRepo)
	apptSvc := appointment.NewService(apptRepo, directory, availability, locker, emitter, inTx, logger)

	var slots billing.SlotStartSource = &localSlotSource{repo: apptRepo}
	if cfg.AppointmentServiceURL != "" {
		slots = clients.NewAppointmentClient(cfg.AppointmentServiceURL, httpClient)
	}

	var pharmacy billing.MedicationFeeSource = fixedMedicationFee{}
	if cfg.PharmacyServiceURL != "" {
		pharmacy = clients.NewPharmacyClient(cfg.PharmacyServiceURL, httpClient)
	}

	billingSvc := billing.NewService(billRepo, processedRepo, slots, pharmacy, inTx, logger)

	// Event delivery. Billing is in-process unless a remote billing
	// service is configured; notifications are remote-only.
	var billingSink events.BillingSink = &localBillingSink{svc: billingSvc}
	if cfg.BillingServiceURL != "" {
		billingSink = clients.NewBillingClient(cfg.BillingServiceURL, httpClient)
	}
	var notifier events.NotificationSink
	if cfg.NotificationURL != "" {
		notifier = clients.NewNotificationClient(cfg.NotificationURL, httpClient)
	}

	dispatcher := events.NewDispatcher(eventRepo, billingSink, notifier, cfg.OutboxPollInterval(), logger)
	dispatchCtx, stopDispatch := context.WithCancel(ctx)
	defer stopDispatch()
	go dispatcher.Run(dispatchCtx)

	// Echo server.
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
	}))

	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)
	doctor.NewHandler(doctorSvc).RegisterRoutes(apiV1)
	appointment.NewHandler(apptSvc).RegisterRoutes(apiV1)
	billing.NewHandler(billingSvc).RegisterRoutes(apiV1)

	e.GET("/health", db.HealthHandler(pool))

	// Start server
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	stopDispatch()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// localPatientDirectory serves patient lookups in-process, presenting the
// patient record in the shape the booking path expects.
type localPatientDirectory struct {
	svc *patient.Service
}

func (d *localPatientDirectory) GetPatient(ctx context.Context, id uuid.UUID) (*clients.Patient, error) {
	p, err := d.svc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &clients.Patient{
		ID:     p.ID,
		Name:   p.Name,
		Email:  p.Email,
		Phone:  p.Phone,
		Active: p.Active,
	}, nil
}

// localSlotSource resolves appointment slot starts straight from storage.
type localSlotSource struct {
	repo appointment.Repository
}

func (s *localSlotSource) GetSlotStart(ctx context.Context, appointmentID uuid.UUID) (time.Time, error) {
	appt, err := s.repo.GetByID(ctx, appointmentID)
	if err != nil {
		return time.Time{}, err
	}
	return appt.SlotStart, nil
}

// fixedMedicationFee is the stand-in pharmacy integration: every
// appointment is charged the default medication fee.
type fixedMedicationFee struct{}

func (fixedMedicationFee) MedicationFee(ctx context.Context, appointmentID uuid.UUID) (decimal.Decimal, error) {
	return billing.DefaultMedicationFee, nil
}

// localBillingSink feeds dispatched lifecycle events into the in-process
// billing engine.
type localBillingSink struct {
	svc *billing.Service
}

func (s *localBillingSink) PostEvent(ctx context.Context, ev clients.BillingEvent) error {
	return s.svc.ProcessEvent(ctx, &billing.IngestEvent{
		AppointmentID: ev.AppointmentID,
		PatientID:     ev.PatientID,
		EventType:     ev.EventType,
		CorrelationID: ev.CorrelationID,
	})
}
