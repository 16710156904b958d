package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinicflow/clinicflow/internal/config"
	"github.com/clinicflow/clinicflow/internal/domain/appointment"
	"github.com/clinicflow/clinicflow/internal/domain/billing"
	"github.com/clinicflow/clinicflow/internal/domain/fees"
	"github.com/clinicflow/clinicflow/internal/domain/medbill"
	"github.com/clinicflow/clinicflow/internal/domain/patient"
	"github.com/clinicflow/clinicflow/internal/domain/pharmacy"
	"github.com/clinicflow/clinicflow/internal/domain/visit"
	"github.com/clinicflow/clinicflow/internal/platform/auth"
	"github.com/clinicflow/clinicflow/internal/platform/db"
	"github.com/clinicflow/clinicflow/internal/platform/metrics"
	"github.com/clinicflow/clinicflow/internal/platform/middleware"
	"github.com/clinicflow/clinicflow/internal/platform/poller"
)

func main() {
	root := &cobra.Command{
		Use:   "clinic-server",
		Short: "Clinic visit-to-billing pipeline server",
	}

	root.AddCommand(serveCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and background polling loops",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger := newLogger(cfg)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer pool.Close()

			reg := prometheus.NewRegistry()
			m := metrics.NewWithRegistry(reg)

			// Repositories
			patientRepo := patient.NewRepo(pool)
			apptRepo := appointment.NewRepo(pool)
			visitRepo := visit.NewRepo(pool)
			pharmacyRepo := pharmacy.NewRepo(pool)
			billingRepo := billing.NewRepo(pool)
			medbillRepo := medbill.NewRepo(pool)

			// Services
			resolver := fees.NewResolver(apptRepo, cfg.NewPatientFee, cfg.FollowUpFee)
			patientSvc := patient.NewService(patientRepo)
			apptSvc := appointment.NewService(apptRepo)
			visitSvc := visit.NewService(visitRepo)
			pharmacySvc := pharmacy.NewService(pharmacyRepo, visitRepo, patientRepo, apptRepo, m, logger)
			billingSvc := billing.NewService(billingRepo, resolver, pharmacyRepo, visitRepo, patientRepo, apptRepo, m, logger)
			medbillSvc := medbill.NewService(medbillRepo, logger)

			// markPrepared admits to billing inline; the sweep covers the rest.
			pharmacySvc.SetAdmitter(billingSvc)

			e := echo.New()
			e.HideBanner = true
			e.HidePort = true
			e.Use(middleware.Recovery(logger))
			e.Use(middleware.RequestID())
			e.Use(middleware.Logger(logger))
			e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
				AllowOrigins: cfg.CORSOrigins,
				AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
			}))
			e.Use(middleware.RateLimit(middleware.RateLimitConfig{
				RequestsPerSecond: cfg.RateLimitRPS,
				BurstSize:         cfg.RateLimitBurst,
			}))

			e.GET("/health", db.HealthHandler(pool))
			e.GET("/metrics", echo.WrapHandler(metrics.Handler(reg)))

			api := e.Group("/api/v1")
			if cfg.IsDev() && cfg.JWTSecret == "" {
				logger.Warn().Msg("JWT_SECRET not set, using development auth")
				api.Use(auth.DevAuthMiddleware())
			} else {
				api.Use(auth.JWTMiddleware(cfg.JWTSecret))
			}

			patient.NewHandler(patientSvc).RegisterRoutes(api)
			appointment.NewHandler(apptSvc).RegisterRoutes(api)
			visit.NewHandler(visitSvc).RegisterRoutes(api)
			pharmacy.NewHandler(pharmacySvc).RegisterRoutes(api)
			billing.NewHandler(billingSvc).RegisterRoutes(api)
			medbill.NewHandler(medbillSvc).RegisterRoutes(api)

			refreshLoop := poller.New("pharmacy-refresh", cfg.PharmacyPollInterval(), pharmacySvc.Refresh, logger)
			sweepLoop := poller.New("billing-sweep", cfg.BillingSweepInterval(), billingSvc.Sweep, logger)
			go refreshLoop.Start(ctx)
			go sweepLoop.Start(ctx)

			go func() {
				logger.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server started")
				if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
					logger.Error().Err(err).Msg("server stopped")
					stop()
				}
			}()

			<-ctx.Done()
			logger.Info().Msg("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := e.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	var dir string

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}
	migrate.PersistentFlags().StringVar(&dir, "dir", "migrations", "migrations directory")

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, 2, 1)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer pool.Close()

			applied, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return err
			}
			logger.Info().Int("applied", applied).Msg("migrations up to date")
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, 2, 1)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return err
			}
			for _, s := range statuses {
				state := "pending"
				if s.Applied {
					state = "applied"
				}
				fmt.Printf("%03d  %-30s %s\n", s.Version, s.Name, state)
			}
			return nil
		},
	}

	migrate.AddCommand(up, status)
	return migrate
}
