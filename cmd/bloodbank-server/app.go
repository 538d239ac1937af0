package main

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/bloodbank/bloodbank/internal/config"
	"github.com/bloodbank/bloodbank/internal/domain/audit"
	"github.com/bloodbank/bloodbank/internal/domain/donation"
	"github.com/bloodbank/bloodbank/internal/domain/inventory"
	"github.com/bloodbank/bloodbank/internal/domain/registry"
	"github.com/bloodbank/bloodbank/internal/domain/report"
	"github.com/bloodbank/bloodbank/internal/domain/scoring"
	"github.com/bloodbank/bloodbank/internal/platform/db"
	"github.com/bloodbank/bloodbank/internal/platform/lock"
	"github.com/bloodbank/bloodbank/internal/platform/memdb"
	"github.com/bloodbank/bloodbank/internal/platform/metrics"
	"github.com/bloodbank/bloodbank/internal/platform/middleware"
	"github.com/bloodbank/bloodbank/internal/platform/validate"
)

// transactor is satisfied by both *db.TxRunner and *memdb.DB.
type transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// stores bundles the repositories of one backend.
type stores struct {
	tx       transactor
	pinger   db.Pinger
	units    inventory.Repository
	donors   registry.DonorRepository
	patients registry.PatientRepository
	events   donation.Repository
	audit    audit.Log
	close    func()
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if !cfg.UsesPostgres() {
		store := memdb.New(cfg.LockTimeout)
		return &stores{
			tx:       store,
			pinger:   store,
			units:    inventory.NewRepoMemory(store),
			donors:   registry.NewDonorRepoMemory(store),
			patients: registry.NewPatientRepoMemory(store),
			events:   donation.NewRepoMemory(store),
			audit:    audit.NewLogMemory(store),
			close:    func() {},
		}, nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, cfg.DBSchema)
	if err != nil {
		return nil, err
	}
	return &stores{
		tx:       db.NewTxRunner(pool, cfg.LockTimeout),
		pinger:   pool,
		units:    inventory.NewRepoPG(pool),
		donors:   registry.NewDonorRepoPG(pool),
		patients: registry.NewPatientRepoPG(pool),
		events:   donation.NewRepoPG(pool),
		audit:    audit.NewLogPG(pool),
		close:    pool.Close,
	}, nil
}

// newServer wires every handler onto a fresh echo instance.
func newServer(ctx context.Context, cfg *config.Config, st *stores, logger zerolog.Logger, reg *prometheus.Registry) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validate.New()

	// Global middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(echomw.SecureWithConfig(echomw.DefaultSecureConfig))
	e.Use(echomw.BodyLimit("1M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderContentType, middleware.RequestIDHeader},
	}))

	m := metrics.New(reg)
	e.GET("/metrics", metrics.Handler(reg))
	e.GET("/health", db.HealthHandler(cfg.StoreBackend, st.pinger))

	coord := donation.NewCoordinator(st.tx, st.units, st.events, st.donors, st.patients, st.audit)
	coord.SetLogger(logger.With().Str("component", "coordinator").Logger())
	coord.SetMetrics(m)
	if cfg.RedisURL != "" {
		client, err := lock.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		coord.SetGate(lock.NewRedisGate(client, cfg.UnitGateTTL, cfg.LockTimeout))
		logger.Info().Msg("unit gate enabled")
	}

	var defaults inventory.Defaults
	defaults.BloodBankID, _ = cfg.DefaultBloodBank()
	defaults.OrganBankID, _ = cfg.DefaultOrganBank()

	api := e.Group("/api/v1")
	inventory.NewHandler(inventory.NewService(st.units, st.tx), defaults).RegisterRoutes(api)
	regSvc := registry.NewService(st.donors, st.patients)
	regSvc.SetReferences(st.tx, st.events)
	registry.NewHandler(regSvc).RegisterRoutes(api)
	donation.NewHandler(coord).RegisterRoutes(api)
	audit.NewHandler(st.audit).RegisterRoutes(api)
	scoring.NewHandler().RegisterRoutes(api)
	report.NewHandler(report.NewService(st.units, st.events, st.donors, st.patients, cfg.CriticalPriorityThreshold)).RegisterRoutes(api)

	return e, nil
}
