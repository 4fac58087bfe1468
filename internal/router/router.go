package router

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "patient-portal/docs"
	gw "patient-portal/internal/adapters/auth/gateway"
	"patient-portal/internal/adapters/directory/profiles"
	mem "patient-portal/internal/adapters/storage/memory"
	pg "patient-portal/internal/adapters/storage/postgres"
	"patient-portal/internal/config"
	"patient-portal/internal/domain/accessgrants"
	"patient-portal/internal/domain/consents"
	"patient-portal/internal/domain/records"
	"patient-portal/internal/domain/schedule"
	"patient-portal/internal/middleware"
	"patient-portal/internal/observability/metrics"
	"patient-portal/internal/platform/logger"
	"patient-portal/internal/ports/auth"
	"patient-portal/internal/ports/directory"
)

type Options struct {
	Config *config.Config
	Log    logger.Logger

	AuthVerifier auth.AuthVerifier // nil habilita modo dev (headers X-Debug-*)
	Directory    directory.Resolver

	// Opcional: si viene, usa Postgres. Si no, repos in-memory.
	DB *sql.DB
}

func NewRouter(opts Options) http.Handler {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Load()
	}
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}

	m := metrics.New()

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics(m))

	verifier := opts.AuthVerifier
	if verifier == nil && cfg.AuthBaseURL != "" {
		client, err := gw.NewClient(gw.Config{
			BaseURL: cfg.AuthBaseURL,
			APIKey:  cfg.AuthAPIKey,
			Timeout: cfg.HTTPTimeout,
		})
		if err != nil {
			log.Warn("auth gateway mal configurado, modo dev", map[string]any{"error": err.Error()})
		} else {
			verifier = gw.NewVerifier(client)
		}
	}
	r.Use(middleware.AuthContext(verifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/swagger/*", httpSwagger.Handler())
	r.Handle("/metrics", m.Handler())

	var (
		consultRepo schedule.Repository
		consentRepo consents.Repository
		grantsRepo  accessgrants.Repository
		recordsRepo records.Repository
	)

	db := opts.DB
	if db == nil && cfg.DatabaseDSN != "" {
		if opened, err := pg.Open(cfg.DatabaseDSN); err == nil {
			db = opened
		} else {
			log.Warn("postgres no disponible, usando repos in-memory", map[string]any{"error": err.Error()})
		}
	}

	if db != nil {
		consultRepo = pg.NewConsultationsRepo(db)
		consentRepo = pg.NewConsentsRepo(db)
		grantsRepo = pg.NewAccessGrantsRepo(db)
		recordsRepo = pg.NewRecordsRepo(db)
	} else {
		consultRepo = mem.NewConsultationsRepo()
		consentRepo = mem.NewConsentsRepo()
		grantsRepo = mem.NewAccessGrantsRepo()
		recordsRepo = mem.NewRecordsRepo()
	}

	dir := opts.Directory
	if dir == nil {
		if cfg.DirectoryBaseURL != "" {
			client, err := profiles.NewClient(profiles.Config{
				BaseURL: cfg.DirectoryBaseURL,
				APIKey:  cfg.DirectoryAPIKey,
				Timeout: cfg.HTTPTimeout,
			})
			if err != nil {
				log.Warn("directorio mal configurado, usando resolver in-memory", map[string]any{"error": err.Error()})
				dir = profiles.NewMemoryResolver()
			} else {
				dir = profiles.NewResolver(client)
			}
		} else {
			dir = profiles.NewMemoryResolver()
		}
	}

	grid := schedule.GridConfig{
		OpenHour:    cfg.ClinicOpenHour,
		CloseHour:   cfg.ClinicCloseHour,
		SlotMinutes: cfg.ClinicSlotMinutes,
		Location:    cfg.Location(),
	}

	// Services por módulo
	grantsSvc := accessgrants.NewService(grantsRepo, log, m)
	scheduleSvc := schedule.NewService(consultRepo, grid, log, m)
	consentsSvc := consents.NewService(consentRepo, grantStoreAdapter{grantsSvc}, log, m)
	recordsSvc := records.NewService(recordsRepo, grantAuthorizer{grantsSvc}, dir, log, m)

	// Rutas por módulo
	schedule.RegisterRoutes(r, scheduleSvc)
	consents.RegisterRoutes(r, consentsSvc)
	accessgrants.RegisterRoutes(r, grantsSvc)
	records.RegisterRoutes(r, recordsSvc)

	return r
}

// grantStoreAdapter traduce el ciclo de vida de consentimientos a grants
// concretos. Los DataType de consents coinciden nominalmente con los
// AccessType de accessgrants; la conversión es textual.
type grantStoreAdapter struct {
	svc *accessgrants.Service
}

func (a grantStoreAdapter) CreateGrant(ctx context.Context, patientID, doctorID string, dataType consents.DataType, expiresAt time.Time) error {
	_, err := a.svc.Create(ctx, patientID, doctorID, accessgrants.AccessType(dataType), expiresAt)
	return err
}

func (a grantStoreAdapter) RevokeGrants(ctx context.Context, patientID, doctorID string) error {
	_, err := a.svc.RevokeFor(ctx, patientID, doctorID)
	return err
}

type grantAuthorizer struct {
	svc *accessgrants.Service
}

func (a grantAuthorizer) IsAuthorized(ctx context.Context, patientID, doctorID, dataType string, at time.Time) (bool, error) {
	return a.svc.IsAuthorized(ctx, patientID, doctorID, accessgrants.AccessType(dataType), at)
}
