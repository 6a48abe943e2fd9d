package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ToffenYT/varsly/internal/config"
	"github.com/ToffenYT/varsly/internal/db"
	"github.com/ToffenYT/varsly/internal/events"
	"github.com/ToffenYT/varsly/internal/ingest"
	"github.com/ToffenYT/varsly/internal/logger"
	"github.com/ToffenYT/varsly/internal/mailer"
	"github.com/ToffenYT/varsly/internal/notify"
	"github.com/ToffenYT/varsly/internal/source"
	"github.com/ToffenYT/varsly/internal/store"
	"github.com/ToffenYT/varsly/internal/telemetry"
	"github.com/ToffenYT/varsly/internal/unsubscribe"
	"github.com/ToffenYT/varsly/pkg/models"
)

// app wired components shared by serve, ingest and digest
type app struct {
	cfg      *config.Config
	tel      *telemetry.Telemetry
	db       *db.DB
	rdb      *redis.Client
	store    store.Store
	events   events.Publisher
	signer   *unsubscribe.Signer
	router   *notify.Router
	pipeline *ingest.Pipeline
}

type appOptions struct {
	// memory forces the in-memory store and disables Redis
	memory  bool
	migrate bool
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	log := logger.GetLogger("main")
	a := &app{cfg: cfg, events: events.Nop{}}

	tel, err := telemetry.New(ctx)
	if err != nil {
		log.Warnf("telemetry init failed, continuing without export: %v", err)
		tel = telemetry.NewNoop()
	}
	a.tel = tel

	if opts.memory || !cfg.DB.Configured() {
		log.Warn("no database configured, using in-memory store")
		a.store = store.NewMemory()
	} else {
		database, err := db.New(&cfg.DB)
		if err != nil {
			a.close()
			return nil, err
		}
		a.db = database
		pg := store.NewPostgres(database.Pool)
		if opts.migrate {
			if err := pg.EnsureSchema(ctx); err != nil {
				a.close()
				return nil, fmt.Errorf("ensure schema: %w", err)
			}
			log.Info("schema ensured")
		}
		a.store = pg
	}

	if cfg.Redis.URL != "" && !opts.memory {
		rdb, err := db.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			log.Warnf("redis unavailable, events disabled: %v", err)
		} else {
			a.rdb = rdb
			a.events = events.NewRedis(rdb, cfg.Redis.Channel)
		}
	}

	if cfg.App.UnsubscribeSecret != "" {
		signer, err := unsubscribe.NewSigner(cfg.App.UnsubscribeSecret, cfg.App.TokenTTL)
		if err != nil {
			a.close()
			return nil, err
		}
		a.signer = signer
	} else {
		log.Warn("UNSUBSCRIBE_JWT_SECRET not set; emails link to the settings page and /v1/unsubscribe answers 500")
	}

	provider, err := mailer.New(&cfg.Mail)
	if err != nil {
		if !errors.Is(err, mailer.ErrNotConfigured) {
			a.close()
			return nil, err
		}
		log.Warnf("email delivery disabled: %v", err)
	}

	a.router = notify.NewRouter(a.store, provider,
		notify.NewLinks(cfg.App.PublicURL, a.signer),
		cfg.Mail.FromEmail,
		notify.WithWorkers(cfg.Dispatch.DigestWorkers),
		notify.WithWindow(cfg.Dispatch.DigestWindow),
		notify.WithTelemetry(tel),
	)

	hooks := []ingest.AlertHook{a.publishCreated}
	if cfg.Dispatch.InlineDelivery() {
		hooks = append(hooks, a.deliverImmediately)
	} else {
		log.Info("immediate delivery via /v1/hooks/alert-created")
	}
	a.pipeline = ingest.NewPipeline(source.FromConfig(&cfg.Sources, nil), a.store,
		ingest.WithHooks(hooks...),
		ingest.WithWorkers(cfg.Dispatch.HookWorkers),
		ingest.WithTelemetry(tel),
	)
	return a, nil
}

func (a *app) deliverImmediately(ctx context.Context, alert models.Alert) notify.Status {
	d, err := a.router.Immediate(ctx, alert)
	if err != nil {
		logger.GetLogger("main").Warnf("immediate delivery for %s: %v", alert.OwnerID, err)
		return d.Status
	}
	logger.GetLogger("main").Debugf("immediate delivery for %s: %s %s", alert.OwnerID, d.Status, d.Reason)
	return d.Status
}

func (a *app) publishCreated(ctx context.Context, alert models.Alert) notify.Status {
	events.AlertCreated(ctx, a.events, alert)
	return ""
}

func (a *app) close() {
	log := logger.GetLogger("main")
	if a.tel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tel.Shutdown(ctx); err != nil {
			log.Warnf("telemetry shutdown: %v", err)
		}
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
