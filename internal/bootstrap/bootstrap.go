package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/notepeel/internal/config"
	"github.com/kirillkom/notepeel/internal/core/ports"
	"github.com/kirillkom/notepeel/internal/core/usecase"
	"github.com/kirillkom/notepeel/internal/infrastructure/contract"
	"github.com/kirillkom/notepeel/internal/infrastructure/queue/nats"
	"github.com/kirillkom/notepeel/internal/infrastructure/repository/sqlite"
	"github.com/kirillkom/notepeel/internal/infrastructure/resilience"
	"github.com/kirillkom/notepeel/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/notepeel/internal/infrastructure/transport/httpapi"
	"github.com/kirillkom/notepeel/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.ClientMetrics

	Sessions *usecase.SessionStore
	Notebook *usecase.Notebook
	Images   *localfs.ImageStore
	// Events is nil when no NATS server is configured or reachable.
	Events ports.NoteEventSubscriber

	closeFn func()
}

// sessionLink resolves the session store after the transport is built; the
// identity API and the store depend on each other.
type sessionLink struct {
	store atomic.Pointer[usecase.SessionStore]
}

func (l *sessionLink) Token() string {
	if store := l.store.Load(); store != nil {
		return store.Token()
	}
	return ""
}

func (l *sessionLink) invalidate(ctx context.Context, token string) {
	if store := l.store.Load(); store != nil {
		store.Invalidate(ctx, token)
	}
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sqlite.Open(cfg.SessionDBPath)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	repo := sqlite.NewSessionRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	images, err := localfs.New(cfg.ImageDir)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init image storage: %w", err)
	}

	clientMetrics := metrics.NewClientMetrics("notepeel-cli")
	executor := resilience.NewExecutor(resilienceConfig(cfg), logger)
	executor.OnStateChange(func(operation string, to gobreaker.State) {
		clientMetrics.RecordBreakerState(operation, to.String())
	})

	link := &sessionLink{}
	opts := httpapi.Options{
		Timeout:        cfg.RequestTimeout,
		RateLimit:      cfg.RateLimitRPS,
		RateBurst:      cfg.RateLimitBurst,
		Executor:       executor,
		Observer:       clientMetrics,
		OnUnauthorized: link.invalidate,
		Logger:         logger,
	}
	if cfg.ContractValidation {
		validator, err := contract.NewValidator(ctx)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("load api contract: %w", err)
		}
		opts.Validator = validator
	}
	client := httpapi.New(cfg.APIURL, link, opts)

	notesAPI := httpapi.NewNotesAPI(client)
	sessions := usecase.NewSessionStore(httpapi.NewIdentityAPI(client), repo, logger)
	link.store.Store(sessions)

	collection := usecase.NewNoteCollectionCache(notesAPI, logger)
	reconciler := usecase.NewNoteReconciler(notesAPI, logger)
	reconciler.OnStale(clientMetrics.RecordStaleResponse)
	sessions.OnTeardown(clientMetrics.RecordTeardown)

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Metrics:  clientMetrics,
		Sessions: sessions,
		Images:   images,
	}

	var publisher ports.NoteEventPublisher
	var bus *nats.EventBus
	if cfg.NATSURL != "" {
		bus, err = nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			logger.Warn("note_events_disabled", "url", cfg.NATSURL, "error", err)
		} else {
			publisher = bus
			app.Events = bus
		}
	}

	app.Notebook = usecase.NewNotebook(
		sessions,
		notesAPI,
		collection,
		reconciler,
		httpapi.NewRecognitionAPI(client),
		publisher,
		logger,
	)
	app.closeFn = func() {
		if bus != nil {
			bus.Close()
		}
		_ = db.Close()
	}
	return app, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	out.RetryMaxAttempts = cfg.RetryMaxAttempts
	out.RetryInitialBackoff = cfg.RetryInitialBackoff
	out.RetryMaxBackoff = cfg.RetryMaxBackoff
	out.BreakerEnabled = cfg.BreakerEnabled
	if cfg.BreakerMinRequests > 0 {
		out.BreakerMinRequests = uint32(cfg.BreakerMinRequests)
	}
	out.BreakerFailureRatio = cfg.BreakerFailureRatio
	out.BreakerOpenTimeout = cfg.BreakerOpenTimeout
	return out
}
