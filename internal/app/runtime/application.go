// Package runtime assembles the full application from configuration:
// database, Redis, search, object storage, mail, HTTP server and the
// background worker.
package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/cafeteria-hr/service_layer/internal/app"
	"github.com/cafeteria-hr/service_layer/internal/config"
	"github.com/cafeteria-hr/service_layer/internal/httpapi"
	"github.com/cafeteria-hr/service_layer/internal/logging"
	"github.com/cafeteria-hr/service_layer/internal/metrics"
	"github.com/cafeteria-hr/service_layer/internal/middleware"
	"github.com/cafeteria-hr/service_layer/internal/platform/database"
	"github.com/cafeteria-hr/service_layer/internal/platform/mail"
	"github.com/cafeteria-hr/service_layer/internal/platform/objstore"
	"github.com/cafeteria-hr/service_layer/internal/platform/redisstore"
	"github.com/cafeteria-hr/service_layer/internal/platform/search"
	"github.com/cafeteria-hr/service_layer/internal/storage/postgres"
	"github.com/cafeteria-hr/service_layer/internal/worker"
)

// Options selects which parts of the deployment this process runs. The API
// process serves HTTP; the worker process consumes the task queue and runs
// the cron scheduler. Without Redis both must live in one process because
// the in-memory queue is process-local.
type Options struct {
	HTTP   bool
	Worker bool
}

// Application wires core dependencies and manages their lifecycle.
type Application struct {
	cfg     *config.Config
	log     *logging.Logger
	app     *app.Application
	server  *http.Server
	limiter *middleware.RateLimiter
	db      *sql.DB
	rdb     *redis.Client
}

// NewApplication constructs a fully wired application from the environment.
func NewApplication(ctx context.Context, opts Options) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.Migrate(ctx, db, cfg.Database, log); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	pg := postgres.New(db)

	stores := app.Stores{
		Users:         pg,
		LegalEntities: pg,
		Positions:     pg,
		Categories:    pg,
		Benefits:      pg,
		Requests:      pg,
		Reviews:       pg,
		Sessions:      pg,
		Tx:            pg,
	}

	var (
		rdb   *redis.Client
		queue worker.Queue
	)
	if cfg.Redis.Enabled {
		rdb, err = redisstore.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.WithError(err).Warn("redis unavailable, using database sessions and in-memory queue")
		} else {
			stores.Sessions = redisstore.NewSessionStore(rdb)
			queue = worker.NewRedisQueue(rdb)
		}
	}
	if queue == nil {
		queue = worker.NewMemoryQueue(0)
		// Tasks cannot cross processes without Redis.
		opts.Worker = opts.Worker || opts.HTTP
	}

	var indexer search.Indexer = search.NoopIndexer{}
	if cfg.Elastic.Enabled {
		es, err := search.NewElasticIndexer(ctx, cfg.Elastic)
		if err != nil {
			log.WithError(err).Warn("elasticsearch unavailable, search falls back to SQL")
		} else {
			indexer = es
			if err := es.EnsureIndices(ctx); err != nil {
				log.WithError(err).Warn("failed to ensure search indices")
			}
		}
	}

	var uploader objstore.Uploader = objstore.NoopUploader{}
	if cfg.S3.Enabled {
		s3, err := objstore.NewS3Uploader(ctx, cfg.S3)
		if err != nil {
			log.WithError(err).Warn("object storage unavailable, image uploads disabled")
		} else {
			uploader = s3
		}
	}

	var sender mail.Sender = mail.NoopSender{}
	if cfg.Mail.Enabled {
		sender = mail.NewSMTPSender(cfg.Mail)
	}

	application := app.New(app.Options{
		Stores:   stores,
		Queue:    queue,
		Indexer:  indexer,
		Uploader: uploader,
		Auth:     cfg.Auth,
		DB:       db,
		Log:      log,
	})

	if opts.Worker {
		w := worker.NewWorker(queue, log)
		worker.RegisterMailHandler(w, sender, cfg.Domain, log)
		worker.RegisterIndexHandlers(w, pg, pg, indexer, log)
		worker.RegisterSweepHandler(w, stores.Sessions, log)
		application.Attach(w, worker.NewScheduler(queue, log))
	}

	a := &Application{
		cfg: cfg,
		log: log,
		app: application,
		db:  db,
		rdb: rdb,
	}
	if opts.HTTP {
		a.server = &http.Server{
			Addr:         cfg.Server.Addr(),
			Handler:      a.buildHandler(),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		}
	}
	return a, nil
}

// buildHandler wraps the API mux in the middleware chain. Ordering matters:
// tracing assigns the trace ID every later layer logs with, and the rate
// limiter keys on the user set by auth when present.
func (a *Application) buildHandler() http.Handler {
	h := httpapi.NewHandler(a.app)

	auth := middleware.NewAuthMiddleware(a.app.Auth, a.log, []string{
		"/auth/",
		"/healthz",
		"/readyz",
		"/metrics",
	})
	limiter := middleware.NewRateLimiter(a.cfg.HTTP.RateLimit, a.cfg.HTTP.RateBurst, a.log)
	limiter.StartCleanup(10 * time.Minute)
	a.limiter = limiter
	cors := middleware.NewCORSMiddleware(a.cfg.HTTP.AllowOrigins)
	tracing := middleware.NewTracingMiddleware(a.log)

	var handler http.Handler = metrics.InstrumentHandler(h)
	handler = limiter.Handler(handler)
	handler = auth.Handler(handler)
	handler = cors.Handler(handler)
	handler = tracing.Handler(handler)
	return handler
}

// Run starts background services and the HTTP server, blocking until the
// context is cancelled or a fatal server error occurs.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	if a.server == nil {
		<-ctx.Done()
		return nil
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown stops the HTTP server and background services, then closes the
// shared connections.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var firstErr error
	if a.server != nil {
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			firstErr = err
		}
	}
	if a.limiter != nil {
		a.limiter.StopCleanup()
	}
	if err := a.app.Stop(shutdownCtx); err != nil && firstErr == nil {
		firstErr = err
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.WithError(err).Warn("error closing redis connection")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
	}
	return firstErr
}
