// Package app wires the domain services together and manages their
// lifecycle.
package app

import (
	"context"
	"database/sql"

	"github.com/cafeteria-hr/service_layer/internal/config"
	"github.com/cafeteria-hr/service_layer/internal/logging"
	"github.com/cafeteria-hr/service_layer/internal/platform/objstore"
	"github.com/cafeteria-hr/service_layer/internal/platform/search"
	authsvc "github.com/cafeteria-hr/service_layer/internal/services/auth"
	benefitsvc "github.com/cafeteria-hr/service_layer/internal/services/benefits"
	catalogsvc "github.com/cafeteria-hr/service_layer/internal/services/catalog"
	requestsvc "github.com/cafeteria-hr/service_layer/internal/services/requests"
	reviewsvc "github.com/cafeteria-hr/service_layer/internal/services/reviews"
	usersvc "github.com/cafeteria-hr/service_layer/internal/services/users"
	"github.com/cafeteria-hr/service_layer/internal/storage"
	"github.com/cafeteria-hr/service_layer/internal/storage/memory"
	"github.com/cafeteria-hr/service_layer/internal/system"
	"github.com/cafeteria-hr/service_layer/internal/worker"
)

// Stores encapsulates persistence dependencies. Nil stores default to a
// shared in-memory implementation.
type Stores struct {
	Users         storage.UserStore
	LegalEntities storage.LegalEntityStore
	Positions     storage.PositionStore
	Categories    storage.CategoryStore
	Benefits      storage.BenefitStore
	Requests      storage.RequestStore
	Reviews       storage.ReviewStore
	Sessions      storage.SessionStore
	Tx            storage.Tx
}

// Options carries everything New needs beyond the stores.
type Options struct {
	Stores   Stores
	Queue    worker.Queue
	Indexer  search.Indexer
	Uploader objstore.Uploader
	Auth     config.AuthConfig
	DB       *sql.DB
	Log      *logging.Logger
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logging.Logger

	Auth     *authsvc.Service
	Users    *usersvc.Service
	Benefits *benefitsvc.Service
	Requests *requestsvc.Service
	Catalog  *catalogsvc.Service
	Reviews  *reviewsvc.Service

	Queue   worker.Queue
	Indexer search.Indexer
	DB      *sql.DB
}

// New builds a fully initialised application with the provided dependencies.
func New(opts Options) *Application {
	log := opts.Log
	if log == nil {
		log = logging.NewDefault("app")
	}

	stores := opts.Stores
	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.LegalEntities == nil {
		stores.LegalEntities = mem
	}
	if stores.Positions == nil {
		stores.Positions = mem
	}
	if stores.Categories == nil {
		stores.Categories = mem
	}
	if stores.Benefits == nil {
		stores.Benefits = mem
	}
	if stores.Requests == nil {
		stores.Requests = mem
	}
	if stores.Reviews == nil {
		stores.Reviews = mem
	}
	if stores.Sessions == nil {
		stores.Sessions = mem
	}
	if stores.Tx == nil {
		stores.Tx = mem
	}

	queue := opts.Queue
	if queue == nil {
		queue = worker.NewMemoryQueue(0)
	}
	indexer := opts.Indexer
	if indexer == nil {
		indexer = search.NoopIndexer{}
	}
	uploader := opts.Uploader
	if uploader == nil {
		uploader = objstore.NoopUploader{}
	}

	return &Application{
		manager:  system.NewManager(log),
		log:      log,
		Auth:     authsvc.New(stores.Users, stores.Sessions, queue, opts.Auth, log),
		Users:    usersvc.New(stores.Users, stores.LegalEntities, stores.Positions, indexer, queue, log),
		Benefits: benefitsvc.New(stores.Benefits, stores.Categories, indexer, uploader, log),
		Requests: requestsvc.New(stores.Requests, stores.Users, stores.Benefits, stores.Tx, queue, log),
		Catalog:  catalogsvc.New(stores.Categories, stores.LegalEntities, stores.Positions, stores.Users, log),
		Reviews:  reviewsvc.New(stores.Reviews, stores.Benefits, log),
		Queue:    queue,
		Indexer:  indexer,
		DB:       opts.DB,
	}
}

// Attach registers an additional lifecycle-managed service. Call before
// Start.
func (a *Application) Attach(services ...system.Service) {
	a.manager.Register(services...)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
