package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"ledgersync/internal/domain/item"
	"ledgersync/internal/domain/ledgersync"
	"ledgersync/internal/domain/transaction"
	"ledgersync/internal/domain/user"
	"ledgersync/internal/infrastructure/crypto"
	"ledgersync/internal/infrastructure/database"
	"ledgersync/internal/infrastructure/plaid"
	httphandlers "ledgersync/internal/interfaces/http"
	"ledgersync/internal/interfaces/scheduler"
	"ledgersync/internal/shared/auth"
	"ledgersync/internal/shared/config"
	"ledgersync/internal/shared/logging"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB *database.DB

	// Handlers
	AuthHandler        *httphandlers.AuthHandler
	UserHandler        *httphandlers.UserHandler
	TransactionHandler *httphandlers.TransactionHandler
	ItemHandler        *httphandlers.ItemHandler

	// Auth
	JWT *auth.JWT

	// Sync (for scheduler, listener and on-demand requests)
	ItemRepo     *database.ItemRepository
	Orchestrator *ledgersync.Orchestrator
	OnDemand     *scheduler.WorkerPool
}

// NewDependencies connects to the database, applies the schema and wires
// repositories, services and handlers.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	db, err := database.Open(ctx, database.Dialect(cfg.Database.Driver), cfg.Database.DSN())
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to %s database", db.Dialect())

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}

	plaidClient, err := plaid.NewClient(plaid.Config{
		ClientID:     cfg.Plaid.ClientID,
		Secret:       cfg.Plaid.Secret,
		Env:          cfg.Plaid.Env,
		BaseURL:      cfg.Plaid.BaseURL,
		PageSize:     cfg.Plaid.PageSize,
		CountryCodes: cfg.Plaid.CountryCodes,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create upstream client: %w", err)
	}

	// Repositories
	itemRepo := database.NewItemRepository(db, encryptor)
	transactionRepo := database.NewTransactionRepository(db)
	userRepo := database.NewUserRepository(db)

	// Sync engine
	orchestrator := ledgersync.NewOrchestrator(
		itemRepo,
		ledgersync.NewFetcher(plaidClient),
		ledgersync.NewReconciler(itemRepo, transactionRepo, logging.New("[reconciler] ")),
		cfg.Sync.Concurrency,
	)

	// Services
	itemService := item.NewService(itemRepo, plaidClient)
	userService := user.NewService(userRepo)
	transactionService := transaction.NewService(transactionRepo).WithBudgets(userService)

	jwt := auth.NewJWT(cfg.JWT.Secret).WithTTL(cfg.JWT.TTL)

	onDemand := scheduler.NewWorkerPool(cfg.Sync.Concurrency, 0, cfg.Scheduler.QueueSize)
	onDemand.SetJobTimeout(cfg.Scheduler.JobTimeout)

	transactionHandler := httphandlers.NewTransactionHandler(transactionService, orchestrator)
	transactionHandler.SetPassTimeout(cfg.Scheduler.JobTimeout)
	itemHandler := httphandlers.NewItemHandler(itemService, orchestrator)
	itemHandler.SetPassTimeout(cfg.Scheduler.JobTimeout)

	return &Dependencies{
		DB:                 db,
		AuthHandler:        httphandlers.NewAuthHandler(userService, jwt),
		UserHandler:        httphandlers.NewUserHandler(userService),
		TransactionHandler: transactionHandler,
		ItemHandler:        itemHandler,
		JWT:                jwt,
		ItemRepo:           itemRepo,
		Orchestrator:       orchestrator,
		OnDemand:           onDemand,
	}, nil
}

// RequestSync queues a background pass for one item on the on-demand pool.
func (d *Dependencies) RequestSync(itemID string) error {
	return d.OnDemand.Submit(scheduler.NewItemSyncJob(itemID, d.Orchestrator))
}

// NewScheduler builds the time-of-day scheduler that syncs every active item.
func (d *Dependencies) NewScheduler(cfg *config.Config) (*scheduler.Scheduler, error) {
	return scheduler.New(scheduler.Config{
		ScheduleTimes: cfg.Scheduler.ScheduleTimes,
		WorkerCount:   cfg.Scheduler.WorkerCount,
		JobDelay:      cfg.Scheduler.JobDelay,
		JobTimeout:    cfg.Scheduler.JobTimeout,
		QueueSize:     cfg.Scheduler.QueueSize,
		RunOnStartup:  cfg.Scheduler.RunOnStartup,
		JobProvider:   scheduler.ActiveItemsProvider(d.ItemRepo, d.Orchestrator),
	})
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close(timeout time.Duration) {
	if d.OnDemand != nil {
		d.OnDemand.ShutdownWithTimeout(timeout)
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
