package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ledgersync/internal/domain/item"
	"ledgersync/internal/domain/ledgersync"
	"ledgersync/internal/infrastructure/crypto"
	"ledgersync/internal/infrastructure/database"
	"ledgersync/internal/infrastructure/plaid"
	"ledgersync/internal/shared/config"
	"ledgersync/internal/shared/logging"
)

var timeout time.Duration

func main() {
	rootCmd := &cobra.Command{
		Use:   "admin",
		Short: "Management commands for the ledgersync API",
		Long: `Management commands for the ledgersync API.

Examples:
  # Apply the schema
  admin migrate

  # Link an already exchanged access token to a user
  admin link-item --user-id=<uuid> --item-id=<item> --access-token=<token>

  # Sync every active item of one or more users
  admin sync-user <user-id> [<user-id>...]

  # Sync one item now, or ask a running API server to do it
  admin sync-item <item-id>
  admin sync-item <item-id> --async

  # Sync every active item
  admin sync-all --timeout=1h`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Minute, "timeout for the operation (e.g. 5m, 1h)")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(linkItemCmd())
	rootCmd.AddCommand(syncUserCmd())
	rootCmd.AddCommand(syncItemCmd())
	rootCmd.AddCommand(syncAllCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// stack is the subset of the API's dependencies the admin commands need.
type stack struct {
	cfg          *config.Config
	db           *database.DB
	items        *database.ItemRepository
	plaid        *plaid.Client
	orchestrator *ledgersync.Orchestrator
}

// withStack loads configuration, opens the database and runs fn under a
// context bounded by --timeout and cancelled on SIGINT/SIGTERM.
func withStack(fn func(ctx context.Context, s *stack) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logCloser := logging.Setup(logging.Config{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := database.Open(ctx, database.Dialect(cfg.Database.Driver), cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Printf("Connected to %s database", db.Dialect())

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		return fmt.Errorf("failed to create encryptor: %w", err)
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
		return fmt.Errorf("failed to create upstream client: %w", err)
	}

	itemRepo := database.NewItemRepository(db, encryptor)
	transactionRepo := database.NewTransactionRepository(db)

	return fn(ctx, &stack{
		cfg:   cfg,
		db:    db,
		items: itemRepo,
		plaid: plaidClient,
		orchestrator: ledgersync.NewOrchestrator(
			itemRepo,
			ledgersync.NewFetcher(plaidClient),
			ledgersync.NewReconciler(itemRepo, transactionRepo, logging.New("[reconciler] ")),
			cfg.Sync.Concurrency,
		),
	})
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(func(ctx context.Context, s *stack) error {
				if err := s.db.Migrate(ctx); err != nil {
					return err
				}
				log.Println("Schema is up to date")
				return nil
			})
		},
	}
}

func linkItemCmd() *cobra.Command {
	var userID, itemID, accessToken, bankName string

	cmd := &cobra.Command{
		Use:   "link-item",
		Short: "Store an exchanged access token as a new item for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(func(ctx context.Context, s *stack) error {
				it, err := item.NewService(s.items, s.plaid).Link(ctx, userID, itemID, accessToken, bankName)
				if err != nil {
					return fmt.Errorf("failed to link item: %w", err)
				}
				fmt.Printf("Linked item %s for user %s (bank: %q)\n", it.ID, it.UserID, it.BankName)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "owning user id")
	cmd.Flags().StringVar(&itemID, "item-id", "", "upstream item id")
	cmd.Flags().StringVar(&accessToken, "access-token", "", "upstream access token")
	cmd.Flags().StringVar(&bankName, "bank-name", "", "bank display name (looked up when empty)")
	for _, name := range []string{"user-id", "item-id", "access-token"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}
