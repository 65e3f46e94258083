package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ledgersync/internal/domain/ledgersync"
	"ledgersync/internal/infrastructure/database"
	"ledgersync/internal/infrastructure/database/listener"
	"ledgersync/internal/interfaces/scheduler"
)

func syncUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-user <user-id> [<user-id>...]",
		Short: "Run a sync pass for every active item of the given users",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(func(ctx context.Context, s *stack) error {
				var failed int
				for _, userID := range args {
					start := time.Now()
					results, err := s.orchestrator.SyncUser(ctx, userID)
					if err != nil {
						log.Printf("Failed to sync user %s: %v", userID, err)
						failed++
						continue
					}
					fmt.Printf("\n=== User %s (%v) ===\n", userID, time.Since(start).Round(time.Millisecond))
					if len(results) == 0 {
						fmt.Println("  No active items")
					}
					for _, r := range results {
						if r.Err != nil {
							failed++
						}
						printResult(os.Stdout, r)
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d sync(s) failed", failed)
				}
				return nil
			})
		},
	}
}

func syncItemCmd() *cobra.Command {
	var async bool

	cmd := &cobra.Command{
		Use:   "sync-item <item-id>",
		Short: "Run a sync pass for one item",
		Long: `Run a sync pass for one item.

With --async the request is published on the database notification
channel and picked up by a running API server (PostgreSQL only).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID := args[0]
			return withStack(func(ctx context.Context, s *stack) error {
				if async {
					if s.db.Dialect() != database.Postgres {
						return errors.New("--async requires the postgres driver")
					}
					if err := listener.Notify(ctx, s.db, itemID); err != nil {
						return err
					}
					fmt.Printf("Requested sync for item %s\n", itemID)
					return nil
				}

				summary, err := s.orchestrator.SyncItem(ctx, itemID)
				printResult(os.Stdout, ledgersync.ItemResult{ItemID: itemID, Summary: summary, Err: err})
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&async, "async", false, "hand the request to a running API server")
	return cmd
}

func syncAllCmd() *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "sync-all",
		Short: "Run a sync pass for every active item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(func(ctx context.Context, s *stack) error {
				jobs, err := scheduler.ActiveItemsProvider(s.items, s.orchestrator)(ctx)
				if err != nil {
					return err
				}
				if len(jobs) == 0 {
					log.Println("No active items to sync")
					return nil
				}

				pool := scheduler.NewWorkerPool(workers, 0, len(jobs))
				pool.SetJobTimeout(s.cfg.Scheduler.JobTimeout)
				pool.Start()

				log.Printf("Starting sync for %d item(s) with %d workers", len(jobs), workers)
				start := time.Now()

				submitted := pool.SubmitBatch(jobs)

				// Returns once the queue drains or the timeout cancels what is left.
				remaining := time.Until(deadline(ctx))
				pool.ShutdownWithTimeout(remaining)

				succeeded, failed := pool.Stats()
				log.Printf("Sync of %d item(s) completed in %v: %d succeeded, %d failed",
					submitted, time.Since(start), succeeded, failed)
				return syncAllError(len(jobs), succeeded, failed)
			})
		},
	}

	cmd.Flags().IntVar(&workers, "workers", ledgersync.DefaultConcurrency, "number of concurrent workers")
	return cmd
}

// syncAllError reports failed jobs plus any that were dropped or never ran.
func syncAllError(total int, succeeded, failed int64) error {
	notRun := int64(total) - succeeded - failed
	switch {
	case failed > 0 && notRun > 0:
		return fmt.Errorf("%d sync(s) failed, %d not run", failed, notRun)
	case failed > 0:
		return fmt.Errorf("%d sync(s) failed", failed)
	case notRun > 0:
		return fmt.Errorf("%d sync(s) not run", notRun)
	}
	return nil
}

func deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(timeout)
}

func printResult(w io.Writer, r ledgersync.ItemResult) {
	fmt.Fprintf(w, "  Item %s\n", r.ItemID)
	if r.Err != nil {
		fmt.Fprintf(w, "    Error:    %v\n", r.Err)
		if ledgersync.IsRetryable(r.Err) {
			fmt.Fprintln(w, "    (upstream unavailable, retry later)")
		}
		return
	}
	fmt.Fprintf(w, "    Added:    %d\n", r.Summary.Added)
	fmt.Fprintf(w, "    Modified: %d\n", r.Summary.Modified)
	fmt.Fprintf(w, "    Removed:  %d\n", r.Summary.Removed)

	if n := len(r.Summary.Rejected); n > 0 {
		fmt.Fprintf(w, "    Rejected: %d\n", n)
		for i, id := range r.Summary.Rejected {
			if i >= 5 {
				fmt.Fprintf(w, "      ... and %d more\n", n-5)
				break
			}
			fmt.Fprintf(w, "      - %s\n", id)
		}
	}
}
