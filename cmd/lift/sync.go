// ABOUTME: CLI commands for backend sync.
// ABOUTME: Supports login, now, watch, and status operations.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/harperreed/lift/internal/remote"
	"github.com/harperreed/lift/internal/storage"
	"github.com/harperreed/lift/internal/sync"
	"github.com/spf13/cobra"
)

var syncToken string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync workout data with the backend",
	Long: `Sync local workout data with the hosted backend.

Every local mutation is queued in an outbox and replayed in arrival order.
Pulls are incremental, bounded by a per-entity watermark, so repeated syncs
only transfer what changed.

COMMANDS:

  login    Store the backend URL and token
  now      Run one push-then-pull cycle
  watch    Keep syncing on a fixed interval until interrupted
  status   Show outbox depth, dead letters, and watermarks`,
}

var syncLoginCmd = &cobra.Command{
	Use:   "login <server>",
	Short: "Configure the backend connection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := sync.LoadConfig()
		if err != nil {
			return fmt.Errorf("load sync config: %w", err)
		}
		cfg.Server = args[0]
		if syncToken != "" {
			cfg.Token = syncToken
		}
		if cfg.DeviceID == "" {
			cfg.DeviceID = sync.GenerateDeviceID()
		}
		if err := sync.SaveConfig(cfg); err != nil {
			return fmt.Errorf("save sync config: %w", err)
		}
		fmt.Printf("Configured sync against %s (device %s)\n", cfg.Server, cfg.DeviceID)
		return nil
	},
}

var syncNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Run one sync cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := buildEngine()
		if err != nil {
			return err
		}
		if err := engine.SyncOnce(cmd.Context()); err != nil {
			return fmt.Errorf("sync: %w", err)
		}
		color.Green("Sync complete.")
		return nil
	},
}

var syncWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Sync continuously until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := buildEngine()
		if err != nil {
			return err
		}

		unsubscribe := engine.Reachability().Subscribe(func(online bool) {
			if online {
				color.Green("backend reachable")
			} else {
				color.Yellow("backend unreachable, will retry")
			}
		})
		defer unsubscribe()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		stop := engine.Start(ctx)
		defer stop()

		<-ctx.Done()
		return nil
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status",
	RunE: func(cmd *cobra.Command, args []string) error {
		pending, err := repo.CountOutbox()
		if err != nil {
			return err
		}
		dead, err := repo.CountDeadLetters()
		if err != nil {
			return err
		}

		fmt.Printf("Pending mutations: %d\n", pending)
		if dead > 0 {
			color.Red("Dead letters: %d (run with -v during sync for details)", dead)
		}
		for _, kind := range []string{storage.TableTemplates, storage.TableSessions, storage.TableSets} {
			wm, err := repo.Watermark(kind)
			if err != nil {
				return err
			}
			if wm.IsZero() {
				fmt.Printf("%-12s never pulled\n", kind)
			} else {
				fmt.Printf("%-12s pulled through %s\n", kind, wm.Local().Format("2006-01-02 15:04:05"))
			}
		}
		return nil
	},
}

func buildEngine() (*sync.Engine, error) {
	cfg, err := sync.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load sync config: %w", err)
	}
	if !cfg.IsConfigured() {
		return nil, fmt.Errorf("sync not configured - run 'lift sync login <server>'")
	}

	client := remote.NewHTTPClient(cfg.Server, cfg.Token, logger)
	return sync.New(cfg, repo, client, logger), nil
}

func init() {
	syncLoginCmd.Flags().StringVarP(&syncToken, "token", "t", "", "backend auth token")

	syncCmd.AddCommand(syncLoginCmd)
	syncCmd.AddCommand(syncNowCmd)
	syncCmd.AddCommand(syncWatchCmd)
	syncCmd.AddCommand(syncStatusCmd)
}
