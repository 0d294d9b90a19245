// ABOUTME: Root Cobra command for lift CLI.
// ABOUTME: Opens the local store via PersistentPre/PostRunE.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/harperreed/lift/internal/config"
	"github.com/harperreed/lift/internal/storage"
	"github.com/spf13/cobra"
)

var (
	repo    storage.Repository
	logger  *log.Logger
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "lift",
	Short: "Offline-first workout tracker",
	Long: `Lift is a CLI workout tracker that works offline first.

Everything you do lands in a local SQLite store immediately; a background
sync engine replays your changes against the hosted backend whenever it is
reachable and pulls down changes made on other devices.

QUICK START:

  $ lift template add "Push Day" --exercise "Bench Press:3"
  $ lift template list                   # note the template id
  $ lift session start <template>        # works offline too
  $ lift set log <session> "Bench Press" 1 8 --weight 80
  $ lift set done <session> "Bench Press" 1
  $ lift session finish <session>

SYNC:

  $ lift sync login https://api.example.com --token <token>
  $ lift sync now         # one push-then-pull cycle
  $ lift sync status      # outbox depth, watermarks, dead letters
  $ lift sync watch       # keep syncing every 30s until interrupted

DATA STORAGE:

  The local store lives at ~/.local/share/lift/lift.db. Records you create
  offline get a permanent local id; the backend id is attached once the
  create is confirmed.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		logger = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false})
		if verbose {
			logger.SetLevel(log.DebugLevel)
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		repo, err = cfg.OpenStorage()
		if err != nil {
			return fmt.Errorf("open local store: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if repo != nil {
			return repo.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(syncCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
