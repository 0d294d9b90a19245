// ABOUTME: CLI commands for workout session lifecycle.
// ABOUTME: Starting a session offline provisions placeholder set records.
package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/lift/internal/models"
	"github.com/harperreed/lift/internal/storage"
	"github.com/harperreed/lift/internal/sync"
	"github.com/spf13/cobra"
)

var (
	sessionNotes string
	sessionLimit int
)

var sessionCmd = &cobra.Command{
	Use:     "session",
	Aliases: []string{"s"},
	Short:   "Track workout sessions",
	Long: `Track live workout sessions against a template.

Starting a session works fully offline: placeholder set records are created
locally from the template's exercise specs so you can log immediately. When
the session create reaches the backend, the backend's auto-provisioned set
rows are matched up with your local ones rather than duplicated.`,
}

var sessionStartCmd = &cobra.Command{
	Use:   "start <template>",
	Short: "Start a session from a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := repo.GetTemplate(args[0])
		if err != nil {
			return fmt.Errorf("start session: %w", err)
		}

		s := models.NewSession(t.Ref)
		if sessionNotes != "" {
			s.WithNotes(sessionNotes)
		}

		entry, err := storage.NewOutboxEntry(storage.TableSessions, storage.OpCreate, s.ClientID, sync.SessionPayloadFor(s))
		if err != nil {
			return err
		}
		// One transaction: the session row, its placeholder sets, and the
		// single session-create outbox entry. The backend provisions its
		// own default sets, so the placeholders get no create entries of
		// their own; reconciliation adopts the backend rows.
		err = repo.WithTx(func(tx storage.Repository) error {
			if err := tx.PutSession(s); err != nil {
				return err
			}
			for _, ex := range t.Exercises {
				for n := 1; n <= ex.TargetSets; n++ {
					sr := models.NewSetRecord(s.Ref, ex.Name, n)
					if ex.TargetReps != nil {
						sr.WithReps(*ex.TargetReps)
					}
					if ex.TargetWeight != nil {
						sr.WithWeight(*ex.TargetWeight)
					}
					if err := tx.PutSet(sr); err != nil {
						return err
					}
				}
			}
			return tx.EnqueueOutbox(entry)
		})
		if err != nil {
			return fmt.Errorf("start session: %w", err)
		}

		fmt.Printf("Started %s session %s\n", t.Name, shortID(s.ClientID.String()))
		return nil
	},
}

var sessionFinishCmd = &cobra.Command{
	Use:   "finish <session>",
	Short: "Complete a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return endSession(args[0], false)
	},
}

var sessionCancelCmd = &cobra.Command{
	Use:   "cancel <session>",
	Short: "Cancel a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return endSession(args[0], true)
	},
}

var sessionListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List recent sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, err := repo.ListSessions(sessionLimit)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}

		faint := color.New(color.Faint)
		for _, s := range sessions {
			if s.Deleted() {
				continue
			}
			marker := ""
			if s.Dirty {
				marker = color.YellowString(" *")
			}
			fmt.Printf("%s  %s  %s%s\n", shortID(s.ClientID.String()),
				s.StartedAt.Local().Format("2006-01-02 15:04"),
				statusColor(s.Status), marker)
			if s.Notes != nil && *s.Notes != "" {
				fmt.Printf("          %s\n", faint.Sprint(*s.Notes))
			}
		}
		return nil
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <session>",
	Short: "Show a session with its sets",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := repo.GetSession(args[0])
		if err != nil {
			return fmt.Errorf("show session: %w", err)
		}
		sets, err := repo.ListSetsBySession(s.ClientID)
		if err != nil {
			return fmt.Errorf("show session: %w", err)
		}

		fmt.Printf("Session %s  %s  %s\n", shortID(s.ClientID.String()),
			s.StartedAt.Local().Format("2006-01-02 15:04"), statusColor(s.Status))
		for _, sr := range sets {
			if sr.Deleted() {
				continue
			}
			check := " "
			if sr.Completed {
				check = color.GreenString("✓")
			}
			weight := ""
			if sr.Weight != nil {
				weight = fmt.Sprintf(" @ %.1f", *sr.Weight)
			}
			fmt.Printf("  %s %s set %d: %d reps%s\n", check, sr.ExerciseName, sr.SetNumber, sr.Reps, weight)
		}
		return nil
	},
}

func endSession(idOrPrefix string, cancel bool) error {
	s, err := repo.GetSession(idOrPrefix)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}

	now := time.Now().UTC()
	if cancel {
		s.Cancel(now)
	} else {
		s.Finish(now)
	}
	s.Dirty = true

	entry, err := storage.NewOutboxEntry(storage.TableSessions, storage.OpUpdate, s.ClientID, sync.SessionPayloadFor(s))
	if err != nil {
		return err
	}
	err = repo.WithTx(func(tx storage.Repository) error {
		if err := tx.PutSession(s); err != nil {
			return err
		}
		return tx.EnqueueOutbox(entry)
	})
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}

	fmt.Printf("Session %s %s\n", shortID(s.ClientID.String()), s.Status)
	return nil
}

func statusColor(s models.SessionStatus) string {
	switch s {
	case models.SessionActive:
		return color.CyanString(string(s))
	case models.SessionCompleted:
		return color.GreenString(string(s))
	case models.SessionCancelled:
		return color.RedString(string(s))
	default:
		return string(s)
	}
}

func init() {
	sessionStartCmd.Flags().StringVarP(&sessionNotes, "notes", "m", "", "session notes")
	sessionListCmd.Flags().IntVarP(&sessionLimit, "limit", "n", 20, "maximum sessions to show")

	sessionCmd.AddCommand(sessionStartCmd)
	sessionCmd.AddCommand(sessionFinishCmd)
	sessionCmd.AddCommand(sessionCancelCmd)
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionShowCmd)
}
