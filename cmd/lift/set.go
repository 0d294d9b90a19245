// ABOUTME: CLI commands for logging and completing sets within a session.
// ABOUTME: Edits queue update/complete mutations against the backend.
package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/harperreed/lift/internal/models"
	"github.com/harperreed/lift/internal/storage"
	"github.com/harperreed/lift/internal/sync"
	"github.com/spf13/cobra"
)

var setWeight float64

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Log and complete sets",
	Long: `Record what actually happened in a set.

  lift set log <session> <exercise> <setNumber> <reps> [--weight kg]
  lift set done <session> <exercise> <setNumber>

Edits made while offline are queued and replayed once the backend is
reachable again.`,
}

var setLogCmd = &cobra.Command{
	Use:   "log <session> <exercise> <setNumber> <reps>",
	Short: "Record reps (and weight) for a set",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		sr, err := findSet(args[0], args[1], args[2])
		if err != nil {
			return err
		}
		reps, err := strconv.Atoi(args[3])
		if err != nil || reps < 0 {
			return fmt.Errorf("invalid rep count %q", args[3])
		}

		sr.WithReps(reps)
		if cmd.Flags().Changed("weight") {
			sr.WithWeight(setWeight)
		}
		sr.UpdatedAt = time.Now().UTC()
		sr.Dirty = true

		return queueSetMutation(sr, storage.OpUpdate)
	},
}

var setDoneCmd = &cobra.Command{
	Use:   "done <session> <exercise> <setNumber>",
	Short: "Mark a set completed",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		sr, err := findSet(args[0], args[1], args[2])
		if err != nil {
			return err
		}

		sr.Complete(time.Now().UTC())
		sr.Dirty = true

		return queueSetMutation(sr, storage.OpComplete)
	},
}

// findSet resolves a set by session prefix, exercise name, and set number.
func findSet(sessionID, exercise, number string) (*models.SetRecord, error) {
	s, err := repo.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("find set: %w", err)
	}
	n, err := strconv.Atoi(number)
	if err != nil {
		return nil, fmt.Errorf("invalid set number %q", number)
	}

	sets, err := repo.ListSetsBySession(s.ClientID)
	if err != nil {
		return nil, fmt.Errorf("find set: %w", err)
	}
	for _, sr := range sets {
		if sr.ExerciseName == exercise && sr.SetNumber == n && !sr.Deleted() {
			return sr, nil
		}
	}
	return nil, fmt.Errorf("no set %d of %s in session %s", n, exercise, sessionID)
}

func queueSetMutation(sr *models.SetRecord, op storage.Op) error {
	entry, err := storage.NewOutboxEntry(storage.TableSets, op, sr.ClientID, sync.SetPayloadFor(sr))
	if err != nil {
		return err
	}
	err = repo.WithTx(func(tx storage.Repository) error {
		if err := tx.PutSet(sr); err != nil {
			return err
		}
		return tx.EnqueueOutbox(entry)
	})
	if err != nil {
		return fmt.Errorf("queue set mutation: %w", err)
	}

	fmt.Printf("%s set %d: %d reps recorded\n", sr.ExerciseName, sr.SetNumber, sr.Reps)
	return nil
}

func init() {
	setLogCmd.Flags().Float64VarP(&setWeight, "weight", "w", 0, "weight used")

	setCmd.AddCommand(setLogCmd)
	setCmd.AddCommand(setDoneCmd)
}
