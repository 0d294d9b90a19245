// ABOUTME: CLI commands for managing workout templates.
// ABOUTME: Supports add, list, and rm subcommands.
package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/lift/internal/models"
	"github.com/harperreed/lift/internal/storage"
	"github.com/harperreed/lift/internal/sync"
	"github.com/spf13/cobra"
)

var (
	templateDesc      string
	templateExercises []string
	templateLimit     int
)

var templateCmd = &cobra.Command{
	Use:     "template",
	Aliases: []string{"t"},
	Short:   "Manage workout templates",
	Long: `Manage reusable workout templates.

A template is an ordered list of exercises with a target set count each,
and optionally target reps, weight, and rest.

EXERCISE SPEC FORMAT:

  name:sets[:reps[:weight]]

  lift template add "Push Day" --exercise "Bench Press:3:8:80" \
                               --exercise "Overhead Press:3:10"

Templates created offline sync to the backend on the next cycle.`,
}

var templateAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a new template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t := models.NewTemplate(args[0])
		if templateDesc != "" {
			t.WithDescription(templateDesc)
		}
		for _, raw := range templateExercises {
			spec, err := parseExerciseSpec(raw)
			if err != nil {
				return err
			}
			t.WithExercise(spec)
		}
		if len(t.Exercises) == 0 {
			return fmt.Errorf("at least one --exercise is required")
		}

		entry, err := storage.NewOutboxEntry(storage.TableTemplates, storage.OpCreate, t.ClientID, sync.TemplatePayloadFor(t))
		if err != nil {
			return err
		}
		// Row write and outbox append land in one transaction so the sync
		// engine never sees one without the other.
		err = repo.WithTx(func(tx storage.Repository) error {
			if err := tx.PutTemplate(t); err != nil {
				return err
			}
			return tx.EnqueueOutbox(entry)
		})
		if err != nil {
			return fmt.Errorf("add template: %w", err)
		}

		fmt.Printf("Added template %s (%s)\n", t.Name, shortID(t.ClientID.String()))
		return nil
	},
}

var templateListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		templates, err := repo.ListTemplates(templateLimit)
		if err != nil {
			return fmt.Errorf("list templates: %w", err)
		}
		if len(templates) == 0 {
			fmt.Println("No templates found.")
			return nil
		}

		faint := color.New(color.Faint)
		for _, t := range templates {
			if t.Deleted() {
				continue
			}
			marker := ""
			if t.Dirty {
				marker = color.YellowString(" *")
			}
			fmt.Printf("%s  %s%s  %s\n", shortID(t.ClientID.String()), t.Name, marker,
				faint.Sprintf("(%d exercises)", len(t.Exercises)))
		}
		return nil
	},
}

var templateRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := repo.GetTemplate(args[0])
		if err != nil {
			return fmt.Errorf("delete template: %w", err)
		}

		now := time.Now().UTC()
		t.DeletedAt = &now
		t.UpdatedAt = now
		t.Dirty = true

		entry, err := storage.NewOutboxEntry(storage.TableTemplates, storage.OpDelete, t.ClientID, sync.TemplatePayloadFor(t))
		if err != nil {
			return err
		}
		err = repo.WithTx(func(tx storage.Repository) error {
			if err := tx.PutTemplate(t); err != nil {
				return err
			}
			return tx.EnqueueOutbox(entry)
		})
		if err != nil {
			return fmt.Errorf("delete template: %w", err)
		}

		fmt.Printf("Deleted template %s\n", t.Name)
		return nil
	},
}

// parseExerciseSpec parses "name:sets[:reps[:weight]]".
func parseExerciseSpec(raw string) (models.ExerciseSpec, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 2 {
		return models.ExerciseSpec{}, fmt.Errorf("invalid exercise spec %q: want name:sets[:reps[:weight]]", raw)
	}

	spec := models.ExerciseSpec{Name: parts[0]}
	sets, err := strconv.Atoi(parts[1])
	if err != nil || sets < 1 {
		return models.ExerciseSpec{}, fmt.Errorf("invalid set count in %q", raw)
	}
	spec.TargetSets = sets

	if len(parts) > 2 {
		reps, err := strconv.Atoi(parts[2])
		if err != nil {
			return models.ExerciseSpec{}, fmt.Errorf("invalid rep target in %q", raw)
		}
		spec.TargetReps = &reps
	}
	if len(parts) > 3 {
		weight, err := strconv.ParseFloat(parts[3], 64)
		if err != nil {
			return models.ExerciseSpec{}, fmt.Errorf("invalid weight target in %q", raw)
		}
		spec.TargetWeight = &weight
	}
	return spec, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	templateAddCmd.Flags().StringVarP(&templateDesc, "desc", "d", "", "template description")
	templateAddCmd.Flags().StringArrayVarP(&templateExercises, "exercise", "e", nil, "exercise spec name:sets[:reps[:weight]] (repeatable)")
	templateListCmd.Flags().IntVarP(&templateLimit, "limit", "n", 20, "maximum templates to show")

	templateCmd.AddCommand(templateAddCmd)
	templateCmd.AddCommand(templateListCmd)
	templateCmd.AddCommand(templateRmCmd)
}
