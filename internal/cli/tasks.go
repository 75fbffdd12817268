package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Ting2004/katachi/internal/snapshot"
	"github.com/Ting2004/katachi/internal/ui"
)

// withBackend opens a backend, runs fn and closes it. A failed close is
// reported even when fn succeeded, since it carries the final save.
func (a *app) withBackend(cmd *cobra.Command, fn func(context.Context, backend) error) error {
	ctx := cmd.Context()
	b, err := a.openBackend(ctx)
	if err != nil {
		return err
	}
	err = fn(ctx, b)
	if cerr := b.Close(ctx); cerr != nil {
		err = errors.Join(err, fmt.Errorf("close: %w", cerr))
	}
	return err
}

func writeJSONOut(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) statusCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show metrics and today's tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(cmd, func(ctx context.Context, b backend) error {
				v, err := b.State(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSONOut(cmd.OutOrStdout(), v)
				}
				return ui.Status(cmd.OutOrStdout(), v)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw state as JSON")
	return cmd
}

func (a *app) tasksCmd() *cobra.Command {
	var (
		label  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(cmd, func(ctx context.Context, b backend) error {
				recs, err := b.Tasks(ctx, label)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSONOut(cmd.OutOrStdout(), recs)
				}
				_, err = io.WriteString(cmd.OutOrStdout(), ui.Tasks(recs))
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&label, "label", "l", "", "only tasks with this label")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
	return cmd
}

func (a *app) addCmd() *cobra.Command {
	var in snapshot.TaskInput
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a task",
		Example: `  katachi add "Morning walk" --effect energy=10,mood=5 --label daily
  katachi add "Drink water" --type counter --effect hydration=5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Name = args[0]
			return a.withBackend(cmd, func(ctx context.Context, b backend) error {
				rec, err := b.CreateTask(ctx, in)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ui.Good.Render("created"), ui.TaskLine(rec))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&in.Type, "type", "t", "check", "check or counter")
	cmd.Flags().StringVarP(&in.Label, "label", "l", "", "display label (default custom)")
	cmd.Flags().StringToIntVarP(&in.Effect, "effect", "e", nil, "metric deltas per completion, e.g. energy=10,focus=-2")
	return cmd
}

func (a *app) toggleCmd(use, short string, done bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <name>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(cmd, func(ctx context.Context, b backend) error {
				rec, err := b.Toggle(ctx, args[0], done)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ui.TaskLine(rec))
				return nil
			})
		},
	}
}

func (a *app) editCmd() *cobra.Command {
	var (
		rename, typ, label string
		effect             map[string]int
	)
	cmd := &cobra.Command{
		Use:   "edit <name>",
		Short: "Change a task's name, type, label or effect",
		Long: "Change a task's definition. The effect the task currently has applied is " +
			"reversed and the new definition's effect is applied in its place.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p snapshot.TaskPatch
			flags := cmd.Flags()
			if flags.Changed("rename") {
				p.Name = &rename
			}
			if flags.Changed("type") {
				p.Type = &typ
			}
			if flags.Changed("label") {
				p.Label = &label
			}
			if flags.Changed("effect") {
				p.Effect = effect
				if p.Effect == nil {
					p.Effect = map[string]int{}
				}
			}
			if p.Name == nil && p.Type == nil && p.Label == nil && p.Effect == nil {
				return errors.New("nothing to change: pass --rename, --type, --label or --effect")
			}
			return a.withBackend(cmd, func(ctx context.Context, b backend) error {
				rec, err := b.UpdateTask(ctx, args[0], p)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ui.Good.Render("updated"), ui.TaskLine(rec))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&rename, "rename", "", "new task name")
	cmd.Flags().StringVarP(&typ, "type", "t", "", "check or counter")
	cmd.Flags().StringVarP(&label, "label", "l", "", "display label")
	cmd.Flags().StringToIntVarP(&effect, "effect", "e", nil, "replacement effect, e.g. energy=10")
	return cmd
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <name>",
		Aliases: []string{"delete"},
		Short:   "Delete a task, reversing its applied effect",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(cmd, func(ctx context.Context, b backend) error {
				if err := b.DeleteTask(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ui.Muted.Render("deleted"), args[0])
				return nil
			})
		},
	}
}
