package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Ting2004/katachi/internal/config"
	"github.com/Ting2004/katachi/internal/snapshot"
	"github.com/Ting2004/katachi/internal/ui"
)

// viewCmd runs one maintenance operation and prints the resulting state.
func (a *app) viewCmd(use, short string, op func(backend, context.Context) (snapshot.View, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(cmd, func(ctx context.Context, b backend) error {
				v, err := op(b, ctx)
				if err != nil {
					return err
				}
				return ui.Status(cmd.OutOrStdout(), v)
			})
		},
	}
}

func (a *app) decayCmd() *cobra.Command {
	return a.viewCmd("decay", "Apply decay up to now", backend.Decay)
}

func (a *app) resetCmd() *cobra.Command {
	return a.viewCmd("reset", "Undo today's completions and clear them", backend.Reset)
}

func (a *app) restoreCmd() *cobra.Command {
	var yes bool
	cmd := a.viewCmd("restore-defaults", "Replace metrics and tasks with the defaults", backend.RestoreDefaults)
	run := cmd.RunE
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if !yes {
			return errors.New("restore-defaults discards every task and metric value; pass --yes to confirm")
		}
		return run(cmd, args)
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm")
	return cmd
}

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Args:  cobra.NoArgs,
		// The target file may not exist yet, so skip loading it.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath
			if path == "" {
				path = config.DefaultPath()
			}
			if path == "" {
				return errors.New("cannot resolve config path; pass --config")
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.LabelValue("wrote", path))
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}
