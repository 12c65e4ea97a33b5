package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/labelhub/autotrain/internal/solver"
)

func newSolverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "solver",
		Short: "Inspect solver descriptions",
	}
	cmd.AddCommand(newSolverRenderCmd())
	return cmd
}

func newSolverRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Print the solver description every session starts from",
		Long: `Print the solver description written before a session's first attempt.

The solver defaults come from training.solver in the configuration file. With
--defaults, or when no configuration file is found, the built-in defaults are used.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			useDefaults, err := cmd.Flags().GetBool("defaults")
			if err != nil {
				return err
			}

			cfg := solver.DefaultConfig()
			if !useDefaults {
				if _, perr := configPath(); perr == nil {
					loaded, err := loadConfig()
					if err != nil {
						return err
					}
					cfg = loaded.Training.Solver
				}
			}

			_, err = fmt.Fprint(cmd.OutOrStdout(), string(solver.MarshalDescription(cfg)))
			return err
		},
	}
	cmd.Flags().Bool("defaults", false, "Ignore the configuration file and print the built-in defaults")
	return cmd
}
