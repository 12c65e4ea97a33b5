// Package app provides the command line interface of the autotrain service.
package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/labelhub/autotrain/internal/config"
	"github.com/labelhub/autotrain/internal/versions"
)

// defaultConfigFile is looked up in the XDG config directories when --config is not given
const defaultConfigFile = "autotrain/config.yaml"

// errCycleFailed makes the process exit non-zero without printing usage
var errCycleFailed = errors.New("one or more projects failed")

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "autotrain",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		SilenceErrors:     true,
		Short:             "Retrain classification models from newly labeled images",
		Long: `autotrain pulls newly labeled images from the labeling server, retrains each
project's model with the Caffe CLI while tuning the solver until the validation
loss is low enough, then publishes the model and acknowledges the images.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().String("config", "",
		fmt.Sprintf("Path to configuration file (YAML). Defaults to $XDG_CONFIG_HOME/%s", defaultConfigFile))
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		slog.Error("Error binding config flag", "error", err)
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newOnceCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSolverCmd())

	return rootCmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		if !errors.Is(err, errCycleFailed) {
			slog.Error("Command failed", "error", err)
		}
		return 1
	}
	return 0
}

// configPath returns --config, or the first config file found in the XDG config directories
func configPath() (string, error) {
	if path := viper.GetString("config"); path != "" {
		return path, nil
	}
	path, err := xdg.SearchConfigFile(defaultConfigFile)
	if err != nil {
		return "", fmt.Errorf("no --config given and %s not found: %w", defaultConfigFile, err)
	}
	return path, nil
}

// loadConfig loads the deployment configuration
func loadConfig() (*config.Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(config.WithConfigPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Loaded configuration", "path", path, "server", cfg.Server.Endpoint, "root", cfg.Workspace.Root)
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.GetVersionInfo()
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return err
			}

			if format == "json" {
				output, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to format version info: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(output))
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), info.String())
			return err
		},
	}
	cmd.Flags().String("format", "", "Output format (json)")
	return cmd
}

// writeJSON prints v as indented JSON
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.AutomaticEnv()
}
