package cli

import (
	"errors"
	"fmt"

	"github.com/neilberkman/pitchside/internal/core/config"
	"github.com/spf13/cobra"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print where the configuration is read from",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configPathCmd)
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "Overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}

	err := config.WriteDefault(path, configForce)
	if errors.Is(err, config.ErrExists) {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if cfg.Path == "" {
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		fmt.Fprintf(out, "%s (not present, using defaults)\n", path)
	} else {
		fmt.Fprintln(out, cfg.Path)
	}
	fmt.Fprintf(out, "store: %s\n", cfg.Storage.Backend)
	if cfg.Storage.Backend == "sqlite" {
		fmt.Fprintf(out, "database: %s\n", cfg.Storage.Path)
	}
	fmt.Fprintf(out, "log: %s\n", cfg.Log.File)
	return nil
}
