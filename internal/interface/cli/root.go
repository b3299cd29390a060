package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath  string
	dbPath      string
	storeFlag   string
	apiURL      string
	logLevel    string
	versionInfo string
)

// SetVersion sets the version information from build-time ldflags
func SetVersion(version, commit, date string) {
	versionInfo = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
	rootCmd.Version = versionInfo
}

// Execute runs the CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pitchside",
	Short: "Terminal client for the Chelsea FC & Frontend AI assistant",
	Long: `pitchside - chat with the Chelsea FC & Frontend Development assistant

Free mode allows a few messages per day without an account. Log in to keep
your conversations, browse history and see usage analytics.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to the chat TUI if no subcommand specified
		return chatCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.config/pitchside/config.toml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite cache path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&storeFlag, "store", "", "Local store: sqlite, redis or memory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "Backend base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
}
