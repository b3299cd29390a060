package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neilberkman/pitchside/internal/logging"
	"github.com/neilberkman/pitchside/internal/mockapi"
	"github.com/spf13/cobra"
)

var (
	mockAddr   string
	mockDelay  time.Duration
	mockSecret string
)

var mockServerCmd = &cobra.Command{
	Use:   "mock-server",
	Short: "Run an in-memory stand-in for the backend",
	Long: `Serve the backend API from memory for offline development and demos.

A demo account is created at startup. Point the client at it with
--api http://localhost:8080 or PITCHSIDE_API_BASE_URL.

Examples:
  pitchside mock-server
  pitchside mock-server --addr :9000 --delay 800ms`,
	Args: cobra.NoArgs,
	RunE: runMockServer,
}

func init() {
	rootCmd.AddCommand(mockServerCmd)
	mockServerCmd.Flags().StringVar(&mockAddr, "addr", ":8080", "Listen address")
	mockServerCmd.Flags().DurationVar(&mockDelay, "delay", 0, "Artificial latency per request")
	mockServerCmd.Flags().StringVar(&mockSecret, "secret", "", "JWT signing secret (random when empty)")
}

func runMockServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	level := logLevel
	if level == "" {
		level = "info"
	}
	logger, closeLog, err := logging.New(logging.Options{Level: level, Console: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	opts := []mockapi.Option{mockapi.WithLogger(logger), mockapi.WithDelay(mockDelay)}
	if mockSecret != "" {
		opts = append(opts, mockapi.WithSecret(mockSecret))
	}
	srv := mockapi.New(opts...)

	fmt.Fprintf(cmd.OutOrStdout(), "Mock backend on %s (demo login: %s / %s)\n", mockAddr, mockapi.DemoEmail, mockapi.DemoPassword)
	return srv.ListenAndServe(ctx, mockAddr)
}
