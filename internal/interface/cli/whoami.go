package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/neilberkman/pitchside/internal/core/auth"
	"github.com/spf13/cobra"
)

var whoamiVerify bool

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in account",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
	whoamiCmd.Flags().BoolVar(&whoamiVerify, "verify", false, "Check the token with the backend")
}

func runWhoami(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	token, err := a.auth.Token(ctx)
	switch {
	case errors.Is(err, auth.ErrNotAuthenticated):
		fmt.Fprintln(out, "Not logged in (free mode)")
		return nil
	case err != nil:
		return err
	}

	user, err := a.auth.Profile(ctx)
	if err != nil {
		return err
	}
	if whoamiVerify {
		verified, err := a.client.Verify(ctx)
		if err != nil {
			return fmt.Errorf("token rejected: %w", err)
		}
		user = verified
	}

	fmt.Fprintf(out, "%s\n", user.DisplayName())
	if user.Email != "" {
		fmt.Fprintf(out, "Email:   %s\n", user.Email)
	}
	if exp, ok := auth.Expiry(token); ok {
		fmt.Fprintf(out, "Expires: %s (%s)\n", exp.Local().Format(time.RFC1123), humanize.Time(exp))
	}
	return nil
}
