package cli

import (
	"fmt"

	"github.com/neilberkman/pitchside/internal/core/prompts"
	"github.com/spf13/cobra"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Show the rendered welcome, banner and upgrade texts",
	Long: `Render the prompt templates with today's usage so custom templates in
the [prompts] config section can be checked.`,
	Args: cobra.NoArgs,
	RunE: runPrompts,
}

func init() {
	rootCmd.AddCommand(promptsCmd)
}

func runPrompts(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.quota.Load(ctx)
	if err != nil {
		return err
	}

	name := ""
	if a.authenticated(ctx) {
		if u, err := a.auth.Profile(ctx); err == nil {
			name = u.DisplayName()
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "=== WELCOME ===")
	fmt.Fprintln(out, a.prompts.Welcome(prompts.WelcomeData{Name: name, Free: name == "", Limit: a.quota.Limit()}))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "=== BANNER ===")
	fmt.Fprintln(out, bannerFor(a.prompts, a.quota, rec))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "=== UPGRADE ===")
	fmt.Fprintln(out, a.prompts.Upgrade(a.quota.Limit()))
	return nil
}
