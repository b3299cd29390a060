package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/neilberkman/pitchside/internal/core/chat"
	"github.com/neilberkman/pitchside/internal/core/config"
	"github.com/neilberkman/pitchside/internal/core/models"
	"github.com/neilberkman/pitchside/internal/core/prompts"
	"github.com/neilberkman/pitchside/internal/interface/tui"
	"github.com/spf13/cobra"
)

var chatFree bool

var chatCmd = &cobra.Command{
	Use:   "chat [session-id]",
	Short: "Open the interactive chat",
	Long: `Open the full-screen chat. When logged in you also get the history and
analytics views; otherwise the daily free messages apply.

Pass a session id to continue a saved conversation.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().BoolVar(&chatFree, "free", false, "Use free mode even when logged in")
}

func runChat(cmd *cobra.Command, args []string) error {
	var resumeID string
	if len(args) == 1 {
		resumeID = args[0]
	}
	return launchTUI(cmd, resumeID)
}

func launchTUI(cmd *cobra.Command, resumeID string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{logToFile: true})
	if err != nil {
		return err
	}
	defer a.Close()

	mode := chat.ModeFree
	var user *models.User
	if !chatFree && a.authenticated(ctx) {
		mode = chat.ModeAuthenticated
		if u, err := a.auth.Profile(ctx); err == nil {
			user = u
		}
	}
	if resumeID != "" && mode != chat.ModeAuthenticated {
		return fmt.Errorf("continuing a conversation requires login: %w", a.requireAuth(ctx))
	}

	opts := tui.Options{
		Mode: mode,
		NewController: func(h chat.Hooks) (*chat.Controller, error) {
			return a.newController(mode, h)
		},
		Prompts:  a.prompts,
		User:     user,
		ResumeID: resumeID,
		Logger:   a.logger.With().Str("component", "tui").Logger(),
	}
	if mode == chat.ModeAuthenticated {
		opts.History = a.history
	}

	model, err := tui.New(ctx, opts)
	if err != nil {
		return err
	}

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	if a.cfg.Path != "" {
		watchPrompts(a, p)
	}

	finalModel, err := p.Run()
	if m, ok := finalModel.(tui.Model); ok {
		m.Close()
	}
	if err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

// watchPrompts pushes edited prompt templates into the running program
func watchPrompts(a *app, p *tea.Program) {
	err := config.Watch(a.cfg.Path, func(cfg *config.Config, err error) {
		if err != nil {
			a.logger.Warn().Err(err).Msg("ignoring invalid config change")
			return
		}
		set := prompts.Set{
			WelcomeTemplate: cfg.Prompts.Welcome,
			BannerTemplate:  cfg.Prompts.Banner,
			UpgradeTemplate: cfg.Prompts.Upgrade,
		}
		if err := set.Validate(); err != nil {
			a.logger.Warn().Err(err).Msg("ignoring invalid prompt templates")
			return
		}
		a.logger.Info().Str("path", cfg.Path).Msg("prompt templates reloaded")
		p.Send(tui.PromptsChanged(set))
	})
	if err != nil {
		a.logger.Debug().Err(err).Msg("config watch disabled")
	}
}
