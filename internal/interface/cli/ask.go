package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/neilberkman/pitchside/internal/core/chat"
	"github.com/neilberkman/pitchside/internal/core/prompts"
	"github.com/neilberkman/pitchside/internal/core/quota"
	"github.com/spf13/cobra"
)

var (
	askSession  string
	askNoTyping bool
	askFree     bool
)

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Send one message and print the reply",
	Long: `Send a single message to the assistant and print the answer as it is typed.

Without a login this uses the free tier and counts against the daily limit.
When logged in, a new conversation is created unless --session is given.

Examples:
  pitchside ask "Who is Chelsea's all-time top scorer?"
  pitchside ask --session 6650f2 "and in the Premier League?"
  echo "Explain CSS grid" | pitchside ask -`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "Continue an existing conversation (requires login)")
	askCmd.Flags().BoolVar(&askNoTyping, "no-typing", false, "Print the reply at once instead of typing it out")
	askCmd.Flags().BoolVar(&askFree, "free", false, "Use the free tier even when logged in")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	text := strings.Join(args, " ")
	if text == "-" {
		data, err := readAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		text = data
	}

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	mode := chat.ModeFree
	if !askFree && a.authenticated(ctx) {
		mode = chat.ModeAuthenticated
	}
	if askSession != "" && mode != chat.ModeAuthenticated {
		return errors.New("--session requires login (run 'pitchside login')")
	}

	out := cmd.OutOrStdout()
	typing := !askNoTyping && isTerminal(out)
	spinner := NewSpinner(cmd.ErrOrStderr(), "Thinking...")
	printed := 0

	hooks := chat.Hooks{
		OnState: func(s chat.State) {
			switch s {
			case chat.StateSending:
				spinner.Start()
			case chat.StatePlayback, chat.StateIdle:
				spinner.Stop()
			}
		},
		OnTyping: func(partial string) {
			if !typing {
				return
			}
			r := []rune(partial)
			fmt.Fprint(out, string(r[printed:]))
			printed = len(r)
		},
		OnSessionCreated: func(e chat.SessionCreated) {
			a.history.Insert(ctx, e.Session())
		},
	}

	ctrl, err := a.newController(mode, hooks)
	if err != nil {
		return err
	}

	if askSession != "" {
		if _, err := a.history.ContinueSession(ctx, askSession, ctrl); err != nil {
			return err
		}
	}

	res, err := ctrl.Send(ctx, text)
	switch {
	case errors.Is(err, chat.ErrQuotaExceeded):
		fmt.Fprintln(cmd.ErrOrStderr(), a.prompts.Upgrade(a.quota.Limit()))
		return err
	case err != nil:
		return err
	}

	if res.Canceled {
		fmt.Fprintln(out)
		return context.Canceled
	}
	if !typing || res.Failed {
		fmt.Fprint(out, res.Reply.Text)
	}
	fmt.Fprintln(out)

	if res.Failed {
		a.logger.Debug().Err(res.Err).Msg("ask failed")
		return fmt.Errorf("request failed: %w", res.Err)
	}
	if res.Reply.OffTopic {
		fmt.Fprintln(cmd.ErrOrStderr(), "(off-topic: the assistant covers Chelsea FC and frontend development)")
	}

	printFooter(cmd, a, res)
	return nil
}

func printFooter(cmd *cobra.Command, a *app, res chat.Result) {
	w := cmd.ErrOrStderr()
	if res.Usage != nil {
		fmt.Fprintln(w, bannerFor(a.prompts, a.quota, *res.Usage))
	}
	if res.Created != nil {
		fmt.Fprintf(w, "Started conversation %s (%s)\n", res.Created.SessionID, res.Created.Title)
	} else if id := res.Reply.SessionID; id != "" {
		fmt.Fprintf(w, "Conversation %s\n", id)
	}
}

func bannerFor(p prompts.Set, q *quota.Counter, rec quota.Record) string {
	return p.Banner(prompts.BannerData{Count: rec.Count, Limit: q.Limit(), Premium: rec.Premium})
}
