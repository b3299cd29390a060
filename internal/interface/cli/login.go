package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/x/term"
	"github.com/neilberkman/pitchside/internal/core/api"
	"github.com/spf13/cobra"
)

var (
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to your account",
	Long: `Log in with email and password. The token is stored locally and used
for history, analytics and unlimited chat.

The password is read from --password, the PITCHSIDE_PASSWORD environment
variable, or prompted for without echo.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "Account email")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Account password")
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	email := loginEmail
	if email == "" {
		email = prompt(in, out, "Email: ")
	}
	password, err := readPassword(in, out, loginPassword)
	if err != nil {
		return err
	}

	user, err := a.auth.Login(ctx, a.client, api.Credentials{Email: email, Password: password})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Logged in as %s\n", user.DisplayName())
	return nil
}

func prompt(in *bufio.Reader, out io.Writer, label string) string {
	fmt.Fprint(out, label)
	line, _ := in.ReadString('\n')
	return strings.TrimSpace(line)
}

// readPassword prefers the flag, then the environment, then a no-echo prompt
func readPassword(in *bufio.Reader, out io.Writer, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := os.Getenv("PITCHSIDE_PASSWORD"); env != "" {
		return env, nil
	}

	fd := os.Stdin.Fd()
	if !term.IsTerminal(fd) {
		return prompt(in, out, "Password: "), nil
	}
	fmt.Fprint(out, "Password: ")
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}
