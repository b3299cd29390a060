package cli

import (
	"bufio"
	"fmt"

	"github.com/neilberkman/pitchside/internal/core/api"
	"github.com/spf13/cobra"
)

var (
	registerUsername string
	registerEmail    string
	registerPassword string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	Args:  cobra.NoArgs,
	RunE:  runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)
	registerCmd.Flags().StringVarP(&registerUsername, "username", "u", "", "Username")
	registerCmd.Flags().StringVarP(&registerEmail, "email", "e", "", "Account email")
	registerCmd.Flags().StringVarP(&registerPassword, "password", "p", "", "Account password")
}

func runRegister(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	reg := api.Registration{Username: registerUsername, Email: registerEmail}
	if reg.Username == "" {
		reg.Username = prompt(in, out, "Username: ")
	}
	if reg.Email == "" {
		reg.Email = prompt(in, out, "Email: ")
	}
	reg.Password, err = readPassword(in, out, registerPassword)
	if err != nil {
		return err
	}

	if err := a.auth.Register(ctx, a.client, reg); err != nil {
		return err
	}

	user, err := a.auth.Login(ctx, a.client, api.Credentials{Email: reg.Email, Password: reg.Password})
	if err != nil {
		fmt.Fprintln(out, "Account created. Run 'pitchside login' to sign in.")
		return nil
	}
	fmt.Fprintf(out, "Account created, logged in as %s\n", user.DisplayName())
	return nil
}
