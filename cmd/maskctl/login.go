package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"garment-studio/internal/submit"
	"garment-studio/internal/tenant"
	"garment-studio/pkg/ui"

	"github.com/spf13/cobra"
)

var loginToken string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the bearer token used for tenant requests",
	Long: `Stores a token in the config directory with owner-only permissions.
Pass it with --token or paste it on standard input.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := tokens.Clear(); err != nil {
			return err
		}
		fmt.Println(ui.FormatSuccess("Logged out"))
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginToken, "with-token", "", "token to store (read from stdin when empty)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	token := loginToken
	if token == "" {
		token = tokenFlag
	}
	if token == "" {
		fmt.Fprint(os.Stderr, "Token: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read token: %w", err)
		}
		token = strings.TrimSpace(line)
	}
	if err := tokens.Save(token); err != nil {
		return err
	}

	msg := "Token saved to " + tokens.Path()
	if exp, ok := tenant.TokenExpiry(token); ok {
		msg += fmt.Sprintf(" (expires %s)", exp.Local().Format(time.RFC1123))
	}
	fmt.Println(ui.FormatSuccess(msg))
	return nil
}

// userError is the single line printed for a failed command.
func userError(err error) string {
	var remote *tenant.RemoteError
	if errors.As(err, &remote) {
		return fmt.Sprintf("%s (HTTP %d)", remote.Message, remote.Status)
	}
	return submit.UserMessage(err)
}
