package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/notepeel/internal/core/domain"
	"github.com/kirillkom/notepeel/internal/infrastructure/tokeninfo"
)

func newRegisterCmd(opts *rootOptions) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "register <email>",
		Short: "Create an account and sign in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := passwordFrom(cmd, password)
			if err != nil {
				return err
			}
			app, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			session, err := app.Sessions.Register(cmd.Context(), args[0], username, secret)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered and signed in as %s\n", session.Identity)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "display name for the new account")
	cmd.Flags().StringVar(&password, "password", "", "account password (read from stdin when omitted)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Sign in and remember the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := passwordFrom(cmd, password)
			if err != nil {
				return err
			}
			app, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			session, err := app.Sessions.Login(cmd.Context(), args[0], secret)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", session.Identity)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "account password (read from stdin when omitted)")
	return cmd
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			app.Sessions.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(opts *rootOptions) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			session := app.Sessions.Current()
			if !session.Present() {
				return domain.WrapError(domain.ErrNoSession, "whoami", errors.New("not signed in"))
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session: %s\n", session.Identity)

			if info, err := tokeninfo.Inspect(session.Token); err == nil && !info.ExpiresAt.IsZero() {
				state := "valid until"
				if info.Expired(time.Now()) {
					state = "expired at"
				}
				fmt.Fprintf(out, "Token %s %s\n", state, info.ExpiresAt.Format(time.RFC3339))
			}
			if offline {
				return nil
			}

			user, err := app.Sessions.Me(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Account: %s <%s> (id %d)\n", user.Username, user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "only show the stored session")
	return cmd
}

// passwordFrom prefers the flag and otherwise reads one line from stdin.
func passwordFrom(cmd *cobra.Command, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "read password", errors.New("password is required"))
	}
	return password, nil
}
