package cli

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/failseed/internal/client/client"
	"github.com/dmitrijs2005/failseed/internal/client/config"
	"github.com/dmitrijs2005/failseed/internal/common"
	"github.com/spf13/cobra"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

func (a *App) registerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, password, err := a.askCredentials(cmd)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(password)

			res, err := a.api.Register(cmd.Context(), email, string(password))
			if err != nil {
				return err
			}
			if err := a.saveSession(email, false, res); err != nil {
				return err
			}
			a.printf("Registered and logged in as %s\n", email)
			return nil
		},
	}
	cmd.Flags().StringP("email", "e", "", "account email")
	return cmd
}

func (a *App) loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to an existing account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, password, err := a.askCredentials(cmd)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(password)

			res, err := a.api.Login(cmd.Context(), email, string(password))
			if err != nil {
				if errors.Is(err, client.ErrUnauthorized) {
					return errors.New("wrong email or password")
				}
				return err
			}
			if err := a.saveSession(email, false, res); err != nil {
				return err
			}
			a.printf("Logged in as %s\n", email)
			return nil
		},
	}
	cmd.Flags().StringP("email", "e", "", "account email")
	return cmd
}

func (a *App) guestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "guest",
		Short: "Start a guest session (no account needed)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.api.Guest(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.saveSession("", true, res); err != nil {
				return err
			}
			a.printf("Guest session started. Entries stay with this session until it expires.\n")
			return nil
		},
	}
}

func (a *App) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.RemoveCredentials(a.config.CredentialsFile); err != nil {
				return err
			}
			a.printf("Logged out\n")
			return nil
		},
	}
}

func (a *App) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			u, err := a.api.CurrentUser(cmd.Context())
			if err != nil {
				return err
			}
			if u.Guest {
				a.printf("guest (%s)\n", u.ID)
				return nil
			}
			a.printf("%s (%s)\n", u.Email, u.ID)
			return nil
		},
	}
}

func (a *App) askCredentials(cmd *cobra.Command) (string, []byte, error) {
	email, _ := cmd.Flags().GetString("email")
	if email == "" {
		var err error
		email, err = getSimpleText(a.reader, "Enter email", a.out)
		if err != nil {
			return "", nil, err
		}
	}
	if email == "" {
		return "", nil, fmt.Errorf("email is required")
	}

	password, err := getPassword(a.out)
	if err != nil {
		return "", nil, err
	}
	return email, password, nil
}
