package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/failseed/internal/client/client"
	"github.com/dmitrijs2005/failseed/internal/client/config"
	"github.com/spf13/cobra"
)

// App holds the state shared by all commands of one invocation.
type App struct {
	config *config.Config
	api    *client.APIClient
	creds  *config.Credentials
	reader *bufio.Reader
	out    io.Writer
}

// NewRootCmd builds the command tree on top of cfg. Persistent flags
// override the values cfg was loaded with.
func NewRootCmd(cfg *config.Config) *cobra.Command {
	a := &App{config: cfg}

	root := &cobra.Command{
		Use:           "failseed",
		Short:         "Turn the day's setbacks into growth",
		Long:          "A terminal client for FailSeed: talk through something that went wrong and keep what you learned.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&cfg.ServerURL, "server", "a", cfg.ServerURL, "FailSeed server URL")
	pf.StringVarP(&cfg.CredentialsFile, "credentials", "f", cfg.CredentialsFile, "credentials file")
	pf.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "timeout for one API call")
	pf.StringP("config", "c", "", "JSON config file")

	root.AddCommand(
		a.registerCmd(), a.loginCmd(), a.guestCmd(), a.logoutCmd(), a.whoamiCmd(),
		a.chatCmd(),
		a.growsCmd(), a.showCmd(), a.hintCmd(), a.deleteCmd(), a.analyticsCmd(), a.exportCmd(),
	)
	return root
}

func (a *App) init(cmd *cobra.Command) error {
	a.reader = bufio.NewReader(cmd.InOrStdin())
	a.out = cmd.OutOrStdout()

	creds, err := config.LoadCredentials(a.config.CredentialsFile)
	switch {
	case err == nil:
		a.creds = creds
		// stay on the server the session was created on unless told otherwise
		if creds.ServerURL != "" && !cmd.Flags().Changed("server") {
			a.config.ServerURL = creds.ServerURL
		}
	case errors.Is(err, config.ErrNoCredentials):
	default:
		return err
	}

	a.api = client.New(a.config.ServerURL, a.config.RequestTimeout)
	if a.creds != nil {
		a.api.SetTokens(a.creds.AccessToken, a.creds.RefreshToken)
		a.api.OnRefresh(func(p client.TokenPair) {
			a.creds.AccessToken, a.creds.RefreshToken = p.AccessToken, p.RefreshToken
			if err := config.SaveCredentials(a.config.CredentialsFile, a.creds); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: could not save refreshed tokens:", err)
			}
		})
	}
	return nil
}

func (a *App) requireLogin() error {
	if a.creds == nil {
		return fmt.Errorf("%w: run `failseed login` or `failseed guest` first", config.ErrNoCredentials)
	}
	return nil
}

func (a *App) saveSession(email string, guest bool, res *client.AuthResult) error {
	a.creds = &config.Credentials{
		ServerURL:    a.config.ServerURL,
		Email:        email,
		Guest:        guest,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
	}
	return config.SaveCredentials(a.config.CredentialsFile, a.creds)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
