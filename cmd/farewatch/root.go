package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lborres/farewatch/client"
)

const defaultBaseURL = "http://localhost:8080/api/v1"

// cli holds what every command needs once the configuration is loaded.
type cli struct {
	v       *viper.Viper
	out     io.Writer
	errOut  io.Writer
	printer *Printer
	client  *client.Client
	store   *client.FileStore
}

func newCLI(out, errOut io.Writer) *cli {
	return &cli{
		v:       viper.New(),
		out:     out,
		errOut:  errOut,
		printer: NewPrinter(out, errOut, false),
	}
}

func (c *cli) rootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "farewatch",
		Short: "Sign in to farewatch and manage your account",
		Long: `farewatch is a command line client for the farewatch API.

The session token is kept in a credentials file so later commands stay
signed in until you log out or the server rejects the token.

Example usage:
  farewatch signup --email you@example.com
  farewatch login --email you@example.com
  farewatch whoami
  farewatch profile update --airports CDG,ORY
  farewatch alerts update --min-discount 40
  farewatch logout --all`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init(cfgFile)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/farewatch/config.yaml)")
	flags.String("base-url", defaultBaseURL, "API base URL")
	flags.String("credentials", "", "credentials file (default is the user config dir)")
	flags.String("color", "auto", "color output: auto, always, or never")
	flags.BoolP("verbose", "v", false, "log requests to stderr")
	flags.Duration("timeout", 30*time.Second, "request timeout")

	_ = c.v.BindPFlag("base_url", flags.Lookup("base-url"))
	_ = c.v.BindPFlag("credentials", flags.Lookup("credentials"))
	_ = c.v.BindPFlag("color", flags.Lookup("color"))
	_ = c.v.BindPFlag("verbose", flags.Lookup("verbose"))
	_ = c.v.BindPFlag("timeout", flags.Lookup("timeout"))

	root.AddCommand(
		c.loginCmd(),
		c.signupCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.sessionsCmd(),
		c.profileCmd(),
		c.alertsCmd(),
		c.onboardingCmd(),
		c.adminCmd(),
	)
	return root
}

// init reads the config file and FAREWATCH_* variables, then builds the client.
func (c *cli) init(cfgFile string) error {
	if cfgFile != "" {
		c.v.SetConfigFile(cfgFile)
	} else {
		c.v.SetConfigName("config")
		c.v.SetConfigType("yaml")
		c.v.AddConfigPath("$HOME/.config/farewatch")
	}
	c.v.SetEnvPrefix("FAREWATCH")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}

	useColors, err := resolveColors(c.v.GetString("color"))
	if err != nil {
		return err
	}
	c.printer = NewPrinter(c.out, c.errOut, useColors)

	if path := c.v.GetString("credentials"); path != "" {
		c.store = client.NewFileStore(path)
	} else if c.store, err = client.DefaultFileStore(); err != nil {
		return err
	}

	level := slog.LevelWarn
	if c.v.GetBool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(c.errOut, &slog.HandlerOptions{Level: level}))

	c.client, err = client.New(client.Config{
		BaseURL:    c.v.GetString("base_url"),
		HTTPClient: &http.Client{Timeout: c.v.GetDuration("timeout")},
		Store:      c.store,
		Notifier:   c.printer,
		Navigator:  c.printer,
		Logger:     logger,
	})
	return err
}

var errNotSignedIn = errors.New("not signed in")

// enter restores the stored session and checks route against it.
func (c *cli) enter(ctx context.Context, route client.Route) (*client.Identity, error) {
	if err := c.client.Session.Restore(ctx); err != nil {
		return nil, err
	}

	switch c.client.Guard.Enter(route) {
	case client.DecisionRender:
		return c.client.Session.Snapshot().Identity, nil
	case client.DecisionAccessDenied:
		return nil, fmt.Errorf("%s: not enough permissions", route.Name)
	case client.DecisionRedirectLogin:
		return nil, reportedError{errNotSignedIn}
	default:
		return nil, fmt.Errorf("%s: session is not ready", route.Name)
	}
}

// reportedError wraps an error whose message the user has already seen.
type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

// reported tells whether err was already shown through the Notifier or
// Navigator, so the top level does not print it twice.
func reported(err error) bool {
	var (
		re      reportedError
		authErr *client.AuthError
		netErr  *client.NetworkError
	)
	switch {
	case errors.As(err, &re), errors.As(err, &authErr), errors.As(err, &netErr):
		return true
	case errors.Is(err, context.Canceled):
		return true
	}
	status := client.StatusCode(err)
	return status == http.StatusUnauthorized || status >= http.StatusInternalServerError
}

// describe is the user-facing text for an unreported error.
func describe(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message()
	}
	return err.Error()
}
