package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lborres/farewatch/client"
)

// readPassword returns flagValue, or the first line of in when it is empty.
func readPassword(flagValue string, in io.Reader) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *cli) loginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		Long: `Sign in with email and password. Without --password the password is
read from the first line of stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(password, cmd.InOrStdin())
			if err != nil {
				return err
			}
			_, err = c.client.Session.Login(cmd.Context(), email, pw)
			return err
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (default: read from stdin)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) signupCmd() *cobra.Command {
	var input client.SignupInput

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(input.Password, cmd.InOrStdin())
			if err != nil {
				return err
			}
			input.Password = pw
			_, err = c.client.Session.Signup(cmd.Context(), input)
			return err
		},
	}

	cmd.Flags().StringVar(&input.Email, "email", "", "account email")
	cmd.Flags().StringVar(&input.Password, "password", "", "account password (default: read from stdin)")
	cmd.Flags().StringVar(&input.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&input.LastName, "last-name", "", "last name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	var revoke, all bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Long: `Forget the stored session token. With --revoke the session is also
ended on the server first. With --all every session of the account is
ended, on every device.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case all:
				n, err := c.client.Session.RevokeAll(cmd.Context())
				if err != nil {
					return err
				}
				if n > 0 {
					c.printer.Print("Ended %d sessions", n)
				}
				return nil
			case revoke:
				return c.client.Session.Revoke(cmd.Context())
			default:
				c.client.Session.Logout()
				return nil
			}
		},
	}

	cmd.Flags().BoolVar(&revoke, "revoke", false, "end the session on the server too")
	cmd.Flags().BoolVar(&all, "all", false, "end every session of the account on the server")
	cmd.MarkFlagsMutuallyExclusive("revoke", "all")
	return cmd
}

func (c *cli) sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List the devices signed in to your account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.enter(cmd.Context(), client.Route{Name: "sessions"}); err != nil {
				return err
			}
			list, err := c.client.Sessions(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(list.Sessions))
			for _, s := range list.Sessions {
				id := s.ID
				if s.ID == list.Current {
					id += " *"
				}
				rows = append(rows, []string{
					id,
					s.IPAddress,
					s.UserAgent,
					s.CreatedAt.Local().Format("2006-01-02 15:04"),
					s.ExpiresAt.Local().Format("2006-01-02 15:04"),
				})
			}
			return c.printer.Table([]string{"ID", "IP", "CLIENT", "SIGNED IN", "EXPIRES"}, rows)
		},
	}
	cmd.AddCommand(c.sessionsRevokeCmd())
	return cmd
}

func (c *cli) sessionsRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke ID",
		Short: "End one session by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.enter(cmd.Context(), client.Route{Name: "sessions"}); err != nil {
				return err
			}
			if err := c.client.RevokeSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			c.printer.Success("Session %s ended", args[0])
			return nil
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	var showSession bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, err := c.enter(cmd.Context(), client.Route{Name: "whoami"})
			if err != nil {
				return err
			}
			c.printIdentity(identity)

			if !showSession {
				return nil
			}
			data, err := c.client.CurrentSession(cmd.Context())
			if err != nil {
				return err
			}
			c.printer.Print("")
			c.printer.Print("%s %s", c.printer.Bold("Session:"), data.Session.ID)
			c.printer.Print("%s %s", c.printer.Bold("Expires:"), data.Session.ExpiresAt.Local().Format("2006-01-02 15:04"))
			if data.Session.UserAgent != "" {
				c.printer.Print("%s %s", c.printer.Bold("Client: "), data.Session.UserAgent)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSession, "session", false, "also show the server-side session")
	return cmd
}

func (c *cli) printIdentity(u *client.Identity) {
	admin := ""
	if u.IsAdmin {
		admin = " (admin)"
	}
	c.printer.Print("%s%s", c.printer.Bold(u.DisplayName()), admin)
	c.printer.Print("  email:      %s", u.Email)
	c.printer.Print("  tier:       %s", u.Tier)
	if u.Phone != "" {
		c.printer.Print("  phone:      %s", u.Phone)
	}
	if len(u.HomeAirports) > 0 {
		c.printer.Print("  airports:   %s", strings.Join(u.HomeAirports, ", "))
	}
	if len(u.TravelTypes) > 0 {
		c.printer.Print("  travel:     %s", strings.Join(u.TravelTypes, ", "))
	}
	if !u.OnboardingCompleted {
		c.printer.Print("  onboarding: step %d", u.OnboardingStep)
	}
}
