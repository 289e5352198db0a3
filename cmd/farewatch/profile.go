package main

import (
	"errors"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/lborres/farewatch/client"
)

var profileFlags = []string{
	"first-name", "last-name", "phone", "frequency", "airports",
	"destinations", "travel-types", "email-notifications", "sms-notifications",
}

func (c *cli) profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Change your profile",
	}
	cmd.AddCommand(c.profileUpdateCmd())
	return cmd
}

func (c *cli) profileUpdateCmd() *cobra.Command {
	var (
		firstName, lastName, phone, frequency string
		airports, destinations, travelTypes   []string
		emailNotify, smsNotify                bool
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change profile fields",
		Long: `Change profile fields. Only the flags you pass are sent.

Examples:
  farewatch profile update --last-name Lovelace
  farewatch profile update --airports CDG,ORY --frequency daily`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()

			var patch client.ProfilePatch
			if flags.Changed("first-name") {
				patch.FirstName = &firstName
			}
			if flags.Changed("last-name") {
				patch.LastName = &lastName
			}
			if flags.Changed("phone") {
				patch.Phone = &phone
			}
			if flags.Changed("frequency") {
				patch.NotificationFrequency = &frequency
			}
			if flags.Changed("airports") {
				patch.HomeAirports = nonNil(airports)
			}
			if flags.Changed("destinations") {
				patch.FavoriteDestinations = nonNil(destinations)
			}
			if flags.Changed("travel-types") {
				patch.TravelTypes = nonNil(travelTypes)
			}
			if flags.Changed("email-notifications") {
				patch.EmailNotifications = &emailNotify
			}
			if flags.Changed("sms-notifications") {
				patch.SMSNotifications = &smsNotify
			}
			if !anyChanged(flags, profileFlags...) {
				return errors.New("nothing to update")
			}

			if _, err := c.enter(cmd.Context(), client.Route{Name: "profile"}); err != nil {
				return err
			}
			identity, err := c.client.Session.UpdateIdentity(cmd.Context(), patch)
			if err != nil {
				return err
			}
			c.printer.Success("Profile updated")
			c.printIdentity(identity)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&firstName, "first-name", "", "first name")
	flags.StringVar(&lastName, "last-name", "", "last name")
	flags.StringVar(&phone, "phone", "", "phone number")
	flags.StringVar(&frequency, "frequency", "", "deal alert frequency: instant, daily, or weekly")
	flags.StringSliceVar(&airports, "airports", nil, "home airport codes, e.g. CDG,ORY")
	flags.StringSliceVar(&destinations, "destinations", nil, "favorite destinations")
	flags.StringSliceVar(&travelTypes, "travel-types", nil, "travel types, e.g. beach,city")
	flags.BoolVar(&emailNotify, "email-notifications", false, "receive deal alerts by email")
	flags.BoolVar(&smsNotify, "sms-notifications", false, "receive deal alerts by SMS")
	return cmd
}

func (c *cli) onboardingCmd() *cobra.Command {
	var data client.OnboardingData

	cmd := &cobra.Command{
		Use:   "onboarding STEP",
		Short: "Record an onboarding step",
		Long: `Record an onboarding step. Each step owns some fields:
  2  --first-name, --airports
  3  --travel-types
  4  --destinations
  5  finish onboarding`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			step, err := strconv.Atoi(args[0])
			if err != nil {
				return errors.New("STEP must be a number")
			}

			if _, err := c.enter(cmd.Context(), client.Route{Name: "onboarding"}); err != nil {
				return err
			}
			identity, err := c.client.Session.AdvanceOnboarding(cmd.Context(), step, data)
			if err != nil {
				return err
			}
			if identity.OnboardingCompleted {
				c.printer.Success("Onboarding complete")
			} else {
				c.printer.Success("Onboarding step %d saved", identity.OnboardingStep)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&data.FirstName, "first-name", "", "first name (step 2)")
	flags.StringSliceVar(&data.HomeAirports, "airports", nil, "home airport codes (step 2)")
	flags.StringSliceVar(&data.TravelTypes, "travel-types", nil, "travel types (step 3)")
	flags.StringSliceVar(&data.FavoriteDestinations, "destinations", nil, "favorite destinations (step 4)")
	return cmd
}

var alertFlags = []string{
	"min-discount", "max-price-europe", "max-price-international",
	"routes", "exclude-airlines", "min-days", "max-days",
}

func (c *cli) alertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Show your deal alert preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.enter(cmd.Context(), client.Route{Name: "alerts"}); err != nil {
				return err
			}
			prefs, err := c.client.AlertPreferences(cmd.Context())
			if err != nil {
				return err
			}
			c.printAlertPreferences(prefs)
			return nil
		},
	}
	cmd.AddCommand(c.alertsUpdateCmd())
	return cmd
}

func (c *cli) alertsUpdateCmd() *cobra.Command {
	var (
		minDiscount, maxEurope, maxInternational float64
		routes, excluded                          []string
		minDays, maxDays                          int
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change deal alert thresholds",
		Long: `Change deal alert thresholds. Only the flags you pass are sent.

Examples:
  farewatch alerts update --min-discount 40
  farewatch alerts update --routes CDG-JFK,ORY-LIS --max-days 90`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !anyChanged(flags, alertFlags...) {
				return errors.New("nothing to update")
			}

			var patch client.AlertPreferencesPatch
			if flags.Changed("min-discount") {
				patch.MinDiscountPercentage = &minDiscount
			}
			if flags.Changed("max-price-europe") {
				patch.MaxPriceEurope = &maxEurope
			}
			if flags.Changed("max-price-international") {
				patch.MaxPriceInternational = &maxInternational
			}
			if flags.Changed("routes") {
				patch.PreferredRoutes = nonNil(routes)
			}
			if flags.Changed("exclude-airlines") {
				patch.ExcludedAirlines = nonNil(excluded)
			}
			if flags.Changed("min-days") {
				patch.AdvanceDaysMin = &minDays
			}
			if flags.Changed("max-days") {
				patch.AdvanceDaysMax = &maxDays
			}

			if _, err := c.enter(cmd.Context(), client.Route{Name: "alerts"}); err != nil {
				return err
			}
			prefs, err := c.client.UpdateAlertPreferences(cmd.Context(), patch)
			if err != nil {
				return err
			}
			c.printer.Success("Alert preferences updated")
			c.printAlertPreferences(prefs)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Float64Var(&minDiscount, "min-discount", 0, "minimum discount in percent, 10 to 90")
	flags.Float64Var(&maxEurope, "max-price-europe", 0, "highest fare for European trips")
	flags.Float64Var(&maxInternational, "max-price-international", 0, "highest fare for international trips")
	flags.StringSliceVar(&routes, "routes", nil, "preferred routes, e.g. CDG-JFK,ORY-LIS")
	flags.StringSliceVar(&excluded, "exclude-airlines", nil, "airlines to leave out of alerts")
	flags.IntVar(&minDays, "min-days", 0, "fewest days between the alert and departure")
	flags.IntVar(&maxDays, "max-days", 0, "most days between the alert and departure, up to 365")
	return cmd
}

func (c *cli) printAlertPreferences(p *client.AlertPreferences) {
	c.printer.Print("%s", c.printer.Bold("Deal alerts"))
	c.printer.Print("  min discount:  %s%%", strconv.FormatFloat(p.MinDiscountPercentage, 'f', -1, 64))
	c.printer.Print("  europe under:  %s", strconv.FormatFloat(p.MaxPriceEurope, 'f', -1, 64))
	c.printer.Print("  intl under:    %s", strconv.FormatFloat(p.MaxPriceInternational, 'f', -1, 64))
	c.printer.Print("  departing in:  %d to %d days", p.AdvanceDaysMin, p.AdvanceDaysMax)
	c.printer.Print("  per week:      %d", p.MaxAlertsPerWeek)
	if len(p.PreferredRoutes) > 0 {
		c.printer.Print("  routes:        %s", strings.Join(p.PreferredRoutes, ", "))
	}
	if len(p.ExcludedAirlines) > 0 {
		c.printer.Print("  excluded:      %s", strings.Join(p.ExcludedAirlines, ", "))
	}
}

func (c *cli) adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrator commands",
	}
	cmd.AddCommand(c.adminUsersCmd())
	return cmd
}

func (c *cli) adminUsersCmd() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "users",
		Short: "List user accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.enter(cmd.Context(), client.Route{Name: "admin users", RequireAdmin: true}); err != nil {
				return err
			}
			page, err := c.client.ListUsers(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(page.Users))
			for _, u := range page.Users {
				rows = append(rows, []string{
					u.Email,
					u.DisplayName(),
					string(u.Tier),
					yesNo(u.IsAdmin),
					yesNo(u.IsActive),
					u.CreatedAt.Local().Format("2006-01-02"),
				})
			}
			if err := c.printer.Table([]string{"EMAIL", "NAME", "TIER", "ADMIN", "ACTIVE", "CREATED"}, rows); err != nil {
				return err
			}
			c.printer.Print("%d of %d users", len(page.Users), page.Total)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of users to skip")
	return cmd
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func anyChanged(flags *pflag.FlagSet, names ...string) bool {
	for _, name := range names {
		if flags.Changed(name) {
			return true
		}
	}
	return false
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
