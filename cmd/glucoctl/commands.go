package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jmhodges/clock"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"glucodiary/internal/apiclient"
	"glucodiary/internal/config"
	"glucodiary/internal/telegram"
)

var (
	green     = color.New(color.FgGreen).SprintFunc()
	yellow    = color.New(color.FgYellow).SprintFunc()
	red       = color.New(color.FgRed).SprintFunc()
	gray      = color.New(color.FgHiBlack).SprintFunc()
	errorText = func(msg string) string { return red("✗ " + msg) }
)

// cli holds what every subcommand needs once the root has been set up.
// persistent is set when the session lives in Redis and outlives the process.
type cli struct {
	apiURL     string
	legacy     bool
	persistent bool
	session    *telegram.Session
	client     *apiclient.Client
}

var errNoSessionStore = errors.New("login needs REDIS_ADDR to keep the init data between runs; without it set TG_INIT_DATA for every command")

func newRootCommand() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:           "glucoctl",
		Short:         "Manage diary reminders from the terminal",
		Long:          "glucoctl talks to the glucodiary API with the Telegram init data of a Mini-App user.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.initialize(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&c.apiURL, "api", "", "API base URL (defaults to API_BASE_URL)")
	rootCmd.PersistentFlags().BoolVar(&c.legacy, "legacy", false, "Send reminders in the old underscore schema")

	rootCmd.AddCommand(
		newLoginCommand(c),
		newWhoamiCommand(c),
		newAddCommand(c),
		newEditCommand(c),
		newListCommand(c),
		newDeleteCommand(c),
		newMealCommand(c),
	)
	return rootCmd
}

func (c *cli) initialize(cmd *cobra.Command) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	if c.apiURL == "" {
		c.apiURL = cfg.APIBaseURL
	}

	freshness := telegram.Freshness{MaxAge: cfg.InitDataMaxAge, FutureSkew: telegram.DefaultFreshness.FutureSkew}

	var store telegram.Store
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		store = telegram.NewRedisStore(rdb, cfg.RedisKey, cfg.InitDataMaxAge)
		c.persistent = true
	} else {
		store = telegram.NewMemoryStore(cfg.InitData)
	}
	c.session = telegram.NewSession(store, clock.New(), freshness)

	if cfg.RedisAddr != "" && cfg.InitData != "" {
		if err := c.session.Save(cmd.Context(), cfg.InitData); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), yellow("TG_INIT_DATA ignored: "+err.Error()))
		}
	}

	var opts []apiclient.Option
	if c.legacy {
		opts = append(opts, apiclient.WithLegacySchema())
	}
	c.client = apiclient.New(c.apiURL, c.session, &http.Client{Timeout: 15 * time.Second}, opts...)
	return nil
}

func (c *cli) userID(cmd *cobra.Command) (int64, error) {
	u, err := c.session.User(cmd.Context())
	switch {
	case errors.Is(err, telegram.ErrNoInitData):
		return 0, errors.New("no init data: run glucoctl login or set TG_INIT_DATA")
	case errors.Is(err, telegram.ErrStaleInitData):
		return 0, errors.New("init data is older than a day, open the Mini-App again and log in")
	case err != nil:
		return 0, err
	}
	return u.ID, nil
}

func newLoginCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "login <init-data>",
		Short: "Store Telegram init data for later commands",
		Long:  "Store Telegram init data in Redis (REDIS_ADDR) so later commands can use it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !c.persistent {
				return errNoSessionStore
			}
			if err := c.session.Save(cmd.Context(), strings.TrimSpace(args[0])); err != nil {
				return err
			}
			u, err := c.session.User(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), green(fmt.Sprintf("logged in as %s (%d)", u.FirstName, u.ID)))
			return nil
		},
	}
}

func newWhoamiCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the user of the stored init data",
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := c.session.User(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d)\n", u.FirstName, gray("@"+u.Username), u.ID)
			return nil
		},
	}
}

func newAddCommand(c *cli) *cobra.Command {
	var flags reminderFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a reminder",
		Example: "  glucoctl add --type sugar --time 08:00 --days 1,2,3,4,5\n" +
			"  glucoctl add --type meal --every 180\n" +
			"  glucoctl add --after 120",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := c.userID(cmd)
			if err != nil {
				return err
			}
			form, err := flags.form(id)
			if err != nil {
				return err
			}
			rec, err := c.client.CreateReminder(cmd.Context(), form)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), green(fmt.Sprintf("created #%d %s", rec.ID, rec.Title)))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newEditCommand(c *cli) *cobra.Command {
	var flags reminderFlags
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Replace a reminder with the given settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rid, err := parseID(args[0])
			if err != nil {
				return err
			}
			id, err := c.userID(cmd)
			if err != nil {
				return err
			}
			form, err := flags.form(id)
			if err != nil {
				return err
			}
			rec, err := c.client.UpdateReminder(cmd.Context(), rid, form)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), green(fmt.Sprintf("updated #%d %s", rec.ID, rec.Title)))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newListCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List reminders",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := c.userID(cmd)
			if err != nil {
				return err
			}
			records, err := c.client.ListReminders(cmd.Context(), id)
			if err != nil {
				return describe(err)
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), gray("no reminders"))
				return nil
			}
			for _, rec := range records {
				fmt.Fprintln(cmd.OutOrStdout(), formatRecord(rec))
			}
			return nil
		},
	}
}

func newDeleteCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a reminder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rid, err := parseID(args[0])
			if err != nil {
				return err
			}
			id, err := c.userID(cmd)
			if err != nil {
				return err
			}
			if err := c.client.DeleteReminder(cmd.Context(), rid, id); err != nil {
				return describe(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), green(fmt.Sprintf("deleted #%d", rid)))
			return nil
		},
	}
}

func newMealCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "meal",
		Short: "Log a meal and start after-meal reminders",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := c.userID(cmd)
			if err != nil {
				return err
			}
			n, err := c.client.LogMeal(cmd.Context(), id)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), green(fmt.Sprintf("meal logged, %d reminders scheduled", n)))
			return nil
		},
	}
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid reminder id %q", raw)
	}
	return uint(id), nil
}
