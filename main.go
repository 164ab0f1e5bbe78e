package main

import (
	"fmt"
	"os"

	"github.com/fluffyriot/rpinsights/internal/cli"
	"github.com/fluffyriot/rpinsights/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rpinsights",
		Short:         "Creator analytics ingestion and trend service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(syncCmd())
	root.AddCommand(trendCmd())
	root.AddCommand(accountsCmd())
	root.AddCommand(migrateCmd())

	return root
}

func withApp(run func(cmd *cobra.Command, app *cli.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		app, err := cli.Bootstrap(cfg)
		if err != nil {
			return err
		}
		defer app.Close()
		return run(cmd, app)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: withApp(func(cmd *cobra.Command, app *cli.App) error {
			return app.Serve(cmd.Context())
		}),
	}
}

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run an ingestion job once without going through HTTP",
	}

	var (
		account  string
		lookback int
	)
	media := &cobra.Command{
		Use:   "media",
		Short: "Pull recent media and insights, then rebuild daily aggregates",
		RunE: withApp(func(cmd *cobra.Command, app *cli.App) error {
			return app.RunMediaSync(cmd.Context(), cmd.OutOrStdout(), account, lookback)
		}),
	}
	media.Flags().StringVar(&account, "account", "", "account id, numeric id or @username (default: every account)")
	media.Flags().IntVar(&lookback, "lookback", 0, "days to look back, 1-90 (default 30)")

	var debug bool
	insights := &cobra.Command{
		Use:   "insights",
		Short: "Store the newest completed day of account insights for every account",
		RunE: withApp(func(cmd *cobra.Command, app *cli.App) error {
			return app.RunAccountInsights(cmd.Context(), cmd.OutOrStdout(), debug)
		}),
	}
	insights.Flags().BoolVar(&debug, "debug", false, "read back the last week of stored rows")

	cmd.AddCommand(media, insights)
	return cmd
}

func trendCmd() *cobra.Command {
	var (
		account string
		days    int
		format  string
	)
	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Print the reconciled daily trend for an account",
		RunE: withApp(func(cmd *cobra.Command, app *cli.App) error {
			return app.RunTrend(cmd.Context(), cmd.OutOrStdout(), account, days, format)
		}),
	}
	cmd.Flags().StringVar(&account, "account", "", "account id, numeric id or @username")
	cmd.Flags().IntVar(&days, "days", 30, "window in days, snapped to 7, 14, 30, 60, 90 or 365")
	cmd.Flags().StringVar(&format, "format", "json", "json or csv")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage tracked accounts",
	}

	var in cli.AccountInput
	add := &cobra.Command{
		Use:   "add",
		Short: "Register an account and its access token",
		RunE: withApp(func(cmd *cobra.Command, app *cli.App) error {
			return app.AddAccount(cmd.Context(), cmd.OutOrStdout(), in)
		}),
	}
	add.Flags().StringVar(&in.Username, "username", "", "account username")
	add.Flags().Int64Var(&in.IgUserID, "ig-user-id", 0, "numeric account id")
	add.Flags().StringVar(&in.PageID, "page-id", "", "linked page id used for the token exchange")
	add.Flags().StringVar(&in.Token, "token", "", "access token, long-lived unless --exchange is set")
	add.Flags().BoolVar(&in.ExchangeToken, "exchange", false, "trade a short-lived login token for a long-lived one first")
	add.Flags().Int64SliceVar(&in.LegacyIDs, "legacy-id", nil, "older numeric ids that still key follower history")
	_ = add.MarkFlagRequired("username")
	_ = add.MarkFlagRequired("ig-user-id")
	_ = add.MarkFlagRequired("token")

	cmd.AddCommand(add)
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, _, err := config.LoadDatabase(cfg)
			if err != nil {
				return err
			}
			return db.Close()
		},
	}
}
